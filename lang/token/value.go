package token

// Value carries the literal payload a scanner attaches to an INT, FLOAT, or
// STRING token (and the raw lexeme of every other token, for diagnostics).
// Only the field matching Kind is meaningful; the rest are zero.
type Value struct {
	Kind Token
	Raw  string // the exact source text of the lexeme
	Pos  Pos

	Int    int64   // valid when Kind == INT
	Float  float64 // valid when Kind == FLOAT
	String string  // STRING: escapes already decoded; COMMENT: text without delimiters
}

// IsLiteral reports whether v carries an INT/FLOAT/STRING payload.
func (v Value) IsLiteral() bool {
	switch v.Kind {
	case INT, FLOAT, STRING:
		return true
	default:
		return false
	}
}

// GoString renders the value the way %#v diagnostics in lang/ast expect.
func (v Value) GoString() string {
	switch v.Kind {
	case STRING:
		return "\"" + v.String + "\""
	case INT, FLOAT:
		return v.Raw
	default:
		return v.Raw
	}
}
