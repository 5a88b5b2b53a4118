package scanner

import (
	"fmt"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// shortString scans a single- or double-quoted string literal, decoding
// escape sequences as it goes (gravity_lexer.c's lexer_string).
func (s *Scanner) shortString(opening rune) (lit, decoded string) {
	// opening quote already consumed, hence the -1
	startOff := s.off - 1
	s.sb.Reset()

	// a string may span newlines; the line counter advances through them
	// like anywhere else (spec.md §4.1)
	for {
		cur := s.cur
		if cur < 0 {
			s.error(startOff, "string literal not terminated")
			break
		}
		s.advance()
		if cur == opening {
			break
		}
		if cur == '\\' {
			s.escape()
		} else {
			s.sb.WriteRune(cur)
		}
	}
	return string(s.src[startOff:s.off]), s.sb.String()
}

var simpleEscapes = [...]byte{
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
	'0':  0,
}

// escape parses an escape sequence. It expects the leading backslash to
// have already been consumed.
func (s *Scanner) escape() {
	startOff := s.off - 1

	if cur := s.cur; s.advanceIf('a', 'b', 'f', 'n', 'r', 't', 'v', '\\', '\'', '"', '0') {
		s.sb.WriteByte(simpleEscapes[cur])
		return
	}

	illegalOrIncomplete := func() {
		msg := fmt.Sprintf("illegal character %#U in escape sequence", s.cur)
		pos := s.off
		if s.cur < 0 {
			msg = "escape sequence not terminated"
			pos = startOff
		}
		s.error(pos, msg)
	}

	var max, rn uint32
	if s.advanceIf('x') {
		max = 255
		for i := 0; i < 2; i++ {
			if !isHexadecimal(s.cur) {
				illegalOrIncomplete()
				return
			}
			rn = rn*16 + uint32(digitVal(s.cur))
			s.advance()
		}
	} else if s.advanceIf('u') {
		max = unicode.MaxRune
		if s.advanceIf('{') {
			var count int
			for isHexadecimal(s.cur) {
				rn = rn*16 + uint32(digitVal(s.cur))
				s.advance()
				count++
			}
			if !s.advanceIf('}') {
				illegalOrIncomplete()
				return
			}
			if count == 0 || count > 8 {
				s.error(startOff, "escape sequence has an invalid number of hexadecimal digits")
				return
			}
		} else {
			for i := 0; i < 4; i++ {
				if !isHexadecimal(s.cur) {
					illegalOrIncomplete()
					return
				}
				rn = rn*16 + uint32(digitVal(s.cur))
				s.advance()
			}
		}
	} else {
		msg := "unknown escape sequence"
		if s.cur < 0 {
			msg = "escape sequence not terminated"
		}
		s.error(startOff, msg)
		return
	}

	if rn > max {
		msg := "escape sequence is invalid Unicode code point"
		if max == 255 {
			msg = "escape sequence is invalid byte value"
		}
		s.error(startOff, msg)
		return
	}
	if utf16.IsSurrogate(rune(rn)) {
		s.sb.WriteRune(utf8.RuneError)
		return
	}
	s.sb.WriteRune(rune(rn))
}

func digitVal(rn rune) int {
	switch {
	case '0' <= rn && rn <= '9':
		return int(rn - '0')
	case 'a' <= rn && rn <= 'f':
		return int(rn - 'a' + 10)
	case 'A' <= rn && rn <= 'F':
		return int(rn - 'A' + 10)
	}
	return 16
}
