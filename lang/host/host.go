// Package host defines the callback contract a program embedding this
// module's compiler stages implements to receive diagnostics and side
// channels instead of each stage writing straight to stdio (spec.md §6.3,
// modeled on gravity_delegate.h's log/error/unittest/parser callbacks).
//
// Nothing in lang/scanner, lang/parser, lang/resolver or lang/compiler
// takes a Delegate directly: each keeps returning its own
// go/scanner.ErrorList exactly as the teacher's stages do. Delegate lives
// one layer up, at the CLI boundary (internal/maincmd), which forwards
// each stage's result to it with Report.
package host

import (
	"go/scanner"
	"os"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// Stage identifies which compiler phase produced a diagnostic or artifact.
type Stage int

const (
	StageScan Stage = iota
	StageParse
	StageResolve
	StageCompile
)

func (s Stage) String() string {
	switch s {
	case StageScan:
		return "scan"
	case StageParse:
		return "parse"
	case StageResolve:
		return "resolve"
	case StageCompile:
		return "compile"
	default:
		return "unknown"
	}
}

// Error is one diagnostic reported by a compiler stage, adapted from a
// go/scanner.Error.
type Error struct {
	Stage Stage
	Pos   token.Position
	Msg   string
}

func (e Error) String() string { return e.Pos.String() + ": " + e.Msg }

// Delegate is the host callback contract of spec.md §6.3. An embedder of
// this module's compiler stages supplies one to receive every diagnostic
// and side channel: accumulated errors, loaded #include files, log
// messages, retained comments and tokens, type annotations, and parsed
// #unittest expectations.
type Delegate interface {
	// ReportError is called once per diagnostic a stage accumulates.
	ReportError(Error)
	// Log receives informational/progress messages, not diagnostics.
	Log(msg string)
	// LoadFile resolves a #include path to its contents.
	LoadFile(path string) ([]byte, error)
	// OnComment is called once per retained comment, in source order.
	OnComment(*ast.Comment)
	// OnToken is called once per scanned token, in source order.
	OnToken(tok token.Token, val token.Value)
	// OnTypeAnnotation is called for each `identifier: TypeName` annotation
	// encountered (spec.md §3's optional, unchecked type annotations),
	// forwarded here for tooling rather than consumed by the resolver.
	OnTypeAnnotation(name, typeName string, pos token.Pos)
	// OnUnitTest is called once per parsed #unittest expectation.
	OnUnitTest(ast.UnitTest)
}

// NopDelegate implements Delegate with no-op methods, except LoadFile,
// which defaults to os.ReadFile so a zero-value NopDelegate behaves like no
// delegate was installed at all. Embed it to implement only the callbacks
// a particular host cares about.
type NopDelegate struct{}

func (NopDelegate) ReportError(Error)                                     {}
func (NopDelegate) Log(string)                                            {}
func (NopDelegate) LoadFile(path string) ([]byte, error)                  { return os.ReadFile(path) }
func (NopDelegate) OnComment(*ast.Comment)                                {}
func (NopDelegate) OnToken(token.Token, token.Value)                      {}
func (NopDelegate) OnTypeAnnotation(name, typeName string, pos token.Pos) {}
func (NopDelegate) OnUnitTest(ast.UnitTest)                               {}

var _ Delegate = NopDelegate{}

// Report forwards every error accumulated in errs to d, tagging each with
// stage. errs is the scanner.ErrorList every stage in lang/scanner,
// lang/parser, lang/resolver and lang/compiler returns; a nil d or nil errs
// is a no-op, and a non-ErrorList error is forwarded as a single Error with
// no position.
func Report(d Delegate, stage Stage, errs error) {
	if d == nil || errs == nil {
		return
	}
	if list, ok := errs.(scanner.ErrorList); ok {
		for _, e := range list {
			d.ReportError(Error{
				Stage: stage,
				Pos: token.Position{
					Filename: e.Pos.Filename,
					Offset:   e.Pos.Offset,
					Line:     e.Pos.Line,
					Column:   e.Pos.Column,
				},
				Msg: e.Msg,
			})
		}
		return
	}
	d.ReportError(Error{Stage: stage, Msg: errs.Error()})
}
