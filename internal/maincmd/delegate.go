package maincmd

import (
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/host"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// cliDelegate implements host.Delegate for the command-line tool: every
// diagnostic goes to stdio.Stderr, every retained comment/token/unit-test
// goes to stdio.Stdout for the command that asked to see it (tokenize for
// tokens, compile for unit tests and, with --with-comments, comments), and
// LoadFile reads straight from disk.
type cliDelegate struct {
	host.NopDelegate

	stdio   mainer.Stdio
	fset    *token.FileSet
	posMode token.PosMode

	// printTokens/printComments/printUnitTests gate OnToken/OnComment/
	// OnUnitTest: each CLI command only wants the side channels relevant to
	// it printed, but every command still drives the same delegate so that a
	// host embedding this package in place of the CLI sees every callback
	// fire uniformly.
	printTokens    bool
	printComments  bool
	printUnitTests bool
}

func newCLIDelegate(stdio mainer.Stdio, fset *token.FileSet, posMode token.PosMode) *cliDelegate {
	return &cliDelegate{stdio: stdio, fset: fset, posMode: posMode}
}

func (d *cliDelegate) ReportError(e host.Error) {
	fmt.Fprintf(d.stdio.Stderr, "%s: %s: %s\n", e.Stage, e.Pos, e.Msg)
}

func (d *cliDelegate) Log(msg string) {
	fmt.Fprintln(d.stdio.Stderr, msg)
}

func (d *cliDelegate) LoadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (d *cliDelegate) OnToken(tok token.Token, val token.Value) {
	if !d.printTokens {
		return
	}
	fmt.Fprintf(d.stdio.Stdout, "%s: %s", token.FormatPos(d.posMode, d.fset.File(val.Pos), val.Pos, true), tok)
	if lit := tok.Literal(val); lit != "" {
		fmt.Fprintf(d.stdio.Stdout, " %s", lit)
	}
	fmt.Fprintln(d.stdio.Stdout)
}

func (d *cliDelegate) OnComment(c *ast.Comment) {
	if !d.printComments {
		return
	}
	fmt.Fprintf(d.stdio.Stdout, "%s: comment %q\n",
		token.FormatPos(d.posMode, d.fset.File(c.Start), c.Start, true), c.Val)
}

func (d *cliDelegate) OnUnitTest(ut ast.UnitTest) {
	if !d.printUnitTests {
		return
	}
	fmt.Fprintf(d.stdio.Stdout, "%s: unittest %q\n",
		token.FormatPos(d.posMode, d.fset.File(ut.Pos), ut.Pos, true), ut.Name)
}

var _ host.Delegate = (*cliDelegate)(nil)
