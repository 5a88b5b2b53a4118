package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/parser"
	"github.com/kestrel-lang/kestrel/lang/resolver"
	"github.com/kestrel-lang/kestrel/lang/scanner"
	"github.com/kestrel-lang/kestrel/lang/token"
)

func (c *Cmd) Resolve(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var parseMode parser.Mode
	if c.WithComments {
		parseMode |= parser.Comments
	}
	return ResolveFiles(ctx, stdio, parseMode, token.PosLong, "", args...)
}

// ResolveFiles parses each file, runs both semantic passes over every
// chunk (spec.md §4.4-4.5), then prints the annotated AST: identifier
// nodes carry their resolved location once this has run.
func ResolveFiles(_ context.Context, stdio mainer.Stdio, parseMode parser.Mode,
	posMode token.PosMode, nodeFmt string, files ...string) error {
	printer := ast.Printer{
		Output:  stdio.Stdout,
		Pos:     posMode,
		NodeFmt: nodeFmt,
	}
	fs, chunks, perr := parser.ParseFiles(parseMode, files...)
	if perr != nil {
		// cannot resolve AST if parsing has errors
		scanner.PrintError(stdio.Stderr, perr)
		return perr
	}

	warn := resolver.WithWarningHandler(func(pos token.Position, msg string) {
		fmt.Fprintf(stdio.Stderr, "warning: %s: %s\n", pos, msg)
	})
	rerr := resolver.ResolveChunks(fs, chunks, warn)
	for _, ch := range chunks {
		start, _ := ch.Span()
		file := fs.File(start)
		if err := printer.Print(ch, file); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
	}
	if rerr != nil {
		scanner.PrintError(stdio.Stderr, rerr)
	}
	return rerr
}
