package maincmd

import (
	"context"

	"github.com/mna/mainer"

	"github.com/kestrel-lang/kestrel/lang/host"
	"github.com/kestrel-lang/kestrel/lang/scanner"
	"github.com/kestrel-lang/kestrel/lang/token"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFiles(ctx, stdio, token.PosLong, args...)
}

// TokenizeFiles scans each file and feeds every token through the CLI
// delegate's OnToken callback (spec.md §6.3's parser-token side channel;
// for the tokenize command the delegate prints them), then reports any
// accumulated scan errors the same way.
func TokenizeFiles(ctx context.Context, stdio mainer.Stdio, posMode token.PosMode, files ...string) error {
	fs, toksByFile, err := scanner.ScanFiles(ctx, files...)
	d := newCLIDelegate(stdio, fs, posMode)
	d.printTokens = true
	for _, toks := range toksByFile {
		for _, tok := range toks {
			d.OnToken(tok.Token, tok.Value)
		}
	}
	host.Report(d, host.StageScan, err)
	return err
}
