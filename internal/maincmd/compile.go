package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/kestrel-lang/kestrel/lang/compiler"
	"github.com/kestrel-lang/kestrel/lang/host"
	"github.com/kestrel-lang/kestrel/lang/object"
	"github.com/kestrel-lang/kestrel/lang/parser"
	"github.com/kestrel-lang/kestrel/lang/resolver"
	"github.com/kestrel-lang/kestrel/lang/token"
)

func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var parseMode parser.Mode
	if c.WithComments {
		parseMode |= parser.Comments
	}
	return CompileFiles(ctx, stdio, parseMode, args...)
}

// CompileFiles runs the full tokenize->parse->resolve->codegen pipeline
// (spec.md §2's control-flow summary) over each file and prints a one-line
// summary of every function and class the compilation produced. Every
// diagnostic and side channel flows through the CLI host.Delegate: stage
// errors via host.Report, retained comments via OnComment, parsed
// #unittest expectations via OnUnitTest, and resolver warnings via Log.
func CompileFiles(_ context.Context, stdio mainer.Stdio, parseMode parser.Mode, files ...string) error {
	fs, chunks, perr := parser.ParseFiles(parseMode, files...)
	d := newCLIDelegate(stdio, fs, token.PosLong)
	d.printComments = parseMode&parser.Comments != 0
	d.printUnitTests = true
	if perr != nil {
		host.Report(d, host.StageParse, perr)
		return perr
	}

	for _, ch := range chunks {
		for _, cm := range ch.Comments {
			d.OnComment(cm)
		}
		for _, ut := range ch.UnitTests {
			d.OnUnitTest(ut)
		}
		for _, an := range ch.Annotations {
			d.OnTypeAnnotation(an.Name, an.TypeName, an.Pos)
		}
	}

	warn := resolver.WithWarningHandler(func(pos token.Position, msg string) {
		d.Log(fmt.Sprintf("warning: %s: %s", pos, msg))
	})
	if rerr := resolver.ResolveChunks(fs, chunks, warn); rerr != nil {
		host.Report(d, host.StageResolve, rerr)
		return rerr
	}

	fns, cerr := compiler.CompileFiles(fs, chunks)
	for _, fn := range fns {
		printFunctionSummary(stdio, fn, 0, map[*object.Function]bool{})
	}
	if cerr != nil {
		host.Report(d, host.StageCompile, cerr)
	}
	return cerr
}

// printFunctionSummary prints fn's signature and instruction count, then
// recurses into every nested function or class reachable through its
// constant pool (spec.md §3's function object carries its own constant
// pool; nested functions/classes are constants like any other literal).
func printFunctionSummary(stdio mainer.Stdio, fn *object.Function, depth int, seen map[*object.Function]bool) {
	if fn == nil || seen[fn] {
		return
	}
	seen[fn] = true

	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(stdio.Stdout, "%sfunc %s(nparams=%d, nlocals=%d, nupvalues=%d, ninstructions=%d, purity=%.2f)\n",
		indent, fn.Name, fn.NParams, fn.NLocals, fn.NUpvalues, fn.NInstructions, fn.Purity)

	for _, v := range fn.Constants {
		switch cv := v.(type) {
		case *object.Function:
			printFunctionSummary(stdio, cv, depth+1, seen)
		case *object.Class:
			printClassSummary(stdio, cv, depth+1, seen)
		}
	}
}

func printClassSummary(stdio mainer.Stdio, cls *object.Class, depth int, seen map[*object.Function]bool) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	super := "<none>"
	if cls.SuperName != "" {
		super = cls.SuperName
	}
	fmt.Fprintf(stdio.Stdout, "%sclass %s(super=%s, nivar=%d, nsvar=%d, isStruct=%t)\n",
		indent, cls.Name, super, cls.NIvar, cls.NSvar, cls.IsStruct)

	cls.Members.Iter(func(name string, v object.Value) bool {
		if fn, ok := v.(*object.Function); ok {
			printFunctionSummary(stdio, fn, depth+1, seen)
		}
		return false
	})
}
