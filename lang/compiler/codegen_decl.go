package compiler

import (
	"github.com/kestrel-lang/kestrel/lang/ast"
	"github.com/kestrel-lang/kestrel/lang/ir"
	"github.com/kestrel-lang/kestrel/lang/object"
	"github.com/kestrel-lang/kestrel/lang/token"
)

// storeGlobal emits `STOREG src, cpool(name)` in the current function
// (always `$moduleinit` when called from global scope, spec.md §4.7).
func (c *codegen) storeGlobal(name string, src int, line int) {
	idx := c.curFunc().AddConstant(object.String(name))
	c.buf().Add(ir.STOREG, src, idx, 0, line)
}

// emitFuncDeclGlobal compiles fd and stores the resulting closure into a
// global by name.
func (c *codegen) emitFuncDeclGlobal(fd *ast.FuncDecl, line int) {
	dst := c.emitFuncClosure(fd, line)
	c.storeGlobal(fd.Name.Name, dst, line)
	c.buf().Pop()
}

// emitFuncClosure compiles fd's body into its own *object.Function and
// emits a CLOSURE instruction in the current (enclosing) function that
// materializes it, leaving the closure in a fresh temp register.
func (c *codegen) emitFuncClosure(fd *ast.FuncDecl, line int) int {
	fn := c.compileFuncBody(fd, line)
	parent := c.curFunc()
	idx := parent.AddConstant(fn)
	dst := parent.IR.PushTemp()
	parent.IR.Add(ir.CLOSURE, dst, idx, 0, line)
	return dst
}

// compileFuncBody walks fd's already-resolved body into a fresh
// *object.Function, reusing the NLocals/NParams/Upvalues pass 2 computed.
func (c *codegen) compileFuncBody(fd *ast.FuncDecl, line int) *object.Function {
	fn := object.NewFunction(fd.Name.Name, fd.NParams, fd.NLocals)
	fn.NUpvalues = len(fd.Upvalues)
	for _, u := range fd.Upvalues {
		fn.Upvalues = append(fn.Upvalues, object.UpvalueDesc{IsDirect: u.IsDirect, Index: u.IndexInTarget})
	}
	for _, p := range fd.Params {
		fn.ParamNames = append(fn.ParamNames, p.Name.Name)
		if p.Default != nil {
			if v, ok := evalConstExpr(p.Default); ok {
				fn.Defaults = append(fn.Defaults, v)
				continue
			}
			c.errAt(fd.Func, "parameter %q default must be a constant expression", p.Name.Name)
		}
		fn.Defaults = append(fn.Defaults, nil)
	}
	fd.RuntimeFunc = fn
	fn.UseArgs = fd.Variadic

	c.pushFunc(fn)
	for _, s := range fd.Body.Stmts {
		c.emitStmt(s)
		c.buf().RegisterTempsClear()
	}
	c.popFunc()
	if fd.Body.CloseSlot >= 0 {
		fn.IR.Add(ir.CLOSE, fd.Body.CloseSlot, 0, 0, line)
	}
	fn.IR.Add(ir.RET0, 0, 0, 0, line)

	c.finalize(fn)
	return fn
}

// emitClassDeclGlobal compiles a class/struct declared at global scope and
// stores it into a global by name.
func (c *codegen) emitClassDeclGlobal(cd *ast.ClassDecl, line int) {
	class := c.emitClassDecl(cd, line)
	idx := c.curFunc().AddConstant(class)
	dst := c.buf().AddConstant(idx, line)
	c.storeGlobal(cd.Name.Name, dst, line)
	c.buf().Pop()
}

// emitClassDecl builds cd's Class/metaclass pair and compiles every member
// (spec.md §4.7's class processing): methods and computed properties are
// bound directly into the class's member table at compile time (this
// compiler constructs runtime objects directly rather than emitting
// bytecode that builds them, per spec.md §3's "Runtime objects created by
// codegen"); plain instance fields get their initializers compiled into a
// synthesized `$init` function that stores through the instance's ivar
// slots, chained to the superclass's own `$init` via patch_init.
func (c *codegen) emitClassDecl(cd *ast.ClassDecl, line int) *object.Class {
	class := c.newClassLike(cd.Name.Name, cd.Super, cd.ExternSuper, cd.IsStruct, cd.IsModule, cd.NIvar, cd.NSvar)
	cd.RuntimeClass = class

	c.classes = append(c.classes, class)
	c.emitClassMembers(class, cd.Decls, line)
	c.classes = c.classes[:len(c.classes)-1]

	return class
}

// emitModuleDeclGlobal lowers a ModuleDecl to a ClassDecl-shaped Class per
// SPEC_FULL.md's module-lowering decision, and stores it into a global.
func (c *codegen) emitModuleDeclGlobal(md *ast.ModuleDecl, line int) {
	class := c.newClassLike(md.Name.Name, nil, false, false, true, md.NIvar, md.NSvar)
	md.RuntimeClass = class

	c.classes = append(c.classes, class)
	c.emitClassMembers(class, md.Decls, line)
	c.classes = c.classes[:len(c.classes)-1]

	idx := c.curFunc().AddConstant(class)
	dst := c.buf().AddConstant(idx, line)
	c.storeGlobal(md.Name.Name, dst, line)
	c.buf().Pop()
}

// newClassLike constructs the class/metaclass pair and wires its superclass
// (immediately if already compiled, or via the superfix list if it is
// declared later in the same chunk, spec.md §4.7).
func (c *codegen) newClassLike(name string, superIdent *ast.IdentExpr, externSuper bool, isStruct, isModule bool, nivar, nsvar int) *object.Class {
	var super *object.Class
	pending := false
	if superIdent != nil && !externSuper {
		if s, ok := c.classesByName[superIdent.Name]; ok {
			super = s
		} else {
			pending = true
		}
	}

	class, meta := object.NewClassPair(name, super)
	class.NIvar, class.NSvar = nivar, nsvar
	class.IsStruct, class.IsModule = isStruct, isModule
	if superIdent != nil {
		class.SuperName = superIdent.Name
	}
	c.classesByName[name] = class

	if pending {
		c.superfix = append(c.superfix, superfixEntry{superName: superIdent.Name, pos: superIdent.Pos, class: class, meta: meta})
	}
	return class
}

// emitClassMembers walks a class/module's declarations, binding methods,
// static fields, computed properties, enums, and nested classes into the
// member table, and compiling plain instance fields into the synthesized
// `$init`.
func (c *codegen) emitClassMembers(class *object.Class, decls []ast.Stmt, line int) {
	initFn := object.NewFunction("$init", 0, 1)
	hasInit := false
	var userInit *ast.FuncDecl

	for _, d := range decls {
		switch decl := d.(type) {
		case *ast.FuncDecl:
			if decl.Name.Name == "init" {
				userInit = decl
				continue
			}
			fn := c.compileFuncBody(decl, line)
			class.Bind(decl.Name.Name, fn)

		case *ast.VarDeclStmt:
			for _, vd := range decl.Vars {
				c.emitClassVar(class, initFn, &hasInit, decl.Storage == token.STATIC || class.IsModule, vd, line)
			}

		case *ast.EnumDecl:
			class.Bind(decl.Name.Name, c.emitEnumDecl(decl))

		case *ast.ClassDecl:
			inner := c.emitClassDecl(decl, line)
			class.Bind(decl.Name.Name, inner)

		case *ast.ModuleDecl:
			innerClass := c.newClassLike(decl.Name.Name, nil, false, false, true, decl.NIvar, decl.NSvar)
			decl.RuntimeClass = innerClass
			c.classes = append(c.classes, innerClass)
			c.emitClassMembers(innerClass, decl.Decls, line)
			c.classes = c.classes[:len(c.classes)-1]
			class.Bind(decl.Name.Name, innerClass)
		}
	}

	c.finishConstructor(class, initFn, hasInit, userInit, line)
}

// emitClassVar handles one `var`/`const` binding inside a class or module
// body: a computed property is bound as an object.Property; a static (or
// module-level) field is folded to a constant and bound by name; a plain
// instance field's initializer is compiled into initFn.
func (c *codegen) emitClassVar(class *object.Class, initFn *object.Function, hasInit *bool, static bool, vd *ast.VarDecl, line int) {
	switch {
	case vd.Computed:
		prop := object.Property{}
		if vd.Getter != nil {
			prop.Getter = c.compileFuncBody(vd.Getter, line)
		}
		if vd.Setter != nil {
			prop.Setter = c.compileFuncBody(vd.Setter, line)
		}
		class.Bind(vd.Name.Name, prop)

	case !static && vd.Parent != nil && vd.Parent.Storage == token.LAZY:
		class.Bind(vd.Name.Name, c.emitLazyProperty(vd, line))

	case static:
		var v object.Value = object.Null{}
		if vd.Init != nil {
			if cv, ok := evalConstExpr(vd.Init); ok {
				v = cv
			} else {
				c.errAt(vd.Name.Pos, "static field %q initializer must be a constant expression", vd.Name.Name)
			}
		}
		class.Bind(vd.Name.Name, v)

	default:
		// A plain public property also gets a synthesized getter/setter
		// pair bound under its own name (spec.md §4.7's "default
		// getters/setters"), whose getter index is the ivar slot itself;
		// modeled here as a Property wrapping two trivial accessor
		// functions so member lookup has one uniform shape.
		getter := object.NewFunction(vd.Name.Name, 0, 1)
		getter.IR.Add(ir.LOAD, getter.IR.NLocals, 0, vd.Slot+ir.MaxRegisters, line)
		getter.IR.Add(ir.RET, getter.IR.NLocals, 0, 0, line)
		c.finalize(getter)

		setter := object.NewFunction(vd.Name.Name, 1, 2)
		setter.IR.Add(ir.STORE, 1, 0, vd.Slot+ir.MaxRegisters, line)
		setter.IR.Add(ir.RET0, 0, 0, 0, line)
		c.finalize(setter)

		class.Bind(vd.Name.Name, object.Property{Getter: getter, Setter: setter})

		if vd.Init != nil {
			c.pushFunc(initFn)
			src := c.emitExpr(vd.Init)
			initFn.IR.Add(ir.STORE, src, 0, vd.Slot+ir.MaxRegisters, line)
			initFn.IR.Pop()
			initFn.IR.RegisterTempsClear()
			c.popFunc()
			*hasInit = true
		}
	}
}

// emitLazyProperty lowers a `lazy var x = expr` field to a computed
// property (SPEC_FULL.md §5): the getter checks the hidden `$x$init` flag
// ivar, evaluates and stores expr only the first time it is called, and the
// setter is a plain store that also raises the flag so a later get never
// re-evaluates expr. There is no synthesized `$init` entry for a lazy
// field — unlike a plain field, its initializer never runs as part of
// construction.
func (c *codegen) emitLazyProperty(vd *ast.VarDecl, line int) object.Property {
	getter := object.NewFunction(vd.Name.Name, 0, 1)
	c.pushFunc(getter)

	doInit := getter.IR.NewLabel()
	end := getter.IR.NewLabel()

	flag := getter.IR.PushTemp()
	getter.IR.Add(ir.LOAD, flag, 0, vd.FlagSlot+ir.MaxRegisters, line)
	getter.IR.Add(ir.JUMPF, flag, doInit, 0, line)
	getter.IR.Pop()
	getter.IR.Add(ir.JUMP, end, 0, 0, line)

	getter.IR.MarkLabel(doInit, line)
	val := c.emitExpr(vd.Init)
	getter.IR.Add(ir.STORE, val, 0, vd.Slot+ir.MaxRegisters, line)
	getter.IR.Pop()
	one := getter.IR.AddConstant(object.ReservedTrue, line)
	getter.IR.Add(ir.STORE, one, 0, vd.FlagSlot+ir.MaxRegisters, line)
	getter.IR.Pop()

	getter.IR.MarkLabel(end, line)
	result := getter.IR.PushTemp()
	getter.IR.Add(ir.LOAD, result, 0, vd.Slot+ir.MaxRegisters, line)
	getter.IR.Add(ir.RET, result, 0, 0, line)

	c.popFunc()
	c.finalize(getter)

	setter := object.NewFunction(vd.Name.Name, 1, 2)
	setter.IR.Add(ir.STORE, 1, 0, vd.Slot+ir.MaxRegisters, line)
	trueConst := setter.IR.AddConstant(object.ReservedTrue, line)
	setter.IR.Add(ir.STORE, trueConst, 0, vd.FlagSlot+ir.MaxRegisters, line)
	setter.IR.Pop()
	setter.IR.Add(ir.RET0, 0, 0, 0, line)
	c.finalize(setter)

	return object.Property{Getter: getter, Setter: setter}
}

// finishConstructor implements process_constructor (spec.md §4.7): chains
// `$init` to the superclass's own `$init`, then synthesizes or augments
// `init` to call it.
func (c *codegen) finishConstructor(class *object.Class, initFn *object.Function, hasInit bool, userInit *ast.FuncDecl, line int) {
	if hasInit {
		initFn.IR.Add(ir.RET0, 0, 0, 0, line)
		if i := c.pendingSuperfix(class); i >= 0 {
			// the superclass is declared later in the chunk: chain and
			// finalize once applySuperfix has linked it
			c.superfix[i].initFn = initFn
		} else {
			if class.Super != nil {
				if superInit, ok := class.Super.Lookup("$init"); ok {
					idx := initFn.AddConstant(superInit.(*object.Function))
					initFn.IR.PatchInit(idx, line)
				}
			}
			c.finalize(initFn)
		}
		class.Bind("$init", initFn)
	}

	switch {
	case userInit == nil && hasInit:
		synth := object.NewFunction("init", 0, 1)
		idx := synth.AddConstant(initFn)
		synth.IR.PatchInit(idx, line)
		synth.IR.Add(ir.RET, 0, 0, 0, line)
		c.finalize(synth)
		class.Bind("init", synth)

	case userInit != nil:
		fn := c.compileFuncBodyWithInitCall(userInit, hasInit, initFn, line)
		class.Bind("init", fn)
	}
}

// compileFuncBodyWithInitCall compiles a user-written `init` method,
// prepending a call to the synthesized `$init` (if the class has one) and
// appending a trailing `RET 0` so the constructor always returns self even
// if its body falls through (spec.md §4.7 step 3).
func (c *codegen) compileFuncBodyWithInitCall(fd *ast.FuncDecl, hasInit bool, initFn *object.Function, line int) *object.Function {
	fn := object.NewFunction(fd.Name.Name, fd.NParams, fd.NLocals)
	fn.NUpvalues = len(fd.Upvalues)
	for _, u := range fd.Upvalues {
		fn.Upvalues = append(fn.Upvalues, object.UpvalueDesc{IsDirect: u.IsDirect, Index: u.IndexInTarget})
	}
	for _, p := range fd.Params {
		fn.ParamNames = append(fn.ParamNames, p.Name.Name)
	}
	fd.RuntimeFunc = fn
	fn.UseArgs = fd.Variadic

	c.pushFunc(fn)
	for _, s := range fd.Body.Stmts {
		c.emitStmt(s)
		c.buf().RegisterTempsClear()
	}
	c.popFunc()

	if hasInit {
		idx := fn.AddConstant(initFn)
		fn.IR.PatchInit(idx, line)
	}
	if fd.Body.CloseSlot >= 0 {
		fn.IR.Add(ir.CLOSE, fd.Body.CloseSlot, 0, 0, line)
	}
	fn.IR.Add(ir.RET, 0, 0, 0, line)

	c.finalize(fn)
	return fn
}

// emitEnumDecl builds an enum as a module-shaped Class whose members are
// bound to their folded constant values (spec.md §4.4's enum scope is a
// private symbol table of literal nodes; here it becomes the equivalent
// runtime lookup table).
func (c *codegen) emitEnumDecl(ed *ast.EnumDecl) *object.Class {
	class, _ := object.NewClassPair(ed.Name.Name, nil)
	class.IsModule = true

	next := object.Int(0)
	for _, m := range ed.Members {
		if m.Value == nil {
			class.Bind(m.Name.Name, next)
			next++
			continue
		}
		v, ok := evalConstExpr(m.Value)
		if !ok {
			c.errAt(m.Name.Pos, "enum member %q initializer must be a constant expression", m.Name.Name)
			v = object.Int(0)
		}
		class.Bind(m.Name.Name, v)
		if iv, ok := v.(object.Int); ok {
			next = iv + 1
		}
	}
	return class
}

// evalConstExpr folds a small, closed set of compile-time-constant
// expression shapes (literals, keyword literals, unary +/-, and
// literal-operand binary arithmetic) into an object.Value. Static-field,
// module-field, enum-member and parameter-default initializers must fold
// here; any other shape is reported as a compile error by the caller.
func evalConstExpr(e ast.Expr) (object.Value, bool) {
	switch n := e.(type) {
	case *ast.LiteralExpr:
		switch n.Kind {
		case token.INT:
			return object.Int(n.Int), true
		case token.FLOAT:
			return object.Float(n.Float), true
		case token.STRING:
			if n.IsInterpolated() {
				return nil, false
			}
			return object.String(n.Str), true
		}
	case *ast.KeywordExpr:
		switch n.Kind {
		case token.NULLKW:
			return object.Null{}, true
		case token.TRUEKW:
			return object.Bool(true), true
		case token.FALSEKW:
			return object.Bool(false), true
		case token.UNDEFINED:
			return object.Undefined{}, true
		}
	case *ast.UnaryExpr:
		v, ok := evalConstExpr(n.Expr)
		if !ok {
			return nil, false
		}
		switch n.Op {
		case token.MINUS:
			switch vv := v.(type) {
			case object.Int:
				return -vv, true
			case object.Float:
				return -vv, true
			}
		case token.PLUS:
			return v, true
		}
	case *ast.BinaryExpr:
		l, lok := evalConstExpr(n.Left)
		r, rok := evalConstExpr(n.Right)
		if !lok || !rok {
			return nil, false
		}
		return foldConstBinary(n.Op, l, r)
	}
	return nil, false
}

func foldConstBinary(op token.Token, l, r object.Value) (object.Value, bool) {
	li, liok := l.(object.Int)
	ri, riok := r.(object.Int)
	if liok && riok {
		switch op {
		case token.PLUS:
			return li + ri, true
		case token.MINUS:
			return li - ri, true
		case token.STAR:
			return li * ri, true
		case token.SLASH:
			if ri == 0 {
				return nil, false
			}
			return li / ri, true
		case token.PERCENT:
			if ri == 0 {
				return nil, false
			}
			return li % ri, true
		case token.SHL:
			return li << uint(ri), true
		case token.SHR:
			return li >> uint(ri), true
		case token.PIPE:
			return li | ri, true
		case token.AMP:
			return li & ri, true
		case token.CARET:
			return li ^ ri, true
		}
	}
	return nil, false
}
