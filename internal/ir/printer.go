package ir

import (
	"fmt"
	"strings"
)

// preludeDecls is the fixed list of built-in function declarations every
// module prelude carries, regardless of whether a given function actually
// calls them (§6).
var preludeDecls = []string{
	"declare void @print(ptr)",
	"declare void @println(ptr)",
	"declare ptr @getString()",
	"declare i32 @getInt()",
	"declare ptr @__alloc_array(i32)",
	"declare ptr @__alloc_object(i32)",
}

// Print renders mod in the textual IR form §6 fixes as the observable,
// golden-test-stable output: a prelude, globals, then every function.
func Print(mod *Module) string {
	var b strings.Builder
	for _, d := range preludeDecls {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	for _, g := range mod.Globals {
		printGlobal(&b, g)
	}
	if len(mod.Globals) > 0 {
		b.WriteByte('\n')
	}

	for i, fn := range mod.Functions {
		if i > 0 {
			b.WriteByte('\n')
		}
		printFunction(&b, fn)
	}
	return b.String()
}

func printGlobal(b *strings.Builder, g *Value) {
	if g.Kind != KindGlobal {
		return
	}
	if g.Init == nil {
		fmt.Fprintf(b, "@%s = external global %s\n", g.Name, elemTypeName(g.Typ))
		return
	}
	if g.Init.Kind == KindLitString {
		fmt.Fprintf(b, "@%s = constant [%d x i8] c%q\n", g.Name, len(g.Init.StrVal)+1, g.Init.StrVal+"\x00")
		return
	}
	qualifier := "global"
	if g.IsConstant {
		qualifier = "constant"
	}
	fmt.Fprintf(b, "@%s = %s %s\n", g.Name, qualifier, g.Init.Data())
}

func elemTypeName(t Type) string {
	if pt, ok := t.(PtrType); ok {
		return pt.Elem.String()
	}
	return t.String()
}

func printFunction(b *strings.Builder, fn *Function) {
	args := make([]string, len(fn.Args))
	for i, a := range fn.Args {
		args[i] = fmt.Sprintf("%s %%%s", a.Typ.String(), a.Name)
	}
	fmt.Fprintf(b, "define %s @%s(%s) {\n", fn.RetType.String(), fn.Name, strings.Join(args, ", "))

	for i, blk := range fn.Blocks {
		if i > 0 {
			fmt.Fprintf(b, "%s:\n", blk.Name)
		}
		for _, phi := range blk.Phis {
			printInstr(b, phi)
		}
		for _, ins := range blk.Body {
			printInstr(b, ins)
		}
		if blk.Term != nil {
			printInstr(b, blk.Term)
		}
	}
	b.WriteString("}\n")
}

func printInstr(b *strings.Builder, ins *Instruction) {
	b.WriteString("  ")
	switch ins.Kind {
	case IBinary:
		fmt.Fprintf(b, "%%%s = %s %s, %s\n", ins.Def.Name, ins.BinOp.String(), ins.L.Data(), ins.R.Data())
	case ICompare:
		fmt.Fprintf(b, "%%%s = icmp %s %s, %s\n", ins.Def.Name, ins.CmpOp.String(), ins.L.Data(), ins.R.Data())
	case ILoad:
		fmt.Fprintf(b, "%%%s = load %s, %s\n", ins.Def.Name, ins.Def.Typ.String(), ins.Addr.Data())
	case IStore:
		fmt.Fprintf(b, "store %s, %s\n", ins.Src.Data(), ins.Addr.Data())
	case IAlloca:
		fmt.Fprintf(b, "%%%s = alloca %s\n", ins.Local.Name, ins.Local.PointeeType().String())
	case IGet:
		printGet(b, ins)
	case ICall:
		printCall(b, ins)
	case IPhi:
		printPhi(b, ins)
	case IJump:
		fmt.Fprintf(b, "br label %%%s\n", ins.Targets[0].Name)
	case IBranch:
		fmt.Fprintf(b, "br i1 %s, label %%%s, label %%%s\n", condText(ins.Cond), ins.Targets[1].Name, ins.Targets[0].Name)
	case IReturn:
		if ins.RetVal == nil {
			b.WriteString("ret void\n")
		} else {
			fmt.Fprintf(b, "ret %s\n", ins.RetVal.Data())
		}
	case IUnreachable:
		b.WriteString("unreachable\n")
	}
}

// condText prints a branch condition's value without repeating the i1
// type the "br i1 ..." literal already carries.
func condText(v *Value) string {
	switch v.Kind {
	case KindLitBool:
		return fmt.Sprintf("%t", v.BoolVal)
	case KindUndefined:
		return "undef"
	default:
		return "%" + v.Name
	}
}

func printGet(b *strings.Builder, ins *Instruction) {
	switch {
	case ins.HasIdx:
		fmt.Fprintf(b, "%%%s = getelementptr %s, %s, %s\n", ins.Def.Name, ins.Def.Typ.String(), ins.Addr.Data(), ins.Index.Data())
	case ins.HasMem:
		fmt.Fprintf(b, "%%%s = getelementptr %s, %s, i32 %d\n", ins.Def.Name, ins.Def.Typ.String(), ins.Addr.Data(), ins.Member)
	default:
		fmt.Fprintf(b, "%%%s = getelementptr %s, %s\n", ins.Def.Name, ins.Def.Typ.String(), ins.Addr.Data())
	}
}

func printCall(b *strings.Builder, ins *Instruction) {
	args := make([]string, len(ins.Args))
	for i, a := range ins.Args {
		args[i] = a.Data()
	}
	callee := "@" + ins.Builtin
	if ins.Callee != nil {
		callee = "@" + ins.Callee.Name
	}
	if ins.Def != nil {
		fmt.Fprintf(b, "%%%s = call %s %s(%s)\n", ins.Def.Name, ins.Def.Typ.String(), callee, strings.Join(args, ", "))
		return
	}
	fmt.Fprintf(b, "call void %s(%s)\n", callee, strings.Join(args, ", "))
}

func printPhi(b *strings.Builder, ins *Instruction) {
	entries := make([]string, len(ins.Entries))
	for i, e := range ins.Entries {
		entries[i] = fmt.Sprintf("[ %s, %%%s ]", e.Value.Data(), e.From.Name)
	}
	fmt.Fprintf(b, "%%%s = phi %s %s\n", ins.Def.Name, ins.Def.Typ.String(), strings.Join(entries, ", "))
}
