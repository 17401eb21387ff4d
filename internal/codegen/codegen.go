// Package codegen implements the code generator (spec.md C4): lowering IR
// to the target VM's instruction set, including access-mode compilation,
// array indexing, and procedure call linkage.
package codegen

import (
	"accvm/internal/diagnostics"
	"accvm/internal/ir"
	"accvm/internal/memlayout"
	"accvm/internal/vmisa"
)

// returnSequenceOffset is the constant `k` passed to every SET_HERE
// pseudo-op: a call sequence is always exactly [SET_HERE, STORE, JUMP],
// three instructions, so the resolved return address (spec.md §4.6) always
// lands on the instruction right after the JUMP regardless of how many
// argument-copy instructions preceded the SET_HERE.
const returnSequenceOffset = 3

type gen struct {
	prog *ir.Program
	mm   *memlayout.Map
	out  []vmisa.Instr
}

// Generate lowers a built, memory-mapped IR program into a VM instruction
// stream still carrying label pseudo-ops (internal/vmisa.Resolve strips
// them). It injects the prologue (spec.md §4.4) at the main entry label and
// appends HALT after the whole stream.
func Generate(prog *ir.Program, mm *memlayout.Map) ([]vmisa.Instr, error) {
	g := &gen{prog: prog, mm: mm}
	for _, instr := range prog.Instrs {
		if err := g.emit(instr); err != nil {
			return nil, err
		}
		if lbl, ok := instr.(*ir.Label); ok && lbl.ID == prog.MainLabel {
			if err := g.emitPrologue(); err != nil {
				return nil, err
			}
		}
	}
	g.out = append(g.out, vmisa.NewHalt())
	return g.out, nil
}

func (g *gen) addr(v *ir.Variable) (int64, error) {
	e, ok := g.mm.Lookup(v.Name)
	if !ok {
		return 0, diagnostics.NewMemoryError(v.Name)
	}
	return e.Address, nil
}

// emitPrologue materializes every non-parameter array's base pointer and
// every constant's value, once, before main's first command (spec.md §4.4
// "Prologue").
func (g *gen) emitPrologue() error {
	for _, va := range g.prog.Vars.All() {
		switch {
		case va.IsArray && !va.IsParameter:
			e, ok := g.mm.Lookup(va.Name)
			if !ok {
				return diagnostics.NewMemoryError(va.Name)
			}
			basePtr := e.ArrayBaseAddress - va.ArrayStart
			g.out = append(g.out, vmisa.NewSet(basePtr), vmisa.NewStore(e.Address))
		case va.IsConst:
			addr, err := g.addr(va)
			if err != nil {
				return err
			}
			g.out = append(g.out, vmisa.NewSet(va.ConstValue), vmisa.NewStore(addr))
		}
	}
	return nil
}

// loadOperand emits LOAD or LOADI depending on op's access mode.
func (g *gen) loadOperand(op ir.Operand) error {
	a, err := g.addr(op.Var)
	if err != nil {
		return err
	}
	if op.Mode == ir.ByReference {
		g.out = append(g.out, vmisa.NewLoadI(a))
	} else {
		g.out = append(g.out, vmisa.NewLoad(a))
	}
	return nil
}

func (g *gen) storeOperand(op ir.Operand) error {
	a, err := g.addr(op.Var)
	if err != nil {
		return err
	}
	if op.Mode == ir.ByReference {
		g.out = append(g.out, vmisa.NewStoreI(a))
	} else {
		g.out = append(g.out, vmisa.NewStore(a))
	}
	return nil
}

func (g *gen) addOperand(op ir.Operand) error {
	a, err := g.addr(op.Var)
	if err != nil {
		return err
	}
	if op.Mode == ir.ByReference {
		g.out = append(g.out, vmisa.NewAddI(a))
	} else {
		g.out = append(g.out, vmisa.NewAdd(a))
	}
	return nil
}

func (g *gen) subOperand(op ir.Operand) error {
	a, err := g.addr(op.Var)
	if err != nil {
		return err
	}
	if op.Mode == ir.ByReference {
		g.out = append(g.out, vmisa.NewSubI(a))
	} else {
		g.out = append(g.out, vmisa.NewSub(a))
	}
	return nil
}

func (g *gen) emit(in ir.Instr) error {
	switch n := in.(type) {
	case *ir.Label:
		g.out = append(g.out, vmisa.NewLabelDef(n.ID))
		return nil
	case *ir.Jump:
		g.out = append(g.out, vmisa.NewJumpLabel(n.Label))
		return nil
	case *ir.CondJump:
		return g.emitCondJump(n)
	case *ir.Assign:
		if err := g.loadOperand(n.Src); err != nil {
			return err
		}
		return g.storeOperand(n.Tgt)
	case *ir.BinOp:
		return g.emitBinOp(n)
	case *ir.Half:
		if err := g.loadOperand(n.Tgt); err != nil {
			return err
		}
		g.out = append(g.out, vmisa.NewHalf())
		return g.storeOperand(n.Tgt)
	case *ir.ArrayRead:
		return g.emitArrayRead(n)
	case *ir.ArrayWrite:
		return g.emitArrayWrite(n)
	case *ir.Read:
		g.out = append(g.out, vmisa.NewGet(0))
		return g.storeOperand(n.Tgt)
	case *ir.Write:
		if err := g.loadOperand(n.Val); err != nil {
			return err
		}
		g.out = append(g.out, vmisa.NewPut(0))
		return nil
	case *ir.ProcCall:
		return g.emitProcCall(n)
	case *ir.Return:
		a, err := g.addr(n.RetVar)
		if err != nil {
			return err
		}
		g.out = append(g.out, vmisa.NewRtrn(a))
		return nil
	default:
		return diagnostics.NewASTError(diagnostics.Location{}, "codegen: unhandled IR instruction")
	}
}

// emitCondJump lowers l op r into LOAD l; SUB r; <conditional jump>
// (spec.md §4.5). Op is always one of {=,>,<}: the IR builder normalizes
// ≥/≤/≠ away before codegen ever sees a CondJump.
func (g *gen) emitCondJump(n *ir.CondJump) error {
	if err := g.loadOperand(n.L); err != nil {
		return err
	}
	if err := g.subOperand(n.R); err != nil {
		return err
	}
	switch n.Op {
	case "=":
		g.out = append(g.out, vmisa.NewJZeroLabel(n.Label))
	case ">":
		g.out = append(g.out, vmisa.NewJPosLabel(n.Label))
	case "<":
		g.out = append(g.out, vmisa.NewJNegLabel(n.Label))
	default:
		return diagnostics.NewOperatorError(n.Op, "CondJump")
	}
	return nil
}

// emitBinOp lowers tgt := l +/- r. By the time code generation runs, *, /,
// % have already been rewritten into ProcCall+Assign by internal/ir and
// internal/arith; any other operator reaching here is a builder bug.
func (g *gen) emitBinOp(n *ir.BinOp) error {
	if err := g.loadOperand(n.L); err != nil {
		return err
	}
	switch n.Op {
	case "+":
		if err := g.addOperand(n.R); err != nil {
			return err
		}
	case "-":
		if err := g.subOperand(n.R); err != nil {
			return err
		}
	default:
		return diagnostics.NewOperatorError(n.Op, "BinOp")
	}
	return g.storeOperand(n.Tgt)
}

// emitArrayRead lowers t := arr[idx] as LOAD arr; ADD idx; LOADI 0; STORE t
// (spec.md §4.4 "Arrays"): after LOAD+ADD the accumulator itself holds the
// effective address, so the indirect load's operand 0 means "dereference
// the accumulator".
func (g *gen) emitArrayRead(n *ir.ArrayRead) error {
	if err := g.loadOperand(n.Arr); err != nil {
		return err
	}
	if err := g.addOperand(n.Idx); err != nil {
		return err
	}
	g.out = append(g.out, vmisa.NewLoadI(0))
	return g.storeOperand(n.Tgt)
}

// emitArrayWrite lowers arr[idx] := val via a scratch cell holding the
// computed effective address (spec.md §4.4 "Arrays").
func (g *gen) emitArrayWrite(n *ir.ArrayWrite) error {
	if err := g.loadOperand(n.Arr); err != nil {
		return err
	}
	if err := g.addOperand(n.Idx); err != nil {
		return err
	}
	scratch, err := g.addr(g.prog.Vars.Scalar("", "$scratch_addr"))
	if err != nil {
		return err
	}
	g.out = append(g.out, vmisa.NewStore(scratch))
	if err := g.loadOperand(n.Val); err != nil {
		return err
	}
	g.out = append(g.out, vmisa.NewStoreI(scratch))
	return nil
}

// emitProcCall emits argument linkage (when Args is non-empty — a call to
// a user procedure) followed by the return-address/jump sequence shared by
// every callable, including the Args-less calls internal/arith makes to
// abs/mul/div (spec.md §4.4 "Procedure linkage").
func (g *gen) emitProcCall(n *ir.ProcCall) error {
	info, ok := g.prog.Procs[n.Name]
	if !ok {
		return diagnostics.NewSymbolError(diagnostics.Location{}, n.Name)
	}
	if len(n.Args) > 0 {
		if len(n.Args) != len(info.Formals) {
			return diagnostics.NewASTError(diagnostics.Location{}, "call to %q passes %d arguments, expected %d", n.Name, len(n.Args), len(info.Formals))
		}
		for i, actual := range n.Args {
			formal := info.Formals[i]
			formalAddr, err := g.addr(formal)
			if err != nil {
				return err
			}
			if actual.IsPointer {
				actualAddr, err := g.addr(actual)
				if err != nil {
					return err
				}
				g.out = append(g.out, vmisa.NewLoad(actualAddr))
			} else {
				actualAddr, err := g.addr(actual)
				if err != nil {
					return err
				}
				g.out = append(g.out, vmisa.NewSet(actualAddr))
			}
			g.out = append(g.out, vmisa.NewStore(formalAddr))
		}
	}

	retAddr, err := g.addr(info.ReturnVar)
	if err != nil {
		return err
	}
	g.out = append(g.out, vmisa.NewSetHere(returnSequenceOffset))
	g.out = append(g.out, vmisa.NewStore(retAddr))
	g.out = append(g.out, vmisa.NewJumpLabel(info.EntryLabel))
	return nil
}
