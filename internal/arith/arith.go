// Package arith synthesizes the abs/mul/div subroutines spec.md §4.2
// describes: shift-and-add/subtract routines over a fixed set of
// well-known global cells, since the target VM has no native multiply,
// divide, or modulo.
package arith

import "accvm/internal/ir"

// Synth implements ir.Synthesizer. It is stateless; every call site shares
// the same well-known ABI cells via the Builder's Registry.
type Synth struct{}

// cells bundles the shared ABI globals (spec.md §4.2) plus the private
// scratch cells div/mul need internally. Sharing one struct keeps the
// three emit* methods from repeating lookups.
type cells struct {
	arg1, arg2     *ir.Variable
	sign1, sign2   *ir.Variable
	result, result2 *ir.Variable
	temp           *ir.Variable
	parity         *ir.Variable // mul: doubled halved-copy, used to test oddness
	divisorCopy    *ir.Variable // div: |divisor|, preserved across the reduce loop
	power          *ir.Variable // div: scale-up/reduce weight
	remainder      *ir.Variable // div: running |dividend| being reduced
	quotient       *ir.Variable // div: accumulated |quotient|
	zero, one, negOne *ir.Variable
}

func gather(reg *ir.Registry) *cells {
	return &cells{
		arg1:        reg.Scalar("", "arg1"),
		arg2:        reg.Scalar("", "arg2"),
		sign1:       reg.Scalar("", "sign1"),
		sign2:       reg.Scalar("", "sign2"),
		result:      reg.Scalar("", "result"),
		result2:     reg.Scalar("", "result2"),
		temp:        reg.Scalar("", "temp"),
		parity:      reg.Scalar("", "mul_parity"),
		divisorCopy: reg.Scalar("", "divisor_copy"),
		power:       reg.Scalar("", "power"),
		remainder:   reg.Scalar("", "remainder"),
		quotient:    reg.Scalar("", "quotient"),
		zero:        reg.Const(0),
		one:         reg.Const(1),
		negOne:      reg.Const(-1),
	}
}

// Synthesize emits abs unconditionally (mul and div both depend on it),
// plus mul and/or div when the costly set requires them (spec.md §4.1
// emission order step (ii), §4.2 "costly-op gating").
func (Synth) Synthesize(b *ir.Builder, costly map[string]bool) map[string]*ir.ProcInfo {
	c := gather(b.Registry())
	procs := make(map[string]*ir.ProcInfo)

	procs["abs"] = emitAbs(b, c)
	if costly["*"] {
		procs["mul"] = emitMul(b, c)
	}
	if costly["/"] || costly["%"] {
		procs["div"] = emitDiv(b, c)
	}
	return procs
}

func v(x *ir.Variable) ir.Operand { return ir.Value(x) }

// emitAbs: for each of (arg1,sign1) and (arg2,sign2), negate and record
// sign -1 if negative, else record sign +1 (spec.md §4.2 "abs").
func emitAbs(b *ir.Builder, c *cells) *ir.ProcInfo {
	entry := b.NewLabel()
	b.EmitLabel(entry, ir.LabelEntry, "abs")
	retVar := b.Registry().Scalar("abs", "$return")

	absOne := func(x, sign *ir.Variable) {
		negLabel := b.NewLabel()
		doneLabel := b.NewLabel()
		b.Emit(&ir.CondJump{L: v(x), Op: "<", R: v(c.zero), Label: negLabel}, "")
		b.Emit(&ir.Assign{Tgt: v(sign), Src: v(c.one)}, "non-negative")
		b.Emit(&ir.Jump{Label: doneLabel}, "")
		b.EmitLabel(negLabel, ir.LabelHelper, "abs")
		b.Emit(&ir.BinOp{Tgt: v(x), L: v(c.zero), Op: "-", R: v(x)}, "negate")
		b.Emit(&ir.Assign{Tgt: v(sign), Src: v(c.negOne)}, "")
		b.EmitLabel(doneLabel, ir.LabelHelper, "abs")
	}
	absOne(c.arg1, c.sign1)
	absOne(c.arg2, c.sign2)

	b.Emit(&ir.Return{RetVar: retVar}, "")
	info := &ir.ProcInfo{Name: "abs", EntryLabel: entry, ReturnVar: retVar}
	b.DefineProc(info)
	return info
}

// emitMul: Russian-peasant multiplication, signed via emitAbs (spec.md §4.2
// "mul").
func emitMul(b *ir.Builder, c *cells) *ir.ProcInfo {
	entry := b.NewLabel()
	b.EmitLabel(entry, ir.LabelEntry, "mul")
	retVar := b.Registry().Scalar("mul", "$return")

	b.Emit(&ir.ProcCall{Name: "abs"}, "normalize signs before multiplying")
	b.Emit(&ir.Assign{Tgt: v(c.result), Src: v(c.zero)}, "")

	loopStart := b.NewLabel()
	loopEnd := b.NewLabel()
	b.EmitLabel(loopStart, ir.LabelLoopStart, "mul")
	b.Emit(&ir.CondJump{L: v(c.arg2), Op: "=", R: v(c.zero), Label: loopEnd}, "while arg2 > 0")

	// oddness test: halve a copy, re-double it, and compare to the original.
	b.Emit(&ir.Assign{Tgt: v(c.temp), Src: v(c.arg2)}, "copy for parity test")
	b.Emit(&ir.Half{Tgt: v(c.temp)}, "")
	b.Emit(&ir.BinOp{Tgt: v(c.parity), L: v(c.temp), Op: "+", R: v(c.temp)}, "re-double")
	b.Emit(&ir.BinOp{Tgt: v(c.parity), L: v(c.arg2), Op: "-", R: v(c.parity)}, "nonzero iff arg2 is odd")

	evenLabel := b.NewLabel()
	b.Emit(&ir.CondJump{L: v(c.parity), Op: "=", R: v(c.zero), Label: evenLabel}, "")
	b.Emit(&ir.BinOp{Tgt: v(c.result), L: v(c.result), Op: "+", R: v(c.arg1)}, "odd: accumulate")
	b.EmitLabel(evenLabel, ir.LabelHelper, "mul")

	b.Emit(&ir.BinOp{Tgt: v(c.arg1), L: v(c.arg1), Op: "+", R: v(c.arg1)}, "double")
	b.Emit(&ir.Half{Tgt: v(c.arg2)}, "halve")
	b.Emit(&ir.Jump{Label: loopStart}, "")
	b.EmitLabel(loopEnd, ir.LabelLoopEnd, "mul")

	skipNegate := b.NewLabel()
	b.Emit(&ir.BinOp{Tgt: v(c.temp), L: v(c.sign1), Op: "-", R: v(c.sign2)}, "0 iff signs match")
	b.Emit(&ir.CondJump{L: v(c.temp), Op: "=", R: v(c.zero), Label: skipNegate}, "")
	b.Emit(&ir.BinOp{Tgt: v(c.result), L: v(c.zero), Op: "-", R: v(c.result)}, "signs differ: negate product")
	b.EmitLabel(skipNegate, ir.LabelHelper, "mul")

	b.Emit(&ir.Return{RetVar: retVar}, "")
	info := &ir.ProcInfo{Name: "mul", EntryLabel: entry, ReturnVar: retVar}
	b.DefineProc(info)
	return info
}

// emitDiv: zero-divisor short-circuit, then scale-up/reduce long division
// on absolute values, then sign correction per the §4.2 table implementing
// floor division with a divisor-signed remainder.
func emitDiv(b *ir.Builder, c *cells) *ir.ProcInfo {
	entry := b.NewLabel()
	b.EmitLabel(entry, ir.LabelEntry, "div")
	retVar := b.Registry().Scalar("div", "$return")

	zeroDivisor := b.NewLabel()
	b.Emit(&ir.CondJump{L: v(c.arg2), Op: "=", R: v(c.zero), Label: zeroDivisor}, "")

	b.Emit(&ir.ProcCall{Name: "abs"}, "normalize signs before dividing")
	b.Emit(&ir.Assign{Tgt: v(c.divisorCopy), Src: v(c.arg2)}, "preserve |divisor|")
	b.Emit(&ir.Assign{Tgt: v(c.remainder), Src: v(c.arg1)}, "running |dividend|")
	b.Emit(&ir.Assign{Tgt: v(c.power), Src: v(c.one)}, "")
	b.Emit(&ir.Assign{Tgt: v(c.quotient), Src: v(c.zero)}, "")

	// scale-up: double arg2 and power until arg2 > remainder.
	scaleStart := b.NewLabel()
	scaleEnd := b.NewLabel()
	b.EmitLabel(scaleStart, ir.LabelLoopStart, "div")
	b.Emit(&ir.BinOp{Tgt: v(c.temp), L: v(c.arg2), Op: "-", R: v(c.remainder)}, "")
	b.Emit(&ir.CondJump{L: v(c.temp), Op: ">", R: v(c.zero), Label: scaleEnd}, "stop once arg2 > remainder")
	b.Emit(&ir.BinOp{Tgt: v(c.arg2), L: v(c.arg2), Op: "+", R: v(c.arg2)}, "")
	b.Emit(&ir.BinOp{Tgt: v(c.power), L: v(c.power), Op: "+", R: v(c.power)}, "")
	b.Emit(&ir.Jump{Label: scaleStart}, "")
	b.EmitLabel(scaleEnd, ir.LabelLoopEnd, "div")

	// reduce: while power > 0, subtract/accumulate when remainder >= arg2.
	reduceStart := b.NewLabel()
	reduceEnd := b.NewLabel()
	b.EmitLabel(reduceStart, ir.LabelLoopStart, "div")
	b.Emit(&ir.CondJump{L: v(c.power), Op: "=", R: v(c.zero), Label: reduceEnd}, "")
	skipStep := b.NewLabel()
	b.Emit(&ir.BinOp{Tgt: v(c.temp), L: v(c.remainder), Op: "-", R: v(c.arg2)}, "")
	b.Emit(&ir.CondJump{L: v(c.temp), Op: "<", R: v(c.zero), Label: skipStep}, "skip when remainder < arg2")
	b.Emit(&ir.Assign{Tgt: v(c.remainder), Src: v(c.temp)}, "remainder -= arg2")
	b.Emit(&ir.BinOp{Tgt: v(c.quotient), L: v(c.quotient), Op: "+", R: v(c.power)}, "")
	b.EmitLabel(skipStep, ir.LabelHelper, "div")
	b.Emit(&ir.Half{Tgt: v(c.arg2)}, "")
	b.Emit(&ir.Half{Tgt: v(c.power)}, "")
	b.Emit(&ir.Jump{Label: reduceStart}, "")
	b.EmitLabel(reduceEnd, ir.LabelLoopEnd, "div")

	b.Emit(&ir.Assign{Tgt: v(c.result), Src: v(c.quotient)}, "")
	b.Emit(&ir.Assign{Tgt: v(c.result2), Src: v(c.remainder)}, "")

	// sign correction table (spec.md §4.2).
	signDone := b.NewLabel()
	sameSign := b.NewLabel()
	b.Emit(&ir.BinOp{Tgt: v(c.temp), L: v(c.sign1), Op: "-", R: v(c.sign2)}, "0 iff signs match")
	b.Emit(&ir.CondJump{L: v(c.temp), Op: "=", R: v(c.zero), Label: sameSign}, "")

	// different signs.
	remZero := b.NewLabel()
	b.Emit(&ir.CondJump{L: v(c.result2), Op: "=", R: v(c.zero), Label: remZero}, "")
	s1neg := b.NewLabel()
	remDone := b.NewLabel()
	b.Emit(&ir.CondJump{L: v(c.sign1), Op: "<", R: v(c.zero), Label: s1neg}, "")
	// sign1=+1, sign2=-1
	b.Emit(&ir.BinOp{Tgt: v(c.temp), L: v(c.result), Op: "+", R: v(c.one)}, "")
	b.Emit(&ir.BinOp{Tgt: v(c.result), L: v(c.zero), Op: "-", R: v(c.temp)}, "quotient := -(quotient+1)")
	b.Emit(&ir.BinOp{Tgt: v(c.result2), L: v(c.result2), Op: "-", R: v(c.divisorCopy)}, "")
	b.Emit(&ir.Jump{Label: remDone}, "")
	b.EmitLabel(s1neg, ir.LabelHelper, "div")
	// sign1=-1, sign2=+1
	b.Emit(&ir.BinOp{Tgt: v(c.temp), L: v(c.result), Op: "+", R: v(c.one)}, "")
	b.Emit(&ir.BinOp{Tgt: v(c.result), L: v(c.zero), Op: "-", R: v(c.temp)}, "quotient := -(quotient+1)")
	b.Emit(&ir.BinOp{Tgt: v(c.result2), L: v(c.divisorCopy), Op: "-", R: v(c.result2)}, "")
	b.EmitLabel(remDone, ir.LabelHelper, "div")
	b.Emit(&ir.Jump{Label: signDone}, "")
	b.EmitLabel(remZero, ir.LabelHelper, "div")
	b.Emit(&ir.BinOp{Tgt: v(c.result), L: v(c.zero), Op: "-", R: v(c.result)}, "remainder already 0: just negate quotient")
	b.Emit(&ir.Jump{Label: signDone}, "")

	b.EmitLabel(sameSign, ir.LabelHelper, "div")
	bothNeg := b.NewLabel()
	b.Emit(&ir.CondJump{L: v(c.sign1), Op: "<", R: v(c.zero), Label: bothNeg}, "")
	b.Emit(&ir.Jump{Label: signDone}, "both positive: no correction")
	b.EmitLabel(bothNeg, ir.LabelHelper, "div")
	b.Emit(&ir.BinOp{Tgt: v(c.result2), L: v(c.zero), Op: "-", R: v(c.result2)}, "both negative: negate remainder only")

	b.EmitLabel(signDone, ir.LabelHelper, "div")
	doneLabel := b.NewLabel()
	b.Emit(&ir.Jump{Label: doneLabel}, "")

	b.EmitLabel(zeroDivisor, ir.LabelHelper, "div")
	b.Emit(&ir.Assign{Tgt: v(c.result), Src: v(c.zero)}, "")
	b.Emit(&ir.Assign{Tgt: v(c.result2), Src: v(c.zero)}, "")

	b.EmitLabel(doneLabel, ir.LabelHelper, "div")
	b.Emit(&ir.Return{RetVar: retVar}, "")
	info := &ir.ProcInfo{Name: "div", EntryLabel: entry, ReturnVar: retVar}
	b.DefineProc(info)
	return info
}
