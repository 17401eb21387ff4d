package ir

import (
	"accvm/internal/ast"
	"accvm/internal/diagnostics"
	"accvm/internal/symtab"
)

// Synthesizer emits the arithmetic subroutines (spec.md C2, internal/arith)
// at the point the builder's emission order (§4.1) reserves for them. It is
// an interface, not a direct internal/arith import, so internal/arith can
// depend on internal/ir without a cycle.
type Synthesizer interface {
	Synthesize(b *Builder, costly map[string]bool) map[string]*ProcInfo
}

// Builder walks an AST and produces an IR Program (spec.md C1). It never
// mutates the symbol table it consumes, and it never reorders AST-visible
// statements (spec.md §4.1 builder contract).
type Builder struct {
	syms   *symtab.Table
	reg    *Registry
	instrs []Instr
	labels int
	procs  map[string]*ProcInfo
	arith  map[string]*ProcInfo // abs/mul/div, filled by Synthesize
}

func newBuilder(syms *symtab.Table) *Builder {
	return &Builder{
		syms:  syms,
		reg:   NewRegistry(),
		procs: make(map[string]*ProcInfo),
	}
}

// Registry exposes the variable registry to internal/arith.
func (b *Builder) Registry() *Registry { return b.reg }

// NewLabel allocates a fresh symbolic label id.
func (b *Builder) NewLabel() int {
	id := b.labels
	b.labels++
	return id
}

// Emit appends an instruction, optionally stamping a diagnostic comment.
func (b *Builder) Emit(i Instr, comment string) {
	if comment != "" {
		withComment(i, comment)
	}
	b.instrs = append(b.instrs, i)
}

// EmitLabel is shorthand for Emit(&Label{...}, "").
func (b *Builder) EmitLabel(id int, kind LabelKind, proc string) {
	b.Emit(&Label{ID: id, Kind: kind, Proc: proc}, "")
}

// DefineProc registers a callable's linkage info (used by internal/arith
// for abs/mul/div, and internally for user procedures and main).
func (b *Builder) DefineProc(info *ProcInfo) { b.procs[info.Name] = info }

// Build runs the whole IR-construction pipeline: emission order (i)-(iv)
// from spec.md §4.1, driven by synth for step (ii).
func Build(prog *ast.Program, syms *symtab.Table, synth Synthesizer) (*Program, error) {
	b := newBuilder(syms)
	b.reg.Scalar("", "$scratch_addr") // codegen's ArrayWrite effective-address cell

	mainEntry := b.NewLabel()
	b.Emit(&Jump{Label: mainEntry}, "cold start: skip subroutine and procedure bodies")

	b.arith = synth.Synthesize(b, syms.CostlyOperations())

	for _, proc := range prog.Procs {
		if err := b.buildProcedure(proc); err != nil {
			return nil, err
		}
	}

	b.EmitLabel(mainEntry, LabelEntry, "main")
	b.DefineProc(&ProcInfo{Name: "main", EntryLabel: mainEntry})
	for _, d := range prog.Decls {
		if err := b.registerDecl("", d); err != nil {
			return nil, err
		}
	}
	if err := b.buildCommands("", prog.Cmds); err != nil {
		return nil, err
	}

	return &Program{Instrs: b.instrs, Vars: b.reg, Procs: b.procs, MainLabel: mainEntry}, nil
}

func (b *Builder) registerDecl(scope string, d *ast.Declaration) error {
	if d.ArrayBounds != nil {
		b.reg.ArrayBase(scope, d.Name, d.ArrayBounds.Lo, d.ArrayBounds.Hi)
	} else {
		b.reg.Scalar(scope, d.Name)
	}
	return nil
}

func (b *Builder) buildProcedure(proc *ast.Procedure) error {
	entry := b.NewLabel()
	retVar := b.reg.Scalar(proc.Name, "$return")
	retVar.IsPointer = false // the return-var cell holds a line number, not an address

	var formals []*Variable
	for _, p := range proc.Params {
		formals = append(formals, b.reg.Param(proc.Name, p.Name, p.IsArray))
	}
	b.DefineProc(&ProcInfo{Name: proc.Name, EntryLabel: entry, Formals: formals, ReturnVar: retVar})

	b.EmitLabel(entry, LabelEntry, proc.Name)
	for _, d := range proc.Decls {
		if err := b.registerDecl(proc.Name, d); err != nil {
			return err
		}
	}
	if err := b.buildCommands(proc.Name, proc.Cmds); err != nil {
		return err
	}
	b.Emit(&Return{RetVar: retVar}, "return to caller")
	return nil
}

func (b *Builder) buildCommands(scope string, cmds []ast.Command) error {
	for _, c := range cmds {
		if err := b.buildCommand(scope, c); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildCommand(scope string, c ast.Command) error {
	switch n := c.(type) {
	case *ast.Assign:
		return b.buildAssign(scope, n)
	case *ast.If:
		return b.buildIf(scope, n)
	case *ast.While:
		return b.buildWhile(scope, n)
	case *ast.Repeat:
		return b.buildRepeat(scope, n)
	case *ast.For:
		return b.buildFor(scope, n)
	case *ast.ProcCall:
		return b.buildProcCall(scope, n)
	case *ast.Read:
		return b.buildRead(scope, n)
	case *ast.Write:
		return b.buildWrite(scope, n)
	default:
		return diagnostics.NewASTError(c.Location(), "unrecognized command node")
	}
}

// --- identifiers & values ---

func (b *Builder) lookup(scope string, name string, loc ast.Location) (*symtab.Symbol, error) {
	sym, ok := b.syms.Lookup(scope, name)
	if !ok {
		return nil, diagnostics.NewSymbolError(loc, name)
	}
	return sym, nil
}

// scalarOperand resolves a plain (non-indexed) identifier to its natural
// operand: BY_VALUE for a local scalar, BY_REFERENCE for a parameter
// (spec.md §4.1 "Scalars" rule).
func (b *Builder) scalarOperand(scope string, id *ast.Ident) (Operand, error) {
	sym, err := b.lookup(scope, id.Name, id.Loc)
	if err != nil {
		return Operand{}, err
	}
	if sym.IsArray {
		return Operand{}, diagnostics.NewASTError(id.Loc, "array %q used without an index", id.Name)
	}
	if sym.IsParameter {
		return Reference(b.reg.Param(scope, id.Name, false)), nil
	}
	return Value(b.reg.Scalar(scope, id.Name)), nil
}

// arrayOperand resolves the array variable (local base or array parameter)
// that id.Name names. Its own cell is always read BY_VALUE: the cell
// directly holds the zero-address pointer used for index arithmetic
// (spec.md §3.4, §9 "Array base as zero-address pointer").
func (b *Builder) arrayOperand(scope string, id *ast.Ident, loc ast.Location) (Operand, error) {
	sym, err := b.lookup(scope, id.Name, loc)
	if err != nil {
		return Operand{}, err
	}
	if !sym.IsArray {
		return Operand{}, diagnostics.NewASTError(loc, "%q is not an array", id.Name)
	}
	if sym.IsParameter {
		return Value(b.reg.Param(scope, id.Name, true)), nil
	}
	return Value(b.reg.ArrayBase(scope, id.Name, sym.Bounds.Lo, sym.Bounds.Hi)), nil
}

// indexOperand resolves an array index, which the grammar restricts to a
// number or a plain identifier.
func (b *Builder) indexOperand(scope string, e ast.Expr) (Operand, error) {
	switch v := e.(type) {
	case *ast.Number:
		return Value(b.reg.Const(v.N)), nil
	case *ast.Ident:
		return b.scalarOperand(scope, v)
	default:
		return Operand{}, diagnostics.NewASTError(e.Location(), "array index must be a number or identifier")
	}
}

// identOperand resolves any Ident use-site: a[i] reads the element into a
// fresh temporary (spec.md §4.1 "Reads/writes"/"Array element access"); a
// plain identifier resolves to its natural operand.
func (b *Builder) identOperand(scope string, id *ast.Ident) (Operand, error) {
	if id.Index == nil {
		return b.scalarOperand(scope, id)
	}
	arr, err := b.arrayOperand(scope, id, id.Loc)
	if err != nil {
		return Operand{}, err
	}
	idx, err := b.indexOperand(scope, id.Index)
	if err != nil {
		return Operand{}, err
	}
	tmp := b.reg.Temp()
	b.Emit(&ArrayRead{Tgt: Value(tmp), Arr: arr, Idx: idx}, "stage "+id.Name+"[.] into a temporary")
	return Value(tmp), nil
}

// valueOperand resolves any Value node (Number | Ident).
func (b *Builder) valueOperand(scope string, e ast.Expr) (Operand, error) {
	switch v := e.(type) {
	case *ast.Number:
		return Value(b.reg.Const(v.N)), nil
	case *ast.Ident:
		return b.identOperand(scope, v)
	default:
		return Operand{}, diagnostics.NewASTError(e.Location(), "expected a value (number or identifier)")
	}
}

// exprOperand resolves a full Expr (Value | BinOp) into an operand,
// materializing a temporary for BinOp results.
func (b *Builder) exprOperand(scope string, e ast.Expr) (Operand, error) {
	bin, ok := e.(*ast.BinOp)
	if !ok {
		return b.valueOperand(scope, e)
	}
	l, err := b.valueOperand(scope, bin.L)
	if err != nil {
		return Operand{}, err
	}
	r, err := b.valueOperand(scope, bin.R)
	if err != nil {
		return Operand{}, err
	}
	tgt := b.reg.Temp()
	if err := b.emitBinOp(Value(tgt), l, bin.Op, r, bin.Loc); err != nil {
		return Operand{}, err
	}
	return Value(tgt), nil
}

// emitBinOp lowers tgt := l op r, folding the constant-operand special
// cases of spec.md §4.1 and routing *, /, % through internal/arith's
// subroutines otherwise.
func (b *Builder) emitBinOp(tgt, l Operand, op string, r Operand, loc ast.Location) error {
	switch op {
	case "+", "-":
		b.Emit(&BinOp{Tgt: tgt, L: l, Op: op, R: r}, "")
		return nil
	case "*":
		if folded, ok := foldMul(l, r); ok {
			b.Emit(&Assign{Tgt: tgt, Src: folded}, "constant-folded *0/*1")
			return nil
		}
		return b.emitArithCall(tgt, l, r, "mul", "result", loc)
	case "/":
		if folded, ok := foldDiv(l, r); ok {
			b.Emit(&Assign{Tgt: tgt, Src: folded}, "constant-folded /0 or /1")
			return nil
		}
		return b.emitArithCall(tgt, l, r, "div", "result", loc)
	case "%":
		if folded, ok := foldMod(r); ok {
			b.Emit(&Assign{Tgt: tgt, Src: folded}, "constant-folded %0")
			return nil
		}
		return b.emitArithCall(tgt, l, r, "div", "result2", loc)
	default:
		return diagnostics.NewOperatorError(op, "binary expression")
	}
}

// foldMul implements x*0 -> 0, x*1 -> x (and the symmetric forms).
func foldMul(l, r Operand) (Operand, bool) {
	if isConst(l, 0) || isConst(r, 0) {
		return Value(zeroLiteral(l, r)), true
	}
	if isConst(r, 1) {
		return l, true
	}
	if isConst(l, 1) {
		return r, true
	}
	return Operand{}, false
}

// foldDiv implements x/0 -> 0, x/1 -> x.
func foldDiv(l, r Operand) (Operand, bool) {
	if isConst(r, 0) {
		return Value(r.Var), true
	}
	if isConst(r, 1) {
		return l, true
	}
	return Operand{}, false
}

// foldMod implements x%0 -> 0.
func foldMod(r Operand) (Operand, bool) {
	if isConst(r, 0) {
		return Value(r.Var), true
	}
	return Operand{}, false
}

func isConst(o Operand, value int64) bool {
	return o.Var != nil && o.Var.IsConst && o.Var.ConstValue == value
}

func zeroLiteral(l, r Operand) *Variable {
	if isConst(l, 0) {
		return l.Var
	}
	return r.Var
}

// emitArithCall stages l, r into the callee's well-known ABI cells
// (arg1/arg2, not by-reference formal parameters: abs/mul/div read and
// write fixed globals, spec.md §4.2) and emits an Args-less ProcCall so
// internal/codegen knows to skip argument-copying linkage (spec.md §4.4)
// and just do the return-address/jump sequence.
func (b *Builder) emitArithCall(tgt, l, r Operand, callee, resultField string, loc ast.Location) error {
	if _, ok := b.arith[callee]; !ok {
		return diagnostics.NewSymbolError(loc, callee)
	}
	arg1 := b.reg.Scalar("", "arg1")
	arg2 := b.reg.Scalar("", "arg2")
	b.Emit(&Assign{Tgt: Value(arg1), Src: l}, "stage arg1 for "+callee)
	b.Emit(&Assign{Tgt: Value(arg2), Src: r}, "stage arg2 for "+callee)
	b.Emit(&ProcCall{Name: callee}, "")
	result := b.reg.Scalar("", resultField)
	b.Emit(&Assign{Tgt: tgt, Src: Value(result)}, "harvest "+resultField)
	return nil
}

// --- commands ---

func (b *Builder) buildAssign(scope string, n *ast.Assign) error {
	src, err := b.exprOperand(scope, n.Expr)
	if err != nil {
		return err
	}
	return b.storeToIdent(scope, n.Target, src)
}

// storeToIdent writes src into the (possibly indexed) identifier target.
func (b *Builder) storeToIdent(scope string, id *ast.Ident, src Operand) error {
	if id.Index == nil {
		tgt, err := b.scalarOperand(scope, id)
		if err != nil {
			return err
		}
		b.Emit(&Assign{Tgt: tgt, Src: src}, "")
		return nil
	}
	arr, err := b.arrayOperand(scope, id, id.Loc)
	if err != nil {
		return err
	}
	idx, err := b.indexOperand(scope, id.Index)
	if err != nil {
		return err
	}
	b.Emit(&ArrayWrite{Arr: arr, Idx: idx, Val: src}, "")
	return nil
}

func (b *Builder) buildRead(scope string, n *ast.Read) error {
	if n.Target.Index == nil {
		tgt, err := b.scalarOperand(scope, n.Target)
		if err != nil {
			return err
		}
		b.Emit(&Read{Tgt: tgt}, "")
		return nil
	}
	tmp := b.reg.Temp()
	b.Emit(&Read{Tgt: Value(tmp)}, "read into a temporary before indirect store")
	return b.storeToIdent(scope, n.Target, Value(tmp))
}

func (b *Builder) buildWrite(scope string, n *ast.Write) error {
	val, err := b.valueOperand(scope, n.Value)
	if err != nil {
		return err
	}
	b.Emit(&Write{Val: val}, "")
	return nil
}

func (b *Builder) buildProcCall(scope string, n *ast.ProcCall) error {
	info, ok := b.procs[n.Name]
	if !ok {
		return diagnostics.NewSymbolError(n.Loc, n.Name)
	}
	if len(info.Formals) != len(n.Args) {
		return diagnostics.NewASTError(n.Loc, "call to %q passes %d arguments, expected %d", n.Name, len(n.Args), len(info.Formals))
	}
	args := make([]*Variable, len(n.Args))
	for i, a := range n.Args {
		sym, err := b.lookup(scope, a.Name, a.Loc)
		if err != nil {
			return err
		}
		if sym.IsArray {
			args[i] = b.reg.ArrayBase(scope, a.Name, symBoundsOrZero(sym)...)
			if sym.IsParameter {
				args[i] = b.reg.Param(scope, a.Name, true)
			}
		} else if sym.IsParameter {
			args[i] = b.reg.Param(scope, a.Name, false)
		} else {
			args[i] = b.reg.Scalar(scope, a.Name)
		}
	}
	b.Emit(&ProcCall{Name: n.Name, Args: args}, "")
	return nil
}

func symBoundsOrZero(sym *symtab.Symbol) []int64 {
	if sym.Bounds == nil {
		return []int64{0, -1}
	}
	return []int64{sym.Bounds.Lo, sym.Bounds.Hi}
}

// --- control flow: condition normalization (spec.md §4.5) ---

// negateOp returns the comparison that holds exactly when op does not
// (= and ≠, < and ≥, > and ≤); any other string is returned unchanged.
func negateOp(op string) string {
	switch op {
	case "=":
		return "≠"
	case "≠":
		return "="
	case "<":
		return "≥"
	case "≥":
		return "<"
	case ">":
		return "≤"
	case "≤":
		return ">"
	}
	return op
}

// emitBranchIfTrue jumps to target exactly when cond holds. Directly
// testable ops {=,>,<} become one CondJump; the VM-untestable ops
// {≠,≥,≤} are rewritten with a helper label and an unconditional jump
// (spec.md §4.5, §9 "Condition normalization at IR level").
func (b *Builder) emitBranchIfTrue(scope string, cond ast.Cond, target int) error {
	l, err := b.valueOperand(scope, cond.L)
	if err != nil {
		return err
	}
	r, err := b.valueOperand(scope, cond.R)
	if err != nil {
		return err
	}
	switch cond.Op {
	case "=", ">", "<":
		b.Emit(&CondJump{L: l, Op: cond.Op, R: r, Label: target}, "")
		return nil
	case "≠", "≥", "≤":
		skip := b.NewLabel()
		b.Emit(&CondJump{L: l, Op: negateOp(cond.Op), R: r, Label: skip}, "invert "+cond.Op+" via helper label")
		b.Emit(&Jump{Label: target}, "")
		b.EmitLabel(skip, LabelHelper, scope)
		return nil
	default:
		return diagnostics.NewOperatorError(cond.Op, "condition")
	}
}

// emitBranchIfFalse jumps to target exactly when cond does not hold.
func (b *Builder) emitBranchIfFalse(scope string, cond ast.Cond, target int) error {
	inverted := ast.Cond{Op: negateOp(cond.Op), L: cond.L, R: cond.R, Loc: cond.Loc}
	return b.emitBranchIfTrue(scope, inverted, target)
}

func (b *Builder) buildIf(scope string, n *ast.If) error {
	elseLabel := b.NewLabel()
	if err := b.emitBranchIfFalse(scope, n.Cond, elseLabel); err != nil {
		return err
	}
	if err := b.buildCommands(scope, n.Then); err != nil {
		return err
	}
	if n.Else != nil {
		endLabel := b.NewLabel()
		b.Emit(&Jump{Label: endLabel}, "skip else branch")
		b.EmitLabel(elseLabel, LabelElse, scope)
		if err := b.buildCommands(scope, n.Else); err != nil {
			return err
		}
		b.EmitLabel(endLabel, LabelEndif, scope)
	} else {
		b.EmitLabel(elseLabel, LabelEndif, scope)
	}
	return nil
}

func (b *Builder) buildWhile(scope string, n *ast.While) error {
	start := b.NewLabel()
	end := b.NewLabel()
	b.EmitLabel(start, LabelLoopStart, scope)
	if err := b.emitBranchIfFalse(scope, n.Cond, end); err != nil {
		return err
	}
	if err := b.buildCommands(scope, n.Body); err != nil {
		return err
	}
	b.Emit(&Jump{Label: start}, "repeat while-loop test")
	b.EmitLabel(end, LabelLoopEnd, scope)
	return nil
}

func (b *Builder) buildRepeat(scope string, n *ast.Repeat) error {
	start := b.NewLabel()
	b.EmitLabel(start, LabelLoopStart, scope)
	if err := b.buildCommands(scope, n.Body); err != nil {
		return err
	}
	if err := b.emitBranchIfFalse(scope, n.Cond, start); err != nil {
		return err
	}
	return nil
}

func (b *Builder) buildFor(scope string, n *ast.For) error {
	start, err := b.valueOperand(scope, n.Start)
	if err != nil {
		return err
	}
	end, err := b.exprOperand(scope, n.End)
	if err != nil {
		return err
	}
	// Capture the end bound once: mutating n.End's variables mid-loop must
	// not change how many iterations run (spec.md §4.1 FOR loops).
	endCapture := b.reg.Temp()
	b.Emit(&Assign{Tgt: Value(endCapture), Src: end}, "capture FOR loop end bound")

	iter := b.reg.Scalar(scope, n.Iter)
	b.Emit(&Assign{Tgt: Value(iter), Src: start}, "")

	loopStart := b.NewLabel()
	loopEnd := b.NewLabel()
	b.EmitLabel(loopStart, LabelLoopStart, scope)

	continueOp := "≤"
	if n.Downto {
		continueOp = "≥"
	}
	cond := ast.Cond{Op: continueOp, L: &identPassthrough{v: iter}, R: &identPassthrough{v: endCapture}, Loc: n.Loc}
	if err := b.emitBranchIfFalseVars(scope, cond, loopEnd); err != nil {
		return err
	}

	if err := b.buildCommands(scope, n.Body); err != nil {
		return err
	}

	step := "+"
	if n.Downto {
		step = "-"
	}
	one := b.reg.Const(1)
	b.Emit(&BinOp{Tgt: Value(iter), L: Value(iter), Op: step, R: Value(one)}, "advance FOR iterator")
	b.Emit(&Jump{Label: loopStart}, "")
	b.EmitLabel(loopEnd, LabelLoopEnd, scope)
	return nil
}

// identPassthrough lets buildFor build a Cond directly over already-resolved
// Variables (the captured end bound, the iterator) without re-threading them
// through ast.Ident/symtab lookups.
type identPassthrough struct {
	ast.Expr
	v *Variable
}

func (p *identPassthrough) Location() ast.Location { return ast.Location{} }

func (b *Builder) emitBranchIfFalseVars(scope string, cond ast.Cond, target int) error {
	lp, lok := cond.L.(*identPassthrough)
	rp, rok := cond.R.(*identPassthrough)
	if !lok || !rok {
		return b.emitBranchIfFalse(scope, cond, target)
	}
	inverted := negateOp(cond.Op)
	l := NaturalOperand(lp.v)
	r := NaturalOperand(rp.v)
	switch inverted {
	case "=", ">", "<":
		b.Emit(&CondJump{L: l, Op: inverted, R: r, Label: target}, "")
		return nil
	default:
		skip := b.NewLabel()
		b.Emit(&CondJump{L: l, Op: negateOp(inverted), R: r, Label: skip}, "invert via helper label")
		b.Emit(&Jump{Label: target}, "")
		b.EmitLabel(skip, LabelHelper, scope)
		return nil
	}
}
