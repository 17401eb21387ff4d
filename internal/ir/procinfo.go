package ir

// ProcInfo describes one callable: a user procedure, main, or one of the
// synthesized abs/mul/div arithmetic subroutines (spec.md §3.5).
type ProcInfo struct {
	Name       string
	EntryLabel int
	Formals    []*Variable // ordered formal-parameter variables, nil for main
	ReturnVar  *Variable   // nil for main, which is never called
}

// Program is the complete output of building+synthesizing IR: the
// instruction stream in emission order (spec.md §4.1), every registered
// variable, and every callable's linkage info.
type Program struct {
	Instrs    []Instr
	Vars      *Registry
	Procs     map[string]*ProcInfo
	MainLabel int
}
