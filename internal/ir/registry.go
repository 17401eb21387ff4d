package ir

import "fmt"

// Registry owns every Variable the program ever mentions (spec.md §3.7:
// variables are born once and live for the whole compilation). It performs
// the scope-qualification spec.md §3.4 requires: "{proc}#{name}" for
// procedure-local declarations and parameters, bare names for main scope,
// shared cells for same-valued constants, and fresh "t{k}" temporaries.
type Registry struct {
	byName  map[string]*Variable
	order   []*Variable
	tempNum int
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Variable)}
}

// All returns every registered variable in first-registration order.
func (r *Registry) All() []*Variable { return r.order }

func scopedName(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "#" + name
}

func (r *Registry) register(v *Variable) *Variable {
	if existing, ok := r.byName[v.Name]; ok {
		return existing
	}
	r.byName[v.Name] = v
	r.order = append(r.order, v)
	return v
}

// Scalar returns (creating on first use) the scoped scalar cell for name
// declared in scope ("" for main).
func (r *Registry) Scalar(scope, name string) *Variable {
	sn := scopedName(scope, name)
	if v, ok := r.byName[sn]; ok {
		return v
	}
	return r.register(&Variable{Name: sn, ProcName: scope})
}

// Param returns (creating on first use) the scoped parameter cell for name.
// Parameters are always pointers (spec.md §3.2 invariant), scalar or array.
func (r *Registry) Param(scope, name string, isArray bool) *Variable {
	sn := scopedName(scope, name)
	if v, ok := r.byName[sn]; ok {
		return v
	}
	return r.register(&Variable{Name: sn, ProcName: scope, IsPointer: true, IsArray: isArray, IsParameter: true})
}

// ArrayBase returns (creating on first use) the base-pointer cell for a
// locally declared array a[lo:hi]. The cell will hold
// allocated_base - lo once internal/codegen emits the prologue (spec.md
// §4.1, §9).
func (r *Registry) ArrayBase(scope, name string, lo, hi int64) *Variable {
	sn := scopedName(scope, name)
	if v, ok := r.byName[sn]; ok {
		return v
	}
	return r.register(&Variable{
		Name:       sn,
		ProcName:   scope,
		IsArray:    true,
		IsPointer:  true,
		ArrayStart: lo,
		ArraySize:  hi - lo + 1,
	})
}

// Const returns (creating on first use) the shared cell for integer
// literal value. Constants sharing a value are the same *Variable, so
// spec.md §8's "constant dedup" property holds before internal/memlayout
// even runs; internal/memlayout still deduplicates defensively by value.
func (r *Registry) Const(value int64) *Variable {
	name := constName(value)
	if v, ok := r.byName[name]; ok {
		return v
	}
	return r.register(&Variable{Name: name, IsConst: true, ConstValue: value})
}

// Temp allocates a fresh temporary, flat across the whole program
// (spec.md §3.4: "Temporaries use fresh names t{k}").
func (r *Registry) Temp() *Variable {
	name := fmt.Sprintf("t%d", r.tempNum)
	r.tempNum++
	return r.register(&Variable{Name: name, IsTemp: true})
}

