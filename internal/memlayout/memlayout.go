// Package memlayout implements the memory mapper (spec.md C3): binding
// every registered IR variable to a concrete VM cell address.
package memlayout

import "accvm/internal/ir"

// tempBase is the address the temporary region counts down from (spec.md
// §3.6: "High region (growing down from 2^30)").
const tempBase = 1 << 30

// Entry is one variable's placement.
type Entry struct {
	Address           int64
	IsArray           bool
	ArrayBaseAddress  int64 // first element cell, only meaningful if IsArray
	ArraySize         int64
}

// Map is the address book code generation consumes (spec.md §3.6).
type Map struct {
	entries map[string]Entry
	next    int64 // next free address in the low (growing-up) region
	nextTmp int64 // next free address in the high (growing-down) region
}

// Lookup returns the mapped entry for a variable name, or false if the
// memory mapper never allocated it — a fatal internal-compiler condition
// the caller reports via diagnostics.NewMemoryError (spec.md §7).
func (m *Map) Lookup(name string) (Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// Build runs the three passes spec.md §4.3 describes: regular
// scalars/arrays, deduplicated constants, then temporaries from the top of
// memory down. Cell 0 is reserved for the accumulator and never allocated
// (spec.md §3.6).
func Build(reg *ir.Registry) *Map {
	m := &Map{entries: make(map[string]Entry), next: 1, nextTmp: tempBase}

	var regular, consts, temps []*ir.Variable
	for _, va := range reg.All() {
		switch {
		case va.IsConst:
			consts = append(consts, va)
		case va.IsTemp:
			temps = append(temps, va)
		default:
			regular = append(regular, va)
		}
	}

	for _, va := range regular {
		m.allocateRegular(va)
	}

	seenConst := make(map[int64]int64) // const value -> address
	for _, va := range consts {
		if addr, ok := seenConst[va.ConstValue]; ok {
			m.entries[va.Name] = Entry{Address: addr}
			continue
		}
		addr := m.allocate(1)
		seenConst[va.ConstValue] = addr
		m.entries[va.Name] = Entry{Address: addr}
	}

	for _, va := range temps {
		m.allocateTemp(va)
	}

	return m
}

func (m *Map) allocate(n int64) int64 {
	addr := m.next
	m.next += n
	return addr
}

// allocateRegular places a scalar in one cell, or a local array as a
// base-pointer cell followed by size element cells. Array parameters (and
// any other pointer-valued scalar, i.e. a plain scalar parameter) get only
// the pointer cell: the callee never owns storage for a reference
// parameter (spec.md §4.3 "Regular pass").
func (m *Map) allocateRegular(va *ir.Variable) {
	if va.IsArray && !va.IsParameter {
		ptr := m.allocate(1)
		base := m.allocate(va.ArraySize)
		m.entries[va.Name] = Entry{Address: ptr, IsArray: true, ArrayBaseAddress: base, ArraySize: va.ArraySize}
		return
	}
	addr := m.allocate(1)
	m.entries[va.Name] = Entry{Address: addr, IsArray: va.IsArray}
}

func (m *Map) allocateTemp(va *ir.Variable) {
	m.nextTmp--
	m.entries[va.Name] = Entry{Address: m.nextTmp}
}
