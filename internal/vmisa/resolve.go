package vmisa

import "accvm/internal/diagnostics"

// Resolve strips every pseudo-op from instrs and rewrites label references
// as absolute line numbers (spec.md §4.6 "Label Resolver", C5). Line
// numbers are 0-based positions into the resolved, pseudo-op-free stream —
// the numbering space the VM's JUMP/RTRN targets and SET_HERE both address.
func Resolve(instrs []Instr) ([]Instr, error) {
	lineOf := make(map[int]int64)
	var line int64
	for _, in := range instrs {
		if in.Op == pseudoLabel {
			lineOf[in.Label] = line
			continue
		}
		line++
	}

	resolved := make([]Instr, 0, line)
	line = 0
	for _, in := range instrs {
		switch in.Op {
		case pseudoLabel:
			continue
		case pseudoJumpL:
			target, err := resolveLabel(lineOf, in.Label)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, NewJump(target))
			line++
		case pseudoJZeroL:
			target, err := resolveLabel(lineOf, in.Label)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, NewJZero(target))
			line++
		case pseudoJPosL:
			target, err := resolveLabel(lineOf, in.Label)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, NewJPos(target))
			line++
		case pseudoJNegL:
			target, err := resolveLabel(lineOf, in.Label)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, NewJNeg(target))
			line++
		case pseudoSetHere:
			// "line_of_next_instruction" is this SET's own resolved line
			// plus one, since the SET itself occupies `line` (spec.md §4.6).
			nextLine := line + 1
			resolved = append(resolved, NewSet(nextLine+in.HereOffset-1))
			line++
		default:
			resolved = append(resolved, in)
			line++
		}
	}
	return resolved, nil
}

func resolveLabel(lineOf map[int]int64, id int) (int64, error) {
	target, ok := lineOf[id]
	if !ok {
		return 0, diagnostics.NewInternalError("vmisa: unresolved label %d (internal codegen bug)", id)
	}
	return target, nil
}

// Render joins resolved instructions into the line-oriented text format
// spec.md §6.2 specifies.
func Render(instrs []Instr) string {
	out := make([]byte, 0, len(instrs)*8)
	for _, in := range instrs {
		out = append(out, in.Render()...)
		out = append(out, '\n')
	}
	return string(out)
}
