package vmisa

import (
	"testing"

	"accvm/internal/diagnostics"
)

func TestRenderWithArg(t *testing.T) {
	if got, want := NewLoad(5).Render(), "LOAD 5"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderNoArg(t *testing.T) {
	if got, want := NewHalf().Render(), "HALF"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := NewHalt().Render(), "HALT"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderReturnCarriesItsArg(t *testing.T) {
	if got, want := NewRtrn(42).Render(), "RTRN 42"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveLabelsToAbsoluteLines(t *testing.T) {
	target := NewLabelDef(0)
	instrs := []Instr{
		NewJumpLabel(0),
		NewSet(1),
		target,
		NewHalt(),
	}
	resolved, err := Resolve(instrs)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 3 {
		t.Fatalf("expected 3 resolved instructions (label stripped), got %d", len(resolved))
	}
	// lines: 0=JUMP, 1=SET, 2=HALT; the label sits right before HALT.
	if resolved[0].Op != Jump || resolved[0].Arg != 2 {
		t.Errorf("expected JUMP 2, got %s %d", resolved[0].Op, resolved[0].Arg)
	}
}

func TestResolveSetHereUsesOffsetThree(t *testing.T) {
	// A call sequence is always [SET_HERE 3, STORE, JUMP]; SET_HERE should
	// resolve to the line right after the JUMP.
	instrs := []Instr{
		NewSetHere(3),
		NewStore(10),
		NewJumpLabel(0),
		NewLabelDef(0),
		NewHalt(),
	}
	resolved, err := Resolve(instrs)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// lines: 0=SET, 1=STORE, 2=JUMP, 3=HALT
	if resolved[0].Op != Set || resolved[0].Arg != 3 {
		t.Errorf("expected SET 3 (return address after the JUMP), got %s %d", resolved[0].Op, resolved[0].Arg)
	}
}

func TestResolveFailsOnUnresolvedLabel(t *testing.T) {
	instrs := []Instr{NewJumpLabel(99)}
	_, err := Resolve(instrs)
	if err == nil {
		t.Fatal("expected an error for a label with no matching Label def")
	}
	de, ok := diagnostics.As(err)
	if !ok {
		t.Fatalf("expected a *diagnostics.Error, got %T: %v", err, err)
	}
	if de.Kind != diagnostics.InternalErrorKind {
		t.Errorf("Kind = %v, want InternalErrorKind", de.Kind)
	}
}

func TestRenderJoinsLinesWithNewline(t *testing.T) {
	out := Render([]Instr{NewSet(1), NewHalt()})
	if want := "SET 1\nHALT\n"; out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}
