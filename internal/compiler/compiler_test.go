package compiler

import (
	"strings"
	"testing"

	"accvm/internal/vmexec"
)

func mustCompile(t *testing.T, src string) *Result {
	t.Helper()
	res, err := Compile(src, Options{File: "t.imp"})
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return res
}

// runVM executes a compiled program's resolved listing against input
// (whitespace-separated integers) and returns its PUT output, one value
// per line, trailing newline stripped.
func runVM(t *testing.T, res *Result, input string) string {
	t.Helper()
	var out strings.Builder
	if err := vmexec.Run(res.Resolved, strings.NewReader(input), &out); err != nil {
		t.Fatalf("vmexec.Run: %v", err)
	}
	return strings.TrimRight(out.String(), "\n")
}

// Scenario 1 (spec.md §8): READ/WRITE passthrough. Input 42 -> output 42.
func TestScenarioReadWritePassthrough(t *testing.T) {
	res := mustCompile(t, "PROGRAM IS a BEGIN READ a; WRITE a; END")
	if !strings.Contains(res.Listing, "GET") || !strings.Contains(res.Listing, "PUT") {
		t.Errorf("expected GET and PUT in listing:\n%s", res.Listing)
	}
	if got := runVM(t, res, "42"); got != "42" {
		t.Errorf("got %q, want %q", got, "42")
	}
}

// Scenario 2 (spec.md §8): 7 * -3 -> -21, routed through the synthesized mul
// subroutine since '*' is a costly op.
func TestScenarioNegativeLiteralMultiply(t *testing.T) {
	res := mustCompile(t, "PROGRAM IS a BEGIN a := 7 * -3; WRITE a; END")
	if _, ok := res.IR.Procs["mul"]; !ok {
		t.Fatal("expected 'mul' to be synthesized for a costly '*'")
	}
	if !strings.Contains(res.Listing, "HALT") {
		t.Error("expected the listing to end with HALT")
	}
	if got := runVM(t, res, ""); got != "-21" {
		t.Errorf("got %q, want %q", got, "-21")
	}
}

// Scenario 3 (spec.md §8): floor division and divisor-signed remainder
// both synthesize via the single 'div' subroutine. Input "7 -2" -> "-4" then
// "-1".
func TestScenarioDivisionAndModuloShareDivSubroutine(t *testing.T) {
	res := mustCompile(t, "PROGRAM IS a, b BEGIN READ a; READ b; WRITE a/b; WRITE a%b; END")
	if _, ok := res.IR.Procs["div"]; !ok {
		t.Fatal("expected 'div' to be synthesized")
	}
	if _, ok := res.IR.Procs["mul"]; ok {
		t.Error("did not expect 'mul' to be synthesized when only / and % are used")
	}
	if got, want := runVM(t, res, "7 -2"), "-4\n-1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// Scenario 4 (spec.md §8): division/modulo by a literal zero is folded to 0
// by the IR builder without a call, while 'div' is still synthesized because
// '/' and '%' appear in the source. Input 9 -> "0" then "0".
func TestScenarioDivisionByZeroStillCompiles(t *testing.T) {
	res := mustCompile(t, "PROGRAM IS a BEGIN READ a; WRITE a/0; WRITE a%0; END")
	if _, ok := res.IR.Procs["div"]; !ok {
		t.Fatal("expected 'div' to be synthesized even for a literal-zero divisor")
	}
	if got, want := runVM(t, res, "9"), "0\n0"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// Scenario 5 (spec.md §8): a pass-by-reference swap procedure compiles to a
// call with two linked arguments and actually swaps at runtime: "2 1".
func TestScenarioSwapProcedure(t *testing.T) {
	res := mustCompile(t, `
PROCEDURE swap(a, b) IS c BEGIN c := a; a := b; b := c; END
PROGRAM IS x, y BEGIN x := 1; y := 2; swap(x, y); WRITE x; WRITE y; END`)
	info, ok := res.IR.Procs["swap"]
	if !ok {
		t.Fatal("expected a 'swap' procedure in IR.Procs")
	}
	if len(info.Formals) != 2 {
		t.Fatalf("expected 2 formals, got %d", len(info.Formals))
	}
	if got, want := runVM(t, res, ""), "2\n1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// Scenario 6 (spec.md §8): FOR/DOWNTO summing 1..5 writes 15 in both
// directions.
func TestScenarioForAndDownto(t *testing.T) {
	up := mustCompile(t, "PROGRAM IS s, i BEGIN FOR i FROM 1 TO 5 DO s := s + i; ENDFOR WRITE s; END")
	down := mustCompile(t, "PROGRAM IS s, i BEGIN FOR i FROM 5 DOWNTO 1 DO s := s + i; ENDFOR WRITE s; END")
	if !strings.Contains(up.Listing, "HALT") || !strings.Contains(down.Listing, "HALT") {
		t.Error("expected both FOR directions to compile to a complete listing")
	}
	if got := runVM(t, up, ""); got != "15" {
		t.Errorf("FOR TO: got %q, want %q", got, "15")
	}
	if got := runVM(t, down, ""); got != "15" {
		t.Errorf("FOR DOWNTO: got %q, want %q", got, "15")
	}
}

func TestSemanticOnlySkipsCodegen(t *testing.T) {
	res, err := Compile("PROGRAM IS a BEGIN WRITE a; END", Options{File: "t.imp", SemanticOnly: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.IR != nil {
		t.Error("expected SemanticOnly to stop before IR construction")
	}
	if res.Listing != "" {
		t.Error("expected no listing when SemanticOnly is set")
	}
}

func TestCompileErrorReportsStage(t *testing.T) {
	_, err := Compile("PROGRAM IS a BEGIN a := ; END", Options{File: "t.imp"})
	if err == nil {
		t.Fatal("expected a parse error")
	}
	ce, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected a *compiler.Error, got %T", err)
	}
	if ce.Stage != StageParse {
		t.Errorf("expected StageParse, got %s", ce.Stage)
	}
}

func TestCompileRejectsUndeclaredIdentifier(t *testing.T) {
	_, err := Compile("PROGRAM IS a BEGIN a := b + 1; WRITE a; END", Options{File: "t.imp"})
	if err == nil {
		t.Fatal("expected an error for an undeclared identifier")
	}
}

func TestLabelResolutionLeavesNoPseudoOps(t *testing.T) {
	res := mustCompile(t, `
PROCEDURE swap(a, b) IS c BEGIN c := a; a := b; b := c; END
PROGRAM IS x, y BEGIN x := 1; y := 2; swap(x, y); WRITE x; WRITE y; END`)
	for _, line := range strings.Split(res.Listing, "\n") {
		if strings.HasPrefix(line, "@") {
			t.Fatalf("expected no pseudo-ops in the resolved listing, found: %q", line)
		}
	}
}
