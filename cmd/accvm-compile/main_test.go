package main

import (
	"os"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"accvm/internal/vmexec"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"accvm-compile": run,
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir:  "testdata/script",
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"vmrun": cmdVMRun,
		},
	})
}

// cmdVMRun executes a compiled listing against spec.md §8's literal
// input/output scenarios, so the golden-file fixtures check actual numeric
// behavior and not just the listing's shape. Usage:
//
//	vmrun <listing-file> <input> <want>
//
// <input> and <want> are comma-separated integers (or '-' for none/empty);
// <want> lines up one value per PUT, in order.
func cmdVMRun(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 3 {
		ts.Fatalf("usage: vmrun listing-file input want")
	}
	listing := ts.ReadFile(args[0])
	instrs, err := vmexec.ParseListing(listing)
	if err != nil {
		ts.Fatalf("vmrun: parsing %s: %v", args[0], err)
	}

	input := args[1]
	if input == "-" {
		input = ""
	} else {
		input = strings.ReplaceAll(input, ",", " ")
	}

	var out strings.Builder
	runErr := vmexec.Run(instrs, strings.NewReader(input), &out)
	if neg {
		if runErr == nil {
			ts.Fatalf("vmrun: expected an error running %s, got none", args[0])
		}
		return
	}
	if runErr != nil {
		ts.Fatalf("vmrun: %v", runErr)
	}

	got := strings.TrimRight(out.String(), "\n")
	want := args[2]
	if want == "-" {
		want = ""
	} else {
		want = strings.ReplaceAll(want, ",", "\n")
	}
	if got != want {
		ts.Fatalf("vmrun: %s: got %q, want %q", args[0], got, want)
	}
}
