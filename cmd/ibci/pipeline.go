package main

import (
	"fmt"
	"os"
	"path/filepath"

	"ibci/internal/config"
	"ibci/internal/diag"
	"ibci/internal/scheduler"
)

// buildSandbox resolves the sandbox root for an entry file: the --workspace
// flag if given, else the entry file's own directory, so a module's sibling
// imports resolve without any extra flags in the common case.
func buildSandbox(entryFile string) (*config.Sandbox, string, error) {
	abs, err := filepath.Abs(entryFile)
	if err != nil {
		return nil, "", fmt.Errorf("resolve entry path: %w", err)
	}
	root := workspace
	if root == "" {
		root = filepath.Dir(abs)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return nil, "", fmt.Errorf("entry file %q is not under workspace %q: %w", entryFile, root, err)
	}
	return &config.Sandbox{WorkspaceRoot: root}, rel, nil
}

// compileEntry compiles entryFile (and everything it imports), printing any
// accumulated diagnostics to stderr.
func compileEntry(entryFile string) (*scheduler.Scheduler, *scheduler.Unit, error) {
	sandbox, rel, err := buildSandbox(entryFile)
	if err != nil {
		return nil, nil, err
	}
	issues := diag.NewTracker(rel)
	sched := scheduler.New(sandbox, issues)
	unit, err := sched.Compile(rel)
	printDiagnostics(issues)
	if err != nil {
		return nil, nil, err
	}
	return sched, unit, nil
}

func printDiagnostics(issues *diag.Tracker) {
	for _, d := range issues.Diagnostics {
		fmt.Fprintln(os.Stderr, d.Error())
	}
}
