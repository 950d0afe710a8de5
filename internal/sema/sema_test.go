package sema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ibci/internal/ast"
	"ibci/internal/diag"
	"ibci/internal/lexer"
	"ibci/internal/parser"
	"ibci/internal/sema"
)

func analyze(t *testing.T, src string) (*ast.Module, *diag.Tracker) {
	t.Helper()
	issues := diag.NewTracker("test.ibci")
	toks, err := lexer.New(src, issues).Tokenize()
	require.NoError(t, err)
	mod := parser.New(toks, issues).ParseModule("test.ibci")
	sema.New(issues).AnalyzeModule(mod)
	return mod, issues
}

func TestUndefinedSymbolIsReported(t *testing.T) {
	_, issues := analyze(t, "print(x)\n")
	require.True(t, issues.HasErrors())
	require.Equal(t, diag.SemUndefinedSymbol, issues.Diagnostics[0].Code)
}

func TestFieldDefaultTypeMismatchIsReported(t *testing.T) {
	src := "class Box:\n" +
		"    int n = \"oops\"\n"
	_, issues := analyze(t, src)
	require.True(t, issues.HasErrors())
	require.Equal(t, diag.SemTypeMismatch, issues.Diagnostics[0].Code)
}

func TestSelfIsTypedAsEnclosingClass(t *testing.T) {
	src := "class Counter:\n" +
		"    int count=0\n" +
		"    func inc(self):\n" +
		"        self.count = self.count + 1\n"
	_, issues := analyze(t, src)
	require.False(t, issues.HasErrors(), "%v", issues.Diagnostics)
}

func TestMethodWithUntypedSelfStillParsesTypedParams(t *testing.T) {
	src := "class Box:\n" +
		"    int n=0\n" +
		"    func set(self, int v):\n" +
		"        self.n = v\n" +
		"\n" +
		"Box b = Box()\n" +
		"b.set(5)\n"
	_, issues := analyze(t, src)
	require.False(t, issues.HasErrors(), "%v", issues.Diagnostics)
}

func TestRedefinitionIsReportedAsWarning(t *testing.T) {
	src := "int x = 1\n" +
		"int x = 2\n"
	_, issues := analyze(t, src)
	require.False(t, issues.HasErrors(), "%v", issues.Diagnostics)
	require.Equal(t, diag.SemRedefinition, issues.Diagnostics[0].Code)
	require.Equal(t, diag.Warning, issues.Diagnostics[0].Severity)
}

func TestWellTypedProgramHasNoDiagnostics(t *testing.T) {
	src := "int i=0\n" +
		"for i<3:\n" +
		"    print(i)\n" +
		"    i=i+1\n"
	_, issues := analyze(t, src)
	require.False(t, issues.HasErrors(), "%v", issues.Diagnostics)
}
