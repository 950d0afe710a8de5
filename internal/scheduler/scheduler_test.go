package scheduler_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ibci/internal/config"
	"ibci/internal/diag"
	"ibci/internal/interp"
	"ibci/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func write(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func compileAndRun(t *testing.T, dir, entry string) (*bytes.Buffer, error) {
	t.Helper()
	issues := diag.NewTracker(entry)
	sched := scheduler.New(&config.Sandbox{WorkspaceRoot: dir}, issues)
	unit, err := sched.Compile(entry)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	interpreter := interp.New(config.DefaultLimits(), sched.Sandbox, nil, &out, nil)
	_, err = sched.Execute(unit, interpreter)
	return &out, err
}

func TestFromImportBindsNamedSymbol(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "helper.ibci", "int x = 1\n")
	write(t, dir, "main.ibci", "from helper import x\nprint(x)\n")

	out, err := compileAndRun(t, dir, "main.ibci")
	require.NoError(t, err)
	require.Equal(t, "1\n", out.String())
}

func TestFromImportWithAlias(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "helper.ibci", "int x = 5\n")
	write(t, dir, "main.ibci", "from helper import x as y\nprint(y)\n")

	out, err := compileAndRun(t, dir, "main.ibci")
	require.NoError(t, err)
	require.Equal(t, "5\n", out.String())
}

func TestStarImport(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "helper.ibci", "int x = 2\nint y = 3\n")
	write(t, dir, "main.ibci", "from helper import *\nprint(x)\nprint(y)\n")

	out, err := compileAndRun(t, dir, "main.ibci")
	require.NoError(t, err)
	require.Equal(t, "2\n3\n", out.String())
}

func TestPlainImportExposesModuleMembers(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "helper.ibci", "int x = 9\n")
	write(t, dir, "main.ibci", "import helper\nprint(helper.x)\n")

	out, err := compileAndRun(t, dir, "main.ibci")
	require.NoError(t, err)
	require.Equal(t, "9\n", out.String())
}

func TestCircularImportIsRejected(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.ibci", "from b import x\n")
	write(t, dir, "b.ibci", "from a import x\n")

	_, err := compileAndRun(t, dir, "a.ibci")
	require.Error(t, err)
	var cerr *diag.CompilationError
	require.ErrorAs(t, err, &cerr)
	require.NotEmpty(t, cerr.Diagnostics)
	require.Equal(t, diag.ModCircularDependency, cerr.Diagnostics[0].Code)
}

func TestMissingModuleIsReported(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "main.ibci", "from missing import x\n")

	_, err := compileAndRun(t, dir, "main.ibci")
	require.Error(t, err)
	var cerr *diag.CompilationError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, diag.ModNotFound, cerr.Diagnostics[0].Code)
}

func TestLeadingDotImportEscapingWorkspaceIsRejected(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "app")
	require.NoError(t, os.Mkdir(sub, 0755))
	write(t, root, "secret.ibci", "int token = 1\n")
	write(t, sub, "main.ibci", "from ..secret import token\n")

	issues := diag.NewTracker("main.ibci")
	sched := scheduler.New(&config.Sandbox{WorkspaceRoot: sub}, issues)
	_, err := sched.Compile("main.ibci")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Security Error")
}

func TestCompileCachesAlreadyLoadedModule(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "shared.ibci", "int x = 1\n")
	write(t, dir, "left.ibci", "from shared import x\n")
	write(t, dir, "right.ibci", "from shared import x as rx\n")
	write(t, dir, "main.ibci", "from left import x\nfrom right import rx\nprint(x)\nprint(rx)\n")

	out, err := compileAndRun(t, dir, "main.ibci")
	require.NoError(t, err)
	require.Equal(t, "1\n1\n", out.String())
}
