package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ibci/internal/config"
)

func TestSandboxResolveRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	sandbox := &config.Sandbox{WorkspaceRoot: dir}

	_, err := sandbox.Resolve("../../etc/passwd")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Security Error")
}

func TestSandboxResolveAllowsWithinRoot(t *testing.T) {
	dir := t.TempDir()
	sandbox := &config.Sandbox{WorkspaceRoot: dir}

	abs, err := sandbox.Resolve("main.ibci")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "main.ibci"), abs)
}

func TestSandboxAllowExternalBypassesRootCheck(t *testing.T) {
	dir := t.TempDir()
	sandbox := &config.Sandbox{WorkspaceRoot: dir, AllowExternal: true}

	_, err := sandbox.Resolve("../outside.ibci")
	require.NoError(t, err)
}

func TestDecisionMapDefaults(t *testing.T) {
	d := config.DefaultDecisionMap()
	result, ok := d.Decide("yes")
	require.True(t, ok)
	require.Equal(t, "1", result)

	result, ok = d.Decide("fail")
	require.True(t, ok)
	require.Equal(t, "0", result)

	_, ok = d.Decide("banana")
	require.False(t, ok)
}

func TestNewDecisionMapReplacesDefaults(t *testing.T) {
	d := config.NewDecisionMap([]string{"yep"}, []string{"nope"})
	_, ok := d.Decide("yes")
	require.False(t, ok, "custom map should not fall back to the built-in words")

	result, ok := d.Decide("yep")
	require.True(t, ok)
	require.Equal(t, "1", result)
}

func TestLoadFileConfigMissingReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadFileConfig(filepath.Join(dir, "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultLimits(), cfg.Limits)
}

func TestLoadFileConfigOverridesLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ibci.yaml")
	yamlSrc := "limits:\n  maxcallstack: 50\n  maxinstructions: 500\n  maxconstructretries: 2\nprovider:\n  name: gemini\n  model: gemini-2.0-flash\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlSrc), 0644))

	cfg, err := config.LoadFileConfig(path)
	require.NoError(t, err)
	require.Equal(t, 50, cfg.Limits.MaxCallStack)
	require.Equal(t, 500, cfg.Limits.MaxInstructions)
	require.Equal(t, 2, cfg.Limits.MaxConstructRetries)
}

func TestFileConfigSaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ibci.yaml")

	cfg := config.DefaultFileConfig()
	cfg.Limits.MaxCallStack = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := config.LoadFileConfig(path)
	require.NoError(t, err)
	require.Equal(t, 7, loaded.Limits.MaxCallStack)
}

func TestFileConfigDecisionMapFallsBackWhenEmpty(t *testing.T) {
	cfg := &config.FileConfig{}
	dm := cfg.DecisionMap()
	result, ok := dm.Decide("true")
	require.True(t, ok)
	require.Equal(t, "1", result)
}
