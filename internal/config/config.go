// Package config holds the tunables the core consumes from its host:
// runaway-protection limits, the workspace sandbox root, and the decision
// map used to interpret LLM replies in BRANCH/LOOP scenes. These can be
// supplied on the command line, or loaded from a YAML file via FileConfig,
// the host collaborator's job per §1.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Limits bounds runaway execution per §4.5/§5: every evaluator visit
// increments the instruction counter, every call pushes the recursion
// counter, and every guarded LLM construct gets at most MaxConstructRetries
// extra attempts beyond its first.
type Limits struct {
	MaxCallStack        int
	MaxInstructions     int
	MaxConstructRetries int
}

// DefaultLimits matches the defaults named in §4.5/§8 (100 call stack, 10000
// instructions, 5 retries).
func DefaultLimits() Limits {
	return Limits{
		MaxCallStack:        100,
		MaxInstructions:     10000,
		MaxConstructRetries: 5,
	}
}

// DecisionMap interprets a coerced LLM reply character as a boolean decision
// for BRANCH/LOOP scenes. The zero value is unusable; build one with
// DefaultDecisionMap.
type DecisionMap struct {
	truthy map[string]bool
	falsy  map[string]bool
}

// DefaultDecisionMap is the map named in §4.6: `1,true,yes,ok` decide true;
// `0,false,no,fail` decide false.
func DefaultDecisionMap() *DecisionMap {
	return &DecisionMap{
		truthy: set("1", "true", "yes", "ok"),
		falsy:  set("0", "false", "no", "fail"),
	}
}

// NewDecisionMap builds a decision map from explicit word lists, replacing
// rather than extending the default per §9's Open Question resolution.
func NewDecisionMap(truthyWords, falsyWords []string) *DecisionMap {
	return &DecisionMap{truthy: set(truthyWords...), falsy: set(falsyWords...)}
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Decide maps a normalized (lowercased, trimmed) reply word to "1"/"0", or
// reports !ok if the word matches neither list.
func (d *DecisionMap) Decide(word string) (result string, ok bool) {
	if d.truthy[word] {
		return "1", true
	}
	if d.falsy[word] {
		return "0", true
	}
	return "", false
}

// Words returns the configured truthy/falsy word lists, for building the
// decision-scene instruction sentence in an LLM prompt.
func (d *DecisionMap) Words() (truthy, falsy []string) {
	for w := range d.truthy {
		truthy = append(truthy, w)
	}
	for w := range d.falsy {
		falsy = append(falsy, w)
	}
	return truthy, falsy
}

// FileConfig is the on-disk shape of an ibci.yaml project config: runaway
// limits, the decision words BRANCH/LOOP scenes use, and which LLM provider
// and model a `run` invocation defaults to.
type FileConfig struct {
	Limits Limits `yaml:"limits"`

	Decisions struct {
		Truthy []string `yaml:"truthy"`
		Falsy  []string `yaml:"falsy"`
	} `yaml:"decisions"`

	Provider struct {
		Name  string `yaml:"name"`
		Model string `yaml:"model"`
	} `yaml:"provider"`
}

// DefaultFileConfig mirrors DefaultLimits/DefaultDecisionMap so a generated
// ibci.yaml documents the built-in defaults rather than an empty struct.
func DefaultFileConfig() *FileConfig {
	cfg := &FileConfig{Limits: DefaultLimits()}
	cfg.Decisions.Truthy, cfg.Decisions.Falsy = DefaultDecisionMap().Words()
	cfg.Provider.Name = "gemini"
	cfg.Provider.Model = "gemini-2.0-flash"
	return cfg
}

// LoadFileConfig reads a YAML config from path, returning DefaultFileConfig
// unchanged if the file does not exist.
func LoadFileConfig(path string) (*FileConfig, error) {
	cfg := DefaultFileConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c *FileConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DecisionMap builds a DecisionMap from the config's word lists, falling
// back to the built-in defaults if both lists are empty.
func (c *FileConfig) DecisionMap() *DecisionMap {
	if len(c.Decisions.Truthy) == 0 && len(c.Decisions.Falsy) == 0 {
		return DefaultDecisionMap()
	}
	return NewDecisionMap(c.Decisions.Truthy, c.Decisions.Falsy)
}

// Sandbox validates source-file paths against a workspace root, per §4.7 and
// §6.3's FileSystem collaborator contract.
type Sandbox struct {
	WorkspaceRoot string
	// AllowExternal disables the root check entirely; set only by a trusted
	// collaborator (e.g. a REPL reading from arbitrary paths).
	AllowExternal bool
}

// Resolve turns a (possibly relative) source path into a canonical absolute
// path, rejecting anything that escapes WorkspaceRoot unless AllowExternal
// is set. The error message deliberately contains "Security Error" per the
// sandbox end-to-end scenario in §8.
func (s *Sandbox) Resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Join(s.WorkspaceRoot, path))
	if err != nil {
		return "", fmt.Errorf("Security Error: could not resolve path %q: %w", path, err)
	}
	if s.AllowExternal {
		return abs, nil
	}

	root, err := filepath.Abs(s.WorkspaceRoot)
	if err != nil {
		return "", fmt.Errorf("Security Error: could not resolve workspace root: %w", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("Security Error: path %q resolves outside the workspace root", path)
	}
	return abs, nil
}
