// Package scheduler implements the module scheduler described in §4.7:
// import-to-path resolution through a sandbox, dependency-cycle detection,
// topological lex→parse→analyze compilation with per-path caching, and
// binding of imported modules into the interpreter's runtime environment.
package scheduler

import (
	"os"
	"path/filepath"
	"strings"

	"ibci/internal/ast"
	"ibci/internal/config"
	"ibci/internal/diag"
	"ibci/internal/interp"
	"ibci/internal/lexer"
	"ibci/internal/logging"
	"ibci/internal/parser"
	"ibci/internal/scope"
	"ibci/internal/sema"
	"ibci/internal/types"
)

// Unit is one compiled module: its AST plus (after Execute) its runtime Env.
type Unit struct {
	Path string
	AST  *ast.Module
	Env  *interp.Env

	// deps maps each top-level import statement to the Unit it resolved to,
	// in Body order, so Execute can bind dependencies without re-resolving
	// paths or re-walking the sandbox.
	deps map[ast.Stmt]*Unit
}

// Scheduler compiles and caches modules reachable from an entry file.
type Scheduler struct {
	Sandbox *config.Sandbox
	Issues  *diag.Tracker

	cache   map[string]*Unit
	loading map[string]bool // in-progress set, for cycle detection
	log     *logging.Logger
}

// New creates a Scheduler rooted at sandbox.
func New(sandbox *config.Sandbox, issues *diag.Tracker) *Scheduler {
	if issues == nil {
		issues = diag.NewTracker("<unknown>")
	}
	return &Scheduler{
		Sandbox: sandbox,
		Issues:  issues,
		cache:   make(map[string]*Unit),
		loading: make(map[string]bool),
		log:     logging.Get(logging.CategoryScheduler),
	}
}

// Compile resolves, lexes, parses, and semantically analyzes the module at
// relPath (and everything it imports), returning the cached Unit. Imports
// are compiled depth-first before the importing module's own analysis runs,
// so `from m import x` sees m's fully-typed symbol table — the topological
// ordering §4.7 requires.
func (s *Scheduler) Compile(relPath string) (*Unit, error) {
	abs, err := s.Sandbox.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	if u, ok := s.cache[abs]; ok {
		return u, nil
	}
	if s.loading[abs] {
		s.Issues.Report(diag.Error, diag.ModCircularDependency,
			"circular import detected at "+relPath, nil, "")
		return nil, &diag.CompilationError{Diagnostics: s.Issues.Diagnostics}
	}
	s.loading[abs] = true
	defer delete(s.loading, abs)

	s.log.Debug("compiling module %s", relPath)
	source, err := os.ReadFile(abs)
	if err != nil {
		s.Issues.Report(diag.Error, diag.ModNotFound, "cannot read module "+relPath+": "+err.Error(), nil, "")
		return nil, &diag.CompilationError{Diagnostics: s.Issues.Diagnostics}
	}

	toks, err := lexer.New(string(source), s.Issues).Tokenize()
	if err != nil {
		return nil, err
	}
	mod := parser.New(toks, s.Issues).ParseModule(relPath)

	// baseDir stays sandbox-relative (derived from relPath, not abs) so a
	// resolved dependency path can be fed straight back into Compile/
	// Sandbox.Resolve without double-prepending the workspace root.
	u := &Unit{Path: relPath, AST: mod, deps: make(map[ast.Stmt]*Unit)}
	for _, st := range mod.Body {
		if err := s.compileDependency(st, filepath.Dir(relPath), mod.Scope, u); err != nil {
			return nil, err
		}
	}

	analyzer := sema.New(s.Issues)
	analyzer.AnalyzeModule(mod)
	if err := s.Issues.CheckErrors(); err != nil {
		return nil, err
	}

	s.cache[abs] = u
	return u, nil
}

// compileDependency recurses into one top-level import statement, recording
// the resolved dependency on u.deps for Execute and wiring origin_symbol
// references per §4.7 so `from m import x as y`'s y resolves lazily to m's
// x without copying type information.
func (s *Scheduler) compileDependency(stmt ast.Stmt, baseDir string, importerScope *scope.ScopeNode, u *Unit) error {
	switch imp := stmt.(type) {
	case *ast.Import:
		depPath := modulePathToFile(imp.Dotted, baseDir)
		dep, err := s.Compile(depPath)
		if err != nil {
			return err
		}
		u.deps[stmt] = dep
		s.bindModuleSymbol(imp, dep, importerScope)
		return nil
	case *ast.ImportFrom:
		depPath := modulePathToFile(imp.Module, relativeBaseDir(baseDir, imp.Level))
		dep, err := s.Compile(depPath)
		if err != nil {
			return err
		}
		u.deps[stmt] = dep
		s.wireOriginSymbols(imp, dep, importerScope)
		return nil
	default:
		return nil
	}
}

// bindModuleSymbol gives a plain `import a.b [as y]`'s bound symbol a
// Module type carrying the dependency's exported scope, so `y.attr`
// resolves immediately (a module import isn't a re-export, so there is no
// OriginSymbol chain to defer to).
func (s *Scheduler) bindModuleSymbol(imp *ast.Import, dep *Unit, importerScope *scope.ScopeNode) {
	bound := imp.Alias
	if bound == "" && len(imp.Dotted) > 0 {
		bound = imp.Dotted[0]
	}
	sym, ok := importerScope.LookupLocal(bound)
	if !ok {
		return
	}
	sym.TypeInfo = &types.Module{Name: bound, Scope: dep.AST.Scope}
}

// wireOriginSymbols points each locally-bound name's Symbol.OriginSymbol at
// the dependency's matching top-level symbol, so the importing module's
// type checking resolves `y`'s type lazily from `m`'s `x` without the
// scheduler having to copy or re-infer it.
func (s *Scheduler) wireOriginSymbols(imp *ast.ImportFrom, dep *Unit, importerScope *scope.ScopeNode) {
	if imp.Star {
		// `from m import *` has no names at parse time, so the parser
		// couldn't pre-declare bindings the way a named import does — define
		// them here, now that m's own symbol table is known.
		for name, origin := range dep.AST.Scope.Names {
			importerScope.Define(name, &scope.Symbol{Name: name, Kind: origin.Kind, OriginSymbol: origin})
		}
		return
	}
	for idx, name := range imp.Names {
		origin, ok := dep.AST.Scope.LookupLocal(name)
		if !ok {
			s.Issues.Report(diag.Error, diag.ModSymbolNotFound,
				"module has no symbol "+name, nil, "")
			continue
		}
		bound := imp.Aliases[idx]
		if bound == "" {
			bound = name
		}
		sym, ok := importerScope.LookupLocal(bound)
		if !ok {
			continue
		}
		sym.OriginSymbol = origin
	}
}

// Execute runs u's (and, transitively, every dependency's) top-level
// statements through interpreter, returning u's populated runtime Env. A
// module that has already run (cached by a prior importer) is not re-run.
func (s *Scheduler) Execute(u *Unit, interpreter *interp.Interpreter) (*interp.Env, error) {
	if u.Env != nil {
		return u.Env, nil
	}
	env := interpreter.NewModuleEnv()
	u.Env = env // set before recursing, so a cycle (already rejected at compile time) can't loop here either

	for _, stmt := range u.AST.Body {
		dep, ok := u.deps[stmt]
		if !ok {
			continue
		}
		depEnv, err := s.Execute(dep, interpreter)
		if err != nil {
			return nil, err
		}
		s.bindDependency(stmt, dep, depEnv, env)
	}

	if err := interpreter.Execute(u.AST, env); err != nil {
		return nil, err
	}
	return env, nil
}

// bindDependency copies one import statement's names from a compiled
// dependency's runtime Env into the importing module's runtime Env.
func (s *Scheduler) bindDependency(stmt ast.Stmt, dep *Unit, depEnv, env *interp.Env) {
	switch imp := stmt.(type) {
	case *ast.Import:
		bound := imp.Alias
		if bound == "" && len(imp.Dotted) > 0 {
			bound = imp.Dotted[0]
		}
		interp.BindModule(env, bound, depEnv)
	case *ast.ImportFrom:
		if imp.Star {
			for name := range dep.AST.Scope.Names {
				if v, ok := depEnv.Get(name); ok {
					env.Define(name, v)
				}
			}
			return
		}
		for idx, name := range imp.Names {
			bound := imp.Aliases[idx]
			if bound == "" {
				bound = name
			}
			if v, ok := depEnv.Get(name); ok {
				env.Define(bound, v)
			}
		}
	}
}

// relativeBaseDir applies a `from`-import's leading-dot Level per §4.7:
// each dot walks one directory above baseDir before the dotted module name
// is joined on, so `from ..secret import X` can produce a path that walks
// above the workspace root for Sandbox.Resolve to reject.
func relativeBaseDir(baseDir string, level int) string {
	if level <= 0 {
		return baseDir
	}
	up := strings.Repeat("../", level)
	if baseDir == "" || baseDir == "." {
		return filepath.Clean(up)
	}
	return filepath.Join(baseDir, up)
}

// modulePathToFile turns a dotted module path into a relative file path,
// joining it onto baseDir (the importing file's own directory, so sibling
// modules resolve without needing the sandbox root repeated).
func modulePathToFile(dotted []string, baseDir string) string {
	rel := filepath.Join(dotted...) + ".ibci"
	if baseDir == "" || baseDir == "." {
		return rel
	}
	return filepath.Join(baseDir, rel)
}
