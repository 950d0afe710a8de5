// Package sema implements the semantic analyzer described in §4.4: a
// visitor that walks the parser's AST+scope graph, resolving names,
// assigning symbol types, and checking operator/assignment/return/call
// compatibility. It mirrors the closed tagged-variant dispatch pattern
// described in §9 ("Dynamic AST visitor"): one case per AST variant in a
// type switch, rather than reflection-based dispatch.
package sema

import (
	"fmt"

	"ibci/internal/ast"
	"ibci/internal/diag"
	"ibci/internal/scope"
	"ibci/internal/token"
	"ibci/internal/types"
)

// Analyzer walks a single module's AST, reporting diagnostics to issues.
type Analyzer struct {
	issues *diag.Tracker

	returnStack []types.Type // enclosing function's declared return type
	inFallback  int          // >0 while analyzing an llmexcept block
}

// New creates an Analyzer reporting to issues.
func New(issues *diag.Tracker) *Analyzer {
	return &Analyzer{issues: issues}
}

// AnalyzeModule type-checks an entire module, seeding the built-in
// intrinsics into its scope first.
func (a *Analyzer) AnalyzeModule(mod *ast.Module) {
	seedIntrinsics(mod.Scope)
	a.analyzeStmts(mod.Body, mod.Scope)
}

// seedIntrinsics defines print/len/int/float/str/list/dict/bool/input as
// const FunctionSymbols in root, per §4.5's RuntimeContext responsibility —
// the analyzer needs them resolvable at type-check time even though the
// evaluator is what actually binds their callable values.
func seedIntrinsics(root *scope.ScopeNode) {
	def := func(name string, fn *types.Function) {
		if _, exists := root.LookupLocal(name); exists {
			return
		}
		root.Define(name, &scope.Symbol{Name: name, Kind: scope.FunctionSymbol, TypeInfo: fn, IsConst: true})
	}
	def("print", &types.Function{Params: []types.Type{types.Any}, Return: types.Void})
	def("len", &types.Function{Params: []types.Type{types.Any}, Return: types.Int})
	def("int", &types.Function{Params: []types.Type{types.Any}, Return: types.Int})
	def("float", &types.Function{Params: []types.Type{types.Any}, Return: types.Float})
	def("str", &types.Function{Params: []types.Type{types.Any}, Return: types.Str})
	def("bool", &types.Function{Params: []types.Type{types.Any}, Return: types.Bool})
	def("list", &types.Function{Params: []types.Type{types.Any}, Return: &types.List{Elem: types.Any}})
	def("dict", &types.Function{Params: []types.Type{types.Any}, Return: &types.Dict{Key: types.Any, Value: types.Any}})
	def("input", &types.Function{Params: nil, Return: types.Str})
}

func (a *Analyzer) report(severity diag.Severity, code diag.Code, msg string, pos token.Position, hint string) {
	a.issues.Report(severity, code, msg, diag.Location{Line: pos.Line, Column: pos.Column}, hint)
}

// resolveDeclared turns a raw type-annotation token slice (as stored in a
// Symbol's DeclaredTypeNode or an ast.Param/ClassField's TypeTokens) into a
// types.Type. It is passed to Symbol.ResolveType for lazy resolution.
func (a *Analyzer) resolveDeclared(node any, sc *scope.ScopeNode) types.Type {
	toks, ok := node.([]token.Token)
	if !ok || len(toks) == 0 {
		return types.Any
	}
	return a.resolveTypeTokens(toks, sc)
}

func (a *Analyzer) resolveTypeTokens(toks []token.Token, sc *scope.ScopeNode) types.Type {
	if len(toks) == 0 {
		return types.Any
	}
	head := toks[0]
	if head.Kind == token.VAR {
		return types.Any
	}
	name := head.Lexeme
	if b, ok := types.Builtins[name]; ok {
		return b
	}
	if name == "Callable" {
		return &types.Callable{}
	}
	if name == "list" || name == "List" {
		elem := types.Type(types.Any)
		if len(toks) > 2 {
			elem = a.resolveTypeTokens(toks[2:len(toks)-1], sc)
		}
		return &types.List{Elem: elem}
	}
	if name == "dict" || name == "Dict" {
		if len(toks) > 2 {
			inner := toks[2 : len(toks)-1]
			if at := indexOfComma(inner); at >= 0 {
				k := a.resolveTypeTokens(inner[:at], sc)
				v := a.resolveTypeTokens(inner[at+1:], sc)
				return &types.Dict{Key: k, Value: v}
			}
		}
		return &types.Dict{Key: types.Any, Value: types.Any}
	}
	// Otherwise a user-defined class name: resolve via scope lookup so
	// forward-declared classes (registered by the pre-scanner) work.
	if sym, ok := sc.Lookup(name); ok && sym.Kind == scope.UserTypeSymbol {
		return sym.ResolveType(func(n any) types.Type { return a.resolveDeclared(n, sc) })
	}
	return types.Any
}

func indexOfComma(toks []token.Token) int {
	depth := 0
	for i, t := range toks {
		switch t.Kind {
		case token.LBRACKET:
			depth++
		case token.RBRACKET:
			depth--
		case token.COMMA:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ---- statements ----

func (a *Analyzer) analyzeStmts(stmts []ast.Stmt, sc *scope.ScopeNode) {
	for _, s := range stmts {
		a.analyzeStmt(s, sc)
	}
}

func (a *Analyzer) analyzeStmt(s ast.Stmt, sc *scope.ScopeNode) {
	switch n := s.(type) {
	case *ast.FunctionDef:
		a.analyzeFunctionDef(n, sc)
	case *ast.LLMFunctionDef:
		a.analyzeLLMFunctionDef(n, sc)
	case *ast.ClassDef:
		a.analyzeClassDef(n, sc)
	case *ast.Assign:
		a.analyzeAssign(n, sc)
	case *ast.AugAssign:
		a.analyzeAugAssign(n, sc)
	case *ast.If:
		a.analyzeIf(n, sc)
	case *ast.While:
		a.analyzeWhile(n, sc)
	case *ast.For:
		a.analyzeFor(n, sc)
	case *ast.Try:
		a.analyzeTry(n, sc)
	case *ast.Return:
		a.analyzeReturn(n, sc)
	case *ast.Raise:
		if n.Value != nil {
			a.exprType(n.Value, sc)
		}
	case *ast.Retry:
		if a.inFallback == 0 {
			a.report(diag.Warning, diag.ParWarn, "retry used outside an llmexcept fallback block", n.Pos(), "")
		}
	case *ast.ExprStmt:
		a.exprType(n.X, sc)
	case *ast.Pass, *ast.Break, *ast.Continue, *ast.Import, *ast.ImportFrom:
		// nothing to check statically
	}
}

func (a *Analyzer) analyzeFunctionDef(n *ast.FunctionDef, parent *scope.ScopeNode) {
	paramTypes := a.resolveParams(n.Params, n.Scope)
	retType := a.resolveOptional(n.ReturnType, n.Scope, types.Void)

	if sym, ok := parent.LookupLocal(n.Name); ok {
		sym.TypeInfo = &types.Function{Params: paramTypes, Return: retType}
	}
	for i, p := range n.Params {
		if sym, ok := n.Scope.LookupLocal(p.Name); ok {
			// A method's implicit `self` is pre-typed by analyzeClassDef with
			// the enclosing class's own type; an untyped `self` parameter
			// resolves to types.Any here and would clobber that if applied.
			if _, alreadyTyped := sym.TypeInfo.(*types.UserDefined); !alreadyTyped {
				sym.TypeInfo = paramTypes[i]
			}
		}
		if p.DefaultValue != nil {
			a.exprType(p.DefaultValue, n.Scope)
		}
	}

	a.returnStack = append(a.returnStack, retType)
	a.analyzeStmts(n.Body, n.Scope)
	a.returnStack = a.returnStack[:len(a.returnStack)-1]
}

// analyzeLLMFunctionDef implements §4.4's canonical rule from the Open
// Questions note: the outer scope's FunctionSymbol receives its type only
// after parameter types are resolved (not before, as one of the two
// divergent source implementations did).
func (a *Analyzer) analyzeLLMFunctionDef(n *ast.LLMFunctionDef, parent *scope.ScopeNode) {
	paramTypes := a.resolveParams(n.Params, n.Scope)
	retType := a.resolveOptional(n.ReturnType, n.Scope, types.Str)

	for i, p := range n.Params {
		if sym, ok := n.Scope.LookupLocal(p.Name); ok {
			sym.TypeInfo = paramTypes[i]
		}
	}
	if sym, ok := parent.LookupLocal(n.Name); ok {
		sym.TypeInfo = &types.Function{Params: paramTypes, Return: retType}
	}

	a.analyzePromptSegments(n.SysPrompt, n.Scope)
	a.analyzePromptSegments(n.UserPrompt, n.Scope)
}

func (a *Analyzer) analyzePromptSegments(segs []ast.PromptSegment, sc *scope.ScopeNode) {
	for _, seg := range segs {
		if seg.Expr == nil {
			continue
		}
		if name, ok := seg.Expr.(*ast.Name); ok {
			if _, found := sc.Lookup(name.Ident); !found {
				a.report(diag.Error, diag.SemUndefinedSymbol,
					fmt.Sprintf("prompt parameter %q is not defined", name.Ident), name.Pos(), "")
				continue
			}
		}
		a.exprType(seg.Expr, sc)
	}
}

func (a *Analyzer) resolveParams(params []ast.Param, sc *scope.ScopeNode) []types.Type {
	out := make([]types.Type, len(params))
	for i, p := range params {
		out[i] = a.resolveOptional(p.TypeTokens, sc, types.Any)
	}
	return out
}

func (a *Analyzer) resolveOptional(toks []token.Token, sc *scope.ScopeNode, fallback types.Type) types.Type {
	if toks == nil {
		return fallback
	}
	return a.resolveTypeTokens(toks, sc)
}

func (a *Analyzer) analyzeClassDef(n *ast.ClassDef, parent *scope.ScopeNode) {
	if sym, ok := parent.LookupLocal(n.Name); ok {
		sym.TypeInfo = &types.UserDefined{ClassName: n.Name, Scope: n.Scope}
	}
	for _, f := range n.Fields {
		ft := a.resolveOptional(f.TypeTokens, n.Scope, types.Any)
		if sym, ok := n.Scope.LookupLocal(f.Name); ok {
			sym.TypeInfo = ft
		}
		if f.DefaultValue != nil {
			vt := a.exprType(f.DefaultValue, n.Scope)
			if !types.AssignableTo(vt, ft) {
				a.report(diag.Error, diag.SemTypeMismatch,
					fmt.Sprintf("field %q declared %s but default value is %s", f.Name, ft, vt), f.DefaultValue.Pos(), "")
			}
		}
	}
	selfType := &types.UserDefined{ClassName: n.Name, Scope: n.Scope}
	for _, m := range n.Methods {
		m.Scope.Define("self", &scope.Symbol{Name: "self", Kind: scope.VariableSymbol, TypeInfo: selfType})
		a.analyzeFunctionDef(m, n.Scope)
	}
}

func (a *Analyzer) analyzeAssign(n *ast.Assign, sc *scope.ScopeNode) {
	if n.TypeTokens != nil {
		a.analyzeDeclaration(n, sc)
		return
	}

	name, ok := n.Target.(*ast.Name)
	if !ok {
		// Attribute/Subscript targets: just analyze receiver/container and
		// value for their own internal errors; runtime enforces the rest.
		a.exprType(n.Target, sc)
		if n.Value != nil {
			a.exprType(n.Value, sc)
		}
		return
	}
	sym, found := sc.Lookup(name.Ident)
	if !found {
		a.report(diag.Error, diag.SemUndefinedSymbol, fmt.Sprintf("%q is not defined", name.Ident), name.Pos(), "")
		return
	}
	if sym.IsConst {
		a.report(diag.Error, diag.SemRedefinition, fmt.Sprintf("cannot reassign constant %q", name.Ident), name.Pos(), "")
	}
	if n.Value == nil {
		return
	}
	vt := a.exprType(n.Value, sc)
	target := sym.ResolveType(func(nd any) types.Type { return a.resolveDeclared(nd, sc) })
	if target == types.Any && sym.TypeInfo == nil {
		sym.TypeInfo = vt
		return
	}
	if !types.AssignableTo(vt, target) {
		a.report(diag.Error, diag.SemTypeMismatch,
			fmt.Sprintf("cannot assign %s to %q of type %s", vt, name.Ident, target), n.Value.Pos(), "")
	}
}

func (a *Analyzer) analyzeDeclaration(n *ast.Assign, sc *scope.ScopeNode) {
	name, ok := n.Target.(*ast.Name)
	if !ok {
		return
	}
	declared := a.resolveTypeTokens(n.TypeTokens, sc)
	isInferred := declared == types.Any

	var valueType types.Type = types.Any
	if n.Value != nil {
		if _, isBehavior := n.Value.(*ast.BehaviorExpr); isBehavior && isCallableDecl(n.TypeTokens) {
			a.exprType(n.Value, sc) // accept: runtime materializes a lambda
		} else {
			valueType = a.exprType(n.Value, sc)
			if isInferred {
				if valueType != types.Void {
					declared = valueType
				}
			} else if !types.AssignableTo(valueType, declared) {
				a.report(diag.Error, diag.SemTypeMismatch,
					fmt.Sprintf("cannot initialize %q of type %s with %s", name.Ident, declared, valueType), n.Value.Pos(), "")
			}
		}
	}

	sym, exists := sc.LookupLocal(name.Ident)
	if !exists {
		sym = &scope.Symbol{Name: name.Ident, Kind: scope.VariableSymbol}
		sc.Define(name.Ident, sym)
	} else if sym.TypeInfo != nil && !isInferred {
		a.report(diag.Warning, diag.SemRedefinition, fmt.Sprintf("%q redeclared in this scope", name.Ident), name.Pos(), "")
	}
	sym.TypeInfo = declared
}

func isCallableDecl(toks []token.Token) bool {
	return len(toks) > 0 && toks[0].Lexeme == "Callable"
}

func (a *Analyzer) analyzeAugAssign(n *ast.AugAssign, sc *scope.ScopeNode) {
	lt := a.exprType(n.Target, sc)
	rt := a.exprType(n.Value, sc)
	if _, ok := types.PromoteArithmetic(lt, rt); !ok && lt != types.Str && lt != types.Any {
		a.report(diag.Error, diag.SemTypeMismatch, fmt.Sprintf("incompatible operand types %s and %s", lt, rt), n.Pos(), "")
	}
}

func (a *Analyzer) analyzeIf(n *ast.If, sc *scope.ScopeNode) {
	a.exprType(n.Test, sc)
	body := scope.New(scope.Block, sc, "")
	a.analyzeStmts(n.Body, body)
	if n.Orelse != nil {
		orelse := scope.New(scope.Block, sc, "")
		a.analyzeStmts(n.Orelse, orelse)
	}
	a.analyzeFallback(n.Fallback, sc)
}

func (a *Analyzer) analyzeWhile(n *ast.While, sc *scope.ScopeNode) {
	a.exprType(n.Test, sc)
	body := scope.New(scope.Block, sc, "")
	a.analyzeStmts(n.Body, body)
	a.analyzeFallback(n.Fallback, sc)
}

func (a *Analyzer) analyzeFor(n *ast.For, sc *scope.ScopeNode) {
	iterType := a.exprType(n.Iter, sc)
	body := scope.New(scope.Block, sc, "")
	if name, ok := n.Target.(*ast.Name); ok {
		elemType := types.Type(types.Any)
		if lst, ok := iterType.(*types.List); ok {
			elemType = lst.Elem
		} else if iterType == types.Int {
			elemType = types.Int
		}
		body.Define(name.Ident, &scope.Symbol{Name: name.Ident, Kind: scope.VariableSymbol, TypeInfo: elemType})
	}
	a.analyzeStmts(n.Body, body)
	a.analyzeFallback(n.Fallback, sc)
}

func (a *Analyzer) analyzeFallback(fallback []ast.Stmt, sc *scope.ScopeNode) {
	if fallback == nil {
		return
	}
	a.inFallback++
	fb := scope.New(scope.Block, sc, "")
	a.analyzeStmts(fallback, fb)
	a.inFallback--
}

func (a *Analyzer) analyzeTry(n *ast.Try, sc *scope.ScopeNode) {
	body := scope.New(scope.Block, sc, "")
	a.analyzeStmts(n.Body, body)

	for _, h := range n.Handlers {
		hs := scope.New(scope.Block, sc, "")
		if h.As != "" {
			hs.Define(h.As, &scope.Symbol{Name: h.As, Kind: scope.VariableSymbol, TypeInfo: types.Any})
		}
		a.analyzeStmts(h.Body, hs)
	}
	if n.Orelse != nil {
		os := scope.New(scope.Block, sc, "")
		a.analyzeStmts(n.Orelse, os)
	}
	if n.Finally != nil {
		fs := scope.New(scope.Block, sc, "")
		a.analyzeStmts(n.Finally, fs)
	}
}

func (a *Analyzer) analyzeReturn(n *ast.Return, sc *scope.ScopeNode) {
	var declared types.Type = types.Any
	if len(a.returnStack) > 0 {
		declared = a.returnStack[len(a.returnStack)-1]
	}
	if n.Value == nil {
		if declared != types.Void && declared != types.Any {
			a.report(diag.Error, diag.SemTypeMismatch, fmt.Sprintf("missing return value of type %s", declared), n.Pos(), "")
		}
		return
	}
	vt := a.exprType(n.Value, sc)
	if !types.AssignableTo(vt, declared) {
		a.report(diag.Error, diag.SemTypeMismatch, fmt.Sprintf("return type %s does not match declared %s", vt, declared), n.Value.Pos(), "")
	}
}

// ---- expressions ----

func (a *Analyzer) exprType(e ast.Expr, sc *scope.ScopeNode) types.Type {
	switch n := e.(type) {
	case *ast.Constant:
		return constType(n)
	case *ast.Name:
		sym, ok := sc.Lookup(n.Ident)
		if !ok {
			a.report(diag.Error, diag.SemUndefinedSymbol, fmt.Sprintf("%q is not defined", n.Ident), n.Pos(), "")
			return types.Any
		}
		return sym.ResolveType(func(nd any) types.Type { return a.resolveDeclared(nd, sc) })
	case *ast.Attribute:
		return a.attributeType(n, sc)
	case *ast.Subscript:
		container := a.exprType(n.Container, sc)
		a.exprType(n.Index, sc)
		switch c := container.(type) {
		case *types.List:
			return c.Elem
		case *types.Dict:
			return c.Value
		}
		return types.Any
	case *ast.ListExpr:
		elem := types.Type(types.Any)
		for i, el := range n.Elts {
			t := a.exprType(el, sc)
			if i == 0 {
				elem = t
			}
		}
		return &types.List{Elem: elem}
	case *ast.DictExpr:
		key, val := types.Type(types.Any), types.Type(types.Any)
		for i, entry := range n.Entries {
			k := a.exprType(entry.Key, sc)
			v := a.exprType(entry.Value, sc)
			if i == 0 {
				key, val = k, v
			}
		}
		return &types.Dict{Key: key, Value: val}
	case *ast.BinOp:
		return a.binOpType(n, sc)
	case *ast.UnaryOp:
		return a.unaryOpType(n, sc)
	case *ast.Compare:
		a.exprType(n.Left, sc)
		for _, c := range n.Comparators {
			a.exprType(c, sc)
		}
		return types.Bool
	case *ast.BoolOp:
		for _, v := range n.Values {
			a.exprType(v, sc)
		}
		return types.Bool
	case *ast.Call:
		return a.callType(n, sc)
	case *ast.CastExpr:
		a.exprType(n.Arg, sc)
		return types.Builtins[n.TargetType]
	case *ast.BehaviorExpr:
		a.analyzePromptSegments(n.Segments, sc)
		return types.Any
	}
	return types.Any
}

func constType(c *ast.Constant) types.Type {
	switch c.Kind {
	case ast.ConstInt:
		return types.Int
	case ast.ConstFloat:
		return types.Float
	case ast.ConstString:
		return types.Str
	case ast.ConstBool:
		return types.Bool
	default:
		return types.Any
	}
}

func (a *Analyzer) attributeType(n *ast.Attribute, sc *scope.ScopeNode) types.Type {
	recvType := a.exprType(n.Receiver, sc)
	switch t := recvType.(type) {
	case *types.Module:
		modScope, _ := t.Scope.(*scope.ScopeNode)
		if modScope == nil {
			return types.Any
		}
		sym, ok := modScope.LookupLocal(n.Attr)
		if !ok {
			a.report(diag.Error, diag.SemUndefinedSymbol,
				fmt.Sprintf("module %q has no member %q", t.Name, n.Attr), n.Pos(), "")
			return types.Any
		}
		return sym.ResolveType(func(nd any) types.Type { return a.resolveDeclared(nd, modScope) })
	case *types.UserDefined:
		classScope, _ := t.Scope.(*scope.ScopeNode)
		if classScope == nil {
			return types.Any
		}
		sym, ok := classScope.LookupLocal(n.Attr)
		if !ok {
			return types.Any // dynamic attribute set at runtime; analyzer stays permissive
		}
		return sym.ResolveType(func(nd any) types.Type { return a.resolveDeclared(nd, classScope) })
	default:
		return types.Any
	}
}

func (a *Analyzer) binOpType(n *ast.BinOp, sc *scope.ScopeNode) types.Type {
	lt := a.exprType(n.Left, sc)
	rt := a.exprType(n.Right, sc)

	switch n.Op {
	case ast.OpAdd:
		if lt == types.Str && rt == types.Str {
			return types.Str
		}
		if lst, ok := lt.(*types.List); ok {
			if _, ok := rt.(*types.List); ok {
				return lst
			}
		}
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpLShift, ast.OpRShift:
		if lt == types.Int && rt == types.Int {
			return types.Int
		}
		if lt == types.Any || rt == types.Any {
			return types.Any
		}
		a.report(diag.Error, diag.SemTypeMismatch, "bitwise operators require int operands", n.Pos(), "")
		return types.Any
	}

	if promoted, ok := types.PromoteArithmetic(lt, rt); ok {
		return promoted
	}
	if lt == types.Any || rt == types.Any {
		return types.Any
	}
	a.report(diag.Error, diag.SemTypeMismatch,
		fmt.Sprintf("operator not defined for %s and %s", lt, rt), n.Pos(), "")
	return types.Any
}

func (a *Analyzer) unaryOpType(n *ast.UnaryOp, sc *scope.ScopeNode) types.Type {
	t := a.exprType(n.Operand, sc)
	switch n.Op {
	case ast.UnaryNot:
		return types.Bool
	case ast.UnaryBitNot:
		if t == types.Int || t == types.Any {
			return types.Int
		}
		a.report(diag.Error, diag.SemTypeMismatch, "'~' requires an int operand", n.Pos(), "")
		return types.Any
	default: // UnaryNeg
		if t == types.Int || t == types.Float || t == types.Any {
			return t
		}
		a.report(diag.Error, diag.SemTypeMismatch, "unary '-' requires a numeric operand", n.Pos(), "")
		return types.Any
	}
}

func (a *Analyzer) callType(n *ast.Call, sc *scope.ScopeNode) types.Type {
	calleeType := a.exprType(n.Callee, sc)
	for _, arg := range n.Args {
		a.exprType(arg, sc)
	}

	switch t := calleeType.(type) {
	case *types.Function:
		params := t.Params
		if name, ok := n.Callee.(*ast.Attribute); ok {
			_ = name // method call already resolved through Attribute; self is implicit at runtime
		}
		if len(n.Args) != len(params) {
			a.report(diag.Error, diag.SemTypeMismatch,
				fmt.Sprintf("expected %d arguments, got %d", len(params), len(n.Args)), n.Pos(), "")
		}
		for i, arg := range n.Args {
			if i >= len(params) {
				break
			}
			at := a.exprType(arg, sc)
			if !types.AssignableTo(at, params[i]) {
				a.report(diag.Error, diag.SemTypeMismatch,
					fmt.Sprintf("argument %d: cannot pass %s as %s", i+1, at, params[i]), arg.Pos(), "")
			}
		}
		return t.Return
	case *types.UserDefined:
		return t
	case *types.Callable:
		return types.Any
	default:
		return types.Any
	}
}
