package interp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"ibci/internal/ast"
	"ibci/internal/config"
	"ibci/internal/diag"
	"ibci/internal/logging"
)

// LLMUncertainty is produced by an LLMExecutor when a reply cannot be
// coerced: a BRANCH/LOOP-scene reply that matches no word of the configured
// config.DecisionMap, or a reply that cannot be read as the declared
// int/float/list/dict target. It is the only error an llmexcept fallback is
// sensitive to, and execTry never hands it to a user `except` handler; any
// other error from an LLMExecutor call propagates as an ordinary
// RuntimeError.
type LLMUncertainty struct {
	Reason string
}

func (e *LLMUncertainty) Error() string { return "LLM decision uncertain: " + e.Reason }

// LLMExecutor is the sole suspension point described in §5: evaluating a
// BehaviorExpr or calling an `llm`-declared function delegates here instead
// of being handled inline, keeping internal/interp ignorant of prompt
// assembly, provider transport, and coercion (internal/llmexec's job).
type LLMExecutor interface {
	ExecuteBehavior(i *Interpreter, expr *ast.BehaviorExpr, env *Env, declared DeclaredHint) (Value, error)
	ExecuteLLMFunction(i *Interpreter, fn *LLMFunctionValue, args []Value, env *Env) (Value, error)
}

// DeclaredHint tells an LLMExecutor what type context a BehaviorExpr's
// result will be coerced into: the declared type of the variable being
// initialized, or zero value when used as a bare expression statement.
type DeclaredHint struct {
	TypeName string // "", "int", "float", "bool", "str", "list", "dict"
}

// Interpreter walks a compiled module's AST, per §4.5.
type Interpreter struct {
	Limits  config.Limits
	Sandbox *config.Sandbox
	LLM     LLMExecutor
	Out     io.Writer
	In      *bufio.Reader

	instrCount  int
	callDepth   int
	intentStack []string
	log         *logging.Logger
}

// New creates an Interpreter. llm may be nil if the program under
// evaluation provably contains no BehaviorExpr/llm-function (callers should
// still pass a real executor in general use).
func New(limits config.Limits, sandbox *config.Sandbox, llm LLMExecutor, out io.Writer, in io.Reader) *Interpreter {
	var r *bufio.Reader
	if in != nil {
		r = bufio.NewReader(in)
	}
	return &Interpreter{Limits: limits, Sandbox: sandbox, LLM: llm, Out: out, In: r, log: logging.Get(logging.CategoryInterp)}
}

// Run executes mod's top-level statements to completion in a fresh
// top-level Env.
func (i *Interpreter) Run(mod *ast.Module) error {
	return i.Execute(mod, i.NewModuleEnv())
}

// NewModuleEnv creates an Env pre-populated with the host intrinsics, for a
// single module's top-level bindings. Exported so internal/scheduler can
// give each compiled module (including imported dependencies) its own Env
// before executing it.
func (i *Interpreter) NewModuleEnv() *Env {
	env := NewEnv(nil)
	defineBuiltins(i, env)
	return env
}

// Execute runs mod's top-level statements into env, converting any escaped
// control-flow signal into the generic runtime error §7 specifies.
func (i *Interpreter) Execute(mod *ast.Module, env *Env) error {
	i.log.Debug("starting module %s", mod.Path)
	err := i.execStmts(mod.Body, env)
	if err != nil {
		i.log.Debug("module %s exited with error: %v", mod.Path, err)
	}
	return i.topLevelError(err)
}

// topLevelError converts an escaped control-flow Signal into the generic
// runtime error §7 specifies for signals that reach the top of the program
// unhandled.
func (i *Interpreter) topLevelError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(Signal); ok {
		return newRuntimeError(diag.RunGenericError, "unhandled control-flow escaped to top level: %v", err)
	}
	return err
}

// EvalExpr evaluates e in env. Exported so internal/llmexec can evaluate a
// BehaviorExpr's embedded $-references while assembling a prompt without
// internal/interp depending back on internal/llmexec.
func (i *Interpreter) EvalExpr(e ast.Expr, env *Env) (Value, error) {
	return i.evalExpr(e, env)
}

// ActiveIntents returns the stack of `@ intent` annotations from enclosing
// calls, outermost first, per §4.3's intent-concatenation rule for prompt
// assembly.
func (i *Interpreter) ActiveIntents() []string {
	return append([]string(nil), i.intentStack...)
}

func (i *Interpreter) bumpInstr() error {
	i.instrCount++
	if i.Limits.MaxInstructions > 0 && i.instrCount > i.Limits.MaxInstructions {
		return newRuntimeError(diag.RunLimitExceeded, "exceeded max instruction count (%d)", i.Limits.MaxInstructions)
	}
	return nil
}

// ---- statement execution ----

func (i *Interpreter) execStmts(stmts []ast.Stmt, env *Env) error {
	for _, s := range stmts {
		if err := i.execStmt(s, env); err != nil {
			return err
		}
	}
	return nil
}

// execBlock is execStmts in a fresh child Env, for every construct that
// introduces its own block scope (if/while/for bodies, try handlers, ...).
func (i *Interpreter) execBlock(stmts []ast.Stmt, parent *Env) error {
	return i.execStmts(stmts, NewEnv(parent))
}

func (i *Interpreter) execStmt(s ast.Stmt, env *Env) error {
	if err := i.bumpInstr(); err != nil {
		return err
	}
	switch n := s.(type) {
	case *ast.FunctionDef:
		env.Define(n.Name, &FunctionValue{Def: n, Closure: env})
		return nil
	case *ast.LLMFunctionDef:
		env.Define(n.Name, &LLMFunctionValue{Def: n, Closure: env})
		return nil
	case *ast.ClassDef:
		env.Define(n.Name, &ClassValue{Def: n, Closure: env})
		return nil
	case *ast.Assign:
		return i.execAssign(n, env)
	case *ast.AugAssign:
		return i.execAugAssign(n, env)
	case *ast.If:
		return i.execIf(n, env)
	case *ast.While:
		return i.execWhile(n, env)
	case *ast.For:
		return i.execFor(n, env)
	case *ast.Try:
		return i.execTry(n, env)
	case *ast.Return:
		var v Value = None
		if n.Value != nil {
			val, err := i.evalExpr(n.Value, env)
			if err != nil {
				return err
			}
			v = val
		}
		return ReturnSignal{Value: v}
	case *ast.Raise:
		var v Value
		if n.Value != nil {
			val, err := i.evalExpr(n.Value, env)
			if err != nil {
				return err
			}
			v = val
		}
		return RaiseSignal{Value: v}
	case *ast.Retry:
		return RetrySignal{}
	case *ast.Pass:
		return nil
	case *ast.Break:
		return Break
	case *ast.Continue:
		return Continue
	case *ast.ExprStmt:
		_, err := i.evalExpr(n.X, env)
		return err
	case *ast.Import, *ast.ImportFrom:
		// Module binding is performed by the scheduler before handing this
		// compiled unit to the interpreter; by run time the name is already
		// defined in env via BindModule.
		return nil
	default:
		return newRuntimeError(diag.RunGenericError, "unhandled statement %T", s)
	}
}

func (i *Interpreter) execAssign(n *ast.Assign, env *Env) error {
	var hint DeclaredHint
	if n.TypeTokens != nil && len(n.TypeTokens) > 0 {
		hint.TypeName = n.TypeTokens[0].Lexeme
	}

	var v Value = None
	if n.Value != nil {
		val, err := i.evalDeclInit(n.Value, env, hint)
		if err != nil {
			return err
		}
		v = val
	}

	if n.TypeTokens != nil {
		name, ok := n.Target.(*ast.Name)
		if !ok {
			return newRuntimeError(diag.RunGenericError, "declaration target must be a name")
		}
		env.Define(name.Ident, v)
		return nil
	}
	return i.assignTo(n.Target, v, env)
}

// evalDeclInit evaluates a declaration's initializer, passing the declared
// type name through as a coercion hint when the initializer is a behavior
// expression (§4.6 step 5: the LLM executor needs the target type to know
// how to coerce its reply).
func (i *Interpreter) evalDeclInit(e ast.Expr, env *Env, hint DeclaredHint) (Value, error) {
	if be, ok := e.(*ast.BehaviorExpr); ok {
		if hint.TypeName == "Callable" {
			return &BehaviorValue{Expr: be, Closure: env}, nil
		}
		return i.runLLMExecutor(be, env, hint)
	}
	return i.evalExpr(e, env)
}

func (i *Interpreter) runLLMExecutor(be *ast.BehaviorExpr, env *Env, hint DeclaredHint) (Value, error) {
	if i.LLM == nil {
		return nil, newRuntimeError(diag.RunLLMError, "no LLM executor configured")
	}
	return i.LLM.ExecuteBehavior(i, be, env, hint)
}

func (i *Interpreter) assignTo(target ast.Expr, v Value, env *Env) error {
	switch t := target.(type) {
	case *ast.Name:
		if !env.Set(t.Ident, v) {
			return newRuntimeError(diag.RunUndefinedVariable, "%q is not defined", t.Ident)
		}
		return nil
	case *ast.Attribute:
		recv, err := i.evalExpr(t.Receiver, env)
		if err != nil {
			return err
		}
		inst, ok := recv.(*InstanceValue)
		if !ok {
			return newRuntimeError(diag.RunAttributeError, "cannot set attribute %q on non-instance value", t.Attr)
		}
		if !inst.Fields.Set(t.Attr, v) {
			inst.Fields.Define(t.Attr, v)
		}
		return nil
	case *ast.Subscript:
		container, err := i.evalExpr(t.Container, env)
		if err != nil {
			return err
		}
		idx, err := i.evalExpr(t.Index, env)
		if err != nil {
			return err
		}
		return setSubscript(container, idx, v)
	default:
		return newRuntimeError(diag.RunGenericError, "invalid assignment target")
	}
}

func setSubscript(container, idx, v Value) error {
	switch c := container.(type) {
	case *ListValue:
		n, ok := idx.(IntValue)
		if !ok {
			return newRuntimeError(diag.RunTypeMismatch, "list index must be int")
		}
		pos := normalizeIndex(int(n), len(c.Elems))
		if pos < 0 || pos >= len(c.Elems) {
			return newRuntimeError(diag.RunIndexError, "list index %d out of range", n)
		}
		c.Elems[pos] = v
		return nil
	case *DictValue:
		c.Set(Repr(idx), v)
		return nil
	default:
		return newRuntimeError(diag.RunTypeMismatch, "value is not subscriptable")
	}
}

func normalizeIndex(idx, length int) int {
	if idx < 0 {
		return length + idx
	}
	return idx
}

func (i *Interpreter) execAugAssign(n *ast.AugAssign, env *Env) error {
	cur, err := i.evalExpr(n.Target, env)
	if err != nil {
		return err
	}
	rhs, err := i.evalExpr(n.Value, env)
	if err != nil {
		return err
	}
	var op ast.BinOpKind
	switch n.Op {
	case ast.AugAdd:
		op = ast.OpAdd
	case ast.AugSub:
		op = ast.OpSub
	case ast.AugMul:
		op = ast.OpMul
	case ast.AugDiv:
		op = ast.OpDiv
	case ast.AugMod:
		op = ast.OpMod
	}
	result, err := i.binOp(op, cur, rhs)
	if err != nil {
		return err
	}
	return i.assignTo(n.Target, result, env)
}

// ---- guarded (llmexcept-retriable) control flow ----

// evalGuarded evaluates test, retrying through fallback up to
// MaxConstructRetries times whenever test fails with *LLMUncertainty. A nil
// Value with nil error means the fallback absorbed the uncertainty without
// requesting a retry — callers should treat the construct as complete with
// no body execution.
func (i *Interpreter) evalGuarded(test func() (Value, error), fallback []ast.Stmt, env *Env) (Value, error) {
	attempts := 0
	for {
		v, err := test()
		if err == nil {
			return v, nil
		}
		var unc *LLMUncertainty
		if !errors.As(err, &unc) || fallback == nil {
			return nil, err
		}
		retried, ferr := i.runFallback(fallback, env)
		if ferr != nil {
			return nil, ferr
		}
		if !retried {
			return nil, nil
		}
		attempts++
		if attempts > i.Limits.MaxConstructRetries {
			return nil, newRuntimeError(diag.RunLimitExceeded, "exceeded max construct retries (%d)", i.Limits.MaxConstructRetries)
		}
	}
}

func (i *Interpreter) runFallback(body []ast.Stmt, parent *Env) (retried bool, err error) {
	fbEnv := NewEnv(parent)
	for _, s := range body {
		if err := i.execStmt(s, fbEnv); err != nil {
			if _, ok := err.(RetrySignal); ok {
				return true, nil
			}
			return false, err
		}
	}
	return false, nil
}

func (i *Interpreter) execIf(n *ast.If, env *Env) error {
	test, err := i.evalGuarded(func() (Value, error) { return i.evalExpr(n.Test, env) }, n.Fallback, env)
	if err != nil {
		return err
	}
	if test == nil {
		return nil
	}
	if Truthy(test) {
		return i.execBlock(n.Body, env)
	}
	if n.Orelse != nil {
		return i.execBlock(n.Orelse, env)
	}
	return nil
}

func (i *Interpreter) execWhile(n *ast.While, env *Env) error {
	for {
		test, err := i.evalGuarded(func() (Value, error) { return i.evalExpr(n.Test, env) }, n.Fallback, env)
		if err != nil {
			return err
		}
		if test == nil || !Truthy(test) {
			return nil
		}
		if err := i.execBlock(n.Body, env); err != nil {
			if err == Break {
				return nil
			}
			if err == Continue {
				continue
			}
			return err
		}
	}
}

func (i *Interpreter) execFor(n *ast.For, env *Env) error {
	if n.Target == nil {
		return i.execForTargetless(n, env)
	}

	iterVal, err := i.evalGuarded(func() (Value, error) { return i.evalExpr(n.Iter, env) }, n.Fallback, env)
	if err != nil {
		return err
	}
	if iterVal == nil {
		return nil
	}

	elems, err := iterate(iterVal)
	if err != nil {
		return err
	}
	name, ok := n.Target.(*ast.Name)
	if !ok {
		return newRuntimeError(diag.RunGenericError, "for-loop target must be a name")
	}
	for _, elem := range elems {
		bodyEnv := NewEnv(env)
		bodyEnv.Define(name.Ident, elem)
		if err := i.execStmts(n.Body, bodyEnv); err != nil {
			if err == Break {
				return nil
			}
			if err == Continue {
				continue
			}
			return err
		}
	}
	return nil
}

// execForTargetless implements the target-less `for iter:` form: a single
// int evaluation repeats the body that many times; anything else is
// re-evaluated each pass like a while-loop condition (so a BehaviorExpr
// guard can re-consult the LLM on every iteration).
func (i *Interpreter) execForTargetless(n *ast.For, env *Env) error {
	first, err := i.evalGuarded(func() (Value, error) { return i.evalExpr(n.Iter, env) }, n.Fallback, env)
	if err != nil {
		return err
	}
	if first == nil {
		return nil
	}
	if count, ok := first.(IntValue); ok {
		for k := int64(0); k < int64(count); k++ {
			if err := i.execBlock(n.Body, env); err != nil {
				if err == Break {
					return nil
				}
				if err == Continue {
					continue
				}
				return err
			}
		}
		return nil
	}

	cond := first
	for {
		if !Truthy(cond) {
			return nil
		}
		if err := i.execBlock(n.Body, env); err != nil {
			if err == Break {
				return nil
			}
			if err != Continue {
				return err
			}
		}
		next, err := i.evalGuarded(func() (Value, error) { return i.evalExpr(n.Iter, env) }, n.Fallback, env)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		cond = next
	}
}

func iterate(v Value) ([]Value, error) {
	switch t := v.(type) {
	case *ListValue:
		return t.Elems, nil
	case *DictValue:
		out := make([]Value, 0, len(t.Keys()))
		for _, k := range t.Keys() {
			out = append(out, StrValue(k))
		}
		return out, nil
	case StrValue:
		runes := []rune(string(t))
		out := make([]Value, len(runes))
		for idx, r := range runes {
			out[idx] = StrValue(string(r))
		}
		return out, nil
	case IntValue:
		out := make([]Value, int64(t))
		for idx := range out {
			out[idx] = IntValue(idx)
		}
		return out, nil
	default:
		return nil, newRuntimeError(diag.RunTypeMismatch, "value is not iterable")
	}
}

func (i *Interpreter) execTry(n *ast.Try, env *Env) error {
	err := i.execBlock(n.Body, env)
	if err == nil {
		if n.Orelse != nil {
			err = i.execBlock(n.Orelse, env)
		}
	} else if _, isSignal := err.(Signal); (!isSignal || isRaise(err)) && !errors.As(err, new(*LLMUncertainty)) {
		for _, h := range n.Handlers {
			if !handlerMatches(h, err) {
				continue
			}
			hEnv := NewEnv(env)
			if h.As != "" {
				hEnv.Define(h.As, errorValue(err))
			}
			err = i.execStmts(h.Body, hEnv)
			break
		}
		// no handler matched: err falls through unchanged
	}
	if n.Finally != nil {
		if ferr := i.execBlock(n.Finally, env); ferr != nil {
			return ferr
		}
	}
	return err
}

// handlerMatches reports whether h's optional type annotation accepts err.
// A handler with no Type annotation is a catch-all. The language does not
// define a catalog of exception classes (errors carry a diag.Code, not a
// user-facing class hierarchy), so a named handler matches when the runtime
// error's Code contains its first annotation token, compared
// case-insensitively with underscores removed — e.g. `except DivisionByZero:`
// matches RUN_DIVISION_BY_ZERO — and `except Error:` matches every runtime
// error.
func handlerMatches(h ast.ExceptHandler, err error) bool {
	if h.Type == nil {
		return true
	}
	re, ok := err.(*RuntimeError)
	if !ok {
		return true // a user `raise`d value has no Code to filter on
	}
	want := strings.ToLower(strings.ReplaceAll(h.Type[0].Lexeme, "_", ""))
	got := strings.ToLower(strings.ReplaceAll(string(re.Code), "_", ""))
	return strings.Contains(got, want) || want == "error"
}

func isRaise(err error) bool {
	_, ok := err.(RaiseSignal)
	if ok {
		return true
	}
	_, ok = err.(*RuntimeError)
	return ok
}

func errorValue(err error) Value {
	if rs, ok := err.(RaiseSignal); ok && rs.Value != nil {
		return rs.Value
	}
	return StrValue(err.Error())
}

// ---- expression evaluation ----

func (i *Interpreter) evalExpr(e ast.Expr, env *Env) (Value, error) {
	if err := i.bumpInstr(); err != nil {
		return nil, err
	}
	switch n := e.(type) {
	case *ast.Constant:
		return constValue(n), nil
	case *ast.Name:
		v, ok := env.Get(n.Ident)
		if !ok {
			return nil, newRuntimeError(diag.RunUndefinedVariable, "%q is not defined", n.Ident)
		}
		return v, nil
	case *ast.Attribute:
		return i.evalAttribute(n, env)
	case *ast.Subscript:
		return i.evalSubscript(n, env)
	case *ast.ListExpr:
		elems := make([]Value, len(n.Elts))
		for idx, el := range n.Elts {
			v, err := i.evalExpr(el, env)
			if err != nil {
				return nil, err
			}
			elems[idx] = v
		}
		return &ListValue{Elems: elems}, nil
	case *ast.DictExpr:
		d := NewDict()
		for _, entry := range n.Entries {
			k, err := i.evalExpr(entry.Key, env)
			if err != nil {
				return nil, err
			}
			v, err := i.evalExpr(entry.Value, env)
			if err != nil {
				return nil, err
			}
			d.Set(Repr(k), v)
		}
		return d, nil
	case *ast.BinOp:
		l, err := i.evalExpr(n.Left, env)
		if err != nil {
			return nil, err
		}
		r, err := i.evalExpr(n.Right, env)
		if err != nil {
			return nil, err
		}
		return i.binOp(n.Op, l, r)
	case *ast.UnaryOp:
		v, err := i.evalExpr(n.Operand, env)
		if err != nil {
			return nil, err
		}
		return i.unaryOp(n.Op, v)
	case *ast.Compare:
		return i.evalCompare(n, env)
	case *ast.BoolOp:
		return i.evalBoolOp(n, env)
	case *ast.Call:
		return i.evalCall(n, env)
	case *ast.CastExpr:
		v, err := i.evalExpr(n.Arg, env)
		if err != nil {
			return nil, err
		}
		return cast(n.TargetType, v)
	case *ast.BehaviorExpr:
		return i.runLLMExecutor(n, env, DeclaredHint{})
	default:
		return nil, newRuntimeError(diag.RunGenericError, "unhandled expression %T", e)
	}
}

func constValue(c *ast.Constant) Value {
	switch c.Kind {
	case ast.ConstInt:
		return IntValue(c.Int)
	case ast.ConstFloat:
		return FloatValue(c.Flt)
	case ast.ConstString:
		return StrValue(c.Str)
	case ast.ConstBool:
		return BoolValue(c.Bool)
	default:
		return None
	}
}

func (i *Interpreter) evalAttribute(n *ast.Attribute, env *Env) (Value, error) {
	recv, err := i.evalExpr(n.Receiver, env)
	if err != nil {
		return nil, err
	}
	switch t := recv.(type) {
	case *InstanceValue:
		if v, ok := t.Fields.Get(n.Attr); ok {
			return v, nil
		}
		for _, m := range t.Class.Def.Methods {
			if m.Name == n.Attr {
				return &FunctionValue{Def: m, Closure: t.Class.Closure, Self: t}, nil
			}
		}
		return nil, newRuntimeError(diag.RunAttributeError, "%q has no attribute %q", t.Class.Def.Name, n.Attr)
	case *ModuleValue:
		v, ok := t.Env.Get(n.Attr)
		if !ok {
			return nil, newRuntimeError(diag.RunAttributeError, "module %q has no member %q", t.Name, n.Attr)
		}
		return v, nil
	default:
		return nil, newRuntimeError(diag.RunAttributeError, "value has no attribute %q", n.Attr)
	}
}

func (i *Interpreter) evalSubscript(n *ast.Subscript, env *Env) (Value, error) {
	c, err := i.evalExpr(n.Container, env)
	if err != nil {
		return nil, err
	}
	idx, err := i.evalExpr(n.Index, env)
	if err != nil {
		return nil, err
	}
	switch container := c.(type) {
	case *ListValue:
		n, ok := idx.(IntValue)
		if !ok {
			return nil, newRuntimeError(diag.RunTypeMismatch, "list index must be int")
		}
		pos := normalizeIndex(int(n), len(container.Elems))
		if pos < 0 || pos >= len(container.Elems) {
			return nil, newRuntimeError(diag.RunIndexError, "list index %d out of range", n)
		}
		return container.Elems[pos], nil
	case *DictValue:
		v, ok := container.Get(Repr(idx))
		if !ok {
			return nil, newRuntimeError(diag.RunIndexError, "key %s not found", Repr(idx))
		}
		return v, nil
	case StrValue:
		n, ok := idx.(IntValue)
		if !ok {
			return nil, newRuntimeError(diag.RunTypeMismatch, "string index must be int")
		}
		runes := []rune(string(container))
		pos := normalizeIndex(int(n), len(runes))
		if pos < 0 || pos >= len(runes) {
			return nil, newRuntimeError(diag.RunIndexError, "string index %d out of range", n)
		}
		return StrValue(string(runes[pos])), nil
	default:
		return nil, newRuntimeError(diag.RunTypeMismatch, "value is not subscriptable")
	}
}

func (i *Interpreter) evalCompare(n *ast.Compare, env *Env) (Value, error) {
	left, err := i.evalExpr(n.Left, env)
	if err != nil {
		return nil, err
	}
	for idx, op := range n.Ops {
		right, err := i.evalExpr(n.Comparators[idx], env)
		if err != nil {
			return nil, err
		}
		ok, err := compareOne(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return BoolValue(false), nil
		}
		left = right
	}
	return BoolValue(true), nil
}

func compareOne(op ast.CompareOpKind, l, r Value) (bool, error) {
	if op == ast.CmpEq {
		return valuesEqual(l, r), nil
	}
	if op == ast.CmpNe {
		return !valuesEqual(l, r), nil
	}
	lf, lok := numeric(l)
	rf, rok := numeric(r)
	if lok && rok {
		switch op {
		case ast.CmpLt:
			return lf < rf, nil
		case ast.CmpLe:
			return lf <= rf, nil
		case ast.CmpGt:
			return lf > rf, nil
		case ast.CmpGe:
			return lf >= rf, nil
		}
	}
	ls, lsok := l.(StrValue)
	rs, rsok := r.(StrValue)
	if lsok && rsok {
		switch op {
		case ast.CmpLt:
			return ls < rs, nil
		case ast.CmpLe:
			return ls <= rs, nil
		case ast.CmpGt:
			return ls > rs, nil
		case ast.CmpGe:
			return ls >= rs, nil
		}
	}
	return false, newRuntimeError(diag.RunTypeMismatch, "values are not comparable")
}

func valuesEqual(l, r Value) bool {
	if lf, lok := numeric(l); lok {
		if rf, rok := numeric(r); rok {
			return lf == rf
		}
	}
	return Repr(l) == Repr(r) && sameKind(l, r)
}

func sameKind(l, r Value) bool {
	switch l.(type) {
	case StrValue:
		_, ok := r.(StrValue)
		return ok
	case BoolValue:
		_, ok := r.(BoolValue)
		return ok
	case NoneValue:
		_, ok := r.(NoneValue)
		return ok
	default:
		return fmt.Sprintf("%T", l) == fmt.Sprintf("%T", r)
	}
}

func numeric(v Value) (float64, bool) {
	switch t := v.(type) {
	case IntValue:
		return float64(t), true
	case FloatValue:
		return float64(t), true
	default:
		return 0, false
	}
}

func (i *Interpreter) evalBoolOp(n *ast.BoolOp, env *Env) (Value, error) {
	var result Value = BoolValue(n.Op == ast.BoolAnd)
	for _, v := range n.Values {
		val, err := i.evalExpr(v, env)
		if err != nil {
			return nil, err
		}
		result = val
		if n.Op == ast.BoolAnd && !Truthy(val) {
			return val, nil
		}
		if n.Op == ast.BoolOr && Truthy(val) {
			return val, nil
		}
	}
	return result, nil
}

// binOp implements §4.4's promotion table at runtime: int op int stays
// int (except `/`, which always yields float); any float operand promotes
// both sides to float; `+` additionally concatenates strings and lists;
// bitwise/shift operators require int on both sides.
func (i *Interpreter) binOp(op ast.BinOpKind, l, r Value) (Value, error) {
	if op == ast.OpAdd {
		if ls, ok := l.(StrValue); ok {
			if rs, ok := r.(StrValue); ok {
				return ls + rs, nil
			}
		}
		if ll, ok := l.(*ListValue); ok {
			if rl, ok := r.(*ListValue); ok {
				out := make([]Value, 0, len(ll.Elems)+len(rl.Elems))
				out = append(out, ll.Elems...)
				out = append(out, rl.Elems...)
				return &ListValue{Elems: out}, nil
			}
		}
	}
	switch op {
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpLShift, ast.OpRShift:
		li, lok := l.(IntValue)
		ri, rok := r.(IntValue)
		if !lok || !rok {
			return nil, newRuntimeError(diag.RunTypeMismatch, "bitwise operators require int operands")
		}
		return bitOp(op, li, ri), nil
	}

	lf, lok := numeric(l)
	rf, rok := numeric(r)
	if !lok || !rok {
		return nil, newRuntimeError(diag.RunTypeMismatch, "operator not defined for these operand types")
	}
	_, lInt := l.(IntValue)
	_, rInt := r.(IntValue)
	bothInt := lInt && rInt

	switch op {
	case ast.OpAdd:
		if bothInt {
			return IntValue(int64(lf) + int64(rf)), nil
		}
		return FloatValue(lf + rf), nil
	case ast.OpSub:
		if bothInt {
			return IntValue(int64(lf) - int64(rf)), nil
		}
		return FloatValue(lf - rf), nil
	case ast.OpMul:
		if bothInt {
			return IntValue(int64(lf) * int64(rf)), nil
		}
		return FloatValue(lf * rf), nil
	case ast.OpDiv:
		if rf == 0 {
			return nil, newRuntimeError(diag.RunDivisionByZero, "division by zero")
		}
		return FloatValue(lf / rf), nil
	case ast.OpMod:
		if rf == 0 {
			return nil, newRuntimeError(diag.RunDivisionByZero, "modulo by zero")
		}
		if bothInt {
			return IntValue(int64(lf) % int64(rf)), nil
		}
		return FloatValue(math.Mod(lf, rf)), nil
	}
	return nil, newRuntimeError(diag.RunGenericError, "unknown binary operator")
}

func bitOp(op ast.BinOpKind, l, r IntValue) IntValue {
	switch op {
	case ast.OpBitAnd:
		return l & r
	case ast.OpBitOr:
		return l | r
	case ast.OpBitXor:
		return l ^ r
	case ast.OpLShift:
		return l << uint(r)
	case ast.OpRShift:
		return l >> uint(r)
	default:
		return 0
	}
}

func (i *Interpreter) unaryOp(op ast.UnaryOpKind, v Value) (Value, error) {
	switch op {
	case ast.UnaryNot:
		return BoolValue(!Truthy(v)), nil
	case ast.UnaryBitNot:
		iv, ok := v.(IntValue)
		if !ok {
			return nil, newRuntimeError(diag.RunTypeMismatch, "'~' requires an int operand")
		}
		return ^iv, nil
	default: // UnaryNeg
		switch t := v.(type) {
		case IntValue:
			return -t, nil
		case FloatValue:
			return -t, nil
		default:
			return nil, newRuntimeError(diag.RunTypeMismatch, "unary '-' requires a numeric operand")
		}
	}
}

func cast(target string, v Value) (Value, error) {
	switch target {
	case "int":
		switch t := v.(type) {
		case IntValue:
			return t, nil
		case FloatValue:
			return IntValue(int64(t)), nil
		case BoolValue:
			if t {
				return IntValue(1), nil
			}
			return IntValue(0), nil
		case StrValue:
			n, err := strconv.ParseInt(string(t), 10, 64)
			if err != nil {
				return nil, newRuntimeError(diag.RunTypeMismatch, "cannot convert %q to int", string(t))
			}
			return IntValue(n), nil
		}
	case "float":
		switch t := v.(type) {
		case FloatValue:
			return t, nil
		case IntValue:
			return FloatValue(t), nil
		case StrValue:
			f, err := strconv.ParseFloat(string(t), 64)
			if err != nil {
				return nil, newRuntimeError(diag.RunTypeMismatch, "cannot convert %q to float", string(t))
			}
			return FloatValue(f), nil
		}
	case "str":
		return StrValue(Repr(v)), nil
	case "bool":
		return BoolValue(Truthy(v)), nil
	}
	return nil, newRuntimeError(diag.RunTypeMismatch, "cannot cast to %s", target)
}

// ---- calls ----

func (i *Interpreter) evalCall(n *ast.Call, env *Env) (Value, error) {
	callee, err := i.evalExpr(n.Callee, env)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(n.Args))
	for idx, a := range n.Args {
		v, err := i.evalExpr(a, env)
		if err != nil {
			return nil, err
		}
		args[idx] = v
	}
	if n.Intent != "" {
		i.intentStack = append(i.intentStack, n.Intent)
		defer func() { i.intentStack = i.intentStack[:len(i.intentStack)-1] }()
	}
	return i.Call(callee, args, env)
}

// Call invokes any callable Value, pushing/popping the recursion counter.
func (i *Interpreter) Call(callee Value, args []Value, env *Env) (Value, error) {
	i.callDepth++
	defer func() { i.callDepth-- }()
	if i.Limits.MaxCallStack > 0 && i.callDepth > i.Limits.MaxCallStack {
		return nil, newRuntimeError(diag.RunLimitExceeded, "exceeded max call stack depth (%d)", i.Limits.MaxCallStack)
	}

	switch fn := callee.(type) {
	case *BuiltinValue:
		return fn.Fn(args)
	case *FunctionValue:
		return i.callFunction(fn, args)
	case *LLMFunctionValue:
		if i.LLM == nil {
			return nil, newRuntimeError(diag.RunLLMError, "no LLM executor configured")
		}
		return i.LLM.ExecuteLLMFunction(i, fn, args, env)
	case *BehaviorValue:
		return i.runLLMExecutor(fn.Expr, fn.Closure, DeclaredHint{})
	case *ClassValue:
		return i.instantiate(fn, args)
	default:
		return nil, newRuntimeError(diag.RunCallError, "value is not callable")
	}
}

func (i *Interpreter) callFunction(fn *FunctionValue, args []Value) (Value, error) {
	callEnv := NewEnv(fn.Closure)
	if fn.Self != nil {
		callEnv.Define("self", fn.Self)
	}
	for idx, p := range fn.Def.Params {
		if idx < len(args) {
			callEnv.Define(p.Name, args[idx])
			continue
		}
		if p.DefaultValue != nil {
			v, err := i.evalExpr(p.DefaultValue, callEnv)
			if err != nil {
				return nil, err
			}
			callEnv.Define(p.Name, v)
			continue
		}
		return nil, newRuntimeError(diag.RunCallError, "missing argument %q calling %s", p.Name, fn.Def.Name)
	}

	err := i.execStmts(fn.Def.Body, callEnv)
	switch v := err.(type) {
	case nil:
		return None, nil
	case ReturnSignal:
		return v.Value, nil
	case Signal:
		return nil, newRuntimeError(diag.RunGenericError, "%v escaped function %s", v, fn.Def.Name)
	default:
		return nil, err
	}
}

func (i *Interpreter) instantiate(cls *ClassValue, args []Value) (Value, error) {
	fields := NewEnv(nil)
	for _, f := range cls.Def.Fields {
		var v Value = None
		if f.DefaultValue != nil {
			val, err := i.evalExpr(f.DefaultValue, cls.Closure)
			if err != nil {
				return nil, err
			}
			v = val
		}
		fields.Define(f.Name, v)
	}
	inst := &InstanceValue{Class: cls, Fields: fields}

	for _, m := range cls.Def.Methods {
		if m.Name == "init" || m.Name == "__init__" {
			_, err := i.callFunction(&FunctionValue{Def: m, Closure: cls.Closure, Self: inst}, args)
			if err != nil {
				return nil, err
			}
			break
		}
	}
	return inst, nil
}

// BindModule defines name in env as a ModuleValue, used by the scheduler
// once a module dependency has finished compiling and executing.
func BindModule(env *Env, name string, modEnv *Env) {
	env.Define(name, &ModuleValue{Name: name, Env: modEnv})
}
