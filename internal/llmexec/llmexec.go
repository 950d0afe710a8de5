// Package llmexec implements the LLM executor described in §4.6: prompt
// assembly for both behavior expressions and named `llm` functions, reply
// coercion per target type, and decision-scene matching. It implements
// internal/interp.LLMExecutor, keeping internal/interp itself ignorant of
// prompt text, provider transport, and coercion rules. Each evaluation makes
// one provider call; the bounded llmexcept retry loop is internal/interp's
// evalGuarded.
package llmexec

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ibci/internal/ast"
	"ibci/internal/config"
	"ibci/internal/diag"
	"ibci/internal/interp"
	"ibci/internal/llm"
	"ibci/internal/logging"
)

// Executor assembles prompts, calls a Provider, and coerces replies.
type Executor struct {
	Provider  llm.Provider
	Decisions *config.DecisionMap
	Ctx       context.Context // background context for provider calls

	log *logging.Logger
}

// New creates an Executor. ctx may be nil, in which case context.Background
// is used for every provider call.
func New(provider llm.Provider, decisions *config.DecisionMap, ctx context.Context) *Executor {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Executor{Provider: provider, Decisions: decisions, Ctx: ctx, log: logging.Get(logging.CategoryLLM)}
}

// ExecuteBehavior implements interp.LLMExecutor for a `@tag~ ... ~`
// expression.
func (e *Executor) ExecuteBehavior(i *interp.Interpreter, expr *ast.BehaviorExpr, env *interp.Env, hint interp.DeclaredHint) (interp.Value, error) {
	intents := i.ActiveIntents()
	if expr.Intent != "" {
		intents = append(intents, expr.Intent)
	}

	userText, err := e.renderSegments(i, expr.Segments, env)
	if err != nil {
		return nil, err
	}
	sysText := assembleSystem(intents, expr.Tag)

	scene := expr.Scene.String()
	sysText, userText = appendContract(sysText, userText, hint, scene, e.Decisions)

	callID := uuid.New().String()
	e.log.Debug("call %s: behavior %q scene=%s", callID, expr.Tag, scene)
	reply, err := e.Provider.Call(e.Ctx, sysText, userText, scene)
	if err != nil {
		return nil, newLLMTransportError(err)
	}
	e.log.Debug("call %s reply: %q", callID, reply)

	return e.coerceReply(reply, hint, expr.Scene)
}

// ExecuteLLMFunction implements interp.LLMExecutor for a named `llm`
// function call: parameters substitute into the sys/user prompt templates,
// then the reply coerces to the function's declared return type.
func (e *Executor) ExecuteLLMFunction(i *interp.Interpreter, fn *interp.LLMFunctionValue, args []interp.Value, env *interp.Env) (interp.Value, error) {
	callEnv := interp.NewEnv(fn.Closure)
	for idx, p := range fn.Def.Params {
		if idx < len(args) {
			callEnv.Define(p.Name, args[idx])
		}
	}

	sysText, err := e.renderSegments(i, fn.Def.SysPrompt, callEnv)
	if err != nil {
		return nil, err
	}
	userText, err := e.renderSegments(i, fn.Def.UserPrompt, callEnv)
	if err != nil {
		return nil, err
	}

	intents := i.ActiveIntents()
	sysText = assembleSystem(intents, sysText)

	hint := interp.DeclaredHint{}
	if len(fn.Def.ReturnType) > 0 {
		hint.TypeName = fn.Def.ReturnType[0].Lexeme
	}
	sysText, userText = appendContract(sysText, userText, hint, "GENERAL", e.Decisions)

	callID := uuid.New().String()
	e.log.Debug("call %s: llm function %s", callID, fn.Def.Name)
	reply, err := e.Provider.Call(e.Ctx, sysText, userText, "GENERAL")
	if err != nil {
		return nil, newLLMTransportError(err)
	}
	e.log.Debug("call %s reply: %q", callID, reply)

	return e.coerceReply(reply, hint, ast.SceneGeneral)
}

// newLLMTransportError wraps a Provider.Call failure (network, auth,
// quota) as a hard RuntimeError: unlike a coercion LLMUncertainty, a
// transport failure is not something an llmexcept retry can fix by asking
// the model again with a hint, so it is not retried.
func newLLMTransportError(err error) error {
	return &interp.RuntimeError{Code: diag.RunLLMError, Message: "LLM provider call failed: " + err.Error()}
}

// renderSegments interpolates literal text with evaluated $-references, per
// §4.6 step 2.
func (e *Executor) renderSegments(i *interp.Interpreter, segs []ast.PromptSegment, env *interp.Env) (string, error) {
	var sb strings.Builder
	for _, seg := range segs {
		if seg.Expr == nil {
			sb.WriteString(seg.Text)
			continue
		}
		v, err := i.EvalExpr(seg.Expr, env)
		if err != nil {
			return "", err
		}
		sb.WriteString(interp.Repr(v))
	}
	return sb.String(), nil
}

// assembleSystem concatenates the active intent stack onto a base system
// prompt, per §4.3's intent-concatenation rule.
func assembleSystem(intents []string, base string) string {
	if len(intents) == 0 {
		return base
	}
	return strings.Join(intents, " ") + "\n" + base
}

// appendContract appends the typed-declaration-context sentence (step 3)
// and the decision-scene sentence (step 4) to the user prompt.
func appendContract(sys, user string, hint interp.DeclaredHint, scene string, decisions *config.DecisionMap) (string, string) {
	if hint.TypeName != "" {
		user += "\n\nRespond with a value that can be interpreted as " + hint.TypeName + "."
	}
	switch scene {
	case "BRANCH", "LOOP":
		if decisions != nil {
			truthy, falsy := decisions.Words()
			sort.Strings(truthy)
			sort.Strings(falsy)
			user += "\n\nAnswer with one of: " + strings.Join(truthy, "/") +
				" to decide true, or " + strings.Join(falsy, "/") + " to decide false."
		}
	}
	return sys, user
}
