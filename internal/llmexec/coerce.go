package llmexec

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"ibci/internal/ast"
	"ibci/internal/diag"
	"ibci/internal/interp"
)

var (
	intPattern   = regexp.MustCompile(`-?\d+`)
	floatPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// coerceReply implements §4.6's per-target-type coercion rules, and its
// decision-scene matching for BRANCH/LOOP, which produces an
// interp.LLMUncertainty the caller's llmexcept fallback can catch.
func (e *Executor) coerceReply(reply string, hint interp.DeclaredHint, scene ast.Scene) (interp.Value, error) {
	if scene == ast.SceneBranch || scene == ast.SceneLoop {
		return e.coerceDecision(reply)
	}

	switch hint.TypeName {
	case "int":
		m := intPattern.FindString(reply)
		if m == "" {
			return nil, &interp.LLMUncertainty{Reason: "reply contains no integer: " + reply}
		}
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, &interp.LLMUncertainty{Reason: "could not parse integer from reply: " + reply}
		}
		return interp.IntValue(n), nil
	case "float":
		m := floatPattern.FindString(reply)
		if m == "" {
			return nil, &interp.LLMUncertainty{Reason: "reply contains no number: " + reply}
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil, &interp.LLMUncertainty{Reason: "could not parse number from reply: " + reply}
		}
		return interp.FloatValue(f), nil
	case "bool":
		if v, ok := e.decideWord(reply); ok {
			return interp.BoolValue(v), nil
		}
		return interp.BoolValue(strings.TrimSpace(reply) != ""), nil
	case "list":
		data, err := extractJSON(reply, '[', ']')
		if err != nil {
			return nil, &interp.LLMUncertainty{Reason: err.Error()}
		}
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &interp.LLMUncertainty{Reason: "reply is not a JSON list: " + reply}
		}
		elems := make([]interp.Value, len(raw))
		for i, v := range raw {
			elems[i] = fromJSON(v)
		}
		return &interp.ListValue{Elems: elems}, nil
	case "dict":
		data, err := extractJSON(reply, '{', '}')
		if err != nil {
			return nil, &interp.LLMUncertainty{Reason: err.Error()}
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &interp.LLMUncertainty{Reason: "reply is not a JSON object: " + reply}
		}
		d := interp.NewDict()
		for k, v := range raw {
			d.Set(k, fromJSON(v))
		}
		return d, nil
	default:
		return interp.StrValue(strings.TrimSpace(reply)), nil
	}
}

// coerceDecision returns the mapped character "0" or "1" per §4.6/§8, not a
// bool — matching the original evaluator.py's decision vocabulary.
func (e *Executor) coerceDecision(reply string) (interp.Value, error) {
	if v, ok := e.decideWord(reply); ok {
		if v {
			return interp.StrValue("1"), nil
		}
		return interp.StrValue("0"), nil
	}
	return nil, &interp.LLMUncertainty{Reason: "reply did not match the decision vocabulary: " + reply}
}

func (e *Executor) decideWord(reply string) (bool, bool) {
	if e.Decisions == nil {
		return false, false
	}
	normalized := strings.ToLower(strings.TrimSpace(reply))
	if result, ok := e.Decisions.Decide(normalized); ok {
		return result == "1", true
	}
	for _, word := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if result, ok := e.Decisions.Decide(word); ok {
			return result == "1", true
		}
	}
	return false, false
}

// extractJSON strips an optional ```json fence and returns the substring
// between the first open and matching close bracket, per §4.6's "balanced-
// bracket extraction" coercion step.
func extractJSON(reply string, open, close byte) ([]byte, error) {
	text := reply
	if m := fencePattern.FindStringSubmatch(reply); m != nil {
		text = m[1]
	}
	start := strings.IndexByte(text, open)
	if start < 0 {
		return nil, errNoBracket(open)
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return []byte(text[start : i+1]), nil
			}
		}
	}
	return nil, errNoBracket(close)
}

func errNoBracket(b byte) error {
	return &interp.RuntimeError{Code: diag.RunLLMError, Message: "reply has no balanced '" + string(b) + "'"}
}

func fromJSON(v any) interp.Value {
	switch t := v.(type) {
	case nil:
		return interp.None
	case bool:
		return interp.BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return interp.IntValue(int64(t))
		}
		return interp.FloatValue(t)
	case string:
		return interp.StrValue(t)
	case []any:
		elems := make([]interp.Value, len(t))
		for i, e := range t {
			elems[i] = fromJSON(e)
		}
		return &interp.ListValue{Elems: elems}
	case map[string]any:
		d := interp.NewDict()
		for k, e := range t {
			d.Set(k, fromJSON(e))
		}
		return d
	default:
		return interp.None
	}
}
