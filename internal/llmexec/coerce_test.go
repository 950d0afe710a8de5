package llmexec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ibci/internal/ast"
	"ibci/internal/config"
	"ibci/internal/interp"
)

func newTestExecutor() *Executor {
	return New(nil, config.DefaultDecisionMap(), nil)
}

func TestCoerceReplyInt(t *testing.T) {
	e := newTestExecutor()
	v, err := e.coerceReply("the answer is 42, probably", interp.DeclaredHint{TypeName: "int"}, ast.SceneGeneral)
	require.NoError(t, err)
	require.Equal(t, interp.IntValue(42), v)
}

func TestCoerceReplyIntNoDigits(t *testing.T) {
	e := newTestExecutor()
	_, err := e.coerceReply("no numbers here", interp.DeclaredHint{TypeName: "int"}, ast.SceneGeneral)
	var uncertain *interp.LLMUncertainty
	require.ErrorAs(t, err, &uncertain)
}

func TestCoerceReplyFloat(t *testing.T) {
	e := newTestExecutor()
	v, err := e.coerceReply("roughly 3.14159 or so", interp.DeclaredHint{TypeName: "float"}, ast.SceneGeneral)
	require.NoError(t, err)
	require.Equal(t, interp.FloatValue(3.14159), v)
}

func TestCoerceReplyDict(t *testing.T) {
	e := newTestExecutor()
	v, err := e.coerceReply("```json\n{\"val\": 100, \"name\": \"x\"}\n```", interp.DeclaredHint{TypeName: "dict"}, ast.SceneGeneral)
	require.NoError(t, err)
	d, ok := v.(*interp.DictValue)
	require.True(t, ok)
	got, ok := d.Get("val")
	require.True(t, ok)
	require.Equal(t, interp.IntValue(100), got)
}

func TestCoerceReplyList(t *testing.T) {
	e := newTestExecutor()
	v, err := e.coerceReply("[1, 2, 3]", interp.DeclaredHint{TypeName: "list"}, ast.SceneGeneral)
	require.NoError(t, err)
	l, ok := v.(*interp.ListValue)
	require.True(t, ok)
	require.Len(t, l.Elems, 3)
	require.Equal(t, interp.IntValue(2), l.Elems[1])
}

func TestCoerceReplyDefaultString(t *testing.T) {
	e := newTestExecutor()
	v, err := e.coerceReply("  hello there  ", interp.DeclaredHint{}, ast.SceneGeneral)
	require.NoError(t, err)
	require.Equal(t, interp.StrValue("hello there"), v)
}

func TestCoerceDecisionBranchScene(t *testing.T) {
	e := newTestExecutor()
	v, err := e.coerceReply("Yes", interp.DeclaredHint{}, ast.SceneBranch)
	require.NoError(t, err)
	require.Equal(t, interp.StrValue("1"), v)
	require.True(t, interp.Truthy(v))

	v, err = e.coerceReply("nope, FAIL", interp.DeclaredHint{}, ast.SceneBranch)
	require.NoError(t, err)
	require.Equal(t, interp.StrValue("0"), v)
	require.False(t, interp.Truthy(v))
}

func TestCoerceDecisionUnmatchedWordIsUncertain(t *testing.T) {
	e := newTestExecutor()
	_, err := e.coerceReply("maybe", interp.DeclaredHint{}, ast.SceneLoop)
	var uncertain *interp.LLMUncertainty
	require.ErrorAs(t, err, &uncertain)
}

func TestExtractJSONStripsFenceAndBalancesBrackets(t *testing.T) {
	data, err := extractJSON("```json\n{\"a\": [1, {\"b\": 2}]}\n```", '{', '}')
	require.NoError(t, err)
	require.Equal(t, `{"a": [1, {"b": 2}]}`, string(data))
}

func TestExtractJSONNoBracket(t *testing.T) {
	_, err := extractJSON("no object here", '{', '}')
	require.Error(t, err)
}
