package interp_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ibci/internal/ast"
	"ibci/internal/config"
	"ibci/internal/diag"
	"ibci/internal/interp"
	"ibci/internal/lexer"
	"ibci/internal/llmexec"
	"ibci/internal/parser"
	"ibci/internal/sema"
)

// compile lexes, parses, and semantically analyzes src, failing the test on
// any diagnostic.
func compile(t *testing.T, src string) *ast.Module {
	t.Helper()
	issues := diag.NewTracker("test.ibci")
	toks, err := lexer.New(src, issues).Tokenize()
	require.NoError(t, err)
	mod := parser.New(toks, issues).ParseModule("test.ibci")
	sema.New(issues).AnalyzeModule(mod)
	require.NoError(t, issues.CheckErrors(), "%v", issues.Diagnostics)
	return mod
}

func run(t *testing.T, src string, llm interp.LLMExecutor) (*bytes.Buffer, error) {
	t.Helper()
	mod := compile(t, src)
	var out bytes.Buffer
	i := interp.New(config.DefaultLimits(), &config.Sandbox{WorkspaceRoot: ".", AllowExternal: true}, llm, &out, nil)
	return &out, i.Run(mod)
}

func TestBitwisePrecedence(t *testing.T) {
	src := "int r = (10 & 3) | (5 ^ 1)\n" +
		"print(r)\n"
	out, err := run(t, src, nil)
	require.NoError(t, err)
	require.Equal(t, "6\n", out.String())
}

func TestCounterClassIncrement(t *testing.T) {
	src := "class Counter:\n" +
		"    int count=0\n" +
		"    func inc(self):\n" +
		"        self.count = self.count + 1\n" +
		"\n" +
		"Counter c = Counter()\n" +
		"c.inc()\n" +
		"c.inc()\n" +
		"print(c.count)\n"
	out, err := run(t, src, nil)
	require.NoError(t, err)
	require.Equal(t, "2\n", out.String())
}

func TestForAsWhile(t *testing.T) {
	src := "int i=0\n" +
		"for i<3:\n" +
		"    print(i)\n" +
		"    i=i+1\n"
	out, err := run(t, src, nil)
	require.NoError(t, err)
	require.Equal(t, "0\n1\n2\n", out.String())
}

func TestDivisionByZero(t *testing.T) {
	src := "int x = 1 / 0\n"
	_, err := run(t, src, nil)
	require.Error(t, err)
	var rerr *interp.RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, diag.RunDivisionByZero, rerr.Code)
}

// fakeProvider is a hand-written llm.Provider test double: it returns a
// scripted sequence of replies (repeating the last one once they run out),
// counting every call it receives and remembering the last reply.
type fakeProvider struct {
	replies []string
	calls   int
	last    string
}

func (f *fakeProvider) Call(ctx context.Context, system, user, scene string) (string, error) {
	idx := f.calls
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	reply := f.replies[idx]
	f.calls++
	f.last = reply
	return reply, nil
}

func (f *fakeProvider) SetRetryHint(hint string) {}

func (f *fakeProvider) LastCallInfo() map[string]any {
	return map[string]any{"response": f.last}
}

func TestLLMDecisionWithFallbackAndRetry(t *testing.T) {
	src := "if @~MOCK:REPAIR~:\n" +
		"    print(1)\n" +
		"llmexcept:\n" +
		"    retry\n"
	provider := &fakeProvider{replies: []string{"maybe", "1"}}
	executor := llmexec.New(provider, config.DefaultDecisionMap(), context.Background())
	out, err := run(t, src, executor)
	require.NoError(t, err)
	require.Equal(t, "1\n", out.String())
	require.Equal(t, 2, provider.calls)
	require.Equal(t, "1", provider.last)
}

func TestTypedLLMCoercionFloat(t *testing.T) {
	src := "llm get_pi() -> float:\n" +
		"    __sys__\n" +
		"    answer with pi\n" +
		"    __user__\n" +
		"    what is pi\n" +
		"    llmend\n" +
		"float p = get_pi()\n" +
		"print(p)\n"
	provider := &fakeProvider{replies: []string{"MOCK:RESPONSE: 3.14159"}}
	executor := llmexec.New(provider, config.DefaultDecisionMap(), context.Background())
	out, err := run(t, src, executor)
	require.NoError(t, err)
	require.Equal(t, "3.14159\n", out.String())
}

func TestTypedLLMCoercionDict(t *testing.T) {
	src := "llm get_obj() -> dict:\n" +
		"    __sys__\n" +
		"    reply json\n" +
		"    __user__\n" +
		"    give me an object\n" +
		"    llmend\n" +
		"dict d = get_obj()\n" +
		"print(d[\"val\"])\n"
	provider := &fakeProvider{replies: []string{"```json\n{\"val\":100}\n```"}}
	executor := llmexec.New(provider, config.DefaultDecisionMap(), context.Background())
	out, err := run(t, src, executor)
	require.NoError(t, err)
	require.Equal(t, "100\n", out.String())
}
