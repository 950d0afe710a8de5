package interp

import (
	"testing"

	"ibci/internal/ast"
	"ibci/internal/config"
	"ibci/internal/diag"
)

func TestEnvSetUpdatesNearestEnclosingBinding(t *testing.T) {
	outer := NewEnv(nil)
	outer.Define("x", IntValue(1))
	inner := NewEnv(outer)

	if !inner.Set("x", IntValue(2)) {
		t.Fatal("Set on a name defined in an enclosing Env should report true")
	}
	if _, ok := inner.vars["x"]; ok {
		t.Fatal("Set must update the enclosing binding, not shadow it locally")
	}
	v, ok := outer.Get("x")
	if !ok || v != IntValue(2) {
		t.Fatalf("outer binding not updated: got %v, %v", v, ok)
	}
}

func TestEnvSetReportsFalseForUndeclaredName(t *testing.T) {
	env := NewEnv(nil)
	if env.Set("missing", IntValue(1)) {
		t.Fatal("Set on an undeclared name must report false, not create a binding")
	}
	if _, ok := env.Get("missing"); ok {
		t.Fatal("Set must not have defined the name on failure")
	}
}

// TestAssignToUndefinedNameRaisesRuntimeError exercises §4.5's left-value
// rule directly against a hand-built Assign node, bypassing sema entirely —
// the scenario the static analyzer is supposed to catch first, but the
// runtime must still refuse rather than silently defining the name.
func TestAssignToUndefinedNameRaisesRuntimeError(t *testing.T) {
	i := New(config.DefaultLimits(), &config.Sandbox{WorkspaceRoot: ".", AllowExternal: true}, nil, nil, nil)
	env := i.NewModuleEnv()

	stmt := &ast.Assign{
		Target: &ast.Name{Ident: "x"},
		Value:  &ast.Constant{Kind: ast.ConstInt, Int: 5},
	}
	err := i.execAssign(stmt, env)
	if err == nil {
		t.Fatal("expected an error assigning to an undeclared name")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
	if rerr.Code != diag.RunUndefinedVariable {
		t.Fatalf("expected %s, got %s", diag.RunUndefinedVariable, rerr.Code)
	}
}
