// Package interp implements the tree-walking evaluator described in §4.5:
// runtime values, the per-call Env stack, control-flow signals, and the
// Interpreter that drives a compiled module to completion.
package interp

import (
	"fmt"
	"strings"

	"ibci/internal/ast"
)

// Value is any runtime value the evaluator produces or consumes. Unlike
// internal/types.Type (the static lattice), Value carries data, not shape.
type Value interface {
	value()
}

// IntValue, FloatValue, StrValue, BoolValue are the scalar runtime values.
type (
	IntValue   int64
	FloatValue float64
	StrValue   string
	BoolValue  bool
)

func (IntValue) value()   {}
func (FloatValue) value() {}
func (StrValue) value()   {}
func (BoolValue) value()  {}

// NoneValue is the single valueless sentinel, per §3.
type NoneValue struct{}

func (NoneValue) value() {}

// None is the shared NoneValue instance.
var None = NoneValue{}

// ListValue is a mutable, reference-semantics list.
type ListValue struct {
	Elems []Value
}

func (*ListValue) value() {}

// DictValue is a mutable, reference-semantics dict, insertion-ordered so
// iteration and string conversion are deterministic.
type DictValue struct {
	keys   []string
	values map[string]Value
}

func (*DictValue) value() {}

// NewDict creates an empty DictValue.
func NewDict() *DictValue {
	return &DictValue{values: make(map[string]Value)}
}

// Set inserts or updates key, preserving first-insertion order.
func (d *DictValue) Set(key string, v Value) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Get returns the value bound to key, if any.
func (d *DictValue) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (d *DictValue) Keys() []string { return d.keys }

// FunctionValue is a user-defined function or method, closing over the Env
// it was declared in (for methods, the class's Env; callFunction binds
// `self` from the Self field in each call's own Env).
type FunctionValue struct {
	Def     *ast.FunctionDef
	Closure *Env
	Self    Value // non-nil for bound methods
}

func (*FunctionValue) value() {}

// LLMFunctionValue is a declared `llm` function: no Go closure body, just
// the prompt template the llmexec package assembles and dispatches.
type LLMFunctionValue struct {
	Def     *ast.LLMFunctionDef
	Closure *Env
}

func (*LLMFunctionValue) value() {}

// BehaviorValue wraps a BehaviorExpr materialized as a first-class callable
// when assigned to a `Callable`-declared variable (§4.4's CastExpr-adjacent
// rule for Callable declarations).
type BehaviorValue struct {
	Expr    *ast.BehaviorExpr
	Closure *Env
}

func (*BehaviorValue) value() {}

// ClassValue is a class definition: the callable that instantiates it.
type ClassValue struct {
	Def     *ast.ClassDef
	Closure *Env
}

func (*ClassValue) value() {}

// InstanceValue is one instance of a ClassValue, with its own field Env.
type InstanceValue struct {
	Class  *ClassValue
	Fields *Env
}

func (*InstanceValue) value() {}

// ModuleValue is a successfully-loaded module's runtime bindings, bound by
// `import`/`from ... import` per §4.7.
type ModuleValue struct {
	Name string
	Env  *Env
}

func (*ModuleValue) value() {}

// BuiltinValue wraps one of the host intrinsics (print, len, int, ...).
type BuiltinValue struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

func (*BuiltinValue) value() {}

// Truthy implements Python-style truthiness for bool coercion contexts
// (§4.6's coercion fallback, and general boolean contexts). "0" and "1" are
// special-cased ahead of the general non-empty-string rule so a BRANCH/LOOP
// decision's mapped character branches correctly.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case BoolValue:
		return bool(t)
	case IntValue:
		return t != 0
	case FloatValue:
		return t != 0
	case StrValue:
		switch t {
		case "1":
			return true
		case "0":
			return false
		default:
			return t != ""
		}
	case NoneValue:
		return false
	case *ListValue:
		return len(t.Elems) > 0
	case *DictValue:
		return len(t.keys) > 0
	default:
		return true
	}
}

// Repr renders v the way `print`/str() does.
func Repr(v Value) string {
	switch t := v.(type) {
	case IntValue:
		return fmt.Sprintf("%d", int64(t))
	case FloatValue:
		return fmt.Sprintf("%g", float64(t))
	case StrValue:
		return string(t)
	case BoolValue:
		if t {
			return "true"
		}
		return "false"
	case NoneValue:
		return "none"
	case *ListValue:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = Repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *DictValue:
		parts := make([]string, 0, len(t.keys))
		for _, k := range t.keys {
			v, _ := t.values[k]
			parts = append(parts, fmt.Sprintf("%s: %s", k, Repr(v)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *FunctionValue:
		return fmt.Sprintf("<function %s>", t.Def.Name)
	case *LLMFunctionValue:
		return fmt.Sprintf("<llm function %s>", t.Def.Name)
	case *ClassValue:
		return fmt.Sprintf("<class %s>", t.Def.Name)
	case *InstanceValue:
		return fmt.Sprintf("<%s instance>", t.Class.Def.Name)
	case *BuiltinValue:
		return fmt.Sprintf("<builtin %s>", t.Name)
	case *ModuleValue:
		return fmt.Sprintf("<module %s>", t.Name)
	case *BehaviorValue:
		return "<behavior>"
	default:
		return fmt.Sprintf("%v", v)
	}
}
