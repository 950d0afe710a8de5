package interp

import (
	"fmt"
	"strings"

	"ibci/internal/diag"
)

// defineBuiltins binds the host intrinsics named in §4.5's RuntimeContext
// responsibility list into globals, as const BuiltinValues.
func defineBuiltins(i *Interpreter, globals *Env) {
	globals.Define("print", &BuiltinValue{Name: "print", Fn: func(args []Value) (Value, error) {
		parts := make([]string, len(args))
		for idx, a := range args {
			parts[idx] = Repr(a)
		}
		fmt.Fprintln(i.Out, strings.Join(parts, " "))
		return None, nil
	}})

	globals.Define("len", &BuiltinValue{Name: "len", Fn: func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, newRuntimeError(diag.RunCallError, "len() takes exactly one argument")
		}
		switch t := args[0].(type) {
		case StrValue:
			return IntValue(len([]rune(string(t)))), nil
		case *ListValue:
			return IntValue(len(t.Elems)), nil
		case *DictValue:
			return IntValue(len(t.Keys())), nil
		default:
			return nil, newRuntimeError(diag.RunTypeMismatch, "len() argument has no length")
		}
	}})

	globals.Define("int", &BuiltinValue{Name: "int", Fn: func(args []Value) (Value, error) {
		return castArg("int", args)
	}})
	globals.Define("float", &BuiltinValue{Name: "float", Fn: func(args []Value) (Value, error) {
		return castArg("float", args)
	}})
	globals.Define("str", &BuiltinValue{Name: "str", Fn: func(args []Value) (Value, error) {
		return castArg("str", args)
	}})
	globals.Define("bool", &BuiltinValue{Name: "bool", Fn: func(args []Value) (Value, error) {
		return castArg("bool", args)
	}})

	globals.Define("list", &BuiltinValue{Name: "list", Fn: func(args []Value) (Value, error) {
		if len(args) == 0 {
			return &ListValue{}, nil
		}
		elems, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(elems))
		copy(out, elems)
		return &ListValue{Elems: out}, nil
	}})

	globals.Define("dict", &BuiltinValue{Name: "dict", Fn: func(args []Value) (Value, error) {
		if len(args) == 0 {
			return NewDict(), nil
		}
		src, ok := args[0].(*DictValue)
		if !ok {
			return nil, newRuntimeError(diag.RunTypeMismatch, "dict() argument must be a dict")
		}
		out := NewDict()
		for _, k := range src.Keys() {
			v, _ := src.Get(k)
			out.Set(k, v)
		}
		return out, nil
	}})

	globals.Define("input", &BuiltinValue{Name: "input", Fn: func(args []Value) (Value, error) {
		if len(args) > 0 {
			fmt.Fprint(i.Out, Repr(args[0]))
		}
		if i.In == nil {
			return StrValue(""), nil
		}
		line, _ := i.In.ReadString('\n')
		return StrValue(strings.TrimRight(line, "\r\n")), nil
	}})
}

func castArg(target string, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, newRuntimeError(diag.RunCallError, "%s() takes exactly one argument", target)
	}
	return cast(target, args[0])
}
