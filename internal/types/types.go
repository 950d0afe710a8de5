// Package types implements the IBCI type lattice described in §3 of the
// specification: singleton scalar types, Any, parametric List/Dict,
// function types, opaque Callable, Module, and UserDefined class types.
package types

import "fmt"

// Type is implemented by every member of the type lattice.
type Type interface {
	String() string
	typ()
}

type base struct{}

func (base) typ() {}

// Singleton is one of int, float, str, bool, void, Any.
type Singleton struct {
	base
	Name string
}

func (s *Singleton) String() string { return s.Name }

var (
	Int   = &Singleton{Name: "int"}
	Float = &Singleton{Name: "float"}
	Str   = &Singleton{Name: "str"}
	Bool  = &Singleton{Name: "bool"}
	Void  = &Singleton{Name: "void"}
	Any   = &Singleton{Name: "Any"} // `var`
)

// Builtins maps source-level type names to their Singleton, for lexer/parser
// lookups deciding whether an identifier names a built-in type.
var Builtins = map[string]*Singleton{
	"int": Int, "float": Float, "str": Str, "bool": Bool, "void": Void,
}

// List is `List<Elem>`.
type List struct {
	base
	Elem Type
}

func (l *List) String() string { return fmt.Sprintf("List<%s>", l.Elem) }

// Dict is `Dict<Key,Value>`.
type Dict struct {
	base
	Key   Type
	Value Type
}

func (d *Dict) String() string { return fmt.Sprintf("Dict<%s,%s>", d.Key, d.Value) }

// Function is a named or anonymous function signature.
type Function struct {
	base
	Params []Type
	Return Type
}

func (f *Function) String() string {
	s := "Function("
	for i, p := range f.Params {
		if i > 0 {
			s += ","
		}
		s += p.String()
	}
	return s + ") -> " + f.Return.String()
}

// Callable is the opaque callable type (`Callable` in source, materialized
// at runtime by a behavior expression or any function value).
type Callable struct{ base }

func (*Callable) String() string { return "Callable" }

// Module is the type of a successfully imported module, carrying its
// exported scope so cross-module attribute access can resolve names.
//
// Scope is declared as `any` here (rather than *scope.ScopeNode) to avoid an
// import cycle: package scope embeds types.Type in its Symbol, so types
// cannot import scope back. Callers type-assert to *scope.ScopeNode.
type Module struct {
	base
	Name  string
	Scope any
}

func (m *Module) String() string { return fmt.Sprintf("Module(%s)", m.Name) }

// UserDefined is a class type.
type UserDefined struct {
	base
	ClassName string
	Scope     any // *scope.ScopeNode, see Module.Scope
}

func (u *UserDefined) String() string { return u.ClassName }

// AssignableTo reports whether a value of type `from` may be assigned/passed
// to a target of type `to`, per §3's lattice rules: Any is top and bottom;
// int promotes to float for arithmetic but declaration-assignment promotion
// is handled explicitly by callers that allow it; list/dict are covariant
// element-wise; equal types are always assignable.
func AssignableTo(from, to Type) bool {
	if from == nil || to == nil {
		return false
	}
	if to == Any || from == Any {
		return true
	}
	if from == to {
		return true
	}
	switch t := to.(type) {
	case *Singleton:
		f, ok := from.(*Singleton)
		return ok && f.Name == t.Name
	case *List:
		f, ok := from.(*List)
		return ok && AssignableTo(f.Elem, t.Elem)
	case *Dict:
		f, ok := from.(*Dict)
		return ok && AssignableTo(f.Key, t.Key) && AssignableTo(f.Value, t.Value)
	case *UserDefined:
		f, ok := from.(*UserDefined)
		return ok && f.ClassName == t.ClassName
	case *Function:
		_, ok := from.(*Function)
		return ok
	case *Callable:
		switch from.(type) {
		case *Callable, *Function:
			return true
		}
		return false
	case *Module:
		f, ok := from.(*Module)
		return ok && f.Name == t.Name
	}
	return false
}

// PromoteArithmetic returns the promoted type of a binary arithmetic
// operation between two operand types per §4.4's promotion table, and
// whether the combination is legal at all for arithmetic operators. The
// semantic analyzer applies it to `/` as well, so `int / int` is typed int
// here, while internal/interp's `/` always yields a float at run time.
func PromoteArithmetic(left, right Type) (Type, bool) {
	ls, lok := left.(*Singleton)
	rs, rok := right.(*Singleton)
	if !lok || !rok {
		if left == Any || right == Any {
			return Any, true
		}
		return nil, false
	}
	switch {
	case ls.Name == "int" && rs.Name == "int":
		return Int, true
	case (ls.Name == "int" || ls.Name == "float") && (rs.Name == "int" || rs.Name == "float"):
		return Float, true
	}
	return nil, false
}
