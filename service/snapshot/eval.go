package snapshot

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"reflect"
	"strconv"

	"github.com/go-gouge/gouge/service/api"
)

// resolve evaluates expr against the expressions recorded in the snapshot.
// A base expression must match a recorded expression or the name of a
// recorded variable, selectors, indexing and dereferencing then navigate
// the recorded tree.
func (b *Backend) resolve(scope api.EvalScope, expr string) (*api.Variable, error) {
	if v := b.snap.FindVariable(scope, expr); v != nil {
		return v, nil
	}

	node, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, fmt.Errorf("cannot evaluate %q: %v", expr, err)
	}
	return b.resolveNode(scope, node)
}

func (b *Backend) resolveNode(scope api.EvalScope, node ast.Expr) (*api.Variable, error) {
	// A recorded expression wins over structural navigation, it carries the
	// load the host performed at record time.
	if v := b.snap.FindVariable(scope, exprToString(node)); v != nil {
		return v, nil
	}

	switch node := node.(type) {
	case *ast.Ident:
		return b.resolveIdent(scope, node.Name)

	case *ast.ParenExpr:
		return b.resolveNode(scope, node.X)

	case *ast.SelectorExpr:
		parent, err := b.resolveNode(scope, node.X)
		if err != nil {
			return nil, err
		}
		return fieldOf(parent, node.Sel.Name)

	case *ast.IndexExpr:
		parent, err := b.resolveNode(scope, node.X)
		if err != nil {
			return nil, err
		}
		return elementOf(parent, node.Index)

	case *ast.StarExpr:
		parent, err := b.resolveNode(scope, node.X)
		if err != nil {
			return nil, err
		}
		return dereference(parent)

	case *ast.CallExpr:
		if typ, addr, ok := pointerCast(node); ok {
			return b.resolveTypedAddress(typ, addr)
		}
		return nil, fmt.Errorf("cannot evaluate %q: function calls are not recorded in a snapshot", exprToString(node))

	default:
		return nil, fmt.Errorf("cannot evaluate %q: expression not supported on a snapshot", exprToString(node))
	}
}

func (b *Backend) resolveIdent(scope api.EvalScope, name string) (*api.Variable, error) {
	for i := range b.snap.Variables {
		sv := &b.snap.Variables[i]
		if sv.Scope != scope {
			continue
		}
		if sv.Variable.Name == name {
			return &sv.Variable, nil
		}
	}
	return nil, fmt.Errorf("%q was not recorded in this snapshot", name)
}

// pointerCast matches (*T)(addr) expressions. Clients synthesize these to
// reload a variable from an address they already hold, quoting the type so
// that types the Go parser rejects still round-trip.
func pointerCast(call *ast.CallExpr) (typ string, addr uint64, ok bool) {
	paren, ok := call.Fun.(*ast.ParenExpr)
	if !ok {
		return "", 0, false
	}
	star, ok := paren.X.(*ast.StarExpr)
	if !ok {
		return "", 0, false
	}
	if lit, ok := star.X.(*ast.BasicLit); ok {
		if lit.Kind != token.STRING {
			return "", 0, false
		}
		var err error
		typ, err = strconv.Unquote(lit.Value)
		if err != nil {
			return "", 0, false
		}
	} else {
		typ = exprToString(star.X)
	}
	if len(call.Args) != 1 {
		return "", 0, false
	}
	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return "", 0, false
	}
	addr, err := strconv.ParseUint(lit.Value, 0, 64)
	if err != nil || addr == 0 {
		return "", 0, false
	}
	return typ, addr, true
}

// resolveTypedAddress builds the pointer a (*T)(addr) cast denotes. The
// pointee is the recorded variable at addr, matched by type too because a
// struct shares its address with its first field.
func (b *Backend) resolveTypedAddress(typ string, addr uint64) (*api.Variable, error) {
	ptr := &api.Variable{
		Name:     fmt.Sprintf("(*%s)(%#x)", typ, addr),
		Type:     "*" + typ,
		RealType: "*" + typ,
		Kind:     reflect.Ptr,
		Base:     addr,
	}
	if tgt := b.variableAtAddr(addr, typ); tgt != nil {
		ptr.Children = []api.Variable{*tgt}
	} else {
		ptr.Children = []api.Variable{{Addr: addr, Type: typ, RealType: typ, OnlyAddr: true}}
	}
	return ptr, nil
}

func (b *Backend) variableAtAddr(addr uint64, typ string) *api.Variable {
	for i := range b.snap.Variables {
		if v := subtreeAtAddr(&b.snap.Variables[i].Variable, addr, typ); v != nil {
			return v
		}
	}
	return nil
}

func subtreeAtAddr(v *api.Variable, addr uint64, typ string) *api.Variable {
	if v.Addr == addr && v.Type == typ && !v.OnlyAddr {
		return v
	}
	for i := range v.Children {
		if r := subtreeAtAddr(&v.Children[i], addr, typ); r != nil {
			return r
		}
	}
	return nil
}

// unwrap follows pointers and interfaces to the value they hold.
func unwrap(v *api.Variable) (*api.Variable, error) {
	for v.Kind == reflect.Ptr || v.Kind == reflect.Interface {
		if len(v.Children) == 0 {
			return nil, fmt.Errorf("%s was not loaded at record time", v.Type)
		}
		child := &v.Children[0]
		if child.OnlyAddr {
			return nil, fmt.Errorf("only the address of %s was recorded", v.Type)
		}
		v = child
	}
	return v, nil
}

func fieldOf(v *api.Variable, field string) (*api.Variable, error) {
	v, err := unwrap(v)
	if err != nil {
		return nil, err
	}
	if v.Kind != reflect.Struct {
		return nil, fmt.Errorf("%s (type %s) is not a struct", v.Name, v.Type)
	}
	for i := range v.Children {
		if v.Children[i].Name == field {
			return &v.Children[i], nil
		}
	}
	if int64(len(v.Children)) != v.Len {
		return nil, fmt.Errorf("field %s of %s was not loaded at record time", field, v.Type)
	}
	return nil, fmt.Errorf("%s has no field %s", v.Type, field)
}

func elementOf(v *api.Variable, index ast.Expr) (*api.Variable, error) {
	v, err := unwrap(v)
	if err != nil {
		return nil, err
	}

	lit, ok := index.(*ast.BasicLit)
	if !ok {
		return nil, fmt.Errorf("unsupported index expression %q", exprToString(index))
	}

	switch v.Kind {
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(lit.Value)
		if err != nil || lit.Kind != token.INT {
			return nil, fmt.Errorf("invalid index %s", lit.Value)
		}
		if i < 0 || int64(i) >= v.Len {
			return nil, fmt.Errorf("index %d out of bounds for %s of length %d", i, v.Type, v.Len)
		}
		if i >= len(v.Children) {
			return nil, fmt.Errorf("element %d of %s was not loaded at record time", i, v.Name)
		}
		return &v.Children[i], nil

	case reflect.String:
		i, err := strconv.Atoi(lit.Value)
		if err != nil || lit.Kind != token.INT {
			return nil, fmt.Errorf("invalid index %s", lit.Value)
		}
		if i < 0 || int64(i) >= v.Len {
			return nil, fmt.Errorf("index %d out of bounds for string of length %d", i, v.Len)
		}
		if i >= len(v.Value) {
			return nil, fmt.Errorf("byte %d of %s was not loaded at record time", i, v.Name)
		}
		return &api.Variable{
			Name: fmt.Sprintf("%s[%d]", v.Name, i), Addr: v.Addr + uint64(i),
			Type: "byte", RealType: "uint8", Kind: reflect.Uint8,
			Value: strconv.FormatUint(uint64(v.Value[i]), 10),
		}, nil

	case reflect.Map:
		key, err := mapKeyString(lit)
		if err != nil {
			return nil, err
		}
		for i := 0; i+1 < len(v.Children); i += 2 {
			if v.Children[i].Value == key {
				return &v.Children[i+1], nil
			}
		}
		if int64(len(v.Children)/2) != v.Len {
			return nil, fmt.Errorf("key %s not among the entries of %s loaded at record time", lit.Value, v.Name)
		}
		return nil, fmt.Errorf("key %s not found in %s", lit.Value, v.Name)

	default:
		return nil, fmt.Errorf("cannot index %s (type %s)", v.Name, v.Type)
	}
}

func mapKeyString(lit *ast.BasicLit) (string, error) {
	switch lit.Kind {
	case token.STRING:
		return strconv.Unquote(lit.Value)
	case token.INT:
		return lit.Value, nil
	default:
		return "", fmt.Errorf("unsupported map key %s", lit.Value)
	}
}

func dereference(v *api.Variable) (*api.Variable, error) {
	if v.Kind != reflect.Ptr {
		return nil, fmt.Errorf("cannot dereference %s (type %s)", v.Name, v.Type)
	}
	if len(v.Children) == 0 {
		return nil, fmt.Errorf("nil pointer dereference of %s", v.Name)
	}
	child := &v.Children[0]
	if child.OnlyAddr {
		return nil, fmt.Errorf("only the address of %s was recorded", v.Name)
	}
	return child, nil
}

func exprToString(t ast.Expr) string {
	var buf bytes.Buffer
	printer.Fprint(&buf, token.NewFileSet(), t)
	return buf.String()
}
