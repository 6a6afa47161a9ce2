package dapclient

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-dap"

	"github.com/go-gouge/gouge/service/api"
)

// Adapters render every value to a display string. The expressions below
// match the grammar used for compound values so they can be parsed back
// into typed variables.
var (
	ptrValueRE   = regexp.MustCompile(`^<(.+)>\((0x[0-9a-fA-F]+)\)$`)
	sliceValueRE = regexp.MustCompile(`^<(.+)> \(length: (\d+), cap: (\d+)\)$`)
	mapValueRE   = regexp.MustCompile(`^<(.+)> \(length: (\d+)\)$`)
	moreLenRE    = regexp.MustCompile(`\.\.\.\+(\d+) more$`)
)

// varBuilder converts protocol variables into api values, fetching
// children up to the limits of a load configuration. The recursion rules
// match the native backend: pointers do not consume recursion depth,
// compound members beyond MaxVariableRecurse stay unloaded.
type varBuilder struct {
	c   *Client
	cfg api.LoadConfig
}

func (b *varBuilder) build(d dap.Variable, depth int) (*api.Variable, error) {
	v := &api.Variable{Name: d.Name, Type: d.Type, RealType: d.Type, Kind: kindOf(d.Type)}
	if d.MemoryReference != "" {
		if addr, err := strconv.ParseUint(d.MemoryReference, 0, 64); err == nil {
			v.Addr = addr
		}
	}

	value := d.Value
	switch {
	case strings.HasPrefix(value, "unreadable <"):
		v.Unreadable = strings.TrimSuffix(strings.TrimPrefix(value, "unreadable <"), ">")
		return v, nil

	case strings.HasPrefix(value, `"`):
		v.Kind = reflect.String
		b.buildString(v, value)
		return v, nil

	case value == "nil" || strings.HasPrefix(value, "nil <"):
		b.buildNil(v)
		return v, nil

	case value == "unsafe.Pointer(nil)":
		v.Kind = reflect.UnsafePointer
		return v, nil

	case strings.HasPrefix(value, "unsafe.Pointer("):
		v.Kind = reflect.UnsafePointer
		inner := strings.TrimSuffix(strings.TrimPrefix(value, "unsafe.Pointer("), ")")
		if addr, err := strconv.ParseUint(inner, 0, 64); err == nil {
			v.Children = []api.Variable{{Addr: addr, OnlyAddr: true}}
		}
		return v, nil
	}

	if m := ptrValueRE.FindStringSubmatch(value); m != nil {
		v.Kind = reflect.Ptr
		if v.Type == "" {
			v.Type, v.RealType = m[1], m[1]
		}
		addr, _ := strconv.ParseUint(m[2], 0, 64)
		return v, b.buildPointee(v, d.VariablesReference, addr, depth)
	}
	if m := sliceValueRE.FindStringSubmatch(value); m != nil {
		v.Kind = reflect.Slice
		if v.Type == "" {
			v.Type, v.RealType = m[1], m[1]
		}
		v.Len, _ = strconv.ParseInt(m[2], 10, 64)
		v.Cap, _ = strconv.ParseInt(m[3], 10, 64)
		v.Base = v.Addr
		if v.Base == 0 {
			// The backing array address is not exposed, any non-zero
			// value marks the slice non-nil.
			v.Base = 1
		}
		return v, b.buildElems(v, d.VariablesReference, depth)
	}
	if m := mapValueRE.FindStringSubmatch(value); m != nil {
		v.Kind = reflect.Map
		if v.Type == "" {
			v.Type, v.RealType = m[1], m[1]
		}
		v.Len, _ = strconv.ParseInt(m[2], 10, 64)
		v.Base = v.Addr
		if v.Base == 0 {
			v.Base = 1
		}
		return v, b.buildMapElems(v, d.VariablesReference, depth)
	}

	if strings.HasPrefix(value, "<") && strings.HasSuffix(value, ">") {
		inner := value[1 : len(value)-1]
		if v.Type == "" {
			v.Type, v.RealType = inner, inner
			v.Kind = kindOf(inner)
		}
		switch v.Kind {
		case reflect.Slice, reflect.Array:
			if v.Kind == reflect.Array && v.Len == 0 {
				v.Len = arrayLen(v.Type)
			}
			return v, b.buildElems(v, d.VariablesReference, depth)
		case reflect.Map:
			return v, b.buildMapElems(v, d.VariablesReference, depth)
		case reflect.Interface:
			return v, b.buildInterfaceData(v, d.VariablesReference, depth)
		case reflect.Ptr:
			return v, b.buildPointee(v, d.VariablesReference, 0, depth)
		case reflect.Chan:
			return v, b.buildStructFields(v, d.VariablesReference, depth)
		default:
			v.Kind = reflect.Struct
			return v, b.buildStructFields(v, d.VariablesReference, depth)
		}
	}

	v.Value = value
	if (v.Kind == reflect.Complex64 || v.Kind == reflect.Complex128) && len(v.Children) == 0 {
		// The api model stores complex values as children, a rendered
		// scalar is all the protocol gives us.
		v.Kind = reflect.Invalid
	}
	return v, nil
}

// buildString recovers the value and the unloaded length from a quoted
// display string. A "...+N more" suffix inside the quotes marks a string
// the server loaded partially.
func (b *varBuilder) buildString(v *api.Variable, value string) {
	s, err := strconv.Unquote(value)
	if err != nil {
		v.Value = value
		v.Len = int64(len(value))
		return
	}
	v.Value = s
	v.Len = int64(len(s))
	if m := moreLenRE.FindStringSubmatch(s); m != nil {
		more, _ := strconv.ParseInt(m[1], 10, 64)
		v.Value = s[:len(s)-len(m[0])]
		v.Len = int64(len(v.Value)) + more
	}
	if b.cfg.MaxStringLen > 0 && len(v.Value) > b.cfg.MaxStringLen {
		v.Value = v.Value[:b.cfg.MaxStringLen]
	}
}

func (b *varBuilder) buildNil(v *api.Variable) {
	switch v.Kind {
	case reflect.Slice, reflect.Map:
		v.Base = 0
	case reflect.Interface:
		v.Children = []api.Variable{{Kind: reflect.Invalid}}
	case reflect.Func:
		v.Value = ""
	}
}

func (b *varBuilder) buildPointee(v *api.Variable, ref int, addr uint64, depth int) error {
	base := strings.TrimPrefix(v.Type, "*")
	onlyAddr := func() {
		v.Children = []api.Variable{{Addr: addr, OnlyAddr: true, Type: base, RealType: base, Kind: kindOf(base)}}
	}
	if ref == 0 || (!b.cfg.FollowPointers && depth > 0) {
		onlyAddr()
		return nil
	}
	kids, err := b.c.variables(ref)
	if err != nil {
		return err
	}
	if len(kids) == 0 {
		onlyAddr()
		return nil
	}
	// Pointers do not consume recursion depth.
	child, err := b.build(kids[0], depth)
	if err != nil {
		return err
	}
	if child.Addr == 0 {
		child.Addr = addr
	}
	if child.Type == "" {
		child.Type, child.RealType = base, base
		if child.Kind == reflect.Invalid {
			child.Kind = kindOf(base)
		}
	}
	v.Children = []api.Variable{*child}
	return nil
}

func (b *varBuilder) buildElems(v *api.Variable, ref, depth int) error {
	if ref == 0 || depth > b.cfg.MaxVariableRecurse {
		return nil
	}
	kids, err := b.c.variables(ref)
	if err != nil {
		return err
	}
	if b.cfg.MaxArrayValues >= 0 && len(kids) > b.cfg.MaxArrayValues {
		kids = kids[:b.cfg.MaxArrayValues]
	}
	v.Children = make([]api.Variable, 0, len(kids))
	for _, k := range kids {
		child, err := b.build(k, depth+1)
		if err != nil {
			return err
		}
		child.Name = ""
		v.Children = append(v.Children, *child)
	}
	if v.Kind == reflect.Array && v.Len == 0 {
		v.Len = int64(len(v.Children))
	}
	return nil
}

func (b *varBuilder) buildStructFields(v *api.Variable, ref, depth int) error {
	if ref == 0 || depth > b.cfg.MaxVariableRecurse {
		return nil
	}
	kids, err := b.c.variables(ref)
	if err != nil {
		return err
	}
	v.Len = int64(len(kids))
	if b.cfg.MaxStructFields >= 0 && len(kids) > b.cfg.MaxStructFields {
		kids = kids[:b.cfg.MaxStructFields]
	}
	v.Children = make([]api.Variable, 0, len(kids))
	for _, k := range kids {
		child, err := b.build(k, depth+1)
		if err != nil {
			return err
		}
		v.Children = append(v.Children, *child)
	}
	return nil
}

func (b *varBuilder) buildInterfaceData(v *api.Variable, ref, depth int) error {
	if ref == 0 {
		return nil
	}
	kids, err := b.c.variables(ref)
	if err != nil {
		return err
	}
	if len(kids) == 0 {
		return nil
	}
	// Like pointers, unpacking an interface does not consume recursion
	// depth.
	child, err := b.build(kids[0], depth)
	if err != nil {
		return err
	}
	v.Children = []api.Variable{*child}
	if v.Addr == 0 {
		// The renderer treats address zero as an escaped interface
		// pointing to nil.
		v.Addr = 1
	}
	return nil
}

// buildMapElems rebuilds key value pairs from the flattened entries the
// protocol uses. Scalar keys arrive as the entry name, compound pairs as
// separate [key n] and [val n] entries.
func (b *varBuilder) buildMapElems(v *api.Variable, ref, depth int) error {
	if ref == 0 || depth > b.cfg.MaxVariableRecurse {
		return nil
	}
	kids, err := b.c.variables(ref)
	if err != nil {
		return err
	}

	var pairs [][2]api.Variable
	for i := 0; i < len(kids); i++ {
		k := kids[i]
		if strings.HasPrefix(k.Name, "[key ") && i+1 < len(kids) && strings.HasPrefix(kids[i+1].Name, "[val ") {
			k.Name = ""
			key, err := b.build(k, depth+1)
			if err != nil {
				return err
			}
			val := kids[i+1]
			val.Name = ""
			value, err := b.build(val, depth+1)
			if err != nil {
				return err
			}
			pairs = append(pairs, [2]api.Variable{*key, *value})
			i++
			continue
		}

		name := k.Name
		if j := strings.LastIndex(name, "["); j > 0 && strings.HasSuffix(name, "]") {
			// A compound key gets the entry index appended to keep the
			// name unique, strip it.
			name = name[:j]
		}
		key := mapKey(name)
		value, err := b.build(dap.Variable{Value: k.Value, VariablesReference: k.VariablesReference}, depth+1)
		if err != nil {
			return err
		}
		pairs = append(pairs, [2]api.Variable{key, *value})
	}

	if b.cfg.MaxArrayValues >= 0 && len(pairs) > b.cfg.MaxArrayValues {
		pairs = pairs[:b.cfg.MaxArrayValues]
	}
	v.Children = make([]api.Variable, 0, len(pairs)*2)
	for _, p := range pairs {
		v.Children = append(v.Children, p[0], p[1])
	}
	return nil
}

func mapKey(name string) api.Variable {
	if strings.HasPrefix(name, `"`) {
		if s, err := strconv.Unquote(name); err == nil {
			return api.Variable{Kind: reflect.String, Value: s, Len: int64(len(s))}
		}
	}
	if _, err := strconv.ParseInt(name, 10, 64); err == nil {
		return api.Variable{Kind: reflect.Int, Value: name}
	}
	return api.Variable{Kind: reflect.String, Value: name, Len: int64(len(name))}
}

// kindOf guesses the reflect kind of a type by its name. The display
// grammar refines the guess for named compound types.
func kindOf(typ string) reflect.Kind {
	switch {
	case typ == "":
		return reflect.Invalid
	case strings.HasPrefix(typ, "[]"):
		return reflect.Slice
	case strings.HasPrefix(typ, "["):
		return reflect.Array
	case strings.HasPrefix(typ, "*"):
		return reflect.Ptr
	case strings.HasPrefix(typ, "map["):
		return reflect.Map
	case strings.HasPrefix(typ, "chan ") || strings.HasPrefix(typ, "<-chan "):
		return reflect.Chan
	case strings.HasPrefix(typ, "func"):
		return reflect.Func
	case typ == "unsafe.Pointer":
		return reflect.UnsafePointer
	case typ == "error" || strings.HasPrefix(typ, "interface"):
		return reflect.Interface
	case strings.HasPrefix(typ, "struct"):
		return reflect.Struct
	}
	switch typ {
	case "string":
		return reflect.String
	case "bool":
		return reflect.Bool
	case "int":
		return reflect.Int
	case "int8":
		return reflect.Int8
	case "int16":
		return reflect.Int16
	case "int32", "rune":
		return reflect.Int32
	case "int64":
		return reflect.Int64
	case "uint":
		return reflect.Uint
	case "uint8", "byte":
		return reflect.Uint8
	case "uint16":
		return reflect.Uint16
	case "uint32":
		return reflect.Uint32
	case "uint64":
		return reflect.Uint64
	case "uintptr":
		return reflect.Uintptr
	case "float32":
		return reflect.Float32
	case "float64":
		return reflect.Float64
	case "complex64":
		return reflect.Complex64
	case "complex128":
		return reflect.Complex128
	}
	return reflect.Struct
}

func arrayLen(typ string) int64 {
	i := strings.Index(typ, "]")
	if !strings.HasPrefix(typ, "[") || i < 1 {
		return 0
	}
	n, err := strconv.ParseInt(typ[1:i], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
