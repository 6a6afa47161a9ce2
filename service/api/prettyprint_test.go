package api

import (
	"reflect"
	"strings"
	"testing"
)

func intVar(name, value string) Variable {
	return Variable{Name: name, Addr: 0x1234, Type: "int", RealType: "int", Kind: reflect.Int, Value: value}
}

func TestVariableSinglelineString(t *testing.T) {
	point := Variable{
		Name: "pt", Addr: 0xc000010000, Type: "main.Point", RealType: "main.Point",
		Kind: reflect.Struct, Len: 2,
		Children: []Variable{intVar("X", "1"), intVar("Y", "2")},
	}

	tests := []struct {
		name string
		v    Variable
		want string
	}{
		{
			"int",
			intVar("n", "42"),
			"42",
		},
		{
			"string",
			Variable{Name: "s", Addr: 0x1, Type: "string", Kind: reflect.String, Value: "hello", Len: 5},
			`"hello"`,
		},
		{
			"truncated string",
			Variable{Name: "s", Addr: 0x1, Type: "string", Kind: reflect.String, Value: "hello", Len: 10},
			`"hello...+5 more"`,
		},
		{
			"struct",
			point,
			"main.Point {X: 1, Y: 2}",
		},
		{
			"pointer to struct",
			Variable{Name: "p", Addr: 0x2, Type: "*main.Point", Kind: reflect.Ptr, Children: []Variable{point}},
			"*main.Point {X: 1, Y: 2}",
		},
		{
			"byte slice",
			Variable{
				Name: "buf", Addr: 0x3, Type: "[]uint8", Kind: reflect.Slice, Len: 3, Cap: 8, Base: 0xc000020000,
				Children: []Variable{
					{Addr: 0x10, Type: "uint8", Kind: reflect.Uint8, Value: "1"},
					{Addr: 0x11, Type: "uint8", Kind: reflect.Uint8, Value: "2"},
					{Addr: 0x12, Type: "uint8", Kind: reflect.Uint8, Value: "3"},
				},
			},
			"[]uint8 len: 3, cap: 8, [1,2,3]",
		},
		{
			"truncated slice",
			Variable{
				Name: "buf", Addr: 0x3, Type: "[]int", Kind: reflect.Slice, Len: 5, Cap: 5, Base: 0xc000020000,
				Children: []Variable{intVar("", "1"), intVar("", "2")},
			},
			"[]int len: 5, cap: 5, [1,2,...+3 more]",
		},
		{
			"nil slice",
			Variable{Name: "buf", Addr: 0x3, Type: "[]int", Kind: reflect.Slice, Len: 0, Cap: 0, Base: 0},
			"[]int len: 0, cap: 0, nil",
		},
		{
			"interface",
			Variable{
				Name: "i", Addr: 0x4, Type: "interface {}", Kind: reflect.Interface, Len: 1,
				Children: []Variable{{Addr: 0x5, Type: "string", Kind: reflect.String, Value: "hi", Len: 2}},
			},
			`interface {}(string) "hi"`,
		},
		{
			"map",
			Variable{
				Name: "m", Addr: 0x6, Type: "map[string]int", Kind: reflect.Map, Len: 2, Base: 0xc000030000,
				Children: []Variable{
					{Addr: 0x20, Type: "string", Kind: reflect.String, Value: "one", Len: 3},
					intVar("", "1"),
					{Addr: 0x21, Type: "string", Kind: reflect.String, Value: "two", Len: 3},
					intVar("", "2"),
				},
			},
			"map[string]int [one: 1, two: 2, ]",
		},
		{
			"unreadable",
			Variable{Name: "u", Addr: 0x7, Type: "int", Kind: reflect.Int, Unreadable: "input/output error"},
			"(unreadable input/output error)",
		},
		{
			"loaded pointer address",
			Variable{
				Name: "p", Addr: 0x8, Type: "*main.Point", Kind: reflect.Ptr,
				Children: []Variable{{Addr: 0xc000010000, Type: "main.Point", Kind: reflect.Struct, OnlyAddr: true}},
			},
			"(*main.Point)(0xc000010000)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.SinglelineString(); got != tt.want {
				t.Errorf("SinglelineString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVariableMultilineString(t *testing.T) {
	v := Variable{
		Name: "req", Addr: 0x1, Type: "main.Request", Kind: reflect.Struct, Len: 2,
		Children: []Variable{
			{Name: "Method", Addr: 0x2, Type: "string", Kind: reflect.String, Value: "POST", Len: 4},
			{Name: "Body", Addr: 0x3, Type: "string", Kind: reflect.String, Value: "0123456789", Len: 10},
		},
	}

	want := "main.Request {\n\tMethod: \"POST\",\n\tBody: \"0123456789\",}"
	if got := v.MultilineString(""); got != want {
		t.Errorf("MultilineString() = %q, want %q", got, want)
	}
}

func TestVariablePrettyStringShortTypes(t *testing.T) {
	frame := Variable{
		Name: "f", Addr: 0x1, Type: "github.com/example/wire/frame.Header", Kind: reflect.Struct, Len: 1,
		Children: []Variable{{
			Name: "Next", Addr: 0x2, Type: "*github.com/example/wire/frame.Header", Kind: reflect.Ptr,
			Children: []Variable{{Addr: 0xc000042000, Type: "github.com/example/wire/frame.Header", Kind: reflect.Struct, OnlyAddr: true}},
		}},
	}

	want := "frame.Header {Next: (*frame.Header)(0xc000042000)}"
	if got := frame.PrettyString(PrettyShortenType, ""); got != want {
		t.Errorf("PrettyString(PrettyShortenType) = %q, want %q", got, want)
	}
	if got := frame.SinglelineString(); !strings.Contains(got, "github.com/example/wire/frame.Header") {
		t.Errorf("SinglelineString() = %q, want full type names", got)
	}
}

func TestPrettyExamineMemory(t *testing.T) {
	// Adjacent addresses with different widths must still line up, so the
	// formatter always uses the last address' width.
	addr := uint64(0xffff)
	memArea := []byte("abcdefghijklmnopqrstuvwxyz")

	display := []string{
		"0x0ffff:   0141   0142   0143   0144   0145   0146   0147   0150   ",
		"0x10007:   0151   0152   0153   0154   0155   0156   0157   0160   ",
		"0x1000f:   0161   0162   0163   0164   0165   0166   0167   0170   ",
		"0x10017:   0171   0172"}
	res := strings.Split(strings.TrimSpace(PrettyExamineMemory(addr, memArea, true, 'o', 1)), "\n")

	if len(display) != len(res) {
		t.Fatalf("wrong lines return, expected %d but got %d", len(display), len(res))
	}

	for i := 0; i < len(display); i++ {
		if display[i] != res[i] {
			t.Fatalf("wrong display return at line %d\nexpected:\n   %q\nbut got:\n   %q", i+1, display[i], res[i])
		}
	}
}

func TestPrettyExamineMemoryEndian(t *testing.T) {
	mem := []byte{0x01, 0x02, 0x03, 0x04}

	le := strings.TrimSpace(PrettyExamineMemory(0x1000, mem, true, 'x', 2))
	if want := "0x1000:   0x0201   0x0403"; le != want {
		t.Errorf("little endian: got %q, want %q", le, want)
	}

	be := strings.TrimSpace(PrettyExamineMemory(0x1000, mem, false, 'x', 2))
	if want := "0x1000:   0x0102   0x0304"; be != want {
		t.Errorf("big endian: got %q, want %q", be, want)
	}
}

func Test_byteArrayToUInt64(t *testing.T) {
	tests := []struct {
		name   string
		args   []byte
		little bool
		want   uint64
	}{
		{"empty", []byte{}, true, 0},
		{"one byte", []byte{0x1}, true, 1},
		{"two bytes little endian", []byte{0x1, 0x2}, true, 0x0201},
		{"two bytes big endian", []byte{0x1, 0x2}, false, 0x0102},
		{"eight bytes", []byte{0x1, 0x1, 0x1, 0x1, 0x1, 0x1, 0x1, 0x2}, true, 0x0201010101010101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := byteArrayToUInt64(tt.args, tt.little); got != tt.want {
				t.Errorf("byteArrayToUInt64() = %#x, want %#x", got, tt.want)
			}
		})
	}
}
