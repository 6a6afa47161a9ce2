package snapshot

import (
	"reflect"
	"strings"
	"testing"

	"github.com/go-gouge/gouge/service/api"
)

func TestResolve(t *testing.T) {
	b := NewBackend(testSnapshot())
	scope := api.EvalScope{GoroutineID: -1}

	tests := []struct {
		expr  string
		kind  reflect.Kind
		value string
	}{
		{"req", reflect.Struct, ""},
		{"resp.Body", reflect.String, payloadJSON},
		{"req.Method", reflect.String, "POST"},
		{"(req).Method", reflect.String, "POST"},
		{"req.Body[0]", reflect.Uint8, "123"}, // '{'
		{"req.Method[1]", reflect.Uint8, "79"},
		{`req.Headers["Content-Type"]`, reflect.String, "application/json"},
		{"resp.Body[3]", reflect.Uint8, "115"}, // 's'
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := b.resolve(scope, tt.expr)
			if err != nil {
				t.Fatalf("resolve(%q): %v", tt.expr, err)
			}
			if v.Kind != tt.kind {
				t.Errorf("resolve(%q) kind = %s, want %s", tt.expr, v.Kind, tt.kind)
			}
			if tt.value != "" && v.Value != tt.value {
				t.Errorf("resolve(%q) = %q, want %q", tt.expr, v.Value, tt.value)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	b := NewBackend(testSnapshot())
	scope := api.EvalScope{GoroutineID: -1}

	tests := []struct {
		expr    string
		errPart string
	}{
		{"nosuch", "not recorded"},
		{"req.NoField", "no field"},
		{"req.Method.x", "not a struct"},
		{"req.Body[9999]", "out of bounds"},
		{`req.Headers["Accept"]`, "not found"},
		{"*req.Method", "cannot dereference"},
		{"*req.Next", "only the address"},
		{"req.Next.Method", "only the address"},
		{"len(req.Body)", "function calls"},
		{"req.Body[0] + 1", "not supported"},
		{"req.(", "cannot evaluate"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := b.resolve(scope, tt.expr)
			if err == nil {
				t.Fatalf("resolve(%q) did not fail", tt.expr)
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("resolve(%q) error %q does not mention %q", tt.expr, err, tt.errPart)
			}
		})
	}
}

func TestResolvePointerCast(t *testing.T) {
	b := NewBackend(testSnapshot())
	scope := api.EvalScope{GoroutineID: -1}

	tests := []struct {
		expr  string
		kind  reflect.Kind
		value string
	}{
		{`(*(*"main.Request")(0x3000))`, reflect.Struct, ""},
		{`(*(*"main.Request")(0x3000)).Method`, reflect.String, "POST"},
		{`(*(*"[]uint8")(0x2000))[0]`, reflect.Uint8, "123"},
		{`(*(*"map[string]string")(0x3100))["Content-Type"]`, reflect.String, "application/json"},
		{`(*"main.Request")(0x3000)`, reflect.Ptr, ""},
		{`*(*main.Request)(0x3000)`, reflect.Struct, ""},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := b.resolve(scope, tt.expr)
			if err != nil {
				t.Fatalf("resolve(%q): %v", tt.expr, err)
			}
			if v.Kind != tt.kind {
				t.Errorf("resolve(%q) kind = %s, want %s", tt.expr, v.Kind, tt.kind)
			}
			if tt.value != "" && v.Value != tt.value {
				t.Errorf("resolve(%q) = %q, want %q", tt.expr, v.Value, tt.value)
			}
		})
	}

	// The pointee is matched by address and type together, not address
	// alone.
	if _, err := b.resolve(scope, `*(*"string")(0x3000)`); err == nil || !strings.Contains(err.Error(), "only the address") {
		t.Errorf("type mismatch resolved anyway: %v", err)
	}
	if _, err := b.resolve(scope, `*(*"main.Request")(0x9999)`); err == nil || !strings.Contains(err.Error(), "only the address") {
		t.Errorf("unknown address resolved anyway: %v", err)
	}
}

func TestResolveScopeMismatch(t *testing.T) {
	b := NewBackend(testSnapshot())

	if _, err := b.resolve(api.EvalScope{GoroutineID: 18}, "req"); err == nil {
		t.Error("expected an error for a scope the expression was not recorded in")
	}

	// Scopes naming the goroutine selected at record time resolve like the
	// canonical scope.
	if _, err := b.Eval(api.EvalScope{GoroutineID: 1}, "req", api.DefaultLoadConfig); err != nil {
		t.Errorf("selected goroutine scope failed: %v", err)
	}
}
