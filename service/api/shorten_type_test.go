package api

import "testing"

func TestShortenType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"long/package/path/pkg.A", "pkg.A"},
		{"[]long/package/path/pkg.A", "[]pkg.A"},
		{"[24]long/package/path/pkg.A", "[24]pkg.A"},
		{"*github.com/go-gouge/gouge/service/api.Variable", "*api.Variable"},
		{"map[long/package/path/pkg.A]long/package/path/pkg.B", "map[pkg.A]pkg.B"},
		{"map[long/package/path/pkg.A]interface {}", "map[pkg.A]interface {}"},
		{"map[long/package/path/pkg.A]interface{}", "map[pkg.A]interface{}"},
		{"map[long/package/path/pkg.A]struct {}", "map[pkg.A]struct {}"},
		{"map[long/package/path/pkg.A]struct{}", "map[pkg.A]struct{}"},
		{"map[long/package/path/pkg.A]map[long/package/path/pkg.B]long/package/path/pkg.C", "map[pkg.A]map[pkg.B]pkg.C"},
		{"map[long/package/path/pkg.A][]long/package/path/pkg.B", "map[pkg.A][]pkg.B"},
		{"map[uint64]*github.com/example/wire/frame.typeUnit", "map[uint64]*frame.typeUnit"},
		{"long/package/path/pkg.Parametric[long/package/path/pkg.A, map[long/package/path/pkg.B]long/package/path/pkg.A]", "pkg.Parametric[pkg.A, map[pkg.B]pkg.A]"},
		{"[]long/package/path/pkg.Parametric[long/package/path/pkg.A]", "[]pkg.Parametric[pkg.A]"},
		{"example.com/mod@v1.2.3/frame.Header", "frame.Header"},
		{"uint8", "uint8"},
		{"encoding/binary", "encoding/binary"},

		// not parseable, returned unchanged
		{"chan func()", "chan func()"},
		{"struct { a int }", "struct { a int }"},
		{"*struct { a int }", "*struct { a int }"},
		{"map[string", "map[string"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ShortenType(tt.in); got != tt.want {
				t.Errorf("ShortenType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
