package config

import (
	"testing"
)

func compareSplit(t *testing.T, tgt, out []string) {
	t.Helper()
	if len(tgt) != len(out) {
		t.Fatalf("expected %#v, got %#v (len mismatch)", tgt, out)
	}
	for i := range tgt {
		if tgt[i] != out[i] {
			t.Fatalf("expected %#v, got %#v (mismatch at %d)", tgt, out, i)
		}
	}
}

func TestSplitQuotedFields(t *testing.T) {
	in := `alias'A' 'aliasB' al'i\'as'C aliasD 'an alias' aliasE`
	tgt := []string{"aliasA", "aliasB", "ali'asC", "aliasD", "an alias", "aliasE"}
	compareSplit(t, tgt, SplitQuotedFields(in, '\''))
}

func TestSplitDoubleQuotedFields(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected []string
	}{
		{
			name:     "mixed quoting",
			in:       `indent "    " set"ting" "quo\"te" "two words"`,
			expected: []string{"indent", "    ", "setting", `quo"te`, "two words"},
		},
		{
			name:     "empty field at the end",
			in:       `indent "" `,
			expected: []string{"indent", ""},
		},
		{
			name:     "empty field at the end without trailing space",
			in:       `indent ""`,
			expected: []string{"indent", ""},
		},
		{
			name:     "empty field at the beginning",
			in:       ` "" indent`,
			expected: []string{"", "indent"},
		},
		{
			name:     "surrounding spaces",
			in:       `    indent"A"   `,
			expected: []string{"indentA"},
		},
		{
			name:     "only empty fields",
			in:       ` "" "" "" """" "" `,
			expected: []string{"", "", "", "", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compareSplit(t, tt.expected, SplitQuotedFields(tt.in, '"'))
		})
	}
}

func TestConfigureListByName(t *testing.T) {
	type fakeConfig struct {
		sortKeys bool     `yaml:"sort-keys"`
		aliases  []string `yaml:"aliases"`
	}

	tests := []struct {
		name    string
		sargs   *fakeConfig
		cfgname string
		want    string
	}{
		{
			name:    "bool field",
			sargs:   &fakeConfig{sortKeys: true},
			cfgname: "sort-keys",
			want:    "sort-keys\ttrue\n",
		},
		{
			name:    "list field",
			sargs:   &fakeConfig{aliases: []string{"pj", "p"}},
			cfgname: "aliases",
			want:    "aliases\t[pj p]\n",
		},
		{
			name:    "empty name",
			sargs:   &fakeConfig{},
			cfgname: "",
			want:    "",
		},
		{
			name:    "unknown name",
			sargs:   &fakeConfig{},
			cfgname: "nonexistent",
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConfigureListByName(tt.sargs, tt.cfgname, "yaml"); got != tt.want {
				t.Errorf("ConfigureListByName() = %v, want %v", got, tt.want)
			}
		})
	}
}
