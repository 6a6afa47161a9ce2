package terminal

import (
	"os"
	"testing"

	"github.com/go-gouge/gouge/pkg/config"
	"github.com/go-gouge/gouge/service/api"
)

func TestSanitizeColor(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		result int
	}{
		{"base color", ansiRed, ansiRed},
		{"last base color", ansiWhite, ansiWhite},
		{"bright color", ansiBrGreen, ansiBrGreen},
		{"last bright color", ansiBrWhite, ansiBrWhite},
		{"zero value", 0, ansiBlue},
		{"negative", -1, ansiBlue},
		{"between ranges", 38, ansiBlue},
		{"below bright range", 89, ansiBlue},
		{"above bright range", 98, ansiBlue},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := sanitizeColor(test.code, ansiBlue); got != test.result {
				t.Errorf("sanitizeColor(%d) = %d, expected %d", test.code, got, test.result)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	term := &Term{conf: &config.Config{}}

	if cfg := term.loadConfig(); cfg != api.DefaultLoadConfig {
		t.Errorf("wrong default load config: %+v", cfg)
	}
	if cfg := term.payloadLoadConfig(); cfg != api.PayloadLoadConfig {
		t.Errorf("wrong default payload load config: %+v", cfg)
	}

	msl, mav, mvr := 100, 10, 2
	term.conf.MaxStringLen = &msl
	term.conf.MaxArrayValues = &mav
	term.conf.MaxVariableRecurse = &mvr

	want := api.DefaultLoadConfig
	want.MaxStringLen = msl
	want.MaxArrayValues = mav
	want.MaxVariableRecurse = mvr
	if cfg := term.loadConfig(); cfg != want {
		t.Errorf("configuration parameters not honored: %+v", cfg)
	}

	// The recursion depth of payload loads is fixed, only the size limits
	// are configurable.
	pwant := api.PayloadLoadConfig
	pwant.MaxStringLen = msl
	pwant.MaxArrayValues = mav
	if cfg := term.payloadLoadConfig(); cfg != pwant {
		t.Errorf("configuration parameters not honored for payloads: %+v", cfg)
	}
}

func TestNewTermDumb(t *testing.T) {
	os.Setenv("TERM", "dumb")
	term := New(nil, &config.Config{})
	defer term.Close()

	if !term.dumb {
		t.Error("terminal not in dumb mode with TERM=dumb")
	}
	if term.stdout.colorEscapes != nil {
		t.Error("color escapes configured in dumb mode")
	}
	if term.prompt != "(gouge) " {
		t.Errorf("wrong prompt: %q", term.prompt)
	}
}
