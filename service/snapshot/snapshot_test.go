package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-gouge/gouge/service/api"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.yaml")

	orig := testSnapshot()
	if err := WriteFile(path, orig); err != nil {
		t.Fatal(err)
	}

	snap, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	if snap.ID != orig.ID {
		t.Errorf("ID = %q, want %q", snap.ID, orig.ID)
	}
	if snap.Target != orig.Target || snap.Pid != orig.Pid {
		t.Errorf("identity = %q/%d", snap.Target, snap.Pid)
	}
	if snap.State.StateID != orig.State.StateID {
		t.Errorf("StateID = %d", snap.State.StateID)
	}
	if len(snap.Variables) != len(orig.Variables) {
		t.Fatalf("variables = %d, want %d", len(snap.Variables), len(orig.Variables))
	}
	v := snap.FindVariable(api.EvalScope{GoroutineID: -1}, "resp.Body")
	if v == nil {
		t.Fatal("resp.Body lost in round trip")
	}
	if v.Kind != reflect.String || v.Value != payloadJSON {
		t.Errorf("resp.Body = kind %s value %q", v.Kind, v.Value)
	}
	mem, ok := snap.ReadMemory(0x2000, 16)
	if !ok || mem[15] != 15 {
		t.Errorf("memory lost in round trip: %v %v", mem, ok)
	}
}

func TestOpenMalformed(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("{{ not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil || !strings.Contains(err.Error(), "malformed snapshot") {
		t.Errorf("expected a malformed snapshot error, got %v", err)
	}

	path = filepath.Join(dir, "noid.yaml")
	if err := os.WriteFile(path, []byte("target: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil || !strings.Contains(err.Error(), "no id") {
		t.Errorf("expected a no id error, got %v", err)
	}

	if _, err := Open(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

// fakeSession is a minimal live session for recording tests.
type fakeSession struct {
	state api.DebuggerState
	vars  map[string]api.Variable
}

func (f *fakeSession) ProcessPid() int    { return 9000 }
func (f *fakeSession) TargetName() string { return "fakeproc" }

func (f *fakeSession) GetState(refresh bool) (*api.DebuggerState, error) {
	state := f.state
	return &state, nil
}

func (f *fakeSession) EvalVariable(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error) {
	v, ok := f.vars[expr]
	if !ok {
		return nil, api.ErrNotSupported
	}
	return &v, nil
}

func (f *fakeSession) DescribeType(scope api.EvalScope, expr string) (string, error) {
	return "", api.ErrNotSupported
}

func (f *fakeSession) ExamineMemory(addr uint64, count int) ([]byte, bool, error) {
	mem := make([]byte, count)
	for i := range mem {
		mem[i] = byte(i)
	}
	return mem, true, nil
}

func (f *fakeSession) ListSources(filter string) ([]string, error) {
	return []string{"/src/fake/main.go"}, nil
}

func (f *fakeSession) ListFunctions(filter string) ([]string, error) {
	return nil, api.ErrNotSupported
}

func (f *fakeSession) ListGoroutines() ([]api.Goroutine, error) {
	return []api.Goroutine{{ID: 1}}, nil
}

func (f *fakeSession) ListBreakpoints() ([]api.Breakpoint, error) {
	return []api.Breakpoint{{ID: 1, Name: "payload"}}, nil
}

func (f *fakeSession) TakeSnapshot(exprs []string, cfg api.LoadConfig) (*api.Snapshot, error) {
	return nil, api.ErrNotSupported
}

func (f *fakeSession) CallAPI(method string, args, reply interface{}) error {
	return api.ErrNotSupported
}

func (f *fakeSession) IsMulticlient() bool { return false }
func (f *fakeSession) Disconnect() error   { return nil }

func TestRecord(t *testing.T) {
	sess := &fakeSession{
		state: api.DebuggerState{StateID: 3},
		vars: map[string]api.Variable{
			"req.Body": strVar("Body", payloadJSON),
		},
	}

	snap, err := Record(sess, []string{"req.Body"}, api.PayloadLoadConfig)
	if err != nil {
		t.Fatal(err)
	}

	if snap.ID == "" {
		t.Error("no id assigned")
	}
	if snap.Target != "fakeproc" || snap.Pid != 9000 {
		t.Errorf("identity = %q/%d", snap.Target, snap.Pid)
	}
	if len(snap.Variables) != 1 || snap.Variables[0].Expr != "req.Body" {
		t.Fatalf("variables = %+v", snap.Variables)
	}
	// Functions listing is unsupported in the fake, it must be recorded
	// empty without failing the capture.
	if len(snap.Functions) != 0 {
		t.Errorf("functions = %v", snap.Functions)
	}
	if len(snap.Sources) != 1 {
		t.Errorf("sources = %v", snap.Sources)
	}
	if len(snap.Memory) != 1 || snap.Memory[0].Addr != 0x1000 {
		t.Errorf("memory = %+v", snap.Memory)
	}

	// The capture serves evaluation offline.
	b := NewBackend(snap)
	v, err := b.Eval(api.EvalScope{GoroutineID: -1}, "req.Body", api.PayloadLoadConfig)
	if err != nil {
		t.Fatal(err)
	}
	if v.Value != payloadJSON {
		t.Errorf("replayed value = %q", v.Value)
	}

	if _, err := Record(sess, []string{"nosuch"}, api.PayloadLoadConfig); err == nil {
		t.Error("expected an error recording an unknown expression")
	}

	sess.state.Running = true
	if _, err := Record(sess, nil, api.PayloadLoadConfig); err == nil {
		t.Error("expected an error recording a running target")
	}
}
