package snapshot

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
)

// Backend serves the read-only inspection surface from a recorded
// snapshot. All methods are safe for concurrent use, the snapshot is never
// modified after load.
type Backend struct {
	snap *api.Snapshot
}

var _ service.Backend = &Backend{}

// NewBackend creates a backend serving snap.
func NewBackend(snap *api.Snapshot) *Backend {
	return &Backend{snap: snap}
}

// Snap returns the underlying snapshot.
func (b *Backend) Snap() *api.Snapshot {
	return b.snap
}

func (b *Backend) ProcessPid() int {
	return b.snap.Pid
}

func (b *Backend) TargetName() string {
	return b.snap.Target
}

func (b *Backend) State() (*api.DebuggerState, error) {
	state := b.snap.State
	return &state, nil
}

// normalizeScope maps scopes referring to the goroutine selected at record
// time to the canonical scope expressions were recorded under. Goroutine 0
// means the goroutine of the current thread, which at a recorded stop is
// the selected goroutine.
func (b *Backend) normalizeScope(scope api.EvalScope) api.EvalScope {
	if scope.GoroutineID == 0 || (b.snap.State.SelectedGoroutine != nil && scope.GoroutineID == b.snap.State.SelectedGoroutine.ID) {
		scope.GoroutineID = -1
	}
	return scope
}

func (b *Backend) Eval(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error) {
	v, err := b.resolve(b.normalizeScope(scope), expr)
	if err != nil {
		return nil, err
	}
	return clampVariable(v, cfg, 0), nil
}

func (b *Backend) Type(scope api.EvalScope, expr string) (string, error) {
	v, err := b.resolve(b.normalizeScope(scope), expr)
	if err != nil {
		return "", err
	}
	if v.Type == "" {
		return "", fmt.Errorf("no type recorded for %s", expr)
	}
	return v.Type, nil
}

func (b *Backend) ReadMemory(addr uint64, count int) ([]byte, bool, error) {
	if count <= 0 {
		return nil, b.snap.LittleEndian, fmt.Errorf("invalid count %d", count)
	}
	mem, ok := b.snap.ReadMemory(addr, count)
	if !ok {
		return nil, b.snap.LittleEndian, fmt.Errorf("memory at %#x was not recorded", addr)
	}
	out := make([]byte, count)
	copy(out, mem)
	return out, b.snap.LittleEndian, nil
}

func (b *Backend) Sources(filter string) ([]string, error) {
	return filterList(b.snap.Sources, filter)
}

func (b *Backend) Functions(filter string) ([]string, error) {
	return filterList(b.snap.Functions, filter)
}

func filterList(list []string, filter string) ([]string, error) {
	regex, err := regexp.Compile(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter argument: %v", err)
	}
	out := []string{}
	for _, s := range list {
		if regex.MatchString(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (b *Backend) Goroutines() ([]api.Goroutine, error) {
	gs := make([]api.Goroutine, len(b.snap.Goroutines))
	copy(gs, b.snap.Goroutines)
	return gs, nil
}

func (b *Backend) Breakpoints() ([]api.Breakpoint, error) {
	bps := make([]api.Breakpoint, len(b.snap.Breakpoints))
	copy(bps, b.snap.Breakpoints)
	return bps, nil
}

// Snapshot re-records the snapshot. With no exprs the recording is a copy
// under a new identity, otherwise only the evaluation of exprs is carried
// over.
func (b *Backend) Snapshot(exprs []string, cfg api.LoadConfig) (*api.Snapshot, error) {
	snap := *b.snap
	snap.ID = uuid.New().String()
	snap.RecordedAt = time.Now()

	if len(exprs) == 0 {
		return &snap, nil
	}

	snap.Variables = nil
	scope := api.EvalScope{GoroutineID: -1}
	for _, expr := range exprs {
		v, err := b.Eval(scope, expr, cfg)
		if err != nil {
			return nil, fmt.Errorf("recording %q: %v", expr, err)
		}
		snap.Variables = append(snap.Variables, api.SnapshotVariable{Scope: scope, Expr: expr, Variable: *v})
	}
	return &snap, nil
}

// clampVariable applies a load configuration to an already recorded
// variable, so a snapshot honors load limits the way a live host does.
func clampVariable(v *api.Variable, cfg api.LoadConfig, depth int) *api.Variable {
	out := *v
	out.Children = nil

	if v.Kind == reflect.String {
		if len(out.Value) > cfg.MaxStringLen {
			out.Value = out.Value[:cfg.MaxStringLen]
		}
		return &out
	}

	recurse := func(children []api.Variable, limit int) []api.Variable {
		if limit >= 0 && len(children) > limit {
			children = children[:limit]
		}
		res := make([]api.Variable, 0, len(children))
		for i := range children {
			res = append(res, *clampVariable(&children[i], cfg, depth+1))
		}
		return res
	}

	switch v.Kind {
	case reflect.Ptr, reflect.Interface:
		if len(v.Children) == 0 {
			return &out
		}
		if v.Kind == reflect.Ptr && !cfg.FollowPointers && depth > 0 {
			child := v.Children[0]
			child.Children = nil
			child.OnlyAddr = true
			child.Value = ""
			out.Children = []api.Variable{child}
			return &out
		}
		out.Children = []api.Variable{*clampVariable(&v.Children[0], cfg, depth)}
	case reflect.Struct:
		if depth > cfg.MaxVariableRecurse {
			return &out
		}
		out.Children = recurse(v.Children, cfg.MaxStructFields)
	case reflect.Map:
		if depth > cfg.MaxVariableRecurse {
			return &out
		}
		limit := -1
		if cfg.MaxArrayValues >= 0 {
			limit = cfg.MaxArrayValues * 2
		}
		out.Children = recurse(v.Children, limit)
	case reflect.Slice, reflect.Array:
		if depth > cfg.MaxVariableRecurse {
			return &out
		}
		out.Children = recurse(v.Children, cfg.MaxArrayValues)
	default:
		out.Children = recurse(v.Children, -1)
	}
	return &out
}
