package rpc2

import (
	"errors"

	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
)

type (
	ProcessPidIn struct {
	}

	ProcessPidOut struct {
		Pid int
	}

	TargetNameIn struct {
	}

	TargetNameOut struct {
		Name string
	}

	StateIn struct {
	}

	StateOut struct {
		State *api.DebuggerState
	}

	EvalIn struct {
		Scope api.EvalScope
		Expr  string
		Cfg   *api.LoadConfig
	}

	EvalOut struct {
		Variable *api.Variable
	}

	DescribeTypeIn struct {
		Scope api.EvalScope
		Expr  string
	}

	DescribeTypeOut struct {
		Type string
	}

	ExamineMemoryIn struct {
		Address uint64
		Length  int
	}

	ExaminedMemoryOut struct {
		Mem            []byte
		IsLittleEndian bool
	}

	ListSourcesIn struct {
		Filter string
	}

	ListSourcesOut struct {
		Sources []string
	}

	ListFunctionsIn struct {
		Filter string
	}

	ListFunctionsOut struct {
		Funcs []string
	}

	ListGoroutinesIn struct {
	}

	ListGoroutinesOut struct {
		Goroutines []api.Goroutine
	}

	ListBreakpointsIn struct {
	}

	ListBreakpointsOut struct {
		Breakpoints []api.Breakpoint
	}

	TakeSnapshotIn struct {
		Exprs []string
		Cfg   *api.LoadConfig
	}

	TakeSnapshotOut struct {
		Snapshot *api.Snapshot
	}

	IsMulticlientIn struct {
	}

	IsMulticlientOut struct {
		// IsMulticlient returns true if the headless instance accepts
		// multiple clients.
		IsMulticlient bool
	}
)

// RPCServer exposes a Backend over the wire. Every method is synchronous
// and read-only with respect to the inspected process.
type RPCServer struct {
	config  *service.Config
	backend service.Backend
}

// NewServer creates a new RPCServer serving the backend configured in
// config.
func NewServer(config *service.Config) *RPCServer {
	return &RPCServer{config: config, backend: config.Backend}
}

// maxExamineLength bounds a single memory read.
const maxExamineLength = 1 << 16

// ProcessPid returns the pid of the inspected process.
func (s *RPCServer) ProcessPid(arg ProcessPidIn, out *ProcessPidOut) error {
	out.Pid = s.backend.ProcessPid()
	return nil
}

// TargetName returns the name of the inspected target.
func (s *RPCServer) TargetName(arg TargetNameIn, out *TargetNameOut) error {
	out.Name = s.backend.TargetName()
	return nil
}

// State returns the current state of the inspected process.
func (s *RPCServer) State(arg StateIn, out *StateOut) error {
	st, err := s.backend.State()
	if err != nil {
		return err
	}
	out.State = st
	return nil
}

// Eval returns a variable in the specified context.
func (s *RPCServer) Eval(arg EvalIn, out *EvalOut) error {
	cfg := api.DefaultLoadConfig
	if arg.Cfg != nil {
		cfg = *arg.Cfg
	}
	v, err := s.backend.Eval(arg.Scope, arg.Expr, cfg)
	if err != nil {
		return err
	}
	out.Variable = v
	return nil
}

// DescribeType returns the type of the expression in the specified context.
func (s *RPCServer) DescribeType(arg DescribeTypeIn, out *DescribeTypeOut) error {
	typ, err := s.backend.Type(arg.Scope, arg.Expr)
	if err != nil {
		return err
	}
	out.Type = typ
	return nil
}

// ExamineMemory returns the raw memory stored at the given address.
func (s *RPCServer) ExamineMemory(arg ExamineMemoryIn, out *ExaminedMemoryOut) error {
	if arg.Length > maxExamineLength {
		return errors.New("len must be less than or equal to 65536")
	}
	mem, littleEndian, err := s.backend.ReadMemory(arg.Address, arg.Length)
	if err != nil {
		return err
	}
	out.Mem = mem
	out.IsLittleEndian = littleEndian
	return nil
}

// ListSources lists all source files of the inspected process matching filter.
func (s *RPCServer) ListSources(arg ListSourcesIn, out *ListSourcesOut) error {
	ss, err := s.backend.Sources(arg.Filter)
	if err != nil {
		return err
	}
	out.Sources = ss
	return nil
}

// ListFunctions lists all functions of the inspected process matching filter.
func (s *RPCServer) ListFunctions(arg ListFunctionsIn, out *ListFunctionsOut) error {
	fns, err := s.backend.Functions(arg.Filter)
	if err != nil {
		return err
	}
	out.Funcs = fns
	return nil
}

// ListGoroutines lists all goroutines of the inspected process.
func (s *RPCServer) ListGoroutines(arg ListGoroutinesIn, out *ListGoroutinesOut) error {
	gs, err := s.backend.Goroutines()
	if err != nil {
		return err
	}
	out.Goroutines = gs
	return nil
}

// ListBreakpoints gets all breakpoints currently set.
func (s *RPCServer) ListBreakpoints(arg ListBreakpointsIn, out *ListBreakpointsOut) error {
	bps, err := s.backend.Breakpoints()
	if err != nil {
		return err
	}
	out.Breakpoints = bps
	return nil
}

// TakeSnapshot records the state of the inspected process together with
// the listed expressions into a snapshot.
func (s *RPCServer) TakeSnapshot(arg TakeSnapshotIn, out *TakeSnapshotOut) error {
	cfg := api.PayloadLoadConfig
	if arg.Cfg != nil {
		cfg = *arg.Cfg
	}
	snap, err := s.backend.Snapshot(arg.Exprs, cfg)
	if err != nil {
		return err
	}
	out.Snapshot = snap
	return nil
}

func (s *RPCServer) IsMulticlient(arg IsMulticlientIn, out *IsMulticlientOut) error {
	out.IsMulticlient = s.config.AcceptMulti
	return nil
}
