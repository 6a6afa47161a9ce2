package service

import (
	"github.com/go-gouge/gouge/service/api"
)

// Client represents an inspection session with a host debug service. All
// client methods are synchronous and none of them resumes, stops or
// otherwise changes the inspected process.
type Client interface {
	// ProcessPid returns the pid of the inspected process.
	ProcessPid() int

	// TargetName returns the name of the inspected process.
	TargetName() string

	// GetState returns the state of the inspected process. If refresh is
	// false a state cached from a previous call may be returned.
	GetState(refresh bool) (*api.DebuggerState, error)

	// EvalVariable evaluates expr in the context of scope and returns the
	// loaded result.
	EvalVariable(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error)

	// DescribeType returns the type of expr in the context of scope.
	DescribeType(scope api.EvalScope, expr string) (string, error)

	// ExamineMemory reads count bytes of target memory starting at addr.
	// The second return value reports whether the target is little endian.
	ExamineMemory(addr uint64, count int) ([]byte, bool, error)

	// ListSources lists all source files of the process matching filter.
	ListSources(filter string) ([]string, error)
	// ListFunctions lists all functions of the process matching filter.
	ListFunctions(filter string) ([]string, error)
	// ListGoroutines lists all goroutines.
	ListGoroutines() ([]api.Goroutine, error)
	// ListBreakpoints lists the breakpoints currently set in the host
	// debugger.
	ListBreakpoints() ([]api.Breakpoint, error)

	// TakeSnapshot captures the current state along with the evaluation of
	// exprs into a snapshot that can be examined offline.
	TakeSnapshot(exprs []string, cfg api.LoadConfig) (*api.Snapshot, error)

	// CallAPI sends a raw API request. Used by script bindings.
	CallAPI(method string, args, reply interface{}) error

	// IsMulticlient returns true if the connected server accepts multiple
	// clients.
	IsMulticlient() bool

	// Disconnect closes the connection to the server. The inspected process
	// is unaffected.
	Disconnect() error
}
