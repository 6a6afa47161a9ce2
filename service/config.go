package service

import (
	"net"

	"github.com/go-gouge/gouge/service/api"
)

// Backend is the server side counterpart of Client: the read-only surface a
// server exposes over the wire. Implementations must be safe for concurrent
// use, the server serves every connection on its own goroutine.
type Backend interface {
	ProcessPid() int
	TargetName() string
	State() (*api.DebuggerState, error)
	Eval(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error)
	Type(scope api.EvalScope, expr string) (string, error)
	ReadMemory(addr uint64, count int) ([]byte, bool, error)
	Sources(filter string) ([]string, error)
	Functions(filter string) ([]string, error)
	Goroutines() ([]api.Goroutine, error)
	Breakpoints() ([]api.Breakpoint, error)
	Snapshot(exprs []string, cfg api.LoadConfig) (*api.Snapshot, error)
}

// Config provides the configuration to expose a Backend with a service.
type Config struct {
	// Listener is used to serve requests.
	Listener net.Listener

	// Backend is the inspection surface to serve.
	Backend Backend

	// AcceptMulti configures the server to accept multiple connections.
	// The served surface is read-only, so clients need no coordination.
	AcceptMulti bool

	// CheckLocalConnUser makes the server reject local connections from
	// other users.
	CheckLocalConnUser bool

	// DisconnectChan will be closed by the server when the last client
	// disconnects.
	DisconnectChan chan<- struct{}
}
