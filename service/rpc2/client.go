package rpc2

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
)

// evalCacheSize is the number of evaluation results kept per connection.
const evalCacheSize = 128

// RPCClient is a RPC service.Client.
type RPCClient struct {
	client *rpc.Client

	mu            sync.Mutex
	lastState     *api.DebuggerState
	evalCache     *lru.Cache
	serverVersion string
}

// Ensure the implementation satisfies the interface.
var _ service.Client = &RPCClient{}

// NewClient connects to a gouge API server listening at addr.
func NewClient(addr string) (*RPCClient, error) {
	client, err := jsonrpc.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %v", addr, err)
	}
	return newFromRPCClient(client), nil
}

// NewClientFromConn creates a new RPCClient from the given connection.
func NewClientFromConn(conn net.Conn) *RPCClient {
	return newFromRPCClient(jsonrpc.NewClient(conn))
}

func newFromRPCClient(client *rpc.Client) *RPCClient {
	c := &RPCClient{client: client}
	c.evalCache, _ = lru.New(evalCacheSize)
	var out api.GetVersionOut
	if err := c.call("GetVersion", api.GetVersionIn{}, &out); err == nil {
		c.serverVersion = out.GougeVersion
	}
	return c
}

// ServerVersion returns the version reported by the connected server.
func (c *RPCClient) ServerVersion() string {
	return c.serverVersion
}

func (c *RPCClient) ProcessPid() int {
	out := new(ProcessPidOut)
	c.call("ProcessPid", ProcessPidIn{}, out)
	return out.Pid
}

func (c *RPCClient) TargetName() string {
	out := new(TargetNameOut)
	c.call("TargetName", TargetNameIn{}, out)
	return out.Name
}

// GetState returns the state of the inspected process. Each reply carries a
// StateID: when it changes the process has moved and every cached
// evaluation is dropped.
func (c *RPCClient) GetState(refresh bool) (*api.DebuggerState, error) {
	c.mu.Lock()
	if !refresh && c.lastState != nil {
		state := c.lastState
		c.mu.Unlock()
		return state, nil
	}
	c.mu.Unlock()

	var out StateOut
	err := c.call("State", StateIn{}, &out)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.lastState == nil || c.lastState.StateID != out.State.StateID {
		c.evalCache.Purge()
	}
	c.lastState = out.State
	c.mu.Unlock()
	return out.State, nil
}

type evalCacheKey struct {
	stateID uint64
	scope   api.EvalScope
	expr    string
	cfg     api.LoadConfig
}

// EvalVariable evaluates expr in the context of scope. Results are cached
// until the process moves, repeating an evaluation at the same stop is
// free.
func (c *RPCClient) EvalVariable(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error) {
	state, err := c.GetState(false)
	if err != nil {
		return nil, err
	}

	key := evalCacheKey{stateID: state.StateID, scope: scope, expr: expr, cfg: cfg}
	c.mu.Lock()
	if v, ok := c.evalCache.Get(key); ok {
		c.mu.Unlock()
		return v.(*api.Variable), nil
	}
	c.mu.Unlock()

	var out EvalOut
	if err := c.call("Eval", EvalIn{scope, expr, &cfg}, &out); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.evalCache.Add(key, out.Variable)
	c.mu.Unlock()
	return out.Variable, nil
}

func (c *RPCClient) DescribeType(scope api.EvalScope, expr string) (string, error) {
	var out DescribeTypeOut
	err := c.call("DescribeType", DescribeTypeIn{scope, expr}, &out)
	return out.Type, err
}

func (c *RPCClient) ExamineMemory(address uint64, count int) ([]byte, bool, error) {
	out := &ExaminedMemoryOut{}
	err := c.call("ExamineMemory", ExamineMemoryIn{Address: address, Length: count}, out)
	if err != nil {
		return nil, false, err
	}
	return out.Mem, out.IsLittleEndian, nil
}

func (c *RPCClient) ListSources(filter string) ([]string, error) {
	sources := new(ListSourcesOut)
	err := c.call("ListSources", ListSourcesIn{filter}, sources)
	return sources.Sources, err
}

func (c *RPCClient) ListFunctions(filter string) ([]string, error) {
	funcs := new(ListFunctionsOut)
	err := c.call("ListFunctions", ListFunctionsIn{filter}, funcs)
	return funcs.Funcs, err
}

func (c *RPCClient) ListGoroutines() ([]api.Goroutine, error) {
	var out ListGoroutinesOut
	err := c.call("ListGoroutines", ListGoroutinesIn{}, &out)
	return out.Goroutines, err
}

func (c *RPCClient) ListBreakpoints() ([]api.Breakpoint, error) {
	var out ListBreakpointsOut
	err := c.call("ListBreakpoints", ListBreakpointsIn{}, &out)
	return out.Breakpoints, err
}

func (c *RPCClient) TakeSnapshot(exprs []string, cfg api.LoadConfig) (*api.Snapshot, error) {
	var out TakeSnapshotOut
	err := c.call("TakeSnapshot", TakeSnapshotIn{exprs, &cfg}, &out)
	return out.Snapshot, err
}

func (c *RPCClient) IsMulticlient() bool {
	var out IsMulticlientOut
	c.call("IsMulticlient", IsMulticlientIn{}, &out)
	return out.IsMulticlient
}

// Disconnect closes the connection to the server. The inspected process is
// unaffected.
func (c *RPCClient) Disconnect() error {
	return c.client.Close()
}

func (c *RPCClient) call(method string, args, reply interface{}) error {
	return c.client.Call("RPCServer."+method, args, reply)
}

// CallAPI sends a raw API request. Used by script bindings.
func (c *RPCClient) CallAPI(method string, args, reply interface{}) error {
	return c.call(method, args, reply)
}
