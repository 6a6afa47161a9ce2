// Package dapclient provides a service.Client for debug servers that
// speak the Debug Adapter Protocol instead of the native JSON-RPC API.
//
// DAP describes a paused process as threads, frame handles and display
// strings. The client maps that back onto api values: threads become
// goroutines, evaluation goes through frame handles and rendered values
// are parsed back into typed variables. Primitives the protocol cannot
// express return api.ErrNotSupported.
package dapclient

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-dap"
	lru "github.com/hashicorp/golang-lru"
	"github.com/go-gouge/gouge/pkg/logflags"
	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
	"github.com/go-gouge/gouge/service/snapshot"
)

// evalCacheSize is the number of evaluation results kept per connection.
const evalCacheSize = 128

// Client is a DAP service.Client.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	log    logflags.Logger

	mu  sync.Mutex
	seq int

	caps        dap.Capabilities
	initialized bool

	pid        int
	targetName string

	running    bool
	exited     bool
	exitStatus int

	// stateID counts stopped and continued events so that cached
	// evaluations can be tied to a single stop.
	stateID          uint64
	stoppedGoroutine int64
	lastState        *api.DebuggerState

	evalCache *lru.Cache
	frameIDs  map[api.EvalScope]int
}

var _ service.Client = &Client{}

// NewClient connects to a DAP server listening at addr and attaches to
// the process it is debugging.
func NewClient(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %v", addr, err)
	}
	return NewClientFromConn(conn)
}

// NewClientFromConn performs the attach handshake on conn and returns a
// client ready to inspect the attached process.
func NewClientFromConn(conn net.Conn) (*Client, error) {
	c := &Client{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		log:      logflags.DAPLogger(),
		frameIDs: make(map[api.EvalScope]int),
	}
	c.evalCache, _ = lru.New(evalCacheSize)
	if err := c.initialize(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := &dap.InitializeRequest{Request: *c.newRequest("initialize")}
	req.Arguments = dap.InitializeRequestArguments{
		AdapterID:                "go",
		PathFormat:               "path",
		LinesStartAt1:            true,
		ColumnsStartAt1:          true,
		SupportsVariableType:     true,
		SupportsVariablePaging:   true,
		SupportsMemoryReferences: true,
		Locale:                   "en-us",
	}
	m, err := c.roundTrip(req, req.Seq)
	if err != nil {
		return fmt.Errorf("initialize: %v", err)
	}
	resp, ok := m.(*dap.InitializeResponse)
	if !ok {
		return unexpectedResponse("initialize", m)
	}
	c.caps = resp.Body

	attach := &dap.AttachRequest{Request: *c.newRequest("attach")}
	attachArgs, err := json.Marshal(map[string]interface{}{
		"request":     "attach",
		"mode":        "remote",
		"stopOnEntry": false,
	})
	if err != nil {
		return fmt.Errorf("attach: %v", err)
	}
	attach.Arguments = attachArgs
	if m, err = c.roundTrip(attach, attach.Seq); err != nil {
		return fmt.Errorf("attach: %v", err)
	}
	if _, ok = m.(*dap.AttachResponse); !ok {
		return unexpectedResponse("attach", m)
	}

	for !c.initialized {
		m, err := dap.ReadProtocolMessage(c.reader)
		if err != nil {
			return err
		}
		c.consume(m)
	}

	if c.caps.SupportsConfigurationDoneRequest {
		done := &dap.ConfigurationDoneRequest{Request: *c.newRequest("configurationDone")}
		if m, err = c.roundTrip(done, done.Seq); err != nil {
			return fmt.Errorf("configurationDone: %v", err)
		}
		if _, ok = m.(*dap.ConfigurationDoneResponse); !ok {
			return unexpectedResponse("configurationDone", m)
		}
	}
	return nil
}

// ProcessPid returns the pid reported by the server in its process
// event, zero if none was received.
func (c *Client) ProcessPid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

func (c *Client) TargetName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetName
}

func (c *Client) GetState(refresh bool) (*api.DebuggerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !refresh && c.lastState != nil {
		return c.lastState, nil
	}
	state, err := c.state()
	if err != nil {
		return nil, err
	}
	c.lastState = state
	return state, nil
}

// state rebuilds a DebuggerState from the threads and stackTrace
// requests. Callers must hold c.mu.
func (c *Client) state() (*api.DebuggerState, error) {
	if c.exited {
		return &api.DebuggerState{Exited: true, ExitStatus: c.exitStatus, StateID: c.stateID}, nil
	}
	if c.running {
		return &api.DebuggerState{Running: true, StateID: c.stateID}, nil
	}

	threads, err := c.threads()
	if err != nil {
		// The request itself may have delivered the event that explains
		// the failure.
		if c.exited {
			return &api.DebuggerState{Exited: true, ExitStatus: c.exitStatus, StateID: c.stateID}, nil
		}
		if c.running {
			return &api.DebuggerState{Running: true, StateID: c.stateID}, nil
		}
		return nil, err
	}

	state := &api.DebuggerState{StateID: c.stateID}
	gid := c.currentGoroutine(threads)
	if gid == 0 {
		return state, nil
	}
	frames, err := c.stackTrace(int(gid), 1)
	if err != nil || len(frames) == 0 {
		state.SelectedGoroutine = &api.Goroutine{ID: gid}
		return state, nil
	}
	loc := frameLocation(frames[0])
	state.CurrentThread = &api.Thread{ID: int(gid), GoroutineID: gid, File: loc.File, Line: loc.Line, Function: loc.Function}
	state.SelectedGoroutine = &api.Goroutine{ID: gid, CurrentLoc: loc, UserCurrentLoc: loc}
	return state, nil
}

func (c *Client) currentGoroutine(threads []dap.Thread) int64 {
	if c.stoppedGoroutine != 0 {
		for _, t := range threads {
			if int64(t.Id) == c.stoppedGoroutine {
				return c.stoppedGoroutine
			}
		}
	}
	if len(threads) == 0 {
		return 0
	}
	return int64(threads[0].Id)
}

type evalCacheKey struct {
	stateID uint64
	scope   api.EvalScope
	expr    string
	cfg     api.LoadConfig
}

// EvalVariable evaluates expr in the context of scope. The rendered
// result is parsed back into a typed variable and children are fetched
// to the limits of cfg. Results are cached until the process moves.
func (c *Client) EvalVariable(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := evalCacheKey{stateID: c.stateID, scope: scope, expr: expr, cfg: cfg}
	if v, ok := c.evalCache.Get(key); ok {
		return v.(*api.Variable), nil
	}

	frameID, err := c.frameID(scope)
	if err != nil {
		return nil, err
	}

	req := &dap.EvaluateRequest{Request: *c.newRequest("evaluate")}
	req.Arguments = dap.EvaluateArguments{Expression: expr, FrameId: frameID, Context: "watch"}
	m, err := c.roundTrip(req, req.Seq)
	if err != nil {
		return nil, err
	}
	resp, ok := m.(*dap.EvaluateResponse)
	if !ok {
		return nil, unexpectedResponse("evaluate", m)
	}

	b := &varBuilder{c: c, cfg: cfg}
	v, err := b.build(dap.Variable{
		Name:               expr,
		Value:              resp.Body.Result,
		Type:               resp.Body.Type,
		VariablesReference: resp.Body.VariablesReference,
		MemoryReference:    resp.Body.MemoryReference,
	}, 0)
	if err != nil {
		return nil, err
	}

	// The evaluation may have delivered a stopped event, key the entry to
	// the stop the result belongs to.
	key.stateID = c.stateID
	c.evalCache.Add(key, v)
	return v, nil
}

func (c *Client) DescribeType(scope api.EvalScope, expr string) (string, error) {
	v, err := c.EvalVariable(scope, expr, api.LoadConfig{})
	if err != nil {
		return "", err
	}
	if v.Type == "" {
		return "", fmt.Errorf("could not determine type of %s", expr)
	}
	return v.Type, nil
}

// ExamineMemory reads count bytes at addr through the readMemory
// request. DAP does not report byte order, Go targets are little endian
// on all supported hosts.
func (c *Client) ExamineMemory(addr uint64, count int) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.caps.SupportsReadMemoryRequest {
		return nil, false, fmt.Errorf("reading memory: %w", api.ErrNotSupported)
	}
	req := &dap.ReadMemoryRequest{Request: *c.newRequest("readMemory")}
	req.Arguments = dap.ReadMemoryArguments{MemoryReference: fmt.Sprintf("%#x", addr), Count: count}
	m, err := c.roundTrip(req, req.Seq)
	if err != nil {
		return nil, false, err
	}
	resp, ok := m.(*dap.ReadMemoryResponse)
	if !ok {
		return nil, false, unexpectedResponse("readMemory", m)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Body.Data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding memory data: %v", err)
	}
	return data, true, nil
}

func (c *Client) ListSources(filter string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.caps.SupportsLoadedSourcesRequest {
		return nil, fmt.Errorf("listing sources: %w", api.ErrNotSupported)
	}
	req := &dap.LoadedSourcesRequest{Request: *c.newRequest("loadedSources")}
	m, err := c.roundTrip(req, req.Seq)
	if err != nil {
		return nil, err
	}
	resp, ok := m.(*dap.LoadedSourcesResponse)
	if !ok {
		return nil, unexpectedResponse("loadedSources", m)
	}

	var rx *regexp.Regexp
	if filter != "" {
		if rx, err = regexp.Compile(filter); err != nil {
			return nil, fmt.Errorf("invalid filter argument: %v", err)
		}
	}
	sources := []string{}
	for _, src := range resp.Body.Sources {
		path := src.Path
		if path == "" {
			path = src.Name
		}
		if rx == nil || rx.MatchString(path) {
			sources = append(sources, path)
		}
	}
	return sources, nil
}

// ListFunctions has no DAP equivalent.
func (c *Client) ListFunctions(filter string) ([]string, error) {
	return nil, fmt.Errorf("listing functions: %w", api.ErrNotSupported)
}

func (c *Client) ListGoroutines() ([]api.Goroutine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	threads, err := c.threads()
	if err != nil {
		return nil, err
	}
	gs := make([]api.Goroutine, len(threads))
	for i, t := range threads {
		loc := threadLocation(t.Name)
		gs[i] = api.Goroutine{ID: int64(t.Id), CurrentLoc: loc, UserCurrentLoc: loc}
	}
	return gs, nil
}

// ListBreakpoints has no DAP equivalent, breakpoints are owned by the
// client that set them.
func (c *Client) ListBreakpoints() ([]api.Breakpoint, error) {
	return nil, fmt.Errorf("listing breakpoints: %w", api.ErrNotSupported)
}

// TakeSnapshot records the snapshot on the client side, the protocol
// has no server side recording.
func (c *Client) TakeSnapshot(exprs []string, cfg api.LoadConfig) (*api.Snapshot, error) {
	return snapshot.Record(c, exprs, cfg)
}

// CallAPI is only available on native connections.
func (c *Client) CallAPI(method string, args, reply interface{}) error {
	return fmt.Errorf("raw API calls: %w", api.ErrNotSupported)
}

func (c *Client) IsMulticlient() bool {
	return false
}

// Disconnect detaches from the server. The inspected process is
// unaffected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := &dap.DisconnectRequest{Request: *c.newRequest("disconnect")}
	if _, err := c.roundTrip(req, req.Seq); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

func (c *Client) threads() ([]dap.Thread, error) {
	req := &dap.ThreadsRequest{Request: *c.newRequest("threads")}
	m, err := c.roundTrip(req, req.Seq)
	if err != nil {
		return nil, err
	}
	resp, ok := m.(*dap.ThreadsResponse)
	if !ok {
		return nil, unexpectedResponse("threads", m)
	}
	return resp.Body.Threads, nil
}

func (c *Client) stackTrace(goroutineID, levels int) ([]dap.StackFrame, error) {
	req := &dap.StackTraceRequest{Request: *c.newRequest("stackTrace")}
	req.Arguments = dap.StackTraceArguments{ThreadId: goroutineID, Levels: levels}
	m, err := c.roundTrip(req, req.Seq)
	if err != nil {
		return nil, err
	}
	resp, ok := m.(*dap.StackTraceResponse)
	if !ok {
		return nil, unexpectedResponse("stackTrace", m)
	}
	return resp.Body.StackFrames, nil
}

func (c *Client) variables(ref int) ([]dap.Variable, error) {
	req := &dap.VariablesRequest{Request: *c.newRequest("variables")}
	req.Arguments = dap.VariablesArguments{VariablesReference: ref}
	m, err := c.roundTrip(req, req.Seq)
	if err != nil {
		return nil, err
	}
	resp, ok := m.(*dap.VariablesResponse)
	if !ok {
		return nil, unexpectedResponse("variables", m)
	}
	return resp.Body.Variables, nil
}

// frameID resolves scope to a frame handle usable in evaluate requests.
// Handles are cached until the next stop.
func (c *Client) frameID(scope api.EvalScope) (int, error) {
	if scope.DeferredCall > 0 {
		return 0, fmt.Errorf("deferred call frames: %w", api.ErrNotSupported)
	}
	if id, ok := c.frameIDs[scope]; ok {
		return id, nil
	}

	gid := scope.GoroutineID
	if gid < 0 {
		threads, err := c.threads()
		if err != nil {
			return 0, err
		}
		if gid = c.currentGoroutine(threads); gid == 0 {
			return 0, errors.New("no goroutines")
		}
	}
	frames, err := c.stackTrace(int(gid), scope.Frame+1)
	if err != nil {
		return 0, err
	}
	if scope.Frame >= len(frames) {
		return 0, fmt.Errorf("frame %d out of range", scope.Frame)
	}
	id := frames[scope.Frame].Id
	c.frameIDs[scope] = id
	return id, nil
}

// roundTrip sends req and reads messages until the response with the
// matching sequence number arrives. Events received in between are
// consumed. Callers must hold c.mu.
func (c *Client) roundTrip(req dap.Message, seq int) (dap.Message, error) {
	if err := dap.WriteProtocolMessage(c.conn, req); err != nil {
		return nil, err
	}
	for {
		m, err := dap.ReadProtocolMessage(c.reader)
		if err != nil {
			return nil, err
		}
		if isEvent(m) {
			c.consume(m)
			continue
		}
		if er, ok := m.(*dap.ErrorResponse); ok {
			if er.RequestSeq != seq {
				c.log.Warnf("discarding error response to request %d", er.RequestSeq)
				continue
			}
			return nil, errorFromResponse(er)
		}
		return m, nil
	}
}

func isEvent(m dap.Message) bool {
	switch m.(type) {
	case *dap.InitializedEvent, *dap.StoppedEvent, *dap.ContinuedEvent, *dap.ExitedEvent,
		*dap.TerminatedEvent, *dap.ThreadEvent, *dap.OutputEvent, *dap.BreakpointEvent,
		*dap.ModuleEvent, *dap.LoadedSourceEvent, *dap.ProcessEvent, *dap.CapabilitiesEvent:
		return true
	}
	return false
}

func (c *Client) consume(m dap.Message) {
	switch e := m.(type) {
	case *dap.InitializedEvent:
		c.initialized = true
	case *dap.StoppedEvent:
		c.stateID++
		c.running = false
		c.lastState = nil
		if e.Body.ThreadId != 0 {
			c.stoppedGoroutine = int64(e.Body.ThreadId)
		}
		c.evalCache.Purge()
		c.frameIDs = make(map[api.EvalScope]int)
		c.log.Debugf("target stopped: %s", e.Body.Reason)
	case *dap.ContinuedEvent:
		c.stateID++
		c.running = true
		c.lastState = nil
		c.evalCache.Purge()
		c.frameIDs = make(map[api.EvalScope]int)
		c.log.Debug("target resumed")
	case *dap.ExitedEvent:
		c.exited = true
		c.exitStatus = e.Body.ExitCode
		c.lastState = nil
	case *dap.TerminatedEvent:
		c.exited = true
		c.lastState = nil
	case *dap.ProcessEvent:
		c.pid = e.Body.SystemProcessId
		if e.Body.Name != "" {
			c.targetName = e.Body.Name
		}
	case *dap.OutputEvent:
		c.log.Debugf("target output: %s", strings.TrimRight(e.Body.Output, "\n"))
	default:
		c.log.Debugf("ignoring %T", e)
	}
}

func (c *Client) newRequest(command string) *dap.Request {
	request := &dap.Request{}
	request.Type = "request"
	request.Command = command
	request.Seq = c.seq
	c.seq++
	return request
}

func errorFromResponse(er *dap.ErrorResponse) error {
	if er.Body.Error.Format != "" {
		return errors.New(er.Body.Error.Format)
	}
	return errors.New(er.Message)
}

func unexpectedResponse(command string, m dap.Message) error {
	return fmt.Errorf("unexpected response to %s request: %T", command, m)
}

func frameLocation(frame dap.StackFrame) api.Location {
	loc := api.Location{File: frame.Source.Path, Line: frame.Line}
	if frame.Name != "" {
		loc.Function = &api.Function{Name: frame.Name}
	}
	return loc
}

// threadLocation recovers a location from a thread name, which holds
// either the function name or file@line when the function is unknown.
func threadLocation(name string) api.Location {
	if i := strings.LastIndex(name, "@"); i > 0 {
		if line, err := strconv.Atoi(name[i+1:]); err == nil {
			return api.Location{File: name[:i], Line: line}
		}
	}
	if name == "" {
		return api.Location{}
	}
	return api.Location{Function: &api.Function{Name: name}}
}
