package dapclient

import (
	"bufio"
	"encoding/base64"
	"errors"
	"net"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-dap"

	"github.com/go-gouge/gouge/service/api"
	"github.com/go-gouge/gouge/service/snapshot"
)

const fakePayload = `{"a":true}`

var fakeEvalResults = map[string]dap.EvaluateResponseBody{
	"req":        {Result: "<main.Request>", Type: "main.Request", VariablesReference: 100},
	"req.Method": {Result: `"POST"`, Type: "string"},
	"req.Body":   {Result: "<[]uint8> (length: 10, cap: 16)", Type: "[]uint8", VariablesReference: 200},
	"req.Next":   {Result: "<*main.Request>(0xc000042000)", Type: "*main.Request", VariablesReference: 300},
	"resp.Body":  {Result: `"0123...+6 more"`, Type: "string"},
	"m":          {Result: "<map[string]string> (length: 1)", Type: "map[string]string", VariablesReference: 400},
	"bump":       {Result: "1", Type: "int"},
}

var fakeChildren = map[int][]dap.Variable{
	100: {
		{Name: "Method", Value: `"POST"`, Type: "string"},
		{Name: "Body", Value: "<[]uint8> (length: 10, cap: 16)", Type: "[]uint8", VariablesReference: 200},
		{Name: "Next", Value: "<*main.Request>(0xc000042000)", Type: "*main.Request", VariablesReference: 300},
	},
	200: byteChildren(fakePayload),
	300: {{Value: "<main.Request>", Type: "main.Request", VariablesReference: 100}},
	400: {{Name: `"Content-Type"`, Value: `"application/json"`}},
}

func byteChildren(s string) []dap.Variable {
	kids := make([]dap.Variable, len(s))
	for i := range kids {
		kids[i] = dap.Variable{Name: "[" + strconv.Itoa(i) + "]", Value: strconv.Itoa(int(s[i])), Type: "uint8"}
	}
	return kids
}

// fakeAdapter is a scripted DAP server serving a fake process paused in
// main.handlePayment.
type fakeAdapter struct {
	evalCount int32
}

func (a *fakeAdapter) serve(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		m, err := dap.ReadProtocolMessage(reader)
		if err != nil {
			return
		}
		switch request := m.(type) {
		case *dap.InitializeRequest:
			resp := &dap.InitializeResponse{Response: *adapterResponse(request.Request)}
			resp.Body.SupportsConfigurationDoneRequest = true
			resp.Body.SupportsLoadedSourcesRequest = true
			resp.Body.SupportsReadMemoryRequest = true
			a.send(conn, resp)

		case *dap.AttachRequest:
			process := &dap.ProcessEvent{Event: *adapterEvent("process")}
			process.Body.Name = "fakeproc"
			process.Body.SystemProcessId = 4242
			a.send(conn, process)
			a.send(conn, &dap.InitializedEvent{Event: *adapterEvent("initialized")})
			a.send(conn, &dap.AttachResponse{Response: *adapterResponse(request.Request)})

		case *dap.ConfigurationDoneRequest:
			a.send(conn, &dap.ConfigurationDoneResponse{Response: *adapterResponse(request.Request)})
			a.sendStopped(conn, "attach")

		case *dap.ThreadsRequest:
			resp := &dap.ThreadsResponse{
				Response: *adapterResponse(request.Request),
				Body: dap.ThreadsResponseBody{Threads: []dap.Thread{
					{Id: 1, Name: "main.handlePayment"},
					{Id: 18, Name: "/src/loop.go@42"},
				}},
			}
			a.send(conn, resp)

		case *dap.StackTraceRequest:
			frame := dap.StackFrame{Id: 1000 + request.Arguments.ThreadId, Name: "main.handlePayment", Line: 42}
			frame.Source = &dap.Source{Name: "server.go", Path: "/src/server.go"}
			resp := &dap.StackTraceResponse{
				Response: *adapterResponse(request.Request),
				Body:     dap.StackTraceResponseBody{StackFrames: []dap.StackFrame{frame}, TotalFrames: 1},
			}
			a.send(conn, resp)

		case *dap.EvaluateRequest:
			atomic.AddInt32(&a.evalCount, 1)
			expr := request.Arguments.Expression
			if expr == "bump" {
				a.sendStopped(conn, "breakpoint")
			}
			body, found := fakeEvalResults[expr]
			if !found {
				a.sendError(conn, request.Request, "Unable to evaluate expression", "could not find symbol value for "+expr)
				continue
			}
			resp := &dap.EvaluateResponse{Response: *adapterResponse(request.Request), Body: body}
			a.send(conn, resp)

		case *dap.VariablesRequest:
			resp := &dap.VariablesResponse{
				Response: *adapterResponse(request.Request),
				Body:     dap.VariablesResponseBody{Variables: fakeChildren[request.Arguments.VariablesReference]},
			}
			a.send(conn, resp)

		case *dap.ReadMemoryRequest:
			data := make([]byte, request.Arguments.Count)
			for i := range data {
				data[i] = byte(i)
			}
			resp := &dap.ReadMemoryResponse{Response: *adapterResponse(request.Request)}
			resp.Body.Address = request.Arguments.MemoryReference
			resp.Body.Data = base64.StdEncoding.EncodeToString(data)
			a.send(conn, resp)

		case *dap.LoadedSourcesRequest:
			resp := &dap.LoadedSourcesResponse{
				Response: *adapterResponse(request.Request),
				Body: dap.LoadedSourcesResponseBody{Sources: []dap.Source{
					{Name: "server.go", Path: "/src/server.go"},
					{Name: "util.go", Path: "/src/util.go"},
				}},
			}
			a.send(conn, resp)

		case *dap.DisconnectRequest:
			a.send(conn, &dap.DisconnectResponse{Response: *adapterResponse(request.Request)})
			return

		default:
			if req, ok := m.(*dap.Request); ok {
				a.sendError(conn, *req, "Unsupported command", "cannot process "+req.Command)
			}
		}
	}
}

func (a *fakeAdapter) send(conn net.Conn, m dap.Message) {
	dap.WriteProtocolMessage(conn, m)
}

func (a *fakeAdapter) sendStopped(conn net.Conn, reason string) {
	stopped := &dap.StoppedEvent{Event: *adapterEvent("stopped")}
	stopped.Body.Reason = reason
	stopped.Body.ThreadId = 1
	stopped.Body.AllThreadsStopped = true
	a.send(conn, stopped)
}

func (a *fakeAdapter) sendError(conn net.Conn, request dap.Request, summary, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.Command = request.Command
	er.RequestSeq = request.Seq
	er.Success = false
	er.Message = summary
	er.Body.Error = &dap.ErrorMessage{Id: 9000, Format: summary + ": " + details}
	a.send(conn, er)
}

func adapterResponse(request dap.Request) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		Command:         request.Command,
		RequestSeq:      request.Seq,
		Success:         true,
	}
}

func adapterEvent(event string) *dap.Event {
	return &dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: event}
}

func startClient(t *testing.T) (*Client, *fakeAdapter) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	adapter := &fakeAdapter{}
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		adapter.serve(conn)
	}()
	t.Cleanup(func() { listener.Close() })

	c, err := NewClient(listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Disconnect() })
	return c, adapter
}

func TestClientAttach(t *testing.T) {
	c, _ := startClient(t)

	if pid := c.ProcessPid(); pid != 4242 {
		t.Errorf("ProcessPid() = %d, want 4242", pid)
	}
	if name := c.TargetName(); name != "fakeproc" {
		t.Errorf("TargetName() = %q, want %q", name, "fakeproc")
	}

	state, err := c.GetState(true)
	if err != nil {
		t.Fatal(err)
	}
	if state.Running || state.Exited {
		t.Errorf("unexpected state: running=%v exited=%v", state.Running, state.Exited)
	}
	if state.SelectedGoroutine == nil || state.SelectedGoroutine.ID != 1 {
		t.Errorf("SelectedGoroutine = %+v, want goroutine 1", state.SelectedGoroutine)
	}
	if state.CurrentThread == nil {
		t.Fatal("no current thread")
	}
	if state.CurrentThread.File != "/src/server.go" || state.CurrentThread.Line != 42 {
		t.Errorf("current location = %s:%d", state.CurrentThread.File, state.CurrentThread.Line)
	}
	if fn := state.CurrentThread.Function; fn == nil || fn.Name != "main.handlePayment" {
		t.Errorf("current function = %+v", fn)
	}

	cached, err := c.GetState(false)
	if err != nil {
		t.Fatal(err)
	}
	if cached.StateID != state.StateID {
		t.Errorf("cached StateID = %d, want %d", cached.StateID, state.StateID)
	}
}

func TestEvalVariable(t *testing.T) {
	c, _ := startClient(t)
	scope := api.EvalScope{GoroutineID: -1}

	v, err := c.EvalVariable(scope, "req", api.PayloadLoadConfig)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != reflect.Struct || v.Type != "main.Request" {
		t.Fatalf("req = kind %s type %s", v.Kind, v.Type)
	}
	if len(v.Children) != 3 {
		t.Fatalf("req has %d children, want 3", len(v.Children))
	}

	method := v.Children[0]
	if method.Name != "Method" || method.Kind != reflect.String || method.Value != "POST" {
		t.Errorf("Method = %+v", method)
	}

	body := v.Children[1]
	if body.Kind != reflect.Slice || body.Len != 10 || body.Cap != 16 {
		t.Errorf("Body = kind %s len %d cap %d", body.Kind, body.Len, body.Cap)
	}
	payload, err := body.PayloadBytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != fakePayload {
		t.Errorf("payload = %q, want %q", payload, fakePayload)
	}

	next := v.Children[2]
	if next.Kind != reflect.Ptr {
		t.Fatalf("Next = kind %s", next.Kind)
	}
	if len(next.Children) != 1 || next.Children[0].Kind != reflect.Struct {
		t.Errorf("Next was not followed: %+v", next.Children)
	}
}

func TestEvalVariablePointerLimit(t *testing.T) {
	c, _ := startClient(t)
	scope := api.EvalScope{GoroutineID: -1}

	cfg := api.DefaultLoadConfig
	cfg.FollowPointers = false
	v, err := c.EvalVariable(scope, "req", cfg)
	if err != nil {
		t.Fatal(err)
	}
	next := v.Children[2]
	if len(next.Children) != 1 {
		t.Fatalf("Next = %+v", next)
	}
	if !next.Children[0].OnlyAddr || next.Children[0].Addr != 0xc000042000 {
		t.Errorf("pointee = %+v, want address only", next.Children[0])
	}
}

func TestEvalVariableTruncatedString(t *testing.T) {
	c, _ := startClient(t)
	scope := api.EvalScope{GoroutineID: -1}

	v, err := c.EvalVariable(scope, "resp.Body", api.DefaultLoadConfig)
	if err != nil {
		t.Fatal(err)
	}
	if v.Value != "0123" || v.Len != 10 {
		t.Fatalf("resp.Body = %q len %d, want %q len 10", v.Value, v.Len, "0123")
	}
	_, err = v.PayloadBytes()
	var truncated api.ErrTruncatedPayload
	if !errors.As(err, &truncated) {
		t.Fatalf("PayloadBytes() error = %v, want truncation", err)
	}
	if truncated.Param != "max-string-len" || truncated.Loaded != 4 || truncated.Total != 10 {
		t.Errorf("truncation = %+v", truncated)
	}
}

func TestEvalVariableMap(t *testing.T) {
	c, _ := startClient(t)
	scope := api.EvalScope{GoroutineID: -1}

	v, err := c.EvalVariable(scope, "m", api.DefaultLoadConfig)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != reflect.Map || v.Len != 1 || len(v.Children) != 2 {
		t.Fatalf("m = kind %s len %d children %d", v.Kind, v.Len, len(v.Children))
	}
	if v.Children[0].Value != "Content-Type" || v.Children[1].Value != "application/json" {
		t.Errorf("m children = %q: %q", v.Children[0].Value, v.Children[1].Value)
	}
}

func TestEvalVariableUnknown(t *testing.T) {
	c, _ := startClient(t)

	_, err := c.EvalVariable(api.EvalScope{GoroutineID: -1}, "nope", api.DefaultLoadConfig)
	if err == nil || !strings.Contains(err.Error(), "could not find symbol") {
		t.Errorf("error = %v", err)
	}
}

func TestEvalCache(t *testing.T) {
	c, adapter := startClient(t)
	scope := api.EvalScope{GoroutineID: -1}

	for i := 0; i < 2; i++ {
		if _, err := c.EvalVariable(scope, "req.Method", api.DefaultLoadConfig); err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt32(&adapter.evalCount); n != 1 {
		t.Errorf("eval requests after repeat = %d, want 1", n)
	}

	// The bump evaluation delivers a stopped event, dropping every cached
	// result.
	if _, err := c.EvalVariable(scope, "bump", api.DefaultLoadConfig); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EvalVariable(scope, "req.Method", api.DefaultLoadConfig); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&adapter.evalCount); n != 3 {
		t.Errorf("eval requests after stop = %d, want 3", n)
	}
}

func TestDescribeType(t *testing.T) {
	c, _ := startClient(t)

	typ, err := c.DescribeType(api.EvalScope{GoroutineID: -1}, "req.Body")
	if err != nil {
		t.Fatal(err)
	}
	if typ != "[]uint8" {
		t.Errorf("type = %q, want []uint8", typ)
	}
}

func TestExamineMemory(t *testing.T) {
	c, _ := startClient(t)

	mem, littleEndian, err := c.ExamineMemory(0x2000, 16)
	if err != nil {
		t.Fatal(err)
	}
	if !littleEndian {
		t.Error("expected little endian")
	}
	if len(mem) != 16 {
		t.Fatalf("read %d bytes, want 16", len(mem))
	}
	for i, b := range mem {
		if b != byte(i) {
			t.Fatalf("mem[%d] = %d", i, b)
		}
	}
}

func TestListSources(t *testing.T) {
	c, _ := startClient(t)

	all, err := c.ListSources("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("sources = %v", all)
	}
	matched, err := c.ListSources("server")
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 1 || matched[0] != "/src/server.go" {
		t.Errorf("filtered sources = %v", matched)
	}
	if _, err = c.ListSources("(unbalanced"); err == nil {
		t.Error("expected invalid filter error")
	}
}

func TestListGoroutines(t *testing.T) {
	c, _ := startClient(t)

	gs, err := c.ListGoroutines()
	if err != nil {
		t.Fatal(err)
	}
	if len(gs) != 2 {
		t.Fatalf("goroutines = %+v", gs)
	}
	if gs[0].ID != 1 || gs[0].CurrentLoc.Function == nil || gs[0].CurrentLoc.Function.Name != "main.handlePayment" {
		t.Errorf("goroutine 1 = %+v", gs[0])
	}
	if gs[1].ID != 18 || gs[1].UserCurrentLoc.File != "/src/loop.go" || gs[1].UserCurrentLoc.Line != 42 {
		t.Errorf("goroutine 18 = %+v", gs[1])
	}
}

func TestNotSupported(t *testing.T) {
	c, _ := startClient(t)

	if _, err := c.ListFunctions(""); !errors.Is(err, api.ErrNotSupported) {
		t.Errorf("ListFunctions error = %v", err)
	}
	if _, err := c.ListBreakpoints(); !errors.Is(err, api.ErrNotSupported) {
		t.Errorf("ListBreakpoints error = %v", err)
	}
	if err := c.CallAPI("State", nil, nil); !errors.Is(err, api.ErrNotSupported) {
		t.Errorf("CallAPI error = %v", err)
	}
	if c.IsMulticlient() {
		t.Error("IsMulticlient() = true")
	}
}

func TestTakeSnapshot(t *testing.T) {
	c, _ := startClient(t)

	snap, err := c.TakeSnapshot([]string{"req.Method"}, api.PayloadLoadConfig)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Pid != 4242 || snap.Target != "fakeproc" {
		t.Errorf("snapshot identity = %s pid %d", snap.Target, snap.Pid)
	}
	if len(snap.Variables) != 1 {
		t.Fatalf("snapshot variables = %+v", snap.Variables)
	}
	if len(snap.Goroutines) != 2 || len(snap.Sources) != 2 {
		t.Errorf("snapshot listings: %d goroutines, %d sources", len(snap.Goroutines), len(snap.Sources))
	}
	if snap.Functions != nil {
		t.Errorf("functions should not have been recorded: %v", snap.Functions)
	}

	backend := snapshot.NewBackend(snap)
	v, err := backend.Eval(api.EvalScope{GoroutineID: -1}, "req.Method", api.DefaultLoadConfig)
	if err != nil {
		t.Fatal(err)
	}
	if v.Value != "POST" {
		t.Errorf("replayed req.Method = %q", v.Value)
	}
}

func TestThreadLocation(t *testing.T) {
	for _, tc := range []struct {
		name string
		file string
		line int
		fn   string
	}{
		{"main.handlePayment", "", 0, "main.handlePayment"},
		{"/src/loop.go@42", "/src/loop.go", 42, ""},
		{"pkg@v1.2.3/file.go@7", "pkg@v1.2.3/file.go", 7, ""},
		{"", "", 0, ""},
	} {
		loc := threadLocation(tc.name)
		if loc.File != tc.file || loc.Line != tc.line {
			t.Errorf("threadLocation(%q) = %s:%d", tc.name, loc.File, loc.Line)
		}
		fn := ""
		if loc.Function != nil {
			fn = loc.Function.Name
		}
		if fn != tc.fn {
			t.Errorf("threadLocation(%q) function = %q, want %q", tc.name, fn, tc.fn)
		}
	}
}

func TestKindOf(t *testing.T) {
	for _, tc := range []struct {
		typ  string
		kind reflect.Kind
	}{
		{"string", reflect.String},
		{"[]uint8", reflect.Slice},
		{"[4]int", reflect.Array},
		{"*main.Request", reflect.Ptr},
		{"map[string]int", reflect.Map},
		{"chan int", reflect.Chan},
		{"func() error", reflect.Func},
		{"error", reflect.Interface},
		{"interface {}", reflect.Interface},
		{"main.Request", reflect.Struct},
		{"byte", reflect.Uint8},
		{"", reflect.Invalid},
	} {
		if kind := kindOf(tc.typ); kind != tc.kind {
			t.Errorf("kindOf(%q) = %s, want %s", tc.typ, kind, tc.kind)
		}
	}
}
