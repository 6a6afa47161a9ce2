package rpccommon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"reflect"
	"runtime"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-gouge/gouge/pkg/logflags"
	"github.com/go-gouge/gouge/pkg/version"
	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
	"github.com/go-gouge/gouge/service/internal/sameuser"
	"github.com/go-gouge/gouge/service/rpc2"
)

// ServerImpl implements a JSON-RPC server serving the gouge inspection API.
type ServerImpl struct {
	// config is all the information necessary to start the server.
	config *service.Config
	// listener is used to serve requests.
	listener net.Listener
	// stopChan is used to stop the listener goroutine.
	stopChan chan struct{}
	// s2 is the API server.
	s2 *rpc2.RPCServer
	// methods served over the wire.
	methodMap map[string]*methodType
	// log is the logger for the rpc component.
	log logflags.Logger

	disconnectOnce sync.Once
}

// RPCServer implements the RPC method calls that describe the server
// itself rather than the inspected process.
type RPCServer struct {
	s *ServerImpl
}

type methodType struct {
	method    reflect.Method
	Rcvr      reflect.Value
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// NewServer creates a new RPCServer.
func NewServer(config *service.Config) *ServerImpl {
	logger := logflags.RPCLogger()
	if config.AcceptMulti {
		logger.Debug("accepting multiple clients")
	}
	return &ServerImpl{
		config:   config,
		listener: config.Listener,
		stopChan: make(chan struct{}),
		log:      logger,
	}
}

// Stop stops the JSON-RPC server.
func (s *ServerImpl) Stop() error {
	s.log.Debug("stopping")
	close(s.stopChan)
	return s.listener.Close()
}

// Run serves the configured backend. It returns once the listener goroutine
// is started, serving continues in the background until Stop is called.
func (s *ServerImpl) Run() error {
	if s.config.Backend == nil {
		return errors.New("no backend configured")
	}

	s.s2 = rpc2.NewServer(s.config)

	rpcServer := &RPCServer{s}

	s.methodMap = make(map[string]*methodType)
	suitableMethods(s.s2, s.methodMap, s.log)
	suitableMethods(rpcServer, s.methodMap, s.log)

	go func() {
		defer s.listener.Close()
		for {
			c, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.stopChan:
					// We were supposed to exit, do nothing and return
					return
				default:
					panic(err)
				}
			}

			if s.config.CheckLocalConnUser {
				if !sameuser.CanAccept(s.listener.Addr(), c.LocalAddr(), c.RemoteAddr()) {
					c.Close()
					continue
				}
			}

			go s.serveJSONCodec(c)
			if !s.config.AcceptMulti {
				break
			}
		}
	}()
	return nil
}

// Precompute the reflect type for error. Can't use error directly
// because Typeof takes an empty interface value. This is annoying.
var typeOfError = reflect.TypeOf((*error)(nil)).Elem()

// Is this an exported - upper case - name?
func isExported(name string) bool {
	ch, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(ch)
}

// Is this type exported or a builtin?
func isExportedOrBuiltinType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	// PkgPath will be non-empty even for an exported type,
	// so we need to check the type name as well.
	return isExported(t.Name()) || t.PkgPath() == ""
}

// Fills the methods map with the methods of receiver that should be made
// available through the RPC interface. These are all the public methods of
// rcvr with this signature:
//
//	func (rcvr ReceiverType) Method(in InputType, out *ReplyType) error
func suitableMethods(rcvr interface{}, methods map[string]*methodType, log logflags.Logger) {
	typ := reflect.TypeOf(rcvr)
	rcvrv := reflect.ValueOf(rcvr)
	sname := reflect.Indirect(rcvrv).Type().Name()
	if sname == "" {
		log.Debugf("rpc.Register: no service name for type %s", typ)
		return
	}
	for m := 0; m < typ.NumMethod(); m++ {
		method := typ.Method(m)
		mname := method.Name
		mtype := method.Type
		// method must be exported
		if method.PkgPath != "" {
			continue
		}
		// Method needs three ins: receiver, *args, *reply.
		if mtype.NumIn() != 3 {
			log.Warn("method", mname, "has wrong number of ins:", mtype.NumIn())
			continue
		}
		// First arg need not be a pointer.
		argType := mtype.In(1)
		if !isExportedOrBuiltinType(argType) {
			log.Warn(mname, "argument type not exported:", argType)
			continue
		}
		// Second arg must be a pointer.
		replyType := mtype.In(2)
		if replyType.Kind() != reflect.Ptr {
			log.Warn("method", mname, "reply type not a pointer:", replyType)
			continue
		}
		// Reply type must be exported.
		if !isExportedOrBuiltinType(replyType) {
			log.Warn("method", mname, "reply type not exported:", replyType)
			continue
		}
		// Method needs one out.
		if mtype.NumOut() != 1 {
			log.Warn("method", mname, "has wrong number of outs:", mtype.NumOut())
			continue
		}
		// The return type of the method must be error.
		if returnType := mtype.Out(0); returnType != typeOfError {
			log.Warn("method", mname, "returns", returnType.String(), "not error")
			continue
		}
		methods[sname+"."+mname] = &methodType{method: method, ArgType: argType, ReplyType: replyType, Rcvr: rcvrv}
	}
}

func (s *ServerImpl) serveJSONCodec(conn io.ReadWriteCloser) {
	defer func() {
		if !s.config.AcceptMulti && s.config.DisconnectChan != nil {
			s.disconnectOnce.Do(func() { close(s.config.DisconnectChan) })
		}
	}()

	sending := new(sync.Mutex)
	codec := jsonrpc.NewServerCodec(conn)
	var req rpc.Request
	var resp rpc.Response
	for {
		req = rpc.Request{}
		err := codec.ReadRequestHeader(&req)
		if err != nil {
			if err != io.EOF {
				s.log.Error("rpc:", err)
			}
			break
		}

		mtype, ok := s.methodMap[req.ServiceMethod]
		if !ok {
			s.log.Errorf("rpc: can't find method %s", req.ServiceMethod)
			s.sendResponse(sending, &req, &resp, nil, codec, "unknown method: "+req.ServiceMethod)
			continue
		}

		var argv, replyv reflect.Value

		// Decode the argument value.
		argIsValue := false // if true, need to indirect before calling.
		if mtype.ArgType.Kind() == reflect.Ptr {
			argv = reflect.New(mtype.ArgType.Elem())
		} else {
			argv = reflect.New(mtype.ArgType)
			argIsValue = true
		}
		// argv guaranteed to be a pointer now.
		if err = codec.ReadRequestBody(argv.Interface()); err != nil {
			return
		}
		if argIsValue {
			argv = argv.Elem()
		}

		replyv = reflect.New(mtype.ReplyType.Elem())
		function := mtype.method.Func
		var returnValues []reflect.Value
		var errInter interface{}
		func() {
			defer func() {
				if ierr := recover(); ierr != nil {
					errInter = newInternalError(ierr, 2)
				}
			}()
			returnValues = function.Call([]reflect.Value{mtype.Rcvr, argv, replyv})
			errInter = returnValues[0].Interface()
		}()

		errmsg := ""
		if errInter != nil {
			errmsg = errInter.(error).Error()
		}
		resp = rpc.Response{}
		s.sendResponse(sending, &req, &resp, replyv.Interface(), codec, errmsg)
	}
	codec.Close()
}

// A value sent as a placeholder for the server's response value when the server
// receives an invalid request. It is never decoded by the client since the Response
// contains an error when it is used.
var invalidRequest = struct{}{}

func (s *ServerImpl) sendResponse(sending *sync.Mutex, req *rpc.Request, resp *rpc.Response, reply interface{}, codec rpc.ServerCodec, errmsg string) {
	resp.ServiceMethod = req.ServiceMethod
	if errmsg != "" {
		resp.Error = errmsg
		reply = invalidRequest
	}
	resp.Seq = req.Seq
	sending.Lock()
	defer sending.Unlock()
	err := codec.WriteResponse(resp, reply)
	if err != nil {
		s.log.Error("rpc: writing response:", err)
	}
}

type internalError struct {
	Err   interface{}
	Stack []internalStackFrame
}

type internalStackFrame struct {
	Pc   uintptr
	File string
	Line int
}

func newInternalError(ierr interface{}, skip int) *internalError {
	r := &internalError{ierr, nil}
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fname := "<unknown>"
		fn := runtime.FuncForPC(pc)
		if fn != nil {
			fname = fn.Name()
		}
		r.Stack = append(r.Stack, internalStackFrame{pc, fname + " " + file, line})
	}
	return r
}

func (err *internalError) Error() string {
	var out bytes.Buffer
	fmt.Fprintf(&out, "Internal server error: %v\n", err.Err)
	for _, frame := range err.Stack {
		fmt.Fprintf(&out, "\t%s:%d (%#x)\n", frame.File, frame.Line, frame.Pc)
	}
	return out.String()
}

// GetVersion returns the version of gouge as well as the API version
// currently served.
func (s *RPCServer) GetVersion(args api.GetVersionIn, out *api.GetVersionOut) error {
	out.GougeVersion = version.GougeVersion.String()
	out.APIVersion = api.APIVersion
	return nil
}
