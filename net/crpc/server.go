package crpc

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"io"
	"net"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	log "github.com/sirupsen/logrus"
)

type methodType struct {
	sync.Mutex // protects counters
	method     reflect.Method
	ArgType    reflect.Type
	ReplyType  reflect.Type
	numCalls   uint
}

type service struct {
	name   string                 // name of service
	rcvr   reflect.Value          // receiver of methods for the service
	typ    reflect.Type           // type of the receiver
	method map[string]*methodType // registered methods
}

type Server struct {
	listener   net.Listener
	serviceMap sync.Map // map[string]*service
}

func NewServer(listener net.Listener) *Server {
	return &Server{
		listener: listener,
	}
}

// Register publishes the exported methods of rcvr with the signature
//
//	func (t *T) Method(args *A, reply *R) error
//
// under "T.Method".
func (srv *Server) Register(rcvr any) error {
	s := new(service)
	s.typ = reflect.TypeOf(rcvr)
	s.rcvr = reflect.ValueOf(rcvr)
	sname := reflect.Indirect(s.rcvr).Type().Name()
	if sname == "" {
		return fmt.Errorf("crpc.Register: no service name for type %s", s.typ.String())
	}
	if !token.IsExported(sname) {
		return fmt.Errorf("crpc.Register: type %s is not exported", sname)
	}
	s.name = sname

	s.method = suitableMethods(s.typ)
	if len(s.method) == 0 {
		return fmt.Errorf("crpc.Register: type %s has no exported methods of suitable type", sname)
	}

	if _, dup := srv.serviceMap.LoadOrStore(sname, s); dup {
		return errors.New("crpc.Register: service already defined: " + sname)
	}

	for m := range s.method {
		log.Debugf("crpc.Register: %s.%s", sname, m)
	}
	return nil
}

// Is this type exported or a builtin?
func isExportedOrBuiltinType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	// PkgPath will be non-empty even for an exported type, so we need to check the type name as well.
	return token.IsExported(t.Name()) || t.PkgPath() == ""
}

// suitableMethods returns the RPC methods of typ. Exported methods of another shape are skipped.
func suitableMethods(typ reflect.Type) map[string]*methodType {
	methods := make(map[string]*methodType)
	for m := 0; m < typ.NumMethod(); m++ {
		method := typ.Method(m)
		mtype := method.Type
		mname := method.Name
		if !method.IsExported() {
			continue
		}
		// Receiver, *args, *reply
		if mtype.NumIn() != 3 {
			log.Debugf("crpc.Register: skipping %q: %d input parameters", mname, mtype.NumIn())
			continue
		}
		argType := mtype.In(1)
		if !isExportedOrBuiltinType(argType) {
			log.Errorf("crpc.Register: argument type of method %q is not exported: %q", mname, argType)
			continue
		}
		replyType := mtype.In(2)
		if replyType.Kind() != reflect.Pointer {
			log.Errorf("crpc.Register: reply type of method %q is not a pointer: %q", mname, replyType)
			continue
		}
		if !isExportedOrBuiltinType(replyType) {
			log.Errorf("crpc.Register: reply type of method %q is not exported: %q", mname, replyType)
			continue
		}
		if mtype.NumOut() != 1 || mtype.Out(0) != reflect.TypeOf((*error)(nil)).Elem() {
			log.Debugf("crpc.Register: skipping %q: must return exactly one error", mname)
			continue
		}
		methods[mname] = &methodType{method: method, ArgType: argType, ReplyType: replyType}
	}
	return methods
}

func (srv *Server) lookup(serviceMethod string) (*service, *methodType, error) {
	dot := strings.LastIndex(serviceMethod, ".")
	if dot < 0 {
		return nil, nil, fmt.Errorf("crpc: service/method request ill-formed: %q", serviceMethod)
	}
	serviceName := serviceMethod[:dot]
	methodName := serviceMethod[dot+1:]

	svci, ok := srv.serviceMap.Load(serviceName)
	if !ok {
		return nil, nil, fmt.Errorf("crpc: can't find service %q", serviceName)
	}
	svc := svci.(*service)
	mtype := svc.method[methodName]
	if mtype == nil {
		return nil, nil, fmt.Errorf("crpc: can't find method %q", serviceMethod)
	}
	return svc, mtype, nil
}

// Serve accepts connections until ctx is cancelled.
func (srv *Server) Serve(ctx context.Context) error {
	// Closing the listener unblocks Accept
	go func() {
		<-ctx.Done()
		if err := srv.listener.Close(); err != nil {
			log.Warnf("crpc.Server: error closing listener %s: %v", srv.listener.Addr(), err)
		}
	}()

	log.Infof("crpc.Server: listening on %s", srv.listener.Addr())

	var tempDelay time.Duration // how long to sleep on accept failure
	for {
		rw, err := srv.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Infof("crpc.Server: shutting down listener %s", srv.listener.Addr())
				return nil
			default:
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				tempDelay = min(tempDelay, time.Second)
				log.Warnf("crpc.Server: Accept error on %s: %v; retrying in %v", srv.listener.Addr(), err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			log.Errorf("crpc.Server: accept error on %s: %v", srv.listener.Addr(), err)
			return err
		}

		tempDelay = 0
		log.Debugf("crpc.Server: accepted connection from %s", rw.RemoteAddr())
		go srv.serveConn(ctx, rw)
	}
}

func (srv *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Unblock the decoder when the server stops
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	decoder := cbor.NewDecoder(conn)
	encoder := cbor.NewEncoder(conn)

	for {
		req := &RequestHeader{}
		if err := decoder.Decode(req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Debugf("crpc.Server: connection %s closed", conn.RemoteAddr())
			} else {
				log.Errorf("crpc.Server: error decoding request header from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		svc, mtype, err := srv.lookup(req.Method)
		if err != nil {
			// Skip the body so the stream stays in sync
			var body cbor.RawMessage
			if derr := decoder.Decode(&body); derr != nil {
				log.Errorf("crpc.Server: error skipping body of %q from %s: %v", req.Method, conn.RemoteAddr(), derr)
				return
			}
			log.Warnf("crpc.Server: %v from %s", err, conn.RemoteAddr())
			if err := encoder.Encode(&ResponseHeader{Seq: req.Seq, Err: err.Error()}); err != nil {
				return
			}
			continue
		}

		var argv reflect.Value
		if mtype.ArgType.Kind() == reflect.Pointer {
			argv = reflect.New(mtype.ArgType.Elem())
		} else {
			argv = reflect.New(mtype.ArgType)
		}
		if err := decoder.Decode(argv.Interface()); err != nil {
			log.Errorf("crpc.Server: error decoding argument for %s from %s: %v", req.Method, conn.RemoteAddr(), err)
			return
		}
		if mtype.ArgType.Kind() != reflect.Pointer {
			argv = argv.Elem()
		}

		replyv := reflect.New(mtype.ReplyType.Elem())
		callErr := svc.call(mtype, argv, replyv)

		repl := &ResponseHeader{Seq: req.Seq}
		if callErr != nil {
			repl.Err = callErr.Error()
		}
		if err := encoder.Encode(repl); err != nil {
			log.Errorf("crpc.Server: error encoding response header for %s to %s: %v", req.Method, conn.RemoteAddr(), err)
			return
		}
		if callErr == nil {
			if err := encoder.Encode(replyv.Interface()); err != nil {
				log.Errorf("crpc.Server: error encoding response body for %s to %s: %v", req.Method, conn.RemoteAddr(), err)
				return
			}
		}
	}
}

func (svc *service) call(mtype *methodType, argv, replyv reflect.Value) (err error) {
	mtype.Lock()
	mtype.numCalls++
	mtype.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("crpc.Server: panic in %s.%s: %v", svc.name, mtype.method.Name, r)
			err = fmt.Errorf("crpc: internal server error in %s.%s", svc.name, mtype.method.Name)
		}
	}()

	returnValues := mtype.method.Func.Call([]reflect.Value{svc.rcvr, argv, replyv})
	if errInter := returnValues[0].Interface(); errInter != nil {
		return errInter.(error)
	}
	return nil
}

// Addr is the address the server listens on.
func (srv *Server) Addr() net.Addr {
	return srv.listener.Addr()
}
