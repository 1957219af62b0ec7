package crpc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/fxamacker/cbor/v2"

	log "github.com/sirupsen/logrus"
)

// ServerError is an error string returned by the remote method.
type ServerError string

func (e ServerError) Error() string {
	return string(e)
}

var ErrShutdown = errors.New("connection is shut down")

// Call represents an active RPC.
type Call struct {
	ServiceMethod string     // The name of the service and method to call.
	Args          any        // The argument to the function (*struct).
	Reply         any        // The reply from the function (*struct).
	Error         error      // After completion, the error status.
	Done          chan *Call // Receives *Call when Go is complete.
}

type Client struct {
	conn io.ReadWriteCloser

	sending sync.Mutex // serializes request frames
	encoder *cbor.Encoder

	mutex    sync.Mutex // protects following fields
	seq      uint64
	pending  map[uint64]*Call
	closing  bool // user has called Close
	shutdown bool // server has told us to stop
}

func NewClient(conn io.ReadWriteCloser) *Client {
	client := &Client{
		conn:    conn,
		encoder: cbor.NewEncoder(conn),
		seq:     1,
		pending: make(map[uint64]*Call),
	}
	go client.input()
	return client
}

// Dial connects to an RPC server at the specified network address.
func Dial(ctx context.Context, network, address string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

func (call *Call) done() {
	select {
	case call.Done <- call:
	default:
		// Done must be buffered, see Go()
		log.Debugf("crpc.Client: discarding reply for %s due to insufficient Done chan capacity", call.ServiceMethod)
	}
}

func (client *Client) send(call *Call) uint64 {
	client.mutex.Lock()
	if client.closing || client.shutdown {
		client.mutex.Unlock()
		call.Error = ErrShutdown
		call.done()
		return 0
	}
	seq := client.seq
	client.seq++
	client.pending[seq] = call
	client.mutex.Unlock()

	client.sending.Lock()
	err := client.encoder.Encode(&RequestHeader{Seq: seq, Method: call.ServiceMethod})
	if err == nil {
		err = client.encoder.Encode(call.Args)
	}
	client.sending.Unlock()

	if err != nil {
		if c := client.forget(seq); c != nil {
			c.Error = err
			c.done()
		}
	}
	return seq
}

// forget removes a pending call and returns it, or nil if it already completed
func (client *Client) forget(seq uint64) *Call {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	call := client.pending[seq]
	delete(client.pending, seq)
	return call
}

func (client *Client) input() {
	var err error

	decoder := cbor.NewDecoder(client.conn)
	for err == nil {
		response := ResponseHeader{}
		if err = decoder.Decode(&response); err != nil {
			break
		}

		call := client.forget(response.Seq)

		switch {
		case call == nil:
			// The call was abandoned (send failure or cancelled context); drain its body
			if response.Err == "" {
				var body cbor.RawMessage
				err = decoder.Decode(&body)
			}
			log.Debugf("crpc.Client: discarded reply for sequence %d", response.Seq)

		case response.Err != "":
			call.Error = ServerError(response.Err)
			call.done()

		default:
			if derr := decoder.Decode(call.Reply); derr != nil {
				call.Error = derr
				err = derr
			}
			call.done()
		}
	}

	// Terminate pending calls
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.shutdown = true
	shutdownErr := err
	if client.closing || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		shutdownErr = ErrShutdown
		log.Debugf("crpc.Client: connection closed")
	} else {
		log.Warnf("crpc.Client: input loop error: %v", err)
	}

	for _, call := range client.pending {
		call.Error = shutdownErr
		call.done()
	}
	client.pending = make(map[uint64]*Call)
}

// Go invokes the function asynchronously. The done channel will signal when the call is complete.
// If done is nil, Go will allocate a new channel; if non-nil, done must be buffered.
func (client *Client) Go(serviceMethod string, args any, reply any, done chan *Call) *Call {
	call, _ := client.start(serviceMethod, args, reply, done)
	return call
}

func (client *Client) start(serviceMethod string, args any, reply any, done chan *Call) (*Call, uint64) {
	if done == nil {
		done = make(chan *Call, 1)
	} else if cap(done) == 0 {
		log.Panic("crpc.Client: done channel is unbuffered")
	}
	call := &Call{
		ServiceMethod: serviceMethod,
		Args:          args,
		Reply:         reply,
		Done:          done,
	}
	return call, client.send(call)
}

// Call invokes the named function and waits for it to complete or for ctx to be done.
func (client *Client) Call(ctx context.Context, serviceMethod string, args any, reply any) error {
	call, seq := client.start(serviceMethod, args, reply, make(chan *Call, 1))
	select {
	case <-ctx.Done():
		client.forget(seq)
		return ctx.Err()
	case resp := <-call.Done:
		return resp.Error
	}
}

// Close closes the connection. Pending calls fail with ErrShutdown.
func (client *Client) Close() error {
	client.mutex.Lock()
	if client.closing {
		client.mutex.Unlock()
		return ErrShutdown
	}
	client.closing = true
	client.mutex.Unlock()
	return client.conn.Close()
}
