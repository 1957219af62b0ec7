package crpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type EchoArgs struct {
	Text  string `cbor:"1,keyasint"`
	Delay time.Duration
}

type EchoReply struct {
	Text string `cbor:"1,keyasint"`
}

type Echo struct{}

func (e *Echo) Say(args *EchoArgs, reply *EchoReply) error {
	time.Sleep(args.Delay)
	reply.Text = args.Text
	return nil
}

func (e *Echo) Fail(args *EchoArgs, reply *EchoReply) error {
	return errors.New("failed: " + args.Text)
}

func (e *Echo) Panic(args *EchoArgs, reply *EchoReply) error {
	panic("boom")
}

// Not an RPC method
func (e *Echo) Helper() {}

func startServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(l)
	require.NoError(t, srv.Register(&Echo{}))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cli, err := Dial(ctx, "tcp", srv.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() {
		cli.Close()
		cancel()
		require.NoError(t, <-done)
	})
	return srv, cli
}

func TestCall(t *testing.T) {
	_, cli := startServer(t)

	reply := &EchoReply{}
	require.NoError(t, cli.Call(context.Background(), "Echo.Say", &EchoArgs{Text: "hello"}, reply))
	require.Equal(t, "hello", reply.Text)
}

func TestServerErrors(t *testing.T) {
	_, cli := startServer(t)
	ctx := context.Background()

	err := cli.Call(ctx, "Echo.Fail", &EchoArgs{Text: "x"}, &EchoReply{})
	require.Equal(t, ServerError("failed: x"), err)

	err = cli.Call(ctx, "Echo.Panic", &EchoArgs{}, &EchoReply{})
	var se ServerError
	require.ErrorAs(t, err, &se)

	err = cli.Call(ctx, "Echo.Missing", &EchoArgs{}, &EchoReply{})
	require.ErrorAs(t, err, &se)
	err = cli.Call(ctx, "Nope.Say", &EchoArgs{}, &EchoReply{})
	require.ErrorAs(t, err, &se)

	// The connection survives all of the above
	reply := &EchoReply{}
	require.NoError(t, cli.Call(ctx, "Echo.Say", &EchoArgs{Text: "still here"}, reply))
	require.Equal(t, "still here", reply.Text)
}

func TestConcurrentCalls(t *testing.T) {
	_, cli := startServer(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := string(rune('a' + i))
			reply := &EchoReply{}
			if err := cli.Call(context.Background(), "Echo.Say", &EchoArgs{Text: text}, reply); err != nil {
				errs <- err
				return
			}
			if reply.Text != text {
				errs <- errors.New("mismatched reply " + reply.Text + " for " + text)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestCallContextCancelled(t *testing.T) {
	_, cli := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := cli.Call(ctx, "Echo.Say", &EchoArgs{Text: "slow", Delay: 200 * time.Millisecond}, &EchoReply{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The late reply is discarded and the client keeps working
	reply := &EchoReply{}
	require.NoError(t, cli.Call(context.Background(), "Echo.Say", &EchoArgs{Text: "next"}, reply))
	require.Equal(t, "next", reply.Text)
}

func TestClosedClient(t *testing.T) {
	_, cli := startServer(t)
	require.NoError(t, cli.Close())
	require.ErrorIs(t, cli.Close(), ErrShutdown)

	err := cli.Call(context.Background(), "Echo.Say", &EchoArgs{}, &EchoReply{})
	require.ErrorIs(t, err, ErrShutdown)
}

func TestRegisterRejects(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := NewServer(l)
	require.NoError(t, srv.Register(&Echo{}))
	require.Error(t, srv.Register(&Echo{}))

	type hidden struct{}
	require.Error(t, srv.Register(&hidden{}))
}
