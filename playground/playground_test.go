package playground

import (
	"bufio"
	"context"
	"io"
	"net"
	"sort"
	"testing"

	"go.viam.com/test"

	"go.viam.com/boarddemo/config"
	"go.viam.com/boarddemo/logging"
)

func TestPrint(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	test.That(t, Print(logger), test.ShouldResemble, []string{"foo", "bar"})
	test.That(t, logs.FilterMessage("More complex print").Len(), test.ShouldEqual, 1)
}

func TestAtomics(t *testing.T) {
	v1, v2 := Atomics(logging.NewTestLogger(t))
	test.That(t, v1, test.ShouldEqual, uint64(0))
	test.That(t, v2, test.ShouldEqual, uint64(1))
}

func TestThreads(t *testing.T) {
	seen, err := Threads(context.Background(), 5, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	sort.Ints(seen)
	test.That(t, seen, test.ShouldResemble, []int{0, 1, 2, 3, 4})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Threads(ctx, 3, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestWorkerScratch(t *testing.T) {
	w := &Worker{ID: 1}
	first := w.Scratch()
	test.That(t, first, test.ShouldNotBeNil)
	test.That(t, cap(w.Scratch()), test.ShouldEqual, cap(first))
}

// serveOnce accepts a single connection, checks the request line and replies.
func serveOnce(t *testing.T, reply string) string {
	t.Helper()
	listener, err := net.Listen("tcp", "localhost:0")
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil || line != "GET / HTTP/1.0\n" {
			return
		}
		io.WriteString(conn, reply)
	}()
	return listener.Addr().String()
}

func TestTCP(t *testing.T) {
	addr := serveOnce(t, "HTTP/1.0 200 OK\r\n\r\nhi")
	body, err := TCP(context.Background(), addr, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, body, test.ShouldEqual, "HTTP/1.0 200 OK\r\n\r\nhi")

	_, err = TCP(context.Background(), "127.0.0.1:1", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRun(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	test.That(t, Run(context.Background(), config.PlaygroundConfig{}, logger), test.ShouldBeNil)
	test.That(t, logs.Len(), test.ShouldEqual, 0)

	cfg := config.PlaygroundConfig{Enabled: true, Threads: 2, TCPTarget: "127.0.0.1:1"}
	test.That(t, Run(context.Background(), cfg, logger), test.ShouldBeNil)
	test.That(t, logs.FilterMessage("Joins were successful.").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("TCP demo failed").Len(), test.ShouldEqual, 1)
}
