package irc

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConn returns a Conn whose socket is one end of an in-memory pipe,
// and a reader over the other end.
func pipeConn(t *testing.T, q *WriteQueue) (*Conn, *bufio.Reader) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	c := NewConn(Config{Server: "test"}, q, make(chan Event, 1))
	c.mu.Lock()
	c.sock = client
	c.mu.Unlock()
	return c, bufio.NewReader(server)
}

func TestWriterPreservesPushOrder(t *testing.T) {
	q := NewWriteQueue(16)
	c, r := pipeConn(t, q)

	done := make(chan struct{})
	go func() {
		q.Run()
		close(done)
	}()

	const count = 10
	for i := 0; i < count; i++ {
		q.Push(c, "PRIVMSG #chan :line "+strconv.Itoa(i))
	}

	for i := 0; i < count; i++ {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "PRIVMSG #chan :line "+strconv.Itoa(i)+"\r\n", line)
	}

	q.Join()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not exit after join")
	}
}

func TestJoinDiscardsQueuedWrites(t *testing.T) {
	q := NewWriteQueue(16)
	c := NewConn(Config{Server: "test"}, q, make(chan Event, 1))

	// Queue writes before the writer starts; the join sentinel must drain
	// whatever is still pending and stop the loop.
	q.Push(c, "QUIT")
	q.Push(c, "QUIT")
	q.Join()

	done := make(chan struct{})
	go func() {
		q.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not exit")
	}
}

func TestWriterDropsLinesWithoutSocket(t *testing.T) {
	q := NewWriteQueue(16)
	c := NewConn(Config{Server: "test"}, q, make(chan Event, 1))

	done := make(chan struct{})
	go func() {
		q.Run()
		close(done)
	}()

	q.Push(c, "PING :nobody-home")
	q.Forget(c)
	q.Join()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not exit")
	}
}
