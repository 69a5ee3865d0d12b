package irc

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/nettle-irc/nettle/internal/logger"
)

const (
	defaultQueueDepth = 64
	writeTimeout      = 30 * time.Second

	// Outbound anti-flood pacing, per connection. The burst covers the
	// registration sequence without throttling.
	messageRate  = rate.Limit(5)
	messageBurst = 20
)

type writeReq struct {
	conn   *Conn
	line   string
	join   bool
	forget bool
}

// WriteQueue is a bounded, ordered, multi-producer/single-consumer queue
// of outbound protocol lines. Push blocks when the queue is full: stalling
// a producer is preferable to unbounded growth during a stalled write.
type WriteQueue struct {
	ch chan writeReq
}

// NewWriteQueue creates a write queue. depth <= 0 selects the default.
func NewWriteQueue(depth int) *WriteQueue {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	return &WriteQueue{ch: make(chan writeReq, depth)}
}

// Push enqueues one line for the given connection, blocking when full.
// Lines for a single connection are written in Push order.
func (q *WriteQueue) Push(c *Conn, line string) {
	q.ch <- writeReq{conn: c, line: line}
}

// Join enqueues the terminal control message: the writer drains and
// discards everything still queued, then exits.
func (q *WriteQueue) Join() {
	q.ch <- writeReq{join: true}
}

// Forget releases the pacing state kept for a retired connection.
func (q *WriteQueue) Forget(c *Conn) {
	q.ch <- writeReq{conn: c, forget: true}
}

// Run is the single writer loop. It owns all socket writes in the process.
func (q *WriteQueue) Run() {
	limiters := make(map[*Conn]*rate.Limiter)
	for req := range q.ch {
		if req.join {
			q.drain()
			return
		}
		if req.forget {
			delete(limiters, req.conn)
			continue
		}

		lim, ok := limiters[req.conn]
		if !ok {
			lim = rate.NewLimiter(messageRate, messageBurst)
			limiters[req.conn] = lim
		}
		_ = lim.Wait(context.Background())

		sock := req.conn.socket()
		if sock == nil {
			logger.Log.Debug().Str("line", req.line).Msg("Dropped write to disconnected server")
			continue
		}
		sock.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := sock.Write([]byte(req.line + "\r\n")); err != nil {
			logger.Log.Warn().Err(err).Str("server", req.conn.Config.Addr()).Msg("Write failed")
			sock.Close()
			continue
		}
		logger.Log.Debug().Str("server", req.conn.Config.Addr()).Str("line", req.line).Msg("send")
	}
}

func (q *WriteQueue) drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
