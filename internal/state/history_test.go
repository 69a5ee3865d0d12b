package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettle-irc/nettle/internal/irc"
)

func TestBatchedHistoryInterleavesByTime(t *testing.T) {
	n := NewNetwork("self")
	ch := n.Channel("#go")
	ch.Record(Message{Body: "t1", Time: at(1)}, "", false)
	ch.Record(Message{Body: "t3", Time: at(3)}, "", false)

	b := n.OpenBatch("hist1", "chathistory", "#go")
	n.RouteBatched(b, Message{Body: "t2", Time: at(2)})
	n.RouteBatched(b, Message{Body: "t4", Time: at(4)})
	_, ok := n.CloseBatch("hist1")
	require.True(t, ok)

	var got []string
	for _, m := range ch.Messages {
		got = append(got, m.Body)
	}
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, got)
}

func TestHistoryRequestIsIdempotent(t *testing.T) {
	n := NewNetwork("self")
	n.EnableCap("draft/chathistory")
	ch := n.Channel("#go")

	args, ok := n.BuildHistoryRequest(ch, HistoryOlder)
	require.True(t, ok)
	assert.Equal(t, []string{"LATEST", "#go", "*", "50"}, args)

	// Second request before the reply batch closes: suppressed.
	_, ok = n.BuildHistoryRequest(ch, HistoryOlder)
	assert.False(t, ok)

	// The reply batch closing clears the in-flight guard.
	b := n.OpenBatch("hist1", "chathistory", "#go")
	n.RouteBatched(b, Message{Body: "hello", Time: at(5)})
	n.CloseBatch("hist1")

	args, ok = n.BuildHistoryRequest(ch, HistoryOlder)
	require.True(t, ok)
	assert.Equal(t, "BEFORE", args[0])
}

func TestHistoryRequestDirections(t *testing.T) {
	n := NewNetwork("self")
	n.EnableCap("draft/chathistory")
	ch := n.Channel("#go")
	ch.Record(Message{Body: "oldest", Time: at(10)}, "", false)
	ch.Record(Message{Body: "newest", Time: at(20)}, "", false)

	args, ok := n.BuildHistoryRequest(ch, HistoryOlder)
	require.True(t, ok)
	assert.Equal(t, []string{"BEFORE", "#go", irc.FormatTimestamp(at(10)), "50"}, args)
	ch.HistoryRequested = false

	args, ok = n.BuildHistoryRequest(ch, HistoryNewer)
	require.True(t, ok)
	assert.Equal(t, []string{"AFTER", "#go", irc.FormatTimestamp(at(20)), "500"}, args)
}

func TestHistoryRequestRequiresCapability(t *testing.T) {
	n := NewNetwork("self")
	ch := n.Channel("#go")
	_, ok := n.BuildHistoryRequest(ch, HistoryOlder)
	assert.False(t, ok)
	assert.False(t, ch.HistoryRequested)
}

func TestEmptyBatchMarksOldestReached(t *testing.T) {
	n := NewNetwork("self")
	n.EnableCap("draft/chathistory")
	ch := n.Channel("#go")
	ch.Record(Message{Body: "only", Time: at(10)}, "", false)

	_, ok := n.BuildHistoryRequest(ch, HistoryOlder)
	require.True(t, ok)
	n.OpenBatch("hist1", "chathistory", "#go")
	b, ok := n.CloseBatch("hist1")
	require.True(t, ok)
	assert.Equal(t, 0, b.Count)
	assert.True(t, ch.AtOldest)

	// No more BEFORE requests once the server reported the oldest page.
	_, ok = n.BuildHistoryRequest(ch, HistoryOlder)
	assert.False(t, ok)

	// Catching up forward still works.
	_, ok = n.BuildHistoryRequest(ch, HistoryNewer)
	assert.True(t, ok)
}

func TestCloseUnknownBatch(t *testing.T) {
	n := NewNetwork("self")
	_, ok := n.CloseBatch("no-such-tag")
	assert.False(t, ok)
}

func TestTargetsBatchTag(t *testing.T) {
	n := NewNetwork("self")
	_, ok := n.TargetsTag()
	assert.False(t, ok)

	n.OpenBatch("t1", "draft/chathistory-targets", "")
	tag, ok := n.TargetsTag()
	require.True(t, ok)
	assert.Equal(t, "t1", tag)

	n.CloseBatch("t1")
	_, ok = n.TargetsTag()
	assert.False(t, ok)
}

func TestBatchTimestampsRoundTrip(t *testing.T) {
	ts := time.Date(2025, 8, 1, 10, 0, 42, 0, time.UTC)
	sel := irc.FormatTimestamp(ts)
	assert.Equal(t, "timestamp=2025-08-01T10:00:42.000Z", sel)
}
