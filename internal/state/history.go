package state

import (
	"github.com/nettle-irc/nettle/internal/irc"
)

// BatchKind discriminates the server-side batch types the client consumes.
type BatchKind int

const (
	BatchChatHistory BatchKind = iota
	BatchTargets
	BatchOther
)

// Batch tracks one open server-side batch: its target channel and whether
// entries routed to it are history playback (as opposed to live traffic).
type Batch struct {
	Tag    string
	Kind   BatchKind
	Target string
	Count  int
}

// History request page sizes. Catching up after a reconnect uses a larger
// page because the offline duration is unknown.
const (
	historyPageSize    = "50"
	historyCatchUpSize = "500"
)

// HistoryDirection selects which end of the stored history to extend.
type HistoryDirection int

const (
	HistoryOlder HistoryDirection = iota // scrolling back
	HistoryNewer                         // catching up after reconnect
)

// OpenBatch registers a starting batch from `BATCH +tag <kind> [target]`.
func (n *Network) OpenBatch(tag, kind, target string) *Batch {
	b := &Batch{Tag: tag, Target: target}
	switch kind {
	case "chathistory":
		b.Kind = BatchChatHistory
	case "draft/chathistory-targets":
		b.Kind = BatchTargets
		n.targetsTag = tag
	default:
		b.Kind = BatchOther
	}
	n.batches[tag] = b
	return b
}

// Batch looks up an open batch by its server-assigned tag.
func (n *Network) Batch(tag string) (*Batch, bool) {
	b, ok := n.batches[tag]
	return b, ok
}

// CloseBatch removes a batch on `BATCH -tag`. For a history batch the
// target channel's in-flight flag clears, and an empty batch marks the
// channel as having reached its oldest history.
func (n *Network) CloseBatch(tag string) (*Batch, bool) {
	b, ok := n.batches[tag]
	if !ok {
		return nil, false
	}
	delete(n.batches, tag)
	if b.Kind == BatchTargets {
		n.targetsTag = ""
	}
	if b.Kind == BatchChatHistory {
		if c, ok := n.LookupChannel(b.Target); ok {
			c.HistoryRequested = false
			if b.Count == 0 {
				c.AtOldest = true
			}
		}
	}
	return b, true
}

// RouteBatched appends a history-batch message to the batch's target
// channel and re-sorts the whole history by timestamp: batched delivery is
// not guaranteed monotonic relative to already-buffered messages.
func (n *Network) RouteBatched(b *Batch, m Message) *Channel {
	b.Count++
	c := n.Channel(b.Target)
	c.Record(m, "", false)
	c.SortMessages()
	return c
}

// BuildHistoryRequest produces the CHATHISTORY parameters for extending a
// channel's history, or reports false when a request is already in flight
// (or the server lacks the extension). The in-flight flag is set as a
// side effect and clears when the reply batch closes.
func (n *Network) BuildHistoryRequest(c *Channel, dir HistoryDirection) ([]string, bool) {
	if c.HistoryRequested || !n.CapEnabled("draft/chathistory") {
		return nil, false
	}
	if dir == HistoryOlder && c.AtOldest {
		return nil, false
	}
	c.HistoryRequested = true
	if len(c.Messages) == 0 {
		return []string{"LATEST", c.Name, "*", historyPageSize}, true
	}
	if dir == HistoryOlder {
		oldest, _ := c.OldestTime()
		return []string{"BEFORE", c.Name, irc.FormatTimestamp(oldest), historyPageSize}, true
	}
	newest, _ := c.NewestTime()
	return []string{"AFTER", c.Name, irc.FormatTimestamp(newest), historyCatchUpSize}, true
}

// TargetsTag returns the tag of the open chathistory-targets batch, if any.
func (n *Network) TargetsTag() (string, bool) {
	return n.targetsTag, n.targetsTag != ""
}
