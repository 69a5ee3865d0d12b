package state

import (
	"sort"
	"strings"
	"time"

	"github.com/nettle-irc/nettle/internal/irc"
)

// NoPrefix marks a member without any membership prefix.
const NoPrefix = byte(' ')

// Message is one retained line of channel history.
type Message struct {
	From   string
	Body   string
	Time   time.Time
	Notice bool
}

// Member associates a user with their highest membership prefix in one
// channel.
type Member struct {
	User   *User
	Prefix byte
}

// Channel is a joined channel or a synthesized direct-message target.
type Channel struct {
	Name     string
	Topic    string
	Messages []Message
	Members  []Member

	WhoRequested       bool // a WHO/NAMES refresh is in flight
	HistoryRequested   bool // a CHATHISTORY request is in flight
	AtOldest           bool // the server has no history before Messages[0]
	LastRead           time.Time
	HasUnread          bool
	HasUnreadHighlight bool
}

// memberLess orders members with prefixed members first, then by
// casefolded nick.
func memberLess(a, b Member) bool {
	ap, bp := a.Prefix != NoPrefix, b.Prefix != NoPrefix
	if ap != bp {
		return ap
	}
	return irc.CaseFold(a.User.Nick) < irc.CaseFold(b.User.Nick)
}

// Member returns the membership entry for a nick, if present.
func (c *Channel) Member(nick string) (*Member, bool) {
	for i := range c.Members {
		if irc.CaseFoldEq(c.Members[i].User.Nick, nick) {
			return &c.Members[i], true
		}
	}
	return nil, false
}

// SetMember inserts or updates a membership entry, keeping the member
// list sorted.
func (c *Channel) SetMember(u *User, prefix byte) {
	if m, ok := c.Member(u.Nick); ok {
		m.Prefix = prefix
		c.SortMembers()
		return
	}
	m := Member{User: u, Prefix: prefix}
	i := sort.Search(len(c.Members), func(i int) bool {
		return memberLess(m, c.Members[i])
	})
	c.Members = append(c.Members, Member{})
	copy(c.Members[i+1:], c.Members[i:])
	c.Members[i] = m
}

// RemoveMember removes a nick from the member list.
func (c *Channel) RemoveMember(nick string) bool {
	for i := range c.Members {
		if irc.CaseFoldEq(c.Members[i].User.Nick, nick) {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			return true
		}
	}
	return false
}

// SortMembers restores member list order after a nick or prefix change.
func (c *Channel) SortMembers() {
	sort.SliceStable(c.Members, func(i, j int) bool {
		return memberLess(c.Members[i], c.Members[j])
	})
}

// Record appends a message and updates the unread accounting. A live
// message later than the read marker sets HasUnread, and additionally sets
// HasUnreadHighlight (reporting true) when its body contains the client's
// own nick. History playback is appended without any notification side
// effects.
func (c *Channel) Record(m Message, selfNick string, live bool) bool {
	c.Messages = append(c.Messages, m)
	if !live || !m.Time.After(c.LastRead) {
		return false
	}
	c.HasUnread = true
	if selfNick != "" && strings.Contains(m.Body, selfNick) {
		c.HasUnreadHighlight = true
		return true
	}
	return false
}

// MarkRead moves the read marker and recomputes HasUnread against the
// newest stored message.
func (c *Channel) MarkRead(t time.Time) {
	c.LastRead = t
	if newest, ok := c.NewestTime(); ok {
		c.HasUnread = newest.After(t)
	} else {
		c.HasUnread = false
	}
	if !c.HasUnread {
		c.HasUnreadHighlight = false
	}
}

// SortMessages re-sorts the history by timestamp. The sort is stable so
// equal timestamps keep arrival order.
func (c *Channel) SortMessages() {
	sort.SliceStable(c.Messages, func(i, j int) bool {
		return c.Messages[i].Time.Before(c.Messages[j].Time)
	})
}

// OldestTime returns the timestamp of the oldest stored message.
func (c *Channel) OldestTime() (time.Time, bool) {
	if len(c.Messages) == 0 {
		return time.Time{}, false
	}
	return c.Messages[0].Time, true
}

// NewestTime returns the timestamp of the newest stored message.
func (c *Channel) NewestTime() (time.Time, bool) {
	if len(c.Messages) == 0 {
		return time.Time{}, false
	}
	return c.Messages[len(c.Messages)-1].Time, true
}
