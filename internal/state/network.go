package state

import (
	"sort"
	"strings"

	"github.com/nettle-irc/nettle/internal/irc"
)

// Network is the per-connection registry of users, channels and batches.
// It performs no I/O and is mutated exclusively by the dispatcher
// goroutine, which is the only synchronization discipline it needs.
type Network struct {
	Nick       string
	Registered bool

	// ISUPPORT-derived features.
	WHOX          bool
	PrefixSymbols string // membership prefixes, highest priority first
	PrefixModes   string
	ChanTypes     string

	caps     map[string]struct{}
	channels []*Channel // sorted by casefolded name
	users    map[string]*User
	batches  map[string]*Batch

	// targetsTag is the open draft/chathistory-targets batch, if any.
	targetsTag string
}

// NewNetwork creates an empty registry for a connection using the given
// nick.
func NewNetwork(nick string) *Network {
	return &Network{
		Nick:          nick,
		PrefixSymbols: "@+",
		PrefixModes:   "ov",
		ChanTypes:     "#&",
		caps:          make(map[string]struct{}),
		users:         make(map[string]*User),
		batches:       make(map[string]*Batch),
	}
}

// Reset clears everything tied to a live registration. Channel history
// survives so a reconnect can catch up with CHATHISTORY AFTER without
// losing or duplicating messages.
func (n *Network) Reset() {
	n.Registered = false
	n.caps = make(map[string]struct{})
	n.batches = make(map[string]*Batch)
	n.targetsTag = ""
	for _, c := range n.channels {
		c.WhoRequested = false
		c.HistoryRequested = false
	}
}

// IsSelf reports whether a nick is the client's own, under IRC casefolding.
func (n *Network) IsSelf(nick string) bool {
	return irc.CaseFoldEq(nick, n.Nick)
}

// IsChannel reports whether a target names a channel rather than a user.
func (n *Network) IsChannel(target string) bool {
	return strings.IndexAny(target, n.ChanTypes) == 0
}

// EnableCap marks a capability as negotiated.
func (n *Network) EnableCap(name string) {
	n.caps[name] = struct{}{}
}

// DisableCap removes a negotiated capability.
func (n *Network) DisableCap(name string) {
	delete(n.caps, name)
}

// CapEnabled reports whether a capability was acknowledged by the server.
func (n *Network) CapEnabled(name string) bool {
	_, ok := n.caps[name]
	return ok
}

// User returns the registry entry for a nick, creating it lazily on first
// reference.
func (n *Network) User(nick string) *User {
	cf := irc.CaseFold(nick)
	if u, ok := n.users[cf]; ok {
		return u
	}
	u := newUser(nick)
	n.users[cf] = u
	return u
}

// LookupUser returns the registry entry for a nick without creating one.
func (n *Network) LookupUser(nick string) (*User, bool) {
	u, ok := n.users[irc.CaseFold(nick)]
	return u, ok
}

// RenameUser rekeys a user after a NICK change. The color assignment is
// kept; member lists containing the user are re-sorted.
func (n *Network) RenameUser(from, to string) *User {
	fromCf := irc.CaseFold(from)
	u, ok := n.users[fromCf]
	if !ok {
		u = newUser(from)
	}
	delete(n.users, fromCf)
	u.Nick = to
	n.users[irc.CaseFold(to)] = u
	for _, c := range n.channels {
		if _, ok := c.Member(to); ok {
			c.SortMembers()
		}
	}
	if n.IsSelf(from) {
		n.Nick = to
	}
	return u
}

// Channels returns the channel list, sorted by casefolded name.
func (n *Network) Channels() []*Channel {
	return n.channels
}

// LookupChannel finds a channel by IRC case-fold equality.
func (n *Network) LookupChannel(name string) (*Channel, bool) {
	i, ok := n.searchChannel(name)
	if !ok {
		return nil, false
	}
	return n.channels[i], true
}

// Channel finds or creates a channel. Creation inserts at the sorted
// position rather than appending.
func (n *Network) Channel(name string) *Channel {
	i, ok := n.searchChannel(name)
	if ok {
		return n.channels[i]
	}
	c := &Channel{Name: name}
	n.channels = append(n.channels, nil)
	copy(n.channels[i+1:], n.channels[i:])
	n.channels[i] = c
	return c
}

// RemoveChannel deletes a channel from the registry.
func (n *Network) RemoveChannel(name string) bool {
	i, ok := n.searchChannel(name)
	if !ok {
		return false
	}
	n.channels = append(n.channels[:i], n.channels[i+1:]...)
	return true
}

// searchChannel locates the sorted position of a name and whether a
// channel with that casefolded name already exists there.
func (n *Network) searchChannel(name string) (int, bool) {
	cf := irc.CaseFold(name)
	i := sort.Search(len(n.channels), func(i int) bool {
		return irc.CaseFold(n.channels[i].Name) >= cf
	})
	if i < len(n.channels) && irc.CaseFoldEq(n.channels[i].Name, name) {
		return i, true
	}
	return i, false
}

// SynthesizeDM fills a direct-message channel's member list with the peer
// and ourselves, without any network round trip.
func (n *Network) SynthesizeDM(c *Channel, peer string) {
	c.SetMember(n.User(peer), NoPrefix)
	c.SetMember(n.User(n.Nick), NoPrefix)
}

// ApplyISupport consumes RPL_ISUPPORT tokens, tracking the membership
// prefix set and WHOX support.
func (n *Network) ApplyISupport(tokens []string) {
	for _, tok := range tokens {
		key, value := tok, ""
		if i := strings.IndexByte(tok, '='); i >= 0 {
			key, value = tok[:i], tok[i+1:]
		}
		switch key {
		case "PREFIX":
			// PREFIX=(modes)symbols
			if i := strings.IndexByte(value, ')'); strings.HasPrefix(value, "(") && i >= 0 {
				n.PrefixModes = value[1:i]
				n.PrefixSymbols = value[i+1:]
			}
		case "WHOX":
			n.WHOX = true
		}
	}
}

// HighestPrefix reduces a run of membership prefixes to the single
// highest-priority one, per the ISUPPORT PREFIX ordering.
func (n *Network) HighestPrefix(prefixes string) byte {
	best := -1
	for i := 0; i < len(prefixes); i++ {
		p := strings.IndexByte(n.PrefixSymbols, prefixes[i])
		if p >= 0 && (best < 0 || p < best) {
			best = p
		}
	}
	if best < 0 {
		return NoPrefix
	}
	return n.PrefixSymbols[best]
}

// NameEntry is one parsed member of a NAMES reply.
type NameEntry struct {
	Nick   string
	Prefix byte
}

// ParseNames decodes a RPL_NAMREPLY member list, keeping only the highest
// membership prefix per member.
func (n *Network) ParseNames(names string) []NameEntry {
	var entries []NameEntry
	for _, word := range strings.Fields(names) {
		i := 0
		for i < len(word) && strings.IndexByte(n.PrefixSymbols, word[i]) >= 0 {
			i++
		}
		if i == len(word) {
			continue
		}
		entries = append(entries, NameEntry{
			Nick:   word[i:],
			Prefix: n.HighestPrefix(word[:i]),
		})
	}
	return entries
}
