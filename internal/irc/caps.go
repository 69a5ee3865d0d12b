package irc

import "strings"

// SupportedCaps is the ordered table of capability wire names this client
// requests during registration. Order matters only for reproducible
// CAP REQ sequences; membership is what the negotiation checks.
var SupportedCaps = []string{
	"away-notify",
	"batch",
	"cap-notify",
	"echo-message",
	"message-tags",
	"multi-prefix",
	"sasl",
	"server-time",
	"draft/chathistory",
	"draft/event-playback",
	"draft/read-marker",
	"soju.im/read",
	"soju.im/bouncer-networks",
	"soju.im/bouncer-networks-notify",
}

// IsSupportedCap reports whether the client knows how to use a capability.
func IsSupportedCap(name string) bool {
	for _, c := range SupportedCaps {
		if c == name {
			return true
		}
	}
	return false
}

// Cap is one entry of a CAP LS/ACK/NAK/NEW/DEL list.
type Cap struct {
	Name   string
	Value  string
	Enable bool // false when the server prefixed the name with '-'
}

// ParseCaps decodes a space-separated capability list. Entries may carry
// an =value suffix (LS 302) or a '-' prefix (ACK of a disable request).
func ParseCaps(caps string) []Cap {
	var list []Cap
	for _, entry := range strings.Fields(caps) {
		c := Cap{Enable: true}
		if strings.HasPrefix(entry, "-") {
			c.Enable = false
			entry = entry[1:]
		}
		if i := strings.IndexByte(entry, '='); i >= 0 {
			c.Name = entry[:i]
			c.Value = entry[i+1:]
		} else {
			c.Name = entry
		}
		if c.Name == "" {
			continue
		}
		list = append(list, c)
	}
	return list
}
