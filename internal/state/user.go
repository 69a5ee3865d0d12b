package state

import "hash/fnv"

// palette is the fixed set of terminal color indexes assigned to nicks:
// the base 16 colors minus the grayscale entries.
var palette = []uint8{1, 2, 3, 4, 5, 6, 7, 9, 10, 11, 12, 13, 14}

// NickColor hashes a nick into the palette. The assignment is
// deterministic for a given nick.
func NickColor(nick string) uint8 {
	h := fnv.New32()
	_, _ = h.Write([]byte(nick))
	return palette[int(h.Sum32()%uint32(len(palette)))]
}

// User is a known user on one network. The same nick on two networks is
// two User instances.
type User struct {
	Nick     string
	Away     bool
	Realname string

	// Color is assigned from the nick at creation and kept through
	// renames, so a user keeps their color for the session.
	Color uint8
}

func newUser(nick string) *User {
	return &User{
		Nick:  nick,
		Color: NickColor(nick),
	}
}
