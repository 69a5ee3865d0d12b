package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelListStaysSorted(t *testing.T) {
	n := NewNetwork("self")
	for _, name := range []string{"#zeta", "#Alpha", "#mid", "&local"} {
		n.Channel(name)
	}

	var got []string
	for _, c := range n.Channels() {
		got = append(got, c.Name)
	}
	assert.Equal(t, []string{"#Alpha", "#mid", "#zeta", "&local"}, got)
}

func TestChannelLookupIsCaseFolded(t *testing.T) {
	n := NewNetwork("self")
	created := n.Channel("#Go[Lang]")

	found, ok := n.LookupChannel("#go{lang}")
	require.True(t, ok)
	assert.Same(t, created, found)

	// A second lookup with different casing must not create a duplicate.
	same := n.Channel("#GO[LANG]")
	assert.Same(t, created, same)
	assert.Len(t, n.Channels(), 1)
}

func TestRenameUserKeepsColor(t *testing.T) {
	n := NewNetwork("self")
	u := n.User("alice")
	color := u.Color

	renamed := n.RenameUser("alice", "alice_away")
	assert.Same(t, u, renamed)
	assert.Equal(t, "alice_away", u.Nick)
	assert.Equal(t, color, u.Color)

	_, ok := n.LookupUser("alice")
	assert.False(t, ok)
	_, ok = n.LookupUser("ALICE_AWAY")
	assert.True(t, ok)
}

func TestRenameSelfTracksNick(t *testing.T) {
	n := NewNetwork("self")
	n.User("self")
	n.RenameUser("self", "self2")
	assert.Equal(t, "self2", n.Nick)
	assert.True(t, n.IsSelf("SELF2"))
}

func TestApplyISupportPrefix(t *testing.T) {
	n := NewNetwork("self")
	n.ApplyISupport([]string{"PREFIX=(qaohv)~&@%+", "WHOX", "CHANTYPES=#"})

	assert.Equal(t, "qaohv", n.PrefixModes)
	assert.Equal(t, "~&@%+", n.PrefixSymbols)
	assert.True(t, n.WHOX)
}

func TestHighestPrefix(t *testing.T) {
	n := NewNetwork("self")
	n.ApplyISupport([]string{"PREFIX=(qaohv)~&@%+"})

	assert.Equal(t, byte('~'), n.HighestPrefix("@~+"))
	assert.Equal(t, byte('%'), n.HighestPrefix("+%"))
	assert.Equal(t, NoPrefix, n.HighestPrefix(""))
	assert.Equal(t, NoPrefix, n.HighestPrefix("HG"))
}

func TestParseNames(t *testing.T) {
	n := NewNetwork("self")
	n.ApplyISupport([]string{"PREFIX=(qaohv)~&@%+"})

	entries := n.ParseNames("@+alice bob ~carol")
	require.Len(t, entries, 3)
	assert.Equal(t, NameEntry{Nick: "alice", Prefix: '@'}, entries[0])
	assert.Equal(t, NameEntry{Nick: "bob", Prefix: NoPrefix}, entries[1])
	assert.Equal(t, NameEntry{Nick: "carol", Prefix: '~'}, entries[2])
}

func TestSynthesizeDM(t *testing.T) {
	n := NewNetwork("self")
	ch := n.Channel("alice")
	n.SynthesizeDM(ch, "alice")

	require.Len(t, ch.Members, 2)
	_, ok := ch.Member("alice")
	assert.True(t, ok)
	_, ok = ch.Member("self")
	assert.True(t, ok)
}

func TestIsChannel(t *testing.T) {
	n := NewNetwork("self")
	assert.True(t, n.IsChannel("#go"))
	assert.True(t, n.IsChannel("&local"))
	assert.False(t, n.IsChannel("alice"))
	assert.False(t, n.IsChannel(""))
}

func TestResetKeepsHistory(t *testing.T) {
	n := NewNetwork("self")
	n.EnableCap("sasl")
	ch := n.Channel("#go")
	ch.Record(Message{From: "alice", Body: "hi", Time: at(10)}, "", false)
	ch.HistoryRequested = true
	ch.WhoRequested = true
	n.OpenBatch("b1", "chathistory", "#go")

	n.Reset()

	assert.False(t, n.CapEnabled("sasl"))
	assert.False(t, ch.HistoryRequested)
	assert.False(t, ch.WhoRequested)
	_, ok := n.Batch("b1")
	assert.False(t, ok)
	assert.Len(t, ch.Messages, 1)
}
