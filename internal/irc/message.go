package irc

import (
	"errors"
	"strings"
	"time"
)

// ErrTruncatedMessage is returned when a line carries a tag block or a
// source prefix but ends before a command token.
var ErrTruncatedMessage = errors.New("irc: truncated message")

// ErrNotEnoughParams is returned by ParseParams when the message carries
// fewer parameters than requested.
var ErrNotEnoughParams = errors.New("irc: not enough parameters")

// Command identifies a wire command. Anything the client does not consume
// parses to CmdUnknown; unknown commands are never a parse failure.
type Command int

const (
	CmdUnknown Command = iota

	CmdAuthenticate
	CmdAway
	CmdBatch
	CmdBouncer
	CmdCap
	CmdChathistory
	CmdError
	CmdFail
	CmdJoin
	CmdKick
	CmdMarkread
	CmdMode
	CmdNames
	CmdNick
	CmdNotice
	CmdPart
	CmdPing
	CmdPong
	CmdPrivmsg
	CmdQuit
	CmdTagmsg
	CmdTopic
	CmdUser
	CmdWho

	RplWelcome         // 001
	RplYourHost        // 002
	RplCreated         // 003
	RplMyInfo          // 004
	RplISupport        // 005
	RplEndOfWho        // 315
	RplTopic           // 332
	RplWhoReply        // 352
	RplNamReply        // 353
	RplWhoSpecialReply // 354
	RplEndOfNames      // 366
	ErrNicknameInUse   // 433
	RplLoggedIn        // 900
	RplSaslSuccess     // 903
	ErrSaslFail        // 904
)

// commandWords is the two-way table between wire tokens and Command
// values; the reverse mapping is derived from it at init.
var commandWords = map[string]Command{
	"AUTHENTICATE": CmdAuthenticate,
	"AWAY":         CmdAway,
	"BATCH":        CmdBatch,
	"BOUNCER":      CmdBouncer,
	"CAP":          CmdCap,
	"CHATHISTORY":  CmdChathistory,
	"ERROR":        CmdError,
	"FAIL":         CmdFail,
	"JOIN":         CmdJoin,
	"KICK":         CmdKick,
	"MARKREAD":     CmdMarkread,
	"MODE":         CmdMode,
	"NAMES":        CmdNames,
	"NICK":         CmdNick,
	"NOTICE":       CmdNotice,
	"PART":         CmdPart,
	"PING":         CmdPing,
	"PONG":         CmdPong,
	"PRIVMSG":      CmdPrivmsg,
	"QUIT":         CmdQuit,
	"TAGMSG":       CmdTagmsg,
	"TOPIC":        CmdTopic,
	"USER":         CmdUser,
	"WHO":          CmdWho,

	"001": RplWelcome,
	"002": RplYourHost,
	"003": RplCreated,
	"004": RplMyInfo,
	"005": RplISupport,
	"315": RplEndOfWho,
	"332": RplTopic,
	"352": RplWhoReply,
	"353": RplNamReply,
	"354": RplWhoSpecialReply,
	"366": RplEndOfNames,
	"433": ErrNicknameInUse,
	"900": RplLoggedIn,
	"903": RplSaslSuccess,
	"904": ErrSaslFail,
}

var commandStrings = func() map[Command]string {
	m := make(map[Command]string, len(commandWords))
	for word, cmd := range commandWords {
		m[cmd] = word
	}
	return m
}()

// ParseCommand maps a wire token to its Command value.
func ParseCommand(word string) Command {
	if cmd, ok := commandWords[strings.ToUpper(word)]; ok {
		return cmd
	}
	return CmdUnknown
}

func (c Command) String() string {
	if s, ok := commandStrings[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// Prefix is the source of a message: nick[!user][@host].
type Prefix struct {
	Name string
	User string
	Host string
}

// ParsePrefix parses a message source. It never fails; missing parts are
// left empty.
func ParsePrefix(s string) *Prefix {
	p := &Prefix{}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		p.Host = s[i+1:]
		s = s[:i]
	}
	if i := strings.IndexByte(s, '!'); i >= 0 {
		p.User = s[i+1:]
		s = s[:i]
	}
	p.Name = s
	return p
}

func (p *Prefix) Copy() *Prefix {
	if p == nil {
		return nil
	}
	q := *p
	return &q
}

func (p *Prefix) String() string {
	var sb strings.Builder
	sb.WriteString(p.Name)
	if p.User != "" {
		sb.WriteByte('!')
		sb.WriteString(p.User)
	}
	if p.Host != "" {
		sb.WriteByte('@')
		sb.WriteString(p.Host)
	}
	return sb.String()
}

// Message is an immutable parsed view of one wire line. Tag, source and
// parameter blocks are kept raw and decoded on demand.
type Message struct {
	Raw     string
	Command Command
	Word    string // the command token as received

	tags     string // raw tag block, without the leading '@'
	source   string // raw source, without the leading ':'
	params   string // everything after the command token
	received time.Time
}

// ParseMessage parses a single line (without the trailing CRLF). received
// is the local arrival time, used when no server-time tag is present.
func ParseMessage(line string, received time.Time) (Message, error) {
	msg := Message{Raw: line, received: received}

	rest := line
	if strings.HasPrefix(rest, "@") {
		i := strings.IndexByte(rest, ' ')
		if i < 0 {
			return msg, ErrTruncatedMessage
		}
		msg.tags = rest[1:i]
		rest = rest[i+1:]
	}
	for strings.HasPrefix(rest, " ") {
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, ":") {
		i := strings.IndexByte(rest, ' ')
		if i < 0 {
			return msg, ErrTruncatedMessage
		}
		msg.source = rest[1:i]
		rest = rest[i+1:]
	}
	for strings.HasPrefix(rest, " ") {
		rest = rest[1:]
	}
	if rest == "" {
		return msg, ErrTruncatedMessage
	}
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		msg.Word = rest[:i]
		msg.params = rest[i+1:]
	} else {
		msg.Word = rest
	}
	msg.Command = ParseCommand(msg.Word)
	return msg, nil
}

// Source returns the parsed message source, or nil if absent.
func (m *Message) Source() *Prefix {
	if m.source == "" {
		return nil
	}
	return ParsePrefix(m.source)
}

// Time resolves the message timestamp: the server-time tag when present,
// converted to local time, else the arrival time.
func (m *Message) Time() time.Time {
	if v, ok := m.Tag("time"); ok {
		if t, ok := ParseTimestamp(v); ok {
			return t.Local()
		}
	}
	return m.received
}

// Params returns an iterator over the message parameters.
func (m *Message) Params() ParamIter {
	return ParamIter{rest: m.params}
}

// ParseParams fills each non-nil destination with the next parameter, in
// order. A nil destination skips a parameter.
func (m *Message) ParseParams(dests ...*string) error {
	it := m.Params()
	for _, dest := range dests {
		p, ok := it.Next()
		if !ok {
			return ErrNotEnoughParams
		}
		if dest != nil {
			*dest = p
		}
	}
	return nil
}

// ParamSlice collects all parameters eagerly. Handlers that need random
// access use this; everything else iterates.
func (m *Message) ParamSlice() []string {
	var params []string
	it := m.Params()
	for {
		p, ok := it.Next()
		if !ok {
			return params
		}
		params = append(params, p)
	}
}

// ParamIter yields message parameters on demand: space-delimited tokens,
// runs of spaces collapsed, and once a token starts with ':' the remainder
// of the line (possibly empty) is the final parameter.
type ParamIter struct {
	rest string
	done bool
}

func (it *ParamIter) Next() (string, bool) {
	if it.done {
		return "", false
	}
	for strings.HasPrefix(it.rest, " ") {
		it.rest = it.rest[1:]
	}
	if it.rest == "" {
		it.done = true
		return "", false
	}
	if it.rest[0] == ':' {
		it.done = true
		return it.rest[1:], true
	}
	if i := strings.IndexByte(it.rest, ' '); i >= 0 {
		param := it.rest[:i]
		it.rest = it.rest[i+1:]
		return param, true
	}
	param := it.rest
	it.rest = ""
	it.done = true
	return param, true
}

// Tag looks up a single message tag by key. The boolean reports presence;
// a bare key yields an empty value.
func (m *Message) Tag(key string) (string, bool) {
	it := m.Tags()
	for {
		k, v, ok := it.Next()
		if !ok {
			return "", false
		}
		if k == key {
			return v, true
		}
	}
}

// Tags returns an iterator over the message tags.
func (m *Message) Tags() TagIter {
	return TagIter{rest: m.tags}
}

// TagIter yields key/value tag pairs. The value delimiter search is bounded
// by the current tag's ';' terminator, so a bare key followed by valued tags
// parses correctly.
type TagIter struct {
	rest string
}

func (it *TagIter) Next() (key, value string, ok bool) {
	for it.rest != "" {
		var pair string
		if i := strings.IndexByte(it.rest, ';'); i >= 0 {
			pair = it.rest[:i]
			it.rest = it.rest[i+1:]
		} else {
			pair = it.rest
			it.rest = ""
		}
		if pair == "" {
			continue
		}
		if i := strings.IndexByte(pair, '='); i >= 0 {
			return pair[:i], unescapeTagValue(pair[i+1:]), true
		}
		return pair, "", true
	}
	return "", "", false
}

// parseTagPairs decodes a ';'-joined key=value list into a map. BOUNCER
// NETWORK attribute lists use the same encoding as message tags.
func parseTagPairs(s string) map[string]string {
	pairs := make(map[string]string)
	it := TagIter{rest: s}
	for {
		k, v, ok := it.Next()
		if !ok {
			return pairs
		}
		pairs[k] = v
	}
}

// ParseAttrs decodes a ';'-joined key=value attribute list.
func ParseAttrs(s string) map[string]string {
	return parseTagPairs(s)
}

func unescapeTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var sb strings.Builder
	sb.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' {
			sb.WriteByte(v[i])
			continue
		}
		i++
		if i == len(v) {
			break
		}
		switch v[i] {
		case ':':
			sb.WriteByte(';')
		case 's':
			sb.WriteByte(' ')
		case 'r':
			sb.WriteByte('\r')
		case 'n':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(v[i])
		}
	}
	return sb.String()
}

func escapeTagValue(v string) string {
	var sb strings.Builder
	sb.Grow(len(v))
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case ';':
			sb.WriteString(`\:`)
		case ' ':
			sb.WriteString(`\s`)
		case '\\':
			sb.WriteString(`\\`)
		case '\r':
			sb.WriteString(`\r`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteByte(v[i])
		}
	}
	return sb.String()
}

// ParseTimestamp parses a server-time tag value (RFC3339 with millisecond
// precision, UTC).
func ParseTimestamp(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02T15:04:05.000Z", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

// FormatTimestamp renders a CHATHISTORY/MARKREAD timestamp selector.
func FormatTimestamp(t time.Time) string {
	return "timestamp=" + t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Line is an outbound command under construction.
type Line struct {
	command string
	params  []string
	tags    map[string]string
}

// NewLine builds an outbound command from a command token and parameters.
// Only the last parameter may contain spaces or be empty.
func NewLine(command string, params ...string) Line {
	return Line{command: command, params: params}
}

// NewMessage builds an outbound command from a Command value.
func NewMessage(command Command, params ...string) Line {
	return NewLine(command.String(), params...)
}

// WithTag attaches a client tag to the outbound command.
func (l Line) WithTag(key, value string) Line {
	tags := make(map[string]string, len(l.tags)+1)
	for k, v := range l.tags {
		tags[k] = v
	}
	tags[key] = value
	l.tags = tags
	return l
}

// String renders the wire form, without the trailing CRLF.
func (l Line) String() string {
	var sb strings.Builder
	if len(l.tags) > 0 {
		sb.WriteByte('@')
		first := true
		for k, v := range l.tags {
			if !first {
				sb.WriteByte(';')
			}
			first = false
			sb.WriteString(k)
			if v != "" {
				sb.WriteByte('=')
				sb.WriteString(escapeTagValue(v))
			}
		}
		sb.WriteByte(' ')
	}
	sb.WriteString(l.command)
	for i, p := range l.params {
		sb.WriteByte(' ')
		if i == len(l.params)-1 && (p == "" || strings.HasPrefix(p, ":") || strings.ContainsRune(p, ' ')) {
			sb.WriteByte(':')
		}
		sb.WriteString(p)
	}
	return sb.String()
}
