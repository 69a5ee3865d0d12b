package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/nettle-irc/nettle/internal/config"
	"github.com/nettle-irc/nettle/internal/events"
	"github.com/nettle-irc/nettle/internal/irc"
	"github.com/nettle-irc/nettle/internal/logger"
	"github.com/nettle-irc/nettle/internal/state"
)

// targetsWindow is how far back the initial CHATHISTORY TARGETS discovery
// looks for bouncer-known conversations.
const targetsWindow = 7 * 24 * time.Hour

const targetsLimit = "50"

// CommandFunc is one UI/scripting command. Commands run on the dispatcher
// goroutine and may therefore touch connection state freely.
type CommandFunc func(a *App, c *irc.Conn, n *state.Network, args []string) error

// DefaultCommands is the built-in command table. Callers may extend the
// returned map before passing it to NewApp; the table is owned by the App
// after that.
func DefaultCommands() map[string]CommandFunc {
	return map[string]CommandFunc{
		"join":     cmdJoin,
		"part":     cmdPart,
		"msg":      cmdMsg,
		"notice":   cmdNotice,
		"markread": cmdMarkRead,
		"history":  cmdHistory,
		"raw":      cmdRaw,
	}
}

// App is the dispatcher: the single goroutine that owns every Network,
// Channel, User and Batch in the process. Read loops deliver parsed events
// into inbound; the UI surface delivers closures into actions; nothing else
// ever touches the model.
type App struct {
	cfg      config.Config
	bus      *events.EventBus
	commands map[string]CommandFunc

	queue   *irc.WriteQueue
	inbound chan irc.Event
	actions chan func()

	networks map[*irc.Conn]*state.Network
	auths    map[*irc.Conn]irc.SASL
	home     *irc.Conn

	quitting  bool
	connsDone chan struct{}
}

// NewApp wires the dispatcher. The command table is injected rather than
// registered globally so embedders can extend it per instance.
func NewApp(cfg config.Config, bus *events.EventBus, commands map[string]CommandFunc) *App {
	if commands == nil {
		commands = DefaultCommands()
	}
	return &App{
		cfg:       cfg,
		bus:       bus,
		commands:  commands,
		queue:     irc.NewWriteQueue(0),
		inbound:   make(chan irc.Event, 64),
		actions:   make(chan func(), 16),
		networks:  make(map[*irc.Conn]*state.Network),
		auths:     make(map[*irc.Conn]irc.SASL),
		connsDone: make(chan struct{}),
	}
}

// Run starts the writer and the home connection, then processes events
// until Stop completes. It must be called exactly once.
func (a *App) Run() {
	go a.queue.Run()

	host, port := a.cfg.HostPort()
	a.home = a.spawn(irc.Config{
		Server:        host,
		Port:          port,
		TLS:           a.cfg.TLS,
		User:          a.cfg.User,
		Nick:          a.cfg.Nick,
		Password:      a.cfg.Password,
		RealName:      a.cfg.Real,
		SASLMechanism: a.cfg.SASLMechanism,
	})

	for {
		select {
		case ev := <-a.inbound:
			a.handleEvent(ev)
		case f := <-a.actions:
			f()
		case <-a.connsDone:
			a.queue.Join()
			return
		}
	}
}

// Stop closes every connection and, once all read loops have exited,
// pushes the writer's join sentinel so Run returns. Safe to call from any
// goroutine.
func (a *App) Stop() {
	a.actions <- func() {
		if a.quitting {
			return
		}
		a.quitting = true
		conns := make([]*irc.Conn, 0, len(a.networks))
		for c := range a.networks {
			c.Close()
			conns = append(conns, c)
		}
		go func() {
			for _, c := range conns {
				<-c.Stopped()
			}
			close(a.connsDone)
		}()
	}
}

// Do runs f on the dispatcher goroutine. This is the only safe way for
// outside goroutines to inspect or mutate connection state.
func (a *App) Do(f func()) {
	a.actions <- f
}

// Connect spawns an additional connection with the given configuration.
func (a *App) Connect(cfg irc.Config) {
	a.actions <- func() {
		if a.quitting {
			return
		}
		a.spawn(cfg)
	}
}

// Execute runs a named command against a network ("" selects the home
// connection). Unknown commands and command failures surface as error
// events rather than return values, since execution is asynchronous.
func (a *App) Execute(network, name string, args ...string) {
	a.actions <- func() {
		c := a.connByName(network)
		if c == nil {
			a.emitError(fmt.Sprintf("no such network %q", network))
			return
		}
		cmd, ok := a.commands[name]
		if !ok {
			a.emitError(fmt.Sprintf("unknown command %q", name))
			return
		}
		if err := cmd(a, c, a.networks[c], args); err != nil {
			a.emitError(fmt.Sprintf("%s: %v", name, err))
		}
	}
}

// SendRaw pushes one raw protocol line to a network's write queue.
func (a *App) SendRaw(network, line string) {
	a.actions <- func() {
		if c := a.connByName(network); c != nil {
			c.SendRaw(line)
		}
	}
}

func (a *App) spawn(cfg irc.Config) *irc.Conn {
	c := irc.NewConn(cfg, a.queue, a.inbound)
	a.networks[c] = state.NewNetwork(cfg.Nick)
	go c.Run()
	logger.Log.Info().Str("server", cfg.Addr()).Str("network", cfg.Name).Msg("Connecting")
	return c
}

func (a *App) connByName(name string) *irc.Conn {
	if name == "" {
		return a.home
	}
	for c := range a.networks {
		if c.Config.Name == name || c.Config.NetID == name {
			return c
		}
	}
	return nil
}

func (a *App) connByNetID(id string) *irc.Conn {
	for c := range a.networks {
		if c.Config.NetID == id {
			return c
		}
	}
	return nil
}

// retire removes a closed connection from the dispatcher's tables and
// releases its writer pacing state.
func (a *App) retire(c *irc.Conn) {
	c.Close()
	a.queue.Forget(c)
	delete(a.networks, c)
	delete(a.auths, c)
}

func (a *App) handleEvent(ev irc.Event) {
	n, ok := a.networks[ev.Conn]
	if !ok {
		// Event from a retired connection still draining.
		return
	}
	switch ev.Kind {
	case irc.EventConnected:
		n.Reset()
		a.emitState(ev.Conn)
	case irc.EventDisconnected:
		n.Reset()
		delete(a.auths, ev.Conn)
		a.emitState(ev.Conn)
	case irc.EventMessage:
		a.handleMessage(ev.Conn, n, &ev.Msg)
	}
}

// handleMessage applies protocol semantics for one inbound line. Batch
// routing runs first: anything tagged with an open batch belongs to that
// batch, not to the live handlers below.
func (a *App) handleMessage(c *irc.Conn, n *state.Network, msg *irc.Message) {
	if tag, ok := msg.Tag("batch"); ok {
		if b, ok := n.Batch(tag); ok && a.handleBatched(c, n, b, msg) {
			return
		}
	}

	switch msg.Command {
	case irc.CmdPing:
		var token string
		if err := msg.ParseParams(&token); err == nil {
			c.Send(irc.CmdPong, token)
		}

	case irc.CmdCap:
		a.handleCap(c, n, msg)

	case irc.CmdAuthenticate:
		a.handleAuthenticate(c, n, msg)

	case irc.RplLoggedIn:
		args := msg.ParamSlice()
		if len(args) >= 3 {
			logger.Log.Info().Str("server", c.Config.Addr()).Str("account", args[2]).Msg("Logged in")
		}

	case irc.RplSaslSuccess:
		delete(a.auths, c)
		if c.Config.NetID != "" {
			c.Send(irc.CmdBouncer, "BIND", c.Config.NetID)
		}
		c.Send(irc.CmdCap, "END")

	case irc.ErrSaslFail:
		logger.Log.Error().Str("server", c.Config.Addr()).Msg("SASL authentication failed")
		a.emitError("authentication failed")
		delete(a.auths, c)
		c.Send(irc.CmdCap, "END")

	case irc.ErrNicknameInUse:
		if !n.Registered {
			n.Nick += "_"
			c.Send(irc.CmdNick, n.Nick)
		}

	case irc.RplWelcome:
		a.handleWelcome(c, n, msg)

	case irc.RplISupport:
		args := msg.ParamSlice()
		if len(args) > 2 {
			n.ApplyISupport(args[1 : len(args)-1])
		}

	case irc.CmdBatch:
		a.handleBatch(c, n, msg)

	case irc.CmdChathistory:
		args := msg.ParamSlice()
		if len(args) >= 2 && args[0] == "TARGETS" {
			a.discoverTarget(c, n, args[1])
		}

	case irc.CmdJoin:
		a.handleJoin(c, n, msg)

	case irc.CmdPart:
		a.handlePart(c, n, msg)

	case irc.CmdKick:
		var channel, nick string
		if err := msg.ParseParams(&channel, &nick); err != nil {
			return
		}
		if n.IsSelf(nick) {
			n.RemoveChannel(channel)
			a.emit(events.EventChannelListChanged, a.netData(c))
		} else if ch, ok := n.LookupChannel(channel); ok {
			ch.RemoveMember(nick)
			a.emitMembers(c, ch)
		}

	case irc.CmdQuit:
		src := msg.Source()
		if src == nil {
			return
		}
		for _, ch := range n.Channels() {
			if ch.RemoveMember(src.Name) {
				a.emitMembers(c, ch)
			}
		}

	case irc.CmdNick:
		src := msg.Source()
		var to string
		if src == nil || msg.ParseParams(&to) != nil {
			return
		}
		n.RenameUser(src.Name, to)
		a.emit(events.EventMemberListChanged, a.netData(c))

	case irc.CmdAway:
		src := msg.Source()
		if src == nil {
			return
		}
		it := msg.Params()
		reason, ok := it.Next()
		n.User(src.Name).Away = ok && reason != ""

	case irc.CmdPrivmsg, irc.CmdNotice:
		a.handleChat(c, n, msg)

	case irc.CmdMarkread:
		a.handleMarkRead(c, n, msg)

	case irc.CmdBouncer:
		a.handleBouncer(c, n, msg)

	case irc.RplTopic:
		var channel, topic string
		if err := msg.ParseParams(nil, &channel, &topic); err != nil {
			return
		}
		a.setTopic(c, n, channel, topic)

	case irc.CmdTopic:
		var channel, topic string
		if err := msg.ParseParams(&channel, &topic); err != nil {
			return
		}
		a.setTopic(c, n, channel, topic)

	case irc.RplWhoReply:
		args := msg.ParamSlice()
		if len(args) < 7 {
			return
		}
		a.applyWhoReply(c, n, args[1], args[5], args[6])

	case irc.RplWhoSpecialReply:
		args := msg.ParamSlice()
		if len(args) < 4 {
			return
		}
		a.applyWhoReply(c, n, args[1], args[2], args[3])

	case irc.RplEndOfWho:
		var mask string
		if err := msg.ParseParams(nil, &mask); err != nil {
			return
		}
		if ch, ok := n.LookupChannel(mask); ok {
			ch.WhoRequested = false
			a.emitMembers(c, ch)
		}

	case irc.RplNamReply:
		args := msg.ParamSlice()
		if len(args) < 4 {
			return
		}
		if ch, ok := n.LookupChannel(args[2]); ok {
			for _, e := range n.ParseNames(args[3]) {
				ch.SetMember(n.User(e.Nick), e.Prefix)
			}
		}

	case irc.RplEndOfNames:
		var channel string
		if err := msg.ParseParams(nil, &channel); err != nil {
			return
		}
		if ch, ok := n.LookupChannel(channel); ok {
			ch.WhoRequested = false
			a.emitMembers(c, ch)
		}

	case irc.CmdError:
		args := msg.ParamSlice()
		logger.Log.Warn().Str("server", c.Config.Addr()).Strs("params", args).Msg("Server error")

	case irc.CmdFail:
		args := msg.ParamSlice()
		logger.Log.Warn().Str("server", c.Config.Addr()).Strs("params", args).Msg("Command failed")
		a.emitError(strings.Join(args, " "))

	case irc.RplYourHost, irc.RplCreated, irc.RplMyInfo, irc.CmdPong, irc.CmdMode, irc.CmdTagmsg:
		// Consumed for completeness, nothing to track.

	default:
		logger.Log.Debug().Str("command", msg.Word).Msg("Ignored command")
	}
}

// handleBatched routes one line belonging to an open batch. It reports
// false when the line should instead fall through to live handling
// (batches we do not model, like netsplit envelopes).
func (a *App) handleBatched(c *irc.Conn, n *state.Network, b *state.Batch, msg *irc.Message) bool {
	switch b.Kind {
	case state.BatchChatHistory:
		if msg.Command != irc.CmdPrivmsg && msg.Command != irc.CmdNotice {
			// event-playback can replay JOIN/PART etc inside history;
			// only chat lines are retained.
			return true
		}
		src := msg.Source()
		var target, body string
		if src == nil || msg.ParseParams(&target, &body) != nil {
			return true
		}
		ch := n.RouteBatched(b, state.Message{
			From:   src.Name,
			Body:   body,
			Time:   msg.Time(),
			Notice: msg.Command == irc.CmdNotice,
		})
		if !n.IsChannel(ch.Name) && len(ch.Members) == 0 {
			n.SynthesizeDM(ch, ch.Name)
		}
		return true
	case state.BatchTargets:
		args := msg.ParamSlice()
		if msg.Command == irc.CmdChathistory && len(args) >= 2 && args[0] == "TARGETS" {
			a.discoverTarget(c, n, args[1])
		}
		return true
	}
	return false
}

func (a *App) handleCap(c *irc.Conn, n *state.Network, msg *irc.Message) {
	args := msg.ParamSlice()
	if len(args) < 3 {
		return
	}
	sub, caps := args[1], args[len(args)-1]
	switch sub {
	case "LS":
		// Everything supported was already requested in the registration
		// burst; ACK/NAK decides.
	case "ACK":
		for _, cp := range irc.ParseCaps(caps) {
			if !cp.Enable {
				n.DisableCap(cp.Name)
				continue
			}
			n.EnableCap(cp.Name)
			if cp.Name == "sasl" && c.Config.Password != "" {
				a.beginSASL(c)
			}
		}
	case "NAK":
		logger.Log.Debug().Str("server", c.Config.Addr()).Str("caps", caps).Msg("Capabilities refused")
		if strings.Contains(" "+caps+" ", " sasl ") && c.Config.Password != "" && !n.Registered {
			c.Send(irc.CmdCap, "END")
		}
	case "NEW":
		for _, cp := range irc.ParseCaps(caps) {
			if irc.IsSupportedCap(cp.Name) {
				c.Send(irc.CmdCap, "REQ", cp.Name)
			}
		}
	case "DEL":
		for _, cp := range irc.ParseCaps(caps) {
			n.DisableCap(cp.Name)
		}
	}
}

func (a *App) beginSASL(c *irc.Conn) {
	auth, err := irc.NewSASL(c.Config.SASLMechanism, c.Config.User, c.Config.Password)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Cannot authenticate")
		c.Send(irc.CmdCap, "END")
		return
	}
	a.auths[c] = auth
	c.SetState(irc.StateAuthenticating)
	a.emitState(c)
	c.Send(irc.CmdAuthenticate, auth.Mechanism())
}

func (a *App) handleAuthenticate(c *irc.Conn, n *state.Network, msg *irc.Message) {
	auth, ok := a.auths[c]
	if !ok {
		return
	}
	var challenge string
	if msg.ParseParams(&challenge) != nil {
		return
	}
	if auth.Completed() {
		logger.Log.Warn().Str("server", c.Config.Addr()).Msg("Challenge after SASL completion, aborting")
		a.abortSASL(c)
		return
	}
	resp, err := auth.Respond(challenge)
	if err != nil {
		logger.Log.Error().Err(err).Str("server", c.Config.Addr()).Msg("SASL exchange failed")
		a.abortSASL(c)
		return
	}
	// AUTHENTICATE payloads are chunked at 400 bytes; a full chunk is
	// followed by a continuation.
	for len(resp) > 400 {
		c.Send(irc.CmdAuthenticate, resp[:400])
		resp = resp[400:]
	}
	c.Send(irc.CmdAuthenticate, resp)
}

func (a *App) abortSASL(c *irc.Conn) {
	delete(a.auths, c)
	c.Send(irc.CmdAuthenticate, "*")
	c.Send(irc.CmdCap, "END")
}

func (a *App) handleWelcome(c *irc.Conn, n *state.Network, msg *irc.Message) {
	var nick string
	if err := msg.ParseParams(&nick); err == nil {
		n.Nick = nick
	}
	n.Registered = true
	c.SetState(irc.StateRegistered)

	if n.CapEnabled("draft/chathistory") {
		c.SetState(irc.StateSyncing)
		now := time.Now()
		c.Send(irc.CmdChathistory, "TARGETS",
			irc.FormatTimestamp(now.Add(-targetsWindow)),
			irc.FormatTimestamp(now),
			targetsLimit)
		// Channels surviving from before the reconnect catch up from
		// their newest buffered message.
		for _, ch := range n.Channels() {
			if hargs, ok := n.BuildHistoryRequest(ch, state.HistoryNewer); ok {
				c.Send(irc.CmdChathistory, hargs...)
			}
		}
	} else {
		c.SetState(irc.StateReady)
	}
	a.emitState(c)

	if c == a.home && c.Config.NetID == "" {
		for _, name := range a.cfg.Channels {
			c.Send(irc.CmdJoin, name)
		}
	}
}

func (a *App) handleBatch(c *irc.Conn, n *state.Network, msg *irc.Message) {
	args := msg.ParamSlice()
	if len(args) == 0 || len(args[0]) < 2 {
		return
	}
	ref := args[0]
	switch ref[0] {
	case '+':
		if len(args) < 2 {
			return
		}
		target := ""
		if len(args) > 2 {
			target = args[2]
		}
		n.OpenBatch(ref[1:], args[1], target)
	case '-':
		b, ok := n.CloseBatch(ref[1:])
		if !ok {
			logger.Log.Warn().Str("tag", ref[1:]).Msg("Close of unknown batch")
			return
		}
		switch b.Kind {
		case state.BatchChatHistory:
			data := a.netData(c)
			data["channel"] = b.Target
			data["count"] = b.Count
			a.emit(events.EventHistorySynchronized, data)
		case state.BatchTargets:
			if c.State() == irc.StateSyncing {
				c.SetState(irc.StateReady)
				a.emitState(c)
			}
		}
	}
}

// discoverTarget creates a buffer for a conversation reported by
// CHATHISTORY TARGETS and pulls its most recent page.
func (a *App) discoverTarget(c *irc.Conn, n *state.Network, target string) {
	ch, existed := n.LookupChannel(target)
	if !existed {
		ch = n.Channel(target)
		if !n.IsChannel(target) {
			n.SynthesizeDM(ch, target)
		}
		a.emit(events.EventChannelListChanged, a.netData(c))
	}
	if hargs, ok := n.BuildHistoryRequest(ch, state.HistoryNewer); ok {
		c.Send(irc.CmdChathistory, hargs...)
	}
}

func (a *App) handleJoin(c *irc.Conn, n *state.Network, msg *irc.Message) {
	src := msg.Source()
	var target string
	if src == nil || msg.ParseParams(&target) != nil {
		return
	}
	if !n.IsSelf(src.Name) {
		if ch, ok := n.LookupChannel(target); ok {
			ch.SetMember(n.User(src.Name), state.NoPrefix)
			a.emitMembers(c, ch)
		}
		return
	}
	ch := n.Channel(target)
	a.emit(events.EventChannelListChanged, a.netData(c))
	if hargs, ok := n.BuildHistoryRequest(ch, state.HistoryNewer); ok {
		c.Send(irc.CmdChathistory, hargs...)
	}
	a.refreshMembers(c, n, ch)
}

// refreshMembers fills a channel's member list. Direct messages are
// synthesized locally; real channels use WHOX only when per-member away
// tracking can stay current, since WHOX replies are costly on big
// channels.
func (a *App) refreshMembers(c *irc.Conn, n *state.Network, ch *state.Channel) {
	if !n.IsChannel(ch.Name) {
		n.SynthesizeDM(ch, ch.Name)
		a.emitMembers(c, ch)
		return
	}
	if ch.WhoRequested {
		return
	}
	ch.WhoRequested = true
	if n.WHOX && n.CapEnabled("away-notify") {
		c.Send(irc.CmdWho, ch.Name, "%cnf")
	} else {
		c.Send(irc.CmdNames, ch.Name)
	}
}

func (a *App) applyWhoReply(c *irc.Conn, n *state.Network, channel, nick, flags string) {
	u := n.User(nick)
	u.Away = strings.ContainsRune(flags, 'G')
	if ch, ok := n.LookupChannel(channel); ok {
		ch.SetMember(u, n.HighestPrefix(flags))
	}
}

func (a *App) handlePart(c *irc.Conn, n *state.Network, msg *irc.Message) {
	src := msg.Source()
	var target string
	if src == nil || msg.ParseParams(&target) != nil {
		return
	}
	if n.IsSelf(src.Name) {
		n.RemoveChannel(target)
		a.emit(events.EventChannelListChanged, a.netData(c))
		return
	}
	if ch, ok := n.LookupChannel(target); ok {
		ch.RemoveMember(src.Name)
		a.emitMembers(c, ch)
	}
}

// handleChat processes a live PRIVMSG/NOTICE (history playback goes
// through handleBatched instead).
func (a *App) handleChat(c *irc.Conn, n *state.Network, msg *irc.Message) {
	src := msg.Source()
	var target, body string
	if msg.ParseParams(&target, &body) != nil {
		return
	}
	from := c.Config.Server
	if src != nil {
		from = src.Name
	}

	// DMs buffer under the peer's nick; with echo-message our own copy
	// arrives addressed to the peer.
	buffer := target
	if !n.IsChannel(target) && n.IsSelf(target) {
		buffer = from
	}

	ch, existed := n.LookupChannel(buffer)
	if !existed {
		ch = n.Channel(buffer)
		if !n.IsChannel(buffer) {
			n.SynthesizeDM(ch, buffer)
		}
		a.emit(events.EventChannelListChanged, a.netData(c))
	}

	self := n.IsSelf(from)
	selfNick := n.Nick
	if self {
		selfNick = ""
	}
	m := state.Message{From: from, Body: body, Time: msg.Time(), Notice: msg.Command == irc.CmdNotice}
	highlight := ch.Record(m, selfNick, true)

	data := a.netData(c)
	data["channel"] = ch.Name
	data["from"] = from
	data["body"] = body
	data["notice"] = m.Notice
	a.emit(events.EventMessageReceived, data)

	if highlight {
		note := a.netData(c)
		note["title"] = fmt.Sprintf("%s: %s", ch.Name, from)
		note["body"] = body
		a.emit(events.EventNotificationRequest, note)
	}
}

func (a *App) handleMarkRead(c *irc.Conn, n *state.Network, msg *irc.Message) {
	var target, selector string
	if msg.ParseParams(&target, &selector) != nil {
		return
	}
	value, ok := strings.CutPrefix(selector, "timestamp=")
	if !ok {
		return
	}
	t, ok := irc.ParseTimestamp(value)
	if !ok {
		return
	}
	if ch, ok := n.LookupChannel(target); ok {
		ch.MarkRead(t.Local())
		a.emit(events.EventChannelListChanged, a.netData(c))
	}
}

// handleBouncer reacts to soju's bouncer-networks notifications on the
// home connection: spawn a satellite per advertised network, retire it
// when the network is deleted.
func (a *App) handleBouncer(c *irc.Conn, n *state.Network, msg *irc.Message) {
	args := msg.ParamSlice()
	if len(args) < 3 || args[0] != "NETWORK" || c.Config.NetID != "" {
		return
	}
	id, attrs := args[1], args[2]
	existing := a.connByNetID(id)
	if attrs == "*" {
		if existing == nil {
			return
		}
		a.retire(existing)
		data := map[string]interface{}{"netid": id, "name": existing.Config.Name}
		a.emit(events.EventNetworkRemoved, data)
		return
	}
	if existing != nil {
		return
	}
	cfg := c.Config
	cfg.NetID = id
	cfg.Name = irc.ParseAttrs(attrs)["name"]
	a.spawn(cfg)
	a.emit(events.EventNetworkAdded, map[string]interface{}{"netid": id, "name": cfg.Name})
}

func (a *App) setTopic(c *irc.Conn, n *state.Network, channel, topic string) {
	ch, ok := n.LookupChannel(channel)
	if !ok {
		return
	}
	ch.Topic = topic
	data := a.netData(c)
	data["channel"] = ch.Name
	data["topic"] = topic
	a.emit(events.EventTopicChanged, data)
}

func (a *App) netData(c *irc.Conn) map[string]interface{} {
	name := c.Config.Name
	if name == "" {
		name = c.Config.Server
	}
	return map[string]interface{}{"network": name}
}

func (a *App) emit(eventType string, data map[string]interface{}) {
	a.bus.Emit(events.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    events.EventSourceIRC,
	})
}

func (a *App) emitState(c *irc.Conn) {
	data := a.netData(c)
	data["state"] = c.State().String()
	a.emit(events.EventConnectionState, data)
}

func (a *App) emitMembers(c *irc.Conn, ch *state.Channel) {
	data := a.netData(c)
	data["channel"] = ch.Name
	a.emit(events.EventMemberListChanged, data)
}

func (a *App) emitError(text string) {
	a.emit(events.EventError, map[string]interface{}{"error": text})
}

func cmdJoin(a *App, c *irc.Conn, n *state.Network, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: join <channel>")
	}
	c.Send(irc.CmdJoin, args[0])
	return nil
}

func cmdPart(a *App, c *irc.Conn, n *state.Network, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: part <channel>")
	}
	c.Send(irc.CmdPart, args...)
	return nil
}

func cmdMsg(a *App, c *irc.Conn, n *state.Network, args []string) error {
	return sendChat(c, n, irc.CmdPrivmsg, args)
}

func cmdNotice(a *App, c *irc.Conn, n *state.Network, args []string) error {
	return sendChat(c, n, irc.CmdNotice, args)
}

// sendChat pushes an outbound chat line and, when echo-message is not
// negotiated, records the local copy immediately (the server will not
// echo it back).
func sendChat(c *irc.Conn, n *state.Network, cmd irc.Command, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: <target> <text>")
	}
	target, body := args[0], strings.Join(args[1:], " ")
	c.Send(cmd, target, body)
	if !n.CapEnabled("echo-message") {
		ch := n.Channel(target)
		if !n.IsChannel(target) && len(ch.Members) == 0 {
			n.SynthesizeDM(ch, target)
		}
		ch.Record(state.Message{
			From:   n.Nick,
			Body:   body,
			Time:   time.Now(),
			Notice: cmd == irc.CmdNotice,
		}, "", true)
	}
	return nil
}

func cmdMarkRead(a *App, c *irc.Conn, n *state.Network, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: markread <target>")
	}
	ch, ok := n.LookupChannel(args[0])
	if !ok {
		return fmt.Errorf("no such channel %q", args[0])
	}
	newest, ok := ch.NewestTime()
	if !ok {
		newest = time.Now()
	}
	ch.MarkRead(newest)
	if n.CapEnabled("soju.im/read") || n.CapEnabled("draft/read-marker") {
		c.Send(irc.CmdMarkread, ch.Name, irc.FormatTimestamp(newest))
	}
	a.emit(events.EventChannelListChanged, a.netData(c))
	return nil
}

func cmdHistory(a *App, c *irc.Conn, n *state.Network, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: history <target>")
	}
	ch, ok := n.LookupChannel(args[0])
	if !ok {
		return fmt.Errorf("no such channel %q", args[0])
	}
	if hargs, ok := n.BuildHistoryRequest(ch, state.HistoryOlder); ok {
		c.Send(irc.CmdChathistory, hargs...)
	}
	return nil
}

func cmdRaw(a *App, c *irc.Conn, n *state.Network, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: raw <line>")
	}
	c.SendRaw(strings.Join(args, " "))
	return nil
}
