package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/rolemaster-relay/engine"
)

// Liveness limits for a streaming session.
const (
	KeepaliveTimeout = 300 * time.Second // no PING from the server
	DataTimeout      = 180 * time.Second // no line of any kind
	ProbeInterval    = 30 * time.Second  // our own PING
	PollInterval     = 100 * time.Millisecond
	writeTimeout     = 10 * time.Second
	maxMessageLen    = 500
	defaultServer    = "tmi.twitch.tv"
)

var (
	ErrKeepaliveTimeout = errors.New("no keepalive from server")
	ErrStale            = errors.New("connection stale: no data received")
	ErrProbeFailed      = errors.New("write probe failed")
	ErrServerReconnect  = errors.New("server requested reconnect")
	ErrAuthFailed       = errors.New("chat login rejected")
	ErrClosed           = errors.New("connection closed by server")
)

// Handler processes chat messages. *engine.Engine satisfies it.
type Handler interface {
	Handle(ctx context.Context, msg engine.Message, r engine.Replier) engine.Outcome
}

type readResult struct {
	line string
	err  error
}

// Session is one logged-in connection to a channel. It is used once: Run closes the
// connection when it returns.
type Session struct {
	conn    net.Conn
	nick    string
	channel string
	now     func() time.Time
	log     *slog.Logger

	wmu sync.Mutex

	// Owned by the Run goroutine.
	mods          map[string]bool
	lastKeepalive time.Time
	lastData      time.Time
	lastProbe     time.Time
}

// NewSession wraps an established connection. channel is the login name without '#'.
func NewSession(conn net.Conn, nick, channel string) *Session {
	return &Session{
		conn:    conn,
		nick:    strings.ToLower(nick),
		channel: strings.ToLower(strings.TrimPrefix(channel, "#")),
		now:     time.Now,
		log:     slog.Default().With(slog.String("component", "chat"), slog.String("channel", channel)),
		mods:    map[string]bool{},
	}
}

// Authenticate sends the login frames and the capability request.
func (s *Session) Authenticate(pass string) error {
	for _, line := range []string{
		"PASS " + pass,
		"NICK " + s.nick,
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
	} {
		if err := s.writeLine(line); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	return nil
}

// Join requests the channel. Acknowledgement is not awaited.
func (s *Session) Join() error {
	if err := s.writeLine("JOIN #" + s.channel); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	return nil
}

// Say sends a chat message to the channel, splitting text longer than one message.
func (s *Session) Say(text string) error {
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
	for _, part := range splitMessage(text, maxMessageLen) {
		if err := s.writeLine("PRIVMSG #" + s.channel + " :" + part); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) writeLine(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.SetWriteDeadline(s.now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := io.WriteString(s.conn, line+"\r\n")
	return err
}

// Run reads and handles lines until ctx is cancelled, the connection fails, or a
// liveness check trips. Commands are handled one at a time on this goroutine.
func (s *Session) Run(ctx context.Context, h Handler) error {
	lines := make(chan readResult)
	quit := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readLoop(lines, quit)
	}()
	// Closing the connection unblocks the reader, including mid-read on stop.
	defer func() {
		close(quit)
		_ = s.conn.Close()
		<-readerDone
	}()
	stopOnCancel := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stopOnCancel()

	now := s.now()
	s.lastKeepalive, s.lastData, s.lastProbe = now, now, now

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-lines:
			if r.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(r.err, io.EOF) {
					return ErrClosed
				}
				return fmt.Errorf("read: %w", r.err)
			}
			s.lastData = s.now()
			if err := s.handleLine(ctx, r.line, h); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.checkLiveness(); err != nil {
				return err
			}
		}
	}
}

func (s *Session) readLoop(out chan<- readResult, quit <-chan struct{}) {
	br := bufio.NewReader(s.conn)
	for {
		line, err := br.ReadString('\n')
		r := readResult{line: strings.TrimRight(line, "\r\n"), err: err}
		if err == nil && r.line == "" {
			continue
		}
		select {
		case out <- r:
		case <-quit:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) checkLiveness() error {
	now := s.now()
	if now.Sub(s.lastKeepalive) > KeepaliveTimeout {
		return ErrKeepaliveTimeout
	}
	if now.Sub(s.lastData) > DataTimeout {
		return ErrStale
	}
	if now.Sub(s.lastProbe) >= ProbeInterval {
		s.lastProbe = now
		if err := s.writeLine("PING :" + defaultServer); err != nil {
			return fmt.Errorf("%w: %v", ErrProbeFailed, err)
		}
	}
	return nil
}

func (s *Session) handleLine(ctx context.Context, line string, h Handler) error {
	switch m := twitch.ParseMessage(line).(type) {
	case *twitch.PingMessage:
		s.lastKeepalive = s.now()
		server := m.Message
		if server == "" {
			server = defaultServer
		}
		if err := s.writeLine("PONG :" + server); err != nil {
			return fmt.Errorf("pong: %w", err)
		}
	case *twitch.PrivateMessage:
		if !strings.EqualFold(m.Channel, s.channel) {
			return nil
		}
		msg := s.toMessage(m)
		s.log.Debug("chat message", slog.String("user", msg.User), slog.Bool("mod", msg.IsMod), slog.Bool("sub", msg.IsSub))
		h.Handle(ctx, msg, s)
	case *twitch.ReconnectMessage:
		return ErrServerReconnect
	case *twitch.NoticeMessage:
		if isAuthFailure(m.Message) {
			return fmt.Errorf("%w: %s", ErrAuthFailed, m.Message)
		}
		s.log.Info("server notice", slog.String("msg_id", m.MsgID), slog.String("text", m.Message))
	}
	return nil
}

// toMessage derives role flags from badges and tags. Anyone seen as a moderator keeps
// that flag for the rest of the session.
func (s *Session) toMessage(m *twitch.PrivateMessage) engine.Message {
	user := strings.ToLower(m.User.Name)
	_, broadcaster := m.User.Badges["broadcaster"]
	_, moderator := m.User.Badges["moderator"]
	isMod := broadcaster || moderator || m.Tags["mod"] == "1"
	if isMod {
		s.mods[user] = true
	}
	_, subscriber := m.User.Badges["subscriber"]
	_, founder := m.User.Badges["founder"]
	return engine.Message{
		User:  user,
		Text:  m.Message,
		IsMod: isMod || s.mods[user],
		IsSub: subscriber || founder || m.Tags["subscriber"] == "1",
	}
}

func isAuthFailure(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "login authentication failed") || strings.Contains(t, "improperly formatted auth")
}

// splitMessage cuts text into pieces of at most limit runes, preferring spaces.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}
