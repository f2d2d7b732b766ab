package chat

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/onnwee/rolemaster-relay/telemetry"
	"github.com/onnwee/rolemaster-relay/twitchauth"
)

// DialTimeout bounds connection setup.
const DialTimeout = 30 * time.Second

// DialFunc opens the transport connection.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client runs chat sessions and reports their state. RunSession is one connection
// attempt; restarts are the caller's business (see package supervise).
type Client struct {
	Addr    string
	TLS     bool
	Nick    string
	Channel string
	Token   twitchauth.TokenProvider
	Handler Handler
	// Dial replaces the default dialer. Intended for tests.
	Dial DialFunc

	mu    sync.RWMutex
	state State
	since time.Time
}

// State returns the current lifecycle state and when it was entered.
func (c *Client) State() (State, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.since
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.since = time.Now()
	c.mu.Unlock()
	telemetry.SetSessionState(int(s))
}

// RunSession connects, logs in, joins and streams until the session ends. It returns
// ctx.Err() after a stop and a descriptive error otherwise.
func (c *Client) RunSession(ctx context.Context) error {
	log := slog.Default().With(slog.String("component", "chat"), slog.String("channel", c.Channel))

	c.setState(StateConnecting)
	conn, err := c.dial(ctx)
	if err != nil {
		return c.fail(ctx, "dial", fmt.Errorf("connect %s: %w", c.Addr, err))
	}
	sess := NewSession(conn, c.Nick, c.Channel)

	c.setState(StateAuthenticating)
	token, err := c.Token.Token(ctx)
	if err != nil {
		_ = conn.Close()
		return c.fail(ctx, "token", err)
	}
	if err := sess.Authenticate(twitchauth.FormatPass(token)); err != nil {
		_ = conn.Close()
		return c.fail(ctx, "auth", err)
	}

	c.setState(StateJoining)
	if err := sess.Join(); err != nil {
		_ = conn.Close()
		return c.fail(ctx, "join", err)
	}

	c.setState(StateStreaming)
	if telemetry.SessionsStarted != nil {
		telemetry.SessionsStarted.Inc()
	}
	log.Info("chat session streaming", slog.String("addr", c.Addr))

	err = sess.Run(ctx, c.Handler)
	if ctx.Err() != nil {
		c.setState(StateClosing)
		log.Info("chat session closed")
		c.setState(StateIdle)
		return ctx.Err()
	}
	return c.fail(ctx, failureReason(err), err)
}

func (c *Client) fail(ctx context.Context, reason string, err error) error {
	if ctx.Err() != nil {
		c.setState(StateIdle)
		return ctx.Err()
	}
	c.setState(StateFaulted)
	telemetry.CountSessionFailure(reason)
	slog.Warn("chat session ended", slog.String("component", "chat"), slog.String("reason", reason), slog.Any("err", err))
	return err
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()
	if c.Dial != nil {
		return c.Dial(ctx, "tcp", c.Addr)
	}
	nd := &net.Dialer{Timeout: DialTimeout, KeepAlive: 30 * time.Second}
	if !c.TLS {
		return nd.DialContext(ctx, "tcp", c.Addr)
	}
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return nil, err
	}
	td := &tls.Dialer{NetDialer: nd, Config: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}}
	return td.DialContext(ctx, "tcp", c.Addr)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrKeepaliveTimeout):
		return "keepalive"
	case errors.Is(err, ErrStale):
		return "stale"
	case errors.Is(err, ErrProbeFailed):
		return "probe"
	case errors.Is(err, ErrServerReconnect):
		return "reconnect"
	case errors.Is(err, ErrAuthFailed):
		return "auth"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "read"
	}
}
