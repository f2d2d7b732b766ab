// Package engine ties the parser, permission policy, throttle and dispatcher together
// into the handling of one chat line.
//
// Handle is serialized: the chat session and the local test endpoint may share one
// Engine, but only one command is processed at a time, executor run included.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/rolemaster-relay/command"
	"github.com/onnwee/rolemaster-relay/dispatch"
	"github.com/onnwee/rolemaster-relay/permission"
	"github.com/onnwee/rolemaster-relay/telemetry"
	"github.com/onnwee/rolemaster-relay/throttle"
)

// Message is one chat line with the sender's role flags.
type Message struct {
	User  string
	Text  string
	IsMod bool
	IsSub bool
}

// Replier sends a line back to chat.
type Replier interface {
	Say(text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(text string) error

func (f ReplierFunc) Say(text string) error { return f(text) }

// Dispatcher runs an accepted command.
type Dispatcher interface {
	Dispatch(ctx context.Context, devType, text string) (dispatch.Result, error)
}

// Entry is one audit row.
type Entry struct {
	CorrelationID string
	User          string
	Kind          string
	DevType       string
	Outcome       string
	Detail        string
	At            time.Time
}

// Auditor persists handled commands. Failures are logged and otherwise ignored.
type Auditor interface {
	Record(ctx context.Context, e Entry) error
}

// Options wires an Engine.
type Options struct {
	Catalog    *command.Catalog
	Policy     permission.Policy
	Throttle   *throttle.Tracker
	Dispatcher Dispatcher
	Auditor    Auditor // optional
}

// Engine handles chat lines.
type Engine struct {
	mu         sync.Mutex
	cat        *command.Catalog
	parser     *command.Parser
	policy     permission.Policy
	throttle   *throttle.Tracker
	dispatcher Dispatcher
	auditor    Auditor
	now        func() time.Time
}

func New(o Options) *Engine {
	tr := o.Throttle
	if tr == nil {
		tr = throttle.New(0)
	}
	return &Engine{
		cat:        o.Catalog,
		parser:     command.NewParser(o.Catalog),
		policy:     o.Policy,
		throttle:   tr,
		dispatcher: o.Dispatcher,
		auditor:    o.Auditor,
		now:        time.Now,
	}
}

// Modes returns the permission modes in effect.
func (e *Engine) Modes() command.Modes {
	return command.Modes{ModsOnly: e.policy.ModsOnly, SubsOnly: e.policy.SubsOnly, Whitelist: e.policy.WhitelistEnabled}
}

// InvalidCount returns the current invalid-attempt count.
func (e *Engine) InvalidCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.throttle.InvalidCount()
}

// handling carries per-line state through Handle.
type handling struct {
	ctx     context.Context
	log     *slog.Logger
	msg     Message
	cmd     command.Command
	r       Replier
	detail  string
	devType string
}

// Handle processes one chat line and returns what happened to it.
func (e *Engine) Handle(ctx context.Context, msg Message, r Replier) Outcome {
	msg.User = strings.ToLower(msg.User)
	cmd := e.parser.Parse(msg.Text)
	if cmd.Kind == command.KindNone {
		return OutcomeIgnored
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "engine", "engine.Handle",
		telemetry.ChatUserAttr(msg.User), telemetry.CommandKindAttr(cmd.Kind.String()))
	defer span.End()

	h := &handling{
		ctx:     ctx,
		log:     telemetry.LoggerWithCorr(ctx).With(slog.String("component", "engine"), slog.String("user", msg.User)),
		msg:     msg,
		cmd:     cmd,
		r:       r,
		devType: cmd.DevType,
	}
	out := e.handle(h)

	span.SetAttributes(telemetry.OutcomeAttr(out.String()))
	if out == OutcomeSystemError {
		telemetry.RecordError(span, errors.New(h.detail))
	} else {
		telemetry.SetSpanSuccess(span)
	}
	telemetry.CountCommand(out.String())
	h.log.Info("command handled",
		slog.String("kind", cmd.Kind.String()),
		slog.String("dev_type", h.devType),
		slog.String("outcome", out.String()))
	e.audit(h, out)
	return out
}

func (e *Engine) handle(h *handling) Outcome {
	d := e.policy.Allow(h.msg.User, h.msg.IsMod, h.msg.IsSub)
	if !d.Allowed {
		h.log.Debug("permission denied", slog.String("rule", d.Rule.String()))
		h.detail = d.Rule.String()
		return OutcomeDenied
	}

	switch h.cmd.Kind {
	case command.KindGeneralHelp:
		e.say(h, e.cat.GeneralHelp())
		return OutcomeHelp
	case command.KindSpecificHelp:
		e.say(h, e.cat.SpecificHelp(h.cmd.DevType))
		return OutcomeHelp
	case command.KindModeration:
		return e.moderation(h)
	case command.KindMalformed:
		return e.invalid(h, e.cat.FormatError(), OutcomeInvalid)
	case command.KindUser:
		return e.userCommand(h)
	}
	return OutcomeIgnored
}

func (e *Engine) moderation(h *handling) Outcome {
	if !h.msg.IsMod && !e.policy.IsOwner(h.msg.User) {
		h.log.Debug("moderation command from non-moderator ignored", slog.String("subtype", h.cmd.Subtype))
		return OutcomeIgnored
	}
	h.detail = h.cmd.Subtype
	switch h.cmd.Subtype {
	case "help":
		e.say(h, e.cat.ModerationHelp())
	case "permissions":
		e.say(h, e.cat.PermissionsStatus(e.Modes()))
	default:
		return e.invalid(h, command.MsgUnknownModeration, OutcomeInvalid)
	}
	return OutcomeModeration
}

func (e *Engine) userCommand(h *handling) Outcome {
	dev, ok := e.cat.Lookup(h.cmd.Name)
	if !ok {
		h.detail = h.cmd.Name
		return e.invalid(h, e.cat.InvalidTypeError(), OutcomeInvalid)
	}
	h.devType = dev
	if !e.cat.Enabled(dev) {
		return OutcomeDisabled
	}
	if e.throttle.InCooldown() {
		h.log.Debug("command dropped during cooldown", slog.Duration("remaining", e.throttle.Remaining()))
		return OutcomeCooldown
	}

	res, err := e.dispatcher.Dispatch(h.ctx, dev, h.cmd.Text)
	if err != nil {
		h.detail = err.Error()
		var sys *dispatch.SystemError
		if errors.As(err, &sys) {
			return e.invalid(h, sys.Msg, OutcomeSystemError)
		}
		return e.invalid(h, dispatch.ChatMessage(err), OutcomeInvalid)
	}
	if res.NPC != "" {
		h.detail = res.NPC
	}
	e.throttle.RecordAccepted()
	e.say(h, command.MsgAccepted)
	return OutcomeAccepted
}

// invalid reports msg to chat with the pointer to help and counts the attempt.
func (e *Engine) invalid(h *handling, msg string, out Outcome) Outcome {
	strike := e.throttle.RecordInvalid()
	if strike && telemetry.InvalidNotices != nil {
		telemetry.InvalidNotices.Inc()
	}
	if h.detail == "" {
		h.detail = msg
	}
	e.say(h, e.cat.InvalidNotice(msg, strike))
	return out
}

func (e *Engine) say(h *handling, text string) {
	if h.r == nil {
		return
	}
	if err := h.r.Say(text); err != nil {
		h.log.Warn("failed to send chat reply", slog.Any("err", err))
	}
}

func (e *Engine) audit(h *handling, out Outcome) {
	if e.auditor == nil {
		return
	}
	entry := Entry{
		CorrelationID: telemetry.GetCorrelation(h.ctx),
		User:          h.msg.User,
		Kind:          h.cmd.Kind.String(),
		DevType:       h.devType,
		Outcome:       out.String(),
		Detail:        h.detail,
		At:            e.now(),
	}
	if err := e.auditor.Record(h.ctx, entry); err != nil {
		h.log.Warn("failed to record audit entry", slog.Any("err", err))
	}
}
