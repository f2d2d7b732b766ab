// Package dispatch hands accepted commands to the external executor.
//
// A command goes through sanitization, a check that the executor binary and script
// exist, the encounter sub-request for encounter commands, and finally one executor run:
//
//	<executor> <script> rolemaster <devType> <text>
//
// Exit status 0 is success. Executor output is logged and never returned to chat.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/onnwee/rolemaster-relay/telemetry"
)

// Task is the first executor argument for every command.
const Task = "rolemaster"

// Error texts shown in chat.
const (
	MsgExecutorMissing = "❌ System error: PHP executable not found"
	MsgScriptMissing   = "❌ System error: Manager script not found"
	MsgExecFailed      = "❌ Error executing command"
	MsgEncounterFailed = "❌ Failed to connect to encounter system"
)

// InvalidError is a rejection the user caused; Msg is safe to show in chat.
type InvalidError struct {
	Msg string
	Err error
}

func (e *InvalidError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *InvalidError) Unwrap() error { return e.Err }

// SystemError is an environment problem on this host; Msg is safe to show in chat.
type SystemError struct {
	Msg  string
	Path string
}

func (e *SystemError) Error() string { return fmt.Sprintf("%s (%s)", e.Msg, e.Path) }

// ChatMessage returns the chat-safe text of a dispatch error.
func ChatMessage(err error) string {
	var inv *InvalidError
	if errors.As(err, &inv) {
		return inv.Msg
	}
	var sys *SystemError
	if errors.As(err, &sys) {
		return sys.Msg
	}
	return MsgExecFailed
}

// Result describes a completed dispatch.
type Result struct {
	DevType string // type passed to the executor; encounter becomes instruction
	Text    string // sanitized payload
	NPC     string
	Count   int
}

// Dispatcher runs commands. The zero value is not usable; fill Executor, Script,
// Runner and, for encounters, Spawner.
type Dispatcher struct {
	Executor string
	Script   string
	Runner   Runner
	Spawner  Spawner
	// Count picks the encounter size; RandomCount when nil.
	Count func() int
	// Stat checks paths; os.Stat when nil.
	Stat func(string) (os.FileInfo, error)
}

// Dispatch runs devType with the user's text. Errors are *InvalidError or *SystemError.
func (d *Dispatcher) Dispatch(ctx context.Context, devType, text string) (Result, error) {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "dispatch"))
	ctx, span := telemetry.StartSpan(ctx, "dispatch", "dispatch.Dispatch", telemetry.DevTypeAttr(devType))
	defer span.End()

	clean, err := Sanitize(text)
	if err != nil {
		telemetry.RecordError(span, err)
		return Result{}, err
	}
	res := Result{DevType: devType, Text: clean}

	if err := d.checkPaths(); err != nil {
		log.Error("executor unavailable", slog.Any("err", err))
		telemetry.RecordError(span, err)
		return Result{}, err
	}

	if devType == "encounter" {
		npc, err := ResolveNPC(clean)
		if err != nil {
			telemetry.RecordError(span, err)
			return Result{}, err
		}
		count := d.count()
		log.Info("spawning encounter", slog.String("npc", npc), slog.Int("count", count))
		if d.Spawner == nil {
			err := &InvalidError{Msg: MsgEncounterFailed, Err: errors.New("no encounter service configured")}
			telemetry.RecordError(span, err)
			return Result{}, err
		}
		if err := d.Spawner.Spawn(ctx, npc, count); err != nil {
			log.Warn("encounter request failed", slog.String("npc", npc), slog.Int("count", count), slog.Any("err", err))
			telemetry.RecordError(span, err)
			return Result{}, &InvalidError{Msg: MsgEncounterFailed, Err: err}
		}
		res.NPC, res.Count = npc, count
		res.DevType = "instruction"
	}

	var out []byte
	telemetry.TimeFunc(telemetry.DispatchDuration, func() {
		out, err = d.Runner.Run(ctx, d.Executor, d.Script, Task, res.DevType, clean)
	})
	if err != nil {
		log.Warn("executor failed",
			slog.String("dev_type", res.DevType),
			slog.Any("err", err),
			slog.String("output", strings.TrimSpace(string(out))))
		telemetry.RecordError(span, err)
		return Result{}, &InvalidError{Msg: MsgExecFailed, Err: err}
	}
	log.Debug("executor finished", slog.String("dev_type", res.DevType), slog.String("output", strings.TrimSpace(string(out))))
	telemetry.SetSpanSuccess(span)
	return res, nil
}

func (d *Dispatcher) checkPaths() error {
	stat := d.Stat
	if stat == nil {
		stat = os.Stat
	}
	if _, err := stat(d.Executor); err != nil {
		return &SystemError{Msg: MsgExecutorMissing, Path: d.Executor}
	}
	if _, err := stat(d.Script); err != nil {
		return &SystemError{Msg: MsgScriptMissing, Path: d.Script}
	}
	return nil
}

func (d *Dispatcher) count() int {
	if d.Count != nil {
		return d.Count()
	}
	return RandomCount()
}
