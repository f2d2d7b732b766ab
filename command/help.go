package command

import (
	"fmt"
	"strings"
)

// Chat replies shared by the engine.
const (
	MsgAccepted          = "✅ Command accepted!"
	MsgUnknownModeration = "❌ Unknown moderation command. Use Moderation:help: to see available commands."
)

// Modes is the permission state reported by Moderation:permissions:.
type Modes struct {
	ModsOnly  bool
	SubsOnly  bool
	Whitelist bool
}

// GeneralHelp lists every enabled command in one line.
func (c *Catalog) GeneralHelp() string {
	var b strings.Builder
	b.WriteString("🤖 AI Commands Available:")
	for _, s := range c.EnabledDefs() {
		fmt.Fprintf(&b, " %s %s %s", s.Icon, c.Format(s.Dev), s.Summary)
	}
	return b.String()
}

// SpecificHelp describes one command with an example invocation.
func (c *Catalog) SpecificHelp(dev string) string {
	s, ok := c.defs[dev]
	format := c.Format(dev)
	if !ok {
		return fmt.Sprintf("📖 %s - No specific help available for this command.", format)
	}
	desc := s.Description
	if dev == "encounter" && len(c.encounterTypes) > 0 {
		desc += " Must include one NPC type: " + strings.Join(c.encounterTypes, ", ") + "."
	}
	return fmt.Sprintf("%s %s - %s Example: %s%s", s.Icon, format, desc, format, s.Example)
}

// ModerationHelp is the compact command list for Moderation:help:.
func (c *Catalog) ModerationHelp() string {
	var b strings.Builder
	b.WriteString("📖 Commands: ")
	for _, s := range c.EnabledDefs() {
		fmt.Fprintf(&b, "%s %s | ", s.Icon, c.Format(s.Dev))
	}
	b.WriteString("🔒 Moderation:permissions:")
	return b.String()
}

// PermissionsStatus reports the permission modes and which commands are enabled.
func (c *Catalog) PermissionsStatus(m Modes) string {
	var cmds strings.Builder
	for _, s := range Defs {
		if c.enabled[s.Dev] {
			cmds.WriteString(s.Icon)
		} else {
			cmds.WriteString("❌")
		}
	}
	return fmt.Sprintf("🔒 Current Permissions: Mods Only: %s | Subs Only: %s | Whitelist: %s | Commands: %s",
		tick(m.ModsOnly), tick(m.SubsOnly), tick(m.Whitelist), cmds.String())
}

// FormatError explains the expected syntax after a malformed line.
func (c *Catalog) FormatError() string {
	if c.usePrefix {
		return fmt.Sprintf("❌ Invalid command format. Use: %s:type:text or Moderation:type:", c.prefix)
	}
	return "❌ Invalid command format. Use: type:text or Moderation:type:"
}

// InvalidTypeError lists the user-facing names of every command kind.
func (c *Catalog) InvalidTypeError() string {
	names := make([]string, 0, len(Defs))
	for _, s := range Defs {
		names = append(names, c.UserName(s.Dev))
	}
	return "❌ Invalid command type. Valid types are: " + strings.Join(names, ", ")
}

// InvalidNotice wraps an error message with the pointer to help. strike marks the
// attempt that tripped the invalid-attempt threshold.
func (c *Catalog) InvalidNotice(msg string, strike bool) string {
	if strike {
		return fmt.Sprintf("%s (Multiple invalid attempts). Type !%s to see available commands.", msg, c.HelpKeyword())
	}
	return fmt.Sprintf("%s Type !%s to see available commands.", msg, c.HelpKeyword())
}

func tick(b bool) string {
	if b {
		return "✅"
	}
	return "❌"
}
