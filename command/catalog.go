package command

import (
	"log/slog"
	"slices"
	"strings"
)

// Def describes one command kind as presented to chat.
type Def struct {
	Dev         string // stable developer name
	Icon        string
	Summary     string // one-line text for !help
	Description string // text for !<command>
	Example     string
}

// Defs lists the command kinds in presentation order.
var Defs = []Def{
	{
		Dev:         "instruction",
		Icon:        "🎬",
		Summary:     "Orchestrates a scene involving multiple NPCs (up to 2-3)",
		Description: "Orchestrates a scene involving multiple NPCs (up to 2-3). Use this to create complex interactions between characters or set up dramatic scenarios.",
		Example:     "Have Lydia and Serana discuss the ancient ruins while exploring together",
	},
	{
		Dev:         "suggestion",
		Icon:        "🕒",
		Summary:     "Makes a single NPC perform an action with dialogue",
		Description: "Makes a single NPC perform an action with dialogue. Use this for simple, immediate NPC interactions or reactions.",
		Example:     "Make Lydia comment on the weather and adjust her armor",
	},
	{
		Dev:         "impersonation",
		Icon:        "🗣️",
		Summary:     "Speak on behalf of the player",
		Description: "Speak on behalf of the player character. Use this to have your character say or do something in the scene.",
		Example:     "I draw my sword and cautiously approach the mysterious door",
	},
	{
		Dev:         "spawn",
		Icon:        "👥",
		Summary:     "Create a bio for a new custom AI NPC",
		Description: "Create a bio for a new custom AI NPC. Describe the character you want to add to the scene.",
		Example:     "A wise old merchant who sells rare magical artifacts and speaks in riddles",
	},
	{
		Dev:         "encounter",
		Icon:        "⚔️",
		Summary:     "Create an enemy encounter",
		Description: "Spawn 1-3 NPCs of a specific type for encounters.",
		Example:     "Bandits ambush the party on the road",
	},
}

// Options configures a Catalog. It mirrors the relevant part of config.Config.
type Options struct {
	Prefix         string
	UsePrefix      bool
	HelpKeywords   []string
	NameMap        map[string]string // dev -> user-facing
	Enabled        map[string]bool
	EncounterTypes []string
}

// Catalog resolves command names and renders help. It is read-only after NewCatalog.
type Catalog struct {
	prefix         string
	usePrefix      bool
	helpKeywords   []string
	defs           map[string]Def
	enabled        map[string]bool
	forward        map[string]string // dev -> user-facing, original case
	reverse        map[string]string // lower(user-facing) -> dev
	encounterTypes []string
}

// NewCatalog copies opts into a Catalog. When two developer names share a user-facing
// name, both revert to their developer names for parsing and help.
func NewCatalog(opts Options) *Catalog {
	c := &Catalog{
		prefix:         opts.Prefix,
		usePrefix:      opts.UsePrefix,
		helpKeywords:   slices.Clone(opts.HelpKeywords),
		defs:           make(map[string]Def, len(Defs)),
		enabled:        make(map[string]bool, len(Defs)),
		forward:        make(map[string]string, len(Defs)),
		reverse:        make(map[string]string, len(Defs)),
		encounterTypes: slices.Clone(opts.EncounterTypes),
	}
	owners := map[string][]string{} // lower(user-facing) -> dev names
	for _, s := range Defs {
		c.defs[s.Dev] = s
		c.enabled[s.Dev] = opts.Enabled[s.Dev]
		user := opts.NameMap[s.Dev]
		if user == "" {
			user = s.Dev
		}
		c.forward[s.Dev] = user
		key := strings.ToLower(user)
		owners[key] = append(owners[key], s.Dev)
	}
	for key, devs := range owners {
		if len(devs) == 1 {
			c.reverse[key] = devs[0]
			continue
		}
		slog.Warn("command name map is not one-to-one; falling back to identity",
			slog.String("user_name", key), slog.Any("devs", devs), slog.String("component", "command"))
		for _, dev := range devs {
			c.forward[dev] = dev
		}
	}
	return c
}

// UserName returns the user-facing name for a developer name (identity if unmapped).
func (c *Catalog) UserName(dev string) string {
	if u, ok := c.forward[dev]; ok {
		return u
	}
	return dev
}

// DevName returns the developer name for a user-facing name (identity if unmapped).
// Matching is case-insensitive.
func (c *Catalog) DevName(user string) string {
	key := strings.ToLower(user)
	if d, ok := c.reverse[key]; ok {
		return d
	}
	return key
}

// Lookup resolves a user-facing command name to a known developer name. A developer
// name that has been renamed is not accepted under its old name.
func (c *Catalog) Lookup(user string) (dev string, ok bool) {
	dev = c.DevName(user)
	if _, known := c.defs[dev]; !known {
		return "", false
	}
	return dev, strings.EqualFold(c.UserName(dev), user)
}

// Enabled reports whether the developer command kind is turned on.
func (c *Catalog) Enabled(dev string) bool { return c.enabled[dev] }

// EnabledDefs returns the enabled command kinds in presentation order.
func (c *Catalog) EnabledDefs() []Def {
	var out []Def
	for _, s := range Defs {
		if c.enabled[s.Dev] {
			out = append(out, s)
		}
	}
	return out
}

// IsHelpKeyword reports whether kw (any case) is a configured help keyword.
func (c *Catalog) IsHelpKeyword(kw string) bool {
	return slices.ContainsFunc(c.helpKeywords, func(k string) bool { return strings.EqualFold(k, kw) })
}

// HelpKeyword is the keyword suggested in error messages: "help" when configured,
// otherwise the first keyword.
func (c *Catalog) HelpKeyword() string {
	if c.IsHelpKeyword("help") || len(c.helpKeywords) == 0 {
		return "help"
	}
	return c.helpKeywords[0]
}

// HelpTarget resolves "!<keyword>" to an enabled command, matching user-facing names
// first and developer names second.
func (c *Catalog) HelpTarget(kw string) (dev string, ok bool) {
	for _, s := range Defs {
		if c.enabled[s.Dev] && strings.EqualFold(c.UserName(s.Dev), kw) {
			return s.Dev, true
		}
	}
	for _, s := range Defs {
		if c.enabled[s.Dev] && strings.EqualFold(s.Dev, kw) {
			return s.Dev, true
		}
	}
	return "", false
}

// Format returns the chat syntax that invokes dev, e.g. "Rolemaster:instruction:".
func (c *Catalog) Format(dev string) string {
	if c.usePrefix {
		return c.prefix + ":" + c.UserName(dev) + ":"
	}
	return c.UserName(dev) + ":"
}

// Prefix returns the command prefix and whether it is required.
func (c *Catalog) Prefix() (string, bool) { return c.prefix, c.usePrefix }
