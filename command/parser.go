// Package command turns raw chat lines into typed commands and renders the help texts that
// describe them.
//
// Grammar (matching is case-insensitive, payload case is preserved):
//
//	!<helpKeyword>                       general help
//	!<commandName>                       help for one enabled command
//	Moderation:<subtype>[:<text>]        moderation command
//	[<prefix>:]<commandName>:<text>      user command
//
// A line that never looked like a command parses as KindNone and is ignored. A line that
// matched the prefix but not the rest of the grammar parses as KindMalformed and counts as
// an invalid attempt.
package command

import (
	"regexp"
	"strings"
)

type Kind int

const (
	KindNone Kind = iota
	KindGeneralHelp
	KindSpecificHelp
	KindModeration
	KindUser
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindGeneralHelp:
		return "general_help"
	case KindSpecificHelp:
		return "specific_help"
	case KindModeration:
		return "moderation"
	case KindUser:
		return "user"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Command is one parsed chat line.
type Command struct {
	Kind Kind
	// Keyword is the lower-cased word after "!" for help commands.
	Keyword string
	// Subtype is the lower-cased moderation subcommand.
	Subtype string
	// Name is the lower-cased user-facing command name as typed.
	Name string
	// DevType is Name translated to its developer name.
	DevType string
	// Text is the trimmed free-text payload, original case.
	Text string
}

// Canonical returns the "name:text" form of a user command, which parses back to the
// same command once the prefix (if any) is put in front of it.
func (c Command) Canonical() string { return c.Name + ":" + c.Text }

var (
	moderationPattern = regexp.MustCompile(`(?is)^moderation:([^:]+):?(.*)$`)
	bareCommand       = regexp.MustCompile(`^[a-zA-Z]+:`)
	typeText          = regexp.MustCompile(`(?s)^([^:]+):(.*)$`)
)

const moderationPrefix = "moderation:"

// Parser classifies chat lines against a Catalog.
type Parser struct {
	cat *Catalog
}

func NewParser(cat *Catalog) *Parser { return &Parser{cat: cat} }

// Parse classifies line. It never fails; malformed input is KindMalformed.
func (p *Parser) Parse(line string) Command {
	line = strings.TrimSpace(line)

	if len(line) > 1 && line[0] == '!' {
		kw := strings.ToLower(line[1:])
		if p.cat.IsHelpKeyword(kw) {
			return Command{Kind: KindGeneralHelp, Keyword: kw}
		}
		if dev, ok := p.cat.HelpTarget(kw); ok {
			return Command{Kind: KindSpecificHelp, Keyword: kw, DevType: dev}
		}
	}

	if hasFoldPrefix(line, moderationPrefix) {
		m := moderationPattern.FindStringSubmatch(line)
		if m == nil {
			return Command{Kind: KindMalformed}
		}
		return Command{
			Kind:    KindModeration,
			Subtype: strings.ToLower(strings.TrimSpace(m[1])),
			Text:    strings.TrimSpace(m[2]),
		}
	}

	rest, ok := p.stripPrefix(line)
	if !ok {
		return Command{Kind: KindNone}
	}

	m := typeText.FindStringSubmatch(rest)
	if m == nil {
		return Command{Kind: KindMalformed}
	}
	name := strings.ToLower(strings.TrimSpace(m[1]))
	if name == "" {
		return Command{Kind: KindMalformed}
	}
	return Command{
		Kind:    KindUser,
		Name:    name,
		DevType: p.cat.DevName(name),
		Text:    strings.TrimSpace(m[2]),
	}
}

// stripPrefix applies the prefix rules. ok is false for lines that are not commands at
// all. A line that carried the prefix is always returned with ok, even if what follows
// is malformed.
func (p *Parser) stripPrefix(line string) (string, bool) {
	prefix, required := p.cat.Prefix()
	marker := prefix + ":"
	if prefix != "" && hasFoldPrefix(line, marker) {
		return line[len(marker):], true
	}
	if required {
		return "", false
	}
	if !bareCommand.MatchString(line) {
		return "", false
	}
	return line, true
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
