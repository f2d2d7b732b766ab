package command

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func allEnabled() map[string]bool {
	m := map[string]bool{}
	for _, s := range Defs {
		m[s.Dev] = true
	}
	return m
}

func newTestCatalog(usePrefix bool, nameMap map[string]string) *Catalog {
	return NewCatalog(Options{
		Prefix:       "Rolemaster",
		UsePrefix:    usePrefix,
		HelpKeywords: []string{"help", "ai", "Rolemaster", "rp"},
		NameMap:      nameMap,
		Enabled:      allEnabled(),
	})
}

func TestParseRequiredPrefix(t *testing.T) {
	p := NewParser(newTestCatalog(true, nil))
	tests := []struct {
		name string
		line string
		want Command
	}{
		{"user command", "Rolemaster:instruction:Make Lydia tell a story",
			Command{Kind: KindUser, Name: "instruction", DevType: "instruction", Text: "Make Lydia tell a story"}},
		{"case-insensitive prefix and type", "  rOLEMASTER:Instruction:  Keep My Case ",
			Command{Kind: KindUser, Name: "instruction", DevType: "instruction", Text: "Keep My Case"}},
		{"unknown type still parses", "Rolemaster:dance:now",
			Command{Kind: KindUser, Name: "dance", DevType: "dance", Text: "now"}},
		{"colons in payload", "Rolemaster:suggestion:time: noon",
			Command{Kind: KindUser, Name: "suggestion", DevType: "suggestion", Text: "time: noon"}},
		{"prefix only", "Rolemaster:", Command{Kind: KindMalformed}},
		{"missing type separator", "Rolemaster:instruction", Command{Kind: KindMalformed}},
		{"empty type", "Rolemaster::text", Command{Kind: KindMalformed}},
		{"no prefix is chatter", "instruction:hello", Command{Kind: KindNone}},
		{"plain chatter", "hello everyone", Command{Kind: KindNone}},
		{"general help", "!HELP", Command{Kind: KindGeneralHelp, Keyword: "help"}},
		{"alternate help keyword", "!rolemaster", Command{Kind: KindGeneralHelp, Keyword: "rolemaster"}},
		{"specific help", "!Encounter", Command{Kind: KindSpecificHelp, Keyword: "encounter", DevType: "encounter"}},
		{"unknown bang word", "!dance", Command{Kind: KindNone}},
		{"lone bang", "!", Command{Kind: KindNone}},
		{"moderation", "Moderation:permissions:", Command{Kind: KindModeration, Subtype: "permissions"}},
		{"moderation without trailing colon", "moderation:HELP", Command{Kind: KindModeration, Subtype: "help"}},
		{"moderation with text", "Moderation:blacklist: Troll ", Command{Kind: KindModeration, Subtype: "blacklist", Text: "Troll"}},
		{"moderation missing subtype", "Moderation::", Command{Kind: KindMalformed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, p.Parse(tt.line)); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestParseOptionalPrefix(t *testing.T) {
	p := NewParser(newTestCatalog(false, nil))
	tests := []struct {
		line string
		want Command
	}{
		{"instruction:hello there", Command{Kind: KindUser, Name: "instruction", DevType: "instruction", Text: "hello there"}},
		{"Rolemaster:instruction:hi", Command{Kind: KindUser, Name: "instruction", DevType: "instruction", Text: "hi"}},
		{"Rolemaster: spawn: a bard", Command{Kind: KindUser, Name: "spawn", DevType: "spawn", Text: "a bard"}},
		{"Rolemaster:nothing", Command{Kind: KindMalformed}},
		{"12:30 see you then", Command{Kind: KindNone}},
		{"just talking", Command{Kind: KindNone}},
		{"https://example.com", Command{Kind: KindUser, Name: "https", DevType: "https", Text: "//example.com"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, p.Parse(tt.line)); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}
}

func TestParseMappedNames(t *testing.T) {
	p := NewParser(newTestCatalog(true, map[string]string{"instruction": "Scene"}))

	got := p.Parse("Rolemaster:scene:A tavern brawl")
	want := Command{Kind: KindUser, Name: "scene", DevType: "instruction", Text: "A tavern brawl"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mapped name mismatch (-want +got):\n%s", diff)
	}
	if _, ok := p.cat.Lookup(got.Name); !ok {
		t.Errorf("Lookup(%q) should resolve", got.Name)
	}
	// The developer name is hidden once renamed.
	old := p.Parse("Rolemaster:instruction:A tavern brawl")
	if _, ok := p.cat.Lookup(old.Name); ok {
		t.Errorf("Lookup(%q) should not resolve after rename", old.Name)
	}
	if h := p.Parse("!scene"); h.Kind != KindSpecificHelp || h.DevType != "instruction" {
		t.Errorf("!scene = %+v, want specific help for instruction", h)
	}
}

// Parsing a user command's canonical form with the prefix yields the same command.
func TestCanonicalRoundTrip(t *testing.T) {
	for _, usePrefix := range []bool{true, false} {
		p := NewParser(newTestCatalog(usePrefix, map[string]string{"spawn": "Summon"}))
		lines := []string{
			"Rolemaster:instruction:Make Lydia tell a story",
			"Rolemaster: SUMMON :  an old hermit ",
			"Rolemaster:encounter:wolves: at dusk",
			"Rolemaster:unknown:",
		}
		for _, line := range lines {
			first := p.Parse(line)
			if first.Kind != KindUser {
				t.Fatalf("usePrefix=%v Parse(%q).Kind = %v", usePrefix, line, first.Kind)
			}
			second := p.Parse("Rolemaster:" + first.Canonical())
			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("usePrefix=%v round trip of %q mismatch (-first +second):\n%s", usePrefix, line, diff)
			}
		}
	}
}

func TestNameMapCollisionFallsBackToIdentity(t *testing.T) {
	c := newTestCatalog(true, map[string]string{"instruction": "act", "suggestion": "ACT"})
	if got := c.DevName("act"); got != "act" {
		t.Errorf("DevName(act) = %q, want identity", got)
	}
	if _, ok := c.Lookup("act"); ok {
		t.Errorf("ambiguous name should not resolve")
	}
	if got := c.DevName("spawn"); got != "spawn" {
		t.Errorf("DevName(spawn) = %q", got)
	}
	for _, dev := range []string{"instruction", "suggestion"} {
		if got, ok := c.Lookup(dev); !ok || got != dev {
			t.Errorf("Lookup(%s) = %q, %v, want identity", dev, got, ok)
		}
	}
	if got := c.Format("instruction"); got != "Rolemaster:instruction:" {
		t.Errorf("Format(instruction) = %q", got)
	}
	want := Command{Kind: KindUser, Name: "instruction", DevType: "instruction", Text: "Make Lydia tell a story"}
	if diff := cmp.Diff(want, NewParser(c).Parse("Rolemaster:instruction:Make Lydia tell a story")); diff != "" {
		t.Errorf("Parse (-want +got):\n%s", diff)
	}
}

func TestDisabledCommandHasNoHelpTarget(t *testing.T) {
	en := allEnabled()
	en["spawn"] = false
	c := NewCatalog(Options{Prefix: "Rolemaster", UsePrefix: true, HelpKeywords: []string{"help"}, Enabled: en})
	if got := NewParser(c).Parse("!spawn"); got.Kind != KindNone {
		t.Errorf("!spawn for disabled command = %v, want none", got.Kind)
	}
}

func TestKindString(t *testing.T) {
	if KindModeration.String() != "moderation" || Kind(42).String() != "unknown" {
		t.Errorf("unexpected Kind strings")
	}
}
