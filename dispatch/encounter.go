package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/rolemaster-relay/telemetry"
)

// NPCTypes is the encounter vocabulary in reporting order.
var NPCTypes = []string{
	"bandit", "bear", "wolf", "draugr", "skeleton", "spider", "troll",
	"sabrecat", "vampire", "assassin", "mudcrab", "hagraven", "forsworn",
	"flame_atronach", "dremora", "cultist", "necromancer", "falmer",
}

// Matching is anchored at a word start and open-ended, so "bandits" matches "bandit".
// Irregular plurals and the sanitized form of flame_atronach get explicit patterns.
var npcPatterns = func() []*regexp.Regexp {
	special := map[string]string{
		"wolf":           `wolf|wolves`,
		"flame_atronach": `flame[\s_]+atronach`,
	}
	out := make([]*regexp.Regexp, len(NPCTypes))
	for i, npc := range NPCTypes {
		alt, ok := special[npc]
		if !ok {
			alt = regexp.QuoteMeta(npc)
		}
		out[i] = regexp.MustCompile(`(?i)\b(?:` + alt + `)`)
	}
	return out
}()

// ResolveNPC finds the single NPC type named in text. Zero or several distinct types
// yield an *InvalidError.
func ResolveNPC(text string) (string, error) {
	var found []string
	for i, re := range npcPatterns {
		if re.MatchString(text) {
			found = append(found, NPCTypes[i])
		}
	}
	switch len(found) {
	case 0:
		return "", &InvalidError{Msg: "❌ No valid NPC type found. Valid types: " + strings.Join(NPCTypes, ", ")}
	case 1:
		return found[0], nil
	default:
		return "", &InvalidError{Msg: "❌ Multiple NPC types found: " + strings.Join(found, ", ") + ". Please specify only one NPC type."}
	}
}

// RandomCount picks an encounter size in [1,3].
func RandomCount() int { return rand.IntN(3) + 1 }

// Spawner asks the game side to place NPCs.
type Spawner interface {
	Spawn(ctx context.Context, npc string, count int) error
}

// EncounterTimeout bounds one spawn request.
const EncounterTimeout = 10 * time.Second

// EncounterClient calls the local encounter service: GET <BaseURL>/encounter?npc=&count=.
type EncounterClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (ec *EncounterClient) http() *http.Client {
	if ec.HTTPClient != nil {
		return ec.HTTPClient
	}
	return http.DefaultClient
}

// Spawn issues the request; any transport error or non-2xx status is a failure.
func (ec *EncounterClient) Spawn(ctx context.Context, npc string, count int) error {
	ctx, cancel := context.WithTimeout(ctx, EncounterTimeout)
	defer cancel()

	u, err := url.Parse(strings.TrimRight(ec.BaseURL, "/") + "/encounter")
	if err != nil {
		return fmt.Errorf("encounter url: %w", err)
	}
	q := u.Query()
	q.Set("npc", npc)
	q.Set("count", strconv.Itoa(count))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := ec.http().Do(req)
	if err != nil {
		telemetry.CountEncounter("error")
		return fmt.Errorf("encounter request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		telemetry.CountEncounter("rejected")
		return fmt.Errorf("encounter service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	telemetry.CountEncounter("ok")
	return nil
}
