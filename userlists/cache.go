// Package userlists holds the whitelist/blacklist membership used by the permission
// engine. The lists live in a JSON file written by the control panel; the panel touches a
// flag file after each write and the relay reloads at most once per poll interval, then
// deletes the flag.
package userlists

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/rolemaster-relay/telemetry"
)

// PollInterval bounds how often the flag file is honoured.
const PollInterval = 5 * time.Second

// Lists is the on-disk shape of user_lists.json.
type Lists struct {
	Whitelist []string `json:"whitelist"`
	Blacklist []string `json:"blacklist"`
}

// Cache is the in-memory view of Lists. Reads and reloads may come from different
// goroutines (session loop, watcher); a reload swaps both sets under the lock.
type Cache struct {
	listsFile string
	flagFile  string
	now       func() time.Time

	mu        sync.RWMutex
	whitelist map[string]struct{}
	blacklist map[string]struct{}
	lastPoll  time.Time
}

// NewCache returns an empty cache bound to the given files. Call Reload to populate it.
func NewCache(listsFile, flagFile string) *Cache {
	return &Cache{
		listsFile: listsFile,
		flagFile:  flagFile,
		now:       time.Now,
		whitelist: map[string]struct{}{},
		blacklist: map[string]struct{}{},
	}
}

// IsBlacklisted reports whether user (any case) is on the blacklist.
func (c *Cache) IsBlacklisted(user string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blacklist[strings.ToLower(user)]
	return ok
}

// IsWhitelisted reports whether user (any case) is on the whitelist.
func (c *Cache) IsWhitelisted(user string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.whitelist[strings.ToLower(user)]
	return ok
}

// Sizes returns the number of whitelisted and blacklisted users.
func (c *Cache) Sizes() (whitelist, blacklist int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.whitelist), len(c.blacklist)
}

// Reload reads the lists file. A missing file yields empty lists; a malformed one leaves
// the current lists in place and returns an error.
func (c *Cache) Reload() error {
	lists, err := ReadLists(c.listsFile)
	if err != nil {
		return err
	}
	wl := toSet(lists.Whitelist)
	bl := toSet(lists.Blacklist)
	c.mu.Lock()
	c.whitelist, c.blacklist = wl, bl
	c.mu.Unlock()
	if telemetry.ListReloads != nil {
		telemetry.ListReloads.Inc()
	}
	slog.Info("user lists loaded", slog.Int("whitelist", len(wl)), slog.Int("blacklist", len(bl)), slog.String("component", "userlists"))
	return nil
}

// Poll reloads the lists if the flag file exists, then removes the flag. Calls closer
// together than PollInterval are no-ops and return false.
func (c *Cache) Poll() (reloaded bool, err error) {
	now := c.now()
	c.mu.Lock()
	if !c.lastPoll.IsZero() && now.Sub(c.lastPoll) < PollInterval {
		c.mu.Unlock()
		return false, nil
	}
	c.lastPoll = now
	c.mu.Unlock()

	if _, err := os.Stat(c.flagFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat flag file: %w", err)
	}
	if err := c.Reload(); err != nil {
		return false, err
	}
	if err := os.Remove(c.flagFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return true, fmt.Errorf("remove flag file: %w", err)
	}
	return true, nil
}

// ReadLists decodes a lists file; a missing file is an empty Lists.
func ReadLists(path string) (Lists, error) {
	var lists Lists
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return lists, nil
		}
		return lists, fmt.Errorf("read user lists: %w", err)
	}
	if err := json.Unmarshal(b, &lists); err != nil {
		return lists, fmt.Errorf("parse user lists %s: %w", path, err)
	}
	return lists, nil
}

func toSet(users []string) map[string]struct{} {
	set := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			set[u] = struct{}{}
		}
	}
	return set
}
