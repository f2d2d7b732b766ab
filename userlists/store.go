package userlists

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{1,25}$`)

// Store is the write side of the lists file, used by the admin tooling. Every successful
// write touches the flag file so a running relay reloads.
type Store struct {
	ListsFile string
	FlagFile  string
}

// NormalizeUsername trims and lower-cases name and reports whether it is a valid Twitch
// login.
func NormalizeUsername(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	return name, usernamePattern.MatchString(name)
}

// AddToBlacklist appends user to the blacklist. added is false when the user was
// already listed.
func (s Store) AddToBlacklist(user string) (added bool, err error) {
	name, ok := NormalizeUsername(user)
	if !ok {
		return false, fmt.Errorf("invalid username format: %q", user)
	}
	lists, err := ReadLists(s.ListsFile)
	if err != nil {
		return false, err
	}
	if slices.Contains(lists.Blacklist, name) {
		return false, nil
	}
	lists.Blacklist = append(lists.Blacklist, name)
	return true, s.write(lists)
}

// SetList replaces the named list ("whitelist" or "blacklist"). Invalid names are dropped
// silently, the rest are de-duplicated and sorted. It returns the stored lists.
func (s Store) SetList(kind string, users []string) (Lists, error) {
	lists, err := ReadLists(s.ListsFile)
	if err != nil {
		return lists, err
	}
	var cleaned []string
	for _, u := range users {
		if name, ok := NormalizeUsername(u); ok {
			cleaned = append(cleaned, name)
		}
	}
	slices.Sort(cleaned)
	cleaned = slices.Compact(cleaned)
	switch kind {
	case "whitelist":
		lists.Whitelist = cleaned
	case "blacklist":
		lists.Blacklist = cleaned
	default:
		return lists, fmt.Errorf("invalid list type %q", kind)
	}
	return lists, s.write(lists)
}

func (s Store) write(lists Lists) error {
	if lists.Whitelist == nil {
		lists.Whitelist = []string{}
	}
	if lists.Blacklist == nil {
		lists.Blacklist = []string{}
	}
	slices.Sort(lists.Whitelist)
	slices.Sort(lists.Blacklist)
	b, err := json.Marshal(lists)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.ListsFile, b, 0o644); err != nil {
		return fmt.Errorf("write user lists: %w", err)
	}
	if err := os.WriteFile(s.FlagFile, []byte(time.Now().Format(time.DateTime)), 0o644); err != nil {
		return fmt.Errorf("touch flag file: %w", err)
	}
	return nil
}
