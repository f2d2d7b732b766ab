package userlists

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	dir := t.TempDir()
	return Store{ListsFile: filepath.Join(dir, "user_lists.json"), FlagFile: filepath.Join(dir, "lists_updated.flag")}
}

func TestAddToBlacklist(t *testing.T) {
	s := newTestStore(t)

	added, err := s.AddToBlacklist("  SpamBot ")
	if err != nil || !added {
		t.Fatalf("AddToBlacklist() = %v, %v", added, err)
	}
	if _, err := os.Stat(s.FlagFile); err != nil {
		t.Errorf("flag file not touched: %v", err)
	}

	added, err = s.AddToBlacklist("spambot")
	if err != nil || added {
		t.Errorf("second AddToBlacklist() = %v, %v; want already listed", added, err)
	}

	lists, err := ReadLists(s.ListsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(lists.Blacklist, []string{"spambot"}) {
		t.Errorf("Blacklist = %v", lists.Blacklist)
	}
	if lists.Whitelist == nil {
		t.Errorf("Whitelist should be written as an empty array")
	}
}

func TestAddToBlacklistRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", "has space", "<script>", "averyveryverylongusername_over25"} {
		if _, err := s.AddToBlacklist(name); err == nil {
			t.Errorf("AddToBlacklist(%q) succeeded, want error", name)
		}
	}
}

func TestSetListCleansInput(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddToBlacklist("troll"); err != nil {
		t.Fatal(err)
	}
	lists, err := s.SetList("whitelist", []string{"Zed", "amy", "amy", "bad name", ""})
	if err != nil {
		t.Fatalf("SetList() error: %v", err)
	}
	if !slices.Equal(lists.Whitelist, []string{"amy", "zed"}) {
		t.Errorf("Whitelist = %v, want [amy zed]", lists.Whitelist)
	}
	if !slices.Equal(lists.Blacklist, []string{"troll"}) {
		t.Errorf("Blacklist should be preserved, got %v", lists.Blacklist)
	}
	if _, err := s.SetList("greylist", nil); err == nil {
		t.Errorf("SetList with unknown kind should fail")
	}
}
