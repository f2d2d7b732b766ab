package dispatch

import (
	"regexp"
	"strings"
)

// MaxTextLength is the longest payload accepted after sanitization.
const MaxTextLength = 1024

var (
	quoteChars   = regexp.MustCompile("['\"`‘’“”‚„«»‹›]")
	dashRuns     = regexp.MustCompile("[_\\-–—]+")
	allowedChars = regexp.MustCompile(`^[a-zA-Z0-9\s.,!?]+$`)
)

// Error texts shown in chat for rejected payloads.
const (
	MsgBadCharacters = "❌ Invalid command format. Only letters, numbers, spaces and basic punctuation are allowed."
	MsgTooLong       = "❌ Command too long. Maximum length is 1024 characters."
)

// Sanitize strips quote characters, turns dash and underscore runs into a single space,
// and validates what is left. The returned error is an *InvalidError.
func Sanitize(text string) (string, error) {
	out := quoteChars.ReplaceAllString(text, "")
	out = dashRuns.ReplaceAllString(out, " ")
	if !allowedChars.MatchString(out) {
		return "", &InvalidError{Msg: MsgBadCharacters}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &InvalidError{Msg: MsgBadCharacters}
	}
	// Only ASCII survives the character check, so bytes equal characters here.
	if len(out) > MaxTextLength {
		return "", &InvalidError{Msg: MsgTooLong}
	}
	return out, nil
}
