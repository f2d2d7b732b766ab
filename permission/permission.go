// Package permission decides whether a chat user may issue commands.
//
// Rules are evaluated in a fixed order and the first match wins:
//
//  1. blacklisted and not the channel owner: deny
//  2. channel owner or moderator: allow
//  3. whitelist mode: allow only whitelisted users
//  4. mods-only mode: deny
//  5. subs-only mode: allow only subscribers
//  6. otherwise: allow
//
// Whitelist mode is exclusive; when it is on, rules 4 and 5 are never reached.
package permission

import "strings"

// Lists is the membership view the policy consults.
type Lists interface {
	IsBlacklisted(user string) bool
	IsWhitelisted(user string) bool
}

// Rule names the rule that produced a Decision.
type Rule int

const (
	RuleBlacklisted Rule = iota + 1
	RuleOwnerOrMod
	RuleWhitelist
	RuleModsOnly
	RuleSubsOnly
	RuleDefault
)

func (r Rule) String() string {
	switch r {
	case RuleBlacklisted:
		return "blacklisted"
	case RuleOwnerOrMod:
		return "owner_or_mod"
	case RuleWhitelist:
		return "whitelist"
	case RuleModsOnly:
		return "mods_only"
	case RuleSubsOnly:
		return "subs_only"
	case RuleDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Decision is the result of Allow.
type Decision struct {
	Allowed bool
	Rule    Rule
}

// Policy holds the permission modes, fixed for the life of the process.
type Policy struct {
	Owner            string // channel login, lower-case
	ModsOnly         bool
	SubsOnly         bool
	WhitelistEnabled bool
	Lists            Lists
}

// IsOwner reports whether user is the channel owner.
func (p Policy) IsOwner(user string) bool {
	return p.Owner != "" && strings.EqualFold(user, p.Owner)
}

// Allow evaluates the rules for user.
func (p Policy) Allow(user string, isMod, isSub bool) Decision {
	user = strings.ToLower(user)
	owner := p.IsOwner(user)

	if !owner && p.Lists != nil && p.Lists.IsBlacklisted(user) {
		return Decision{false, RuleBlacklisted}
	}
	if owner || isMod {
		return Decision{true, RuleOwnerOrMod}
	}
	if p.WhitelistEnabled {
		return Decision{p.Lists != nil && p.Lists.IsWhitelisted(user), RuleWhitelist}
	}
	if p.ModsOnly {
		return Decision{false, RuleModsOnly}
	}
	if p.SubsOnly {
		return Decision{isSub, RuleSubsOnly}
	}
	return Decision{true, RuleDefault}
}
