package engine

// Outcome classifies what happened to one chat line.
type Outcome int

const (
	// OutcomeIgnored means the line was not a command, or was a moderation command from
	// someone without moderation rights.
	OutcomeIgnored Outcome = iota
	// OutcomeDenied means the permission policy rejected the user. Nothing is said in chat.
	OutcomeDenied
	// OutcomeDisabled means the command kind is turned off. Nothing is said in chat.
	OutcomeDisabled
	// OutcomeCooldown means the command arrived inside the cooldown and was dropped.
	OutcomeCooldown
	// OutcomeHelp means a help text was sent.
	OutcomeHelp
	// OutcomeModeration means a moderation command was answered.
	OutcomeModeration
	// OutcomeInvalid means the user got an error and the attempt was counted.
	OutcomeInvalid
	// OutcomeSystemError means the host is missing the executor or its script.
	OutcomeSystemError
	// OutcomeAccepted means the executor ran and exited 0.
	OutcomeAccepted
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDenied:
		return "denied"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeHelp:
		return "help"
	case OutcomeModeration:
		return "moderation"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSystemError:
		return "system_error"
	case OutcomeAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}
