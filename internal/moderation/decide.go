package moderation

// Action is the moderation verdict derived from a ScoreSet.
type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionFlag  Action = "FLAG"
	ActionBlock Action = "BLOCK"

	// ActionUnknown is shown when no scores are available. It is not a verdict.
	ActionUnknown Action = "UNKNOWN"
)

const (
	BlockThreshold = 0.8
	FlagThreshold  = 0.5
)

// Valid reports whether a is one of ALLOW, FLAG or BLOCK.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionFlag, ActionBlock:
		return true
	default:
		return false
	}
}

// Decide maps the highest category score onto a moderation action. Boundaries are
// exclusive on the upper side: 0.8 is FLAG and 0.5 is ALLOW.
func Decide(scores ScoreSet) Action {
	m, ok := scores.Max()
	if !ok {
		return ActionUnknown
	}
	switch {
	case m > BlockThreshold:
		return ActionBlock
	case m > FlagThreshold:
		return ActionFlag
	default:
		return ActionAllow
	}
}

// DecideResult is Decide for an optional result; nil yields ActionUnknown.
func DecideResult(result *ClassificationResult) Action {
	if result == nil {
		return ActionUnknown
	}
	return Decide(result.Scores)
}
