package identity

// Standing is the account's moderation state.
type Standing int

const (
	StandingGood Standing = iota
	StandingUnderReview
	StandingSuspended
	StandingBlocked
)

func (s Standing) String() string {
	switch s {
	case StandingGood:
		return "good"
	case StandingUnderReview:
		return "under_review"
	case StandingSuspended:
		return "suspended"
	case StandingBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Restricted reports whether the account may not hold a session.
func (s Standing) Restricted() bool { return s != StandingGood }

// Message is the user-facing explanation for a restricted standing.
func (s Standing) Message() string {
	switch s {
	case StandingUnderReview:
		return "Your account is under review. Please contact support."
	case StandingSuspended:
		return "Your account is temporarily blocked due to repeated violations."
	case StandingBlocked:
		return "Your account is blocked. Please contact support."
	default:
		return ""
	}
}

// StandingPolicy holds the violation thresholds. A zero threshold disables that check.
type StandingPolicy struct {
	ReviewAt  int
	SuspendAt int
}

// DefaultStandingPolicy mirrors the platform's moderation rules.
func DefaultStandingPolicy() StandingPolicy {
	return StandingPolicy{ReviewAt: 2, SuspendAt: 3}
}

// Evaluate returns the standing for id. The stricter rule wins.
func (p StandingPolicy) Evaluate(id *Identity) Standing {
	if id == nil {
		return StandingGood
	}
	switch {
	case id.IsBlocked:
		return StandingBlocked
	case p.SuspendAt > 0 && id.Sticks >= p.SuspendAt:
		return StandingSuspended
	case p.ReviewAt > 0 && id.Sticks >= p.ReviewAt:
		return StandingUnderReview
	default:
		return StandingGood
	}
}
