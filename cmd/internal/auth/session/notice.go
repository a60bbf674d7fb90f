package session

import "time"

// NoticeKind classifies user-facing session notices.
type NoticeKind string

const (
	NoticeAlreadyAuthenticated NoticeKind = "already_authenticated"
	NoticeLoggedIn             NoticeKind = "logged_in"
	NoticeAccountRestricted    NoticeKind = "account_restricted"
	NoticeSessionEnded         NoticeKind = "session_ended"
	NoticeRealtimeDegraded     NoticeKind = "realtime_degraded"
	NoticeRealtimeRestored     NoticeKind = "realtime_restored"
)

// Notice is an informational message for the user interface.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message,omitempty"`
	At      time.Time  `json:"at"`
}

// LoginOutcome is the result of Login.
type LoginOutcome int

const (
	OutcomeFailed LoginOutcome = iota
	OutcomeLoggedIn
	OutcomeAlreadyAuthenticated
	OutcomeRestricted
)

func (o LoginOutcome) String() string {
	switch o {
	case OutcomeLoggedIn:
		return "logged_in"
	case OutcomeAlreadyAuthenticated:
		return "already_authenticated"
	case OutcomeRestricted:
		return "restricted"
	default:
		return "failed"
	}
}

// notify never blocks; a full buffer drops the notice.
func (c *Controller) notify(kind NoticeKind, msg string) {
	n := Notice{Kind: kind, Message: msg, At: c.now().UTC()}
	select {
	case c.notices <- n:
	default:
		c.log.Warn("session.notice.drop", "kind", string(kind))
	}
}
