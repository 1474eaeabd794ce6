package domain

import (
	"time"
)

type State int

const (
	StateNone State = iota
	StateLoginChoice
	StateCredential
	StateSecret
	StateOTP
	StateBatch
	StateContentType
	StateExtracting
	StateUpload
)

func (s State) String() string {
	switch s {
	case StateLoginChoice:
		return "login_choice"
	case StateCredential:
		return "credential"
	case StateSecret:
		return "secret"
	case StateOTP:
		return "otp"
	case StateBatch:
		return "batch"
	case StateContentType:
		return "content_type"
	case StateExtracting:
		return "extracting"
	case StateUpload:
		return "upload"
	default:
		return "none"
	}
}

type LoginMethod string

const (
	LoginToken    LoginMethod = "token"
	LoginPassword LoginMethod = "password"
	LoginOTP      LoginMethod = "otp"
)

// Session is the state of one chat's dialogue. It lives only in memory and
// is dropped on completion, error or inactivity.
type Session struct {
	ID       string
	ChatID   int64
	UserID   int64
	Platform string
	State    State

	Method     LoginMethod
	Identifier string
	Token      string `masq:"secret"`

	Batches     []BatchSummary
	Batch       *BatchSummary
	Subjects    []SubjectSummary
	ContentType string

	StartedAt    time.Time
	LastActivity time.Time
}

func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.LastActivity) > timeout
}
