package domain

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrLoginFailed  = errors.New("login failed")
	ErrOTPRejected  = errors.New("otp rejected")
	ErrNoBatches    = errors.New("no batches found")
	ErrNoSubjects   = errors.New("no subjects found")
	ErrNoContent    = errors.New("no content found")
	ErrSessionBusy  = errors.New("extraction in progress")
	ErrSessionGone  = errors.New("session ended")
	ErrPlatformOff  = errors.New("platform disabled")
)

// Tags classify errors into the kinds the chat presenter understands.
var (
	TagAuthFailure = goerr.NewTag("auth_failure")
	TagUpstream    = goerr.NewTag("upstream_unavailable")
	TagEmptyResult = goerr.NewTag("empty_result")
)

type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindAuthFailure
	KindUpstreamUnavailable
	KindEmptyResult
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthFailure:
		return "auth_failure"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "unexpected"
	}
}

// KindOf resolves the kind of err. Tags win over sentinels; anything
// unrecognised is KindUnexpected.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnexpected
	case goerr.HasTag(err, TagAuthFailure):
		return KindAuthFailure
	case goerr.HasTag(err, TagEmptyResult):
		return KindEmptyResult
	case goerr.HasTag(err, TagUpstream):
		return KindUpstreamUnavailable
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrLoginFailed), errors.Is(err, ErrOTPRejected):
		return KindAuthFailure
	case errors.Is(err, ErrNoBatches), errors.Is(err, ErrNoSubjects), errors.Is(err, ErrNoContent):
		return KindEmptyResult
	default:
		return KindUnexpected
	}
}
