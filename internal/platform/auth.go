package platform

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/domain"
)

// CredentialSeparator splits "identifier*secret" inputs.
const CredentialSeparator = "*"

// Credential is a parsed credential message.
type Credential struct {
	Method     domain.LoginMethod
	Identifier string
	Secret     string `masq:"secret"`
}

// ParseCredential reads a raw token or an "identifier*secret" pair. Only
// the first separator splits, so secrets may contain it.
func ParseCredential(input string) Credential {
	input = strings.TrimSpace(input)
	if id, secret, ok := strings.Cut(input, CredentialSeparator); ok {
		return Credential{
			Method:     domain.LoginPassword,
			Identifier: strings.TrimSpace(id),
			Secret:     secret,
		}
	}
	return Credential{Method: domain.LoginToken, Secret: input}
}

// IsPhone reports whether input looks like a phone number for OTP login.
func IsPhone(input string) bool {
	input = strings.TrimPrefix(strings.TrimSpace(input), "+")
	if len(input) < 10 || len(input) > 13 {
		return false
	}
	for _, r := range input {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// LoginSpec describes an identifier/secret login endpoint.
type LoginSpec struct {
	Path string
	JSON bool
	Body func(id, secret string) map[string]string
	// Token is the gjson path of the issued token.
	Token string
	// Accept optionally inspects a 2xx body before the token is read.
	Accept func(r *Response) bool
}

// OTPSpec describes a two-call phone/OTP exchange.
type OTPSpec struct {
	SendPath   string
	SendBody   func(phone string) map[string]any
	VerifyPath string
	VerifyBody func(phone, otp string) map[string]any
	Token      string
}

// Login trades an identifier and secret for a token.
func (c *Client) Login(ctx context.Context, id, secret string) (string, error) {
	spec := c.p.Login
	if spec == nil {
		return "", goerr.Wrap(domain.ErrLoginFailed, "platform has no password login",
			goerr.T(domain.TagAuthFailure), goerr.V("platform", c.p.Key))
	}

	if id == "" || secret == "" {
		return "", goerr.Wrap(domain.ErrLoginFailed, "empty identifier or secret",
			goerr.T(domain.TagAuthFailure), goerr.V("platform", c.p.Key))
	}

	fields := spec.Body(id, secret)
	var (
		resp *Response
		err  error
	)
	if spec.JSON {
		resp, err = c.PostJSON(ctx, spec.Path, fields)
	} else {
		form := url.Values{}
		for k, v := range fields {
			form.Set(k, v)
		}
		resp, err = c.PostForm(ctx, spec.Path, form)
	}
	if err != nil {
		return "", err
	}

	if !resp.OK() || (spec.Accept != nil && !spec.Accept(resp)) {
		return "", goerr.Wrap(domain.ErrLoginFailed, "login rejected",
			goerr.T(domain.TagAuthFailure),
			goerr.V("platform", c.p.Key),
			goerr.V("status", resp.Status))
	}

	token := resp.JSON.Get(spec.Token).String()
	if token == "" {
		return "", goerr.Wrap(domain.ErrLoginFailed, "token missing from login response",
			goerr.T(domain.TagAuthFailure),
			goerr.V("platform", c.p.Key))
	}
	return token, nil
}

// SendOTP asks the platform to deliver an OTP to phone.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	spec := c.p.OTP
	if spec == nil {
		return goerr.Wrap(domain.ErrOTPRejected, "platform has no otp login",
			goerr.T(domain.TagAuthFailure), goerr.V("platform", c.p.Key))
	}

	resp, err := c.PostJSON(ctx, spec.SendPath, spec.SendBody(phone))
	if err != nil {
		return err
	}
	if !resp.OK() {
		return goerr.Wrap(domain.ErrOTPRejected, "otp request rejected",
			goerr.T(domain.TagAuthFailure),
			goerr.V("platform", c.p.Key),
			goerr.V("status", resp.Status))
	}
	return nil
}

// VerifyOTP trades phone and otp for a token.
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (string, error) {
	spec := c.p.OTP
	if spec == nil {
		return "", goerr.Wrap(domain.ErrOTPRejected, "platform has no otp login",
			goerr.T(domain.TagAuthFailure), goerr.V("platform", c.p.Key))
	}

	resp, err := c.PostJSON(ctx, spec.VerifyPath, spec.VerifyBody(phone, strings.TrimSpace(otp)))
	if err != nil {
		return "", err
	}
	token := resp.JSON.Get(spec.Token).String()
	if !resp.OK() || token == "" {
		return "", goerr.Wrap(domain.ErrOTPRejected, "otp verification failed",
			goerr.T(domain.TagAuthFailure),
			goerr.V("platform", c.p.Key),
			goerr.V("status", resp.Status))
	}
	return token, nil
}
