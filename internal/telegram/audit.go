package telegram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/config"
	"github.com/set-night/batchtxt/internal/domain"
)

// Sender is the part of the bot API the audit logger needs.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type AuditType string

const (
	AuditLogin      AuditType = "login"
	AuditExtraction AuditType = "extraction"
	AuditError      AuditType = "error"
)

// AuditLogger mirrors activity to the operator chat, one forum topic per
// record type. It never sees raw secrets: identifiers are masked and tokens
// reduced to a fingerprint before they reach it.
type AuditLogger struct {
	sender Sender
	cfg    *config.Config
	now    func() time.Time
}

func NewAuditLogger(s Sender, cfg *config.Config) *AuditLogger {
	return &AuditLogger{sender: s, cfg: cfg, now: time.Now}
}

// Enabled reports whether an audit chat is configured.
func (l *AuditLogger) Enabled() bool {
	return l != nil && l.cfg.AuditChatID != 0
}

func (l *AuditLogger) Log(t AuditType, message string) {
	if !l.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.AuditSendTimeout)
	defer cancel()

	params := &bot.SendMessageParams{
		ChatID:          l.cfg.AuditChatID,
		Text:            Truncate(message, config.MaxTelegramMessageLen),
		ParseMode:       models.ParseModeMarkdown,
		MessageThreadID: l.topicID(t),
	}
	if _, err := l.sender.SendMessage(ctx, params); err != nil {
		slog.Warn("audit markdown rejected, retrying as plain text", "type", t, "error", err)
		params.ParseMode = ""
		if _, err := l.sender.SendMessage(ctx, params); err != nil {
			slog.Error("failed to send audit record", "type", t, "error", err)
		}
	}
}

// Actor identifies the Telegram user behind a record.
type Actor struct {
	UserID   int64
	Username string
}

func (a Actor) String() string {
	if a.Username != "" {
		return fmt.Sprintf("%d (@%s)", a.UserID, a.Username)
	}
	return fmt.Sprintf("%d", a.UserID)
}

type LoginRecord struct {
	Platform   string
	Actor      Actor
	Method     domain.LoginMethod
	Identifier string
	Token      string `masq:"secret"`
	Err        error
}

func (l *AuditLogger) LogLogin(r LoginRecord) {
	if !l.Enabled() {
		return
	}
	status := "✅ *Login*"
	if r.Err != nil {
		status = "⚠️ *Login failed*"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n*Platform:* %s\n*User:* %s\n*Method:* %s",
		status, Esc(strings.ToUpper(r.Platform)), Esc(r.Actor.String()), Esc(string(r.Method)))
	if r.Identifier != "" {
		fmt.Fprintf(&b, "\n*Identifier:* %s", Code(MaskIdentifier(r.Identifier)))
	}
	if r.Token != "" {
		fmt.Fprintf(&b, "\n*Token:* %s", Code(Fingerprint(r.Token)))
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "\n*Reason:* %s", Esc(domain.KindOf(r.Err).String()))
	}
	l.Log(AuditLogin, b.String())
}

type ExtractionRecord struct {
	Platform    string
	Actor       Actor
	BatchID     string
	BatchName   string
	ContentType string
	Items       int
	Elapsed     time.Duration
	FileName    string
}

func (l *AuditLogger) LogExtraction(r ExtractionRecord) {
	if !l.Enabled() {
		return
	}
	msg := fmt.Sprintf("📦 *%s content extracted and sent to user*\n\n"+
		"*User:* %s\n*Batch:* %s %s\n*Content Type:* %s\n*Items:* %d\n*File:* %s\n*Extraction time:* %s",
		Esc(strings.ToUpper(r.Platform)),
		Esc(r.Actor.String()),
		Code(r.BatchID), Esc(r.BatchName),
		Code(orDash(r.ContentType)),
		r.Items,
		Code(r.FileName),
		Esc(FormatElapsed(r.Elapsed)))
	l.Log(AuditExtraction, msg)
}

// LogConversion records a txt to html conversion.
func (l *AuditLogger) LogConversion(actor Actor, links int) {
	if !l.Enabled() {
		return
	}
	msg := fmt.Sprintf("🕸 *HTML conversion*\n\n*User:* %s\n*Links:* %d", Esc(actor.String()), links)
	l.Log(AuditExtraction, msg)
}

func (l *AuditLogger) LogError(err error, where string) {
	if !l.Enabled() {
		return
	}
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Kind:* %s\n*Error:* %s\n*Time:* %s",
		Esc(where),
		Esc(domain.KindOf(err).String()),
		Code(err.Error()),
		Esc(l.now().Format("2006-01-02 15:04:05")))
	l.Log(AuditError, msg)
}

func (l *AuditLogger) topicID(t AuditType) int {
	switch t {
	case AuditLogin:
		return l.cfg.AuditTopicLogin
	case AuditExtraction:
		return l.cfg.AuditTopicExtraction
	case AuditError:
		return l.cfg.AuditTopicError
	default:
		return 0
	}
}

// FormatElapsed renders a duration the way captions show it: "1.23 seconds".
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}

// MaskIdentifier keeps the first and last two characters of the local part
// of an email or of a phone number, e.g. "jo***ne@example.com".
func MaskIdentifier(id string) string {
	local, domainPart, isEmail := strings.Cut(id, "@")
	r := []rune(local)
	var masked string
	if len(r) <= 4 {
		masked = strings.Repeat("*", len(r))
	} else {
		masked = string(r[:2]) + strings.Repeat("*", len(r)-4) + string(r[len(r)-2:])
	}
	if isEmail {
		return masked + "@" + domainPart
	}
	return masked
}

// Fingerprint digests a token so records can be correlated without
// holding it.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:6])
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
