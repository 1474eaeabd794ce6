package config

import "time"

const (
	// Telegram limits
	MaxTelegramMessageLen = 4096
	MaxCaptionLen         = 1024

	// Batches shown per inline keyboard page
	BatchesPerPage = 8

	// Rate limits (per chat)
	RateLimitPerMinute = 20
	RateLimitBurst     = 5
	RateLimiterIdle    = 10 * time.Minute

	// Expired session sweep interval
	SessionSweepInterval = 30 * time.Second

	// Audit delivery timeout
	AuditSendTimeout = 10 * time.Second

	// Max accepted size of an uploaded txt report
	MaxUploadBytes = 20 << 20

	// Server timeouts
	ServerReadTimeout  = 15 * time.Second
	ServerWriteTimeout = 15 * time.Second
	ShutdownTimeout    = 10 * time.Second
)
