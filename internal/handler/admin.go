package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/service"
	"github.com/set-night/batchtxt/internal/telegram"
)

// handleStats shows live sessions and extraction outcomes. Admins only;
// everyone else gets no answer.
func (h *Handler) handleStats(ctx context.Context, api telegram.API, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if !h.cfg.IsAdmin(update.Message.From.ID) {
		return
	}
	chatID := update.Message.Chat.ID

	perPlatform, busy := h.sessions.Stats()
	keys := make([]string, 0, len(perPlatform))
	total := 0
	for k, n := range perPlatform {
		keys = append(keys, k)
		total += n
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Sessions: %d (extracting: %d)\n", total, busy)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %d\n", k, perPlatform[k])
	}

	if h.metrics != nil {
		totals, err := h.metrics.ExtractionTotals()
		if err != nil {
			slog.Error("failed to read extraction totals", "error", err)
		} else {
			fmt.Fprintf(&b, "\nExtractions: %.0f ok, %.0f empty, %.0f auth, %.0f error",
				totals[service.OutcomeOK], totals[service.OutcomeEmpty],
				totals[service.OutcomeAuth], totals[service.OutcomeError])
		}
	}

	h.reply(ctx, api, chatID, b.String(), false, nil)
}
