package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"communityd/internal/auth"
	"communityd/internal/observability"
)

// CleanupHandler sweeps expired password-reset tokens and stale failure
// counters. Meant to be hit by a cron job; disabled unless a cron secret is
// configured. The sweep never changes validity semantics: everything it
// deletes is already treated as invalid or inert.
type CleanupHandler struct {
	repo       *auth.Repository
	logger     *observability.Logger
	cronSecret string
	batchSize  int
}

func NewCleanupHandler(repo *auth.Repository, logger *observability.Logger, cronSecret string, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		repo:       repo,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	now := time.Now().UnixMilli()

	deletedTokens, err := h.repo.DeleteExpiredResetTokens(r.Context(), now, h.batchSize)
	if err != nil {
		h.logger.Error("cleanup_reset_tokens_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	clearedCounters, err := h.repo.ClearStaleFailureCounters(r.Context(), now-auth.LockDuration)
	if err != nil {
		h.logger.Error("cleanup_failure_counters_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("cleanup_completed", map[string]any{
		"deleted_reset_tokens":     deletedTokens,
		"cleared_failure_counters": clearedCounters,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                   "ok",
		"deleted_reset_tokens":     deletedTokens,
		"cleared_failure_counters": clearedCounters,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
