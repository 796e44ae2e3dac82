package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
)

// DashboardHandler exposes channel statistics for the authenticated user.
type DashboardHandler struct {
	Stats StatsProvider
}

// ChannelStats handles GET /api/v1/dashboard/stats.
func (h DashboardHandler) ChannelStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := h.Stats.ChannelStats(ctx, user.ID)
	if err != nil {
		logger.Error("channel stats failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load channel stats")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "channel stats", stats)
}
