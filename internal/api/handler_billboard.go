package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/mw"
)

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 200
)

// GetGlobalBillboard handles GET /global-billboard. No active billboard is
// a null value, not an error.
func (h *Handler) GetGlobalBillboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"activeBillboard": h.board.Active()})
}

// SetGlobalBillboard handles POST /set-global-billboard. The body replaces
// the whole billboard.
func (h *Handler) SetGlobalBillboard(c *gin.Context) {
	var req billboard.SetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	snap, err := h.board.Set(c.Request.Context(), req, mw.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "activeBillboard": snap})
}

// SoftClearGlobalBillboard handles POST /clear-global-billboard. The global
// billboard is left in place; the caller hides it locally.
func (h *Handler) SoftClearGlobalBillboard(c *gin.Context) {
	h.board.RecordSoftClear(c.Request.Context(), mw.Actor(c))
	c.JSON(http.StatusOK, gin.H{"success": true, "scope": "local"})
}

// DeleteGlobalBillboard handles DELETE /global-billboard.
func (h *Handler) DeleteGlobalBillboard(c *gin.Context) {
	h.board.Clear(c.Request.Context(), mw.Actor(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetAudit handles GET /global-billboard/audit.
func (h *Handler) GetAudit(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := h.store.ListAudit(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "activeBillboard": h.board.Active() != nil})
}
