package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"checkin-billboard-backend/internal/parse"
	"checkin-billboard-backend/internal/pickup"
)

// GetActiveNotifications handles GET /active-notifications.
func (h *Handler) GetActiveNotifications(c *gin.Context) {
	notifications, err := h.pickup.ListActiveNotifications(c.Request.Context(), c.Query("eventId"), c.Query("eventDate"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

type securityCodeEntryRequest struct {
	SecurityCode string `json:"securityCode"`
	EventID      string `json:"eventId"`
	EventDate    string `json:"eventDate"`
}

// SubmitSecurityCode handles POST /security-code-entry. An unknown code is a
// 200 with success false so kiosks can show it without an error banner.
func (h *Handler) SubmitSecurityCode(c *gin.Context) {
	var req securityCodeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.pickup.SubmitSecurityCode(c.Request.Context(), req.SecurityCode, req.EventID, req.EventDate)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type securityCodesRequest struct {
	EventID       string   `json:"eventId"`
	SecurityCodes []string `json:"securityCodes"`
}

// LookupSecurityCodes handles POST /security-codes.
func (h *Handler) LookupSecurityCodes(c *gin.Context) {
	var req securityCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	results, err := h.pickup.LookupCodes(c.Request.Context(), req.EventID, req.SecurityCodes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetCheckIns handles GET /billboard/check-ins.
func (h *Handler) GetCheckIns(c *gin.Context) {
	checkIns, err := h.pickup.CheckIns(c.Request.Context(), c.Query("eventId"), c.DefaultQuery("locationId", pickup.AllLocations), c.Query("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkIns)
}

// GetLocationSnapshots handles GET /billboard/locations.
func (h *Handler) GetLocationSnapshots(c *gin.Context) {
	snapshots, err := h.pickup.LocationSnapshots(c.Request.Context(), c.Query("eventId"), c.Query("date"), c.DefaultQuery("locationId", pickup.AllLocations))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

// GetEventsByDate handles GET /events-by-date.
func (h *Handler) GetEventsByDate(c *gin.Context) {
	date := c.Query("date")
	if _, err := parse.EventDate(date); err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	events, err := h.events.ListEvents(c.Request.Context(), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetEventLocations handles GET /events/:id/locations.
func (h *Handler) GetEventLocations(c *gin.Context) {
	locations, err := h.events.ListLocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, locations)
}
