package api

import (
	"context"
	"log"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"checkin-billboard-backend/internal/apperr"
	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/mw"
	"checkin-billboard-backend/internal/pickup"
	"checkin-billboard-backend/internal/store"
	"checkin-billboard-backend/internal/upstream"
)

// EventDirectory lists events and their locations.
type EventDirectory interface {
	ListEvents(ctx context.Context, date string) ([]upstream.Event, error)
	ListLocations(ctx context.Context, eventID string) ([]upstream.Location, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	board   *billboard.Store
	pickup  *pickup.Service
	events  EventDirectory
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler. webpushOptions is nil when push is disabled.
func NewHandler(board *billboard.Store, svc *pickup.Service, events EventDirectory, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		board:   board,
		pickup:  svc,
		events:  events,
		store:   s,
		webpush: webpushOptions,
	}
}

// writeError converts err to its status and a caller-safe message.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind != apperr.KindValidation {
		log.Printf("[%s] %s %s failed (%s): %v", mw.GetRequestID(c), c.Request.Method, c.FullPath(), kind, err)
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"error": apperr.Message(err)})
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, apperr.Validation(msg))
}
