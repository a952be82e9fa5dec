package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"totpattend/internal/attendance"
	"totpattend/internal/checkin"
	"totpattend/internal/feed"
)

// Validator validates a token for a meeting.
type Validator interface {
	Validate(ctx context.Context, token, meetingID string) (checkin.Result, error)
}

// AttendanceLister lists recorded attendance for a meeting.
type AttendanceLister interface {
	List(ctx context.Context, meetingID string) ([]attendance.Record, error)
}

// Invalidator drops cached roster state.
type Invalidator interface {
	Invalidate()
}

// Pinger reports the health of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the attendance API.
type Handler struct {
	checkin Validator
	records AttendanceLister
	feed    feed.Feed
	roster  Invalidator
	health  map[string]Pinger
	logger  *slog.Logger
}

// NewHandler wires the API handlers. recent may be nil when no feed is configured.
func NewHandler(v Validator, records AttendanceLister, recent feed.Feed, roster Invalidator, health map[string]Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{checkin: v, records: records, feed: recent, roster: roster, health: health, logger: logger}
}

type validateRequest struct {
	Token       string `json:"token"`
	PertemuanID string `json:"pertemuanId"`
}

type userView struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	NRP  *string `json:"nrp,omitempty"`
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "message": msg})
}

// maxValidateBody caps the {token, pertemuanId} body of the public endpoint.
const maxValidateBody = 4 << 10

// Validate handles POST /v1/attendance/validate.
func (h *Handler) Validate(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxValidateBody)
	}
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.checkin.Validate(c.Request.Context(), req.Token, req.PertemuanID)
	switch {
	case err == nil:
	case errors.Is(err, checkin.ErrBadRequest):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, checkin.ErrNoMatch):
		fail(c, http.StatusUnauthorized, checkin.ErrNoMatch.Error())
		return
	case errors.Is(err, checkin.ErrTimeout):
		fail(c, http.StatusGatewayTimeout, "request timed out")
		return
	default:
		h.logger.Error("validate failed", "meeting_id", req.PertemuanID, "err", err)
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  res.Status,
		"user":    userView{ID: res.User.ID, Name: res.User.Name, NRP: res.User.NRP},
	})
}

// Healthz reports the state of every configured dependency.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	for name, p := range h.health {
		if err := p.Ping(c.Request.Context()); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "err", err)
			checks[name] = false
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = true
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// MeetingAttendance lists the attendance rows of a meeting.
func (h *Handler) MeetingAttendance(c *gin.Context) {
	meetingID := c.Param("id")
	records, err := h.records.List(c.Request.Context(), meetingID)
	if err != nil {
		h.logger.Error("list attendance failed", "meeting_id", meetingID, "err", err)
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meeting_id": meetingID, "attendance": records})
}

// RecentCheckins returns the newest check-ins of a meeting, newest first.
func (h *Handler) RecentCheckins(c *gin.Context) {
	if h.feed == nil {
		fail(c, http.StatusServiceUnavailable, "recent feed not configured")
		return
	}
	meetingID := c.Param("id")
	limit := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	events, err := h.feed.Recent(c.Request.Context(), meetingID, limit)
	if err != nil {
		h.logger.Error("read feed failed", "meeting_id", meetingID, "err", err)
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meeting_id": meetingID, "events": events})
}

// RefreshRoster drops the cached roster so the next validation refetches it.
func (h *Handler) RefreshRoster(c *gin.Context) {
	h.roster.Invalidate()
	h.logger.Info("roster cache invalidated", "by", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"success": true})
}
