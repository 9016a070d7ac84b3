package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-collab/internal/audit"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/registry"
	"github.com/weiawesome/wes-io-collab/internal/service"
	"github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/response"
)

// LiveState answers questions about rooms held by this instance.
type LiveState interface {
	UsernamesOf(ctx context.Context, roomID string) ([]string, error)
	MetricsFor(ctx context.Context, roomID string) (domain.RoomMetrics, error)
	Records(ctx context.Context, roomID string) ([]domain.AggregateRecord, error)
	ResetAnalytics(ctx context.Context, roomID string) error
}

// HostLocator finds the instance hosting a room.
type HostLocator interface {
	Lookup(ctx context.Context, roomID string) (string, error)
}

// Handler serves the REST API.
type Handler struct {
	rooms     service.RoomService
	messages  service.MessageService
	analytics service.AnalyticsService
	canvas    service.CanvasService
	live      LiveState
	hosts     HostLocator
}

// NewHandler builds the REST handler. hosts may be nil when no registry is configured.
func NewHandler(
	rooms service.RoomService,
	messages service.MessageService,
	analytics service.AnalyticsService,
	canvas service.CanvasService,
	live LiveState,
	hosts HostLocator,
) *Handler {
	return &Handler{
		rooms:     rooms,
		messages:  messages,
		analytics: analytics,
		canvas:    canvas,
		live:      live,
		hosts:     hosts,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			rooms.POST("", h.CreateRoom)
			rooms.GET("", h.ListRooms)
			rooms.GET("/user/:username", h.ListUserRooms)
			rooms.GET("/:id", h.GetRoom)
			rooms.GET("/:id/host", h.GetRoomHost)
			rooms.GET("/:id/messages", h.GetMessages)
			rooms.GET("/:id/metrics", h.GetMetrics)
			rooms.GET("/:id/analytics", h.GetAnalytics)
			rooms.GET("/:id/analytics/history", h.GetAnalyticsHistory)
			rooms.DELETE("/:id/analytics", h.ResetAnalytics)
			rooms.GET("/:id/canvas", h.GetCanvas)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.rooms.CreateRoom(ctx, &req)
	if err != nil {
		if errors.Is(err, service.ErrRoomExists) {
			response.Conflict(c, "room already exists")
			return
		}
		l.Error().Err(err).Msg("failed to create room")
		response.InternalError(c, "failed to create room")
		return
	}

	audit.Log(ctx, audit.Entry{Action: audit.ActionCreateRoom, RoomID: room.ID, Username: room.CreatedBy}, "room created")
	response.Created(c, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)

	result, err := h.rooms.ListRooms(ctx, page, pageSize)
	if err != nil {
		l.Error().Err(err).Msg("failed to list rooms")
		response.InternalError(c, "failed to list rooms")
		return
	}
	response.Success(c, result)
}

// ListUserRooms returns the active rooms a user created, most recently active first.
func (h *Handler) ListUserRooms(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	username := c.Param("username")

	rooms, err := h.rooms.ListRoomsByCreator(ctx, username)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to list user rooms")
		response.InternalError(c, "failed to list user rooms")
		return
	}
	response.Success(c, rooms)
}

// GetRoom returns the stored room plus the usernames connected here.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	roomID := c.Param("id")

	room, err := h.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Msg("failed to get room")
		response.InternalError(c, "failed to get room")
		return
	}

	usernames, err := h.live.UsernamesOf(ctx, roomID)
	if err != nil {
		l.Warn().Err(err).Msg("failed to read room presence")
	}
	response.Success(c, domain.RoomResponse{Room: *room, Usernames: usernames})
}

func (h *Handler) GetRoomHost(c *gin.Context) {
	ctx := c.Request.Context()
	if h.hosts == nil {
		response.ServiceUnavailable(c, "room registry is not configured")
		return
	}

	roomID := c.Param("id")
	addr, err := h.hosts.Lookup(ctx, roomID)
	if err != nil {
		if errors.Is(err, registry.ErrRoomNotHosted) {
			response.NotFound(c, "room is not active on any instance")
			return
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to look up room host")
		response.InternalError(c, "failed to look up room host")
		return
	}
	response.Success(c, gin.H{"room_id": roomID, "address": addr})
}

func (h *Handler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()

	msgs, err := h.messages.GetHistory(ctx, c.Param("id"), queryInt(c, "limit", service.DefaultHistoryLimit))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to get chat history")
		response.InternalError(c, "failed to get chat history")
		return
	}
	response.Success(c, gin.H{"messages": msgs})
}

func (h *Handler) GetMetrics(c *gin.Context) {
	ctx := c.Request.Context()

	m, err := h.live.MetricsFor(ctx, c.Param("id"))
	if err != nil {
		h.liveUnavailable(c, err)
		return
	}
	response.Success(c, m)
}

func (h *Handler) GetAnalytics(c *gin.Context) {
	ctx := c.Request.Context()

	recs, err := h.live.Records(ctx, c.Param("id"))
	if err != nil {
		h.liveUnavailable(c, err)
		return
	}
	response.Success(c, gin.H{"records": recs})
}

// GetAnalyticsHistory serves persisted events together with the last
// stored metrics snapshot, if any.
func (h *Handler) GetAnalyticsHistory(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	roomID := c.Param("id")

	events, err := h.analytics.GetHistory(ctx, roomID, queryInt(c, "limit", service.DefaultHistoryLimit))
	if err != nil {
		l.Error().Err(err).Msg("failed to get analytics history")
		response.InternalError(c, "failed to get analytics history")
		return
	}

	snapshot, err := h.analytics.GetSnapshot(ctx, roomID)
	if err != nil && !errors.Is(err, service.ErrSnapshotNotFound) {
		l.Warn().Err(err).Msg("failed to get analytics snapshot")
	}
	response.Success(c, gin.H{"events": events, "snapshot": snapshot})
}

func (h *Handler) ResetAnalytics(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.live.ResetAnalytics(ctx, c.Param("id")); err != nil {
		h.liveUnavailable(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) GetCanvas(c *gin.Context) {
	ctx := c.Request.Context()

	snap, err := h.canvas.GetLatest(ctx, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCanvasNotFound):
			response.NotFound(c, "no canvas saved for room")
		case errors.Is(err, service.ErrInvalidRoomID):
			response.BadRequest(c, err.Error())
		default:
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("failed to load canvas")
			response.InternalError(c, "failed to load canvas")
		}
		return
	}

	c.Header("X-Canvas-Key", snap.Key)
	c.Header("Last-Modified", snap.SavedAt.UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, "application/json", snap.State)
}

func (h *Handler) liveUnavailable(c *gin.Context, err error) {
	l := log.Ctx(c.Request.Context())
	l.Warn().Err(err).Msg("coordinator query failed")
	response.ServiceUnavailable(c, "coordinator unavailable")
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
