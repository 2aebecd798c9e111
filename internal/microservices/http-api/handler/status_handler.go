package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"robotbridge/internal/executor"
	"robotbridge/internal/journal"
	"robotbridge/internal/microservices/http-api/dto"
	"robotbridge/internal/microservices/tcp"
)

const defaultCommandsLimit = 50

type SessionSource interface {
	Sessions() []tcp.SessionInfo
	LogAttached() bool
}

type QueueSource interface {
	Len() int
}

type ConsumerSource interface {
	Stats() executor.Stats
}

type StatusHandler struct {
	sessions SessionSource
	queue    QueueSource
	consumer ConsumerSource
	journal  journal.Journal
	started  time.Time
}

func NewStatusHandler(sessions SessionSource, queue QueueSource, consumer ConsumerSource, j journal.Journal) *StatusHandler {
	return &StatusHandler{
		sessions: sessions,
		queue:    queue,
		consumer: consumer,
		journal:  j,
		started:  time.Now(),
	}
}

// RegisterRoutes registers the status routes under /api
func (h *StatusHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sessions", h.GetSessions)
	rg.GET("/queue", h.GetQueue)
	rg.GET("/commands", h.GetCommands)
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		LogAttached:   h.sessions.LogAttached(),
	})
}

func (h *StatusHandler) GetSessions(c *gin.Context) {
	sessions := h.sessions.Sessions()
	c.JSON(http.StatusOK, dto.SessionsResponse{Count: len(sessions), Sessions: sessions})
}

func (h *StatusHandler) GetQueue(c *gin.Context) {
	resp := dto.QueueResponse{Depth: h.queue.Len()}
	if h.consumer != nil {
		resp.Consumer = h.consumer.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StatusHandler) GetCommands(c *gin.Context) {
	var req dto.CommandsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultCommandsLimit
	}
	if h.journal == nil {
		c.JSON(http.StatusOK, dto.CommandsResponse{Commands: []journal.Record{}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	records, err := h.journal.Recent(ctx, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.CommandsResponse{Count: len(records), Commands: records})
}

// NewRouter builds the gin engine for the status API. mw runs before every route.
func NewRouter(h *StatusHandler, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw...)
	r.GET("/health", h.Health)
	h.RegisterRoutes(r.Group("/api"))
	return r
}
