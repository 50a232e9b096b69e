package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meshlink/meshlink/signaling"
	"go.uber.org/zap"
)

type pushResponse struct {
	Index  int    `json:"index"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

// newRouter wires the HTTP long-poll wire contract (POST /signaling/push,
// GET /signaling/pull) onto adapter, the server-side counterpart of
// signaling.HTTPAdapter.
func newRouter(adapter signaling.Adapter, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginZapLogger(logger))

	router.POST("/signaling/push", func(c *gin.Context) {
		var event signaling.Event
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, pushResponse{Error: "malformed request body"})
			return
		}

		if err := adapter.Push(c.Request.Context(), event); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, signaling.ErrTransientSignalingFailure) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, pushResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, pushResponse{Index: event.Index, Length: event.Index + 1})
	})

	router.GET("/signaling/pull", func(c *gin.Context) {
		roomID := c.Query("roomId")
		channelID := c.Query("channelId")
		if (roomID == "") == (channelID == "") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of roomId or channelId is required"})
			return
		}

		offset := 0
		if raw := c.Query("offsetIndex"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offsetIndex"})
				return
			}
			offset = parsed
		}

		events, err := adapter.Pull(c.Request.Context(), signaling.PullQuery{
			RoomID:      roomID,
			ChannelID:   channelID,
			OffsetIndex: offset,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, signaling.ErrTransientSignalingFailure) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if events == nil {
			events = []signaling.Event{}
		}
		c.JSON(http.StatusOK, events)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	return router
}

func ginZapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
