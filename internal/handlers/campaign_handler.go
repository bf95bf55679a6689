package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/onegreenvn/campaign-monitor/internal/services"
	"github.com/onegreenvn/campaign-monitor/internal/services/campaignsync"
	"github.com/sirupsen/logrus"
)

type CampaignHandler struct {
	manager           *campaignsync.Manager
	sseHub            *services.SSEHub
	heartbeatInterval time.Duration
}

func NewCampaignHandler(manager *campaignsync.Manager, sseHub *services.SSEHub, heartbeatInterval time.Duration) *CampaignHandler {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 15 * time.Second
	}
	return &CampaignHandler{
		manager:           manager,
		sseHub:            sseHub,
		heartbeatInterval: heartbeatInterval,
	}
}

// StreamState godoc
// @Summary Stream campaign state via Server-Sent Events (SSE)
// @Description Opens (or joins) the monitoring session of a campaign and streams every reconciled state change as an "state" event. The session lives while at least one stream is connected.
// @Tags campaigns
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID" example:"cmp_42"
// @Success 200 "SSE stream"
// @Failure 502 {object} map[string]interface{}
// @Router /campaigns/{id}/stream [get]
func (h *CampaignHandler) StreamState(c *gin.Context) {
	campaignID := c.Param("id")

	session, release, err := h.manager.Acquire(c.Request.Context(), campaignID)
	if err != nil {
		logrus.Warnf("Failed to open campaign session %s: %v", campaignID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load campaign", "details": err.Error()})
		return
	}
	defer release()

	// Set headers for SSE
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable buffering for nginx

	// Register before the initial snapshot so no change falls in between
	clientChan := h.sseHub.RegisterClient(campaignID)
	defer h.sseHub.UnregisterClient(campaignID, clientChan)

	c.SSEvent("connected", gin.H{
		"campaign_id": campaignID,
		"session_id":  session.ID(),
		"message":     "Connected to campaign stream",
	})
	initial, err := services.FormatStateEvent(session.State())
	if err == nil {
		if _, err := c.Writer.Write(initial); err != nil {
			return
		}
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			logrus.Infof("SSE client disconnected: campaign %s", campaignID)
			return
		case <-heartbeat.C:
			h.sseHub.SendHeartbeat(campaignID)
		case message, ok := <-clientChan:
			if !ok {
				return
			}
			if _, err := c.Writer.Write(message); err != nil {
				logrus.Errorf("Failed to write SSE message: %v", err)
				return
			}
			c.Writer.Flush()
		}
	}
}

// GetState godoc
// @Summary Get campaign state
// @Description Returns the reconciled state of a monitored campaign
// @Tags campaigns
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID" example:"cmp_42"
// @Success 200 {object} models.CampaignState
// @Failure 404 {object} map[string]interface{}
// @Router /campaigns/{id}/state [get]
func (h *CampaignHandler) GetState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.State())
}

// Control godoc
// @Summary Control a campaign
// @Description Applies start, pause, resume or stop. The state changes optimistically and is reverted if the platform refuses the command or it times out.
// @Tags campaigns
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID" example:"cmp_42"
// @Param request body models.ControlCommandRequest true "Control action"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Failure 504 {object} map[string]interface{}
// @Router /campaigns/{id}/control [post]
func (h *CampaignHandler) Control(c *gin.Context) {
	var req models.ControlCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}
	action, err := models.ParseControlAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action", "details": err.Error()})
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}

	// The command outlives a dropped HTTP connection, its own timeout bounds it
	ctx := context.WithoutCancel(c.Request.Context())
	if err := session.Control(ctx, action); err != nil {
		h.writeError(c, err, session)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"action":  action,
		"state":   session.State(),
	})
}

// Refresh godoc
// @Summary Refresh campaign detail
// @Description Re-fetches the campaign from the platform and reconciles the state
// @Tags campaigns
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID" example:"cmp_42"
// @Success 200 {object} models.CampaignState
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /campaigns/{id}/refresh [post]
func (h *CampaignHandler) Refresh(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Refresh(c.Request.Context()); err != nil {
		h.writeError(c, err, session)
		return
	}
	c.JSON(http.StatusOK, session.State())
}

// ListSessions godoc
// @Summary List monitoring sessions
// @Description Lists the campaigns currently monitored and their stream reference counts
// @Tags campaigns
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} campaignsync.SessionInfo
// @Router /sessions [get]
func (h *CampaignHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Sessions())
}

func (h *CampaignHandler) session(c *gin.Context) (*campaignsync.Session, bool) {
	campaignID := c.Param("id")
	session, ok := h.manager.Get(campaignID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Campaign is not monitored",
			"details": "open /campaigns/" + campaignID + "/stream first",
		})
		return nil, false
	}
	return session, true
}

func (h *CampaignHandler) writeError(c *gin.Context, err error, session *campaignsync.Session) {
	var cmdErr *campaignsync.CommandError
	switch {
	case errors.Is(err, campaignsync.ErrRejected):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Control request rejected",
			"details": err.Error(),
			"state":   session.State(),
		})
	case errors.As(err, &cmdErr):
		status := http.StatusBadGateway
		if cmdErr.Timeout {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{
			"error":     "Control command failed",
			"details":   cmdErr.Error(),
			"retryable": cmdErr.Retryable(),
			"state":     session.State(),
		})
	case errors.Is(err, campaignsync.ErrRefreshSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "Refresh superseded", "details": err.Error()})
	case errors.Is(err, campaignsync.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": "Campaign session closed", "details": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Platform request failed", "details": err.Error()})
	}
}
