package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/onegreenvn/campaign-monitor/internal/services"
	"github.com/onegreenvn/campaign-monitor/internal/utils"
)

type ControlLogHandler struct {
	controlLogService *services.ControlLogService
}

func NewControlLogHandler(controlLogService *services.ControlLogService) *ControlLogHandler {
	return &ControlLogHandler{controlLogService: controlLogService}
}

// GetLogsByCampaign godoc
// @Summary Get control logs of a campaign
// @Description Get paginated control command journal entries, newest first
// @Tags control-logs
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Campaign ID" example:"cmp_42"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(50)
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /campaigns/{id}/control-logs [get]
func (h *ControlLogHandler) GetLogsByCampaign(c *gin.Context) {
	campaignID := c.Param("id")
	page := utils.ParsePage(c.Query("page"), c.Query("page_size"))

	logs, total, err := h.controlLogService.ListByCampaign(campaignID, page.Size, page.Offset())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get control logs", "details": err.Error()})
		return
	}

	responses := make([]models.ControlLogResponse, len(logs))
	for i, log := range logs {
		responses[i] = services.ToControlLogResponse(log)
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       responses,
		"pagination": utils.Paginate(total, page),
	})
}
