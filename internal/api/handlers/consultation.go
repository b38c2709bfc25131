package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"telecare_rtc/internal/service"
)

// ConsultationHandler 處理與視訊諮詢場次相關的請求
type ConsultationHandler struct {
	consultationService *service.ConsultationService
}

// NewConsultationHandler 創建一個新的 ConsultationHandler 實例
func NewConsultationHandler(consultationService *service.ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{consultationService: consultationService}
}

// ScheduleSession 處理預約諮詢的請求
func (h *ConsultationHandler) ScheduleSession(c *gin.Context) {
	var input struct {
		PatientID   uint      `json:"patient_id" binding:"required"`
		PhysicianID uint      `json:"physician_id" binding:"required"`
		ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
		FeeCents    int64     `json:"fee_cents"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.consultationService.ScheduleSession(c.Request.Context(),
		input.PatientID, input.PhysicianID, input.ScheduledAt, input.FeeCents)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "預約諮詢失敗"})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession 查詢場次資訊，僅限參與者
func (h *ConsultationHandler) GetSession(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的場次 ID"})
		return
	}

	userID, _ := c.Get("userID")
	session, err := h.consultationService.GetSession(c.Request.Context(), userID.(uint), uint(sessionID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "無法查詢場次"})
		}
		return
	}

	c.JSON(http.StatusOK, session)
}
