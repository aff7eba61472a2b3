package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripmate/internal/logger"
	"tripmate/internal/models"
)

// Staff handlers

// FinalizePlan - POST /api/admin/plans/:id/finalize
// Назначить стоимость и логистику закрытому плану
func (h *Handlers) FinalizePlan(c *gin.Context) {
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var costs models.PlanCosts
	if err := c.ShouldBindJSON(&costs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.services.Plans.Finalize(c.Request.Context(), planID, &costs)
	if err != nil {
		respondError(c, err, "finalize travel plan")
		return
	}

	c.JSON(http.StatusOK, plan)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectPlan - POST /api/admin/plans/:id/reject
// Отклонить план
func (h *Handlers) RejectPlan(c *gin.Context) {
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Plans.Reject(c.Request.Context(), planID, req.Reason); err != nil {
		respondError(c, err, "reject travel plan")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Travel plan rejected"})
}

// RunSweep - POST /api/admin/sweep
// Запустить проверку сроков вне расписания
func (h *Handlers) RunSweep(c *gin.Context) {
	report, err := h.services.Sweeper.Run(c.Request.Context())
	if err != nil {
		// Отчет частичный, но шаги без ошибок уже применены
		logger.WithContext(c.Request.Context()).Error("Sweep finished with errors", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep finished with errors", "report": report})
		return
	}

	c.JSON(http.StatusOK, report)
}

// QueryPayment - GET /api/admin/payments/:tran_id
// Запрос статуса транзакции в шлюзе
func (h *Handlers) QueryPayment(c *gin.Context) {
	result, err := h.services.Payments.Query(c.Request.Context(), c.Param("tran_id"))
	if err != nil {
		respondError(c, err, "query payment")
		return
	}

	c.JSON(http.StatusOK, result)
}
