package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripmate/internal/logger"
	"tripmate/internal/models"
)

// Payments handlers

// PaymentSuccess - POST /api/payments/success
// Шлюз возвращает пользователя после успешной оплаты
func (h *Handlers) PaymentSuccess(c *gin.Context) {
	var cb models.GatewayCallback
	if err := c.ShouldBind(&cb); err != nil || cb.TranID == "" || cb.ValID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "val_id and tran_id are required"})
		return
	}

	result, err := h.services.Payments.Confirm(c.Request.Context(), cb)
	if err != nil {
		respondError(c, err, "confirm payment")
		return
	}

	message := "Payment completed successfully"
	switch {
	case result.AlreadyProcessed:
		message = "Payment already processed"
	case result.NeedsReconciliation:
		message = "Payment received, but the trip is no longer available. Support will contact you about a refund."
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "result": result})
}

// PaymentFail - POST /api/payments/fail
// Шлюз сообщает о неуспешной оплате
func (h *Handlers) PaymentFail(c *gin.Context) {
	tranID := c.PostForm("tran_id")
	if tranID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tran_id is required"})
		return
	}

	if err := h.services.Payments.Fail(c.Request.Context(), tranID); err != nil {
		respondError(c, err, "record failed payment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment failed. Please try again."})
}

// PaymentCancel - POST /api/payments/cancel
// Пользователь отменил оплату на стороне шлюза
func (h *Handlers) PaymentCancel(c *gin.Context) {
	tranID := c.PostForm("tran_id")
	if tranID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tran_id is required"})
		return
	}

	if err := h.services.Payments.Cancel(c.Request.Context(), tranID); err != nil {
		respondError(c, err, "record cancelled payment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment was cancelled."})
}

// PaymentIPN - POST /api/payments/ipn
// Серверное уведомление шлюза. Всегда отвечаем 200, иначе шлюз будет повторять
func (h *Handlers) PaymentIPN(c *gin.Context) {
	log := logger.WithContext(c.Request.Context())

	var cb models.GatewayCallback
	if err := c.ShouldBind(&cb); err != nil || cb.TranID == "" || cb.ValID == "" {
		log.Warn("IPN without val_id or tran_id ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	result, err := h.services.Payments.Confirm(c.Request.Context(), cb)
	if err != nil {
		log.Error("Failed to process IPN", "transaction_id", cb.TranID, "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	log.Info("IPN processed",
		"transaction_id", cb.TranID,
		"completed", result.Completed,
		"already_processed", result.AlreadyProcessed,
		"needs_reconciliation", result.NeedsReconciliation)

	status := "ok"
	if result.NeedsReconciliation {
		status = "unreconciled"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// PaymentHistory - GET /api/payments/history
// История платежей, сгруппированная по поездкам
func (h *Handlers) PaymentHistory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	history, err := h.services.Payments.History(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, "get payment history")
		return
	}

	c.JSON(http.StatusOK, history)
}
