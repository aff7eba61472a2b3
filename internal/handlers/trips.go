package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripmate/internal/models"
)

// ListTrips - GET /api/trips
// Организованные поездки, открытые для записи
func (h *Handlers) ListTrips(c *gin.Context) {
	trips, err := h.services.Trips.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "list trips")
		return
	}
	if trips == nil {
		trips = []models.TripListItem{}
	}

	c.JSON(http.StatusOK, gin.H{"trips": trips})
}

// GetTrip - GET /api/trips/:id
// Детали поездки и статус участия
func (h *Handlers) GetTrip(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.services.Trips.Get(c.Request.Context(), user.ID, tripID)
	if err != nil {
		respondError(c, err, "get trip")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// JoinTrip - POST /api/trips/:id/join
// Записаться в поездку
func (h *Handlers) JoinTrip(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.JoinTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.services.Trips.Join(c.Request.Context(), user.ID, tripID, &req)
	if err != nil {
		respondError(c, err, "join trip")
		return
	}

	c.JSON(http.StatusCreated, participant)
}

// LeaveTrip - POST /api/trips/:id/leave
// Покинуть поездку до оплаты
func (h *Handlers) LeaveTrip(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Trips.Leave(c.Request.Context(), user.ID, tripID); err != nil {
		respondError(c, err, "leave trip")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "You have left the trip"})
}

// PayForTrip - POST /api/trips/:id/pay
// Оплатить участие в поездке
func (h *Handlers) PayForTrip(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	checkout, err := h.services.Payments.InitiateForTrip(c.Request.Context(), customer(user), tripID)
	if err != nil {
		respondError(c, err, "initiate payment")
		return
	}

	c.JSON(http.StatusOK, checkout)
}

// RefundStatus - GET /api/trips/:id/refund
// Можно ли еще вернуть платеж
func (h *Handlers) RefundStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.services.Refunds.Status(c.Request.Context(), user.ID, tripID)
	if err != nil {
		respondError(c, err, "get refund status")
		return
	}

	c.JSON(http.StatusOK, status)
}

type refundRequest struct {
	Remarks string `json:"remarks"`
}

// RequestRefund - POST /api/trips/:id/refund
// Вернуть платеж в течение 5 минут
func (h *Handlers) RequestRefund(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	// Тело необязательно
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.services.Refunds.RequestRefund(c.Request.Context(), user.ID, tripID, req.Remarks)
	if err != nil {
		respondError(c, err, "process refund")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Refund processed successfully", "payment": payment})
}
