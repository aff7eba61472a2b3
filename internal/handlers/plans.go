package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripmate/internal/models"
)

// CreatePlan - POST /api/plans
// Создать план поездки
func (h *Handlers) CreatePlan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.services.Plans.Create(c.Request.Context(), user.ID, &req)
	if err != nil {
		respondError(c, err, "create travel plan")
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// SearchPlans - GET /api/plans
// Найти попутчиков среди открытых планов
func (h *Handlers) SearchPlans(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var filter models.PlanSearchFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if raw := c.Query("start_date"); raw != "" {
		start, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		filter.StartDate = &start
	}

	results, err := h.services.Plans.Search(c.Request.Context(), user.ID, filter)
	if err != nil {
		respondError(c, err, "search travel plans")
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": results, "count": len(results)})
}

// ListMyPlans - GET /api/plans/mine
// Планы текущего пользователя
func (h *Handlers) ListMyPlans(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	plans, err := h.services.Plans.ListMine(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, "list travel plans")
		return
	}
	if plans == nil {
		plans = []models.TravelPlan{}
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetPlan - GET /api/plans/:id
// Детали плана
func (h *Handlers) GetPlan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.services.Plans.Get(c.Request.Context(), user.ID, planID)
	if err != nil {
		respondError(c, err, "get travel plan")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// UpdatePlan - PUT /api/plans/:id
// Изменить план, пока он открыт
func (h *Handlers) UpdatePlan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.services.Plans.Update(c.Request.Context(), user.ID, planID, &req)
	if err != nil {
		respondError(c, err, "update travel plan")
		return
	}

	c.JSON(http.StatusOK, plan)
}

// DeletePlan - DELETE /api/plans/:id
// Удалить открытый план
func (h *Handlers) DeletePlan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Plans.Delete(c.Request.Context(), user.ID, planID); err != nil {
		respondError(c, err, "delete travel plan")
		return
	}

	c.Status(http.StatusNoContent)
}

// ExpressInterest - POST /api/plans/:id/interest
// Откликнуться на план
func (h *Handlers) ExpressInterest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	interest, err := h.services.Plans.ExpressInterest(c.Request.Context(), user.ID, planID)
	if err != nil {
		respondError(c, err, "express interest")
		return
	}

	c.JSON(http.StatusCreated, interest)
}

// WithdrawInterest - DELETE /api/plans/:id/interest
// Отозвать отклик
func (h *Handlers) WithdrawInterest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Plans.WithdrawInterest(c.Request.Context(), user.ID, planID); err != nil {
		respondError(c, err, "withdraw interest")
		return
	}

	c.Status(http.StatusNoContent)
}

// AgreeToPlan - POST /api/plans/:id/agree
// Согласиться с финальными условиями
func (h *Handlers) AgreeToPlan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Plans.Agree(c.Request.Context(), user.ID, planID); err != nil {
		respondError(c, err, "agree to plan")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Agreed to the final plan"})
}

// PayForPlan - POST /api/plans/:id/pay
// Оплатить участие в финализированном плане
func (h *Handlers) PayForPlan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	checkout, err := h.services.Payments.InitiateForPlan(c.Request.Context(), customer(user), planID)
	if err != nil {
		respondError(c, err, "initiate payment")
		return
	}

	c.JSON(http.StatusOK, checkout)
}
