package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/logger"
	"tripmate/internal/middleware"
	"tripmate/internal/models"
	"tripmate/internal/service"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		services: services,
	}
}

// respondError переводит ошибку сервиса в HTTP ответ
func respondError(c *gin.Context, err error, action string) {
	var validationErr *apperrors.ValidationError
	var gatewayErr *apperrors.GatewayError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsPrecondition(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &gatewayErr):
		logger.WithContext(c.Request.Context()).Warn("Payment gateway refused "+action,
			"operation", gatewayErr.Operation,
			"reason", gatewayErr.Reason)
		c.JSON(http.StatusBadGateway, gin.H{"error": gatewayErr.Error()})
	default:
		logger.WithContext(c.Request.Context()).Error("Failed to "+action, "error", err)
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

// pathID разбирает числовой параметр пути
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

// currentUser возвращает пользователя, установленного middleware.Auth
func currentUser(c *gin.Context) (middleware.User, bool) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return middleware.User{}, false
	}
	return user, true
}

func customer(user middleware.User) models.Customer {
	return models.Customer{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Phone:  user.Phone,
	}
}
