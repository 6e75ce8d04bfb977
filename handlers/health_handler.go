package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"drinkMenuAPI/internal/response"
	"drinkMenuAPI/services"
)

type HealthHandler struct {
	drinkService *services.DrinkService
	logger       *logrus.Logger
}

func NewHealthHandler(drinkService *services.DrinkService, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{drinkService: drinkService, logger: logger}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.drinkService.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("health check failed")
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "drink-menu-api",
	})
}
