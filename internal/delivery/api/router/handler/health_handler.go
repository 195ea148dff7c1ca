package handler

import (
	"net/http"

	"healthbridge/internal/delivery/api/response"

	"github.com/labstack/echo/v4"
)

// HealthResponse reports liveness
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck answers liveness probes.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, HealthResponse{Status: "ok"})
}
