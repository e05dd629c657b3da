package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// successResponse is the uniform success envelope. Client integrations
// branch on `success`; `message` is optional human-readable context.
type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, successResponse{Success: true, Data: data})
}

func respondOKWithMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, successResponse{Success: true, Message: message, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, successResponse{Success: true, Data: data})
}
