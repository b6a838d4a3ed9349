package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/namankalla/nishi/internal/middleware"
)

type creditReq struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int    `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

// GET /api/v1/points
func (h *PlantHandler) Points(c *gin.Context) {
	bal, err := h.uc.Balance(c, c.GetString(middleware.UserIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": bal})
}

// POST /internal/v1/points/credit
//
// Called by the services that award points (journal entries, time capsules).
func (h *PlantHandler) Credit(c *gin.Context) {
	var req creditReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bal, err := h.uc.Credit(c, req.UserID, req.Amount, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "points": bal})
}
