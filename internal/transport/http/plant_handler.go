package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/namankalla/nishi/internal/application/usecase"
	"github.com/namankalla/nishi/internal/domain"
	"github.com/namankalla/nishi/internal/middleware"
)

type PlantHandler struct {
	uc *usecase.GardenUseCase
}

func NewPlantHandler(uc *usecase.GardenUseCase) *PlantHandler {
	return &PlantHandler{uc: uc}
}

type plantResponse struct {
	Plant  domain.Plant  `json:"plant"`
	Status domain.Status `json:"status"`
}

func (h *PlantHandler) render(p domain.Plant) plantResponse {
	return plantResponse{Plant: p, Status: h.uc.Status(p)}
}

type createPlantReq struct {
	Species string `json:"species"`
	Name    string `json:"name"`
}

type renameReq struct {
	Name string `json:"name"`
}

type waterReq struct {
	DayIndex *int `json:"day_index"`
}

func session(c *gin.Context, uc *usecase.GardenUseCase) *usecase.Session {
	return uc.Session(c.GetString(middleware.UserIDKey))
}

// GET /api/v1/plants
func (h *PlantHandler) List(c *gin.Context) {
	plants, err := session(c, h.uc).LoadPlants(c)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]plantResponse, 0, len(plants))
	for _, p := range plants {
		out = append(out, h.render(p))
	}
	c.JSON(http.StatusOK, gin.H{"plants": out})
}

// GET /api/v1/plants/:id
func (h *PlantHandler) GetOne(c *gin.Context) {
	p, err := session(c, h.uc).LoadPlant(c, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.render(p))
}

// POST /api/v1/plants
func (h *PlantHandler) Create(c *gin.Context) {
	var req createPlantReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	p, err := session(c, h.uc).CreatePlant(c, req.Species, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.render(p))
}

// PUT /api/v1/plants/:id/name
func (h *PlantHandler) Rename(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.mutate(c, func(ctx context.Context, s *usecase.Session, id string) (domain.Plant, error) {
		return s.RenamePlant(ctx, id, req.Name)
	})
}

// POST /api/v1/plants/:id/water
func (h *PlantHandler) Water(c *gin.Context) {
	var req waterReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	h.mutate(c, func(ctx context.Context, s *usecase.Session, id string) (domain.Plant, error) {
		return s.WaterToday(ctx, id, req.DayIndex)
	})
}

// POST /api/v1/plants/:id/recover
func (h *PlantHandler) Recover(c *gin.Context) {
	key := c.GetHeader("Idempotency-Key")
	h.mutate(c, func(ctx context.Context, s *usecase.Session, id string) (domain.Plant, error) {
		return s.RecoverMissedDays(ctx, id, key)
	})
}

// POST /api/v1/plants/:id/transplant
func (h *PlantHandler) Transplant(c *gin.Context) {
	h.mutate(c, func(ctx context.Context, s *usecase.Session, id string) (domain.Plant, error) {
		return s.TransplantPlant(ctx, id)
	})
}

// DELETE /api/v1/plants/:id
func (h *PlantHandler) Delete(c *gin.Context) {
	if err := session(c, h.uc).DeletePlant(c, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mutate loads the addressed plant into a fresh session and applies op to it.
func (h *PlantHandler) mutate(c *gin.Context, op func(context.Context, *usecase.Session, string) (domain.Plant, error)) {
	id := c.Param("id")
	s := session(c, h.uc)
	if _, err := s.LoadPlant(c, id); err != nil {
		writeError(c, err)
		return
	}
	p, err := op(c, s, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.render(p))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPlantNotFound), errors.Is(err, domain.ErrNoPlant):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotEnoughPoints):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrPlantDead),
		errors.Is(err, domain.ErrDailyCapReached),
		errors.Is(err, domain.ErrRecoveryRequired),
		errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidSpecies),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		// Backend details stay in the logs.
		_ = c.Error(err)
		msg = "Internal server error"
	}
	c.JSON(code, gin.H{"error": msg})
}
