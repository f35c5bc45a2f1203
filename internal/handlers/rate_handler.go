package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/service"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

type RateHandler struct {
	rates service.RateService
}

func NewRateHandler(rates service.RateService) *RateHandler {
	return &RateHandler{rates: rates}
}

// GetExchangeRate resolves the rate for ?from=&to=. Responses are never
// cacheable: a stale rate quote is worse than an extra round trip.
func (h *RateHandler) GetExchangeRate(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		respondError(c, apperrors.NewValidationError("Both 'from' and 'to' currencies are required"))
		return
	}

	c.Header("Cache-Control", "no-store")

	resolved, err := h.rates.ResolveRate(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	fromLimits, err := h.rates.ResolveLimits(c.Request.Context(), from)
	if err != nil {
		respondError(c, err)
		return
	}
	toLimits, err := h.rates.ResolveLimits(c.Request.Context(), to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rate":        resolved,
		"from_limits": fromLimits,
		"to_limits":   toLimits,
	})
}

func (h *RateHandler) GetCurrencyLimits(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	limits, err := h.rates.ResolveLimits(c.Request.Context(), c.Param("currency"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"currency": c.Param("currency"),
		"limits":   limits,
	})
}
