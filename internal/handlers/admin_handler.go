package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/config"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/middleware"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/repository"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/service"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

type AdminHandler struct {
	auth     config.AuthConfig
	sessions repository.SessionStore
	wallets  repository.WalletAddressRepository
	orders   service.OrderService
	rates    service.RateService
	balances service.BalanceService
	contacts service.ContactService
}

func NewAdminHandler(
	auth config.AuthConfig,
	sessions repository.SessionStore,
	wallets repository.WalletAddressRepository,
	orders service.OrderService,
	rates service.RateService,
	balances service.BalanceService,
	contacts service.ContactService,
) *AdminHandler {
	return &AdminHandler{
		auth:     auth,
		sessions: sessions,
		wallets:  wallets,
		orders:   orders,
		rates:    rates,
		balances: balances,
		contacts: contacts,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if req.Username != h.auth.AdminUsername ||
		bcrypt.CompareHashAndPassword([]byte(h.auth.AdminPasswordHash), []byte(req.Password)) != nil {
		respondError(c, apperrors.NewUnauthorizedError("Invalid credentials"))
		return
	}

	token, err := h.sessions.Create(c.Request.Context(), req.Username, 0)
	if err != nil {
		respondError(c, err)
		return
	}

	logrus.WithField("username", req.Username).Info("admin logged in")
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AdminHandler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) {
		if err := h.sessions.Delete(c.Request.Context(), header[len(prefix):]); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := &repository.OrderFilter{
		Status:   models.OrderStatus(c.Query("status")),
		Phone:    c.Query("phone"),
		Page:     page,
		PageSize: pageSize,
	}

	orders, total, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":    orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateOrderStatus is the admin transition endpoint; any valid transition is
// allowed here, unlike the customer surface.
func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("orderId"), req.Status,
		middleware.AdminUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

type UpdateRateRequest struct {
	FromCurrency string          `json:"from_currency" binding:"required"`
	ToCurrency   string          `json:"to_currency" binding:"required"`
	Rate         decimal.Decimal `json:"rate" binding:"required"`
	Reason       string          `json:"reason"`
}

func (h *AdminHandler) UpdateRate(c *gin.Context) {
	var req UpdateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.rates.UpdateRate(c.Request.Context(),
		req.FromCurrency, req.ToCurrency, req.Rate, middleware.AdminUser(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) ListRates(c *gin.Context) {
	rates, err := h.rates.ListRates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": rates})
}

func (h *AdminHandler) RateHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	history, err := h.rates.ListHistory(c.Request.Context(),
		c.Query("from"), c.Query("to"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

type LimitRequest struct {
	MinAmount decimal.Decimal `json:"min_amount" binding:"required"`
	MaxAmount decimal.Decimal `json:"max_amount" binding:"required"`
}

func (h *AdminHandler) UpdateLimit(c *gin.Context) {
	var req LimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	limit, err := h.rates.UpdateLimit(c.Request.Context(), c.Param("currency"),
		req.MinAmount, req.MaxAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": limit})
}

func (h *AdminHandler) DeleteLimit(c *gin.Context) {
	if err := h.rates.DeleteLimit(c.Request.Context(), c.Param("currency")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *AdminHandler) ListLimits(c *gin.Context) {
	overrides, defaults, err := h.rates.ListLimits(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"overrides": overrides,
		"defaults":  defaults,
	})
}

func (h *AdminHandler) SetUniversalLimits(c *gin.Context) {
	var req LimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.rates.SetUniversalDefaults(c.Request.Context(), req.MinAmount, req.MaxAmount); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"defaults": models.LimitRange{Min: req.MinAmount, Max: req.MaxAmount},
	})
}

type WalletRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *AdminHandler) ListWallets(c *gin.Context) {
	wallets, err := h.wallets.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

func (h *AdminHandler) UpsertWallet(c *gin.Context) {
	var req WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	wallet := &models.WalletAddress{
		Method:  c.Param("method"),
		Address: req.Address,
	}
	if err := h.wallets.Upsert(c.Request.Context(), wallet); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

func (h *AdminHandler) ListBalances(c *gin.Context) {
	balances, err := h.balances.ListBalances(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

type BalanceAdjustRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason"`
}

func (h *AdminHandler) CreditBalance(c *gin.Context) {
	var req BalanceAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	newAmount, err := h.balances.ManualCredit(c.Request.Context(), c.Param("currency"),
		req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": c.Param("currency"), "balance": newAmount})
}

func (h *AdminHandler) DebitBalance(c *gin.Context) {
	var req BalanceAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	newAmount, err := h.balances.ManualDebit(c.Request.Context(), c.Param("currency"),
		req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": c.Param("currency"), "balance": newAmount})
}

func (h *AdminHandler) SetBalance(c *gin.Context) {
	var req BalanceAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	newAmount, err := h.balances.SetAbsolute(c.Request.Context(), c.Param("currency"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": c.Param("currency"), "balance": newAmount})
}

func (h *AdminHandler) GetSystemStatus(c *gin.Context) {
	status, err := h.balances.SystemStatus(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"system_status": status})
}

type SystemStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *AdminHandler) SetSystemStatus(c *gin.Context) {
	var req SystemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.balances.SetSystemStatus(c.Request.Context(), req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"system_status": req.Status})
}

func (h *AdminHandler) ListMessages(c *gin.Context) {
	messages, err := h.contacts.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *AdminHandler) GetMessage(c *gin.Context) {
	msg, err := h.contacts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type ReplyRequest struct {
	Response string `json:"response" binding:"required"`
}

func (h *AdminHandler) ReplyMessage(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.contacts.Reply(c.Request.Context(), c.Param("id"), req.Response)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
