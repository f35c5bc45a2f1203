package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
	"github.com/Doogleyarae/Doogleonline-sub000/internal/service"
	apperrors "github.com/Doogleyarae/Doogleonline-sub000/pkg/errors"
)

type CreateOrderRequest struct {
	FullName      string          `json:"full_name" binding:"required"`
	PhoneNumber   string          `json:"phone_number" binding:"required"`
	Email         string          `json:"email"`
	SenderAccount string          `json:"sender_account"`
	SendMethod    string          `json:"send_method" binding:"required"`
	ReceiveMethod string          `json:"receive_method" binding:"required"`
	SendAmount    decimal.Decimal `json:"send_amount" binding:"required"`
	ReceiveAmount decimal.Decimal `json:"receive_amount" binding:"required"`
	WalletAddress string          `json:"wallet_address" binding:"required"`
}

type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// ProcessingInfo is attached to order reads so the UI can show the countdown.
type ProcessingInfo struct {
	IsProcessing     bool `json:"is_processing"`
	RemainingMinutes int  `json:"remaining_minutes"`
}

type OrderHandler struct {
	orders service.OrderService
	timers *service.TimerManager
}

func NewOrderHandler(orders service.OrderService, timers *service.TimerManager) *OrderHandler {
	return &OrderHandler{orders: orders, timers: timers}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &service.CreateOrderInput{
		FullName:      req.FullName,
		PhoneNumber:   req.PhoneNumber,
		Email:         req.Email,
		SenderAccount: req.SenderAccount,
		SendMethod:    req.SendMethod,
		ReceiveMethod: req.ReceiveMethod,
		SendAmount:    req.SendAmount,
		ReceiveAmount: req.ReceiveAmount,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"processing": ProcessingInfo{
			IsProcessing:     h.timers.IsProcessing(orderID),
			RemainingMinutes: h.timers.RemainingMinutes(orderID),
		},
	})
}

// UpdateStatus is the customer-facing transition endpoint. Customers may only
// confirm payment or cancel; everything else belongs to the admin surface.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if req.Status != models.OrderStatusPaid && req.Status != models.OrderStatusCancelled {
		respondError(c, apperrors.NewInvalidStatus(string(req.Status)))
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("orderId"), req.Status, "customer")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"processing": ProcessingInfo{
			IsProcessing:     h.timers.IsProcessing(order.OrderID),
			RemainingMinutes: h.timers.RemainingMinutes(order.OrderID),
		},
	})
}
