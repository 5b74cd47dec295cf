package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/pkg/metrics"
	"github.com/solroute/orderengine/pkg/models"
)

// errorBody is the uniform error envelope of the API.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(c *gin.Context, err error) {
	c.JSON(engerr.StatusOf(err), errorBody{
		Error: engerr.Reason(err),
		Code:  string(engerr.KindOf(err)),
	})
}

// createOrder admits a new swap order: persist as pending, enqueue, 202.
func (s *Server) createOrder(c *gin.Context) {
	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, engerr.Wrap(engerr.KindValidation, "Invalid request body", err))
		return
	}
	if err := validateOrderRequest(&req); err != nil {
		respondError(c, err)
		return
	}

	amountIn, _ := decimal.NewFromString(req.AmountIn)
	minAmountOut, _ := decimal.NewFromString(req.MinAmountOut)

	order := &models.Order{
		ID:                uuid.New(),
		UserID:            req.UserID,
		TokenIn:           req.TokenIn,
		TokenOut:          req.TokenOut,
		AmountIn:          amountIn,
		MinAmountOut:      minAmountOut,
		SlippageTolerance: req.SlippageTolerance,
		Status:            models.StatusPending,
	}
	if err := s.repo.CreateOrder(c.Request.Context(), order); err != nil {
		s.logger.Error("Order creation failed", zap.Error(err))
		respondError(c, engerr.Wrap(engerr.KindUnknown, "Failed to create order", err))
		return
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID),
	)
	metrics.OrdersCreated.Inc()

	if _, err := s.dispatcher.Enqueue(c.Request.Context(), order); err != nil {
		s.logger.Error("Order enqueue failed",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, models.OrderResponse{
		OrderID:   order.ID.String(),
		WsURL:     "/ws/" + order.ID.String(),
		Status:    models.StatusPending,
		CreatedAt: order.CreatedAt,
	})
}

// getOrder returns the full order record, reading through the cache first.
func (s *Server) getOrder(c *gin.Context) {
	id := c.Param("id")
	orderID, err := uuid.Parse(id)
	if err != nil {
		respondError(c, engerr.Newf(engerr.KindOrderNotFound, "Order %s not found", id))
		return
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(c.Request.Context(), id); err == nil && cached != nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	order, err := s.repo.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// listOrders returns a page of a user's orders, newest first.
func (s *Server) listOrders(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, engerr.New(engerr.KindValidation, "userId query parameter is required"))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	list, err := s.repo.GetOrdersByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		s.logger.Error("Orders retrieval failed", zap.String("user_id", userID), zap.Error(err))
		respondError(c, engerr.Wrap(engerr.KindUnknown, "Failed to list orders", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": list,
		"limit":  limit,
		"offset": offset,
		"total":  len(list),
	})
}

// queueStats returns the dispatcher snapshot.
func (s *Server) queueStats(c *gin.Context) {
	stats, err := s.dispatcher.Stats(c.Request.Context())
	if err != nil {
		respondError(c, engerr.Wrap(engerr.KindQueue, "Failed to read queue stats", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// wsStats returns the broadcaster snapshot.
func (s *Server) wsStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.broadcaster.GetStats())
}

// health is the liveness probe.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
