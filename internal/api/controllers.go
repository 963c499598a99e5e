package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"perp-trader/internal/state"
	"perp-trader/pkg/exchanges/common"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type createOrderRequest struct {
	Symbol string  `json:"symbol" binding:"required,min=1"`
	Side   string  `json:"side" binding:"required"`
	Price  float64 `json:"price" binding:"gte=0"`
}

type listQuery struct {
	Symbol string `form:"symbol"`
	Limit  int    `form:"limit"`
}

func (q *listQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// respondEngineError maps the engine error taxonomy onto HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	var (
		cfgErr   *common.ConfigError
		parseErr *common.ParseError
		gwErr    *common.GatewayError
	)
	switch {
	case errors.Is(err, common.ErrUnknownSymbol):
		respondError(c, http.StatusNotFound, "UNKNOWN_SYMBOL", err.Error())
	case errors.Is(err, common.ErrTradingBlocked):
		respondError(c, http.StatusConflict, "TRADING_BLOCKED", err.Error())
	case errors.As(err, &cfgErr):
		respondError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
	case errors.As(err, &parseErr):
		respondError(c, http.StatusBadGateway, "VENUE_PARSE_ERROR", err.Error())
	case errors.As(err, &gwErr):
		respondError(c, http.StatusBadGateway, "GATEWAY_ERROR", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func symbolParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
}

func (s *Server) listSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.Engine.ListStatuses()})
}

func (s *Server) getSymbol(c *gin.Context) {
	st, ok := s.Engine.GetStatus(symbolParam(c))
	if !ok {
		respondError(c, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not registered")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) addSymbol(c *gin.Context) {
	var cfg common.SymbolConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if err := s.Engine.AddSymbol(cfg); err != nil {
		respondEngineError(c, err)
		return
	}
	st, _ := s.Engine.GetStatus(cfg.Symbol)
	s.log.WithFields(logrus.Fields{"symbol": cfg.Symbol, "operator": CurrentOperator(c)}).Info("symbol added via api")
	c.JSON(http.StatusCreated, st)
}

func (s *Server) removeSymbol(c *gin.Context) {
	symbol := symbolParam(c)
	if !s.Engine.RemoveSymbol(symbol) {
		respondError(c, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not registered")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setSymbolStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	status, err := state.ParseStatus(req.Status, req.Reason)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_STATUS", err.Error())
		return
	}
	symbol := symbolParam(c)
	if err := s.Engine.SetStatus(symbol, status); err != nil {
		respondEngineError(c, err)
		return
	}
	st, _ := s.Engine.GetStatus(symbol)
	c.JSON(http.StatusOK, st)
}

// createOrder places a bracketed MinQty order. A zero price uses the cached
// latest close, then the venue's latest price.
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	side, ok := common.ParseSide(req.Side)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_SIDE", "side must be BUY or SELL")
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if _, ok := s.Engine.GetStatus(symbol); !ok {
		respondError(c, http.StatusNotFound, "UNKNOWN_SYMBOL", "symbol not registered")
		return
	}

	ctx := c.Request.Context()
	price := req.Price
	if price == 0 {
		p, err := s.Engine.ResolvePrice(ctx, symbol)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		price = p
	}

	out, err := s.Engine.PlaceOrder(ctx, symbol, side, price)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order_id":    out.Result.OrderID,
		"client_id":   out.Result.ClientID,
		"status":      out.Result.Status,
		"symbol":      symbol,
		"side":        side,
		"qty":         out.Result.Qty,
		"price":       price,
		"take_profit": out.Bounds.TakeProfit,
		"stop_loss":   out.Bounds.StopLoss,
	})
}

func (s *Server) getPrices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prices": s.Engine.LatestPrices()})
}

func (s *Server) getOrders(c *gin.Context) {
	if s.Journal == nil {
		respondError(c, http.StatusServiceUnavailable, "JOURNAL_DISABLED", "journal not enabled")
		return
	}
	var q listQuery
	_ = c.ShouldBindQuery(&q)
	q.normalize()

	orders, err := s.Journal.RecentOrders(c.Request.Context(), strings.ToUpper(q.Symbol), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) getSignals(c *gin.Context) {
	if s.Journal == nil {
		respondError(c, http.StatusServiceUnavailable, "JOURNAL_DISABLED", "journal not enabled")
		return
	}
	var q listQuery
	_ = c.ShouldBindQuery(&q)
	q.normalize()

	signals, err := s.Journal.RecentSignals(c.Request.Context(), strings.ToUpper(q.Symbol), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}
