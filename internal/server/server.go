package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/config"
	"github.com/Israr974/BuyZaar-sub001/internal/handler"
	"github.com/Israr974/BuyZaar-sub001/internal/metrics"
	"github.com/Israr974/BuyZaar-sub001/internal/middleware"
	"github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Handlers struct {
	Orders      *handler.OrderHandler
	Cart        *handler.CartHandler
	AdminOrders *handler.AdminOrderHandler
	Inventory   *handler.AdminInventoryHandler
	Audit       *handler.AdminAuditHandler
}

type Server struct {
	e      *echo.Echo
	addr   string
	logger *zap.Logger
}

// New builds the echo instance and registers every route.
func New(cfg config.Config, users repository.UserRepository, h Handlers, logger *zap.Logger, httpMetrics *metrics.HTTPMetrics, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLog(logger, httpMetrics))

	registerRoutes(e, cfg, users, h, gatherer, logger)

	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	return &Server{e: e, addr: addr, logger: logger}
}

func registerRoutes(e *echo.Echo, cfg config.Config, users repository.UserRepository, h Handlers, gatherer prometheus.Gatherer, logger *zap.Logger) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))

	//購入者（JWT + token_version）
	authed := []echo.MiddlewareFunc{middleware.AuthJWT(cfg), middleware.TokenVersionGuard(users, logger)}
	h.Orders.RegisterRoutes(e.Group("/orders", authed...))
	h.Cart.RegisterRoutes(e.Group("/cart", authed...))

	//管理者
	admin := e.Group("/admin", append(authed, middleware.AdminRoleGuard())...)
	h.AdminOrders.RegisterRoutes(admin)
	h.Inventory.RegisterRoutes(admin)
	h.Audit.RegisterRoutes(admin)
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start() error {
	s.logger.Info("http server started", zap.String("addr", s.addr))
	if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}
