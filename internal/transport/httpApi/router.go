package httpApi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/KotFed0t/copytrade_backoffice/internal/transport/httpApi/middleware"
	"github.com/gin-gonic/gin"
)

type Server struct {
	srv *http.Server
}

func NewServer(cfg *config.Config, ctrl *Controller) *Server {
	gin.SetMode(cfg.HTTP.GinMode)

	return &Server{
		srv: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      NewRouter(cfg, ctrl),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
}

func NewRouter(cfg *config.Config, ctrl *Controller) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(), middleware.Recovery())

	r.GET("/health", ctrl.Health)

	api := r.Group("/api/v1", middleware.Auth(cfg.Auth.JWTSecret))
	api.GET("/options", ctrl.GetOptions)
	api.POST("/purchases", ctrl.CreatePurchase)
	api.GET("/purchases", ctrl.GetPurchases)
	api.GET("/purchases/:id", ctrl.GetPurchase)
	api.GET("/users/:id/funds", ctrl.GetFunds)

	admin := api.Group("", middleware.RequireAdmin())
	admin.POST("/purchases/admin", ctrl.AdminCreatePurchase)
	admin.GET("/purchases/report", ctrl.ExportPurchases)
	admin.PUT("/purchases/:id", ctrl.UpdatePurchase)
	admin.DELETE("/purchases/:id", ctrl.DeletePurchase)

	return r
}

func (s *Server) Start() {
	go func() {
		slog.Info("http server started", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", slog.String("err", err.Error()))
			panic(err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", slog.String("err", err.Error()))
		return
	}
	slog.Info("http server stopped")
}
