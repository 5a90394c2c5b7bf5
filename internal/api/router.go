package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cutx/catalog/internal/config"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter mounts the catalogue API under /api/v1.
func NewRouter(h *Handler, adminToken string) *gin.Engine {
	SetupValidator()

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())

	v1 := r.Group("/api/v1")
	v1.GET("/health", h.Health)

	v1.GET("/catalogues", h.ListCatalogues)
	v1.GET("/catalogues/:slug/categories", h.CategoryTree)
	v1.GET("/catalogues/:slug/panels/:reference", h.GetPanelByReference)

	v1.GET("/panels", h.ListPanels)
	v1.GET("/panels/search", h.SearchPanels)
	v1.GET("/panels/:id", h.GetPanel)

	admin := v1.Group("", AdminAuth(adminToken))
	admin.PATCH("/panels/:id", h.UpdatePanel)
	admin.DELETE("/panels/:id", h.DeactivatePanel)

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	return r
}

// Server runs the router until its context is cancelled.
type Server struct {
	http *http.Server
}

func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{http: &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("🌐 API listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("🛑 Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
