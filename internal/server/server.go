// Package server exposes device enumeration, GPU topology and driver
// provider lookups over a small HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server runs the HTTP API.
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// NewServer assembles the router and binds it to addr. An empty token
// leaves the API unauthenticated.
func NewServer(addr string, api *API, token string, log *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           newRouter(api, token, log),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{http: s, log: log}
}

func newRouter(api *API, token string, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	api.registerRoutes(router, token)
	return router
}

// Run serves until Shutdown is called or the listener fails.
func (s *Server) Run() error {
	s.log.Info("http api listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
