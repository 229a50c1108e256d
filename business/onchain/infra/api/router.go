package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nouns-dao/nouns-onchain/internal/logger"
)

// NewRouter builds the gin engine with every /v1 route attached.
func NewRouter(h *Handlers, allowedOrigins []string) *gin.Engine {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsCfg))

	v1 := r.Group("/v1")
	{
		v1.GET("/treasury", h.Treasury)
		v1.GET("/nouns", h.Nouns)
		v1.GET("/nouns/:id/votes", h.Votes)
		v1.GET("/nouns/:id/bids", h.Bids)
		v1.GET("/proposals", h.Proposals)
		v1.GET("/streams", h.Streams)

		auctions := v1.Group("/auctions")
		auctions.GET("", h.Auctions)
		auctions.GET("/live", h.LiveAuction)
		auctions.GET("/latest-settled", h.LatestSettled)
		auctions.GET("/live/stream", h.LiveStream)
		auctions.GET("/settled/stream", h.SettledStream)
	}

	return r
}

// Server runs the HTTP API.
type Server struct {
	port   int
	engine *gin.Engine
	logger logger.LoggerInterface
	server *http.Server
}

// NewServer wraps engine in an http.Server on port.
func NewServer(port int, engine *gin.Engine, log logger.LoggerInterface) *Server {
	return &Server{port: port, engine: engine, logger: log}
}

// Start listens in the background.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           otelhttp.NewHandler(s.engine, "nouns-api"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "api server stopped", "error", err)
		}
	}()

	s.logger.Info(ctx, "api server listening", "port", s.port)
	return nil
}

// Stop drains open requests. Streaming clients are cut off when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
