package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"

	"github.com/chaos-io/colourpop/segment"
	"github.com/chaos-io/colourpop/store"
)

type Server struct {
	seg       segment.Segmenter
	opts      segment.Options
	store     *store.Store
	maxUpload int64
	engine    *gin.Engine
}

func New(seg segment.Segmenter, opts segment.Options, st *store.Store, maxUpload int64) *Server {
	s := &Server{
		seg:       seg,
		opts:      opts,
		store:     st,
		maxUpload: maxUpload,
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(Cors())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	api := r.Group("/api")
	api.GET("/healthz", s.healthz)
	api.GET("/models", s.models)
	api.POST("/composite", s.composite)
	api.GET("/results/:id", s.result)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func Cors() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	})
}

// Run 阻塞直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server shutdown")
	return nil
}
