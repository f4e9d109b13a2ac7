// Package server exposes lead intake and orchestrator diagnostics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opentalon/leadgate/internal/metrics"
)

// Deps are the collaborators of the HTTP layer. Leads is required; a nil
// Analyzer disables analysis, nil Mailing and Notifier are no-ops.
type Deps struct {
	Leads     LeadRepository
	Analyses  AnalysisReader
	Analyzer  Analyzer
	Inspector Inspector
	Mailing   MailingList
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	engine *gin.Engine
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	}
}

// Options tune the HTTP surface. Empty AllowOrigins or one containing "*"
// allows every origin; IntakeRate <= 0 disables intake rate limiting.
type Options struct {
	AllowOrigins []string
	IntakeRate   float64 // requests per second per client IP
	IntakeBurst  int
}

func New(deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Mailing == nil {
		deps.Mailing = noopMailingList{}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	s := &Server{deps: deps, logger: deps.Logger.Named("http")}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	cfg := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 || contains(opts.AllowOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = opts.AllowOrigins
	}
	r.Use(cors.New(cfg))

	intake := []gin.HandlerFunc{s.createRecord}
	if opts.IntakeRate > 0 {
		intake = append([]gin.HandlerFunc{newIPLimiter(opts.IntakeRate, opts.IntakeBurst).middleware()}, intake...)
	}
	bd := r.Group("/bd")
	bd.POST("/records", intake...)
	bd.GET("/records", s.listRecords)
	bd.GET("/records/:id", s.getRecord)
	r.POST("/leads/:id/analyze", s.analyzeLead)
	r.GET("/orchestrator/info", s.info)
	r.GET("/health", s.health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
