package http

import (
	"context"
	"net/http"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/PromoBrothers/Projeto-2026/internal/http/middleware"
	"github.com/PromoBrothers/Projeto-2026/internal/metrics"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"github.com/PromoBrothers/Projeto-2026/internal/service/queue"
	"github.com/PromoBrothers/Projeto-2026/internal/worker"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProductSender is the manual side of the product dispatcher.
type ProductSender interface {
	SendNow(ctx context.Context, productID string, groups []string) (worker.SendReport, error)
}

// QueueDrainer is the manual side of the clone queue dispatcher.
type QueueDrainer interface {
	ProcessNow(ctx context.Context) (worker.DrainReport, error)
}

type QueueService interface {
	Enqueue(ctx context.Context, env model.CloneEnvelope) (*model.QueuedMessage, error)
	List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueuedMessage, error)
	Stats(ctx context.Context) (model.QueueStats, error)
	Delete(ctx context.Context, id string) (bool, error)
	Requeue(ctx context.Context, id string, dueAt *time.Time) (time.Time, error)
	Prune(ctx context.Context, days int) (int64, error)
	Settings() config.QueueSettings
	UpdateSettings(qs config.QueueSettings) error
}

type GatewayStatus interface {
	Connected(ctx context.Context) bool
}

// Invalidator drops cached destination groups.
type Invalidator interface {
	Invalidate()
}

// Deps are the long-lived components the API exposes. Deliveries may be nil
// when the ClickHouse log is disabled.
type Deps struct {
	Sender     ProductSender
	Products   repository.ProductsRepository
	Drainer    QueueDrainer
	Queue      QueueService
	Groups     repository.GroupsRepository
	Resolver   Invalidator
	Deliveries repository.CHDeliveriesRepository
	Gateway    GatewayStatus
	Redis      *redis.Client
}

var _ QueueService = (*queue.Service)(nil)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	loc := cfg.Scheduler.Location()

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", rlMW)
	v1.GET("/gateway/status", gatewayStatusHandler(d.Gateway))

	v1.POST("/products/:id/send", sendProductHandler(d.Sender))
	v1.PUT("/products/:id/schedule", setScheduleHandler(d.Products, loc))
	v1.DELETE("/products/:id/schedule", clearScheduleHandler(d.Products))

	v1.GET("/queue", listQueueHandler(d.Queue))
	v1.POST("/queue", enqueueHandler(d.Queue, loc))
	v1.GET("/queue/stats", queueStatsHandler(d.Queue))
	v1.POST("/queue/process", processQueueHandler(d.Drainer))
	v1.POST("/queue/prune", pruneQueueHandler(d.Queue))
	v1.GET("/queue/settings", getQueueSettingsHandler(d.Queue))
	v1.PUT("/queue/settings", putQueueSettingsHandler(d.Queue))
	v1.DELETE("/queue/:id", deleteQueueHandler(d.Queue))
	v1.POST("/queue/:id/requeue", requeueHandler(d.Queue, loc))

	v1.GET("/groups", listGroupsHandler(d.Groups))
	v1.POST("/groups", upsertGroupHandler(d.Groups, d.Resolver))
	v1.PATCH("/groups/:grupo_id", toggleGroupHandler(d.Groups, d.Resolver))
	v1.DELETE("/groups/:grupo_id", deleteGroupHandler(d.Groups, d.Resolver))

	v1.GET("/reports/deliveries", listDeliveriesHandler(d.Deliveries))

	return &Server{e: e, log: log.Named("http")}
}

func (s *Server) Start(addr string) error {
	s.log.Info("listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func errJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// parseWhen accepts RFC3339, or a local wall time without offset
// ("2006-01-02T15:04[:05]" or "2006-01-02 15:04[:05]") read in loc.
func parseWhen(s string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
