package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"birdcatalog/internal/events"
	"birdcatalog/internal/metrics"
	"birdcatalog/internal/models"
)

// Catalog is the data access the handlers need; *storage.Storage satisfies it.
type Catalog interface {
	Ping(ctx context.Context) error
	ListStatuses(ctx context.Context) ([]models.ConservationStatus, error)
	ListBirds(ctx context.Context) ([]models.BirdDetail, error)
	GetBird(ctx context.Context, id int64) (models.BirdDetail, error)
	CreateBird(ctx context.Context, in models.BirdInput, photo models.Photo) (int64, error)
	UpdateBird(ctx context.Context, id int64, in models.BirdInput, photo *models.Photo) (string, error)
	DeleteBird(ctx context.Context, id int64) ([]string, error)
}

// PhotoStore persists uploaded photos; *photos.Store satisfies it.
type PhotoStore interface {
	Save(fh *multipart.FileHeader) (string, error)
	Remove(name string) error
}

type Server struct {
	cfg       *models.Config
	router    *gin.Engine
	http      *http.Server
	catalog   Catalog
	photos    PhotoStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewServer(cfg *models.Config, catalog Catalog, photos PhotoStore, publisher events.Publisher,
	m *metrics.Metrics, log *zap.Logger) (*Server, error) {
	const op = "server.NewServer"

	gin.SetMode(cfg.GinMode)
	r := gin.New()

	tmpl, err := parseViews()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = cfg.MaxUploadBytes()

	scripts, err := fs.Sub(staticFS, "static/js")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Server{
		cfg:       cfg,
		router:    r,
		catalog:   catalog,
		photos:    photos,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}

	r.Use(requestID(), s.logRequests(), s.recordMetrics(), gin.CustomRecovery(s.recoverPanic))

	r.Static("/images", cfg.StoragePath)
	r.StaticFS("/js", http.FS(scripts))
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	r.GET("/", s.handleHome)
	birds := r.Group("/birds")
	{
		birds.GET("", s.handleListBirds)
		birds.GET("/create", s.handleCreateForm)
		birds.GET("/:id", s.handleViewBird)
		birds.GET("/:id/update", s.handleUpdateForm)
		birds.GET("/:id/delete", s.handleDeleteBird)

		uploads := birds.Group("", s.limitBody())
		uploads.POST("/create", s.handleCreateBird)
		uploads.POST("/edit", s.handleEditBird)
	}
	r.NoRoute(s.handleNotFound)

	s.http = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.cfg.ServerAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop waits for in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// publish sends events for a committed write. Failures are logged only.
func (s *Server) publish(ctx context.Context, evs ...events.Event) {
	ctx = context.WithoutCancel(ctx)
	result := "published"
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		result = "error"
		s.log.Warn("failed to publish catalog events", zap.Error(err), zap.Int("count", len(evs)))
	}
	for _, ev := range evs {
		s.metrics.EventsTotal.WithLabelValues(string(ev.Kind), result).Inc()
	}
}

func (s *Server) discardPhoto(name string) {
	if err := s.photos.Remove(name); err != nil {
		s.log.Warn("failed to remove unused photo", zap.String("filename", name), zap.Error(err))
	}
}
