package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/sketchgui/internal/api/http"
	"github.com/GriffinCanCode/sketchgui/internal/api/middleware"
	"github.com/GriffinCanCode/sketchgui/internal/api/ws"
	"github.com/GriffinCanCode/sketchgui/internal/content"
	"github.com/GriffinCanCode/sketchgui/internal/control"
	"github.com/GriffinCanCode/sketchgui/internal/gui"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/config"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sketchgui/internal/navigation"
	"github.com/GriffinCanCode/sketchgui/internal/projects"
	"github.com/GriffinCanCode/sketchgui/internal/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	gui     *gui.Handler
	channel *control.Channel
	control *control.Client
	pool    *sandbox.Pool
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Service:     "sketchgui",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing Bela GUI server",
		zap.String("port", cfg.Server.Port),
		zap.String("content", cfg.Content.BaseURL),
		zap.String("control", cfg.Control.URL),
	)

	// Metrics first, other components record into them
	metrics := monitoring.NewMetrics()

	channel := control.NewChannel(logger.Component("control")).
		WithConnectHook(metrics.RecordControlConnection)

	var controlClient *control.Client
	if cfg.Control.Enabled && cfg.Control.URL != "" {
		controlClient = control.NewClient(cfg.Control.URL, channel,
			cfg.Control.ReconnectMin, cfg.Control.ReconnectMax, logger.Component("control"))
	}

	contentClient, err := content.NewClient(content.Config{
		BaseURL:   cfg.Content.BaseURL,
		Timeout:   cfg.Content.Timeout,
		Retries:   cfg.Content.Retries,
		RPS:       cfg.Content.RPS,
		UserAgent: "sketchgui",

		BreakerThreshold: cfg.Content.BreakerThreshold,
		BreakerCooldown:  cfg.Content.BreakerCooldown,
	}, logger.Component("content"))
	if err != nil {
		return nil, fmt.Errorf("failed to create content client: %w", err)
	}

	sandboxCfg := sandbox.Config{
		MaxMemoryMB:   cfg.Sandbox.MaxMemoryMB,
		Timeout:       cfg.Sandbox.Timeout,
		EnableConsole: cfg.Sandbox.EnableConsole,
	}
	var (
		runtimes sandbox.RuntimeSource = sandbox.Fresh(sandboxCfg)
		pool     *sandbox.Pool
	)
	if cfg.Sandbox.PoolSize > 0 {
		pool, err = sandbox.NewPool(sandboxCfg, cfg.Sandbox.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
		}
		runtimes = pool
	}

	location, err := navigation.New(cfg.GUI.StartURL)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("invalid gui start url: %w", err)
	}

	guiHandler := gui.New(gui.Options{
		Config:   cfg.GUI,
		Host:     sandbox.NewHost(cfg.GUI.HostID),
		Location: location,
		Channel:  channel,
		Pages:    content.NewPageFetcher(contentClient),
		Scripts:  content.NewScriptLoader(contentClient),
		Runtimes: runtimes,
		Logger:   logger.Component("gui"),
		Metrics:  metrics,
	})

	catalog, err := projects.NewCatalog(projects.DefaultConfig(cfg.Content.ProjectsDir))
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("failed to create project catalog: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(guiHandler, channel, logger.Component("api")).
		WithCatalog(catalog).
		WithStats(metrics).
		WithLogLevel(logger)
	wsHandler := ws.NewHandler(guiHandler, channel, ws.DefaultConfig(), metrics, logger.Component("ws"))
	registerRoutes(router, cfg, handlers, wsHandler, metrics)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
		},
		gui:     guiHandler,
		channel: channel,
		control: controlClient,
		pool:    pool,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

func registerRoutes(router *gin.Engine, cfg *config.Config, handlers *apihttp.Handlers, wsHandler *ws.Handler, metrics *monitoring.Metrics) {
	// Project pages and sketches, plus the p5 runtime and default sketch
	static(router, "/projects", cfg.Content.ProjectsDir)
	static(router, "/js", filepath.Join(cfg.Content.StaticDir, "js"))
	static(router, "/gui/p5-sketches", filepath.Join(cfg.Content.StaticDir, "p5-sketches"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/gui/", handlers.Template)
	router.GET("/gui/gui-template.html", handlers.Template)

	api := router.Group("/api/gui")
	api.GET("/state", handlers.State)
	api.GET("/document", handlers.Document)
	api.GET("/console", handlers.Console)
	api.GET("/query", handlers.Query)
	api.GET("/stats", handlers.Stats)
	api.POST("/connection", handlers.Connection)
	api.POST("/reload", handlers.Reload)

	router.GET("/api/log/level", handlers.LogLevel)
	router.PUT("/api/log/level", handlers.SetLogLevel)

	router.GET("/api/projects", handlers.Projects)
	router.GET("/api/projects/:name", handlers.Project)

	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// static serves dir under prefix, gzipped for clients that accept it
func static(router *gin.Engine, prefix, dir string) {
	h := gin.WrapH(gzhttp.GzipHandler(http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))))
	router.GET(prefix+"/*filepath", h)
	router.HEAD(prefix+"/*filepath", h)
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// GUI returns the GUI session handler
func (s *Server) GUI() *gui.Handler {
	return s.gui
}

// Start begins project resolution and, if enabled, the control channel
// client. It does not serve HTTP.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.gui.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start gui: %w", err)
	}

	if s.control != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.control.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Control client stopped", zap.Error(err))
			}
		}()
	}
	return nil
}

// Run binds the configured address, then starts the GUI and serves HTTP
// until Close. A bind failure returns before the GUI session starts.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve starts the GUI and serves HTTP on ln until Close
func (s *Server) Serve(ln net.Listener) error {
	if err := s.Start(context.Background()); err != nil {
		ln.Close()
		return err
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	// Viewer streams are hijacked connections Shutdown does not track;
	// closing the GUI ends them and destroys the sandbox.
	if err := s.gui.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close gui: %w", err))
	}

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()

	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sandbox pool: %w", err))
		}
	}

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}
