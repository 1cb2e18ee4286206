package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/sketchgui/internal/gui"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sketchgui/internal/projects"
	"github.com/GriffinCanCode/sketchgui/internal/sandbox"
	"github.com/GriffinCanCode/sketchgui/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "0.3.0"

// Session is the GUI session surface the API needs
type Session interface {
	Snapshot() gui.Snapshot
	Document() (string, error)
	Query(expr string) ([]sandbox.Match, error)
	Console() ([]sandbox.LogEntry, error)
	Reload(rawURL string) error
}

// Connector accepts control connection events
type Connector interface {
	HandleConnection(project *string)
}

// Catalog lists projects on disk
type Catalog interface {
	List(ctx context.Context) ([]projects.Project, error)
	Get(ctx context.Context, name string) (projects.Project, bool, error)
}

// AttemptStats summarizes recent load attempts
type AttemptStats interface {
	AttemptSummaries() map[string]monitoring.Summary
}

// LevelControl reads and changes the log level
type LevelControl interface {
	Level() string
	SetLevel(level string) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	session   Session
	connector Connector
	catalog   Catalog
	stats     AttemptStats
	levels    LevelControl
	hasher    *utils.Hasher
	logger    *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(session Session, connector Connector, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		session:   session,
		connector: connector,
		hasher:    utils.DefaultHasher(),
		logger:    logger,
	}
}

// WithCatalog enables the project listing endpoints
func (h *Handlers) WithCatalog(catalog Catalog) *Handlers {
	h.catalog = catalog
	return h
}

// WithStats enables the attempt statistics endpoint
func (h *Handlers) WithStats(stats AttemptStats) *Handlers {
	h.stats = stats
	return h
}

// WithLogLevel enables the log level endpoints
func (h *Handlers) WithLogLevel(levels LevelControl) *Handlers {
	h.levels = levels
	return h
}

// ConnectionRequest mirrors a control channel connection frame
type ConnectionRequest struct {
	ProjectName *string `json:"projectName"`
}

// LevelRequest sets the log level
type LevelRequest struct {
	Level string `json:"level" binding:"required"`
}

// ReloadRequest names the location to reload at
type ReloadRequest struct {
	URL string `json:"url"`
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "sketchgui",
		"version": version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	snap := h.session.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"gui": gin.H{
			"phase":        snap.Phase,
			"outcome":      snap.Outcome,
			"resolving":    snap.Resolving,
			"sandbox_live": snap.SandboxLive,
		},
	})
}

// State returns the session snapshot
func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// Document returns the sandbox document as HTML
func (h *Handlers) Document(c *gin.Context) {
	doc, err := h.session.Document()
	if err != nil {
		h.sandboxError(c, err)
		return
	}
	h.html(c, []byte(doc))
}

// Query evaluates ?xpath= against the sandbox document
func (h *Handlers) Query(c *gin.Context) {
	expr := c.Query("xpath")
	if err := utils.ValidateXPath(expr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	matches, err := h.session.Query(expr)
	if err != nil {
		if errors.Is(err, gui.ErrNoSandbox) {
			h.sandboxError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"elements": matches,
		"count":    len(matches),
	})
}

// Console returns the sandbox console
func (h *Handlers) Console(c *gin.Context) {
	entries, err := h.session.Console()
	if err != nil {
		h.sandboxError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// Connection injects a control connection event
func (h *Handlers) Connection(c *gin.Context) {
	var req ConnectionRequest
	if !h.bind(c, &req) {
		return
	}
	if req.ProjectName != nil && *req.ProjectName != "" {
		if err := utils.ValidateProjectName(*req.ProjectName); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.connector.HandleConnection(req.ProjectName)
	c.JSON(http.StatusAccepted, h.session.Snapshot())
}

// Reload restarts navigation at the requested location
func (h *Handlers) Reload(c *gin.Context) {
	var req ReloadRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	if err := utils.ValidateURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.session.Reload(req.URL); err != nil {
		switch {
		case errors.Is(err, gui.ErrClosed), errors.Is(err, gui.ErrNotStarted):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	h.logger.Info("Reload requested", zap.String("url", req.URL))
	c.JSON(http.StatusAccepted, h.session.Snapshot())
}

// Template serves the sandbox template surface
func (h *Handlers) Template(c *gin.Context) {
	h.html(c, []byte(sandbox.Template))
}

// Projects lists the projects on disk
func (h *Handlers) Projects(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project catalog disabled"})
		return
	}

	list, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.catalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": list,
		"count":    len(list),
	})
}

// Project returns one project from the catalog
func (h *Handlers) Project(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project catalog disabled"})
		return
	}

	name := c.Param("name")
	p, ok, err := h.catalog.Get(c.Request.Context(), name)
	if err != nil {
		h.catalogError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found", "name": name})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Stats returns recent load attempt durations by kind
func (h *Handlers) Stats(c *gin.Context) {
	summaries := map[string]monitoring.Summary{}
	if h.stats != nil {
		summaries = h.stats.AttemptSummaries()
	}
	c.JSON(http.StatusOK, gin.H{"attempts": summaries})
}

// LogLevel reports the current log level
func (h *Handlers) LogLevel(c *gin.Context) {
	if h.levels == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "log level control disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": h.levels.Level()})
}

// SetLogLevel changes the log level at runtime
func (h *Handlers) SetLogLevel(c *gin.Context) {
	if h.levels == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "log level control disabled"})
		return
	}
	var req LevelRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.levels.SetLevel(req.Level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("Log level changed", zap.String("level", req.Level))
	c.JSON(http.StatusOK, gin.H{"level": h.levels.Level()})
}

// html writes an HTML body with an entity tag, answering conditional
// requests with 304
func (h *Handlers) html(c *gin.Context, body []byte) {
	tag := h.hasher.ETag(body)
	c.Header("ETag", tag)
	if match := c.GetHeader("If-None-Match"); match != "" && match == tag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxJSONSize)
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handlers) catalogError(c *gin.Context, err error) {
	if errors.Is(err, projects.ErrNoRoot) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	h.logger.Error("Project catalog failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handlers) sandboxError(c *gin.Context, err error) {
	if errors.Is(err, gui.ErrNoSandbox) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Sandbox request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
