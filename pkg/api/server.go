// Package api provides the REST API server for chordtokit
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/mty/chordtokit/pkg/capture"
	"github.com/mty/chordtokit/pkg/config"
	"github.com/mty/chordtokit/pkg/midiio"
	"github.com/mty/chordtokit/pkg/trigger"
)

// @title ChordToKit API
// @version 1.0
// @description Remote control for the chord-to-kit capture engine
// @host localhost:8080
// @BasePath /api/v1

// Server exposes the capture engine over HTTP. The engine is single-owner,
// so every handler and the background tick loop serialize through one mutex
// at this boundary.
type Server struct {
	mu        sync.Mutex
	engine    *capture.Engine
	transport *midiio.Transport
	cfg       config.Config
	cfgPath   string
	log       *logrus.Logger
}

// New wires a server around an engine and its transport.
func New(engine *capture.Engine, transport *midiio.Transport, cfg config.Config, cfgPath string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		engine:    engine,
		transport: transport,
		cfg:       cfg,
		cfgPath:   cfgPath,
		log:       log,
	}
}

// Run starts the engine tick loop and serves until the listener fails.
func (s *Server) Run(port int) error {
	stop := make(chan struct{})
	defer close(stop)
	go s.tickLoop(stop)
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

func (s *Server) tickLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.engine.Tick()
			s.mu.Unlock()
		}
	}
}

// Router builds the gin router
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.healthCheck)
		v1.GET("/state", s.getState)
		v1.GET("/ports", s.getPorts)
		v1.GET("/history", s.getHistory)
		v1.GET("/config", s.getConfig)
		v1.PUT("/config", s.putConfig)
		v1.POST("/mapping", s.postMapping)
		v1.POST("/patch", s.postPatch)
		v1.POST("/undo", s.postUndo)
		v1.POST("/capture", s.postCapture)
		v1.DELETE("/capture", s.deleteCapture)
	}

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "chordtokit",
	})
}

// getState godoc
// @Summary Current engine and module state
// @Tags state
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /state [get]
func (s *Server) getState(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.engine.Session()
	resp := gin.H{
		"mode":        s.engine.Mode().String(),
		"slots":       s.engine.Device().State(),
		"has_dump":    s.engine.Device().HasRawDump(),
		"learned":     s.engine.LearnedMapping(),
		"history_len": s.engine.History().Len(),
		"bucket": gin.H{
			"notes":    session.Notes(),
			"progress": session.Progress(),
			"target":   session.Policy().TargetCount,
		},
	}
	if err := s.engine.Err(); err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// getPorts godoc
// @Summary List MIDI ports and current selection
// @Tags ports
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /ports [get]
func (s *Server) getPorts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"inputs":  s.transport.Inputs(),
		"outputs": s.transport.Outputs(),
		"open": gin.H{
			"input":        s.transport.InputName(),
			"output":       s.transport.OutputName(),
			"module_input": s.transport.ModuleInputName(),
		},
	})
}

// getHistory godoc
// @Summary Undo history, oldest first
// @Tags history
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /history [get]
func (s *Server) getHistory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.engine.History().Entries()
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case capture.EntryMapping:
			out = append(out, gin.H{"kind": "mapping", "slots": e.Mapping})
		default:
			out = append(out, gin.H{"kind": "raw_frame", "bytes": len(e.RawFrame)})
		}
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// getConfig godoc
// @Summary Current configuration
// @Tags config
// @Produce json
// @Success 200 {object} config.Config
// @Router /config [get]
func (s *Server) getConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.cfg)
}

// putConfig godoc
// @Summary Replace configuration and persist it
// @Tags config
// @Accept json
// @Produce json
// @Success 200 {object} config.Config
// @Failure 400 {object} map[string]string
// @Router /config [put]
func (s *Server) putConfig(c *gin.Context) {
	var cfg config.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.engine.SetPolicy(capture.Policy{
		TargetCount:      trigger.SlotCount,
		AllowDuplicates:  cfg.AllowDuplicateNotes,
		OctaveDownLowest: cfg.OctaveDownLowest,
		Timeout:          time.Duration(cfg.CaptureTimeoutSeconds * float64(time.Second)),
	})
	if s.cfgPath != "" {
		if err := s.cfg.Save(s.cfgPath); err != nil {
			s.log.WithError(err).Warn("saving config failed")
		}
	}
	c.JSON(http.StatusOK, s.cfg)
}

type mappingRequest struct {
	Notes []uint8 `json:"notes" binding:"required"`
}

// postMapping godoc
// @Summary Write a full 4-note mapping to the module
// @Tags mapping
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /mapping [post]
func (s *Server) postMapping(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.ApplyMapping(req.Notes); err != nil {
		status := http.StatusBadRequest
		if err == capture.ErrSendFailed {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": s.engine.Device().State()})
}

type patchRequest struct {
	Old uint8 `json:"old"`
	New uint8 `json:"new"`
}

// postPatch godoc
// @Summary Replace one note throughout the cached kit dump
// @Tags mapping
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Router /patch [post]
func (s *Server) postPatch(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engine.PatchNote(req.Old, req.New) {
		c.JSON(http.StatusConflict, gin.H{"error": "patch not applied; sync a kit dump first and check the note exists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": s.engine.Device().State()})
}

// postUndo godoc
// @Summary Undo the most recent change
// @Tags mapping
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Router /undo [post]
func (s *Server) postUndo(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engine.Undo() {
		c.JSON(http.StatusConflict, gin.H{"error": "nothing to undo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": s.engine.Device().State()})
}

type captureRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// postCapture godoc
// @Summary Activate a capture mode (chord, learn, single, sync)
// @Tags capture
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /capture [post]
func (s *Server) postCapture(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode: " + req.Mode})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Activate(mode); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": s.engine.Mode().String()})
}

// deleteCapture godoc
// @Summary Cancel the active capture mode
// @Tags capture
// @Produce json
// @Success 200 {object} map[string]string
// @Router /capture [delete]
func (s *Server) deleteCapture(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Deactivate()
	c.JSON(http.StatusOK, gin.H{"mode": s.engine.Mode().String()})
}

func parseMode(name string) (capture.Mode, bool) {
	switch name {
	case "chord":
		return capture.ModeChord, true
	case "learn":
		return capture.ModeLearn, true
	case "single":
		return capture.ModeSingle, true
	case "sync":
		return capture.ModeSync, true
	}
	return capture.ModeIdle, false
}
