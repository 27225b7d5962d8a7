package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eekfonky/healthcore/internal/alert"
	"github.com/eekfonky/healthcore/internal/health"
	"github.com/eekfonky/healthcore/internal/memmon"
	"github.com/eekfonky/healthcore/internal/procman"
	"github.com/eekfonky/healthcore/internal/sysmon"
)

// Router provides embeddable HTTP handlers for the operator API.
// Endpoints:
//
//	GET  {basePath}/healthz          liveness plus overall level
//	GET  {basePath}/status           full composed health report
//	GET  {basePath}/alerts           recent alerts, newest last
//	GET  {basePath}/processes        tracked child processes
//	POST {basePath}/processes/exec   body: exec request JSON
//	POST {basePath}/processes/kill   query: id=... OR all=1, signal=SIGTERM
//	POST {basePath}/cleanup          temp-file sweep, zombie reap, forced GC
//	POST {basePath}/emergency        query: reason=... (guarded)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	agg      *health.Aggregator
	mem      *memmon.Monitor
	sys      *sysmon.Monitor
	procs    *procman.Manager
	alerts   *alert.Dispatcher
	basePath string
}

func NewRouter(agg *health.Aggregator, mem *memmon.Monitor, sys *sysmon.Monitor,
	procs *procman.Manager, alerts *alert.Dispatcher, basePath string) *Router {
	return &Router{
		agg:      agg,
		mem:      mem,
		sys:      sys,
		procs:    procs,
		alerts:   alerts,
		basePath: sanitizeBase(basePath),
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/status", r.handleStatus)
	group.GET("/alerts", r.handleAlerts)
	group.GET("/processes", r.handleProcesses)
	group.POST("/processes/exec", r.handleExec)
	group.POST("/processes/kill", r.handleKill)
	group.POST("/cleanup", r.handleCleanup)
	group.POST("/emergency", r.handleEmergency)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	st := r.agg.Status()
	code := http.StatusOK
	if st.Overall == health.Emergency {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": st.Overall})
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.agg.Status())
}

func (r *Router) handleAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, r.alerts.Recent())
}

func (r *Router) handleProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, r.procs.Running())
}

type execRequest struct {
	Command string        `json:"command"`
	Args    []string      `json:"args"`
	Timeout time.Duration `json:"timeout"`
	WorkDir string        `json:"work_dir"`
}

func (r *Router) handleExec(c *gin.Context) {
	var req execRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Command == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "command required"})
		return
	}
	rec, err := r.procs.Execute(c.Request.Context(), req.Command, req.Args, procman.Options{
		Timeout: req.Timeout,
		WorkDir: req.WorkDir,
	})
	if err != nil {
		code := http.StatusInternalServerError
		var sec *procman.SecurityError
		switch {
		case asSecurityError(err, &sec):
			code = http.StatusForbidden
		case errors.Is(err, procman.ErrTimeout) || errors.Is(err, procman.ErrOutputLimit):
			code = http.StatusRequestTimeout
		}
		c.JSON(code, gin.H{"error": err.Error(), "record": rec})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleKill(c *gin.Context) {
	signal := c.DefaultQuery("signal", "SIGTERM")
	if !procman.ValidSignal(signal) {
		c.JSON(http.StatusBadRequest, errorResp{Error: "unrecognized signal name: " + signal})
		return
	}
	if c.Query("all") != "" {
		n := r.procs.KillAll(signal)
		c.JSON(http.StatusOK, gin.H{"killed": n})
		return
	}
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "id or all=1 required"})
		return
	}
	if err := r.procs.Kill(id, signal); err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, procman.ErrNotFound):
			code = http.StatusNotFound
		case errors.Is(err, procman.ErrBadSignal):
			code = http.StatusBadRequest
		}
		c.JSON(code, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleCleanup(c *gin.Context) {
	removed := r.sys.ForceCleanup()
	r.mem.ForceGC()
	c.JSON(http.StatusOK, gin.H{"temp_files_removed": removed})
}

func (r *Router) handleEmergency(c *gin.Context) {
	reason := c.DefaultQuery("reason", "operator request")
	ran, errs := r.agg.TriggerEmergencyResponse(reason)
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	c.JSON(http.StatusOK, gin.H{"executed": ran, "errors": msgs})
}
