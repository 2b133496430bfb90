package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

const (
	// MaxRequestBytes bounds the POST /run body.
	MaxRequestBytes = 1 << 20
	// RunInterval is the minimum delay between two accepted runs.
	RunInterval = 5 * time.Second
)

// RunRequest is the POST /run body.
type RunRequest struct {
	Mission string `json:"mission"`
}

// RunMissionFunc runs a named mission. It is called from a goroutine.
type RunMissionFunc func(ctx context.Context, mission string) error

// PoseSource reports the latest position fix.
type PoseSource interface {
	Pose() geometry.Pose
}

// CourseInfo lists what the control page can offer.
type CourseInfo struct {
	Missions  []string                   `json:"missions"`
	Locations map[string]config.Location `json:"locations"`
}

// NewCourseInfo extracts mission and location names from the config.
func NewCourseInfo(cfg *config.Config) CourseInfo {
	return CourseInfo{Missions: cfg.MissionNames(), Locations: cfg.Locations}
}

// ValidateRequest checks that the request names a known mission.
func ValidateRequest(req RunRequest, missions []string) error {
	if req.Mission == "" {
		return errors.New("mission is required")
	}
	if !slices.Contains(missions, req.Mission) {
		return fmt.Errorf("unknown mission %q", req.Mission)
	}
	return nil
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	RunMission  RunMissionFunc
	Info        CourseInfo
	Poses       PoseSource

	baseCtx   context.Context
	limiter   *rate.Limiter
	runningMu sync.Mutex
	running   bool
	staticFS  fs.FS
}

// NewHandlers creates handlers. A nil runMission makes POST /run answer 503,
// a nil poses makes GET /pose answer 503.
func NewHandlers(broadcaster *StatusBroadcaster, runMission RunMissionFunc, info CourseInfo, poses PoseSource, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		RunMission:  runMission,
		Info:        info,
		Poses:       poses,
		baseCtx:     context.Background(),
		limiter:     rate.NewLimiter(rate.Every(RunInterval), 1),
		staticFS:    staticFS,
	}
}

// HandleConfig returns the mission and location names as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Info)
}

// HandlePose returns the latest position fix.
func (h *Handlers) HandlePose(w http.ResponseWriter, r *http.Request) {
	if h.Poses == nil {
		http.Error(w, "no position source", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, NewPoseView(h.Poses.Pose()))
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to start a mission. Only one mission runs at a
// time and starts are rate limited.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateRequest(req, h.Info.Missions); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunMission == nil {
		http.Error(w, "missions not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "mission already in progress", http.StatusConflict)
		return
	}
	if !h.limiter.Allow() {
		h.runningMu.Unlock()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		h.Broadcaster.Broadcast("info", "Mission "+req.Mission+" started")
		if err := h.RunMission(h.baseCtx, req.Mission); err != nil {
			h.Broadcaster.Broadcast("error", "Mission failed: "+err.Error())
			debug.Error(fmt.Errorf("mission %s: %w", req.Mission, err))
		} else {
			h.Broadcaster.Broadcast("info", "Mission "+req.Mission+" complete")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "mission": req.Mission})
}

// Running reports whether a mission started over HTTP is still going.
func (h *Handlers) Running() bool {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	return h.running
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	heartbeat := h.Broadcaster.clk.Ticker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-heartbeat.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Warn("encode response: %v", err)
	}
}
