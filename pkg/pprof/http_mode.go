package pprof

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// HTTPMode serves the pprof endpoints so profiles can be pulled from a
// benchmark while it runs.
type HTTPMode struct {
	config    *HTTPConfig
	collector *Collector

	server *http.Server
	mux    *http.ServeMux
	wg     sync.WaitGroup
}

// NewHTTPMode creates a new HTTPMode.
func NewHTTPMode(config *HTTPConfig) *HTTPMode {
	if config == nil {
		config = DefaultConfig().HTTPConfig
	}
	return &HTTPMode{
		config: config,
		mux:    http.NewServeMux(),
	}
}

// Name returns the mode name.
func (hm *HTTPMode) Name() string {
	return "http"
}

// Start brings up the endpoint server.
func (hm *HTTPMode) Start(ctx context.Context, collector *Collector) error {
	hm.collector = collector

	// Block and mutex profiles need their runtime rates raised first.
	cfg := collector.Config()
	if cfg.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	hm.registerHandlers()

	hm.server = &http.Server{
		Addr:         hm.config.Addr,
		Handler:      hm.mux,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	hm.wg.Add(1)
	go func() {
		defer hm.wg.Done()
		if err := hm.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hm.collector.addError(fmt.Sprintf("pprof HTTP server error: %v", err))
		}
	}()
	return nil
}

// Stop shuts the server down and restores the runtime profiling rates.
func (hm *HTTPMode) Stop() error {
	if hm.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hm.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)

	hm.wg.Wait()
	return nil
}

// Handler returns the mux, for mounting on an existing server.
func (hm *HTTPMode) Handler() http.Handler {
	return hm.mux
}

func (hm *HTTPMode) registerHandlers() {
	prefix := strings.TrimSuffix(hm.config.Path, "/")

	hm.mux.HandleFunc(prefix+"/", pprof.Index)
	hm.mux.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
	hm.mux.HandleFunc(prefix+"/symbol", pprof.Symbol)
	hm.mux.HandleFunc(prefix+"/trace", pprof.Trace)

	hm.mux.HandleFunc(prefix+"/profile", hm.handleCPUProfile)
	for _, pt := range []ProfileType{ProfileHeap, ProfileGoroutine, ProfileBlock, ProfileMutex, ProfileAllocs} {
		hm.mux.HandleFunc(prefix+"/"+string(pt), hm.profileHandler(pt))
	}

	// Extended endpoints
	hm.mux.HandleFunc(prefix+"/status", hm.handleStatus)
	hm.mux.HandleFunc(prefix+"/snapshot", hm.handleSnapshot)
}

// attachmentHeaders marks the response as a downloadable pprof file.
func attachmentHeaders(w http.ResponseWriter, pt ProfileType) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s_%s.pprof", pt, time.Now().Format("20060102_150405")))
}

func (hm *HTTPMode) handleCPUProfile(w http.ResponseWriter, r *http.Request) {
	seconds := hm.config.DefaultSeconds
	if s := r.URL.Query().Get("seconds"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			seconds = n
		}
	}
	seconds = min(seconds, 300)

	attachmentHeaders(w, ProfileCPU)
	data, err := hm.collector.SnapshotCPU(r.Context(), time.Duration(seconds)*time.Second)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

func (hm *HTTPMode) profileHandler(pt ProfileType) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := hm.collector.Snapshot(pt)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		attachmentHeaders(w, pt)
		w.Write(data)
	}
}

func (hm *HTTPMode) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hm.collector.Status())
}

// handleSnapshot writes every configured non-CPU profile to the output
// directory in one request.
func (hm *HTTPMode) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profiles := hm.collector.Config().Profiles
	if q := r.URL.Query().Get("profiles"); q != "" {
		var err error
		if profiles, err = ParseProfileTypes(q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	resp := struct {
		Files  map[string]string `json:"files"`
		Errors map[string]string `json:"errors"`
	}{
		Files:  make(map[string]string),
		Errors: make(map[string]string),
	}

	for _, pt := range profiles {
		if pt == ProfileCPU {
			// A timed CPU profile does not fit a batch snapshot.
			continue
		}
		data, err := hm.collector.Snapshot(pt)
		if err != nil {
			resp.Errors[string(pt)] = err.Error()
			continue
		}
		filePath, err := hm.collector.WriteSnapshot(pt, data)
		if err != nil {
			resp.Errors[string(pt)] = err.Error()
			continue
		}
		resp.Files[string(pt)] = filePath
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
