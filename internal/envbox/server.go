package envbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-ici-sync/internal/metrics"
	"github.com/penwyp/go-ici-sync/internal/util"
	"github.com/tidwall/gjson"
)

const maxRequestBytes = 32 << 20

// Server exposes a Box over the env-box HTTP contract.
type Server struct {
	box     Box
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

type getResponse struct {
	EnvID string          `json:"env_id"`
	Value json.RawMessage `json:"value"`
}

type postResponse struct {
	Success     bool   `json:"success"`
	EnvID       string `json:"env_id"`
	StoredItems int64  `json:"stored_items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer serves box; m may be nil, in which case /metrics is not mounted.
func NewServer(box Box, m *metrics.Metrics) *Server {
	s := &Server{box: box, metrics: m, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /env-box", s.handleGet)
	s.mux.HandleFunc("POST /env-box", s.handlePost)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		s.mux.Handle("GET /metrics", m.Handler())
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	envID := r.URL.Query().Get("env_id")
	if envID == "" {
		s.writeError(w, r, http.StatusBadRequest, "env_id is required")
		return
	}

	value, err := s.box.Load(r.Context(), envID)
	if err != nil {
		util.LogError("envbox load failed", util.F("env", envID), util.F("error", err))
		s.writeError(w, r, http.StatusInternalServerError, "storage unavailable")
		return
	}
	if value == nil {
		value = []byte("[]")
	}
	s.writeJSON(w, r, http.StatusOK, getResponse{EnvID: envID, Value: json.RawMessage(value)})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil || !gjson.ValidBytes(body) {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON")
		return
	}

	envID := gjson.GetBytes(body, "env_id").String()
	if envID == "" {
		s.writeError(w, r, http.StatusBadRequest, "env_id is required")
		return
	}
	value := gjson.GetBytes(body, "value")
	raw := []byte(value.Raw)
	switch {
	case !value.Exists() || value.Type == gjson.Null:
		raw = []byte("[]")
	case !value.IsArray():
		s.writeError(w, r, http.StatusBadRequest, "value must be an array")
		return
	}

	if err := s.box.Store(r.Context(), envID, raw); err != nil {
		util.LogError("envbox store failed", util.F("env", envID), util.F("error", err))
		s.writeError(w, r, http.StatusInternalServerError, "storage unavailable")
		return
	}

	count := gjson.GetBytes(raw, "#").Int()
	s.metrics.SetEnvboxItems(envID, int(count))
	util.LogDebug("envbox stored", util.F("env", envID), util.F("items", count))
	s.writeJSON(w, r, http.StatusOK, postResponse{Success: true, EnvID: envID, StoredItems: count})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	s.writeJSON(w, r, code, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		data = []byte(`{"error":"encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
	s.metrics.ObserveEnvboxRequest(r.Method, code)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.LogInfo("envbox listening", util.F("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
