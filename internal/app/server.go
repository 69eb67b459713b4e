package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/your-org/promptchain/internal/audit"
	"github.com/your-org/promptchain/internal/metrics"
	"github.com/your-org/promptchain/internal/security"
	"github.com/your-org/promptchain/internal/store"
	"github.com/your-org/promptchain/pkg/chain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxRequestBody = 1 << 20

// RunBody is the POST /api/runs request.
type RunBody struct {
	ChainPath string         `json:"chain_path"`
	Context   map[string]any `json:"context,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
}

// RunResponse is the POST /api/runs reply. Trace is partial when Error is set.
type RunResponse struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Error      string       `json:"error,omitempty"`
	FailedStep int          `json:"failed_step,omitempty"`
	Trace      *chain.Trace `json:"trace,omitempty"`
}

// Handler serves health checks and the JSON API the trace viewer reads.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.store.List(r.Context(), 1); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /api/traces", a.handleListTraces)
	mux.HandleFunc("GET /api/traces/{id}", a.handleGetTrace)
	mux.HandleFunc("POST /api/runs", a.handleRun)
	return mux
}

func (a *App) handleListTraces(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	list, err := a.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": list})
}

func (a *App) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	rec, err := a.store.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	var body RunBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	path, err := a.resolveChainPath(body.ChainPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := a.RunChain(r.Context(), RunRequest{
		ChainPath: path,
		Overrides: body.Context,
		Provider:  body.Provider,
		Model:     body.Model,
		OutPath:   "-",
		Persist:   true,
	})
	rec := report.Record
	if rec.ID == "" {
		status := http.StatusBadRequest
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	resp := RunResponse{ID: rec.ID, Status: rec.Status, Trace: &rec.Trace}
	if err != nil {
		resp.Error = err.Error()
		resp.FailedStep = rec.FailedStep
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// resolveChainPath maps a request path onto a file inside ChainsDir.
func (a *App) resolveChainPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("chain_path is required")
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("chain_path %q must stay inside the chains directory", p)
	}
	if filepath.Ext(clean) == "" {
		clean += ".yaml"
	}
	return filepath.Join(a.cfg.ChainsDir, clean), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Serve runs the HTTP server on cfg.ServerAddr until ctx is done. TLS and a
// separate metrics listener are enabled from config.
func (a *App) Serve(ctx context.Context) (retErr error) {
	defer func() {
		_ = a.audit.Write(audit.Event{Actor: a.actor, Action: audit.ActionServe, Resource: a.cfg.ServerAddr}, retErr)
	}()

	var tlsCfg *tls.Config
	if security.Enabled(a.cfg.TLSCertFile, a.cfg.TLSKeyFile) {
		cfg, err := security.ServerTLSConfig(a.cfg.TLSCertFile, a.cfg.TLSKeyFile, a.cfg.TLSCAFile)
		if err != nil {
			return err
		}
		tlsCfg = cfg
	}

	if a.promReg != nil {
		metricsServer, err := metrics.StartPrometheusServer(a.cfg.MetricsAddr, a.promReg, tlsCfg)
		if err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
		a.logger.Info("metrics listening", zap.String("addr", metricsServer.Addr))
		defer func() { _ = metrics.StopServer(context.Background(), metricsServer) }()
	}

	ln, err := net.Listen("tcp", a.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("listen %q: %w", a.cfg.ServerAddr, err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	srv := &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("server listening", zap.String("addr", ln.Addr().String()), zap.Bool("tls", tlsCfg != nil))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
