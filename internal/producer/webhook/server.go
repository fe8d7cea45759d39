// Package webhook runs the HTTP listener that receives push
// notifications from the Jellyfin webhook plugin.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shelfwatch/internal/media"
	logx "shelfwatch/pkg/logx"
)

// Sink receives normalized events; satisfied by engine.Engine.
type Sink interface {
	Ingest(ctx context.Context, ev media.RawEvent)
}

type Config struct {
	Addr    string        // listen address, e.g. ":8097"
	Token   string        // optional shared secret, checked against ?token=
	MaxBody int64         // request body cap, default 1 MiB
	Timeout time.Duration // per-request read/write timeout
}

type Server struct {
	cfg  Config
	sink Sink
	log  logx.Logger
	srv  *http.Server
}

func NewServer(cfg Config, sink Sink, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8097"
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 1 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, sink: sink, log: log}
}

// Handler builds the route tree. Exposed separately so tests can drive
// it through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Post("/webhook/jellyfin", s.handleWebhook)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("webhook listener started", logx.String("addr", s.cfg.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Token != "" && r.URL.Query().Get("token") != s.cfg.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBody))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		s.log.Debug("malformed webhook payload", logx.Err(err), logx.Int("bytes", len(body)))
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	// The plugin can be configured to send every notification type; only
	// item additions matter here. Others are acknowledged and dropped.
	if !p.itemAdded() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ev := p.toEvent(time.Now())
	s.log.Debug("webhook event received",
		logx.String("item", ev.ItemID), logx.String("type", string(ev.ItemType)), logx.String("name", ev.Name))
	s.sink.Ingest(r.Context(), ev)
	w.WriteHeader(http.StatusNoContent)
}
