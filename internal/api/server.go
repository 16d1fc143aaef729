// Package api terminates platform webhooks over HTTP and hands each
// request to the turn orchestrator.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"umbot/go-core/internal/platform/metrics"
	"umbot/go-core/internal/platform/ratelimiter"
	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/bot"
)

const (
	// TokenHeader carries the shared webhook secret when one is configured.
	TokenHeader = "X-Umbot-Token"

	maxBodyBytes = 1 << 20
)

// Options tunes the server beyond the bind address.
type Options struct {
	// WebhookToken, when set, is required on every webhook request.
	WebhookToken string
	Limiter      *ratelimiter.MapLimiter
	Logger       *slog.Logger
}

type Server struct {
	httpServer *http.Server
	bot        *bot.Bot
	handler    bot.Handler
	adapters   map[string]adapters.Adapter
	token      string
	limiter    *ratelimiter.MapLimiter
	logger     *slog.Logger
}

// New builds the webhook server. One POST route is registered per adapter
// under /webhook/<platform>.
func New(addr string, b *bot.Bot, handler bot.Handler, platformAdapters []adapters.Adapter, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		bot:      b,
		handler:  handler,
		adapters: make(map[string]adapters.Adapter, len(platformAdapters)),
		token:    strings.TrimSpace(opts.WebhookToken),
		limiter:  opts.Limiter,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	for _, adapter := range platformAdapters {
		s.adapters[adapter.Platform()] = adapter
		mux.HandleFunc("/webhook/"+adapter.Platform(), s.handleWebhook(adapter))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(adapter adapters.Adapter) http.HandlerFunc {
	platform := adapter.Platform()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "invalid webhook token")
			return
		}
		if !s.limiter.Allow(ratelimiter.Key(platform, clientHost(r)), time.Now()) {
			metrics.ObserveTurn(platform, metrics.OutcomeRateLimited, 0)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "unreadable request body")
			return
		}

		requestID := uuid.NewString()
		started := time.Now()
		result, err := s.bot.HandleTurn(r.Context(), adapter, body, s.handler)
		elapsed := time.Since(started)
		if err != nil {
			s.logger.Error("turn failed", "platform", platform, "request_id", requestID, "error", err.Error())
			metrics.ObserveTurn(platform, metrics.OutcomeRenderError, elapsed)
			writeError(w, http.StatusInternalServerError, "turn processing failed")
			return
		}

		outcome := metrics.OutcomeOK
		if result.Turn != nil {
			if result.Turn.ParseFailed {
				outcome = metrics.OutcomeParseError
			}
			if result.Turn.DeadlineExceeded {
				metrics.ObserveDeadlineExceeded(platform)
			}
		}
		metrics.ObserveTurn(platform, outcome, elapsed)
		s.logger.Info("turn handled",
			"platform", platform,
			"request_id", requestID,
			"outcome", outcome,
			"elapsed_ms", elapsed.Milliseconds(),
		)

		// VK's confirmation handshake answers a bare string; everything
		// else is JSON.
		if json.Valid(result.Payload) {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Payload)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	got := strings.TrimSpace(r.Header.Get(TokenHeader))
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
