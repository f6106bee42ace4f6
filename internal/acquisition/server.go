// Package acquisition is the reverse-proxy front door: it terminates
// client connections, builds the immutable HTTP message value the
// pipeline operates on, and forwards the original request upstream
// unless the pipeline alerts and drops it. See spec §4.2 and §6.
package acquisition

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cc-sentinel/sentinel/internal/message"
	"github.com/cc-sentinel/sentinel/internal/pipeline"
	"github.com/cc-sentinel/sentinel/internal/slog"
	"github.com/cc-sentinel/sentinel/internal/typing"
)

// Config configures the acquisition server. There is no module-level
// mutable state — every instance is constructed with its own explicit
// configuration, per the redesign flag on "module-level globals in the
// early acquisition design".
type Config struct {
	Addr      string
	Upstream  string
	Successor pipeline.Stage
	Tree      *typing.Tree         // optional, backs /debug/typingtree
	Registry  *prometheus.Registry // backs /metrics; falls back to the default registry when nil
	ReadTimeout,
	WriteTimeout time.Duration
}

// Server is the HTTP front door: one *http.Server plus the router built
// over it, composed as a value rather than inherited from a shared base
// handler class, per the redesign flag on "handler inheritance".
type Server struct {
	cfg    Config
	router *mux.Router
	client *http.Client
	http   *http.Server
}

// NewServer builds the router — acquisition's three routes (proxy,
// metrics, typing introspection) plus the teacher's CORS/Recovery/
// Compress middleware stack.
func NewServer(cfg Config) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 20 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 20 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		client: &http.Client{Timeout: 30 * time.Second},
	}

	metricsHandler := promhttp.Handler()
	if cfg.Registry != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
	}
	s.router.HandleFunc("/metrics", metricsHandler.ServeHTTP).Methods(http.MethodGet)
	if cfg.Tree != nil {
		s.router.HandleFunc("/debug/typingtree", s.handleTypingTree).Methods(http.MethodGet)
	}
	s.router.PathPrefix("/").HandlerFunc(s.handleProxy).Methods(http.MethodGet, http.MethodPost, http.MethodHead)

	s.router.Use(handlers.CompressHandler)
	s.router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	s.router.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "POST", "HEAD"}),
		handlers.AllowedOrigins([]string{"*"})))

	return s
}

// Start binds and serves. It blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	slog.Infof("acquisition: listening on %s, forwarding to %s", s.cfg.Addr, s.cfg.Upstream)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleTypingTree(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, s.cfg.Tree.Snapshot())
}

// handleProxy builds the pipeline's message value, runs it through the
// pipeline, and — absent an alert — forwards the original request
// upstream untouched. Decoding for analysis and forwarding the raw
// bytes are deliberately separate: the query/body seen by the
// pipeline are decoded once (spec §4.2); what reaches the origin is
// exactly what the client sent.
func (s *Server) handleProxy(rw http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(rw, "error trying to proxy", http.StatusNotFound)
		return
	}

	msg := message.New(
		clientAddr(r),
		r.Method,
		r.URL.Path,
		decodeOnce(r.URL.RawQuery),
		r.Proto,
		r.Header,
		[]byte(decodeOnce(string(rawBody))),
	)

	if s.cfg.Successor != nil {
		err := s.cfg.Successor.Run(r.Context(), pipeline.AcquisitionFilter{Message: msg})
		switch {
		case errors.Is(err, pipeline.ErrDropped):
			rw.WriteHeader(http.StatusForbidden)
			return
		case err != nil:
			// The pipeline is mis-wired (wrong DTO variant reached a
			// stage); this is fatal to the process per spec §7.
			slog.Fatalf("acquisition: pipeline contract violation: %v", err)
		}
	}

	s.forward(rw, r, rawBody)
}

func (s *Server) forward(rw http.ResponseWriter, r *http.Request, rawBody []byte) {
	upstreamURL := &url.URL{
		Scheme:   "http",
		Host:     s.cfg.Upstream,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL.String(), bytes.NewReader(rawBody))
	if err != nil {
		http.Error(rw, "error trying to proxy", http.StatusNotFound)
		return
	}
	req.Header = r.Header.Clone()

	resp, err := s.client.Do(req)
	if err != nil {
		http.Error(rw, "error trying to proxy", http.StatusNotFound)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(rw, "error trying to proxy", http.StatusNotFound)
		return
	}

	header := rw.Header()
	for k, vs := range resp.Header {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	header.Set("Content-Length", strconv.Itoa(len(respBody)))
	rw.WriteHeader(resp.StatusCode)
	rw.Write(respBody)
}

func isHopByHop(header string) bool {
	switch strings.ToLower(header) {
	case "content-encoding", "transfer-encoding", "content-length":
		return true
	default:
		return false
	}
}

// decodeOnce URL-decodes s a single time for pipeline analysis; an
// undecodable value (not a double-encoding attempt, just malformed) is
// passed through unchanged rather than dropped.
func decodeOnce(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
