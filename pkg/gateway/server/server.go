// Package server assembles the gateway's HTTP surface: health probes,
// Prometheus metrics, and the live chat websocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/replitone/replitone/pkg/core/capture"
	"github.com/replitone/replitone/pkg/core/engine"
	"github.com/replitone/replitone/pkg/core/identity"
	"github.com/replitone/replitone/pkg/core/recognition"
	"github.com/replitone/replitone/pkg/core/responder"
	"github.com/replitone/replitone/pkg/core/synthesis"
	"github.com/replitone/replitone/pkg/core/types"
	"github.com/replitone/replitone/pkg/gateway/config"
	"github.com/replitone/replitone/pkg/gateway/handlers"
	"github.com/replitone/replitone/pkg/gateway/metrics"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	router *mux.Router

	metrics  *metrics.Metrics
	promReg  *prometheus.Registry
	registry *identity.Registry
	synth    *synthesis.Adapter
	recog    *recognition.Adapter
	respond  responder.Capability
}

// New wires the shared capability adapters and routes. Per-connection state
// (capture device, playback pacer, engine) is created by the chat handler.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	respond, err := newResponder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("configure responder: %w", err)
	}

	tone := synthesis.NewToneProvider(cfg.SynthSampleRate)
	tone.Latency = cfg.SynthLatency

	promReg := prometheus.NewRegistry()

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   mux.NewRouter(),
		metrics:  metrics.New(promReg),
		promReg:  promReg,
		registry: identity.NewRegistry(logger, identity.WithDelay(cfg.CloneDelay)),
		synth:    synthesis.NewAdapter(tone, logger),
		recog:    recognition.NewAdapter(logger, recognition.PromptFallback{}),
		respond:  respond,
	}

	s.routes()
	return s, nil
}

func newResponder(ctx context.Context, cfg config.Config) (responder.Capability, error) {
	switch cfg.Responder {
	case config.ResponderCanned:
		return responder.NewCanned(cfg.ResponderSeed), nil
	case config.ResponderHTTP:
		return responder.NewHTTP(cfg.ResponderBaseURL, cfg.ResponderAPIKey, cfg.ResponderModel), nil
	case config.ResponderGemini:
		return responder.NewGemini(ctx, cfg.ResponderAPIKey, cfg.ResponderModel)
	default:
		return nil, fmt.Errorf("unknown responder %q", cfg.Responder)
	}
}

func (s *Server) routes() {
	s.router.Handle("/healthz", handlers.HealthHandler{}).Methods(http.MethodGet)
	s.router.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg}).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.router.Handle("/v1/chat", handlers.ChatHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Metrics:   s.metrics,
		Registry:  s.registry,
		NewEngine: s.newEngine,
	})
}

func (s *Server) newEngine(dev capture.Device, player engine.Player) *engine.Engine {
	return engine.New(engine.Config{AutoPlayDelay: s.cfg.AutoPlayDelay}, engine.Dependencies{
		Logger:      s.logger,
		Capture:     capture.NewController(dev),
		Recognizer:  s.recog,
		Synthesizer: timedSynthesizer{next: s.synth, metrics: s.metrics},
		Responder:   s.respond,
		Player:      player,
	})
}

// timedSynthesizer reports render latency for each successful synthesis.
type timedSynthesizer struct {
	next    engine.Synthesizer
	metrics *metrics.Metrics
}

func (t timedSynthesizer) Synthesize(ctx context.Context, text string, identity types.VoiceIdentity) (types.AudioPayload, error) {
	begin := time.Now()
	payload, err := t.next.Synthesize(ctx, text, identity)
	if err == nil {
		t.metrics.SynthesisObserved(time.Since(begin))
	}
	return payload, err
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases shared resources, stopping the synthesis worker.
func (s *Server) Close() {
	s.synth.Close()
}
