package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nightwatch-nvr/nightwatch/internal/eventbus"
	"github.com/nightwatch-nvr/nightwatch/internal/metrics"
	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

// Config is the subset of the service's runtime configuration the HTTP
// layer needs, separate from internal/config.Config so this package
// doesn't import the config loader directly.
type Config struct {
	TimeZoneName                     string
	TrustForwardHeaders               bool
	AllowUnauthenticatedPermissions   *nvrdb.Permissions
	UIDir                              string
}

// Service is the top-level HTTP handler: it owns the router and holds
// everything request handlers close over.
type Service struct {
	cfg          Config
	db           *nvrdb.Database
	metrics      *metrics.Metrics
	bus          *eventbus.Bus
	hub          *Hub
	logger       *slog.Logger
	router       chi.Router
	staticAssets map[string]staticAsset
}

// NewService builds the router and wires every handler in this package
// to it. bus may be nil when no event bus is configured (metrics and
// the UI hub still work; only cross-process signal fan-out is lost).
func NewService(cfg Config, db *nvrdb.Database, m *metrics.Metrics, bus *eventbus.Bus, logger *slog.Logger) *Service {
	s := &Service{
		cfg:          cfg,
		db:           db,
		metrics:      m,
		bus:          bus,
		hub:          newHub(logger, bus),
		logger:       logger.With("component", "api"),
		staticAssets: scanStaticAssets(cfg.UIDir, logger),
	}
	go s.hub.run()
	s.router = s.buildRouter()
	return s
}

// publishHubEvent notifies connected UI clients of ev, via the NATS
// event bus when one is configured (so every API instance's hub sees
// it, not just this one) or directly otherwise.
func (s *Service) publishHubEvent(evType HubEventType, data interface{}) {
	if s.bus == nil {
		s.hub.Broadcast(HubEvent{Type: evType, Data: data})
		return
	}
	subject := ""
	for subj, t := range busSubjectEvents {
		if t == evType {
			subject = subj
			break
		}
	}
	if subject == "" {
		s.hub.Broadcast(HubEvent{Type: evType, Data: data})
		return
	}
	if err := s.bus.Publish(subject, data); err != nil {
		s.logger.Error("publish hub event", "subject", subject, "error", err)
	}
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Service) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}))

	r.HandleFunc("/*", s.dispatch)
	return r
}

// loggingMiddleware records one structured log line and one Prometheus
// observation per request.
func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.URL.Path, ww.Status())
		}
	})
}

// dispatch is the single entry point every request funnels through,
// ported from the original router's top_level match over Path::decode.
func (s *Service) dispatch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/ws" {
		c, authErr := s.authenticate(r, false)
		if authErr != nil {
			writeError(w, authErr)
			return
		}
		s.handleWebSocket(w, r, c)
		return
	}

	p := decodePath(r.URL.Path)

	unauthPathOK := p.kind == pathNotFound || p.kind == pathRequest ||
		p.kind == pathLogin || p.kind == pathLogout || p.kind == pathStatic

	switch p.kind {
	case pathStatic:
		s.serveStatic(w, r)
		return
	case pathInitSegment:
		w.Header().Set("Cache-Control", "private")
		s.serveInitSegment(w, r, p)
		return
	case pathLogin:
		s.serveLogin(w, r)
		return
	case pathLogout:
		s.serveLogout(w, r)
		return
	case pathRequest:
		s.serveRequest(w, r)
		return
	}

	c, authErr := s.authenticate(r, unauthPathOK)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	// Everything reaching here is an authorized endpoint per spec.md §7
	// (Login, Logout, Request, Static, and NotFound are the exceptions,
	// all handled above or in the default branch below without this
	// header).
	switch p.kind {
	case pathTopLevel:
		w.Header().Set("Cache-Control", "private")
		s.serveTopLevel(w, r, c)
	case pathCamera:
		w.Header().Set("Cache-Control", "private")
		s.serveCamera(w, r, p)
	case pathSignals:
		w.Header().Set("Cache-Control", "private")
		s.dispatchSignals(w, r, c)
	case pathStreamRecordings:
		w.Header().Set("Cache-Control", "private")
		s.serveStreamRecordings(w, r, p)
	case pathStreamViewMp4:
		w.Header().Set("Cache-Control", "private")
		s.serveStreamView(w, r, c, p, false)
	case pathStreamViewMp4Segment:
		w.Header().Set("Cache-Control", "private")
		s.serveStreamView(w, r, c, p, true)
	case pathStreamLiveMp4Segments:
		w.Header().Set("Cache-Control", "private")
		s.serveStreamLive(w, r, c, p)
	default:
		writeError(w, errNotFound("path not understood"))
	}
}

func (s *Service) dispatchSignals(w http.ResponseWriter, r *http.Request, c caller) {
	switch r.Method {
	case http.MethodPost:
		s.servePostSignals(w, r, c)
	case http.MethodGet, http.MethodHead:
		s.serveGetSignals(w, r)
	default:
		writeError(w, errMethodNotAllowed("GET, HEAD, or POST expected"))
	}
}
