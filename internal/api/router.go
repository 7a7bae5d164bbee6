package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/litterbridge/internal/bridge"
	"github.com/nerrad567/litterbridge/internal/journal"
	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(allowOrigins(s.cfg.CORS.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{slug}", s.handleGetDevice)
		})

		r.Get("/commands", s.handleListCommands)
	})

	return r
}

// deviceView is one configured robot with its cached state, if any.
type deviceView struct {
	Slug       string                   `json:"slug"`
	ExternalID string                   `json:"external_id"`
	Name       string                   `json:"name"`
	State      *litterrobot.DeviceState `json:"state"`
}

func (s *Server) view(key litterrobot.DeviceKey) deviceView {
	v := deviceView{
		Slug:       key.Slug,
		ExternalID: key.ExternalID,
		Name:       key.DisplayName(),
	}
	if st, ok := s.states.Cached(key.ExternalID); ok {
		v.State = &st
	}
	return v
}

// checkTimeout bounds each dependency check on /health.
const checkTimeout = 2 * time.Second

// healthView is the bridge health plus the result of each dependency check.
type healthView struct {
	bridge.HealthMessage
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// handleHealth returns bridge health. A degraded bridge or a failing
// dependency answers 503 so the endpoint can back a container healthcheck.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := healthView{HealthMessage: s.health.Health()}

	status := http.StatusOK
	if view.Status == bridge.HealthDegraded {
		status = http.StatusServiceUnavailable
	}

	if len(s.checks) > 0 {
		view.Dependencies = make(map[string]string, len(s.checks))
		for name, c := range s.checks {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := c.HealthCheck(ctx)
			cancel()
			if err != nil {
				view.Dependencies[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			view.Dependencies[name] = "ok"
		}
	}

	respond(w, status, view)
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	keys := s.devices.Keys()
	views := make([]deviceView, 0, len(keys))
	for _, key := range keys {
		views = append(views, s.view(key))
	}

	respond(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	key, ok := s.devices.BySlug(slug)
	if !ok {
		fail(w, http.StatusNotFound, "device not found: "+slug)
		return
	}

	respond(w, http.StatusOK, s.view(key))
}

// handleListCommands pages through the command journal.
// Query: device, kind, outcome, limit, offset.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		fail(w, http.StatusServiceUnavailable, "command journal is disabled")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		DeviceSlug: q.Get("device"),
		Kind:       q.Get("kind"),
		Outcome:    q.Get("outcome"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		fail(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		fail(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	res, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command journal failed", "error", err)
		fail(w, http.StatusInternalServerError, "failed to list commands")
		return
	}

	respond(w, http.StatusOK, res)
}

// intParam parses an optional integer query parameter; empty reads as 0.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
