package web

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"combinecal/internal/config"
	"combinecal/internal/ics"
	appLog "combinecal/internal/log"
)

// AllCalendarsName is the reserved calendar name that combines every
// configured group into one download.
const AllCalendarsName = "all-calendars"

const serverName = "combinecal"

// Server exposes the combining gateway over HTTP: a health route, a
// plain-text listing of served groups, and the keyed combine route.
type Server struct {
	cfg      *config.Config
	combiner *ics.Combiner
	mux      *http.ServeMux

	// catalog maps group name to its sources; groups preserves the
	// configured order for listing and all-calendars. Both are built
	// once here and never mutated, so handlers read them without
	// synchronization.
	catalog map[string][]ics.Source
	groups  []ics.Group
}

// NewServer constructs a Server over the given (already validated)
// configuration and combiner.
func NewServer(cfg *config.Config, combiner *ics.Combiner) *Server {
	s := &Server{
		cfg:      cfg,
		combiner: combiner,
		mux:      http.NewServeMux(),
		catalog:  make(map[string][]ics.Source, len(cfg.Calendars)),
	}

	for _, group := range cfg.Calendars {
		sources := make([]ics.Source, 0, len(group.Calendars))
		for _, cal := range group.Calendars {
			sources = append(sources, ics.Source{
				Name:        cal.Name,
				Description: cal.Description,
				URL:         cal.URL,
			})
		}
		s.catalog[group.Name] = sources
		s.groups = append(s.groups, ics.Group{Name: group.Name, Sources: sources})
	}

	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return serverHeaderMiddleware(s.mux)
}

func serverHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", serverName)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /listing", s.handleListing)
	s.mux.HandleFunc("GET /calendar/{key}/{name}", s.handleCalendar)
}

// handleRoot answers 200 with an empty body. Load balancers and uptime
// probes hit this.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleListing renders a plain-text overview of every served group: the
// combine URL (with a {key} placeholder, this route is unauthenticated)
// followed by each source's name, description and URL.
func (s *Server) handleListing(w http.ResponseWriter, _ *http.Request) {
	var b strings.Builder

	for _, group := range s.groups {
		fmt.Fprintf(&b, "%s: %s/calendar/{key}/%s\n", group.Name, s.cfg.URL, group.Name)
		for _, src := range group.Sources {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", src.Name, src.Description, src.URL)
		}
		b.WriteString("\n")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	name := r.PathValue("name")

	if !secureCompare(key, s.cfg.Key) {
		http.Error(w, "Not Authorized", http.StatusUnauthorized)
		return
	}

	if name == AllCalendarsName {
		doc, err := s.combiner.CombineAll(r.Context(), s.groups)
		if err != nil {
			appLog.Error("all-calendars combine failed", err)
			http.Error(w, "Failed to generate calendar", http.StatusBadGateway)
			return
		}
		writeCalendar(w, "all-calendars.ics", doc)
		return
	}

	sources, ok := s.catalog[name]
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	doc, err := s.combiner.Combine(r.Context(), name, sources)
	if err != nil {
		appLog.Error("combine failed", err, "group", name)
		http.Error(w, "Failed to generate calendar", http.StatusBadGateway)
		return
	}
	writeCalendar(w, "calendar.ics", doc)
}

func writeCalendar(w http.ResponseWriter, filename, doc string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
