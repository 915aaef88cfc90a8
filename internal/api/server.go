// Package api exposes tally runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"picktally/internal/config"
	"picktally/internal/types"
)

// defaultAllow is applied when a request omits the allow list. These
// are sites that publish explicit game picks.
var defaultAllow = []string{
	"espn.com",
	"actionnetwork.com",
	"covers.com",
	"pickswise.com",
	"rotowire.com",
	"usatoday.com",
	"sportingnews.com",
	"cbssports.com",
	"oddsshark.com",
}

// defaultDeny is applied when a request omits the deny list, matching
// the CLI default.
var defaultDeny = config.DefaultConfig().Filter.Deny

// Runner executes tally queries.
type Runner interface {
	Run(ctx context.Context, q types.Query) (*types.Tally, error)
}

// RunnerFactory returns a Runner backed by the named search provider.
// An empty name selects the configured default.
type RunnerFactory func(provider string) (Runner, error)

// Server provides the REST API around the tally pipeline.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.ServerConfig
	logger *slog.Logger

	factory RunnerFactory
}

// TallyRequest is the body of POST /api/tally. TeamA and TeamB are
// synonym lists; the first entry is the display label.
type TallyRequest struct {
	Query   string    `json:"query"`
	TeamA   []string  `json:"team_a"`
	TeamB   []string  `json:"team_b"`
	Results int       `json:"results"`
	Days    int       `json:"days"`
	Allow   *[]string `json:"allow,omitempty"`
	Deny    *[]string `json:"deny,omitempty"`

	// Provider overrides the configured search provider for this
	// request ("serper" or "serpapi").
	Provider string `json:"provider,omitempty"`
}

// NewServer creates a new API server.
func NewServer(cfg *config.ServerConfig, factory RunnerFactory, logger *slog.Logger) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		cfg:     cfg,
		logger:  logger.With("component", "api_server"),
		factory: factory,
	}

	s.registerRoutes()
	return s
}

// Handler returns the server's route handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the API server until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("API server starting", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/tally", s.handleTally)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	var body TallyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	q, err := body.toQuery()
	if err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	runner, err := s.factory(body.Provider)
	if err != nil {
		var cerr *types.ConfigError
		if errors.As(err, &cerr) || errors.Is(err, types.ErrNoProvider) {
			s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	started := time.Now()
	tally, err := runner.Run(r.Context(), q)
	if err != nil {
		var perr *types.ProviderError
		if errors.As(err, &perr) {
			s.logger.Error("search provider failed", "provider", perr.Provider, "error", err)
			s.jsonResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("tally run failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("tally served",
		"query", q.Search,
		"sources", len(tally.Sources),
		"duration", time.Since(started))
	s.jsonResponse(w, http.StatusOK, tally)
}

// toQuery validates the request and converts it to a pipeline query,
// applying the default allow and deny lists when the fields are absent.
func (b *TallyRequest) toQuery() (types.Query, error) {
	teamA, err := parseTeamList(b.TeamA)
	if err != nil {
		return types.Query{}, fmt.Errorf("team_a: %w", err)
	}
	teamB, err := parseTeamList(b.TeamB)
	if err != nil {
		return types.Query{}, fmt.Errorf("team_b: %w", err)
	}

	allow := defaultAllow
	if b.Allow != nil {
		allow = *b.Allow
	}
	deny := defaultDeny
	if b.Deny != nil {
		deny = *b.Deny
	}

	q := types.Query{
		Search:  b.Query,
		Matchup: types.Matchup{TeamA: teamA, TeamB: teamB},
		Results: b.Results,
		Days:    b.Days,
		Allow:   allow,
		Deny:    deny,
	}
	if q.Results == 0 {
		q.Results = 50
	}
	if q.Days == 0 {
		q.Days = 5
	}
	if err := q.Validate(); err != nil {
		return types.Query{}, err
	}
	return q, nil
}

func parseTeamList(synonyms []string) (types.Team, error) {
	var clean []string
	for _, s := range synonyms {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return types.Team{}, fmt.Errorf("at least one synonym is required")
	}
	return types.Team{Label: clean[0], Synonyms: clean}, nil
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
