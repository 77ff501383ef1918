// main.go - Anonymous group signaling daemon.
//
// The daemon exposes a small REST surface over the membership protocol:
//   - groups are created and mutated by an operator
//   - clients fetch the current root to build proofs off-process
//   - signed signals are submitted as serialized proofs; the daemon checks
//     the proof, the root freshness, and nullifier uniqueness per group
//
// Usage:
//
//	semaphored -config semaphored.json
//
// Proof generation never happens here: identities and their secrets stay on
// the client. The daemon only holds group state and verifying artifacts.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"

	"semaphore/internal/circuits"
	"semaphore/internal/group"
	"semaphore/internal/proof"
)

const version = "1.2.0"

type server struct {
	cfg      *Config
	log      zerolog.Logger
	registry *circuits.Registry
	store    *Store
	metrics  *MetricsCollector
	health   *HealthChecker
	limiter  *ClientRateLimiter
}

func main() {
	configPath := flag.String("config", "semaphored.json", "path to the configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("ERROR: config load failed: %v\n", err)
		return
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Printf("ERROR: logger setup failed: %v\n", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Compile circuits and load or generate Groth16 keys before serving:
	// a signal must never wait on a trusted setup.
	registry := circuits.NewRegistry(cfg.KeyDir)
	start := time.Now()
	logger.Info().Ints("depths", cfg.PreloadDepths).Msg("preloading circuit artifacts")
	if err := registry.Preload(cfg.PreloadDepths...); err != nil {
		logger.Fatal().Err(err).Msg("artifact preload failed")
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("circuit artifacts ready")

	srv := &server{
		cfg:      cfg,
		log:      logger,
		registry: registry,
		store:    NewStore(),
		metrics:  NewMetricsCollector(),
		health:   NewHealthChecker(version),
		limiter:  NewClientRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefill, time.Second),
	}
	srv.metrics.RecordHistogram(MetricArtifactLoadTime, time.Since(start).Seconds(), nil)
	srv.health.RegisterComponent("circuit-registry", func() error {
		return registry.Preload(cfg.DefaultTreeDepth)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /groups", srv.handleCreateGroup)
	mux.HandleFunc("GET /groups/{id}", srv.handleDescribeGroup)
	mux.HandleFunc("POST /groups/{id}/members", srv.handleAddMember)
	mux.HandleFunc("POST /groups/{id}/members/{index}/remove", srv.handleRemoveMember)
	mux.HandleFunc("POST /groups/{id}/signals", srv.handleSubmitSignal)
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /metrics", srv.handleMetrics)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.rateLimit(mux),
		ReadTimeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	logger.Info().Str("addr", cfg.ListenAddr).Str("version", version).Msg("semaphored listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// rateLimit applies the per-client token bucket before any handler runs.
func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			client = r.RemoteAddr
		}
		if !s.limiter.Allow(client) {
			s.metrics.IncrementCounter(MetricRateLimited, nil)
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createGroupRequest struct {
	ID string `json:"id"`
}

func (s *server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "body must be {\"id\": \"<group id>\"}")
		return
	}
	if err := s.store.CreateGroup(req.ID); err != nil {
		if errors.Is(err, ErrGroupExists) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.serverError(w, "group creation", err)
		return
	}
	s.metrics.IncrementCounter(MetricGroupCount, nil)
	s.log.Info().Str("group", req.ID).Msg("group created")
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *server) handleDescribeGroup(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Describe(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

type addMemberRequest struct {
	Commitment string `json:"commitment"`
}

func (s *server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "body must be {\"commitment\": \"<decimal>\"}")
		return
	}
	var commitment fr.Element
	if _, err := commitment.SetString(req.Commitment); err != nil {
		s.writeError(w, http.StatusBadRequest, "commitment is not a field element")
		return
	}

	if err := s.store.AddMember(groupID, commitment); err != nil {
		switch {
		case errors.Is(err, ErrUnknownGroup):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, group.ErrDuplicateMember), errors.Is(err, group.ErrEmptyLeaf):
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.serverError(w, "member insertion", err)
		}
		return
	}

	size, _ := s.store.Size(groupID)
	s.metrics.RecordGroupSize(groupID, size)
	s.log.Info().Str("group", groupID).Int("size", size).Msg("member added")
	info, err := s.store.Describe(groupID)
	if err != nil {
		s.serverError(w, "group lookup", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, info)
}

func (s *server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	var index int
	if _, err := fmt.Sscanf(r.PathValue("index"), "%d", &index); err != nil {
		s.writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	if err := s.store.RemoveMember(groupID, index); err != nil {
		switch {
		case errors.Is(err, ErrUnknownGroup):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, group.ErrIndexOutOfRange), errors.Is(err, group.ErrAlreadyRemoved):
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.serverError(w, "member removal", err)
		}
		return
	}

	s.log.Info().Str("group", groupID).Int("index", index).Msg("member removed")
	info, err := s.store.Describe(groupID)
	if err != nil {
		s.serverError(w, "group lookup", err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

type submitSignalRequest struct {
	Proof json.RawMessage `json:"proof"`
}

func (s *server) handleSubmitSignal(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	var req submitSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Proof) == 0 {
		s.writeError(w, http.StatusBadRequest, "body must be {\"proof\": {...}}")
		return
	}

	p, err := proof.Import(string(req.Proof))
	if err != nil {
		s.metrics.RecordRejection(groupID, "malformed")
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	err = s.store.SubmitSignal(groupID, p, s.registry)
	s.metrics.RecordVerification(time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownGroup):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrDoubleSignal):
			s.metrics.IncrementCounter(MetricDoubleSignalCount, map[string]string{"group": groupID})
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrStaleRoot):
			s.metrics.IncrementCounter(MetricStaleRootRejection, map[string]string{"group": groupID})
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidProof):
			s.metrics.RecordRejection(groupID, "invalid")
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.serverError(w, "signal submission", err)
		}
		return
	}

	s.metrics.RecordSignal(groupID)
	s.log.Info().Str("group", groupID).Str("nullifier", p.Nullifier.String()).Msg("signal accepted")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "accepted",
		"nullifier": p.Nullifier.String(),
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.CheckHealth()
	status := http.StatusOK
	if health.OverallStatus == Unhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.GetMetricsSummary())
}

func (s *server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("response encoding failed")
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *server) serverError(w http.ResponseWriter, operation string, err error) {
	s.metrics.RecordError(operation)
	s.log.Error().Err(err).Str("operation", operation).Msg("internal error")
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
