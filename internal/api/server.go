// Package api serves predictions and training over a small JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"hoopcast/internal/common"
	"hoopcast/internal/history"
	"hoopcast/internal/metrics"
	"hoopcast/internal/ml"
	"hoopcast/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Service is the part of the pipeline the HTTP API drives.
type Service interface {
	Predict(athlete string, opponentID, backToBack int) (ml.PredictionResult, error)
	TrainAthlete(ctx context.Context, athlete string) (pipeline.AthleteReport, error)
	TrainAll(ctx context.Context) ([]pipeline.AthleteReport, error)
	Athletes() ([]string, error)
}

// Server provides the HTTP API for predictions and training
type Server struct {
	svc     Service
	metrics *metrics.Metrics
	server  *http.Server
}

// PredictResponse is returned by a successful POST /predict.
type PredictResponse struct {
	Success        bool                `json:"success"`
	Athlete        string              `json:"athlete"`
	OpponentTeamID int                 `json:"opponentTeamId"`
	BackToBack     bool                `json:"backToBack"`
	Predictions    ml.PredictionResult `json:"predictions"`
}

// TrainResponse is returned by POST /train.
type TrainResponse struct {
	Success  bool               `json:"success"`
	Athletes []AthleteTrainInfo `json:"athletes"`
}

type AthleteTrainInfo struct {
	Athlete  string            `json:"athlete"`
	Trained  []string          `json:"trained"`
	Failures map[string]string `json:"failures,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates the HTTP server. m may be nil, in which case /metrics is not served.
func NewServer(svc Service, m *metrics.Metrics, port int) *Server {
	s := &Server{svc: svc, metrics: m}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // training all athletes is slow
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.instrument("/predict", s.handlePredict))
	mux.HandleFunc("/train", s.instrument("/train", s.handleTrain))
	mux.HandleFunc("/athletes", s.instrument("/athletes", s.handleAthletes))
	mux.HandleFunc("/teams", s.instrument("/teams", s.handleTeams))
	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))
	}
	return mux
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rec, r)
		if s.metrics != nil {
			s.metrics.APIRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
		log.Debug().
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if err := validate.StructCtx(r.Context(), &req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	result, err := s.svc.Predict(req.Athlete, *req.OpponentTeamID, *req.BackToBackFlag)
	if err != nil {
		status := http.StatusInternalServerError
		msg := err.Error()
		switch {
		case errors.Is(err, history.ErrMissingDataFile), errors.Is(err, history.ErrInvalidAthlete):
			status = http.StatusNotFound
			msg = fmt.Sprintf("no data available for %s", req.Athlete)
		case errors.Is(err, ml.ErrNoValidPredictions):
			status = http.StatusNotFound
			msg = fmt.Sprintf("no trained models found for %s, train the models first", req.Athlete)
		case errors.Is(err, ml.ErrInvalidFeatureInput):
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("athlete", req.Athlete).Msg("prediction request failed")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Success:        true,
		Athlete:        req.Athlete,
		OpponentTeamID: *req.OpponentTeamID,
		BackToBack:     *req.BackToBackFlag == 1,
		Predictions:    result,
	})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req TrainRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
			return
		}
	}
	if err := validate.StructCtx(r.Context(), &req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	var reports []pipeline.AthleteReport
	if req.Athlete != "" {
		rep, err := s.svc.TrainAthlete(r.Context(), req.Athlete)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, history.ErrMissingDataFile) || errors.Is(err, history.ErrInvalidAthlete) {
				status = http.StatusNotFound
			}
			writeError(w, status, err.Error())
			return
		}
		reports = []pipeline.AthleteReport{rep}
	} else {
		var err error
		reports, err = s.svc.TrainAll(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	resp := TrainResponse{Success: true, Athletes: make([]AthleteTrainInfo, 0, len(reports))}
	for _, rep := range reports {
		info := AthleteTrainInfo{Athlete: rep.Athlete, Trained: make([]string, 0, len(rep.Trained))}
		for _, tr := range rep.Trained {
			info.Trained = append(info.Trained, tr.Stat)
		}
		if len(rep.Failures) > 0 {
			info.Failures = make(map[string]string, len(rep.Failures))
			for stat, err := range rep.Failures {
				info.Failures[stat] = err.Error()
			}
		}
		if rep.Err != nil {
			info.Error = rep.Err.Error()
		}
		if !rep.OK() {
			resp.Success = false
		}
		resp.Athletes = append(resp.Athletes, info)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAthletes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	athletes, err := s.svc.Athletes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if athletes == nil {
		athletes = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"athletes": athletes})
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	teams := make([]common.Team, 0, len(common.Teams))
	for _, t := range common.Teams {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	writeJSON(w, http.StatusOK, map[string][]common.Team{"teams": teams})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if s.metrics != nil {
		body["predictionFailureRate"] = s.metrics.GetFailureRate()
	}
	writeJSON(w, http.StatusOK, body)
}
