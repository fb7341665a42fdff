package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veriledger/veriledger/internal/veriledger/service"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

type Dependencies struct {
	Logger     *log.Logger
	Addr       string
	Reconciler *service.Reconciler
	Ledger     *service.RevocationLedger
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	reconciler *service.Reconciler
	ledger     *service.RevocationLedger
	metrics    *metrics
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()
	registry := prometheus.NewRegistry()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		reconciler: d.Reconciler,
		ledger:     d.Ledger,
		metrics:    newMetrics(registry),
	}

	mux.HandleFunc("POST /v1/verify", s.handleVerify)
	mux.HandleFunc("POST /v1/verify_batch", s.handleVerifyBatch)
	mux.HandleFunc("POST /v1/revocations", s.handleRecordRevocation)
	mux.HandleFunc("POST /v1/batches", s.handleCreateBatch)
	mux.HandleFunc("POST /v1/batches/{id}/items", s.handleAddToBatch)
	mux.HandleFunc("POST /v1/batches/{id}/process", s.handleProcessBatch)
	mux.HandleFunc("GET /v1/stats/revocations", s.handleRevocationStats)
	mux.HandleFunc("GET /v1/stats/false_positives", s.handleFalsePositiveStats)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req types.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CredentialID == "" {
		writeError(w, http.StatusBadRequest, "invalid_credential_id", "credential_id is required")
		return
	}

	res, err := s.reconciler.Verify(r.Context(), req.CredentialID, req.EpochID, req.PossiblyRevoked)
	if err != nil {
		// The ledger could not resolve the verdict.  An HTTP caller has no
		// external verdict to fall back to, so this surfaces as 503.
		s.metrics.unavailable.Inc()
		s.logger.Printf("verify error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "ledger_unavailable", "could not resolve against the ledger")
		return
	}

	s.metrics.verifications.WithLabelValues(res.Method).Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	var req types.BatchVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := s.reconciler.BatchVerify(r.Context(), req.Credentials)
	if err != nil {
		s.metrics.unavailable.Inc()
		s.logger.Printf("verify_batch error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "ledger_unavailable", "could not resolve against the ledger")
		return
	}

	for _, res := range results {
		s.metrics.verifications.WithLabelValues(res.Method).Inc()
	}
	writeJSON(w, http.StatusOK, types.BatchVerifyResponse{Results: results})
}

func (s *Server) handleRecordRevocation(w http.ResponseWriter, r *http.Request) {
	var req types.RevocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.ledger.RecordRevocation(r.Context(), req); err != nil {
		if errors.Is(err, service.ErrInvalidCredentialID) {
			writeError(w, http.StatusBadRequest, "invalid_credential_id", err.Error())
			return
		}
		s.logger.Printf("record revocation error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	s.metrics.revocations.Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := s.ledger.CreateBatch(r.Context())
	if err != nil {
		s.logger.Printf("create batch error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"batch_id": batchID})
}

func (s *Server) handleAddToBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	var req types.AddToBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "empty_items", "items is required")
		return
	}

	if err := s.ledger.AddToBatch(r.Context(), batchID, req.Items); err != nil {
		switch {
		case errors.Is(err, service.ErrBatchNotFound):
			writeError(w, http.StatusNotFound, "batch_not_found", "no such batch")
		case errors.Is(err, service.ErrInvalidCredentialID):
			writeError(w, http.StatusBadRequest, "invalid_credential_id", err.Error())
		default:
			s.logger.Printf("add to batch error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	result, err := s.ledger.ProcessBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch_not_found", "no such batch")
			return
		}
		s.logger.Printf("process batch error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	// Expected failures (empty batch, already processed) are part of the
	// result shape, not HTTP errors.
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRevocationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.RevocationStats(r.Context())
	if err != nil {
		s.logger.Printf("revocation stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleFalsePositiveStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reconciler.FalsePositiveStats(r.Context())
	if err != nil {
		s.logger.Printf("false positive stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
