package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"docqa/internal/domain"
)

type askRequest struct {
	Question string `json:"question"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	writeJSON(w, status, apiError{Error: errStr, Message: message, Code: status})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": LivenessMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"chunks":    s.manifest.Count,
		"dimension": s.manifest.Dimension,
		"model":     s.manifest.EmbeddingModel,
		"checksum":  s.manifest.Checksum,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON object with a string \"question\"")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "question required")
		return
	}

	ans, err := s.answerer.Answer(r.Context(), req.Question)
	if err != nil {
		status, code, message := classify(err)
		s.logger.Error("ask failed",
			"req_id", requestID(r.Context()),
			"status", status,
			"error", err,
		)
		writeError(w, status, code, message)
		return
	}

	writeJSON(w, http.StatusOK, ans)
}

// classify maps pipeline errors to an HTTP status, error code and a message
// safe to show to the caller.
func classify(err error) (int, string, string) {
	var llmErr *domain.LLMError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request", "question required"
	case errors.Is(err, domain.ErrRetrieval):
		return http.StatusServiceUnavailable, "retrieval_unavailable", "the document index is not available"
	case errors.Is(err, domain.ErrEmbedding):
		return http.StatusInternalServerError, "embedding_failed", "the question could not be embedded"
	case errors.As(err, &llmErr) && llmErr.Reason == domain.LLMReasonTimeout:
		return http.StatusGatewayTimeout, "llm_timeout", "the language model did not answer in time"
	case errors.Is(err, domain.ErrLLMService):
		return http.StatusBadGateway, "llm_unavailable", "the language model service failed"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
