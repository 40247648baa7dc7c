package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// systemErrorMessage is the only error text a client sees for 5xx responses.
const systemErrorMessage = "System error occurred while processing the query"

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.WorkflowID = strings.TrimSpace(req.WorkflowID)
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	reqID := middleware.GetReqID(r.Context())
	s.logger.Debug("workflow request",
		zap.String("request_id", reqID),
		zap.String("workflow_id", req.WorkflowID),
		zap.Int("query_len", len(*req.Query)))

	result, err := s.runner.Run(r.Context(), req.WorkflowID, *req.Query)
	if err != nil {
		s.logger.Error("workflow failed", zap.String("request_id", reqID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, systemErrorMessage)
		return
	}
	s.respondJSON(w, http.StatusOK, result.ChatResponse())
}

// validationMessage turns validator errors into a short client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if field == "workflowid" {
			field = "workflow_id"
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "hello world"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projects, err := s.indexes.Projects.Count(ctx)
	if err != nil {
		s.logger.Error("status: count projects failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, systemErrorMessage)
		return
	}
	caseStudies, err := s.indexes.CaseStudies.Count(ctx)
	if err != nil {
		s.logger.Error("status: count case studies failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, systemErrorMessage)
		return
	}
	resp := map[string]interface{}{
		"projects":       projects,
		"case_studies":   caseStudies,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}

	configInfo := map[string]interface{}{
		"vector_index_type":  s.indexes.Type(),
		"session_store_type": s.sessions.Type(),
		"embedding_model":    s.config.LLM.EmbeddingModel,
		"chat_model":         s.config.LLM.Chat.Model,
		"max_attempts":       s.config.Workflow.Attempts(),
		"top_k_projects":     s.config.Retrieval.TopKProjects,
		"top_k_case_studies": s.config.Retrieval.TopKCaseStudies,
		"data_directory":     s.config.Data.Directory,
	}
	diskBytes, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath, s.config.Session.DatabasePath)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
