package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/i-gras/apiserver/internal/services"
	"github.com/i-gras/apiserver/internal/store"
	"github.com/i-gras/apiserver/types"
)

const actionSubmitEssays = "submit-essays"

// ExamHandler provides HTTP handlers for the exam flow: questions,
// essay submission, and score retrieval.
type ExamHandler struct {
	scoreService    *services.ScoreService
	questionService *services.QuestionService
}

// NewExamHandler constructs a handler with the provided services.
func NewExamHandler(scoreService *services.ScoreService, questionService *services.QuestionService) *ExamHandler {
	return &ExamHandler{
		scoreService:    scoreService,
		questionService: questionService,
	}
}

// ExamRouter registers exam routes on the given router. All routes
// require a session; question management additionally requires admin.
func ExamRouter(r chi.Router, handler *ExamHandler, requireSession, requireAdmin func(http.Handler) http.Handler) {
	r.Use(requireSession)
	r.Get("/", handler.GetScore)
	r.Post("/", handler.Action)
	r.Delete("/", handler.DeleteScore)
	r.Get("/questions", handler.ListQuestions)
	r.With(requireAdmin).Post("/questions", handler.CreateQuestion)
	r.With(requireAdmin).Delete("/questions/{questionID}", handler.DeleteQuestion)
}

// GetScore returns the current user's persisted score record.
func (h *ExamHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	score, err := h.scoreService.GetByUserID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "score not found")
			return
		}
		slog.Error("failed to fetch score", slog.Int("user_id", user.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to fetch score")
		return
	}

	writeJSON(w, http.StatusOK, ScoreResponse{Score: score})
}

// Action dispatches a POST /exam request by its action field.
func (h *ExamHandler) Action(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ExamActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Action != actionSubmitEssays {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	score, err := h.scoreService.SubmitEssays(r.Context(), user.ID, req.Essays)
	if err != nil {
		var vErr services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		slog.Error("failed to score essays", slog.Int("user_id", user.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to score essays")
		return
	}

	writeJSON(w, http.StatusOK, SubmitEssaysResponse{
		Message: "essays submitted and scored successfully",
		Score:   score,
	})
}

// DeleteScore removes the current user's score record. Deleting an
// absent record succeeds.
func (h *ExamHandler) DeleteScore(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.scoreService.DeleteByUserID(r.Context(), user.ID); err != nil {
		slog.Error("failed to delete score", slog.Int("user_id", user.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to delete score")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "score deleted successfully"})
}

// ListQuestions returns the exam question set.
func (h *ExamHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.questionService.List(r.Context())
	if err != nil {
		slog.Error("failed to list questions", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list questions")
		return
	}
	if questions == nil {
		questions = []types.Question{}
	}
	writeJSON(w, http.StatusOK, QuestionListResponse{Items: questions})
}

// CreateQuestion adds an exam question (admin only).
func (h *ExamHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	question, err := h.questionService.Create(r.Context(), types.Question{
		Type:   req.Type,
		Prompt: req.Prompt,
	})
	if err != nil {
		var vErr services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		slog.Error("failed to create question", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create question")
		return
	}

	writeJSON(w, http.StatusCreated, question)
}

// DeleteQuestion removes an exam question (admin only).
func (h *ExamHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "questionID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}

	if err := h.questionService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		slog.Error("failed to delete question", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to delete question")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExamActionRequest is the POST /exam payload.
type ExamActionRequest struct {
	Action string   `json:"action"`
	Essays []string `json:"essays"`
}

// SubmitEssaysResponse reports a scored submission.
type SubmitEssaysResponse struct {
	Message string      `json:"message"`
	Score   types.Score `json:"score"`
}

// ScoreResponse wraps a persisted score record.
type ScoreResponse struct {
	Score types.Score `json:"score"`
}

// QuestionUpsertRequest is the admin question creation payload.
type QuestionUpsertRequest struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

// QuestionListResponse is the question list payload.
type QuestionListResponse struct {
	Items []types.Question `json:"items"`
}
