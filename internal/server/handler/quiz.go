package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// QuizService reads quizzes.
type QuizService interface {
	Quiz(ctx context.Context, id uint64) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) []domain.Quiz
}

// QuizHandler serves quiz endpoints.
type QuizHandler struct {
	quizzes QuizService
	logger  *slog.Logger
}

func NewQuizHandler(quizzes QuizService, logger *slog.Logger) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, logger: logHandler(logger, "quiz")}
}

// ListQuizzes returns every quiz.
// GET /api/quizzes
func (h *QuizHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": h.quizzes.ListQuizzes(r.Context())})
}

// GetQuiz returns one quiz.
// GET /api/quizzes/{id}
func (h *QuizHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.quizzes.Quiz(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "get quiz failed",
			slog.Uint64("quiz_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to load quiz")
		return
	}
	writeJSON(w, http.StatusOK, q)
}
