package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"helpdesk/internal/domain"
	"helpdesk/internal/service"
)

// Answerer is the part of service.HelpDesk the HTTP layer needs.
type Answerer interface {
	Answer(ctx context.Context, question string, opts ...service.AnswerOption) (*domain.AnswerResult, error)
}

type AnswerRequest struct {
	Question string `json:"question" validate:"required"`
	K        *int   `json:"k,omitempty" validate:"omitempty,gte=1"`
}

type AnswerResponse struct {
	Answer  string `json:"answer"`
	Sources string `json:"sources"`
}

var validate = validator.New()

// NewRouter configures routes and middleware. timeout, when positive, bounds
// each answer, generation included; expiry surfaces as a generation failure.
func NewRouter(desk Answerer, logger *zap.Logger, timeout time.Duration) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/answer", answerHandler(desk, logger, timeout))
	})
	return r
}

func answerHandler(desk Answerer, logger *zap.Logger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			_ = writeBadRequest(w, "invalid JSON body", nil)
			return
		}
		if err := validate.Struct(req); err != nil {
			var verrs validator.ValidationErrors
			details := map[string]string{}
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					details[fe.Field()] = fe.Tag()
				}
			}
			_ = writeBadRequest(w, "validation failed", details)
			return
		}

		opts := []service.AnswerOption{service.WithVerbose(false)}
		if req.K != nil {
			opts = append(opts, service.WithK(*req.K))
		}
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		res, err := desk.Answer(ctx, req.Question, opts...)
		if err != nil {
			writeServiceError(w, err, logger)
			return
		}
		_ = writeJSON(w, http.StatusOK, SuccessResponse{Data: AnswerResponse{Answer: res.AnswerText, Sources: res.CitationBlock}})
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
