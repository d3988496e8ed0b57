package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	amtokenmiddleware "github.com/actionablemessages/go-amtoken-middleware"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// expenseResponse is returned once the token and the sender were accepted.
type expenseResponse struct {
	Sender          string `json:"sender"`
	ActionPerformer string `json:"action_performer"`
	RequestID       string `json:"request_id"`
}

type server struct {
	logger         *zap.Logger
	allowedDomains map[string]bool
}

func newServer(logger *zap.Logger, allowedDomains []string) *server {
	domains := make(map[string]bool, len(allowedDomains))
	for _, d := range allowedDomains {
		domains[strings.ToLower(d)] = true
	}
	return &server{logger: logger, allowedDomains: domains}
}

func (s *server) routes(auth *amtokenmiddleware.Middleware, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.CheckToken)
		r.Post("/expense", s.approveExpense)
	})

	return r
}

// approveExpense runs after the token was validated. The sender must belong
// to one of the allowed domains.
func (s *server) approveExpense(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r.Context())

	success, err := amtokenmiddleware.GetSuccess(r.Context())
	if err != nil {
		s.logger.Error("validated request without a result", zap.String("request_id", reqID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, amtokenmiddleware.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "The request could not be processed",
		})
		return
	}

	if !s.senderAllowed(success.Sender) {
		s.logger.Warn("sender not allowed",
			zap.String("request_id", reqID),
			zap.String("sender", success.Sender),
			zap.String("performer", success.ActionPerformer))
		writeJSON(w, http.StatusForbidden, amtokenmiddleware.ErrorResponse{
			Error:            "access_denied",
			ErrorDescription: "The sender is not allowed to perform this action",
		})
		return
	}

	s.logger.Info("expense action accepted",
		zap.String("request_id", reqID),
		zap.String("sender", success.Sender),
		zap.String("performer", success.ActionPerformer))

	writeJSON(w, http.StatusOK, expenseResponse{
		Sender:          success.Sender,
		ActionPerformer: success.ActionPerformer,
		RequestID:       reqID,
	})
}

func (s *server) senderAllowed(sender string) bool {
	at := strings.LastIndexByte(sender, '@')
	if at <= 0 || at == len(sender)-1 {
		return false
	}
	return s.allowedDomains[strings.ToLower(sender[at+1:])]
}

// requestID reuses a well formed X-Request-ID from the caller or generates one.
func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request completed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
