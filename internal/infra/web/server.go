package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"course-platform/internal/domain/model"
	"course-platform/internal/usecase"
)

type Server struct {
	checkoutUC usecase.CheckoutUseCase
	webhookUC  usecase.WebhookUseCase
	queryUC    usecase.QueryUseCase
	adminUC    usecase.AdminUseCase
	provider   WebhookVerifier
	auth       *AuthManager
	log        *zerolog.Logger
}

// WebhookVerifier is the slice of the checkout provider the transport layer
// needs: raw-body signature verification and event extraction.
type WebhookVerifier interface {
	VerifyAndParse(payload []byte, sigHeader string) (*model.CompletionEvent, error)
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	webhookUC usecase.WebhookUseCase,
	queryUC usecase.QueryUseCase,
	adminUC usecase.AdminUseCase,
	provider WebhookVerifier,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		checkoutUC: checkoutUC,
		webhookUC:  webhookUC,
		queryUC:    queryUC,
		adminUC:    adminUC,
		provider:   provider,
		auth:       auth,
		log:        logger,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log))
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The webhook has its own (longer) deadline and no session.
		r.With(Timeout(20 * time.Second)).Post("/webhooks/checkout", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(Timeout(15 * time.Second))

			r.Get("/courses/{courseID}", s.handleCourseDetail)

			r.Group(func(r chi.Router) {
				r.Use(s.auth.RequireUser)
				r.Post("/courses/{courseID}/checkout", s.handleCheckout)
				r.Get("/me/purchases", s.handleSucceededPurchases)
				r.Get("/me/purchases/pending", s.handlePendingPurchases)
				r.Get("/instructor/sales", s.handleInstructorSales)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.auth.RequireAdmin)
				r.Get("/admin/purchases", s.handleAdminList)
				r.Post("/admin/purchases/{purchaseID}/fix", s.handleAdminFix)
				r.Post("/admin/purchases/fix-all", s.handleAdminFixAll)
			})
		})
	})

	return r
}

// Structured failure payload: success flag + message, no internals.
type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeFailure(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(failureResponse{Success: false, Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
