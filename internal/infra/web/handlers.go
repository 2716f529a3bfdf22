package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"course-platform/internal/domain"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/infra/logging"
	"course-platform/internal/infra/metrics"
)

// POST /api/v1/courses/{courseID}/checkout
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	claims := sessionFrom(r.Context())
	courseID := chi.URLParam(r, "courseID")
	if courseID == "" {
		writeFailure(w, http.StatusBadRequest, "course ID is required")
		return
	}

	purchase, redirectURL, err := s.checkoutUC.Initiate(r.Context(), claims.Subject, courseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "course not found")
			return
		}
		writeFailure(w, http.StatusBadGateway, "could not start checkout")
		return
	}
	metrics.IncPurchase(string(model.PurchaseStatusPending))

	writeJSON(w, http.StatusCreated, struct {
		Success     bool   `json:"success"`
		PurchaseID  string `json:"purchase_id"`
		RedirectURL string `json:"redirect_url"`
	}{true, purchase.ID, redirectURL})
}

// POST /api/v1/webhooks/checkout
//
// The raw body is read before anything else: the signature covers the exact
// bytes. Authentic events are always acknowledged with 200 regardless of
// internal outcome, so the provider never retry-storms us; only a signature
// failure is rejected.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := s.provider.VerifyAndParse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		metrics.IncWebhookEvent("unknown", "bad_signature")
		writeFailure(w, http.StatusBadRequest, "invalid signature")
		return
	}
	if ev == nil {
		// Authentic but outside the accepted event set.
		metrics.IncWebhookEvent("other", "ignored")
		writeJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
		}{true})
		return
	}

	log := logging.With(r.Context(), s.log)
	outcome, err := s.webhookUC.HandleEvent(r.Context(), ev)
	switch {
	case errors.Is(err, domain.ErrWebhookUnresolved):
		// The record may simply never exist; do not invite retries.
		metrics.IncWebhookEvent(string(ev.Kind), "unresolved")
		log.Warn().Str("session_id", ev.SessionID).Msg("webhook event matches no purchase")
	case err != nil:
		metrics.IncWebhookEvent(string(ev.Kind), "error")
		log.Error().Err(err).Str("session_id", ev.SessionID).Msg("webhook processing failed")
	default:
		metrics.IncWebhookEvent(string(ev.Kind), "handled")
		log.Info().Str("session_id", ev.SessionID).Str("outcome", string(outcome)).Msg("webhook event processed")
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{true})
}

// GET /api/v1/courses/{courseID}
func (s *Server) handleCourseDetail(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	userID := ""
	if claims, err := s.auth.parse(r); err == nil {
		userID = claims.Subject
	}

	course, purchased, err := s.queryUC.CourseDetail(r.Context(), courseID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "course not found")
			return
		}
		writeFailure(w, http.StatusInternalServerError, "failed to load course")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success   bool          `json:"success"`
		Course    *model.Course `json:"course"`
		Purchased bool          `json:"purchased"`
	}{true, course, purchased})
}

// GET /api/v1/me/purchases
func (s *Server) handleSucceededPurchases(w http.ResponseWriter, r *http.Request) {
	claims := sessionFrom(r.Context())
	list, err := s.queryUC.SucceededPurchases(r.Context(), claims.Subject)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to list purchases")
		return
	}

	type row struct {
		Purchase *model.Purchase `json:"purchase"`
		Progress float64         `json:"progress_percent"`
	}
	rows := make([]row, 0, len(list))
	for _, pp := range list {
		rows = append(rows, row{Purchase: pp.Purchase, Progress: pp.Progress})
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool  `json:"success"`
		Data    []row `json:"data"`
	}{true, rows})
}

// GET /api/v1/me/purchases/pending
func (s *Server) handlePendingPurchases(w http.ResponseWriter, r *http.Request) {
	claims := sessionFrom(r.Context())
	list, err := s.queryUC.PendingPurchases(r.Context(), claims.Subject)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to list pending purchases")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool              `json:"success"`
		Data    []*model.Purchase `json:"data"`
	}{true, list})
}

// GET /api/v1/instructor/sales
func (s *Server) handleInstructorSales(w http.ResponseWriter, r *http.Request) {
	claims := sessionFrom(r.Context())
	sales, err := s.queryUC.InstructorSales(r.Context(), claims.Subject)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to aggregate sales")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool                 `json:"success"`
		Data    []*model.CourseSales `json:"data"`
	}{true, sales})
}

// GET /api/v1/admin/purchases?status=&older_than_hours=&limit=
func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	f := repository.PurchaseFilter{}
	if st := r.URL.Query().Get("status"); st != "" {
		f.Status = model.PurchaseStatus(st)
	}
	if h, err := strconv.Atoi(r.URL.Query().Get("older_than_hours")); err == nil && h > 0 {
		f.OlderThan = time.Now().Add(-time.Duration(h) * time.Hour)
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}

	list, err := s.adminUC.ListPurchases(r.Context(), f)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to list purchases")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool              `json:"success"`
		Data    []*model.Purchase `json:"data"`
	}{true, list})
}

// POST /api/v1/admin/purchases/{purchaseID}/fix?force=true
func (s *Server) handleAdminFix(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseID")
	force := r.URL.Query().Get("force") == "true"

	outcome, err := s.adminUC.FixPurchase(r.Context(), purchaseID, force)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "purchase not found")
			return
		}
		if errors.Is(err, domain.ErrVerificationFailed) {
			writeFailure(w, http.StatusBadGateway, "provider verification unavailable")
			return
		}
		writeFailure(w, http.StatusInternalServerError, "fix failed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Outcome string `json:"outcome"`
	}{true, string(outcome)})
}

// POST /api/v1/admin/purchases/fix-all?older_than_hours=&force=true
func (s *Server) handleAdminFixAll(w http.ResponseWriter, r *http.Request) {
	hours := 1
	if h, err := strconv.Atoi(r.URL.Query().Get("older_than_hours")); err == nil && h > 0 {
		hours = h
	}
	force := r.URL.Query().Get("force") == "true"

	report, err := s.adminUC.FixAllPending(r.Context(), time.Duration(hours)*time.Hour, force)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			writeFailure(w, http.StatusForbidden, "force-all is not permitted in this environment")
			return
		}
		writeFailure(w, http.StatusInternalServerError, "fix-all failed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool `json:"success"`
		Examined int  `json:"examined"`
		Fixed    int  `json:"fixed"`
		Errors   int  `json:"errors"`
	}{true, report.Examined, report.Fixed, report.Errors})
}
