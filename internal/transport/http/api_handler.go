package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/metrics"
)

const defaultHistoryLimit = 20

// QuizLister lists available quizzes (id and title only).
type QuizLister interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// APIHandler serves the JSON endpoints for points, vouchers and quiz attempts.
type APIHandler struct {
	ledger      *app.Ledger
	catalog     *app.Catalog
	redemptions *app.Redemptions
	quizzes     *app.QuizService
	lister      QuizLister
}

func NewAPIHandler(ledger *app.Ledger, catalog *app.Catalog, redemptions *app.Redemptions, quizzes *app.QuizService, lister QuizLister) *APIHandler {
	return &APIHandler{
		ledger:      ledger,
		catalog:     catalog,
		redemptions: redemptions,
		quizzes:     quizzes,
		lister:      lister,
	}
}

type pointsResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message,omitempty"`
	Points    domain.PointsLedger `json:"points"`
	Formatted string              `json:"formatted"`
}

type earnRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

type templateView struct {
	domain.VoucherTemplate
	FaceValueText  string `json:"faceValueText"`
	PointsCostText string `json:"pointsCostText"`
}

type redeemRequest struct {
	TemplateID string `json:"templateId"`
}

type redeemResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Voucher *domain.RedeemedVoucher `json:"voucher,omitempty"`
}

type attemptsResponse struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message,omitempty"`
	Attempts  domain.QuizAttemptState `json:"attempts"`
	Remaining int                     `json:"remaining"`
	Locked    bool                    `json:"locked"`
}

type quizSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Questions int    `json:"questions"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *APIHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/points"
	defer observe(r, endpoint)()

	ledger := h.ledger.GetBalance(r.Context(), mux.Vars(r)["userId"])
	respondJSON(w, r, http.StatusOK, pointsResponse{
		Success:   true,
		Points:    ledger,
		Formatted: domain.FormatPoints(ledger.Total),
	}, endpoint)
}

func (h *APIHandler) EarnPoints(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/points/earn"
	defer observe(r, endpoint)()

	var req earnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Dữ liệu không hợp lệ", endpoint)
		return
	}
	ledger, err := h.ledger.Earn(r.Context(), mux.Vars(r)["userId"], req.Amount, req.Description)
	if err != nil {
		respondDomainError(w, r, err, endpoint)
		return
	}
	respondJSON(w, r, http.StatusOK, pointsResponse{
		Success:   true,
		Message:   fmt.Sprintf("Bạn nhận được %s!", domain.FormatPoints(req.Amount)),
		Points:    ledger,
		Formatted: domain.FormatPoints(ledger.Total),
	}, endpoint)
}

func (h *APIHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/points/history"
	defer observe(r, endpoint)()

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, r, http.StatusBadRequest, "Tham số limit không hợp lệ", endpoint)
			return
		}
		limit = n
	}
	history := h.ledger.History(r.Context(), mux.Vars(r)["userId"], limit)
	respondJSON(w, r, http.StatusOK, map[string]any{"success": true, "history": history}, endpoint)
}

func (h *APIHandler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/vouchers"
	defer observe(r, endpoint)()

	templates := h.catalog.ByProvider(domain.Provider(r.URL.Query().Get("provider")))
	views := make([]templateView, 0, len(templates))
	for _, t := range templates {
		views = append(views, templateView{
			VoucherTemplate: t,
			FaceValueText:   domain.FormatVND(t.FaceValue),
			PointsCostText:  domain.FormatPoints(t.PointsCost),
		})
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"success": true, "vouchers": views}, endpoint)
}

func (h *APIHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/redemptions"
	defer observe(r, endpoint)()

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TemplateID == "" {
		respondError(w, r, http.StatusBadRequest, "Dữ liệu không hợp lệ", endpoint)
		return
	}
	voucher, err := h.redemptions.Redeem(r.Context(), mux.Vars(r)["userId"], req.TemplateID)
	if err != nil {
		respondDomainError(w, r, err, endpoint)
		return
	}
	respondJSON(w, r, http.StatusCreated, redeemResponse{
		Success: true,
		Message: fmt.Sprintf("Đổi voucher thành công! Mã của bạn: %s", voucher.Code),
		Voucher: &voucher,
	}, endpoint)
}

func (h *APIHandler) UserVouchers(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/vouchers"
	defer observe(r, endpoint)()

	vouchers := h.redemptions.Vouchers(r.Context(), mux.Vars(r)["userId"])
	respondJSON(w, r, http.StatusOK, map[string]any{"success": true, "vouchers": vouchers}, endpoint)
}

func (h *APIHandler) UseVoucher(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/vouchers/{voucherId}/use"
	defer observe(r, endpoint)()

	vars := mux.Vars(r)
	voucher, err := h.redemptions.MarkUsed(r.Context(), vars["userId"], vars["voucherId"])
	if err != nil {
		respondDomainError(w, r, err, endpoint)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"success": true, "voucher": voucher}, endpoint)
}

func (h *APIHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/quizzes"
	defer observe(r, endpoint)()

	quizzes, err := h.lister.ListQuizzes(r.Context())
	if err != nil {
		respondDomainError(w, r, err, endpoint)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"success": true, "quizzes": quizzes}, endpoint)
}

func (h *APIHandler) ReloadQuiz(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/quizzes/{quizId}/reload"
	defer observe(r, endpoint)()

	quiz, err := h.quizzes.Reload(r.Context(), mux.Vars(r)["quizId"])
	if err != nil {
		respondDomainError(w, r, err, endpoint)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Đã tải lại quiz %s", quiz.Title),
		"quiz":    quizSummary{ID: quiz.ID, Title: quiz.Title, Questions: len(quiz.Questions)},
	}, endpoint)
}

func (h *APIHandler) GetAttempts(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/quizzes/{quizId}/attempts"
	defer observe(r, endpoint)()

	state := h.quizzes.Attempts(r.Context(), mux.Vars(r)["quizId"])
	respondJSON(w, r, http.StatusOK, h.attemptsBody(state, ""), endpoint)
}

func (h *APIHandler) PurchaseAttempts(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/quizzes/{quizId}/attempts/purchase"
	defer observe(r, endpoint)()

	state := h.quizzes.Purchase(r.Context(), mux.Vars(r)["quizId"])
	message := fmt.Sprintf("Đã mua thêm lượt chơi. Bạn còn %d lượt.", state.Remaining())
	respondJSON(w, r, http.StatusOK, h.attemptsBody(state, message), endpoint)
}

func (h *APIHandler) attemptsBody(state domain.QuizAttemptState, message string) attemptsResponse {
	return attemptsResponse{
		Success:   true,
		Message:   message,
		Attempts:  state,
		Remaining: state.Remaining(),
		Locked:    state.Locked(h.quizzes.Now()),
	}
}

func observe(r *http.Request, endpoint string) func() {
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint))
	return func() { timer.ObserveDuration() }
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}, endpoint string) {
	metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).WithField("endpoint", endpoint).Warn("encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, code int, message, endpoint string) {
	respondJSON(w, r, code, errorResponse{Success: false, Message: message}, endpoint)
}

func respondDomainError(w http.ResponseWriter, r *http.Request, err error, endpoint string) {
	code, message := errorStatus(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).WithField("endpoint", endpoint).Error("request failed")
	}
	respondError(w, r, code, message, endpoint)
}

// errorStatus maps domain errors to an HTTP status and a message safe to show the player.
func errorStatus(err error) (int, string) {
	var insufficientPoints *domain.InsufficientPointsError
	var insufficientBalance *domain.InsufficientBalanceError
	var locked *domain.QuizLockedError
	switch {
	case errors.As(err, &insufficientPoints), errors.As(err, &insufficientBalance):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &locked):
		return http.StatusLocked, err.Error()
	case errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrVoucherNotFound),
		errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrPointsOverflow),
		errors.Is(err, domain.ErrOptionOutOfRange):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, domain.ErrRunFinished):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusInternalServerError, rootMessage(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "Yêu cầu đã bị hủy"
	default:
		return http.StatusInternalServerError, "Đã có lỗi xảy ra, vui lòng thử lại"
	}
}

// rootMessage strips wrapping context so only the sentinel's Vietnamese text is shown.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrTemplateNotFound,
		domain.ErrVoucherNotFound,
		domain.ErrQuizNotFound,
		domain.ErrInvalidAmount,
		domain.ErrPointsOverflow,
		domain.ErrInvalidQuiz,
		domain.ErrOptionOutOfRange,
		domain.ErrRunFinished,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
