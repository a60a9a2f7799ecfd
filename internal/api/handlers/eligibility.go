package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/holdr-fi/quest-n-script/internal/messaging"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// ErrAddressRequired is returned when the address query parameter is missing
var ErrAddressRequired = errors.New("address is required")

// Evaluator computes an eligibility verdict
type Evaluator interface {
	Evaluate(ctx context.Context, address string) (*models.Evaluation, error)
}

// Recorder receives per-request evaluation metrics
type Recorder interface {
	RecordEvaluation(eligible bool, err error, elapsed time.Duration)
	PublishFailed()
}

type nopRecorder struct{}

func (nopRecorder) RecordEvaluation(bool, error, time.Duration) {}
func (nopRecorder) PublishFailed()                             {}

// EligibilityHandler serves eligibility checks
type EligibilityHandler struct {
	evaluator Evaluator
	publisher messaging.Publisher
	recorder  Recorder
	logger    *logrus.Entry
}

// NewEligibilityHandler creates a new eligibility handler. publisher and
// recorder may be nil.
func NewEligibilityHandler(evaluator Evaluator, publisher messaging.Publisher, recorder Recorder, logger *logrus.Logger) *EligibilityHandler {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &EligibilityHandler{
		evaluator: evaluator,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.WithField("component", "eligibility-api"),
	}
}

// RegisterRoutes registers eligibility routes
func (h *EligibilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/eligibility", h.Check).Methods("GET", "OPTIONS")
}

// Check handles GET /api/v1/eligibility?address=0x...
func (h *EligibilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	// Passed through untrimmed, whitespace makes the address malformed
	address := r.URL.Query().Get("address")
	if strings.TrimSpace(address) == "" {
		WriteEnvelope(w, models.FailureEnvelope(ErrAddressRequired))
		return
	}

	start := time.Now()
	eval, err := h.evaluator.Evaluate(r.Context(), address)
	elapsed := time.Since(start)

	eligible := err == nil && eval.Eligible()
	h.recorder.RecordEvaluation(eligible, err, elapsed)
	h.publish(r.Context(), address, eval, err)

	if err != nil {
		h.logger.WithError(err).WithField("address", address).Error("Eligibility check failed")
		WriteEnvelope(w, models.FailureEnvelope(err))
		return
	}

	WriteEnvelope(w, models.SuccessEnvelope(eligible))
}

func (h *EligibilityHandler) publish(ctx context.Context, address string, eval *models.Evaluation, evalErr error) {
	event := messaging.NewEligibilityEvent(address, eval, evalErr, time.Now())
	if err := h.publisher.PublishEligibility(context.WithoutCancel(ctx), event); err != nil {
		h.recorder.PublishFailed()
		h.logger.WithError(err).WithField("address", event.Address).Warn("Failed to publish eligibility event")
	}
}

// WriteEnvelope writes env with its matching status code
func WriteEnvelope(w http.ResponseWriter, env models.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode())
	json.NewEncoder(w).Encode(env)
}
