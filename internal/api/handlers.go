package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/messaging"
	"github.com/hackgods/vaidya/internal/metrics"
	"github.com/hackgods/vaidya/internal/patient"
	"github.com/hackgods/vaidya/internal/queue"
	"github.com/hackgods/vaidya/internal/records"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type SignatureVerifier interface {
	Verify(r *http.Request) bool
}

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
}

// WebhookHandler acknowledges Twilio WhatsApp webhooks and dispatches the message for
// background processing. The reply goes out through the Messages API, never in the response.
type WebhookHandler struct {
	verifier   SignatureVerifier
	skipVerify bool
	deduper    Deduper
	dispatcher queue.Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewWebhookHandler builds the webhook. skipVerify disables signature checks for local
// development; deduper may be nil.
func NewWebhookHandler(v SignatureVerifier, skipVerify bool, d Deduper, dispatcher queue.Dispatcher, m *metrics.Metrics, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   v,
		skipVerify: skipVerify,
		deduper:    d,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logging.OrNop(logger),
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.metrics.ObserveInbound("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_form", "could not parse form body")
		return
	}

	if !h.skipVerify && (h.verifier == nil || !h.verifier.Verify(r)) {
		h.metrics.ObserveInbound("rejected")
		h.logger.Warn("invalid twilio signature", zap.String("request_id", GetRequestID(r.Context())))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	in := messaging.ParseInbound(r.PostForm)
	if in.From == "" {
		h.metrics.ObserveInbound("ignored")
		ack(w)
		return
	}

	if h.deduper != nil {
		first, err := h.deduper.FirstSeen(r.Context(), in.SID)
		if err != nil {
			h.logger.Warn("inbound de-duplication unavailable", zap.String("sid", in.SID), zap.Error(err))
		} else if !first {
			h.metrics.ObserveInbound("duplicate")
			h.logger.Info("duplicate inbound ignored", zap.String("sid", in.SID))
			ack(w)
			return
		}
	}

	if err := h.dispatcher.Dispatch(r.Context(), in); err != nil {
		h.metrics.ObserveInbound("dispatch_failed")
		h.logger.Error("dispatch inbound",
			zap.String("phone", logging.MaskPhone(in.From)),
			zap.String("sid", in.SID),
			zap.Error(err),
		)
		ack(w)
		return
	}

	h.metrics.ObserveInbound("accepted")
	ack(w)
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

type RecordVerifier interface {
	Verify(ctx context.Context, token, otp string) (*patient.MedicalRecord, error)
}

type RecordsHandler struct {
	records RecordVerifier
	logger  *zap.Logger
}

func NewRecordsHandler(v RecordVerifier, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{records: v, logger: logging.OrNop(logger)}
}

// Access exchanges a record link token and its one-time code for the record.
func (h *RecordsHandler) Access(w http.ResponseWriter, r *http.Request) {
	var req RecordAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Token == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "token and otp are required")
		return
	}

	rec, err := h.records.Verify(r.Context(), req.Token, req.OTP)
	if err != nil {
		handleRecordError(w, h.logger, err)
		return
	}

	title := rec.Type
	if rec.Title != nil && *rec.Title != "" {
		title = *rec.Title
	}
	writeJSON(w, http.StatusOK, RecordResponse{
		ID:      rec.ID,
		Title:   title,
		Type:    rec.Type,
		FileURL: rec.FileURL,
	})
}

func handleRecordError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, records.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	case errors.Is(err, records.ErrInvalidCode):
		writeError(w, http.StatusForbidden, "invalid_code", err.Error())
	default:
		logger.Error("record access failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load record")
	}
}
