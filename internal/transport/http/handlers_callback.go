package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"steamgate/internal/oidc/models"
	"steamgate/internal/platform/metrics"
	"steamgate/internal/session"
)

// AssertionVerifier validates the signed OpenID 2.0 assertion carried by the
// callback URL and returns the stable Steam subject ID.
type AssertionVerifier interface {
	VerifyCallback(ctx context.Context, callbackURL string) (string, error)
}

// CodeIssuer turns a verified subject plus the pending request into a
// client-bound authorization code redirect.
type CodeIssuer interface {
	CompleteAuthorization(ctx context.Context, subjectID string, pending *models.PendingAuthRequest) (string, error)
}

// CallbackHandler serves the return leg of the Steam handshake.
type CallbackHandler struct {
	verifier AssertionVerifier
	issuer   CodeIssuer
	sessions *session.Manager
	pending  session.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	baseURL  string
}

// NewCallbackHandler constructs the Steam callback handler. baseURL is this
// provider's public base URL, needed to rebuild the absolute callback URL the
// assertion was signed over.
func NewCallbackHandler(
	verifier AssertionVerifier,
	issuer CodeIssuer,
	sessions *session.Manager,
	pending session.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
	baseURL string,
) *CallbackHandler {
	return &CallbackHandler{
		verifier: verifier,
		issuer:   issuer,
		sessions: sessions,
		pending:  pending,
		metrics:  m,
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Register registers the callback route with the chi router.
func (h *CallbackHandler) Register(r chi.Router) {
	r.Get("/auth/steam/return", h.handleReturn)
}

func (h *CallbackHandler) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := h.verifier.VerifyCallback(ctx, h.baseURL+r.URL.RequestURI())
	if err != nil {
		h.metrics.CallbackVerifications.WithLabelValues(metrics.OutcomeError).Inc()
		h.logger.ErrorContext(ctx, "steam assertion verification failed", "error", err)
		http.Error(w, "Failed to verify Steam assertion. Please try logging in again.", http.StatusInternalServerError)
		return
	}

	sessionID, ok := h.sessions.Read(r)
	if !ok {
		h.metrics.CallbackVerifications.WithLabelValues(metrics.OutcomeError).Inc()
		http.Error(w, "Session expired or invalid. Please try logging in again.", http.StatusBadRequest)
		return
	}

	pending, err := h.pending.Get(ctx, sessionID)
	if err != nil {
		h.metrics.CallbackVerifications.WithLabelValues(metrics.OutcomeError).Inc()
		h.logger.WarnContext(ctx, "pending authorization request missing at callback", "error", err)
		http.Error(w, "Session expired or invalid. Please try logging in again.", http.StatusBadRequest)
		return
	}

	// The round trip is over: the correlation record is consumed whether or
	// not code minting below succeeds.
	if err := h.pending.Delete(ctx, sessionID); err != nil {
		h.logger.WarnContext(ctx, "failed to delete pending authorization request", "error", err)
	}
	h.sessions.Clear(w)

	redirectURL, err := h.issuer.CompleteAuthorization(ctx, subjectID, pending)
	if err != nil {
		h.metrics.CallbackVerifications.WithLabelValues(metrics.OutcomeError).Inc()
		if errors.Is(err, models.ErrPendingIncomplete) {
			http.Error(w, "Session expired or invalid. Please try logging in again.", http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "failed to complete authorization", "error", err)
		http.Error(w, "Failed to complete authorization. Please try logging in again.", http.StatusInternalServerError)
		return
	}

	h.metrics.CallbackVerifications.WithLabelValues(metrics.OutcomeSuccess).Inc()
	http.Redirect(w, r, redirectURL, http.StatusFound)
}
