package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the provider.
type Metrics struct {
	AuthorizeRequests     *prometheus.CounterVec
	CodesIssued           prometheus.Counter
	TokenExchanges        *prometheus.CounterVec
	UserInfoRequests      *prometheus.CounterVec
	CallbackVerifications *prometheus.CounterVec
}

// Outcome labels shared by the counter vectors.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics with the given registerer. Tests pass a fresh
// registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthorizeRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steamgate_authorize_requests_total",
			Help: "Authorization endpoint requests by outcome",
		}, []string{"outcome"}),
		CodesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "steamgate_authorization_codes_issued_total",
			Help: "Authorization codes minted after successful Steam verification",
		}),
		TokenExchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steamgate_token_exchanges_total",
			Help: "Token endpoint exchanges by outcome",
		}, []string{"outcome"}),
		UserInfoRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steamgate_userinfo_requests_total",
			Help: "Userinfo endpoint requests by outcome",
		}, []string{"outcome"}),
		CallbackVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steamgate_callback_verifications_total",
			Help: "Steam callback assertion verifications by outcome",
		}, []string{"outcome"}),
	}
}
