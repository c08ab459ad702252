package httptransport

import (
	"encoding/json"
	"net/http"
	"net/url"

	oidcerrors "steamgate/pkg/oidc-errors"
)

// errorBody is the JSON error envelope for OIDC-style failures.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeOIDCError translates a protocol error into the JSON error envelope.
// Only the kind and client-visible description are serialized; wrapped causes
// stay in the logs.
func writeOIDCError(w http.ResponseWriter, err error) {
	kind := oidcerrors.KindOf(err)
	writeJSON(w, oidcerrors.ToHTTPStatus(kind), errorBody{
		Error:            string(kind),
		ErrorDescription: oidcerrors.DescriptionOf(err),
	})
}

// redirectableURI reports whether an error can be safely delivered as a
// redirect to the given URI. Errors go to the redirect_uri only when it is a
// syntactically valid absolute URL; anything else gets a JSON body, because an
// error must not be redirected to an unvalidated location.
func redirectableURI(redirectURI string) bool {
	u, err := url.ParseRequestURI(redirectURI)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// redirectWithError delivers a protocol error as error/error_description query
// parameters on the client's redirect_uri.
func redirectWithError(w http.ResponseWriter, r *http.Request, redirectURI string, err error) {
	u, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		writeOIDCError(w, err)
		return
	}
	query := u.Query()
	query.Set("error", string(oidcerrors.KindOf(err)))
	query.Set("error_description", oidcerrors.DescriptionOf(err))
	u.RawQuery = query.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}
