package auth

import (
	"fmt"
	"net/http"
)

// WriteDenied writes the HTTP response for a denied request.
//
// The response class depends on exactly one designated strategy: the first
// one configured on the endpoint's chain, regardless of which strategy (if
// any) produced the failure. If that strategy defines a non-empty
// challenge, the denial is 401 with the challenge in WWW-Authenticate;
// otherwise it is 403 with no challenge header.
//
// authenticated must be true when the request did resolve a non-anonymous
// credential and was denied for authorization reasons. Such denials are
// always 403, never 401, irrespective of the designated strategy.
func WriteDenied(w http.ResponseWriter, chain *Chain, authenticated bool) {
	if authenticated {
		writeJSONError(w, http.StatusForbidden, "permission_denied", "access denied")
		return
	}

	if challenge := chain.Challenge(); challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
		writeJSONError(w, http.StatusUnauthorized, "authentication_required", "authentication required")
		return
	}

	writeJSONError(w, http.StatusForbidden, "permission_denied", "access denied")
}

// writeJSONError writes a structured error body with the given status.
func writeJSONError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"type":%q,"message":%q}}`+"\n", errType, message)
}
