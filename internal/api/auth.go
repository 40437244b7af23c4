package api

import "net/http"

// Principal is the caller's identity for this request. There is no token
// infrastructure in front of the service yet; role comes from a header set
// by the gateway, defaulting to read-only.
type Principal struct {
	Role string // viewer, dispatcher
}

func getPrincipal(r *http.Request) Principal {
	role := r.Header.Get("X-Role")
	if role == "" {
		role = "viewer"
	}
	return Principal{Role: role}
}

// CanDispatch reports whether the principal may trigger dispatch runs.
func (p Principal) CanDispatch() bool { return p.Role == "dispatcher" || p.Role == "admin" }
