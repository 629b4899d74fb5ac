package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tia/booking-service/internal/store"
)

type authContextKey struct{}

type authInfo struct {
	Session  store.Session
	Agencies []string
}

func AuthMiddleware(st store.BookingStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := st.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		agencies, err := st.GetAccess(r.Context(), session.UserID)
		if err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "access lookup failed")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, authInfo{Session: session, Agencies: agencies})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	if !ok {
		return authInfo{}, false
	}
	return info, true
}

// requireAgency enforces agency scoping when AuthMiddleware populated the
// request context. Without the middleware the handler trusts its caller.
func requireAgency(w http.ResponseWriter, r *http.Request, agencyID string) bool {
	if agencyID == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "agency_id is required")
		return false
	}
	info, ok := authFromContext(r.Context())
	if !ok {
		return true
	}
	if info.Session.AgencyID == agencyID {
		return true
	}
	if len(info.Agencies) == 0 {
		return true
	}
	if !contains(info.Agencies, agencyID) {
		writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "agency access denied")
		return false
	}
	return true
}

func contains(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/agencies":
		return r.Method == http.MethodPost
	case "/api/agencies/name-check":
		return r.Method == http.MethodGet
	default:
		return r.Method == http.MethodOptions
	}
}
