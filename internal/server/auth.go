package server

import (
	"fmt"
	"net/http"

	"mue/internal/auth"
)

// withAuth requires a bearer token matching the configured hash. Without a
// hash the API is open, which is only reachable on loopback by default.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.BearerToken(r)
		if !ok || !auth.VerifyToken(s.tokenHash, token) {
			s.writeErrorReq(w, r, http.StatusUnauthorized, apiError{
				status:  http.StatusUnauthorized,
				code:    "unauthorized",
				errCode: ErrCodeUnauthorized,
				err:     fmt.Errorf("unauthorized"),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
