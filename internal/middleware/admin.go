package middleware

import (
	"crypto/hmac"
	"net/http"
)

const adminTokenHeader = "X-Admin-Token"

// AdminAuth пропускает запрос только с верным админским токеном в заголовке.
type AdminAuth struct {
	token []byte
}

// NewAdminAuth создаёт проверку админского токена.
func NewAdminAuth(token string) *AdminAuth {
	return &AdminAuth{token: []byte(token)}
}

// Middleware отклоняет запросы без действительного токена.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(adminTokenHeader))
		if len(a.token) == 0 || !hmac.Equal(a.token, got) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
