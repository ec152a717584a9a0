package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/crudgen/crudgen/pkg/httputil"
)

// BasicAuthConfig holds the username-password pairs for basic authentication.
type BasicAuthConfig struct {
	Credentials map[string]string
}

// VerifyBasicAuth authenticates requests against static credentials and
// attaches the caller identity to the context. When send401Unauthorized is
// false, requests carrying other authorization schemes (or none) pass
// through for later middleware to handle.
func VerifyBasicAuth(config *BasicAuthConfig, send401Unauthorized ...bool) func(http.Handler) http.Handler {
	send401 := true
	if len(send401Unauthorized) > 0 {
		send401 = send401Unauthorized[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Basic ") {
				if send401 {
					w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
					http.Error(w, "Authorization header missing or not Basic", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			encodedCredentials := strings.TrimPrefix(authHeader, "Basic ")
			credentials, err := base64.StdEncoding.DecodeString(encodedCredentials)
			if err != nil {
				http.Error(w, "Invalid base64 encoding", http.StatusUnauthorized)
				return
			}

			username, password, ok := strings.Cut(string(credentials), ":")
			if !ok {
				http.Error(w, "Invalid credentials format", http.StatusUnauthorized)
				return
			}

			if validPassword, found := config.Credentials[username]; !found || validPassword != password {
				w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), httputil.BasicAuthCtxKey, username)
			ctx = context.WithValue(ctx, httputil.CallerCtxKey, &httputil.Caller{Subject: username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
