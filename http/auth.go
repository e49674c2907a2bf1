package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

// GetBearerToken extracts the bearer token from the Authorization header.
func GetBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return token
}

func verifyToken(secret string, r *http.Request) error {
	if secret == "" {
		return nil
	}

	token := GetBearerToken(r)
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return errors.New("invalid auth token").
			WithTag("client_id", r.Header.Get(HeaderClientID))
	}
	return nil
}

// VerifyAuthToken returns a websocket handshake function that rejects
// connections not carrying the shared secret. An empty secret disables
// authentication.
func VerifyAuthToken(secret string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(secret, r); err != nil {
			logs.WithTag("client_id", r.Header.Get(HeaderClientID)).Error(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler guards an HTTP handler with the shared secret.
func VerifyAuthTokenHandler(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(secret, r); err != nil {
			logs.WithTag("client_id", r.Header.Get(HeaderClientID)).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
