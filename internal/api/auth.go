package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/gridrunner/internal/config"
)

// authConfig holds operator credentials.
type authConfig struct {
	operatorUser string
	operatorPass string
	enabled      bool
}

var auth *authConfig

// InitAuth loads operator credentials. GRIDRUNNER_OPERATOR_USER defaults to
// "operator"; the password comes from GRIDRUNNER_OPERATOR_PASS (or its
// _FILE variant). Without a password, auth is disabled.
func InitAuth() error {
	user, err := config.ResolveSecret("GRIDRUNNER_OPERATOR_USER")
	if err != nil {
		return fmt.Errorf("resolve GRIDRUNNER_OPERATOR_USER: %w", err)
	}
	if user == "" {
		user = "operator"
	}
	pass, err := config.ResolveSecret(config.EnvOperatorPassword)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", config.EnvOperatorPassword, err)
	}

	auth = &authConfig{
		operatorUser: user,
		operatorPass: pass,
		enabled:      pass != "",
	}
	return nil
}

func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate reports whether r carries valid operator credentials.
// With auth disabled every request passes.
func authenticate(r *http.Request) bool {
	if !IsAuthEnabled() {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return secureCompare(user, auth.operatorUser) && secureCompare(pass, auth.operatorPass)
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="gridrunner"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireOperator wraps a handler with operator basic auth.
func RequireOperator(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authenticate(r) {
			requireAuth(w)
			return
		}
		handler(w, r)
	}
}
