package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func resetAuth() {
	auth = nil
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuthDisabledWithoutPassword(t *testing.T) {
	resetAuth()
	t.Setenv("GRIDRUNNER_OPERATOR_USER", "")
	t.Setenv("GRIDRUNNER_OPERATOR_PASS", "")

	if err := InitAuth(); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	if IsAuthEnabled() {
		t.Fatal("expected auth disabled")
	}

	rr := httptest.NewRecorder()
	RequireOperator(okHandler)(rr, httptest.NewRequest(http.MethodPost, "/dispatch", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestOperatorCredentials(t *testing.T) {
	resetAuth()
	t.Setenv("GRIDRUNNER_OPERATOR_USER", "")
	t.Setenv("GRIDRUNNER_OPERATOR_PASS", "s3cret")
	if err := InitAuth(); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	defer resetAuth()

	tests := []struct {
		name       string
		user, pass string
		basic      bool
		wantStatus int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"default user", "operator", "s3cret", true, http.StatusOK},
		{"wrong password", "operator", "nope", true, http.StatusUnauthorized},
		{"wrong user", "admin", "s3cret", true, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/dispatch", nil)
			if tc.basic {
				req.SetBasicAuth(tc.user, tc.pass)
			}
			rr := httptest.NewRecorder()
			RequireOperator(okHandler)(rr, req)
			if rr.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.wantStatus == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestOperatorPasswordFromFile(t *testing.T) {
	resetAuth()
	defer resetAuth()
	path := filepath.Join(t.TempDir(), "pass")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRIDRUNNER_OPERATOR_USER", "ops")
	t.Setenv("GRIDRUNNER_OPERATOR_PASS", "")
	t.Setenv("GRIDRUNNER_OPERATOR_PASS_FILE", path)

	if err := InitAuth(); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/dispatch", nil)
	req.SetBasicAuth("ops", "from-file")
	rr := httptest.NewRecorder()
	RequireOperator(okHandler)(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("abc", "abc") {
		t.Error("expected equal strings to match")
	}
	if secureCompare("abc", "abd") || secureCompare("abc", "ab") {
		t.Error("expected different strings not to match")
	}
}
