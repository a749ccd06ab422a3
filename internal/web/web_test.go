package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/Lordhacker756/vortex-api/internal/platform/errors"
)

func TestWriteJSONEnvelope(t *testing.T) {
	recorder := httptest.NewRecorder()
	WriteJSON(recorder, http.StatusCreated, "created", map[string]string{"id": "poll-1"})

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", recorder.Code)
	}
	var body Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "success" || body.Message != "created" || body.Error != nil {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if body.Timestamp.IsZero() {
		t.Fatal("expected a timestamp")
	}
}

func TestWriteErrorDomainError(t *testing.T) {
	recorder := httptest.NewRecorder()
	WriteError(recorder, apperrors.New(apperrors.CodePollAlreadyVoted, "voter has already voted on this poll"))

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", recorder.Code)
	}
	var body Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "error" || body.Error == nil {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if body.Error.Code != string(apperrors.CodePollAlreadyVoted) {
		t.Fatalf("unexpected code: %s", body.Error.Code)
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	recorder := httptest.NewRecorder()
	WriteError(recorder, fmt.Errorf("sqlite: disk I/O error at offset 4096"))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	var body Response
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error == nil || body.Error.Message != "something went wrong" {
		t.Fatalf("driver detail must not leak: %+v", body.Error)
	}
}

type fakeVerifier struct {
	subject string
	err     error
	last    string
}

func (f *fakeVerifier) Verify(tokenString string) (string, error) {
	f.last = tokenString
	if f.err != nil {
		return "", f.err
	}
	return f.subject, nil
}

func TestRequireAuthFromCookie(t *testing.T) {
	verifier := &fakeVerifier{subject: "user-1"}
	var sawUserID string
	handler := RequireAuth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUserID, _ = UserID(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/polls/manage", nil)
	request.AddCookie(&http.Cookie{Name: CookieName, Value: "signed-token"})
	handler.ServeHTTP(httptest.NewRecorder(), request)

	if verifier.last != "signed-token" {
		t.Fatalf("expected cookie token, verifier saw %q", verifier.last)
	}
	if sawUserID != "user-1" {
		t.Fatalf("expected user id on context, got %q", sawUserID)
	}
}

func TestRequireAuthFromBearerHeader(t *testing.T) {
	verifier := &fakeVerifier{subject: "user-1"}
	handler := RequireAuth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	request := httptest.NewRequest(http.MethodGet, "/api/polls/manage", nil)
	request.Header.Set("Authorization", "Bearer header-token")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	if verifier.last != "header-token" {
		t.Fatalf("expected header token, verifier saw %q", verifier.last)
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	verifier := &fakeVerifier{err: apperrors.New(apperrors.CodeTokenInvalid, "bearer token is invalid")}
	called := false
	handler := RequireAuth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/polls/manage", nil))

	if called {
		t.Fatal("handler must not run without a valid token")
	}
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	middleware := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/polls", nil)
	request.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("expected origin header, got %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
	if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials to be allowed")
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	middleware := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	request := httptest.NewRequest(http.MethodGet, "/api/polls", nil)
	request.Header.Set("Origin", "https://evil.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origins must not be allowed")
	}
}

func TestCORSPreflight(t *testing.T) {
	middleware := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})
	called := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	request := httptest.NewRequest(http.MethodOptions, "/api/polls", nil)
	request.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if called {
		t.Fatal("preflight must not reach the handler")
	}
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected allowed methods on preflight")
	}
}
