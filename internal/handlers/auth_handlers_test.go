package handlers

import (
	"net/http"
	"testing"

	"github.com/powderplan/backend/pkg/utils"
)

func TestAuthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	var token string

	t.Run("POST /api/auth/register creates user and returns token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "alice@test.com",
			"password":  "password123",
			"full_name": "Alice Example",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		data := dataMap(t, body)
		token, _ = data["token"].(string)
		if token == "" {
			t.Fatalf("expected token in registration response, got %+v", data)
		}
		user := data["user"].(map[string]any)
		if user["email"] != "alice@test.com" {
			t.Fatalf("expected normalized email, got %v", user["email"])
		}
		if _, leaked := user["password_hash"]; leaked {
			t.Fatalf("password hash must never be serialized")
		}
	})

	t.Run("POST /api/auth/register duplicate email rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "alice@test.com",
			"password":  "password123",
			"full_name": "Alice Again",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertErrorCode(t, body, utils.CodeValidationError)
	})

	t.Run("POST /api/auth/register short password rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "bob@test.com",
			"password":  "short",
			"full_name": "Bob Example",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertErrorCode(t, body, utils.CodeValidationError)
	})

	t.Run("POST /api/auth/login wrong password rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "alice@test.com",
			"password": "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertErrorCode(t, body, utils.CodeUnauthorized)
	})

	t.Run("POST /api/auth/login returns fresh token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "alice@test.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["token"] == "" {
			t.Fatal("expected token in login response")
		}
	})

	t.Run("GET /api/auth/me requires a token", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertErrorCode(t, body, utils.CodeUnauthorized)
	})

	t.Run("GET /api/auth/me returns the session user", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["email"] != "alice@test.com" {
			t.Fatalf("expected session user, got %+v", data)
		}
	})

	t.Run("PUT /api/auth/me updates full name", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"full_name": "Alice Renamed",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["full_name"] != "Alice Renamed" {
			t.Fatalf("expected updated name, got %v", data["full_name"])
		}
	})

	t.Run("PUT /api/auth/password wrong current password forbidden", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
			"current_password": "not-the-password",
			"new_password":     "password456",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertErrorCode(t, body, utils.CodeForbidden)
	})

	t.Run("PUT /api/auth/password rotates credentials", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
			"current_password": "password123",
			"new_password":     "password456",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "alice@test.com",
			"password": "password456",
		}, nil)
		assertStatus(t, resp, http.StatusOK)
	})
}

func TestUserSearch(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "searcher@test.com", "password123", "Searcher")
	createTestUser(t, env.db, "target@test.com", "password123", "Target Person")

	resp := performRequest(t, env.app, http.MethodGet, "/api/users/search?search=target", nil, authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusOK)
	results, ok := body["data"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("expected exactly one match, got %+v", body["data"])
	}
}
