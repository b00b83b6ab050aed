package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/powderplan/backend/internal/models"
	"github.com/powderplan/backend/pkg/utils"
)

func TestGroupsEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	owner, ownerToken := createTestUser(t, env.db, "trip-owner@test.com", "password123", "Trip Owner")
	member, memberToken := createTestUser(t, env.db, "trip-member@test.com", "password123", "Trip Member")
	outsider, outsiderToken := createTestUser(t, env.db, "outsider@test.com", "password123", "Outsider")

	var groupID string

	t.Run("POST /api/groups/ creates group and owner membership", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/", map[string]any{
			"name":           "Chamonix January",
			"check_in_date":  "2026-01-10",
			"check_out_date": "2026-01-17",
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		data := dataMap(t, body)
		groupID = data["id"].(string)
		if data["status"] != string(models.GroupStatusPlanning) {
			t.Fatalf("new groups start in planning, got %v", data["status"])
		}

		var membership models.GroupMember
		if err := env.db.First(&membership, "group_id = ? AND user_id = ?", groupID, owner.ID).Error; err != nil {
			t.Fatalf("expected owner membership to exist: %v", err)
		}
		if membership.Role != models.RoleOwner {
			t.Fatalf("expected owner role, got %s", membership.Role)
		}
	})

	t.Run("POST /api/groups/ rejects inverted dates", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/", map[string]any{
			"name":           "Backwards Trip",
			"check_in_date":  "2026-01-17",
			"check_out_date": "2026-01-10",
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertErrorCode(t, body, utils.CodeValidationError)
	})

	t.Run("POST /api/groups/ with invite_emails creates invitations", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/", map[string]any{
			"name":           "Verbier February",
			"check_in_date":  "2026-02-01",
			"check_out_date": "2026-02-08",
			"invite_emails":  []string{"friend@test.com", "not-an-email"},
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		createdID := dataMap(t, body)["id"].(string)

		var count int64
		if err := env.db.Model(&models.Invitation{}).Where("group_id = ?", createdID).Count(&count).Error; err != nil {
			t.Fatalf("failed counting invitations: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected one invitation (invalid email skipped), got %d", count)
		}
	})

	t.Run("GET /api/groups/ lists only the caller's groups", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/", nil, authHeaders(outsiderToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if groups, _ := body["data"].([]any); len(groups) != 0 {
			t.Fatalf("outsider should see no groups, got %d", len(groups))
		}
	})

	t.Run("GET /api/groups/:id non-member forbidden", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID, nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertErrorCode(t, body, utils.CodeForbidden)
	})

	t.Run("GET /api/groups/:id member sees role and member count", func(t *testing.T) {
		addTestMember(t, env.db, &models.Group{BaseModel: models.BaseModel{ID: mustUUID(t, groupID)}}, member, models.RoleMember)

		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID, nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["user_role"] != string(models.RoleMember) {
			t.Fatalf("expected member role, got %v", data["user_role"])
		}
		if data["member_count"].(float64) != 2 {
			t.Fatalf("expected 2 members, got %v", data["member_count"])
		}
	})

	t.Run("PUT /api/groups/:id member cannot update", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/groups/"+groupID, map[string]any{
			"name": "Hijacked",
		}, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertErrorCode(t, body, utils.CodeForbidden)
	})

	t.Run("PUT /api/groups/:id planning to voting allowed", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/groups/"+groupID, map[string]any{
			"status": "voting",
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["status"] != string(models.GroupStatusVoting) {
			t.Fatalf("expected voting status, got %+v", body)
		}
	})

	t.Run("PUT /api/groups/:id voting_closed not reachable directly", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/groups/"+groupID, map[string]any{
			"status": "voting_closed",
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertErrorCode(t, body, utils.CodeValidationError)
	})

	t.Run("PUT /api/groups/:id max_members below member count rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/groups/"+groupID, map[string]any{
			"max_members": 1,
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertErrorCode(t, body, utils.CodeValidationError)
	})

	t.Run("DELETE /api/groups/:id/members/:userId owner cannot be removed", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, fmt.Sprintf("/api/groups/%s/members/%s", groupID, owner.ID), nil, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertErrorCode(t, body, utils.CodeForbidden)
	})

	t.Run("DELETE /api/groups/:id/members/:userId member can leave", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, fmt.Sprintf("/api/groups/%s/members/%s", groupID, member.ID), nil, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusOK)

		var count int64
		env.db.Model(&models.GroupMember{}).Where("group_id = ? AND user_id = ?", groupID, member.ID).Count(&count)
		if count != 0 {
			t.Fatalf("expected membership removed, found %d rows", count)
		}
	})

	t.Run("DELETE /api/groups/:id member cannot delete group", func(t *testing.T) {
		addTestMember(t, env.db, &models.Group{BaseModel: models.BaseModel{ID: mustUUID(t, groupID)}}, member, models.RoleMember)
		resp := performRequest(t, env.app, http.MethodDelete, "/api/groups/"+groupID, nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertErrorCode(t, body, utils.CodeForbidden)
	})

	t.Run("DELETE /api/groups/:id owner delete cascades", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/groups/"+groupID, nil, authHeaders(ownerToken))
		assertStatus(t, resp, http.StatusOK)

		var memberships int64
		env.db.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Count(&memberships)
		if memberships != 0 {
			t.Fatalf("expected memberships removed with the group, found %d", memberships)
		}
	})

	_ = outsider
}
