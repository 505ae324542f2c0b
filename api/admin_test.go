package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The API key must arrive RSA-OAEP encrypted under the key the server
// advertises; the server decrypts it back to the plaintext.
func TestUpdateProviderAPIKeyEncryptsInTransit(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	var decrypted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin/security/public-key":
			_ = json.NewEncoder(w).Encode(map[string]string{"public_key": string(publicPEM)})
		case "/api/admin/providers/openai/api-key":
			require.Equal(t, http.MethodPut, r.Method)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			ciphertext, err := base64.StdEncoding.DecodeString(body["encrypted_api_key"])
			require.NoError(t, err)
			plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, ciphertext, nil)
			require.NoError(t, err)
			decrypted = string(plaintext)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")
	require.NoError(t, c.UpdateProviderAPIKey(context.Background(), "openai", "sk-secret"))
	assert.Equal(t, "sk-secret", decrypted)
}

func TestAdminServicesAndCosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin/provider-services":
			_, _ = w.Write([]byte(`[{"id": 3, "provider_name": "OpenAI", "service_name": "Chat",
				"model_api_id": "gpt-4o", "display_name": "GPT-4o", "is_active": true}]`))
		case "/api/admin/service-costs/3":
			require.Equal(t, http.MethodPut, r.Method)
			var body map[string]float64
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 0.02, body["cost"])
			_, _ = w.Write([]byte(`{"id": 3, "service_key": "ai.gpt-4o.chat", "display_name": "GPT-4o",
				"cost": 0.02, "unit": "per_1k_tokens"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")

	services, err := c.AdminServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "GPT-4o", services[0].DisplayName)
	assert.True(t, services[0].IsActive)

	cost, err := c.UpdateServiceCost(context.Background(), 3, 0.02)
	require.NoError(t, err)
	assert.Equal(t, 0.02, cost.Cost)
	assert.Equal(t, "per_1k_tokens", cost.Unit)
}

func TestServiceCreateAndDelete(t *testing.T) {
	var deleted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/admin/provider-services" && r.Method == http.MethodPost:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "2", body["provider_id"])
			assert.Equal(t, "1", body["service_id"])
			assert.Equal(t, "claude-sonnet-4", body["model_api_id"])
			assert.Equal(t, true, body["is_active"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message": "Service created successfully.", "id": 11}`))
		case r.URL.Path == "/api/admin/provider-services/11" && r.Method == http.MethodDelete:
			deleted = true
			_, _ = w.Write([]byte(`{"message": "ok"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")

	id, err := c.CreateService(context.Background(), CreateServiceRequest{
		ProviderID:  "2",
		ServiceID:   "1",
		ModelAPIID:  "claude-sonnet-4",
		DisplayName: "Claude Sonnet",
		IsActive:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, id)

	require.NoError(t, c.DeleteService(context.Background(), 11))
	assert.True(t, deleted)
}

func TestUserAdministration(t *testing.T) {
	var resent bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users":
			_, _ = w.Write([]byte(`[{"id": 4, "email": "a@x.io", "full_name": "Ada",
				"role": "user", "is_active": true},
				{"id": 5, "email": "b@x.io", "full_name": "Ben", "role": "user", "is_active": false}]`))
		case "/api/admin/users/4/role":
			require.Equal(t, http.MethodPut, r.Method)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "team_admin", body["role"])
			_, _ = w.Write([]byte(`{"id": 4, "email": "a@x.io", "full_name": "Ada",
				"role": "team_admin", "is_active": true}`))
		case "/api/admin/users/5/resend-invitation":
			require.Equal(t, http.MethodPost, r.Method)
			resent = true
			_, _ = w.Write([]byte(`{"message": "Invitation resent successfully to b@x.io."}`))
		case "/api/admin/team/4/sub_accounts":
			_, _ = w.Write([]byte(`[{"id": 6, "email": "c@x.io", "full_name": "Cam",
				"role": "user", "is_active": true, "parent_id": 4}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")

	users, err := c.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.False(t, users[1].IsActive)

	promoted, err := c.UpdateUserRole(context.Background(), 4, "team_admin")
	require.NoError(t, err)
	assert.Equal(t, "team_admin", promoted.Role)

	require.NoError(t, c.ResendInvitation(context.Background(), 5))
	assert.True(t, resent)

	members, err := c.TeamSubAccounts(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.NotNil(t, members[0].ParentID)
	assert.Equal(t, 4, *members[0].ParentID)
}

func TestTeamReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/team/report/general":
			_, _ = w.Write([]byte(`{"total_spend": 12.5,
				"spend_by_user": [{"user_id": 9, "email": "x@y.z", "total": 12.5}],
				"spend_by_service": [{"service": "GPT-4o Chat", "total": 12.5}]}`))
		case "/api/team/report/user/9":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			_, _ = w.Write([]byte(`{"transactions": [{"id": 1, "user_email": "x@y.z",
				"service_name": "GPT-4o Chat", "model_name": "gpt-4o", "cost_deducted": 0.1,
				"transaction_time": "2026-08-30T12:00:00"}],
				"total_pages": 4, "current_page": 2, "has_next": true, "has_prev": true}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")

	general, err := c.TeamReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.5, general.TotalSpend)
	require.Len(t, general.SpendByUser, 1)
	assert.Equal(t, 9, general.SpendByUser[0].UserID)

	report, err := c.UserReport(context.Background(), 9, 2)
	require.NoError(t, err)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, 4, report.TotalPages)
	assert.True(t, report.HasNext)
}
