package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubAccountLifecycle(t *testing.T) {
	var deleted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/team/sub_accounts":
			switch r.Method {
			case http.MethodGet:
				_, _ = w.Write([]byte(`[{"id": 7, "email": "a@team.io", "full_name": "Alex",
					"role": "user", "is_active": true, "credit_limit": 50}]`))
			case http.MethodPost:
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "b@team.io", body["email"])
				assert.Equal(t, 25.0, body["credit_limit"])
				_, _ = w.Write([]byte(`{"id": 8, "email": "b@team.io", "full_name": "Bo",
					"role": "user", "is_active": false, "credit_limit": 25}`))
			default:
				t.Errorf("unexpected method %s", r.Method)
			}
		case "/api/team/sub_accounts/7":
			switch r.Method {
			case http.MethodPut:
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				// A null limit lifts the cap entirely.
				assert.Contains(t, body, "credit_limit")
				assert.Nil(t, body["credit_limit"])
				_, _ = w.Write([]byte(`{"id": 7, "email": "a@team.io", "full_name": "Alex",
					"role": "user", "is_active": true, "credit_limit": 0}`))
			case http.MethodDelete:
				deleted = true
				_, _ = w.Write([]byte(`{"message": "ok"}`))
			default:
				t.Errorf("unexpected method %s", r.Method)
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, zerolog.Nop())
	c.setToken("tok")

	members, err := c.SubAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "a@team.io", members[0].Email)
	assert.Equal(t, 50.0, members[0].CreditLimit)

	limit := 25.0
	created, err := c.CreateSubAccount(context.Background(), SubAccountRequest{
		Email:       "b@team.io",
		FullName:    "Bo",
		CreditLimit: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, created.ID)
	assert.False(t, created.IsActive)

	updated, err := c.UpdateSubAccount(context.Background(), 7, SubAccountRequest{CreditLimit: nil})
	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.CreditLimit)

	require.NoError(t, c.DeleteSubAccount(context.Background(), 7))
	assert.True(t, deleted)
}
