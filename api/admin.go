package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"wisdar/model"
)

// Admin endpoints. The backend enforces the admin role; callers gate the UI
// with model.User.IsAdmin but rely on the server for authorization.

// ServiceCosts lists all configurable price entries.
func (c *Client) ServiceCosts(ctx context.Context) ([]model.ServiceCost, error) {
	var costs []model.ServiceCost
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/service-costs", nil, &costs); err != nil {
		return nil, err
	}
	return costs, nil
}

// UpdateServiceCost sets the price of one entry and returns the updated row.
func (c *Client) UpdateServiceCost(ctx context.Context, costID int, cost float64) (*model.ServiceCost, error) {
	var updated model.ServiceCost
	path := "/api/admin/service-costs/" + strconv.Itoa(costID)
	body := map[string]float64{"cost": cost}
	if err := c.doJSON(ctx, http.MethodPut, path, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// AdminService is the admin-panel view of one provider service row.
type AdminService struct {
	ID           int    `json:"id"`
	ProviderName string `json:"provider_name"`
	ServiceName  string `json:"service_name"`
	ModelAPIID   string `json:"model_api_id"`
	DisplayName  string `json:"display_name"`
	IsActive     bool   `json:"is_active"`
}

// AdminServices lists every provider service, active or not.
func (c *Client) AdminServices(ctx context.Context) ([]AdminService, error) {
	var services []AdminService
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/provider-services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// CreateServiceRequest describes a new provider service entry.
type CreateServiceRequest struct {
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	ModelAPIID  string `json:"model_api_id"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
}

// CreateService registers a new provider service and returns its id.
func (c *Client) CreateService(ctx context.Context, create CreateServiceRequest) (int, error) {
	var result struct {
		ID int `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/admin/provider-services", create, &result); err != nil {
		return 0, err
	}
	return result.ID, nil
}

// UpdateService patches the given fields of a provider service.
func (c *Client) UpdateService(ctx context.Context, serviceID int, fields map[string]any) error {
	path := "/api/admin/provider-services/" + strconv.Itoa(serviceID)
	return c.doJSON(ctx, http.MethodPut, path, fields, nil)
}

// DeleteService removes a provider service entry.
func (c *Client) DeleteService(ctx context.Context, serviceID int) error {
	path := "/api/admin/provider-services/" + strconv.Itoa(serviceID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// CreateUser invites a new top-level user (role "user" or "team_admin"); the
// backend emails the invitation.
func (c *Client) CreateUser(ctx context.Context, email, fullName, role string) (*model.User, error) {
	var user model.User
	body := map[string]string{"email": email, "full_name": fullName, "role": role}
	if err := c.doJSON(ctx, http.MethodPost, "/api/admin/users", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Users lists every account on the server, pending invitations included.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUserRole changes a user's role and returns the updated record.
func (c *Client) UpdateUserRole(ctx context.Context, userID int, role string) (*model.User, error) {
	var user model.User
	path := "/api/admin/users/" + strconv.Itoa(userID) + "/role"
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]string{"role": role}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ResendInvitation re-sends the invitation email of a pending user.
func (c *Client) ResendInvitation(ctx context.Context, userID int) error {
	path := "/api/admin/users/" + strconv.Itoa(userID) + "/resend-invitation"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// TeamSubAccounts lists the sub-accounts of any team admin (admin view).
func (c *Client) TeamSubAccounts(ctx context.Context, teamAdminID int) ([]model.User, error) {
	var users []model.User
	path := "/api/admin/team/" + strconv.Itoa(teamAdminID) + "/sub_accounts"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// PublicKey fetches the server's RSA public key used to encrypt secrets in
// transit on top of TLS.
func (c *Client) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	var result struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/security/public-key", nil, &result); err != nil {
		return nil, err
	}
	return parsePublicKey([]byte(result.PublicKey))
}

func parsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block in public key response")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parsing server public key")
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("server key is %T, want RSA", key)
	}
	return rsaKey, nil
}

// UpdateProviderAPIKey encrypts apiKey with the server's public key
// (RSA-OAEP over SHA-256, matching the server's decryption) and stores it for
// the provider. The plaintext key never leaves this function.
func (c *Client) UpdateProviderAPIKey(ctx context.Context, providerID, apiKey string) error {
	publicKey, err := c.PublicKey(ctx)
	if err != nil {
		return err
	}
	encrypted, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, []byte(apiKey), nil)
	if err != nil {
		return errors.Wrap(err, "encrypting api key")
	}
	path := "/api/admin/providers/" + providerID + "/api-key"
	body := map[string]string{"encrypted_api_key": base64.StdEncoding.EncodeToString(encrypted)}
	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}
