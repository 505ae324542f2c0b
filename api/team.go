package api

import (
	"context"
	"net/http"
	"strconv"

	"wisdar/model"
)

// Team endpoints, available to team admins for their own sub-accounts.

// SubAccounts lists the caller's sub-accounts.
func (c *Client) SubAccounts(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/team/sub_accounts", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SubAccountRequest describes a sub-account to create or update. A nil
// CreditLimit means unlimited; a nil AllowedServiceIDs leaves permissions
// untouched on update (send an empty slice to revoke all).
type SubAccountRequest struct {
	Email             string   `json:"email,omitempty"`
	FullName          string   `json:"full_name,omitempty"`
	CreditLimit       *float64 `json:"credit_limit"`
	AllowedServiceIDs []int    `json:"allowed_service_ids,omitempty"`
}

// CreateSubAccount invites a new sub-account under the caller's team.
func (c *Client) CreateSubAccount(ctx context.Context, create SubAccountRequest) (*model.User, error) {
	var user model.User
	if err := c.doJSON(ctx, http.MethodPost, "/api/team/sub_accounts", create, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateSubAccount changes a sub-account's details or permissions.
func (c *Client) UpdateSubAccount(ctx context.Context, userID int, update SubAccountRequest) (*model.User, error) {
	var user model.User
	path := "/api/team/sub_accounts/" + strconv.Itoa(userID)
	if err := c.doJSON(ctx, http.MethodPut, path, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteSubAccount removes a sub-account.
func (c *Client) DeleteSubAccount(ctx context.Context, userID int) error {
	path := "/api/team/sub_accounts/" + strconv.Itoa(userID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// TeamReport returns aggregate spend for the caller's whole team.
func (c *Client) TeamReport(ctx context.Context) (*model.TeamReport, error) {
	var report model.TeamReport
	if err := c.doJSON(ctx, http.MethodGet, "/api/team/report/general", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// UserReport returns one page of a user's credit transactions, newest first.
func (c *Client) UserReport(ctx context.Context, userID, page int) (*model.UserReport, error) {
	var report model.UserReport
	path := "/api/team/report/user/" + strconv.Itoa(userID) + "?page=" + strconv.Itoa(page)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
