package model

// User mirrors the backend's user representation. Credits are tracked as a
// float because partial deductions occur per token.
type User struct {
	ID          int     `json:"id"`
	FullName    string  `json:"full_name"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	Credits     float64 `json:"credits"`
	IsActive    bool    `json:"is_active"`
	ParentID    *int    `json:"parent_id"`
	CreditLimit float64 `json:"credit_limit"`
	TTSVoice    string  `json:"tts_voice,omitempty"`

	AssignedServices []ProviderService `json:"assigned_services,omitempty"`
}

// IsAdmin reports whether the user may open the admin dashboard.
func (u User) IsAdmin() bool { return u.Role == "admin" }

// IsTeamAdmin reports whether the user manages sub-accounts.
func (u User) IsTeamAdmin() bool { return u.Role == "team_admin" || u.Role == "admin" }

// Provider is a backend AI vendor with its active services.
type Provider struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Services []ProviderService `json:"services"`
}

// ProviderService is one capability a provider offers (chat, image, audio...),
// keyed by a unique numeric id. ServiceID is the generic service type shared
// across providers.
type ProviderService struct {
	ProviderServiceID int             `json:"providerServiceId"`
	ServiceID         string          `json:"id"`
	Name              string          `json:"name"`
	ModelID           string          `json:"modelId"`
	Description       string          `json:"description,omitempty"`
	Capabilities      map[string]bool `json:"capabilities,omitempty"`
}

// ServiceCost is an admin-configurable price entry.
type ServiceCost struct {
	ID          int     `json:"id"`
	ServiceKey  string  `json:"service_key"`
	DisplayName string  `json:"display_name"`
	Description string  `json:"description,omitempty"`
	Cost        float64 `json:"cost"`
	Unit        string  `json:"unit"`
}

// CreditTransaction is one billing ledger entry.
type CreditTransaction struct {
	ID              int     `json:"id"`
	UserID          int     `json:"user_id"`
	UserEmail       string  `json:"user_email,omitempty"`
	ServiceName     string  `json:"service_name"`
	ModelName       string  `json:"model_name"`
	CostDeducted    float64 `json:"cost_deducted"`
	TransactionTime string  `json:"transaction_time"`
}

// Agent is a pre-configured assistant persona executed server-side.
type Agent struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	SystemPrompt      string `json:"system_prompt,omitempty"`
	IconName          string `json:"icon_name,omitempty"`
	ProviderServiceID int    `json:"provider_service_id"`
}

// TeamReport aggregates team spend by user and by service.
type TeamReport struct {
	TotalSpend     float64        `json:"total_spend"`
	SpendByUser    []UserSpend    `json:"spend_by_user"`
	SpendByService []ServiceSpend `json:"spend_by_service"`
}

// UserSpend is one row of a team report.
type UserSpend struct {
	UserID int     `json:"user_id"`
	Email  string  `json:"email"`
	Total  float64 `json:"total"`
}

// ServiceSpend is one row of a team report.
type ServiceSpend struct {
	Service string  `json:"service"`
	Total   float64 `json:"total"`
}

// UserReport is a paginated transaction listing for one user.
type UserReport struct {
	Transactions []CreditTransaction `json:"transactions"`
	TotalPages   int                 `json:"total_pages"`
	CurrentPage  int                 `json:"current_page"`
	HasNext      bool                `json:"has_next"`
	HasPrev      bool                `json:"has_prev"`
}
