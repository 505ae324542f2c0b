package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"wisdar/api"
	"wisdar/model"
)

// StoreChanged builds the message posted when the store notifies observers.
func StoreChanged() tea.Msg { return storeChangedMsg{} }

// Unauthorized builds the message posted when the backend rejects the token.
func Unauthorized() tea.Msg { return unauthorizedMsg{} }

// Notification builds a transient banner message.
func Notification(title, message string) tea.Msg {
	return notificationMsg{title: title, message: message}
}

// storeChangedMsg is posted into the program whenever the conversation store
// notifies its observers; the view re-reads the store snapshot on receipt.
type storeChangedMsg struct{}

// bootstrapDoneMsg reports the initial conversation load.
type bootstrapDoneMsg struct {
	err error
}

// sendResultMsg reports an optimistic send settling (synced or rolled back).
type sendResultMsg struct {
	err error
}

// conversationSelectedMsg reports a sidebar selection's message fetch.
type conversationSelectedMsg struct {
	id  model.ID
	err error
}

// catalogLoadedMsg carries the provider/service and agent catalogs used by
// the model and agent selectors.
type catalogLoadedMsg struct {
	providers []model.Provider
	agents    []model.Agent
	err       error
}

// agentResultMsg reports an agent execution request settling.
type agentResultMsg struct {
	err error
}

// markdownRenderedMsg carries an async markdown render back to the viewport.
type markdownRenderedMsg struct {
	conversationID model.ID
	messageID      model.ID
	rendered       string
}

// attachmentFetchedMsg reports a media download into the local cache.
type attachmentFetchedMsg struct {
	messageID model.ID
	path      string
	err       error
}

// notificationMsg is a transient banner raised by the push stream.
type notificationMsg struct {
	title   string
	message string
}

// notificationExpiredMsg clears the banner after its display window.
type notificationExpiredMsg struct {
	seq int
}

// flashTickMsg drives the search-result highlight flash.
type flashTickMsg struct{}

// unauthorizedMsg is posted when any API call comes back 401; the program
// drops to the login view.
type unauthorizedMsg struct{}

// adminDataMsg carries the admin dashboard's tab payloads.
type adminDataMsg struct {
	services []api.AdminService
	costs    []model.ServiceCost
	users    []model.User
	err      error
}

// adminSavedMsg reports an admin mutation (cost update, key rotation, user
// creation) settling.
type adminSavedMsg struct {
	action string
	err    error
}

// billingDataMsg carries the team spend report.
type billingDataMsg struct {
	report *model.TeamReport
	err    error
}

// adminTeamMsg carries one team admin's sub-accounts for the admin drill-down.
type adminTeamMsg struct {
	adminEmail string
	members    []model.User
	err        error
}

// teamMembersMsg carries the team admin's sub-account list.
type teamMembersMsg struct {
	members []model.User
	err     error
}

// memberSavedMsg reports a sub-account mutation (create, limit change,
// removal) settling.
type memberSavedMsg struct {
	action string
	err    error
}

// userReportMsg carries one page of a sub-account's transaction history.
type userReportMsg struct {
	userID int
	report *model.UserReport
	err    error
}

// loginResultMsg reports an authentication attempt.
type loginResultMsg struct {
	user *model.User
	err  error
}
