package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wisdar/api"
	"wisdar/config"
	"wisdar/model"
)

type adminTab int

const (
	adminTabServices adminTab = iota
	adminTabCosts
	adminTabUsers
	adminTabKeys
	adminTabCount
)

var adminTabNames = [adminTabCount]string{"Services", "Costs", "Users", "API Keys"}

// AdminState is the admin dashboard: provider service management, pricing,
// user provisioning and provider API key rotation.
type AdminState struct {
	client *api.Client

	tab      adminTab
	loading  bool
	errText  string
	infoText string

	services   []api.AdminService
	serviceIdx int
	costs      []model.ServiceCost
	costIdx    int
	costEdit   bool
	costInput  textinput.Model

	// New-service form
	svcCreate   bool
	svcProvider textinput.Model
	svcService  textinput.Model
	svcModel    textinput.Model
	svcName     textinput.Model
	svcField    int

	// User list and provisioning form
	users       []model.User
	userIdx     int
	userInvite  bool
	teamOf      string
	teamMembers []model.User
	userEmail   textinput.Model
	userName    textinput.Model
	userRole    int
	userField   int

	// API key rotation form
	keyProvider textinput.Model
	keyValue    textinput.Model
	keyField    int
}

var adminRoles = []string{"user", "team_admin", "admin"}

func newAdminState(client *api.Client) *AdminState {
	costInput := textinput.New()
	costInput.Prompt = "Cost: "
	costInput.CharLimit = 16

	userEmail := textinput.New()
	userEmail.Prompt = "Email: "
	userEmail.CharLimit = 120
	userEmail.Focus()

	userName := textinput.New()
	userName.Prompt = "Full name: "
	userName.CharLimit = 120

	svcProvider := textinput.New()
	svcProvider.Prompt = "Provider id: "
	svcProvider.CharLimit = 8
	svcProvider.Focus()

	svcService := textinput.New()
	svcService.Prompt = "Service id: "
	svcService.CharLimit = 8

	svcModel := textinput.New()
	svcModel.Prompt = "Model API id: "
	svcModel.CharLimit = 64

	svcName := textinput.New()
	svcName.Prompt = "Display name: "
	svcName.CharLimit = 64

	keyProvider := textinput.New()
	keyProvider.Prompt = "Provider id: "
	keyProvider.CharLimit = 8
	keyProvider.Focus()

	keyValue := textinput.New()
	keyValue.Prompt = "API key: "
	keyValue.CharLimit = 256
	keyValue.EchoMode = textinput.EchoPassword

	return &AdminState{
		client:      client,
		loading:     true,
		costInput:   costInput,
		svcProvider: svcProvider,
		svcService:  svcService,
		svcModel:    svcModel,
		svcName:     svcName,
		userEmail:   userEmail,
		userName:    userName,
		keyProvider: keyProvider,
		keyValue:    keyValue,
	}
}

func (a *AdminState) loadCmd() tea.Cmd {
	client := a.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		services, err := client.AdminServices(ctx)
		if err != nil {
			return adminDataMsg{err: err}
		}
		costs, err := client.ServiceCosts(ctx)
		if err != nil {
			return adminDataMsg{services: services, err: err}
		}
		users, err := client.Users(ctx)
		if err != nil {
			return adminDataMsg{services: services, costs: costs, err: err}
		}
		return adminDataMsg{services: services, costs: costs, users: users}
	}
}

func (a *AdminState) handleData(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case adminDataMsg:
		a.loading = false
		if msg.err != nil {
			a.errText = msg.err.Error()
		}
		a.services = msg.services
		a.costs = msg.costs
		a.users = msg.users
		if a.serviceIdx >= len(a.services) {
			a.serviceIdx = max(0, len(a.services)-1)
		}
		if a.userIdx >= len(a.users) {
			a.userIdx = max(0, len(a.users)-1)
		}
	case adminTeamMsg:
		a.loading = false
		if msg.err != nil {
			a.errText = msg.err.Error()
			return nil
		}
		a.teamOf = msg.adminEmail
		a.teamMembers = msg.members
	case adminSavedMsg:
		if msg.err != nil {
			a.errText = msg.err.Error()
			return nil
		}
		a.errText = ""
		a.infoText = msg.action
		// Refresh so edits show server truth.
		a.loading = true
		return a.loadCmd()
	}
	return nil
}

func (c ChatView) handleAdminKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	a := c.admin
	keyStr := msg.String()

	if keyStr == "esc" && !a.costEdit && !a.svcCreate && !a.userInvite && a.teamOf == "" {
		c.admin = nil
		return c, nil
	}

	if !a.costEdit && !a.svcCreate && !a.userInvite {
		switch keyStr {
		case c.cfg.Keybindings.GetActionKey("admin_next_tab"):
			a.tab = (a.tab + 1) % adminTabCount
			a.infoText = ""
			return c, nil
		case c.cfg.Keybindings.GetActionKey("admin_prev_tab"):
			a.tab = (a.tab + adminTabCount - 1) % adminTabCount
			a.infoText = ""
			return c, nil
		}
	}

	switch a.tab {
	case adminTabServices:
		cmds = append(cmds, a.handleServicesKey(msg))
	case adminTabCosts:
		cmds = append(cmds, a.handleCostsKey(msg))
	case adminTabUsers:
		cmds = append(cmds, a.handleUsersKey(msg))
	case adminTabKeys:
		cmds = append(cmds, a.handleKeysKey(msg))
	}
	return c, tea.Batch(cmds...)
}

func (a *AdminState) handleServicesKey(msg tea.KeyMsg) tea.Cmd {
	if a.svcCreate {
		return a.handleServiceFormKey(msg)
	}

	switch msg.String() {
	case "j", "down":
		if a.serviceIdx < len(a.services)-1 {
			a.serviceIdx++
		}
	case "k", "up":
		if a.serviceIdx > 0 {
			a.serviceIdx--
		}
	case "enter", " ":
		if a.serviceIdx < len(a.services) {
			svc := a.services[a.serviceIdx]
			client := a.client
			return func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				err := client.UpdateService(ctx, svc.ID, map[string]any{"is_active": !svc.IsActive})
				return adminSavedMsg{action: "service updated", err: err}
			}
		}
	case "n":
		a.svcCreate = true
		a.svcField = 0
		a.focusServiceField()
	case "x":
		if a.serviceIdx < len(a.services) {
			svc := a.services[a.serviceIdx]
			client := a.client
			return func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				err := client.DeleteService(ctx, svc.ID)
				return adminSavedMsg{action: "service " + svc.DisplayName + " deleted", err: err}
			}
		}
	}
	return nil
}

func (a *AdminState) handleServiceFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.svcCreate = false
		return nil
	case "tab", "down":
		a.svcField = (a.svcField + 1) % 4
		a.focusServiceField()
		return nil
	case "shift+tab", "up":
		a.svcField = (a.svcField + 3) % 4
		a.focusServiceField()
		return nil
	case "enter":
		create := api.CreateServiceRequest{
			ProviderID:  strings.TrimSpace(a.svcProvider.Value()),
			ServiceID:   strings.TrimSpace(a.svcService.Value()),
			ModelAPIID:  strings.TrimSpace(a.svcModel.Value()),
			DisplayName: strings.TrimSpace(a.svcName.Value()),
			IsActive:    true,
		}
		if create.ProviderID == "" || create.ServiceID == "" || create.ModelAPIID == "" || create.DisplayName == "" {
			a.errText = "all service fields are required"
			return nil
		}
		a.svcCreate = false
		a.svcModel.SetValue("")
		a.svcName.SetValue("")
		client := a.client
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_, err := client.CreateService(ctx, create)
			return adminSavedMsg{action: "service " + create.DisplayName + " created", err: err}
		}
	}

	var cmd tea.Cmd
	switch a.svcField {
	case 0:
		a.svcProvider, cmd = a.svcProvider.Update(msg)
	case 1:
		a.svcService, cmd = a.svcService.Update(msg)
	case 2:
		a.svcModel, cmd = a.svcModel.Update(msg)
	case 3:
		a.svcName, cmd = a.svcName.Update(msg)
	}
	return cmd
}

func (a *AdminState) focusServiceField() {
	inputs := []*textinput.Model{&a.svcProvider, &a.svcService, &a.svcModel, &a.svcName}
	for i, input := range inputs {
		if i == a.svcField {
			input.Focus()
		} else {
			input.Blur()
		}
	}
}

func (a *AdminState) handleCostsKey(msg tea.KeyMsg) tea.Cmd {
	if a.costEdit {
		switch msg.String() {
		case "esc":
			a.costEdit = false
			return nil
		case "enter":
			value, err := strconv.ParseFloat(strings.TrimSpace(a.costInput.Value()), 64)
			if err != nil {
				a.errText = "cost must be a number"
				return nil
			}
			a.costEdit = false
			cost := a.costs[a.costIdx]
			client := a.client
			return func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				_, err := client.UpdateServiceCost(ctx, cost.ID, value)
				return adminSavedMsg{action: "cost saved", err: err}
			}
		}
		var cmd tea.Cmd
		a.costInput, cmd = a.costInput.Update(msg)
		return cmd
	}

	switch msg.String() {
	case "j", "down":
		if a.costIdx < len(a.costs)-1 {
			a.costIdx++
		}
	case "k", "up":
		if a.costIdx > 0 {
			a.costIdx--
		}
	case "enter":
		if a.costIdx < len(a.costs) {
			a.costEdit = true
			a.costInput.SetValue(strconv.FormatFloat(a.costs[a.costIdx].Cost, 'f', -1, 64))
			a.costInput.Focus()
		}
	}
	return nil
}

func (a *AdminState) handleUsersKey(msg tea.KeyMsg) tea.Cmd {
	if a.userInvite {
		return a.handleInviteFormKey(msg)
	}
	if a.teamOf != "" {
		if msg.String() == "esc" || msg.String() == "enter" {
			a.teamOf = ""
			a.teamMembers = nil
		}
		return nil
	}

	switch msg.String() {
	case "j", "down":
		if a.userIdx < len(a.users)-1 {
			a.userIdx++
		}
	case "k", "up":
		if a.userIdx > 0 {
			a.userIdx--
		}
	case "enter":
		if a.userIdx < len(a.users) && a.users[a.userIdx].Role == "team_admin" {
			admin := a.users[a.userIdx]
			client := a.client
			a.loading = true
			return func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				members, err := client.TeamSubAccounts(ctx, admin.ID)
				return adminTeamMsg{adminEmail: admin.Email, members: members, err: err}
			}
		}
	case "n":
		a.userInvite = true
		a.userField = 0
		a.focusUserField()
	case "r":
		if a.userIdx < len(a.users) {
			return a.cycleRoleCmd(a.users[a.userIdx])
		}
	case "i":
		if a.userIdx < len(a.users) {
			user := a.users[a.userIdx]
			if user.IsActive {
				a.errText = user.Email + " is already active"
				return nil
			}
			client := a.client
			return func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				err := client.ResendInvitation(ctx, user.ID)
				return adminSavedMsg{action: "invitation resent to " + user.Email, err: err}
			}
		}
	}
	return nil
}

// cycleRoleCmd advances the user to the next role in the user → team_admin →
// admin cycle. The server still refuses self-demotion and removing the last
// admin.
func (a *AdminState) cycleRoleCmd(user model.User) tea.Cmd {
	next := adminRoles[0]
	for i, role := range adminRoles {
		if role == user.Role {
			next = adminRoles[(i+1)%len(adminRoles)]
			break
		}
	}
	client := a.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, err := client.UpdateUserRole(ctx, user.ID, next)
		return adminSavedMsg{action: user.Email + " is now " + next, err: err}
	}
}

func (a *AdminState) handleInviteFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.userInvite = false
		return nil
	case "tab", "down":
		a.userField = (a.userField + 1) % 3
		a.focusUserField()
		return nil
	case "shift+tab", "up":
		a.userField = (a.userField + 2) % 3
		a.focusUserField()
		return nil
	case "left", "right":
		if a.userField == 2 {
			a.userRole = (a.userRole + 1) % len(adminRoles)
			return nil
		}
	case "enter":
		email := strings.TrimSpace(a.userEmail.Value())
		name := strings.TrimSpace(a.userName.Value())
		if email == "" || name == "" {
			a.errText = "email and full name are required"
			return nil
		}
		role := adminRoles[a.userRole]
		client := a.client
		a.userInvite = false
		a.userEmail.SetValue("")
		a.userName.SetValue("")
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_, err := client.CreateUser(ctx, email, name, role)
			return adminSavedMsg{action: "invitation sent to " + email, err: err}
		}
	}

	var cmd tea.Cmd
	switch a.userField {
	case 0:
		a.userEmail, cmd = a.userEmail.Update(msg)
	case 1:
		a.userName, cmd = a.userName.Update(msg)
	}
	return cmd
}

func (a *AdminState) focusUserField() {
	a.userEmail.Blur()
	a.userName.Blur()
	switch a.userField {
	case 0:
		a.userEmail.Focus()
	case 1:
		a.userName.Focus()
	}
}

func (a *AdminState) handleKeysKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down", "up", "shift+tab":
		a.keyField = (a.keyField + 1) % 2
		if a.keyField == 0 {
			a.keyProvider.Focus()
			a.keyValue.Blur()
		} else {
			a.keyProvider.Blur()
			a.keyValue.Focus()
		}
		return nil
	case "enter":
		providerID := strings.TrimSpace(a.keyProvider.Value())
		if providerID == "" {
			a.errText = "provider id is required"
			return nil
		}
		apiKey := strings.TrimSpace(a.keyValue.Value())
		if apiKey == "" {
			a.errText = "API key is required"
			return nil
		}
		client := a.client
		a.keyValue.SetValue("")
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			err := client.UpdateProviderAPIKey(ctx, providerID, apiKey)
			return adminSavedMsg{action: "API key rotated", err: err}
		}
	}

	var cmd tea.Cmd
	if a.keyField == 0 {
		a.keyProvider, cmd = a.keyProvider.Update(msg)
	} else {
		a.keyValue, cmd = a.keyValue.Update(msg)
	}
	return cmd
}

func (a *AdminState) render(width, height int, kb *config.KeyBindingsConfig) string {
	var tabs []string
	for i, name := range adminTabNames {
		style := DimStyle
		if adminTab(i) == a.tab {
			style = SelectedStyle
		}
		tabs = append(tabs, style.Render(name))
	}
	header := strings.Join(tabs, "  │  ")

	var body string
	switch {
	case a.loading:
		body = DimStyle.Render("Loading...")
	case a.tab == adminTabServices:
		body = a.renderServices()
	case a.tab == adminTabCosts:
		body = a.renderCosts()
	case a.tab == adminTabUsers:
		body = a.renderUsers()
	case a.tab == adminTabKeys:
		body = a.renderKeys()
	}

	status := ""
	if a.errText != "" {
		status = ErrorStyle.Render(a.errText)
	} else if a.infoText != "" {
		status = SelectedStyle.Render(a.infoText)
	}

	footer := FormatFooter("Tab", "Switch tab", "j/k", "Navigate", "Enter", "Edit/Apply", "Esc", "Close")

	content := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Admin Dashboard"),
		"",
		header,
		"",
		body,
		"",
		status,
		HelpStyle.Render(footer),
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2).
		Width(min(width-4, 100))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(content))
}

func (a *AdminState) renderServices() string {
	if a.svcCreate {
		return lipgloss.JoinVertical(lipgloss.Left,
			"Register a new model service:",
			"",
			a.svcProvider.View(),
			a.svcService.View(),
			a.svcModel.View(),
			a.svcName.View(),
			"",
			DimStyle.Render("Enter creates the service, Esc cancels"),
		)
	}
	if len(a.services) == 0 {
		return DimStyle.Italic(true).Render("No provider services configured") +
			"\n\n" + DimStyle.Render("n registers a new service")
	}
	var b strings.Builder
	for i, svc := range a.services {
		indicator := "  "
		if i == a.serviceIdx {
			indicator = "▶ "
		}
		state := DimStyle.Render("inactive")
		if svc.IsActive {
			state = UserStyle.Render("active")
		}
		line := fmt.Sprintf("%s%-12s %-24s %-20s %s",
			indicator, svc.ProviderName, svc.DisplayName, svc.ModelAPIID, state)
		if i == a.serviceIdx {
			line = SelectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + DimStyle.Render("Enter toggles a service, n registers one, x deletes the selection"))
	return b.String()
}

func (a *AdminState) renderCosts() string {
	if len(a.costs) == 0 {
		return DimStyle.Italic(true).Render("No service costs configured")
	}
	var b strings.Builder
	for i, cost := range a.costs {
		indicator := "  "
		if i == a.costIdx {
			indicator = "▶ "
		}
		value := fmt.Sprintf("%.4f / %s", cost.Cost, cost.Unit)
		if a.costEdit && i == a.costIdx {
			value = a.costInput.View()
		}
		line := fmt.Sprintf("%s%-32s %s", indicator, cost.ServiceKey, value)
		if i == a.costIdx && !a.costEdit {
			line = SelectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a *AdminState) renderUsers() string {
	if a.userInvite {
		role := adminRoles[a.userRole]
		roleLine := "Role: " + role
		if a.userField == 2 {
			roleLine = SelectedStyle.Render("Role: ◀ " + role + " ▶")
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			"Invite a new user:",
			"",
			a.userEmail.View(),
			a.userName.View(),
			roleLine,
			"",
			DimStyle.Render("Enter sends the invitation email, Esc cancels"),
		)
	}

	if a.teamOf != "" {
		var b strings.Builder
		b.WriteString("Sub-accounts of " + a.teamOf + ":\n\n")
		for _, member := range a.teamMembers {
			b.WriteString(fmt.Sprintf("  %-32s %-24s %s\n", member.Email, member.FullName, member.Role))
		}
		if len(a.teamMembers) == 0 {
			b.WriteString(DimStyle.Italic(true).Render("  no sub-accounts") + "\n")
		}
		b.WriteString("\n" + DimStyle.Render("Esc goes back to the user list"))
		return b.String()
	}

	if len(a.users) == 0 {
		return DimStyle.Italic(true).Render("No users yet") +
			"\n\n" + DimStyle.Render("n invites a new user")
	}
	var b strings.Builder
	for i, user := range a.users {
		indicator := "  "
		if i == a.userIdx {
			indicator = "▶ "
		}
		state := UserStyle.Render("active")
		if !user.IsActive {
			state = DimStyle.Render("pending")
		}
		line := fmt.Sprintf("%s%-32s %-24s %-10s %s",
			indicator, user.Email, user.FullName, user.Role, state)
		if i == a.userIdx {
			line = SelectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + DimStyle.Render("n invites, r cycles the role, i resends a pending invitation, Enter opens a team admin's roster"))
	return b.String()
}

func (a *AdminState) renderKeys() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		"Rotate a provider API key:",
		"",
		a.keyProvider.View(),
		a.keyValue.View(),
		"",
		DimStyle.Render("The key is encrypted with the server's public key before upload"),
	)
}
