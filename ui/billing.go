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
	"wisdar/model"
)

// BillingState is the team spend view: the aggregate report, a drill-down
// into one member's transaction history (paginated server-side), and the
// sub-account roster with invite, credit-limit and removal controls.
type BillingState struct {
	client *api.Client

	loading  bool
	errText  string
	infoText string

	report  *model.TeamReport
	userIdx int

	// Drill-down
	detail     *model.UserReport
	detailUser int
	page       int

	// Sub-account roster
	showMembers bool
	members     []model.User
	memberIdx   int

	memberCreate bool
	memberEmail  textinput.Model
	memberName   textinput.Model
	memberLimit  textinput.Model
	memberField  int

	limitEdit bool
}

func newBillingState(client *api.Client) *BillingState {
	memberEmail := textinput.New()
	memberEmail.Prompt = "Email: "
	memberEmail.CharLimit = 120
	memberEmail.Focus()

	memberName := textinput.New()
	memberName.Prompt = "Full name: "
	memberName.CharLimit = 120

	memberLimit := textinput.New()
	memberLimit.Prompt = "Credit limit: "
	memberLimit.CharLimit = 16
	memberLimit.Placeholder = "blank for unlimited"

	return &BillingState{
		client:      client,
		loading:     true,
		memberEmail: memberEmail,
		memberName:  memberName,
		memberLimit: memberLimit,
	}
}

func (b *BillingState) loadCmd() tea.Cmd {
	client := b.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		report, err := client.TeamReport(ctx)
		return billingDataMsg{report: report, err: err}
	}
}

func (b *BillingState) userReportCmd(userID, page int) tea.Cmd {
	client := b.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		report, err := client.UserReport(ctx, userID, page)
		return userReportMsg{userID: userID, report: report, err: err}
	}
}

func (b *BillingState) membersCmd() tea.Cmd {
	client := b.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		members, err := client.SubAccounts(ctx)
		return teamMembersMsg{members: members, err: err}
	}
}

func (b *BillingState) handleData(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case billingDataMsg:
		b.loading = false
		if msg.err != nil {
			b.errText = msg.err.Error()
			return nil
		}
		b.report = msg.report
	case userReportMsg:
		b.loading = false
		if msg.err != nil {
			b.errText = msg.err.Error()
			return nil
		}
		b.detail = msg.report
		b.detailUser = msg.userID
	case teamMembersMsg:
		b.loading = false
		if msg.err != nil {
			b.errText = msg.err.Error()
			return nil
		}
		b.members = msg.members
		if b.memberIdx >= len(b.members) {
			b.memberIdx = max(0, len(b.members)-1)
		}
	case memberSavedMsg:
		if msg.err != nil {
			b.errText = msg.err.Error()
			return nil
		}
		b.errText = ""
		b.infoText = msg.action
		// Refresh so the roster shows server truth.
		b.loading = true
		return b.membersCmd()
	}
	return nil
}

func (c ChatView) handleBillingKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	b := c.billing
	if b.showMembers {
		return c, b.handleMembersKey(msg)
	}
	switch msg.String() {
	case "esc":
		if b.detail != nil {
			b.detail = nil
			return c, nil
		}
		c.billing = nil
		return c, nil
	case "m":
		if b.detail == nil {
			b.showMembers = true
			b.infoText = ""
			b.loading = true
			return c, b.membersCmd()
		}
		return c, nil
	case "j", "down":
		if b.report != nil && b.userIdx < len(b.report.SpendByUser)-1 {
			b.userIdx++
		}
		return c, nil
	case "k", "up":
		if b.userIdx > 0 {
			b.userIdx--
		}
		return c, nil
	case "enter":
		if b.detail == nil && b.report != nil && b.userIdx < len(b.report.SpendByUser) {
			b.page = 1
			b.loading = true
			return c, b.userReportCmd(b.report.SpendByUser[b.userIdx].UserID, 1)
		}
		return c, nil
	case "n", "right":
		if b.detail != nil && b.detail.HasNext {
			b.page++
			b.loading = true
			return c, b.userReportCmd(b.detailUser, b.page)
		}
		return c, nil
	case "p", "left":
		if b.detail != nil && b.detail.HasPrev {
			b.page--
			b.loading = true
			return c, b.userReportCmd(b.detailUser, b.page)
		}
		return c, nil
	}
	return c, tea.Batch(cmds...)
}

func (b *BillingState) handleMembersKey(msg tea.KeyMsg) tea.Cmd {
	if b.memberCreate || b.limitEdit {
		return b.handleMemberFormKey(msg)
	}

	switch msg.String() {
	case "esc":
		b.showMembers = false
		b.infoText = ""
	case "j", "down":
		if b.memberIdx < len(b.members)-1 {
			b.memberIdx++
		}
	case "k", "up":
		if b.memberIdx > 0 {
			b.memberIdx--
		}
	case "n":
		b.memberCreate = true
		b.memberField = 0
		b.memberLimit.SetValue("")
		b.focusMemberField()
	case "l":
		if b.memberIdx < len(b.members) {
			b.limitEdit = true
			member := b.members[b.memberIdx]
			if member.CreditLimit > 0 {
				b.memberLimit.SetValue(strconv.FormatFloat(member.CreditLimit, 'f', -1, 64))
			} else {
				b.memberLimit.SetValue("")
			}
			b.memberLimit.Focus()
		}
	case "x":
		if b.memberIdx < len(b.members) {
			member := b.members[b.memberIdx]
			client := b.client
			return func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				err := client.DeleteSubAccount(ctx, member.ID)
				return memberSavedMsg{action: member.Email + " removed", err: err}
			}
		}
	}
	return nil
}

func (b *BillingState) handleMemberFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		b.memberCreate = false
		b.limitEdit = false
		return nil
	case "tab", "down":
		if b.memberCreate {
			b.memberField = (b.memberField + 1) % 3
			b.focusMemberField()
		}
		return nil
	case "shift+tab", "up":
		if b.memberCreate {
			b.memberField = (b.memberField + 2) % 3
			b.focusMemberField()
		}
		return nil
	case "enter":
		limit, ok := b.parseLimit()
		if !ok {
			b.errText = "credit limit must be a number"
			return nil
		}
		if b.limitEdit {
			b.limitEdit = false
			member := b.members[b.memberIdx]
			client := b.client
			return func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				_, err := client.UpdateSubAccount(ctx, member.ID, api.SubAccountRequest{CreditLimit: limit})
				return memberSavedMsg{action: member.Email + " limit updated", err: err}
			}
		}
		email := strings.TrimSpace(b.memberEmail.Value())
		name := strings.TrimSpace(b.memberName.Value())
		if email == "" || name == "" {
			b.errText = "email and full name are required"
			return nil
		}
		b.memberCreate = false
		b.memberEmail.SetValue("")
		b.memberName.SetValue("")
		client := b.client
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			create := api.SubAccountRequest{Email: email, FullName: name, CreditLimit: limit}
			_, err := client.CreateSubAccount(ctx, create)
			return memberSavedMsg{action: "invitation sent to " + email, err: err}
		}
	}

	var cmd tea.Cmd
	switch {
	case b.limitEdit:
		b.memberLimit, cmd = b.memberLimit.Update(msg)
	case b.memberField == 0:
		b.memberEmail, cmd = b.memberEmail.Update(msg)
	case b.memberField == 1:
		b.memberName, cmd = b.memberName.Update(msg)
	case b.memberField == 2:
		b.memberLimit, cmd = b.memberLimit.Update(msg)
	}
	return cmd
}

// parseLimit reads the limit input; blank means unlimited (nil).
func (b *BillingState) parseLimit() (*float64, bool) {
	raw := strings.TrimSpace(b.memberLimit.Value())
	if raw == "" {
		return nil, true
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return nil, false
	}
	return &value, true
}

func (b *BillingState) focusMemberField() {
	inputs := []*textinput.Model{&b.memberEmail, &b.memberName, &b.memberLimit}
	for i, input := range inputs {
		if i == b.memberField {
			input.Focus()
		} else {
			input.Blur()
		}
	}
}

func (b *BillingState) render(width, height int) string {
	var body string
	switch {
	case b.loading:
		body = DimStyle.Render("Loading...")
	case b.showMembers:
		body = b.renderMembers()
	case b.detail != nil:
		body = b.renderDetail()
	case b.report != nil:
		body = b.renderReport()
	default:
		body = DimStyle.Italic(true).Render("No report available")
	}

	status := ""
	if b.errText != "" {
		status = ErrorStyle.Render(b.errText)
	} else if b.infoText != "" {
		status = SelectedStyle.Render(b.infoText)
	}

	footer := FormatFooter("j/k", "Navigate", "Enter", "Member detail", "m", "Members", "n/p", "Page", "Esc", "Back")
	if b.showMembers {
		footer = FormatFooter("j/k", "Navigate", "n", "Invite", "l", "Limit", "x", "Remove", "Esc", "Back")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Billing & Reports"),
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

func (b *BillingState) renderReport() string {
	var sb strings.Builder
	sb.WriteString(CreditsStyle.Render(fmt.Sprintf("Total spend: %.2f credits", b.report.TotalSpend)) + "\n\n")

	sb.WriteString(TitleStyle.Render("By member") + "\n")
	for i, spend := range b.report.SpendByUser {
		indicator := "  "
		if i == b.userIdx {
			indicator = "▶ "
		}
		line := fmt.Sprintf("%s%-40s %10.2f", indicator, spend.Email, spend.Total)
		if i == b.userIdx {
			line = SelectedStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	if len(b.report.SpendByUser) == 0 {
		sb.WriteString(DimStyle.Render("  no member spend yet") + "\n")
	}

	sb.WriteString("\n" + TitleStyle.Render("By service") + "\n")
	for _, spend := range b.report.SpendByService {
		sb.WriteString(fmt.Sprintf("  %-40s %10.2f\n", spend.Service, spend.Total))
	}
	if len(b.report.SpendByService) == 0 {
		sb.WriteString(DimStyle.Render("  no service spend yet") + "\n")
	}

	return sb.String()
}

func (b *BillingState) renderMembers() string {
	if b.memberCreate {
		return lipgloss.JoinVertical(lipgloss.Left,
			"Invite a sub-account:",
			"",
			b.memberEmail.View(),
			b.memberName.View(),
			b.memberLimit.View(),
			"",
			DimStyle.Render("Enter sends the invitation, Esc cancels"),
		)
	}
	if b.limitEdit && b.memberIdx < len(b.members) {
		return lipgloss.JoinVertical(lipgloss.Left,
			"Credit limit for "+b.members[b.memberIdx].Email+":",
			"",
			b.memberLimit.View(),
			"",
			DimStyle.Render("Enter saves, blank means unlimited, Esc cancels"),
		)
	}

	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Team members") + "\n\n")
	for i, member := range b.members {
		indicator := "  "
		if i == b.memberIdx {
			indicator = "▶ "
		}
		limit := "unlimited"
		if member.CreditLimit > 0 {
			limit = fmt.Sprintf("%.2f", member.CreditLimit)
		}
		state := ""
		if !member.IsActive {
			state = DimStyle.Render(" (pending)")
		}
		line := fmt.Sprintf("%s%-32s %-24s limit %s%s",
			indicator, member.Email, member.FullName, limit, state)
		if i == b.memberIdx {
			line = SelectedStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	if len(b.members) == 0 {
		sb.WriteString(DimStyle.Italic(true).Render("No sub-accounts yet") + "\n")
	}
	return sb.String()
}

func (b *BillingState) renderDetail() string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Member transactions") + "\n\n")

	for _, tx := range b.detail.Transactions {
		when := model.ParseTimestamp(tx.TransactionTime).Format("2006-01-02 15:04")
		service := tx.ServiceName
		if tx.ModelName != "" {
			service += " / " + tx.ModelName
		}
		sb.WriteString(fmt.Sprintf("  %s  %-32s %10.4f\n", DimStyle.Render(when), service, tx.CostDeducted))
	}
	if len(b.detail.Transactions) == 0 {
		sb.WriteString(DimStyle.Render("  no transactions on this page") + "\n")
	}

	sb.WriteString("\n" + DimStyle.Render(fmt.Sprintf("Page %d of %d", b.detail.CurrentPage, b.detail.TotalPages)))
	return sb.String()
}
