package ui

import (
	"strings"

	"github.com/atotto/clipboard"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"wisdar/model"
)

func (c ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	// The spinner animates any message still in flight.
	if c.anyPending() {
		c.spinner, cmd = c.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.dimensions()
		c.ready = true
		c.refreshViewport(true)
		return c, tea.Batch(cmds...)

	case storeChangedMsg:
		c.refreshViewport(true)
		return c, tea.Batch(append(cmds, c.renderPendingMarkdown()...)...)

	case bootstrapDoneMsg:
		if msg.err != nil {
			c.errText = msg.err.Error()
			c.log.Error().Err(msg.err).Msg("bootstrap failed")
		}
		c.refreshViewport(true)
		return c, tea.Batch(append(cmds, c.renderPendingMarkdown()...)...)

	case catalogLoadedMsg:
		if msg.err != nil {
			c.errText = msg.err.Error()
		}
		c.providers = msg.providers
		c.agents = msg.agents
		c.services = flattenServices(msg.providers)
		return c, tea.Batch(cmds...)

	case sendResultMsg:
		c.sending = false
		if msg.err != nil {
			c.errText = msg.err.Error()
		}
		c.refreshViewport(true)
		return c, tea.Batch(cmds...)

	case conversationSelectedMsg:
		if msg.err != nil {
			c.errText = msg.err.Error()
		}
		if c.pendingHighlight >= 0 {
			if active, ok := c.store.ActiveConversation(); ok && c.pendingHighlight < len(active.Messages) {
				c.highlightedID = active.Messages[c.pendingHighlight].ID
			}
			c.pendingHighlight = -1
		}
		c.refreshViewport(true)
		return c, tea.Batch(append(cmds, c.renderPendingMarkdown()...)...)

	case agentResultMsg:
		if msg.err != nil {
			c.errText = msg.err.Error()
		}
		c.refreshViewport(true)
		return c, tea.Batch(cmds...)

	case markdownRenderedMsg:
		c.rendered[msg.messageID] = msg.rendered
		c.refreshViewport(false)
		return c, tea.Batch(cmds...)

	case attachmentFetchedMsg:
		if msg.err != nil {
			c.errText = msg.err.Error()
			return c, tea.Batch(cmds...)
		}
		c.note = &notificationMsg{title: "Attachment saved", message: msg.path}
		c.noteSeq++
		return c, tea.Batch(append(cmds, expireNotificationCmd(c.noteSeq))...)

	case notificationMsg:
		c.note = &msg
		c.noteSeq++
		return c, tea.Batch(append(cmds, expireNotificationCmd(c.noteSeq))...)

	case notificationExpiredMsg:
		if msg.seq == c.noteSeq {
			c.note = nil
		}
		return c, tea.Batch(cmds...)

	case flashTickMsg:
		if c.highlightFlash > 0 {
			c.highlightFlash--
			c.refreshViewport(false)
			if c.highlightFlash > 0 {
				return c, tea.Batch(append(cmds, flashTickCmd())...)
			}
			c.highlightedID = ""
		}
		return c, tea.Batch(cmds...)

	case unauthorizedMsg:
		return c, tea.Quit

	case adminDataMsg, adminSavedMsg, adminTeamMsg:
		if c.admin != nil {
			cmds = append(cmds, c.admin.handleData(msg))
		}
		return c, tea.Batch(cmds...)

	case billingDataMsg, userReportMsg, teamMembersMsg, memberSavedMsg:
		if c.billing != nil {
			cmds = append(cmds, c.billing.handleData(msg))
		}
		return c, tea.Batch(cmds...)

	case tea.KeyMsg:
		return c.handleKey(msg, cmds)
	}

	// Everything else feeds the focused components.
	c.viewport, cmd = c.viewport.Update(msg)
	cmds = append(cmds, cmd)
	if c.attachPicker.Active {
		cmds = append(cmds, c.attachPicker.update(msg))
	}
	return c, tea.Batch(cmds...)
}

func (c ChatView) handleKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	kb := c.cfg.Keybindings
	keyStr := msg.String()

	// Quit is honored everywhere.
	if keyStr == kb.GetActionKey("quit") {
		c.session.Close()
		return c, tea.Quit
	}

	// Modal layers eat keys before the chat surface sees them.
	switch {
	case c.showHelp:
		if keyStr == "esc" || keyStr == kb.GetActionKey("help") {
			c.showHelp = false
		}
		return c, nil
	case c.showAbout:
		if keyStr == "esc" || keyStr == "enter" {
			c.showAbout = false
		}
		return c, nil
	case c.admin != nil:
		return c.handleAdminKey(msg, cmds)
	case c.billing != nil:
		return c.handleBillingKey(msg, cmds)
	case c.attachPicker.Active:
		return c.handlePickerKey(msg, cmds)
	case c.showModelSelector:
		return c.handleModelSelectorKey(msg)
	case c.showAgentSelector:
		return c.handleAgentSelectorKey(msg)
	case c.showSearch:
		return c.handleSearchKey(msg)
	case c.confirmDelete != nil:
		return c.handleConfirmDeleteKey(msg, cmds)
	}

	// Sidebar filter input captures typing.
	if c.filterMode {
		return c.handleFilterKey(msg)
	}

	switch keyStr {
	case kb.GetActionKey("help"):
		c.showHelp = true
		return c, nil

	case kb.GetActionKey("new_conversation"):
		c.session.StartConversation(c.currentModelID())
		c.sidebarIndex = 0
		c.refreshViewport(true)
		return c, nil

	case kb.GetActionKey("model_selector"):
		c.showModelSelector = true
		c.selectedService = c.currentServiceIndex()
		return c, nil

	case kb.GetActionKey("agent_selector"):
		c.showAgentSelector = true
		c.selectedAgent = 0
		return c, nil

	case kb.GetActionKey("admin_dashboard"):
		if user := c.store.User(); user != nil && user.IsAdmin() {
			c.admin = newAdminState(c.session.API())
			return c, c.admin.loadCmd()
		}
		c.errText = "admin dashboard requires the admin role"
		return c, nil

	case kb.GetActionKey("billing"):
		user := c.store.User()
		if user != nil && (user.IsAdmin() || user.IsTeamAdmin()) {
			c.billing = newBillingState(c.session.API())
			return c, c.billing.loadCmd()
		}
		c.errText = "billing requires a team admin role"
		return c, nil

	case kb.GetActionKey("filter_sidebar"):
		c.filterMode = true
		c.filterInput.SetValue("")
		c.filterInput.Focus()
		c.textarea.Blur()
		return c, nil

	case kb.GetActionKey("attach_file"):
		c.attachPicker.open()
		return c, c.attachPicker.init()

	case kb.GetActionKey("pin_conversation"):
		if active, ok := c.store.ActiveConversation(); ok {
			c.store.PinConversation(active.ID)
		}
		return c, nil

	case kb.GetActionKey("delete_conversation"):
		if active, ok := c.store.ActiveConversation(); ok {
			conv := active
			c.confirmDelete = &conv
		}
		return c, nil

	case kb.GetActionKey("yank_last_response"):
		if text, ok := c.lastAssistantResponse(); ok {
			if err := clipboard.WriteAll(text); err != nil {
				c.errText = "clipboard: " + err.Error()
			}
		}
		return c, nil

	case kb.GetActionKey("yank_conversation"):
		if text, ok := c.conversationTranscript(); ok {
			if err := clipboard.WriteAll(text); err != nil {
				c.errText = "clipboard: " + err.Error()
			}
		}
		return c, nil

	case kb.GetActionKey("search_messages"):
		if c.search == nil {
			c.errText = "search requires the local cache"
			return c, nil
		}
		c.showSearch = true
		c.searchInput.SetValue("")
		c.searchInput.Focus()
		c.searchResults = nil
		c.selectedMatch = 0
		c.textarea.Blur()
		return c, nil

	case kb.GetActionKey("fetch_attachment"):
		if msg, ok := c.lastAttachmentMessage(); ok {
			return c, c.fetchAttachmentCmd(msg)
		}
		c.errText = "no attachment in this conversation"
		return c, nil

	case kb.GetActionKey("scroll_down"):
		c.viewport.ScrollDown(1)
		return c, nil
	case kb.GetActionKey("scroll_up"):
		c.viewport.ScrollUp(1)
		return c, nil
	case kb.GetActionKey("half_page_down"):
		c.viewport.HalfPageDown()
		return c, nil
	case kb.GetActionKey("half_page_up"):
		c.viewport.HalfPageUp()
		return c, nil
	case kb.GetActionKey("page_down"):
		c.viewport.PageDown()
		return c, nil
	case kb.GetActionKey("page_up"):
		c.viewport.PageUp()
		return c, nil
	case kb.GetActionKey("scroll_to_top"):
		c.viewport.GotoTop()
		return c, nil
	case kb.GetActionKey("scroll_to_bottom"):
		c.viewport.GotoBottom()
		return c, nil

	case kb.GetActionKey("clear_input"):
		c.textarea.SetValue("")
		return c, nil

	case "tab":
		c.sidebarFocused = !c.sidebarFocused
		if c.sidebarFocused {
			c.textarea.Blur()
			c.sidebarIndex = c.activeConversationIndex()
		} else {
			c.textarea.Focus()
		}
		return c, nil
	}

	if c.sidebarFocused {
		return c.handleSidebarKey(msg, cmds)
	}

	if keyStr == "enter" {
		content := strings.TrimSpace(c.textarea.Value())
		if content == "" || c.sending {
			return c, nil
		}
		if _, ok := c.store.ActiveConversation(); !ok {
			c.session.StartConversation(c.currentModelID())
		}
		attachment := c.pendingAttachment
		c.pendingAttachment = ""
		c.textarea.SetValue("")
		c.sending = true
		c.errText = ""
		return c, c.sendCmd(content, attachment)
	}

	var cmd tea.Cmd
	c.textarea, cmd = c.textarea.Update(msg)
	cmds = append(cmds, cmd)
	return c, tea.Batch(cmds...)
}

func (c ChatView) handleSidebarKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	visible := c.visibleConversations()
	switch msg.String() {
	case "j", "down":
		if c.sidebarIndex < len(visible)-1 {
			c.sidebarIndex++
		}
	case "k", "up":
		if c.sidebarIndex > 0 {
			c.sidebarIndex--
		}
	case "enter":
		if c.sidebarIndex < len(visible) {
			id := visible[c.sidebarIndex].ID
			c.sidebarFocused = false
			c.textarea.Focus()
			c.filtered = nil
			return c, c.selectConversationCmd(id)
		}
	case "esc":
		c.sidebarFocused = false
		c.filtered = nil
		c.textarea.Focus()
	}
	return c, tea.Batch(cmds...)
}

func (c ChatView) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		c.filterMode = false
		c.filtered = nil
		c.textarea.Focus()
		return c, nil
	case "enter":
		c.filterMode = false
		c.sidebarFocused = true
		c.sidebarIndex = 0
		return c, nil
	}
	var cmd tea.Cmd
	c.filterInput, cmd = c.filterInput.Update(msg)
	c.filtered = filterConversations(c.store.Conversations(), c.filterInput.Value())
	return c, cmd
}

func (c ChatView) handleConfirmDeleteKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		c.store.RemoveConversation(c.confirmDelete.ID)
		c.confirmDelete = nil
		c.refreshViewport(true)
	case "n", "esc":
		c.confirmDelete = nil
	}
	return c, tea.Batch(cmds...)
}

// filterConversations fuzzy-matches titles, keeping the store's order.
func filterConversations(conversations []model.Conversation, query string) []model.Conversation {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	titles := make([]string, len(conversations))
	for i, conv := range conversations {
		titles[i] = conv.Title
	}
	matches := fuzzy.Find(query, titles)
	out := make([]model.Conversation, 0, len(matches))
	for _, m := range matches {
		out = append(out, conversations[m.Index])
	}
	return out
}

// flattenServices turns the nested provider catalog into selector rows.
func flattenServices(providers []model.Provider) []serviceChoice {
	var out []serviceChoice
	for _, p := range providers {
		for _, svc := range p.Services {
			out = append(out, serviceChoice{Provider: p.Name, Service: svc})
		}
	}
	return out
}

func (c *ChatView) anyPending() bool {
	active, ok := c.store.ActiveConversation()
	if !ok {
		return false
	}
	for _, m := range active.Messages {
		if !m.Status.Terminal() && m.Status != "" {
			return true
		}
	}
	return false
}

func (c *ChatView) activeConversationIndex() int {
	for i, conv := range c.visibleConversations() {
		if conv.Active {
			return i
		}
	}
	return 0
}

// currentModelID resolves the model for new conversations: the active
// conversation's model, else the catalog's first chat service.
func (c *ChatView) currentModelID() string {
	if active, ok := c.store.ActiveConversation(); ok && active.AIModelID != "" {
		return active.AIModelID
	}
	if len(c.services) > 0 {
		return c.services[0].Service.ModelID
	}
	return ""
}

func (c *ChatView) currentServiceIndex() int {
	current := c.currentModelID()
	for i, sc := range c.services {
		if sc.Service.ModelID == current {
			return i
		}
	}
	return 0
}

// lastAttachmentMessage returns the newest message whose attachment has not
// yet been pulled into the media cache.
func (c *ChatView) lastAttachmentMessage() (model.Message, bool) {
	active, ok := c.store.ActiveConversation()
	if !ok {
		return model.Message{}, false
	}
	for i := len(active.Messages) - 1; i >= 0; i-- {
		m := active.Messages[i]
		if m.Attachment != nil && m.Attachment.LocalPath == "" {
			return m, true
		}
	}
	return model.Message{}, false
}

func (c *ChatView) lastAssistantResponse() (string, bool) {
	active, ok := c.store.ActiveConversation()
	if !ok {
		return "", false
	}
	for i := len(active.Messages) - 1; i >= 0; i-- {
		m := active.Messages[i]
		if m.Role == model.RoleAssistant && m.Content != "" {
			return m.Content, true
		}
	}
	return "", false
}

func (c *ChatView) conversationTranscript() (string, bool) {
	active, ok := c.store.ActiveConversation()
	if !ok || len(active.Messages) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, m := range active.Messages {
		switch m.Role {
		case model.RoleUser:
			b.WriteString("You: ")
		case model.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("System: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n"), true
}
