package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"wisdar/config"
	"wisdar/model"
	"wisdar/session"
	"wisdar/storage"
	"wisdar/store"
)

const sidebarWidth = 30

// serviceChoice is one selectable row in the model selector: a provider's
// service flattened out of the nested catalog.
type serviceChoice struct {
	Provider string
	Service  model.ProviderService
}

type ChatView struct {
	session *session.Session
	store   *store.Store
	cfg     *config.Config
	search  *storage.SearchIndex
	log     zerolog.Logger

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// Sidebar state
	sidebarFocused bool
	sidebarIndex   int
	filterMode     bool
	filterInput    textinput.Model
	filtered       []model.Conversation

	// Catalog for the selectors
	providers []model.Provider
	agents    []model.Agent
	services  []serviceChoice

	// Model selector
	showModelSelector bool
	selectedService   int
	serviceFilterMode bool
	serviceFilter     textinput.Model
	filteredServices  []serviceChoice

	// Agent selector
	showAgentSelector bool
	selectedAgent     int

	// Message search
	showSearch       bool
	searchInput      textinput.Model
	searchResults    []storage.MessageMatch
	selectedMatch    int
	highlightedID    model.ID
	highlightFlash   int
	pendingHighlight int

	// Attachment staged for the next send
	pendingAttachment string
	attachPicker      FilePickerState

	// Modals and sub-views
	showHelp      bool
	showAbout     bool
	confirmDelete *model.Conversation
	admin         *AdminState
	billing       *BillingState

	// Transient notification banner
	note    *notificationMsg
	noteSeq int

	// Rendered markdown per message id
	rendered map[model.ID]string

	sending bool
	errText string
}

func NewChatView(s *session.Session, st *store.Store, cfg *config.Config, search *storage.SearchIndex, log zerolog.Logger) ChatView {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	filterInput := textinput.New()
	filterInput.Prompt = "Filter: "
	filterInput.CharLimit = 64

	serviceFilter := textinput.New()
	serviceFilter.Prompt = "Filter: "
	serviceFilter.CharLimit = 64

	searchInput := textinput.New()
	searchInput.Prompt = "Search: "
	searchInput.CharLimit = 100

	return ChatView{
		session:          s,
		store:            st,
		cfg:              cfg,
		search:           search,
		log:              log,
		viewport:         viewport.New(0, 0),
		textarea:         ta,
		spinner:          sp,
		filterInput:      filterInput,
		serviceFilter:    serviceFilter,
		searchInput:      searchInput,
		attachPicker:     NewFilePickerState("Attach File"),
		rendered:         map[model.ID]string{},
		pendingHighlight: -1,
	}
}

func (c ChatView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		c.spinner.Tick,
		c.bootstrapCmd(),
		c.loadCatalogCmd(),
	)
}

func (c ChatView) View() string {
	if !c.ready {
		return "Connecting to Wisdar..."
	}

	// Modal layers, innermost screen last.
	switch {
	case c.showHelp:
		return c.renderHelp(c.width, c.height)
	case c.showAbout:
		return renderAbout(c.width, c.height)
	case c.admin != nil:
		return c.admin.render(c.width, c.height, c.cfg.Keybindings)
	case c.billing != nil:
		return c.billing.render(c.width, c.height)
	case c.attachPicker.Active:
		return c.attachPicker.render(c.width, c.height)
	case c.showModelSelector:
		return c.renderModelSelector()
	case c.showAgentSelector:
		return c.renderAgentSelector()
	case c.showSearch:
		return c.renderSearch()
	case c.confirmDelete != nil:
		return renderConfirmation(c.width, c.height,
			"Delete Conversation",
			"Delete \""+c.confirmDelete.Title+"\"? This cannot be undone.")
	}

	sidebar := c.renderSidebar()
	chat := c.renderChatColumn()
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, chat)

	if c.note != nil {
		banner := SelectedStyle.Render(c.note.title) + " " + c.note.message
		return banner + "\n" + body
	}
	return body
}

// dimensions recomputes pane sizes after a resize.
func (c *ChatView) dimensions() {
	chatWidth := c.width - sidebarWidth - 1
	if chatWidth < 20 {
		chatWidth = 20
	}
	// Title, separator, textarea and status bar share the column.
	c.viewport.Width = chatWidth
	c.viewport.Height = c.height - 7
	c.textarea.SetWidth(chatWidth)
}

// visibleConversations applies the sidebar filter. The filtered list
// survives leaving filter mode so it can be browsed; it is cleared on
// selection or escape.
func (c *ChatView) visibleConversations() []model.Conversation {
	if c.filtered != nil {
		return c.filtered
	}
	return c.store.Conversations()
}
