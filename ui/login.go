package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wisdar/model"
	"wisdar/session"
)

// LoginView collects credentials and authenticates against the backend. It
// quits the program when authentication succeeds; main then starts the chat.
type LoginView struct {
	session *session.Session

	emailInput    textinput.Model
	passwordInput textinput.Model
	focusedField  int
	rememberMe    bool

	width   int
	height  int
	loading bool
	errText string

	user     *model.User
	password string
}

func NewLoginView(s *session.Session, email string, rememberMe bool) LoginView {
	emailInput := textinput.New()
	emailInput.Prompt = "Email: "
	emailInput.CharLimit = 120
	emailInput.Width = 40
	emailInput.SetValue(email)

	passwordInput := textinput.New()
	passwordInput.Prompt = "Password: "
	passwordInput.CharLimit = 120
	passwordInput.Width = 40
	passwordInput.EchoMode = textinput.EchoPassword

	v := LoginView{
		session:       s,
		emailInput:    emailInput,
		passwordInput: passwordInput,
		rememberMe:    rememberMe,
	}
	if email != "" {
		v.focusedField = 1
		v.passwordInput.Focus()
	} else {
		v.emailInput.Focus()
	}
	return v
}

// Authenticated reports the logged-in user, or nil if the view was dismissed.
func (v LoginView) Authenticated() *model.User {
	return v.user
}

// Password returns the accepted password so main can persist credentials
// when remember-me is on.
func (v LoginView) Password() string {
	return v.password
}

// RememberMe reports whether credentials should be stored.
func (v LoginView) RememberMe() bool {
	return v.rememberMe
}

func (v LoginView) Init() tea.Cmd {
	return textinput.Blink
}

func (v LoginView) loginCmd(email, password string) tea.Cmd {
	s := v.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		user, err := s.Login(ctx, email, password)
		return loginResultMsg{user: user, err: err}
	}
}

func (v LoginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case loginResultMsg:
		v.loading = false
		if msg.err != nil {
			v.errText = msg.err.Error()
			v.passwordInput.SetValue("")
			return v, nil
		}
		v.user = msg.user
		v.password = strings.TrimSpace(v.passwordInput.Value())
		return v, tea.Quit

	case tea.KeyMsg:
		if v.loading {
			return v, nil
		}
		switch msg.String() {
		case "ctrl+c", "esc":
			return v, tea.Quit
		case "tab", "down":
			v.cycleFocus(1)
			return v, nil
		case "shift+tab", "up":
			v.cycleFocus(-1)
			return v, nil
		case " ":
			if v.focusedField == 2 {
				v.rememberMe = !v.rememberMe
				return v, nil
			}
		case "enter":
			if v.focusedField == 2 {
				v.rememberMe = !v.rememberMe
				return v, nil
			}
			email := strings.TrimSpace(v.emailInput.Value())
			password := v.passwordInput.Value()
			if email == "" || password == "" {
				v.errText = "email and password are required"
				return v, nil
			}
			v.loading = true
			v.errText = ""
			return v, v.loginCmd(email, password)
		}
	}

	var cmd tea.Cmd
	switch v.focusedField {
	case 0:
		v.emailInput, cmd = v.emailInput.Update(msg)
	case 1:
		v.passwordInput, cmd = v.passwordInput.Update(msg)
	}
	return v, cmd
}

func (v *LoginView) cycleFocus(delta int) {
	v.focusedField = (v.focusedField + delta + 3) % 3
	v.emailInput.Blur()
	v.passwordInput.Blur()
	switch v.focusedField {
	case 0:
		v.emailInput.Focus()
	case 1:
		v.passwordInput.Focus()
	}
}

func (v LoginView) View() string {
	title := lipgloss.NewStyle().
		Foreground(successColor).
		Bold(true).
		Render("Sign in to Wisdar")

	remember := "[ ] Remember me"
	if v.rememberMe {
		remember = "[x] Remember me"
	}
	if v.focusedField == 2 {
		remember = SelectedStyle.Render(remember)
	}

	status := ""
	if v.loading {
		status = DimStyle.Render("Signing in...")
	} else if v.errText != "" {
		status = ErrorStyle.Render(v.errText)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		v.emailInput.View(),
		v.passwordInput.View(),
		"",
		remember,
		"",
		status,
		"",
		HelpStyle.Render(FormatFooter("Tab", "Next field", "Enter", "Sign in", "Esc", "Quit")),
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 3)

	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, box.Render(content))
}
