package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PassphraseView prompts for the passphrase protecting the encrypted
// credential store. Runs standalone before the login flow.
type PassphraseView struct {
	input   textinput.Model
	title   string
	width   int
	height  int
	value   string
	aborted bool
}

func NewPassphraseView(title string) PassphraseView {
	input := textinput.New()
	input.Prompt = "Passphrase: "
	input.CharLimit = 128
	input.Width = 40
	input.EchoMode = textinput.EchoPassword
	input.Focus()
	return PassphraseView{input: input, title: title}
}

// Value returns the entered passphrase, empty when aborted.
func (v PassphraseView) Value() string {
	if v.aborted {
		return ""
	}
	return v.value
}

func (v PassphraseView) Init() tea.Cmd {
	return textinput.Blink
}

func (v PassphraseView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			v.aborted = true
			return v, tea.Quit
		case "enter":
			v.value = strings.TrimSpace(v.input.Value())
			if v.value == "" {
				return v, nil
			}
			return v, tea.Quit
		}
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v PassphraseView) View() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(v.title),
		"",
		v.input.View(),
		"",
		HelpStyle.Render(FormatFooter("Enter", "Unlock", "Esc", "Skip")),
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 3)

	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, box.Render(content))
}
