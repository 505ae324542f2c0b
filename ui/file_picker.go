package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wisdar/config"
)

// FilePickerState wraps the bubbles file picker for staging an attachment on
// the next send. Audio, image and video types mirror what the backend's
// transcription and vision pipelines accept.
type FilePickerState struct {
	Active bool
	Picker filepicker.Model
	title  string
}

var attachmentTypes = []string{
	".mp3", ".wav", ".m4a", ".ogg", ".webm", ".flac",
	".png", ".jpg", ".jpeg", ".gif",
	".mp4", ".mov", ".mkv",
	".pdf", ".txt", ".md",
}

func NewFilePickerState(title string) FilePickerState {
	fp := filepicker.New()
	fp.AllowedTypes = attachmentTypes
	fp.Height = 12
	fp.DirAllowed = true
	fp.FileAllowed = true
	fp.ShowPermissions = false
	fp.ShowSize = true
	fp.CurrentDirectory = config.GetHomeDir()

	fp.Styles.Directory = lipgloss.NewStyle().
		Foreground(accentColor).
		Bold(true)
	fp.Styles.File = lipgloss.NewStyle().
		Foreground(lipgloss.Color("15"))
	fp.Styles.Selected = lipgloss.NewStyle().
		Foreground(successColor).
		Bold(true)
	fp.Styles.Cursor = lipgloss.NewStyle().
		Foreground(successColor)

	return FilePickerState{Picker: fp, title: title}
}

func (fps *FilePickerState) open() {
	fps.Active = true
}

func (fps *FilePickerState) init() tea.Cmd {
	return fps.Picker.Init()
}

func (fps *FilePickerState) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	fps.Picker, cmd = fps.Picker.Update(msg)
	return cmd
}

// handlePickerKey routes keys into the picker and stages the chosen file.
func (c ChatView) handlePickerKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		c.attachPicker.Active = false
		return c, nil
	}

	var cmd tea.Cmd
	c.attachPicker.Picker, cmd = c.attachPicker.Picker.Update(msg)
	cmds = append(cmds, cmd)

	if ok, path := c.attachPicker.Picker.DidSelectFile(msg); ok {
		c.pendingAttachment = path
		c.attachPicker.Active = false
	}
	return c, tea.Batch(cmds...)
}

func (fps *FilePickerState) render(width, height int) string {
	if width < 20 || height < 10 {
		return "Terminal too small"
	}

	modalWidth := width - 10
	if modalWidth > 80 {
		modalWidth = 80
	}

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render(fps.title)

	dirSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(fps.Picker.CurrentDirectory)

	body := lipgloss.NewStyle().
		Width(modalWidth).
		Render(fps.Picker.View())

	footerSection := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(FormatFooter("j/k", "Navigate", "Enter", "Attach", "Esc", "Cancel"))

	content := strings.Join([]string{titleSection, dirSection, body, footerSection}, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
