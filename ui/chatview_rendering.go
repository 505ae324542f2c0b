package ui

import (
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"wisdar/model"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
)

func (c *ChatView) renderSidebar() string {
	var b strings.Builder

	header := TitleStyle.Render("Conversations")
	if c.filterMode {
		header = c.filterInput.View()
	}
	b.WriteString(runewidth.Truncate(header, sidebarWidth-2, "…"))
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(strings.Repeat("─", sidebarWidth-2)))
	b.WriteString("\n")

	visible := c.visibleConversations()
	for i, conv := range visible {
		marker := "  "
		if conv.Pinned {
			marker = PinStyle.Render("● ")
		}
		title := conv.Title
		if title == "" {
			title = "Untitled"
		}
		line := runewidth.Truncate(title, sidebarWidth-6, "…")

		switch {
		case c.sidebarFocused && i == c.sidebarIndex:
			line = SelectedStyle.Render("▶ " + line)
		case conv.Active:
			line = AssistantStyle.Render("  " + line)
		default:
			line = "  " + line
		}
		b.WriteString(marker + line + "\n")
	}
	if len(visible) == 0 {
		b.WriteString(DimStyle.Render("  no conversations") + "\n")
	}

	style := lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(c.height - 1).
		BorderRight(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Padding(0, 1)
	return style.Render(b.String())
}

func (c *ChatView) renderChatColumn() string {
	title := "Wisdar"
	if active, ok := c.store.ActiveConversation(); ok && active.Title != "" {
		title = active.Title
	}
	chatWidth := c.width - sidebarWidth - 1

	header := TitleStyle.Render(runewidth.Truncate(title, chatWidth-2, "…"))
	separator := DimStyle.Render(strings.Repeat("─", max(chatWidth-1, 1)))

	status := c.renderStatusBar(chatWidth)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		separator,
		c.viewport.View(),
		separator,
		c.textarea.View(),
		status,
	)
}

func (c *ChatView) renderStatusBar(width int) string {
	kb := c.cfg.Keybindings

	left := CreditsStyle.Render(fmt.Sprintf("Credits: %.2f", c.store.Credits()))
	if user := c.store.User(); user != nil {
		left = DimStyle.Render(user.Email) + "  " + left
	}
	if c.pendingAttachment != "" {
		left += "  " + SelectedStyle.Render("[attachment staged]")
	}
	if c.errText != "" {
		left += "  " + ErrorStyle.Render(c.errText)
	}

	right := HelpStyle.Render(kb.DisplayActionKey("help") + " Help")
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// refreshViewport rebuilds the message pane from the store snapshot.
func (c *ChatView) refreshViewport(gotoBottom bool) {
	active, ok := c.store.ActiveConversation()
	if !ok || len(active.Messages) == 0 {
		c.viewport.SetContent("No messages yet. Start chatting!")
		return
	}

	var content strings.Builder
	for _, msg := range active.Messages {
		content.WriteString(c.renderMessage(msg))
	}

	c.viewport.SetContent(content.String())
	if gotoBottom {
		c.viewport.GotoBottom()
	}
}

func (c *ChatView) renderMessage(msg model.Message) string {
	timestamp := DimStyle.Render(model.ParseTimestamp(msg.Timestamp).Format("[15:04]"))
	highlight := ""
	if msg.ID == c.highlightedID && c.highlightFlash%2 == 1 {
		highlight = HighlightStyle.Render(">>> ")
	}

	if msg.Role == model.RoleUser {
		body := msg.Content
		if msg.Attachment != nil {
			body += c.renderAttachmentLine(msg)
		}
		return formatUserMessage(highlight, timestamp, UserStyle.Render("You"), body)
	}

	role := AssistantStyle.Render("Assistant")
	if msg.Role == model.RoleSystem {
		role = DimStyle.Render("System")
	}

	body := c.renderAssistantBody(msg)
	return fmt.Sprintf("%s%s %s\n%s\n\n", highlight, timestamp, role, body)
}

// renderAssistantBody picks the presentation for the message's lifecycle
// stage: spinner captions while pending, raw text plus cursor while
// streaming, rendered markdown once complete.
func (c *ChatView) renderAssistantBody(msg model.Message) string {
	switch msg.Status {
	case model.StatusThinking:
		return c.spinner.View() + " Thinking..."
	case model.StatusTranscribing:
		return c.spinner.View() + " Transcribing audio..."
	case model.StatusExtractingAudio:
		return c.spinner.View() + " Extracting audio..."
	case model.StatusWaiting:
		return c.spinner.View() + " Waiting..."
	case model.StatusStreaming:
		return msg.Content + "▋"
	case model.StatusFailed, model.StatusError:
		reason := msg.JobStatus
		if reason == "" {
			reason = "request failed"
		}
		return ErrorStyle.Render("✗ " + reason)
	}

	if msg.JobStatus != "" {
		return c.spinner.View() + " " + jobCaption(msg)
	}

	body := msg.Content
	if rendered, ok := c.rendered[msg.ID]; ok {
		body = rendered
	}
	if msg.Attachment != nil {
		body += c.renderAttachmentLine(msg)
	}
	return body
}

// jobCaption describes a long-running media job from its metadata.
func jobCaption(msg model.Message) string {
	caption := strings.ReplaceAll(msg.JobStatus, "_", " ")
	if stage, ok := msg.JobMetadata["stage"].(string); ok && stage != "" {
		caption += " — " + stage
	}
	if eta, ok := msg.JobMetadata["eta"].(string); ok && eta != "" {
		caption += " (" + eta + ")"
	}
	return caption
}

func (c *ChatView) renderAttachmentLine(msg model.Message) string {
	a := msg.Attachment
	name := a.FileName
	if name == "" {
		name = a.FileURL
	}
	line := "\n" + DimStyle.Render("📎 "+name)
	if msg.Status == model.StatusUploading && msg.UploadProgress > 0 && msg.UploadProgress < 100 {
		line += DimStyle.Render(fmt.Sprintf(" %d%%", msg.UploadProgress))
	}
	if a.LocalPath != "" {
		line += DimStyle.Render(" → " + a.LocalPath)
	}
	if a.Transcription != "" {
		line += "\n" + DimStyle.Render("“"+a.Transcription+"”")
	}
	return line
}

func formatUserMessage(highlightPrefix, timestamp, role, content string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + "┃" + reset

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s%s %s %s\n", highlightPrefix, bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")
	return result.String()
}

// renderPendingMarkdown schedules async renders for completed assistant
// messages that have not been through the markdown pipeline yet.
func (c *ChatView) renderPendingMarkdown() []tea.Cmd {
	active, ok := c.store.ActiveConversation()
	if !ok {
		return nil
	}
	var cmds []tea.Cmd
	for _, msg := range active.Messages {
		if msg.Role != model.RoleAssistant || msg.Status != model.StatusComplete {
			continue
		}
		if msg.Content == "" {
			continue
		}
		if _, done := c.rendered[msg.ID]; done {
			continue
		}
		cmds = append(cmds, c.renderMarkdownCmd(active.ID, msg.ID, msg.Content))
	}
	return cmds
}

func (c ChatView) renderMarkdownCmd(conversationID, messageID model.ID, content string) tea.Cmd {
	width := c.viewport.Width
	return func() tea.Msg {
		// Strip markdown link syntax so links show as plain colorable URLs.
		content = mdLinkRegex.ReplaceAllString(content, "$2")

		ext := markdown.Extensions() &^ parser.Autolink
		p := parser.NewWithExtensions(ext)
		r := markdown.NewRenderer(max(width-4, 20), 0)
		doc := p.Parse([]byte(content))
		rendered := string(gomarkdown.Render(doc, r))

		rendered = fixInlineCode(rendered)
		rendered = colorURLs(rendered)

		return markdownRenderedMsg{
			conversationID: conversationID,
			messageID:      messageID,
			rendered:       strings.TrimRight(rendered, "\n"),
		}
	}
}

// fixInlineCode swaps the renderer's blue-background inline code for plain
// red text, which survives transparent terminals.
func fixInlineCode(s string) string {
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

// colorURLs colors plain URLs outside code blocks.
func colorURLs(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, "┃") {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}
