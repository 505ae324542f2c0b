package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (c ChatView) renderHelp(width, height int) string {
	kb := c.cfg.Keybindings

	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	title := green.Render("Wisdar - Keyboard Shortcuts")

	blue := lipgloss.NewStyle().Foreground(accentColor)

	globalActions := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Global Actions"),
		fmt.Sprintf("• %-13s New conversation", kb.DisplayActionKey("new_conversation")),
		fmt.Sprintf("• %-13s Model selector", kb.DisplayActionKey("model_selector")),
		fmt.Sprintf("• %-13s Run agent", kb.DisplayActionKey("agent_selector")),
		fmt.Sprintf("• %-13s Filter sidebar", kb.DisplayActionKey("filter_sidebar")),
		fmt.Sprintf("• %-13s Attach file", kb.DisplayActionKey("attach_file")),
		fmt.Sprintf("• %-13s Search messages", kb.DisplayActionKey("search_messages")),
		fmt.Sprintf("• %-13s Admin dashboard", kb.DisplayActionKey("admin_dashboard")),
		fmt.Sprintf("• %-13s Billing & reports", kb.DisplayActionKey("billing")),
		fmt.Sprintf("• %-13s Toggle this help", kb.DisplayActionKey("help")),
		fmt.Sprintf("• %-13s Quit", kb.DisplayActionKey("quit")),
	)

	chatNavigation := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Chat Navigation"),
		fmt.Sprintf("• %-13s Scroll down 1 line", kb.DisplayActionKey("scroll_down")),
		fmt.Sprintf("• %-13s Scroll up 1 line", kb.DisplayActionKey("scroll_up")),
		fmt.Sprintf("• %-13s Half page down", kb.DisplayActionKey("half_page_down")),
		fmt.Sprintf("• %-13s Half page up", kb.DisplayActionKey("half_page_up")),
		fmt.Sprintf("• %-13s Jump to top", kb.DisplayActionKey("scroll_to_top")),
		fmt.Sprintf("• %-13s Jump to bottom", kb.DisplayActionKey("scroll_to_bottom")),
		"• Tab           Focus sidebar",
		"• j/k, Enter    Navigate, open (sidebar)",
	)

	chatActions := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Conversation Actions"),
		"• Enter         Send message",
		"• Alt+Enter     Insert newline",
		fmt.Sprintf("• %-13s Copy last response", kb.DisplayActionKey("yank_last_response")),
		fmt.Sprintf("• %-13s Copy conversation", kb.DisplayActionKey("yank_conversation")),
		fmt.Sprintf("• %-13s Pin conversation", kb.DisplayActionKey("pin_conversation")),
		fmt.Sprintf("• %-13s Delete conversation", kb.DisplayActionKey("delete_conversation")),
		fmt.Sprintf("• %-13s Save attachment", kb.DisplayActionKey("fetch_attachment")),
		fmt.Sprintf("• %-13s Clear input", kb.DisplayActionKey("clear_input")),
	)

	column1 := lipgloss.JoinVertical(lipgloss.Left, globalActions)
	column2 := lipgloss.JoinVertical(
		lipgloss.Left,
		chatNavigation,
		"",
		chatActions,
	)

	columnStyle := lipgloss.NewStyle().Width(42).PaddingLeft(8)

	twoColumns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(column1),
		"    ",
		columnStyle.Render(column2),
	)

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Render(fmt.Sprintf("      Press %s or Esc to close this help", kb.DisplayActionKey("help")))

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		twoColumns,
		"",
		footer,
	)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2).
		Width(100)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox.Render(content),
	)
}
