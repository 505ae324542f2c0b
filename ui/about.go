package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	Version = "v0.1.0"
	License = "Apache-2.0"
)

var features = []string{
	"Multi-provider AI chat from the terminal",
	"Live streamed responses with reconnect",
	"Voice note transcription and TTS playback",
	"Image and video generation jobs",
	"Team accounts, credit tracking and reports",
}

func renderAbout(width, height int) string {
	var sb strings.Builder

	titleStyle := lipgloss.NewStyle().
		Foreground(successColor).
		Bold(true).
		Align(lipgloss.Center)

	sb.WriteString(titleStyle.Render("W I S D A R"))
	sb.WriteString("\n\n\n")

	featureStyle := lipgloss.NewStyle().Foreground(dimColor)
	for _, feature := range features {
		sb.WriteString(featureStyle.Render("• " + feature))
		sb.WriteString("\n")
	}
	sb.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().
		Foreground(accentColor).
		Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(dimColor)

	sb.WriteString(labelStyle.Render("Version: "))
	sb.WriteString(valueStyle.Render(Version))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("License: "))
	sb.WriteString(valueStyle.Render(License))
	sb.WriteString("\n\n")

	sb.WriteString(featureStyle.Render("Press Esc to close"))
	sb.WriteString("\n")

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(sb.String()))
}
