package cmd

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/billm/pezbus/pkg/ipc"
	"github.com/billm/pezbus/pkg/types"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// renderDump formats per-identity counters and router totals
func renderDump(stats []types.SlotStats, rs ipc.RouterStats) string {
	rows := make([][]string, 0, len(stats))
	for i, s := range stats {
		rows = append(rows, []string{
			strconv.Itoa(i),
			s.Name,
			strconv.FormatUint(s.LocalSent, 10),
			strconv.FormatUint(s.LocalReceived, 10),
			strconv.FormatUint(s.RouterSent, 10),
			strconv.FormatUint(s.RouterReceived, 10),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("slot", "name", "sent", "received", "router sent", "router received").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 2:
				return numberStyle
			default:
				return cellStyle
			}
		})

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Bus counters"))
	sb.WriteString("\n")
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(rs.String()))
	sb.WriteString("\n")
	return sb.String()
}
