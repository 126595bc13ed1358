package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/lookout/internal/sportarr"
	"github.com/five82/lookout/internal/tasks"
)

const (
	statusColWidth   = 12
	dateColWidth     = 10
	downloadColWidth = 18
	queuedColWidth   = 16
	minTitleWidth    = 12
)

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "loading…"
	}
	styles := m.theme.Styles()

	sections := []string{m.renderHeader(styles)}
	if m.filtering || m.filter.Value() != "" {
		sections = append(sections, styles.Filter.Width(m.width).Render(m.filter.View()))
	}
	sections = append(sections, m.renderTable(styles), m.renderFooter(styles))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(styles Styles) string {
	sep := "  "
	parts := []string{styles.Logo.Render("lookout")}

	snap := m.snapshot
	switch {
	case snap.IsOffline():
		parts = append(parts,
			styles.DangerText.Render("SPORTARR "+classifyError(snap.LastError())),
			styles.WarningText.Render("retrying…"))
	case !snap.SearchFeed.HasData:
		parts = append(parts, styles.WarningText.Render("connecting…"))
	default:
		parts = append(parts,
			styles.AccentText.Render(fmt.Sprintf("%d pending", snap.SearchQueue.PendingCount())),
			styles.AccentText.Render(fmt.Sprintf("%d searching", snap.SearchQueue.ActiveCount())),
			styles.MutedText.Render(fmt.Sprintf("%d downloads", len(snap.Downloads))),
		)
	}
	if n := m.engine.LocalPending(); n > 0 {
		parts = append(parts, styles.WarningText.Render(fmt.Sprintf("%d awaiting server", n)))
	}
	parts = append(parts, styles.FaintText.Render("updated "+sinceLabel(snap.SearchFeed.LastSuccess, m.now)))
	if m.hideIdle {
		parts = append(parts, styles.FaintText.Render("idle hidden"))
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

func (m Model) renderTable(styles Styles) string {
	height := m.tableHeight()
	lines := make([]string, 0, height+1)

	titleWidth := m.titleWidth()
	lines = append(lines, styles.MutedText.Render(
		"  "+pad("STATUS", statusColWidth)+" "+pad("EVENT", titleWidth)+" "+
			pad("DATE", dateColWidth)+" "+pad("DOWNLOAD", downloadColWidth)+" "+"REQUESTED"))

	switch {
	case len(m.rows) == 0 && m.loading:
		lines = append(lines, styles.MutedText.Render("  "+m.spinner.View()+" loading events…"))
	case len(m.rows) == 0 && m.eventsErr != nil:
		lines = append(lines, styles.DangerText.Render("  "+m.eventsErr.Error()))
	case len(m.visible) == 0:
		lines = append(lines, styles.FaintText.Render("  no events match"))
	}

	downloads := latestDownloads(m.snapshot.Downloads)
	end := min(m.offset+height, len(m.visible))
	for i := m.offset; i < end; i++ {
		r := m.rows[m.visible[i]]
		status := m.engine.Status(r.key)

		badgeText := status.String()
		if status == tasks.StatusSearching {
			badgeText = m.spinner.View() + " " + badgeText
		}
		badge := styles.StatusStyle(status.String()).Render(pad(badgeText, statusColWidth-2))

		download := "-"
		if item, ok := downloads[r.event.ID]; ok {
			download = item.Status.String()
			if item.Status == sportarr.DownloadStatusDownloading && item.Progress > 0 {
				download = fmt.Sprintf("%s %.0f%%", download, item.Progress)
			}
		}
		requested := ""
		if at, ok := m.engine.QueuedAt(r.key); ok {
			requested = relativeTime(at, m.now)
		}

		cursor := "  "
		text := pad(truncate(r.label(), titleWidth), titleWidth) + " " +
			pad(formatEventDate(r.event), dateColWidth) + " " +
			pad(truncate(download, downloadColWidth), downloadColWidth) + " " +
			truncate(requested, queuedColWidth)
		if i == m.cursor {
			cursor = "> "
			text = styles.Selected.Render(text)
		} else {
			text = styles.Text.Render(text)
		}
		lines = append(lines, cursor+badge+" "+text)
	}
	for len(lines) < height+1 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter(styles Styles) string {
	var left string
	switch {
	case m.message != "" && m.messageErr:
		left = styles.DangerText.Render(m.message)
	case m.message != "":
		left = styles.Text.Render(m.message)
	default:
		left = m.help.View(m.keys)
	}
	if m.message != "" {
		left += "  " + m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return styles.Footer.Width(m.width).Render(left)
}

// tableHeight is the number of data rows that fit between header and footer.
func (m Model) tableHeight() int {
	used := 3 // header, column titles, footer
	if m.filtering || m.filter.Value() != "" {
		used++
	}
	if m.help.ShowAll {
		used += 3
	}
	return max(m.height-used, 1)
}

func (m Model) titleWidth() int {
	fixed := 2 + statusColWidth + 1 + 1 + dateColWidth + 1 + downloadColWidth + 1 + queuedColWidth
	return max(m.width-fixed, minTitleWidth)
}

func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// classifyError shortens transport errors for the header.
func classifyError(err error) string {
	if err == nil {
		return "OFFLINE"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, sportarr.ErrUnauthorized):
		return "UNAUTHORIZED"
	case strings.Contains(msg, "connection refused"):
		return "UNREACHABLE"
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return "TIMEOUT"
	case strings.Contains(msg, "no such host"):
		return "UNKNOWN HOST"
	default:
		return "OFFLINE"
	}
}
