package repl

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/dupes/internal/review"
	"github.com/steveyegge/dupes/internal/types"
)

// bandColor picks a color per score band
func bandColor(b types.ScoreBand) func(a ...interface{}) string {
	switch b {
	case types.BandHigh:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case types.BandMedium:
		return color.New(color.FgYellow).SprintFunc()
	case types.BandLow:
		return color.New(color.FgGreen).SprintFunc()
	default:
		return color.New(color.FgHiBlack).SprintFunc()
	}
}

func statusColor(s types.Status) func(a ...interface{}) string {
	switch s {
	case types.StatusMerged:
		return color.New(color.FgGreen).SprintFunc()
	case types.StatusIgnored:
		return color.New(color.FgHiBlack).SprintFunc()
	default:
		return color.New(color.FgYellow).SprintFunc()
	}
}

// RenderPage prints a page of matches as a numbered table
func RenderPage(w io.Writer, page *review.Page) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	s := page.State

	fmt.Fprintf(w, "\n%s  %s\n\n", cyan("Pending Duplicates"),
		gray(fmt.Sprintf("page %d of %d, %d total", s.Page, s.TotalPages, s.TotalCount)))

	if len(page.Items) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		if s.HasActiveFilters {
			fmt.Fprintf(w, "%s No duplicates match the current filters. Use 'clear' to reset them.\n\n", yellow("ℹ"))
		} else {
			fmt.Fprintf(w, "%s No pending duplicates.\n\n", yellow("ℹ"))
		}
		return
	}

	for i, m := range page.Items {
		paint := bandColor(types.BandFor(m.Score))
		fmt.Fprintf(w, "%3d. %s  %s  %-24s ↔ %-24s %s\n",
			i+1,
			paint(fmt.Sprintf("%5.1f", m.Score)),
			m.ID,
			truncate(customerLabel(m.CustomerA), 24),
			truncate(customerLabel(m.CustomerB), 24),
			gray(formatTime(m.CreatedAt)),
		)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", gray(fmt.Sprintf("sort: %s %s  min score: %s  page size: %d",
		s.Sort, s.Order, formatScore(s.MinScore), s.PageSize)))
	var nav []string
	if s.HasPreviousPage {
		nav = append(nav, "'prev'")
	}
	if s.HasNextPage {
		nav = append(nav, "'next'")
	}
	if len(nav) > 0 {
		fmt.Fprintf(w, "%s\n", gray("Use "+strings.Join(nav, " or ")+" to move between pages"))
	}
	fmt.Fprintln(w)
}

// RenderDetail prints a match and a field-by-field comparison
func RenderDetail(w io.Writer, m types.DuplicateMatch, resolving bool) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	band := types.BandFor(m.Score)
	paint := bandColor(band)

	fmt.Fprintf(w, "\n%s %s\n", cyan("Duplicate"), m.ID)
	fmt.Fprintf(w, "  Score:   %s (%s)\n", paint(formatScore(m.Score)), band)
	fmt.Fprintf(w, "  Status:  %s\n", statusColor(m.Status)(string(m.Status)))
	if m.CreatedAt != nil {
		fmt.Fprintf(w, "  Created: %s\n", formatTime(m.CreatedAt))
	}
	if resolving {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "  %s\n", yellow("Resolution in progress..."))
	}
	fmt.Fprintln(w)

	diff := types.Compare(m.CustomerA, m.CustomerB)
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "  %-12s %-30s %-30s\n", "", "Customer A ("+m.CustomerA.ID+")", "Customer B ("+m.CustomerB.ID+")")
	for _, f := range diff.Fields {
		mark := " "
		paintField := fmt.Sprint
		switch f.State {
		case types.FieldSame:
			mark = green("=")
		case types.FieldDifferent:
			mark = red("≠")
			paintField = red
		case types.FieldOnlyA, types.FieldOnlyB:
			mark = gray("?")
		}
		fmt.Fprintf(w, "%s %-12s %s %s\n", mark, f.Field,
			paintField(fmt.Sprintf("%-30s", orDash(f.A))),
			paintField(fmt.Sprintf("%-30s", orDash(f.B))))
	}
	fmt.Fprintf(w, "\n  %d matching, %d different, %d missing\n\n", diff.Matching, diff.Different, diff.Missing)
}

// RenderStats prints the band distribution of the pending queue
func RenderStats(w io.Writer, s *review.Stats, minScore float64) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(w, "\n%s (score ≥ %s)\n\n", cyan("Pending Queue"), formatScore(minScore))
	for _, b := range []types.ScoreBand{types.BandHigh, types.BandMedium, types.BandLow, types.BandVeryLow} {
		fmt.Fprintf(w, "  %s %d\n", bandColor(b)(fmt.Sprintf("%-16s", b.String())), s.Bands[b])
	}
	fmt.Fprintf(w, "\n  %d total", s.Total)
	if s.Sample < s.Total {
		fmt.Fprintf(w, " (bands counted over the first %d)", s.Sample)
	}
	fmt.Fprint(w, "\n\n")
}

// RenderHistory prints audit records newest first
func RenderHistory(w io.Writer, recs []*types.Resolution) {
	if len(recs) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "\n%s No decisions recorded yet.\n\n", yellow("ℹ"))
		return
	}
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("Recent Decisions"))
	for _, rec := range recs {
		outcome := green("✓")
		if !rec.Succeeded {
			outcome = red("✗")
		}
		fmt.Fprintf(w, "  %s %s  %-6s %s  %s\n", outcome,
			gray(rec.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			rec.Action, rec.MatchID, gray(rec.Actor))
		if rec.Error != "" {
			fmt.Fprintf(w, "      %s\n", red(rec.Error))
		}
	}
	fmt.Fprintln(w)
}

// RenderSession prints who is signed in and until when
func RenderSession(w io.Writer, sess *types.Session, valid bool) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("Session"))
	switch {
	case sess == nil:
		fmt.Fprintf(w, "  %s Not logged in\n", red("⊗"))
	case valid:
		fmt.Fprintf(w, "  %s Logged in to %s\n", green("✓"), orDash(sess.InstanceURL))
		fmt.Fprintf(w, "    expires %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
	default:
		fmt.Fprintf(w, "  %s Access token expired or expiring", yellow("⚡"))
		if sess.RefreshToken != "" {
			fmt.Fprint(w, " (will refresh on next request)")
		}
		fmt.Fprintln(w)
	}
}

// RenderState prints the current view-state
func RenderState(w io.Writer, s review.State, resolving bool) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(w, "\n  page %d of %d (%d per page, %d total)\n", s.Page, s.TotalPages, s.PageSize, s.TotalCount)
	fmt.Fprintf(w, "  sort %s %s, min score %s", s.Sort, s.Order, formatScore(s.MinScore))
	if s.HasActiveFilters {
		fmt.Fprint(w, gray(" (filtered)"))
	}
	fmt.Fprintln(w)
	if resolving {
		fmt.Fprintln(w, "  resolution in progress")
	}
	fmt.Fprintln(w)
}

func customerLabel(c types.Customer) string {
	if name := c.FullName(); name != "" {
		return name
	}
	if c.Email != "" {
		return c.Email
	}
	return c.ID
}

func formatTime(ts *types.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.Format("2006-01-02")
}

func formatScore(v float64) string {
	return fmt.Sprintf("%g", v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
