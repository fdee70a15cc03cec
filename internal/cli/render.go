package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/clawinfra/smartroute/internal/router"
)

var (
	cheapColor   = lipgloss.Color("#10B981") // green
	midColor     = lipgloss.Color("#06B6D4") // cyan
	premiumColor = lipgloss.Color("#7C3AED") // violet
	mutedColor   = lipgloss.Color("#6B7280") // gray
	warnColor    = lipgloss.Color("#F59E0B") // amber
)

// styles are bound to one output so colour is only emitted to terminals.
type styles struct {
	box     lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	warn    lipgloss.Style
	renderr *lipgloss.Renderer
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		box: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1),
		title:   r.NewStyle().Bold(true),
		label:   r.NewStyle().Width(13),
		muted:   r.NewStyle().Foreground(mutedColor),
		warn:    r.NewStyle().Foreground(warnColor).Bold(true),
		renderr: r,
	}
}

func (s styles) tier(t router.Tier) string {
	c := cheapColor
	switch t {
	case router.TierMid:
		c = midColor
	case router.TierPremium:
		c = premiumColor
	}
	return s.renderr.NewStyle().Foreground(c).Bold(true).Render(t.String())
}

func (s styles) row(label, value string) string {
	return s.label.Render(label) + value
}

func truncate(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-1]) + "…"
}

func yesNo(on bool) string {
	if on {
		return "yes"
	}
	return "no"
}

// renderScore renders one complexity breakdown.
func (s styles) renderScore(input string, cs router.ComplexityScore) string {
	fs := cs.FeatureScores
	f := cs.Features
	lines := []string{
		s.title.Render(truncate(input, 60)),
		s.row("score", fmt.Sprintf("%d/100 → %s", cs.NormalizedScore, s.tier(cs.Tier))),
		s.row("raw", fmt.Sprintf("%.2f (bonus %+.1f)", cs.RawScore, cs.InteractionBonus)),
		s.row("tokens", fmt.Sprintf("%d", f.TokenCount)),
		"",
		s.row("length", fmt.Sprintf("%5.1f", fs.Length)),
		s.row("code", fmt.Sprintf("%5.1f  %s", fs.Code, s.muted.Render(yesNo(f.HasCode)))),
		s.row("math", fmt.Sprintf("%5.1f  %s", fs.Math, s.muted.Render(yesNo(f.MathLike)))),
		s.row("multi-step", fmt.Sprintf("%5.1f  %s", fs.MultiStep, s.muted.Render(yesNo(f.MultiStep)))),
		s.row("constraints", fmt.Sprintf("%5.1f  %s", fs.Constraints, s.muted.Render(yesNo(f.Constraints)))),
		s.row("ambiguity", fmt.Sprintf("%5.1f  %s", fs.Ambiguity, s.muted.Render(yesNo(f.Ambiguity)))),
		s.row("attachments", fmt.Sprintf("%5.1f  %s", fs.Attachments, s.muted.Render(yesNo(f.Attachments)))),
	}
	return s.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderAssessment renders a confidence verdict.
func (s styles) renderAssessment(a router.ConfidenceAssessment, threshold float64) string {
	verdict := "keep"
	if a.NeedsPromotion {
		verdict = s.warn.Render("promote")
	}
	lines := []string{
		s.row("confidence", fmt.Sprintf("%.2f (threshold %g)", a.Score, threshold)),
		s.row("verdict", verdict),
	}
	if len(a.Signals) > 0 {
		lines = append(lines, "")
		for _, sig := range a.Signals {
			lines = append(lines, s.row(string(sig.Type), fmt.Sprintf("-%.2f  %s", sig.Weight, s.muted.Render(sig.Detail))))
		}
	}
	return s.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderDecision renders a routing decision.
func (s styles) renderDecision(d router.RoutingDecision, alias string) string {
	lines := []string{
		s.row("request", s.muted.Render(d.RequestID)),
		s.row("tier", fmt.Sprintf("%s (%s)", s.tier(d.Tier), alias)),
		s.row("model", d.Model),
		s.row("reason", d.Reason),
	}
	if d.Promoted && d.OriginalTier != nil {
		lines = append(lines, s.row("promoted", "from "+s.tier(*d.OriginalTier)))
	}
	return s.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
