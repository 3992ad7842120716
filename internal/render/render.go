// Package render prints run progress and the final flakiness summary for humans.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/amartya2002/flake-detector/flake"
)

const (
	ColorReset   = "\033[0m"
	ColorRed     = "\033[91m"
	ColorGreen   = "\033[92m"
	ColorYellow  = "\033[93m"
	ColorBlue    = "\033[94m"
	ColorMagenta = "\033[95m"
	ColorCyan    = "\033[96m"
	ColorWhite   = "\033[97m"
	ColorBold    = "\033[1m"
)

const rule = "═══════════════════════════════════════════════════"

type Printer struct {
	w     io.Writer
	color bool
}

// New writes to w and colours output only when w is a terminal.
func New(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, color: color}
}

// NewPlain never colours.
func NewPlain(w io.Writer) *Printer { return &Printer{w: w} }

func (p *Printer) paint(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + ColorReset
}

type Settings struct {
	Endpoints   int
	Duration    time.Duration
	Queries     []string
	Concurrency int
	Timeout     time.Duration
}

func (p *Printer) Banner(version string) {
	fmt.Fprintln(p.w, p.paint(ColorBlue, "╔══════════════════════════════════════════════════╗"))
	fmt.Fprintln(p.w, p.paint(ColorWhite+ColorBold, fmt.Sprintf("║     RPC FLAKE DETECTOR %-26s║", version)))
	fmt.Fprintln(p.w, p.paint(ColorBlue, "╚══════════════════════════════════════════════════╝"))
}

func (p *Printer) Settings(s Settings) {
	fmt.Fprintf(p.w, "\n%s Configuration:\n", p.paint(ColorYellow, "⚙"))
	fmt.Fprintf(p.w, "  Endpoints: %d\n", s.Endpoints)
	fmt.Fprintf(p.w, "  Test Duration: %v\n", s.Duration)
	fmt.Fprintf(p.w, "  Queries: %s\n", strings.Join(s.Queries, ", "))
	fmt.Fprintf(p.w, "  Concurrency: %d\n", s.Concurrency)
	fmt.Fprintf(p.w, "  Timeout: %v\n", s.Timeout)
}

// Endpoint prints the per-query breakdown of one finished endpoint.
func (p *Printer) Endpoint(r flake.EndpointReport) {
	fmt.Fprintf(p.w, "\n%s Tested endpoint: %s\n", p.paint(ColorBlue, "🔍"), p.paint(ColorCyan, r.Endpoint))
	for _, q := range r.Queries {
		fmt.Fprintf(p.w, "  %s Query: %s\n", p.paint(ColorWhite, "→"), p.paint(ColorWhite, q.Query))
		fmt.Fprintf(p.w, "    ✓ Success: %s | ✗ Failure: %s | Rate: %s\n",
			p.paint(ColorGreen, fmt.Sprint(q.SuccessCount)),
			p.paint(ColorRed, fmt.Sprint(q.FailureCount)),
			p.paint(ColorYellow, fmt.Sprintf("%.1f%%", q.FailureRate*100)))
		if q.Latency != nil {
			fmt.Fprintf(p.w, "    Latency: p50=%.1fms p95=%.1fms p99=%.1fms\n", q.Latency.P50, q.Latency.P95, q.Latency.P99)
		} else {
			fmt.Fprintln(p.w, "    Latency: n/a (no successful probes)")
		}
	}
}

func (p *Printer) Summary(reports []flake.EndpointReport) {
	fmt.Fprintf(p.w, "\n%s\n", p.paint(ColorBlue, rule))
	fmt.Fprintln(p.w, p.paint(ColorWhite+ColorBold, "           FLAKINESS DETECTION SUMMARY"))
	fmt.Fprintln(p.w, p.paint(ColorBlue, rule))

	for _, r := range reports {
		score := p.paint(scoreColor(r.Status)+ColorBold, fmt.Sprintf("%.1f", r.FlakinessScore))
		fmt.Fprintf(p.w, "\n%s %s - Flakiness Score: %s/100\n", Emoji(r.Status), p.paint(ColorCyan, r.Endpoint), score)
		fmt.Fprintf(p.w, "  Success Rate: %s | Total Requests: %d\n",
			p.paint(ColorGreen, fmt.Sprintf("%.1f%%", r.OverallSuccessRate*100)), r.TotalRequests)
	}

	fmt.Fprintf(p.w, "\n%s\n", p.paint(ColorBlue, rule))
}

func Emoji(s flake.Status) string {
	switch s {
	case flake.StatusHealthy:
		return "🟢"
	case flake.StatusDegraded:
		return "🟡"
	case flake.StatusFlaky:
		return "🟠"
	default:
		return "🔴"
	}
}

func scoreColor(s flake.Status) string {
	switch s {
	case flake.StatusHealthy:
		return ColorGreen
	case flake.StatusDegraded:
		return ColorYellow
	case flake.StatusFlaky:
		return ColorMagenta
	default:
		return ColorRed
	}
}
