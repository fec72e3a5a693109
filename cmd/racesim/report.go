package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/strategy"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

var (
	primary = lipgloss.AdaptiveColor{Light: "#383838", Dark: "#D9DCCF"}
	subtle  = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	f1Red   = lipgloss.Color("#CF040E")

	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(primary).
		Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(f1Red).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	subtleStyle = lipgloss.NewStyle().Foreground(subtle)
)

// compoundColors follow the Pirelli hard/medium/soft colors, hardest first
var compoundColors = map[string]lipgloss.Color{
	"A1": lipgloss.Color("#D4DFE8"),
	"A2": lipgloss.Color("#D4DFE8"),
	"A3": lipgloss.Color("#E4E344"),
	"A4": lipgloss.Color("#FA5A55"),
	"A5": lipgloss.Color("#FA5A55"),
	"A6": lipgloss.Color("#FA5A55"),
	"A7": lipgloss.Color("#FA5A55"),
	"I":  lipgloss.Color("#2EA43F"),
	"W":  lipgloss.Color("#1277EF"),
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(primary)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func formatSeconds(s float64) string {
	if s <= 0 {
		return "-"
	}
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func formatActual(pos int) string {
	if pos <= 0 {
		return "-"
	}
	return strconv.Itoa(pos)
}

// renderBatch prints the per-driver summary of a batch, followed by the
// comparison with the historical result when one was computed
func renderBatch(req models.BatchRequest, result *models.BatchResult) string {
	t := newTable("#", "DRIVER", "TEAM", "MEAN POS", "MEDIAN", "BEST", "WORST", "MEAN TIME", "P95 TIME", "DNF %", "ACTUAL")
	for _, d := range result.Drivers {
		t.Row(
			strconv.Itoa(d.PredictedRank),
			d.Name,
			d.Team,
			strconv.FormatFloat(d.MeanPosition, 'f', 2, 64),
			strconv.FormatFloat(d.MedianPosition, 'f', 1, 64),
			strconv.Itoa(d.BestPosition),
			strconv.Itoa(d.WorstPosition),
			formatSeconds(d.MeanTime),
			formatSeconds(d.P95Time),
			strconv.FormatFloat(100*d.DNFRate, 'f', 1, 64),
			formatActual(d.ActualPosition),
		)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %d · %d simulations", req.Location, req.Season, result.Trials)))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(fmt.Sprintf("Safety car in %.1f%% of trials", 100*result.SafetyCarRate)))

	if c := result.Comparison; c != nil {
		b.WriteString("\n")
		b.WriteString(subtleStyle.Render(fmt.Sprintf(
			"Against the real result (%d drivers): spearman %.3f (p=%.4f), rmse %.3fs, mae %.3fs, wilcoxon W=%.1f (p=%.4f)",
			c.Drivers, c.Spearman, c.SpearmanPValue, c.RMSE, c.MAE, c.WilcoxonW, c.WilcoxonPValue)))
	}
	return b.String()
}

// renderStrategy prints a strategy as "A3(0) > A2@20 [18-22]"
func renderStrategy(s models.Strategy) string {
	parts := []string{compound(s.StartingCompound) + fmt.Sprintf("(%d)", s.StartingTireAge)}
	for _, stop := range s.Stops {
		parts = append(parts, fmt.Sprintf("%s@%d [%d-%d]", compound(stop.Compound), stop.PitLap, stop.Window[0], stop.Window[1]))
	}
	return strings.Join(parts, " > ")
}

func compound(c string) string {
	if c == "" {
		return "-"
	}
	color, ok := compoundColors[c]
	if !ok {
		return c
	}
	return lipgloss.NewStyle().Foreground(color).Render(c)
}

// renderOptimization prints the hill-climb history of one driver
func renderOptimization(driver, objective string, r *strategy.Result) string {
	t := newTable("ITER", "SCORE", "STRATEGY")
	for _, step := range r.History {
		t.Row(strconv.Itoa(step.Iteration), strconv.FormatFloat(step.Score, 'f', 3, 64), renderStrategy(step.Strategy))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s · %s", driver, objective)))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Best %s = %.3f after %d iterations: %s\n", objective, r.BestScore, r.Iterations, renderStrategy(r.Best)))
	b.WriteString(subtleStyle.Render(r.Reason))
	return b.String()
}
