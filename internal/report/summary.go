// Fixed-column text summary rendering.
// Tables are built with github.com/jedib0t/go-pretty/v6/table, styled
// StyleLight (Unicode box-drawing borders) with no color codes so the
// result is a stable fixed-column text report rather than a terminal UI
// artifact.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sayl/loadgen/internal/percentile"
	"github.com/sayl/loadgen/internal/scenario"
)

// WriteSummary renders the end-of-test human summary: totals and success
// rate, per-category error counts, per-scenario throughput, and percentile
// tables for the global, per-scenario, and per-step latency distributions.
func WriteSummary(w io.Writer, acc *Accumulator, global, perScenario, perStep *percentile.Store, scenarios []scenario.Scenario) {
	snap := acc.Snapshot()

	fmt.Fprintf(w, "Requests total: %d\n", snap.Total)
	fmt.Fprintf(w, "Success: %d   Failure: %d   Success rate: %.2f%%\n", snap.Success, snap.Failure, snap.SuccessRate)
	fmt.Fprintln(w)

	writeErrorTable(w, snap)
	fmt.Fprintln(w)
	writeThroughputTable(w, snap, scenarios)
	fmt.Fprintln(w)
	writePercentileTable(w, global, perScenario, perStep, scenarios)
}

func writeErrorTable(w io.Writer, snap Snapshot) {
	t := plainTable(w)
	t.AppendHeader(table.Row{"Error Category", "Count"})
	cats := make([]string, 0, len(snap.ErrorsByCat))
	for c := range snap.ErrorsByCat {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		t.AppendRow(table.Row{c, snap.ErrorsByCat[c]})
	}
	if len(cats) == 0 {
		t.AppendRow(table.Row{"(none)", 0})
	}
	t.SetTitle("Errors by category")
	t.Render()
}

func writeThroughputTable(w io.Writer, snap Snapshot, scenarios []scenario.Scenario) {
	t := plainTable(w)
	t.AppendHeader(table.Row{"Scenario", "Requests", "RPS"})
	seconds := snap.Elapsed.Seconds()
	for _, sc := range scenarios {
		count := snap.ScenarioCounts[sc.Name]
		rps := 0.0
		if seconds > 0 {
			rps = float64(count) / seconds
		}
		t.AppendRow(table.Row{sc.Name, count, fmt.Sprintf("%.2f", rps)})
	}
	t.SetTitle("Per-scenario throughput")
	t.Render()
}

func writePercentileTable(w io.Writer, global, perScenario, perStep *percentile.Store, scenarios []scenario.Scenario) {
	t := plainTable(w)
	t.AppendHeader(table.Row{"Label", "Count", "P50", "P90", "P95", "P99", "P99.9", "Mean", "Max"})

	if stats, ok := global.Stat(""); ok {
		appendPercentileRow(t, "(global)", stats)
	}
	for _, sc := range scenarios {
		if stats, ok := perScenario.Stat(sc.Name); ok {
			appendPercentileRow(t, sc.Name, stats)
		}
		for _, st := range sc.Steps {
			if stats, ok := perStep.Stat(sc.Name + ":" + st.Name); ok {
				appendPercentileRow(t, sc.Name+":"+st.Name, stats)
			}
		}
	}
	t.SetTitle("Latency percentiles (ms)")
	t.Render()
}

func appendPercentileRow(t table.Writer, label string, s percentile.Stats) {
	t.AppendRow(table.Row{
		label,
		s.Count,
		ms(s.P50), ms(s.P90), ms(s.P95), ms(s.P99), ms(s.P999),
		msf(s.Mean), ms(s.Max),
	})
}

func ms(micros int64) string {
	return fmt.Sprintf("%.2f", float64(micros)/1000.0)
}

func msf(micros float64) string {
	return fmt.Sprintf("%.2f", micros/1000.0)
}

func plainTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = true
	return t
}
