// Package report writes the end-of-test summary to disk. GenerateText is
// the on-disk counterpart of WriteSummary: it renders the same
// fixed-column text summary to a file, replacing this package's
// previous role of writing a Chart.js HTML dashboard now that the
// human summary is required to be plain text rather than a browser
// artifact.
package report

import (
	"fmt"
	"os"

	"github.com/sayl/loadgen/internal/percentile"
	"github.com/sayl/loadgen/internal/scenario"
)

// GenerateText writes the end-of-test summary to filename.
func GenerateText(acc *Accumulator, global, perScenario, perStep *percentile.Store, scenarios []scenario.Scenario, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", filename, err)
	}
	defer file.Close()

	WriteSummary(file, acc, global, perScenario, perStep, scenarios)
	return nil
}
