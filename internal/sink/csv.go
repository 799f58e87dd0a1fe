package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"fare-matrix/internal/batch"
)

// CSV writes the fare matrix to Path and the failed pairs to
// Path + ".failures.csv".
type CSV struct {
	Path string
}

func NewCSV(path string) *CSV { return &CSV{Path: path} }

func (c *CSV) Name() string { return "csv" }

func (c *CSV) FailuresPath() string { return c.Path + ".failures.csv" }

func (c *CSV) Write(_ context.Context, rep *batch.Report) error {
	if dir := filepath.Dir(c.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	records := make([][]string, 0, len(rep.Results)+1)
	records = append(records, []string{"from_id", "to_id", "fare_cost_cents"})
	for _, r := range rep.Results {
		records = append(records, []string{r.Pair.FromID, r.Pair.ToID, cents(r.FareCents)})
	}
	if err := writeCSV(c.Path, records); err != nil {
		return err
	}

	failures := make([][]string, 0, len(rep.Failures)+1)
	failures = append(failures, []string{"from_id", "to_id", "error"})
	for _, f := range rep.Failures {
		failures = append(failures, []string{f.Pair.FromID, f.Pair.ToID, f.Err.Error()})
	}
	return writeCSV(c.FailuresPath(), failures)
}

// writeCSV writes to a temporary file first so readers never see a partial matrix.
func writeCSV(path string, records [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
