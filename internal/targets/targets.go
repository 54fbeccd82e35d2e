// Package targets loads outreach target lists from CSV files.
package targets

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Load reads target URLs from a CSV file with a "url" header column.
// Order is preserved, duplicates dropped, blank rows skipped.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("targets file %s is empty", path)
	}

	urlCol := -1
	for i, name := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(name), "url") {
			urlCol = i
			break
		}
	}
	if urlCol < 0 {
		return nil, fmt.Errorf("targets file %s must have a %q column", path, "url")
	}

	seen := make(map[string]bool)
	var out []string
	for _, row := range rows[1:] {
		if urlCol >= len(row) {
			continue
		}
		u := strings.TrimSpace(row[urlCol])
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out, nil
}

// Save writes processed results to CSV as url,status,detail rows.
func Save(path string, results [][3]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"url", "status", "detail"}); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(r[:]); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
