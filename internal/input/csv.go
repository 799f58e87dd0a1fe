// Package input reads router output: one CSV row per leg of every option of
// every origin-destination pair.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fare-matrix/internal/fare"
)

var required = []string{
	"from_id", "to_id", "option", "segment", "transport_mode", "departure_time",
	"feed", "agency_id", "route_id", "start_stop_id", "end_stop_id",
}

var aliases = map[string]string{"mode": "transport_mode"}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	time.DateTime,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// Rejected maps a pair to the first malformed row found for it.
type Rejected map[fare.Pair]error

// ReadFile reads a router CSV from path.
func ReadFile(path string, loc *time.Location) ([]fare.Row, Rejected, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	rows, rejected, err := Read(f, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, rejected, nil
}

// Read parses router rows. Times without an offset are taken in loc.
// A malformed row rejects its pair only: none of that pair's rows are
// returned and the pair is reported in Rejected. Errors that make the file
// unreadable (no header, missing column, broken CSV quoting) fail the read.
func Read(r io.Reader, loc *time.Location) ([]fare.Row, Rejected, error) {
	if loc == nil {
		loc = time.Local
	}
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("empty input")
		}
		return nil, nil, err
	}
	col := map[string]int{}
	for i, h := range head {
		name := strings.ToLower(strings.TrimSpace(h))
		if a, ok := aliases[name]; ok {
			name = a
		}
		col[name] = i
	}
	for _, c := range required {
		if _, ok := col[c]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", c)
		}
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []fare.Row
	rejected := Rejected{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, err
		}
		row, err := parseRow(get, rec, loc)
		if err != nil {
			p := row.Pair()
			if _, seen := rejected[p]; !seen {
				rejected[p] = fmt.Errorf("line %d: %w", line, err)
			}
			continue
		}
		rows = append(rows, row)
	}

	kept := rows[:0]
	for _, row := range rows {
		if _, bad := rejected[row.Pair()]; !bad {
			kept = append(kept, row)
		}
	}
	return kept, rejected, nil
}

// parseRow converts one record. The returned Row always carries the pair so
// a failure can be attributed to it; every error wraps fare.ErrDataIntegrity.
func parseRow(get func([]string, string) string, rec []string, loc *time.Location) (fare.Row, error) {
	r := fare.Row{
		FromID:      get(rec, "from_id"),
		ToID:        get(rec, "to_id"),
		Mode:        get(rec, "transport_mode"),
		Feed:        get(rec, "feed"),
		AgencyID:    get(rec, "agency_id"),
		RouteID:     get(rec, "route_id"),
		StartStopID: get(rec, "start_stop_id"),
		EndStopID:   get(rec, "end_stop_id"),
	}
	var err error
	if r.Option, err = parseInt(get(rec, "option")); err != nil {
		return r, fmt.Errorf("option: %w", err)
	}
	if r.Segment, err = parseInt(get(rec, "segment")); err != nil {
		return r, fmt.Errorf("segment: %w", err)
	}
	if v := get(rec, "departure_time"); v != "" || !r.IsWalk() {
		if r.Departure, err = parseTime(v, loc); err != nil {
			return r, fmt.Errorf("departure_time: %w", err)
		}
	}
	if r.TravelMinutes, err = parseMinutes(get(rec, "travel_time")); err != nil {
		return r, fmt.Errorf("travel_time: %w", err)
	}
	if r.WaitMinutes, err = parseMinutes(get(rec, "wait_time")); err != nil {
		return r, fmt.Errorf("wait_time: %w", err)
	}
	return r, nil
}

// parseInt accepts integral floats such as "2.0" that dataframe exports emit.
func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %q is not an integer", fare.ErrDataIntegrity, s)
	}
	return int(f), nil
}

func parseMinutes(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", fare.ErrDataIntegrity, s)
	}
	return f, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised time %q", fare.ErrDataIntegrity, s)
}
