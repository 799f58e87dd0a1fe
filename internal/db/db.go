package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fare-matrix/internal/rules"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LoadStats counts the rows loaded per rule table.
type LoadStats map[string]int

// LoadFareRules reads every fare rule table into a frozen Index. Rows are read
// in a stable order so transfer rules keep their table order per feed.
func LoadFareRules(ctx context.Context, db *sql.DB) (*rules.Index, LoadStats, error) {
	x := rules.NewIndex()
	stats := LoadStats{}
	loaders := []struct {
		table string
		load  func(context.Context, *sql.DB, *rules.Index) (int, error)
	}{
		{"fare_type", loadPolicies},
		{"flat_fare", loadFlatFares},
		{"route_fare", loadRouteFares},
		{"zone", loadZones},
		{"zone_fare", loadZoneFares},
		{"transfer", loadTransfers},
	}
	for _, l := range loaders {
		n, err := l.load(ctx, db, x)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", l.table, err)
		}
		stats[l.table] = n
	}
	x.Freeze()
	return x, stats, nil
}

func loadPolicies(ctx context.Context, db *sql.DB, x *rules.Index) (int, error) {
	q := `SELECT mdb_slug, fare_type, transfers_allowed, fare_duration FROM fare_type ORDER BY mdb_slug`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var feed, kind string
		var transfers, duration sql.NullInt64
		if err := rows.Scan(&feed, &kind, &transfers, &duration); err != nil {
			return n, err
		}
		p, err := policyFromRow(feed, kind, transfers, duration)
		if err != nil {
			return n, err
		}
		x.SetPolicy(p)
		n++
	}
	return n, rows.Err()
}

func loadFlatFares(ctx context.Context, db *sql.DB, x *rules.Index) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT mdb_slug, fare_cost FROM flat_fare ORDER BY mdb_slug`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var feed string
		var cost int
		if err := rows.Scan(&feed, &cost); err != nil {
			return n, err
		}
		x.SetFlatPrice(feed, cost)
		n++
	}
	return n, rows.Err()
}

func loadRouteFares(ctx context.Context, db *sql.DB, x *rules.Index) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT mdb_slug, route_id, fare_cost FROM route_fare ORDER BY mdb_slug, route_id`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var feed, route string
		var cost int
		if err := rows.Scan(&feed, &route, &cost); err != nil {
			return n, err
		}
		x.SetRoutePrice(feed, route, cost)
		n++
	}
	return n, rows.Err()
}

func loadZones(ctx context.Context, db *sql.DB, x *rules.Index) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT mdb_slug, stop_id, zone_id FROM "zone" ORDER BY mdb_slug, stop_id`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var feed, stop, zone string
		if err := rows.Scan(&feed, &stop, &zone); err != nil {
			return n, err
		}
		x.SetZone(feed, stop, zone)
		n++
	}
	return n, rows.Err()
}

func loadZoneFares(ctx context.Context, db *sql.DB, x *rules.Index) (int, error) {
	q := `SELECT mdb_slug, route_id, from_zone, to_zone, fare_cost FROM zone_fare
          ORDER BY mdb_slug, route_id, from_zone, to_zone`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var feed, from, to string
		var route sql.NullString
		var cost int
		if err := rows.Scan(&feed, &route, &from, &to, &cost); err != nil {
			return n, err
		}
		x.SetZonePrice(feed, routeOrAny(route), from, to, cost)
		n++
	}
	return n, rows.Err()
}

func loadTransfers(ctx context.Context, db *sql.DB, x *rules.Index) (int, error) {
	cols, err := hasColumns(ctx, db, "public", "transfer", "id", "from_stop_id", "to_stop_id")
	if err != nil {
		return 0, err
	}
	q := transferQuery(cols)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var r transferRow
		if err := rows.Scan(&r.fromFeed, &r.toFeed, &r.fromRoute, &r.toRoute, &r.fromStop, &r.toStop,
			&r.kind, &r.newFare, &r.value); err != nil {
			return n, err
		}
		tr, err := r.rule()
		if err != nil {
			return n, fmt.Errorf("row %d: %w", n+1, err)
		}
		x.AddTransferRule(tr)
		n++
	}
	return n, rows.Err()
}

// transferQuery selects transfer rules in store order. Older rule databases
// have no stop columns; every rule then matches any stop. Store order is the
// id column when the table has one. Without it the query falls back to ctid,
// which only holds insertion order until a row is updated or the table is
// rewritten.
func transferQuery(cols map[string]bool) string {
	fromStop, toStop := "NULL", "NULL"
	if cols["from_stop_id"] {
		fromStop = "from_stop_id"
	}
	if cols["to_stop_id"] {
		toStop = "to_stop_id"
	}
	order := "ctid"
	if cols["id"] {
		order = "id"
	}
	return fmt.Sprintf(`SELECT from_mdb_slug, to_mdb_slug, from_route_id, to_route_id, %s, %s,
          transfer_type, new_fare, fare_value
        FROM transfer ORDER BY from_mdb_slug, %s`, fromStop, toStop, order)
}

type transferRow struct {
	fromFeed, toFeed   string
	fromRoute, toRoute sql.NullString
	fromStop, toStop   sql.NullString
	kind               string
	newFare            sql.NullInt64
	value              sql.NullInt64
}

func (r transferRow) rule() (rules.TransferRule, error) {
	typ, ok := rules.ParseTransferType(strings.TrimSpace(r.kind))
	if !ok {
		return rules.TransferRule{}, fmt.Errorf("unknown transfer_type %q", r.kind)
	}
	return rules.TransferRule{
		FromFeed:    r.fromFeed,
		ToFeed:      r.toFeed,
		FromRouteID: routeOrAny(r.fromRoute),
		ToRouteID:   routeOrAny(r.toRoute),
		FromStopID:  strings.TrimSpace(r.fromStop.String),
		ToStopID:    strings.TrimSpace(r.toStop.String),
		Type:        typ,
		NewFare:     r.newFare.Valid && r.newFare.Int64 != 0,
		Value:       int(r.value.Int64),
	}, nil
}

func policyFromRow(feed, kind string, transfers, duration sql.NullInt64) (rules.Policy, error) {
	p := rules.Policy{Feed: feed, TransfersAllowed: -1}
	switch k := rules.Kind(strings.ToLower(strings.TrimSpace(kind))); k {
	case rules.KindFlat, rules.KindZone:
		p.Kind = k
	default:
		return p, fmt.Errorf("feed %q: unknown fare_type %q", feed, kind)
	}
	if transfers.Valid {
		p.TransfersAllowed = int(transfers.Int64)
	}
	if duration.Valid {
		p.DurationSeconds = int(duration.Int64)
	}
	return p, nil
}

// routeOrAny maps a missing route column to the AnyRoute wildcard.
func routeOrAny(s sql.NullString) string {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return rules.AnyRoute
	}
	return strings.TrimSpace(s.String)
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	// Initialize to false
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
