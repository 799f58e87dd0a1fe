package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNoFareDatabase is returned when no successful fare import matches a region.
var ErrNoFareDatabase = errors.New("db: no fare database for region")

// latestFareImportQuery picks the newest successful import for a region. A row
// tagged with the region wins over one whose db_name merely contains it.
const latestFareImportQuery = `
SELECT db_name
FROM public.fare_imports
WHERE status = 'success'
  AND (lower(region) = lower($1) OR db_name ILIKE $2 ESCAPE '\')
ORDER BY COALESCE(lower(region) = lower($1), false) DESC, imported_at DESC
LIMIT 1`

// ResolveLatestFareDBName returns the rules database of the region's most
// recent successful fare import, read from public.fare_imports on the
// cluster's maintenance database.
func ResolveLatestFareDBName(ctx context.Context, meta *sql.DB, region string) (string, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return "", fmt.Errorf("region is required")
	}
	var dbName sql.NullString
	err := meta.QueryRowContext(ctx, latestFareImportQuery, region, likePattern(region)).Scan(&dbName)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("%w %q", ErrNoFareDatabase, region)
	case err != nil:
		return "", err
	}
	name := strings.TrimSpace(dbName.String)
	if name == "" {
		return "", fmt.Errorf("%w %q: empty db_name", ErrNoFareDatabase, region)
	}
	return name, nil
}

// likePattern matches region anywhere in a name, with LIKE wildcards in the
// region taken literally. Region keys such as "dc_metro" would otherwise
// match "dcXmetro".
func likePattern(region string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(region) + "%"
}
