// Package db is an optional Postgres sink for retrieved catalogs and time
// series. The client library never touches it; only the CLI wires it in
// when given a database URL.
package db

import (
	"context"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hydrodata/efashydro/pkg/ehdcc"
)

// UpsertStations inserts/updates station metadata records.
func UpsertStations(ctx context.Context, pool *pgxpool.Pool, stations []ehdcc.Station) error {
	if len(stations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO efas.stations (efas_id, name, kind, country_id, country, provider_id, local_id, lat, lon, catchment_km2, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
ON CONFLICT (efas_id) DO UPDATE
SET name = EXCLUDED.name,
    kind = EXCLUDED.kind,
    country_id = EXCLUDED.country_id,
    country = EXCLUDED.country,
    provider_id = EXCLUDED.provider_id,
    local_id = EXCLUDED.local_id,
    lat = EXCLUDED.lat,
    lon = EXCLUDED.lon,
    catchment_km2 = EXCLUDED.catchment_km2,
    updated_at = NOW()`

	for _, s := range stations {
		batch.Queue(query, s.ID, s.Name, s.Kind, s.CountryID, s.Country, s.ProviderID, s.LocalID, s.Lat, s.Lon, s.CatchmentKm2)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range stations {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// SampleRow is one (station, variable, timestamp, value) measurement.
type SampleRow struct {
	StationID int64
	Variable  string
	TS        time.Time
	Value     float64
}

// SamplesFromTimeSeries flattens a time series into rows, skipping gaps.
func SamplesFromTimeSeries(stationID int64, ts *ehdcc.TimeSeries) []SampleRow {
	var rows []SampleRow
	for _, name := range ts.Columns {
		for i, t := range ts.Index {
			v := ts.Value(name, i)
			if math.IsNaN(v) {
				continue
			}
			rows = append(rows, SampleRow{StationID: stationID, Variable: name, TS: t, Value: v})
		}
	}
	return rows
}

// InsertSamples writes measurement rows, overwriting re-fetched values.
func InsertSamples(ctx context.Context, pool *pgxpool.Pool, samples []SampleRow) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO efas.samples (station_id, variable, ts, value, ingested_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW(),NOW())
ON CONFLICT (station_id, variable, ts) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = NOW()`

	for _, s := range samples {
		batch.Queue(query, s.StationID, s.Variable, s.TS, s.Value)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range samples {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}
