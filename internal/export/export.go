// Package export writes catalogs and time series in tabular and geospatial
// formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/hydrodata/efashydro/pkg/ehdcc"
)

const timeLayout = "2006-01-02T15:04:05"

// catalogHeader matches the short column names of the catalog table.
var catalogHeader = []string{
	"EFAS_ID", "NAME", "TYPE", "COUNTRY_ID", "COUNTRY", "PROV_ID",
	"LOCAL_ID", "LAT", "LON", "CATCH_SKM", "DAM_HGT_M", "RIVER_KM",
	"BASIN_EN", "BASIN_LOC", "RIVER_EN", "RIVER_LOC",
}

// WriteCatalogCSV writes the station catalog as CSV. Missing optional
// values render as empty cells.
func WriteCatalogCSV(w io.Writer, catalog *ehdcc.Catalog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(catalogHeader); err != nil {
		return err
	}
	for _, s := range catalog.Stations {
		row := []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			strPtr(s.Kind),
			strPtr(s.CountryID),
			s.Country,
			intPtr(s.ProviderID),
			s.LocalID,
			floatPtr(s.Lat),
			floatPtr(s.Lon),
			floatPtr(s.CatchmentKm2),
			floatPtr(s.DamHeightM),
			floatPtr(s.RiverKm),
			s.BasinEN,
			s.BasinLocal,
			s.RiverEN,
			s.RiverLocal,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCatalogGeoJSON writes the catalog as a GeoJSON FeatureCollection in
// WGS84, one point feature per station.
func WriteCatalogGeoJSON(w io.Writer, catalog *ehdcc.Catalog) error {
	fc := geojson.NewFeatureCollection()
	for _, s := range catalog.Stations {
		f := geojson.NewFeature(s.Geometry)
		f.Properties["EFAS_ID"] = s.ID
		f.Properties["NAME"] = s.Name
		f.Properties["COUNTRY"] = s.Country
		if s.Kind != nil {
			f.Properties["TYPE"] = *s.Kind
		}
		if s.CountryID != nil {
			f.Properties["COUNTRY_ID"] = *s.CountryID
		}
		if s.ProviderID != nil {
			f.Properties["PROV_ID"] = *s.ProviderID
		}
		if s.CatchmentKm2 != nil {
			f.Properties["CATCH_SKM"] = *s.CatchmentKm2
		}
		fc.Append(f)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode feature collection: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteTimeSeriesCSV writes a time series as CSV: an ISO time column
// followed by one column per variable. NaN gaps render as empty cells.
func WriteTimeSeriesCSV(w io.Writer, ts *ehdcc.TimeSeries) error {
	cw := csv.NewWriter(w)
	header := append([]string{"time"}, ts.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i, t := range ts.Index {
		row[0] = t.Format(timeLayout)
		for j, name := range ts.Columns {
			v := ts.Value(name, i)
			if math.IsNaN(v) {
				row[j+1] = ""
			} else {
				row[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func strPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func floatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
