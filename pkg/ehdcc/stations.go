package ehdcc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stationRecord mirrors one entry of the stationsmdv2 JSON payload.
type stationRecord struct {
	EFASID      int64    `json:"EFAS_ID"`
	Name        *string  `json:"NAME"`
	Type        *string  `json:"TYPE"`
	Country     *string  `json:"COUNTRY"`
	CountryCode *string  `json:"COUNTRY-CODE"`
	ProviderID  *int64   `json:"PROVIDER_ID"`
	LocalID     *string  `json:"NATIONAL_STATION_IDENTIFIER"`
	Lat         *float64 `json:"LATITUDE_WGS84"`
	Lon         *float64 `json:"LONGITUDE_WGS84"`
	Catchment   *float64 `json:"CATCHMENT_AREA"`
	Height      *float64 `json:"HEIGHT"`
	RiverKm     *float64 `json:"LOCATION_ON_RIVER_KM"`
	BasinEN     *string  `json:"BASIN_ENGLISH"`
	BasinLocal  *string  `json:"BASIN_LOCAL"`
	RiverEN     *string  `json:"RIVERNAME_ENGLISH"`
	RiverLocal  *string  `json:"RIVERNAME_LOCAL"`
	HasRTData   *bool    `json:"HAS_RTDATA"`
	HasHistData *bool    `json:"HAS_HISTORICAL_DATA"`
}

func (r stationRecord) toStation() Station {
	s := Station{
		ID:           r.EFASID,
		Name:         deref(r.Name),
		Kind:         r.Type,
		Country:      deref(r.Country),
		CountryID:    r.CountryCode,
		ProviderID:   r.ProviderID,
		LocalID:      deref(r.LocalID),
		Lat:          r.Lat,
		Lon:          r.Lon,
		CatchmentKm2: r.Catchment,
		DamHeightM:   r.Height,
		RiverKm:      r.RiverKm,
		BasinEN:      deref(r.BasinEN),
		BasinLocal:   deref(r.BasinLocal),
		RiverEN:      deref(r.RiverEN),
		RiverLocal:   deref(r.RiverLocal),
	}
	if r.HasRTData != nil {
		s.HasRealTime = *r.HasRTData
	}
	if r.HasHistData != nil {
		s.HasHistoric = *r.HasHistData
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetStations retrieves the full station catalog in one request, cleans it
// and applies the filters in order: kind, country, provider, station ID,
// extent. Records missing either coordinate are dropped before the point
// geometry is built. A failed catalog request fails the whole call; filter
// oddities only log warnings.
func (c *Client) GetStations(ctx context.Context, filter StationFilter) (*Catalog, error) {
	url := c.baseURL + "/stationsmdv2/json/"
	body, err := c.get(ctx, url)
	if err != nil {
		c.log.Error("station catalog request failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	var records []stationRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode station catalog: %w", err)
	}

	stations := make([]Station, 0, len(records))
	for _, r := range records {
		stations = append(stations, r.toStation())
	}
	c.fixCountries(stations)
	normalizeText(stations)

	stations = c.filterKind(stations, filter.Kind)
	stations = c.filterCountry(stations, filter.CountryIDs)
	stations = c.filterProvider(stations, filter.ProviderIDs)
	stations = c.filterStationIDs(stations, filter.StationIDs)
	stations = c.buildGeometry(stations)
	stations = c.filterExtent(stations, filter.Extent)

	return &Catalog{Stations: stations}, nil
}

// countryNameFallbacks covers country codes that carry no name anywhere in
// the database.
var countryNameFallbacks = map[string]string{
	"CY": "Cyprus",
	"MK": "North Macedonia",
	"DK": "Denmark",
	"AM": "Armenia",
	"AL": "Albania",
}

// fixCountries normalizes country codes (upper case, legacy SP -> ES) and
// rebuilds country names so that every station with the same code shows the
// same name: the most frequent name per code wins.
func (c *Client) fixCountries(stations []Station) {
	for i := range stations {
		if stations[i].CountryID == nil {
			continue
		}
		code := strings.ToUpper(*stations[i].CountryID)
		if code == "SP" {
			code = "ES"
		}
		stations[i].CountryID = &code
	}

	counts := make(map[string]map[string]int)
	for _, s := range stations {
		if s.CountryID == nil || s.Country == "" {
			continue
		}
		name := capitalize(s.Country)
		if counts[*s.CountryID] == nil {
			counts[*s.CountryID] = make(map[string]int)
		}
		counts[*s.CountryID][name]++
	}

	names := make(map[string]string, len(countryNameFallbacks))
	for code, name := range countryNameFallbacks {
		names[code] = name
	}
	for code, perName := range counts {
		names[code] = mode(perName)
	}

	seen := make(map[string]bool)
	for i := range stations {
		if stations[i].CountryID == nil {
			stations[i].Country = ""
			continue
		}
		code := *stations[i].CountryID
		name, ok := names[code]
		if !ok && !seen[code] {
			seen[code] = true
			c.log.Info("country code has no name associated", zap.String("country_id", code))
		}
		stations[i].Country = name
	}
}

// mode returns the most frequent key; ties break lexicographically so the
// result is stable.
func mode(counts map[string]int) string {
	var best string
	bestN := -1
	for name, n := range counts {
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	return best
}

// normalizeText capitalizes and accent-strips the free-text columns.
func normalizeText(stations []Station) {
	for i := range stations {
		s := &stations[i]
		s.Name = removeAccents(capitalize(s.Name))
		s.BasinEN = removeAccents(capitalize(s.BasinEN))
		s.BasinLocal = removeAccents(capitalize(s.BasinLocal))
		s.RiverEN = removeAccents(capitalize(s.RiverEN))
		s.RiverLocal = removeAccents(capitalize(s.RiverLocal))
	}
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

var accentStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// removeAccents drops combining marks after NFKD decomposition.
func removeAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

func (c *Client) filterKind(stations []Station, kind string) []Station {
	if kind == "" {
		return stations
	}
	missing := 0
	for _, s := range stations {
		if s.Kind == nil {
			missing++
		}
	}
	if missing > 0 {
		c.log.Warn("stations are missing the type", zap.Int("count", missing))
	}
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if s.Kind != nil && strings.EqualFold(*s.Kind, kind) {
			out = append(out, s)
		}
	}
	return out
}

func (c *Client) filterCountry(stations []Station, countryIDs []string) []Station {
	if len(countryIDs) == 0 {
		return stations
	}
	missing := 0
	for _, s := range stations {
		if s.CountryID == nil {
			missing++
		}
	}
	if missing > 0 {
		c.log.Warn("stations are missing the country ID", zap.Int("count", missing))
	}
	want := make(map[string]bool, len(countryIDs))
	for _, id := range countryIDs {
		want[strings.ToUpper(id)] = true
	}
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if s.CountryID != nil && want[*s.CountryID] {
			out = append(out, s)
		}
	}
	return out
}

func (c *Client) filterProvider(stations []Station, providerIDs []int64) []Station {
	if len(providerIDs) == 0 {
		return stations
	}
	missing := 0
	for _, s := range stations {
		if s.ProviderID == nil {
			missing++
		}
	}
	if missing > 0 {
		c.log.Warn("stations are missing the provider ID", zap.Int("count", missing))
	}
	want := make(map[int64]bool, len(providerIDs))
	for _, id := range providerIDs {
		want[id] = true
	}
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if s.ProviderID != nil && want[*s.ProviderID] {
			out = append(out, s)
		}
	}
	return out
}

// filterStationIDs keeps catalog table order, not the requested ID order.
// Requested IDs absent from the catalog only produce a warning.
func (c *Client) filterStationIDs(stations []Station, stationIDs []int64) []Station {
	if len(stationIDs) == 0 {
		return stations
	}
	want := make(map[int64]bool, len(stationIDs))
	for _, id := range stationIDs {
		want[id] = true
	}
	out := make([]Station, 0, len(stationIDs))
	for _, s := range stations {
		if want[s.ID] {
			out = append(out, s)
			delete(want, s.ID)
		}
	}
	if len(want) > 0 {
		c.log.Warn("requested station IDs not in the catalog", zap.Int("count", len(want)))
	}
	return out
}

// buildGeometry drops records missing either coordinate and attaches the
// point geometry to the survivors.
func (c *Client) buildGeometry(stations []Station) []Station {
	missingLon, missingLat := 0, 0
	for _, s := range stations {
		if s.Lon == nil {
			missingLon++
		}
		if s.Lat == nil {
			missingLat++
		}
	}
	if missingLon > 0 {
		c.log.Warn("stations are missing the longitude", zap.Int("count", missingLon))
	}
	if missingLat > 0 {
		c.log.Warn("stations are missing the latitude", zap.Int("count", missingLat))
	}
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if s.Lon == nil || s.Lat == nil {
			continue
		}
		s.Geometry = orb.Point{*s.Lon, *s.Lat}
		out = append(out, s)
	}
	return out
}

// filterExtent keeps stations inside [xmin, ymin, xmax, ymax]. A malformed
// extent makes the filter a logged no-op, never an error.
func (c *Client) filterExtent(stations []Station, extent []float64) []Station {
	if len(extent) == 0 {
		return stations
	}
	if len(extent) != 4 {
		c.log.Warn("extent filter skipped: expected [xmin, ymin, xmax, ymax]",
			zap.Int("values", len(extent)))
		return stations
	}
	bound := orb.Bound{
		Min: orb.Point{extent[0], extent[1]},
		Max: orb.Point{extent[2], extent[3]},
	}
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if bound.Contains(s.Geometry) {
			out = append(out, s)
		}
	}
	return out
}
