package ehdcc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// catalogFixture covers the cleaning edge cases: legacy SP country code,
// accented lower-case names, a record without coordinates, a record without
// a country code, a record without a type, and a country code with no name.
const catalogFixture = `[
 {"EFAS_ID":1,"NAME":"presa de VALDECAÑAS","TYPE":"RESERVOIR","COUNTRY":"spain","COUNTRY-CODE":"sp","PROVIDER_ID":10,"LATITUDE_WGS84":39.8,"LONGITUDE_WGS84":-5.4,"CATCHMENT_AREA":36540},
 {"EFAS_ID":2,"NAME":"Fratel","TYPE":"RESERVOIR","COUNTRY":"Portugal","COUNTRY-CODE":"PT","PROVIDER_ID":20,"LATITUDE_WGS84":39.5,"LONGITUDE_WGS84":-7.8},
 {"EFAS_ID":3,"NAME":"Albarellos","TYPE":"RIVER","COUNTRY":"Spain","COUNTRY-CODE":"ES","PROVIDER_ID":10,"LATITUDE_WGS84":42.4,"LONGITUDE_WGS84":-8.1},
 {"EFAS_ID":4,"NAME":"Cedillo","TYPE":"RESERVOIR","COUNTRY":"Spain","COUNTRY-CODE":"ES","PROVIDER_ID":10},
 {"EFAS_ID":5,"NAME":"Orphan","TYPE":"RESERVOIR","PROVIDER_ID":30,"LATITUDE_WGS84":45.0,"LONGITUDE_WGS84":7.0},
 {"EFAS_ID":6,"NAME":"Karavomilos","TYPE":null,"COUNTRY":"Greece","COUNTRY-CODE":"GR","PROVIDER_ID":40,"LATITUDE_WGS84":38.8,"LONGITUDE_WGS84":20.7},
 {"EFAS_ID":7,"NAME":"Nameless","TYPE":"RIVER","COUNTRY-CODE":"XX","PROVIDER_ID":50,"LATITUDE_WGS84":60.0,"LONGITUDE_WGS84":25.0}
]`

func newCatalogClient(t *testing.T, handler http.HandlerFunc) (*Client, *observer.ObservedLogs) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	core, logs := observer.New(zapcore.InfoLevel)
	client := NewClient("user", "secret", WithBaseURL(srv.URL), WithLogger(zap.New(core)))
	return client, logs
}

func fixtureHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "request must carry basic auth")
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/stationsmdv2/json/", r.URL.Path)
		_, _ = w.Write([]byte(catalogFixture))
	}
}

func TestGetStationsReservoirsInIberia(t *testing.T) {
	client, _ := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{
		Kind:       "reservoir",
		CountryIDs: []string{"ES", "PT"},
	})
	require.NoError(t, err)

	// 1 and 2 survive; 4 matches the filters but has no coordinates.
	require.Equal(t, []int64{1, 2}, catalog.IDs())
	for _, s := range catalog.Stations {
		assert.NotZero(t, s.Geometry)
	}
	assert.Equal(t, orb.Point{-5.4, 39.8}, catalog.Stations[0].Geometry)
}

func TestGetStationsCleansCountriesAndText(t *testing.T) {
	client, logs := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{})
	require.NoError(t, err)

	valdecanas := catalog.Get(1)
	require.NotNil(t, valdecanas)
	assert.Equal(t, "Presa de valdecanas", valdecanas.Name)
	assert.Equal(t, "ES", *valdecanas.CountryID) // legacy SP code
	assert.Equal(t, "Spain", valdecanas.Country)

	// XX carries no name anywhere; logged once, left empty.
	nameless := catalog.Get(7)
	require.NotNil(t, nameless)
	assert.Equal(t, "", nameless.Country)
	assert.Len(t, logs.FilterMessage("country code has no name associated").All(), 1)
}

func TestGetStationsDropsMissingCoordinates(t *testing.T) {
	client, logs := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{})
	require.NoError(t, err)

	assert.Nil(t, catalog.Get(4))
	assert.Equal(t, []int64{1, 2, 3, 5, 6, 7}, catalog.IDs())

	lonWarns := logs.FilterMessage("stations are missing the longitude").All()
	require.Len(t, lonWarns, 1)
	assert.Equal(t, int64(1), lonWarns[0].ContextMap()["count"])
	latWarns := logs.FilterMessage("stations are missing the latitude").All()
	require.Len(t, latWarns, 1)
	assert.Equal(t, int64(1), latWarns[0].ContextMap()["count"])
}

func TestCountryFilterWarnsAboutMissingCodes(t *testing.T) {
	client, logs := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{CountryIDs: []string{"ES"}})
	require.NoError(t, err)

	// Station 5 has no country code: counted in the warning, excluded from
	// the match.
	assert.Equal(t, []int64{1, 3}, catalog.IDs())
	warns := logs.FilterMessage("stations are missing the country ID").All()
	require.Len(t, warns, 1)
	assert.Equal(t, int64(1), warns[0].ContextMap()["count"])
}

func TestKindFilterWarnsAboutMissingTypes(t *testing.T) {
	client, logs := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{Kind: "river"})
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 7}, catalog.IDs())
	warns := logs.FilterMessage("stations are missing the type").All()
	require.Len(t, warns, 1)
	assert.Equal(t, int64(1), warns[0].ContextMap()["count"])
}

func TestProviderFilter(t *testing.T) {
	client, _ := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{ProviderIDs: []int64{10}})
	require.NoError(t, err)

	// 4 is provider 10 too but has no coordinates.
	assert.Equal(t, []int64{1, 3}, catalog.IDs())
}

func TestStationIDFilter(t *testing.T) {
	client, _ := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{StationIDs: []int64{2, 6}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 6}, catalog.IDs())
}

func TestStationIDFilterWarnsAboutUnknownIDs(t *testing.T) {
	client, logs := newCatalogClient(t, fixtureHandler(t))

	// Results stay in table order regardless of the requested order;
	// unknown IDs are warned about, not errors.
	catalog, err := client.GetStations(context.Background(), StationFilter{StationIDs: []int64{6, 2, 999}})
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 6}, catalog.IDs())
	warns := logs.FilterMessage("requested station IDs not in the catalog").All()
	require.Len(t, warns, 1)
	assert.Equal(t, int64(1), warns[0].ContextMap()["count"])
}

func TestExtentFilter(t *testing.T) {
	client, _ := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{
		Extent: []float64{-10, 35, -4, 43},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, catalog.IDs())
}

func TestMalformedExtentIsANoOp(t *testing.T) {
	client, logs := newCatalogClient(t, fixtureHandler(t))

	catalog, err := client.GetStations(context.Background(), StationFilter{
		Extent: []float64{-10, 35, -4},
	})
	require.NoError(t, err)

	// Same rows as with no extent at all, plus a warning.
	assert.Equal(t, []int64{1, 2, 3, 5, 6, 7}, catalog.IDs())
	assert.Len(t, logs.FilterMessage("extent filter skipped: expected [xmin, ymin, xmax, ymax]").All(), 1)
}

func TestGetStationsHTTPFailureIsFatal(t *testing.T) {
	client, _ := newCatalogClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	catalog, err := client.GetStations(context.Background(), StationFilter{})
	assert.Nil(t, catalog)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestCapitalizeAndRemoveAccents(t *testing.T) {
	assert.Equal(t, "Presa de valdecanas", removeAccents(capitalize("presa de VALDECAÑAS")))
	assert.Equal(t, "Aguila", removeAccents("Águila"))
	assert.Equal(t, "", capitalize(""))
}
