package ehdcc

import (
	"sort"

	"github.com/paulmach/orb"
)

// VariableCode is the single-letter abbreviation the API uses for a
// hydrological variable.
type VariableCode string

const (
	WaterLevel VariableCode = "W"
	Discharge  VariableCode = "D"
	Inflow     VariableCode = "I"
	Outflow    VariableCode = "O"
	Storage    VariableCode = "V"
	Elevation  VariableCode = "R"
)

// Variables maps variable codes to the column names used in results.
var Variables = map[VariableCode]string{
	WaterLevel: "water_level",
	Discharge:  "discharge",
	Inflow:     "inflow",
	Outflow:    "outflow",
	Storage:    "storage",
	Elevation:  "elevation",
}

// AllVariables lists every known variable code in request order.
var AllVariables = []VariableCode{WaterLevel, Discharge, Inflow, Outflow, Storage, Elevation}

// Services maps the recognized service names to their descriptions. The
// trailing "w" in nhoperational24hw is the key the upstream API exposes.
var Services = map[string]string{
	"noperational1h":    "1 hour near-real-time operational data",
	"noperational6h":    "6 hour near-real-time operational data",
	"noperational24h":   "24 hour near-real-time operational data",
	"nhoperational1h":   "1 hour historical operational data",
	"nhoperational6h":   "6 hour historical operational data",
	"nhoperational24hw": "24 hour historical operational data",
}

// ServiceNames returns the recognized service names, sorted.
func ServiceNames() []string {
	names := make([]string, 0, len(Services))
	for name := range Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Station is one cleaned catalog record. Optional metadata stays a pointer
// so that missing values are distinguishable from zeros; Geometry is only
// set for records that carried both coordinates.
type Station struct {
	ID           int64
	Name         string
	Kind         *string // RIVER or RESERVOIR
	Country      string
	CountryID    *string
	ProviderID   *int64
	LocalID      string
	Lat          *float64
	Lon          *float64
	CatchmentKm2 *float64
	DamHeightM   *float64
	RiverKm      *float64
	BasinEN      string
	BasinLocal   string
	RiverEN      string
	RiverLocal   string
	HasRealTime  bool
	HasHistoric  bool
	Geometry     orb.Point // WGS84 lon/lat degrees
}

// Catalog is the ordered station table returned by GetStations. Order
// matches the API response and matters for duplicate detection.
type Catalog struct {
	Stations []Station
}

func (c *Catalog) Len() int {
	return len(c.Stations)
}

// Get returns the station with the given EFAS ID, or nil.
func (c *Catalog) Get(id int64) *Station {
	for i := range c.Stations {
		if c.Stations[i].ID == id {
			return &c.Stations[i]
		}
	}
	return nil
}

// IDs returns the station IDs in table order.
func (c *Catalog) IDs() []int64 {
	ids := make([]int64, 0, len(c.Stations))
	for i := range c.Stations {
		ids = append(ids, c.Stations[i].ID)
	}
	return ids
}

// StationFilter narrows the catalog returned by GetStations. Zero values
// leave the corresponding filter off.
type StationFilter struct {
	Kind        string // "river" or "reservoir"
	CountryIDs  []string
	ProviderIDs []int64
	StationIDs  []int64
	Extent      []float64 // [xmin, ymin, xmax, ymax] in lon/lat degrees
}
