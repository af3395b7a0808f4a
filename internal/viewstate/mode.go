package viewstate

import (
	"fmt"
	"strings"
)

// Mode is the level of detail shown on the map, derived from zoom.
type Mode string

const (
	ModeNation   Mode = "NATION"
	ModeCity     Mode = "CITY"
	ModeDistrict Mode = "DISTRICT"
)

// Modes lists every mode from most zoomed-out to most zoomed-in.
var Modes = []Mode{ModeNation, ModeCity, ModeDistrict}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeNation, ModeCity, ModeDistrict:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }

// Thresholds are the zoom levels at which the mode changes. A zoom equal to a
// threshold belongs to the more zoomed-out mode.
type Thresholds struct {
	Nation int `json:"nation" yaml:"nation" doc:"Zoom at or above which the nation view is shown" example:"10"`
	City   int `json:"city" yaml:"city" doc:"Zoom at or above which the city view is shown" example:"7"`
}

// DefaultThresholds are T_nation=10 and T_city=7.
var DefaultThresholds = Thresholds{Nation: 10, City: 7}

// Validate checks that the city band sits below the nation band.
func (t Thresholds) Validate() error {
	if t.City >= t.Nation {
		return fmt.Errorf("city threshold %d must be below nation threshold %d", t.City, t.Nation)
	}
	return nil
}

// DeriveMode maps a zoom level to a mode. It is total over all ints.
func DeriveMode(zoom int, t Thresholds) Mode {
	switch {
	case zoom >= t.Nation:
		return ModeNation
	case zoom >= t.City:
		return ModeCity
	default:
		return ModeDistrict
	}
}
