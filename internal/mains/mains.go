// Package mains works out the local electrical mains frequency from the
// system time zone. The pitch tracker uses it to ignore hum that would
// otherwise be reported as a sustained low note.
package mains

import (
	"math"
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

const (
	// DefaultHz is used whenever the zone or country cannot be resolved;
	// 50Hz is the more common supply globally.
	DefaultHz = 50

	// humToleranceHz is how close a pitch must be to a hum line to be rejected
	humToleranceHz = 1.5

	// humHarmonics is the number of hum lines checked (fundamental upward)
	humHarmonics = 2
)

// Zone returns the IANA name of the local time zone, or "UTC" when it
// cannot be determined.
func Zone() string {
	name, err := tzlocal.RuntimeTZ()
	if err != nil || name == "" {
		return "UTC"
	}
	return name
}

// Frequency returns the local mains frequency in Hz (50 or 60)
func Frequency() int {
	return FrequencyForTimezone(Zone())
}

// FrequencyForTimezone returns the mains frequency for an IANA time zone.
// Zones without a country (UTC, GMT, Etc/*) resolve to DefaultHz.
func FrequencyForTimezone(timezone string) int {
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return DefaultHz
	}

	countries, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return DefaultHz
	}
	country, err := countries.GetCountry(timezone)
	if err != nil {
		return DefaultHz
	}
	return frequencyForCountry(country)
}

// IsHum reports whether pitchHz sits on the mains fundamental or its second
// harmonic. A zero or negative mainsHz disables the check.
func IsHum(pitchHz, mainsHz float64) bool {
	if mainsHz <= 0 || pitchHz <= 0 {
		return false
	}
	for h := 1; h <= humHarmonics; h++ {
		if math.Abs(pitchHz-float64(h)*mainsHz) <= humToleranceHz {
			return true
		}
	}
	return false
}

// frequencyForCountry maps a country name to its supply frequency. Japan is
// split between 50Hz and 60Hz; the Tokyo side is used.
func frequencyForCountry(country string) int {
	if _, ok := sixtyHz[country]; ok {
		return 60
	}
	return DefaultHz
}

// sixtyHz lists countries supplied at 60Hz.
// Source: https://en.wikipedia.org/wiki/Mains_electricity_by_country
var sixtyHz = map[string]struct{}{
	"United States": {}, "Canada": {}, "Mexico": {},
	"Belize": {}, "Costa Rica": {}, "El Salvador": {}, "Guatemala": {},
	"Honduras": {}, "Nicaragua": {}, "Panama": {},
	"Bahamas": {}, "Barbados": {}, "Cayman Islands": {}, "Cuba": {},
	"Dominican Republic": {}, "Haiti": {}, "Jamaica": {}, "Puerto Rico": {},
	"Trinidad and Tobago": {}, "U.S. Virgin Islands": {},
	"Brazil": {}, "Colombia": {}, "Ecuador": {}, "Guyana": {}, "Peru": {},
	"Suriname": {}, "Venezuela": {},
	"South Korea": {}, "Taiwan": {}, "Philippines": {}, "Saudi Arabia": {},
	"Guam": {}, "American Samoa": {}, "Marshall Islands": {}, "Micronesia": {},
	"Palau": {},
}
