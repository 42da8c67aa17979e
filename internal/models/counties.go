// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

import "fmt"

// CountyNames maps Trafikverket county numbers to county names. The numbering
// has gaps (2, 11, 15, 16 are historical codes no longer in use).
var CountyNames = map[int]string{
	1:  "Stockholm",
	3:  "Uppsala",
	4:  "Södermanland",
	5:  "Östergötland",
	6:  "Jönköping",
	7:  "Kronoberg",
	8:  "Kalmar",
	9:  "Gotland",
	10: "Blekinge",
	12: "Skåne",
	13: "Halland",
	14: "Västra Götaland",
	17: "Värmland",
	18: "Örebro",
	19: "Västmanland",
	20: "Dalarna",
	21: "Gävleborg",
	22: "Västernorrland",
	23: "Jämtland",
	24: "Västerbotten",
	25: "Norrbotten",
}

// CountyName returns the display name for a county number, or "Län <n>" for
// numbers outside the known set.
func CountyName(no int) string {
	if name, ok := CountyNames[no]; ok {
		return name
	}
	return fmt.Sprintf("Län %d", no)
}

// ValidCounty reports whether no is a known Trafikverket county number.
func ValidCounty(no int) bool {
	_, ok := CountyNames[no]
	return ok
}
