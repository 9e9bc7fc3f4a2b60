package timetable

import "strings"

// Station is a stop on the network. Distance is measured in km from
// Churchgate, the zero point of the corridor.
type Station struct {
	ID           int
	Name         string
	KmFromOrigin float64
}

// DistanceMap lists every station on the Churchgate-Virar corridor with its
// distance from Churchgate in km.
// Source: https://bhaaratham.com/list-of-stations-mumbai-local-train/
var DistanceMap = map[string]float64{
	"CHURCHGATE": 0, "MARINE LINES": 2, "CHARNI ROAD": 3, "GRANT ROAD": 4,
	"M'BAI CENTRAL(L)": 5, "MAHALAKSHMI": 6, "LOWER PAREL": 8, "PRABHADEVI": 9,
	"DADAR": 11, "MATUNGA ROAD": 11.5, "MAHIM JN.": 12, "BANDRA": 15,
	"KHAR ROAD": 17, "SANTA CRUZ": 18, "VILE PARLE": 20, "ANDHERI": 22,
	"JOGESHWARI": 24, "RAM MANDIR": 25.5, "GOREGAON": 27, "MALAD": 30,
	"KANDIVALI": 32, "BORIVALI": 34, "DAHISAR": 37, "MIRA ROAD": 40,
	"BHAYANDAR": 44, "NAIGAON": 48, "VASAI ROAD": 52, "NALLASOPARA": 56,
	"VIRAR": 60,
}

// NormalizeStationName fixes the station-name inconsistencies that appear in
// published WTT workbooks.
func NormalizeStationName(name string) string {
	name = strings.TrimSpace(name)
	if name == "M'BAI CENTRAL (L)" {
		name = "M'BAI CENTRAL(L)"
	}
	if strings.EqualFold(name, "KANDIVLI") {
		name = "KANDIVALI"
	}
	return name
}
