package gps

import (
	"math"
	"strconv"
	"strings"
)

// fix is a position decoded from one NMEA sentence.
type fix struct {
	Latitude  float64
	Longitude float64
}

// parseSentence decodes RMC and GGA sentences. ok is false for other
// sentence types, bad checksums and sentences without a valid fix.
func parseSentence(line string) (f fix, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") || !validChecksum(line) {
		return fix{}, false
	}
	parts := splitSentence(line)
	if len(parts) == 0 || len(parts[0]) < 5 {
		return fix{}, false
	}

	// Talker prefix (GP, GN, GL, ...) is ignored.
	switch parts[0][2:] {
	case "RMC":
		// RMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,...
		if len(parts) < 7 || parts[2] != "A" {
			return fix{}, false
		}
		return coords(parts[3], parts[4], parts[5], parts[6])
	case "GGA":
		// GGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,q,...
		if len(parts) < 7 {
			return fix{}, false
		}
		if q, err := strconv.Atoi(parts[6]); err != nil || q == 0 {
			return fix{}, false
		}
		return coords(parts[2], parts[3], parts[4], parts[5])
	default:
		return fix{}, false
	}
}

func coords(lat, latDir, lon, lonDir string) (fix, bool) {
	la, ok1 := parseCoord(lat, latDir)
	lo, ok2 := parseCoord(lon, lonDir)
	if !ok1 || !ok2 {
		return fix{}, false
	}
	return fix{Latitude: la, Longitude: lo}, true
}

// splitSentence strips the leading $ and the checksum suffix.
func splitSentence(line string) []string {
	if idx := strings.Index(line, "*"); idx >= 0 {
		line = line[:idx]
	}
	return strings.Split(strings.TrimPrefix(line, "$"), ",")
}

// parseCoord converts NMEA ddmm.mmmm to signed decimal degrees.
func parseCoord(raw, dir string) (float64, bool) {
	if raw == "" || dir == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, false
	}
	deg := math.Floor(val / 100)
	result := deg + (val-deg*100)/60

	switch dir {
	case "S", "W":
		result = -result
	case "N", "E":
	default:
		return 0, false
	}
	return result, true
}

// validChecksum checks the XOR checksum after *.
func validChecksum(line string) bool {
	idx := strings.Index(line, "*")
	if idx < 1 || idx+3 > len(line) {
		return false
	}
	var calc byte
	for i := 1; i < idx; i++ {
		calc ^= line[i]
	}
	expected, err := strconv.ParseUint(line[idx+1:idx+3], 16, 8)
	if err != nil {
		return false
	}
	return calc == byte(expected)
}
