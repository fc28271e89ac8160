package analyzer

import "math"

// hann returns the Hann window coefficient for sample i of size.
func hann(i, size float64) float64 {
	return 0.5 * (1.0 - math.Cos(2.0*math.Pi*i/size))
}

// toDecibels converts a linear magnitude into dB, flooring silence at floorDB.
func toDecibels(mag, floorDB float64) float64 {
	if mag <= 0 {
		return floorDB
	}
	db := 20 * math.Log10(mag)
	if db < floorDB {
		return floorDB
	}
	return db
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
