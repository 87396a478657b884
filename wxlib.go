package main

import "github.com/cdzombak/libwx"

// OutdoorDewPointF calculates the dew point for the given outdoor temperature (in
// Fahrenheit) and relative humidity percentage (an integer 0-100).
func OutdoorDewPointF(tempF float64, relH int) float64 {
	return float64(libwx.DewPointF(libwx.TempF(tempF), libwx.ClampedRelHumidity(relH)).Unwrap())
}

// IndoorHumidityRecommendation returns the generic maximum recommended indoor
// relative humidity for the given outdoor temperature (in degrees F). It ignores
// indoor conditions and is recorded next to the policy's own target for comparison.
func IndoorHumidityRecommendation(outdoorTempF float64) int {
	return int(libwx.IndoorHumidityRecommendationF(libwx.TempF(outdoorTempF)).Unwrap())
}
