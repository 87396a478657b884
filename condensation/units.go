// Package condensation computes the highest humidifier setpoint that keeps the
// indoor dewpoint safely below the temperature of the window glass.
package condensation

import "math"

// round1 rounds to one decimal place, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ToCelsius converts the given Fahrenheit temperature to Celsius, rounded to 0.1 degree.
func ToCelsius(tempF float64) float64 {
	return round1((tempF - 32.0) / 1.8)
}

// ToFahrenheit converts the given Celsius temperature to Fahrenheit, rounded to 0.1 degree.
func ToFahrenheit(tempC float64) float64 {
	return round1(tempC*1.8 + 32.0)
}
