package condensation

import "math"

const magnusBasePressure = 6.1078 // hPa

// magnusCoefficients returns the Magnus (a, b) pair for the given Celsius value.
// Over water and over ice use different pairs.
func magnusCoefficients(c float64) (a, b float64) {
	if c >= 0 {
		return 7.5, 237.3
	}
	return 7.6, 240.7
}

func saturationPressure(c float64) float64 {
	a, b := magnusCoefficients(c)
	return magnusBasePressure * math.Pow(10, (a*c)/(b+c))
}

// DewpointC calculates the dew point (Celsius) for the given temperature (Celsius)
// and relative humidity percentage (0-100, not 0.0-1.0). The result is rounded to
// 0.1 degree.
//
// Humidity must be greater than zero; callers validate before calling.
func DewpointC(tempC, relH float64) float64 {
	a, b := magnusCoefficients(tempC)
	actual := relH / 100 * saturationPressure(tempC)
	v := math.Log10(actual / magnusBasePressure)
	return round1(b * v / (a - v))
}

// HumidityFromDewpointC calculates the relative humidity percentage at which air at
// tempC has the given dew point. The result is rounded to 0.1.
func HumidityFromDewpointC(tempC, dewpointC float64) float64 {
	return round1(100 * saturationPressure(dewpointC) / saturationPressure(tempC))
}

// DewpointF is DewpointC for a Fahrenheit temperature, converted back to Fahrenheit.
func DewpointF(tempF, relH float64) float64 {
	return ToFahrenheit(DewpointC(ToCelsius(tempF), relH))
}
