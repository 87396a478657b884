package main

import (
	"fmt"
	"strconv"
	"strings"

	"condensation-guard/condensation"
)

func fmtValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// statusLine renders the one-line run summary: the inputs, computed dew points,
// the previous target, and the outcome (NEW_TARGET_HUMIDITY, OK, or DATA_ERROR).
func statusLine(in condensation.Inputs, res *condensation.Result, evalErr error) string {
	var sb strings.Builder

	p := in.Primary
	fmt.Fprintf(&sb, "THERMOSTAT(temp=%sF, dewpoint=%sF, humidity=%s%%, target=%s%%)",
		fmtValue(p.TemperatureF), fmtValue(p.DewpointF()), fmtValue(p.Humidity), fmtValue(p.TargetHumidity))

	if s := in.Secondary; s != nil {
		fmt.Fprintf(&sb, " - THERMOSTAT2(temp=%sF, dewpoint=%sF, humidity=%s%%)",
			fmtValue(s.TemperatureF), fmtValue(s.DewpointF()), fmtValue(s.Humidity))
	}

	o := in.Outside
	fmt.Fprintf(&sb, " - OUTSIDE(temp=%sF, dewpoint=%sF, humidity=%s%%)",
		fmtValue(o.TemperatureF), fmtValue(o.DewpointF), fmtValue(o.Humidity))

	switch {
	case evalErr != nil || res == nil:
		sb.WriteString(" - DATA_ERROR")
	case res.Changed:
		fmt.Fprintf(&sb, " - NEW_TARGET_HUMIDITY=%d%%", res.RecommendedPct)
	default:
		sb.WriteString(" - OK")
	}
	return sb.String()
}
