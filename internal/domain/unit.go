package domain

import "fmt"

// Unit is a physical unit attached to a value.
type Unit string

const (
	UnitCentimeter Unit = "cm"
	UnitMeter      Unit = "m"
	// UnitMillimeter is a precipitation depth accumulated over the sampling interval.
	UnitMillimeter Unit = "mm"
	// UnitKilogramPerSquareMeter is the MOSMIX precipitation unit, numerically equal to mm.
	UnitKilogramPerSquareMeter Unit = "kg/m2"
)

// conversionFactors lists every supported conversion. A pair that is not
// listed cannot be converted.
var conversionFactors = map[Unit]map[Unit]float64{
	UnitCentimeter:             {UnitMeter: 0.01, UnitMillimeter: 10},
	UnitMeter:                  {UnitCentimeter: 100, UnitMillimeter: 1000},
	UnitMillimeter:             {UnitCentimeter: 0.1, UnitMeter: 0.001, UnitKilogramPerSquareMeter: 1},
	UnitKilogramPerSquareMeter: {UnitMillimeter: 1},
}

// ConversionFactor returns the multiplier turning a value in from into a value in to.
func ConversionFactor(from, to Unit) (float64, error) {
	if from == to {
		return 1, nil
	}
	if f, ok := conversionFactors[from][to]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("no conversion from %q to %q", from, to)
}

// ParseUnit returns the Unit named by s. Upstream spellings are accepted.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "cm", "CM":
		return UnitCentimeter, nil
	case "m", "M":
		return UnitMeter, nil
	case "mm", "MM":
		return UnitMillimeter, nil
	case "kg/m2", "kg / m2", "kg/m^2":
		return UnitKilogramPerSquareMeter, nil
	default:
		return "", fmt.Errorf("unknown unit %q", s)
	}
}
