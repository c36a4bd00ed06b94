package domain

const (
	kgToLb  = 2.2046226218
	ozToML  = 29.5735295625
	literML = 1000.0
)

// ConvertWeight converts a weight value between "kg" and "lb".
// Returns v unchanged if from == to or if the units are unrecognised.
func ConvertWeight(v float64, from, to string) float64 {
	if from == to {
		return v
	}
	if from == "kg" && to == "lb" {
		return v * kgToLb
	}
	if from == "lb" && to == "kg" {
		return v / kgToLb
	}
	return v
}

// ConvertVolume converts a liquid volume between "ml", "oz" and "l".
// Returns v unchanged if from == to or if the units are unrecognised.
func ConvertVolume(v float64, from, to string) float64 {
	if from == to {
		return v
	}
	ml, ok := toMilliliters(v, from)
	if !ok {
		return v
	}
	switch to {
	case "ml":
		return ml
	case "oz":
		return ml / ozToML
	case "l":
		return ml / literML
	}
	return v
}

func toMilliliters(v float64, unit string) (float64, bool) {
	switch unit {
	case "ml":
		return v, true
	case "oz":
		return v * ozToML, true
	case "l":
		return v * literML, true
	}
	return 0, false
}
