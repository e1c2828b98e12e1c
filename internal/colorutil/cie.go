// Package colorutil converts sRGB colors to the CIE xy chromaticity
// coordinates the Hue bridge's lighting API expects, per spec §6: a
// gamma-corrected sRGB to XYZ transform using the standard D65
// coefficient matrix, followed by x = X/(X+Y+Z), y = Y/(X+Y+Z).
package colorutil

import "math"

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

// ToCIE converts c to Hue's (x, y) chromaticity coordinate space.
func (c RGB) ToCIE() (x, y float64) {
	red := gammaCorrect(float64(c.R) / 255)
	green := gammaCorrect(float64(c.G) / 255)
	blue := gammaCorrect(float64(c.B) / 255)

	// Wide RGB D65 conversion formula, the published Philips Hue
	// coefficient rows.
	X := red*0.649926 + green*0.103455 + blue*0.197109
	Y := red*0.234327 + green*0.743075 + blue*0.022598
	Z := red*0.0000000 + green*0.053077 + blue*1.035763

	sum := X + Y + Z
	if sum == 0 {
		return 0, 0
	}
	return X / sum, Y / sum
}

func gammaCorrect(c float64) float64 {
	if c > 0.04045 {
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return c / 12.92
}
