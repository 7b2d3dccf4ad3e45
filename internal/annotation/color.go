package annotation

import (
	"fmt"
	"hash/fnv"
	"math"
)

// DeriveColor deterministically maps a code value to a hex color. Codes
// without an author-assigned color get the same color on every reload.
func DeriveColor(value string) string {
	h := fnv.New32a()
	h.Write([]byte(value))
	hue := float64(h.Sum32() % 360)
	r, g, b := hslToRGB(hue, 0.60, 0.55)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// hslToRGB converts hue [0,360), saturation and lightness [0,1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return uint8(math.Round((r + m) * 255)), uint8(math.Round((g + m) * 255)), uint8(math.Round((b + m) * 255))
}
