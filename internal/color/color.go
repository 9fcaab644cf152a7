// Package color holds the straight-alpha RGBA color used for node colors,
// accumulated surface colors and the final pixels.
package color

import (
	"fmt"
	"math"
	"strconv"
)

// Color is a non-premultiplied 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

func RGBA(r, g, b, a uint8) Color { return Color{R: r, G: g, B: b, A: a} }

func (c Color) Alpha() uint8 { return c.A }

// Over composites c in front of bg: result = c + (1 - c.alpha) * bg.
// An opaque c returns c unchanged and a fully transparent c returns bg.
func (c Color) Over(bg Color) Color {
	switch c.A {
	case 255:
		return c
	case 0:
		return bg
	}
	fa := float64(c.A) / 255
	ba := 1 - fa
	return Color{
		R: channel(fa*float64(c.R) + ba*float64(bg.R)),
		G: channel(fa*float64(c.G) + ba*float64(bg.G)),
		B: channel(fa*float64(c.B) + ba*float64(bg.B)),
		A: channel(255 * (fa + ba*float64(bg.A)/255)),
	}
}

// Darken subtracts amount from every color channel, saturating at 0.
func (c Color) Darken(amount uint8) Color {
	c.R = subSat(c.R, amount)
	c.G = subSat(c.G, amount)
	c.B = subSat(c.B, amount)
	return c
}

// LightenUp adds amount to every color channel, saturating at 255.
func (c Color) LightenUp(amount uint8) Color {
	c.R = addSat(c.R, amount)
	c.G = addSat(c.G, amount)
	c.B = addSat(c.B, amount)
	return c
}

// ParseHex parses "rrggbb" or "rrggbbaa". A missing alpha means opaque.
func ParseHex(s string) (Color, error) {
	if len(s) != 6 && len(s) != 8 {
		return Color{}, fmt.Errorf("color %q: want rrggbb or rrggbbaa", s)
	}
	var out [4]uint8
	out[3] = 255
	for i := 0; i < len(s)/2; i++ {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("color %q: %w", s, err)
		}
		out[i] = uint8(v)
	}
	return Color{R: out[0], G: out[1], B: out[2], A: out[3]}, nil
}

func (c Color) Hex() string {
	if c.A == 255 {
		return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (c Color) String() string { return "#" + c.Hex() }

// UnmarshalText lets yaml and toml decoders read hex strings directly.
func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseHex(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.Hex()), nil }

func channel(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func subSat(a, b uint8) uint8 {
	if a < b {
		return 0
	}
	return a - b
}

func addSat(a, b uint8) uint8 {
	if s := uint16(a) + uint16(b); s < 255 {
		return uint8(s)
	}
	return 255
}
