package badge

import (
	"fmt"
	"image"
	"image/color"
)

// Layout describes the geometry of a badge template revision.
// Photos holds the top-left corner of each square photo slot.
type Layout struct {
	Name      string
	Width     int
	Height    int
	PhotoSize int
	Photos    []image.Point

	// Text baseline for the name; position and company follow at fixed offsets.
	TextY       float64
	LineSpacing float64
	NameSize    float64
	DetailSize  float64
	TextColor   color.Color
	Background  color.Color
	AccentColor color.Color
}

const (
	LayoutSingle = "single"
	LayoutDual   = "dual"
)

var layouts = map[string]Layout{
	LayoutSingle: {
		Name:        LayoutSingle,
		Width:       1000,
		Height:      1500,
		PhotoSize:   600,
		Photos:      []image.Point{{X: 200, Y: 260}},
		TextY:       1000,
		LineSpacing: 100,
		NameSize:    80,
		DetailSize:  40,
		TextColor:   color.White,
		Background:  color.NRGBA{R: 0x14, G: 0x1b, B: 0x2d, A: 0xff},
		AccentColor: color.NRGBA{R: 0xe9, G: 0x45, B: 0x60, A: 0xff},
	},
	LayoutDual: {
		Name:        LayoutDual,
		Width:       2000,
		Height:      1400,
		PhotoSize:   500,
		Photos:      []image.Point{{X: 250, Y: 220}, {X: 1250, Y: 220}},
		TextY:       940,
		LineSpacing: 100,
		NameSize:    80,
		DetailSize:  40,
		TextColor:   color.White,
		Background:  color.NRGBA{R: 0x14, G: 0x1b, B: 0x2d, A: 0xff},
		AccentColor: color.NRGBA{R: 0xe9, G: 0x45, B: 0x60, A: 0xff},
	},
}

// LayoutByName returns a registered layout
func LayoutByName(name string) (Layout, error) {
	l, ok := layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown badge layout: %s", name)
	}
	return l, nil
}
