//go:build rp2040

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

var (
	colorOff     = color.RGBA{}
	colorWaiting = color.RGBA{R: 24, G: 8}
	colorTick    = color.RGBA{G: 24}
	colorTock    = color.RGBA{G: 4}
	colorFault   = color.RGBA{R: 24}
)

// statusLED shows the broadcaster state on one ws2812 pixel: amber while
// waiting for sync, green alternating brightness each second, red after a
// write error
type statusLED struct {
	dev     ws2812.Device
	last    color.RGBA
	written bool
}

// newStatusLED returns nil when pin is negative
func newStatusLED(pin int) *statusLED {
	if pin < 0 {
		return nil
	}
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &statusLED{dev: ws2812.New(p)}
}

// Update redraws the pixel if the state changed
func (s *statusLED) Update() {
	if s == nil {
		return
	}

	c := colorOff
	if device.LEDEnabled() {
		stats := bcast.Stats()
		switch {
		case !bridge.HasSynchronized():
			c = colorWaiting
		case stats.WriteErrors > 0 && stats.Frames == 0:
			c = colorFault
		case stats.LastSecond%2 == 0:
			c = colorTick
		default:
			c = colorTock
		}
	}

	if s.written && c == s.last {
		return
	}
	if err := s.dev.WriteColors([]color.RGBA{c}); err == nil {
		s.last = c
		s.written = true
	}
}
