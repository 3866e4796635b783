//go:build linux

package paddle

import "github.com/davecheney/gpio"

// openInput exports pin n through sysfs as an input.
func openInput(n int) (Pin, error) {
	return gpio.OpenPin(n, gpio.ModeInput)
}
