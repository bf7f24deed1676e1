//go:build headless

package audio

import "errors"

var errNoOutput = errors.New("built without audio output (headless)")

// OtoFactory is unavailable in headless builds; opening a device fails and
// the pipeline drops audio.
func OtoFactory(float64) DeviceFactory {
	return func(int) (Device, error) {
		return nil, errNoOutput
	}
}
