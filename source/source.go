// Package source holds types shared by the frame sources in its
// subpackages.
package source

import (
	"fmt"
	"strings"
)

// DeviceCap describes a capability of a device.
type DeviceCap struct {
	Type      string // "video/x-raw", "image/jpeg" or "nvarguscamerasrc"
	Width     int
	Height    int
	Framerate int
}

// String returns the capability like "640x480@30fps".
func (c DeviceCap) String() string {
	return fmt.Sprintf("%dx%d@%dfps", c.Width, c.Height, c.Framerate)
}

// Device is a camera device capable of delivering frames.
type Device struct {
	Name string
	ID   string
	Caps []DeviceCap
}

// String returns the device ID and name, and its caps if known.
func (d Device) String() string {
	s := fmt.Sprintf("%s: %s", d.ID, d.Name)
	if len(d.Caps) > 0 {
		l := make([]string, len(d.Caps))
		for i, c := range d.Caps {
			l[i] = c.String()
		}
		s += fmt.Sprintf(" (caps: %s)", strings.Join(l, " "))
	}
	return s
}
