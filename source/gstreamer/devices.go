// Package gstreamer implements frame sources with the gstreamer tools.
//
// RawSource reads raw BGR frames from gst-launch-1.0 over a pipe. JPEGSource
// lets gstreamer write JPEG files to a temporary directory and decodes them,
// which costs CPU but keeps the pipe traffic low for large frames.
package gstreamer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wsmith/csicam/source"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y gstreamer1.0-tools gstreamer1.0-plugins-good gstreamer1.0-plugins-base gstreamer1.0-plugins-base-apps")

type device struct {
	ID          string
	Name        string
	DeviceClass string
	RawCaps     []string
	inCapMode   bool
}

var widthRegexp = regexp.MustCompile("width=(?:\\(int\\))?([0-9]+)[^0-9]")
var heightRegexp = regexp.MustCompile("height=(?:\\(int\\))?([0-9]+)[^0-9]")
var framerateRegexp = regexp.MustCompile("framerate=(?:\\(fraction\\))?([0-9]+)[^0-9]")

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// ListDevices returns the video sources gstreamer knows about, with the raw
// video caps of each, closest to 640x480 first.
// ListDevices returns an error if no devices are available.
func ListDevices() ([]source.Device, error) {
	cmd := exec.Command("gst-device-monitor-1.0", "Video/Source")
	buf, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("listing devices using gst-device-monitor-1.0: %w", err)
	}
	devs, err := parseDeviceMonitor(buf)
	if err != nil {
		return nil, err
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("no devices found")
	}
	return devs, nil
}

func parseDeviceMonitor(buf []byte) ([]source.Device, error) {
	var r []device
	var d *device
	// Devices without a path cannot be opened.
	flush := func() {
		if d != nil && d.ID != "" {
			r = append(r, *d)
		}
	}
	b := bufio.NewScanner(bytes.NewReader(buf))
	for b.Scan() {
		s := strings.TrimSpace(b.Text())
		if s == "" {
			continue
		}
		if s == "Device found:" {
			flush()
			d = &device{RawCaps: []string{}}
			continue
		}

		if d == nil {
			continue
		}

		if strings.HasPrefix(s, "name  :") {
			d.Name = strings.TrimSpace(strings.SplitN(s, ":", 2)[1])
			continue
		}
		if strings.HasPrefix(s, "class :") {
			d.DeviceClass = strings.TrimSpace(strings.SplitN(s, ":", 2)[1])
			continue
		}
		if strings.HasPrefix(s, "caps  :") {
			cap := strings.TrimSpace(strings.SplitN(s, ":", 2)[1])
			d.RawCaps = append(d.RawCaps, cap)
			d.inCapMode = true
			continue
		}
		if strings.HasPrefix(s, "properties:") {
			d.inCapMode = false
			continue
		}
		if d.inCapMode {
			d.RawCaps = append(d.RawCaps, s)
		}
		if strings.HasPrefix(s, "device.path =") {
			d.ID = strings.TrimSpace(strings.SplitN(s, "=", 2)[1])
		}
	}
	if err := b.Err(); err != nil {
		return nil, err
	}

	flush()

	var devs []source.Device
	for _, d := range r {
		if d.DeviceClass != "Video/Source" {
			continue
		}
		var caps []source.DeviceCap
		for _, rc := range d.RawCaps {
			var typ string
			switch {
			case strings.HasPrefix(rc, "video/x-raw"):
				typ = "video/x-raw"
			case strings.HasPrefix(rc, "image/jpeg"):
				typ = "image/jpeg"
			default:
				continue
			}
			// Append a separator so the regexps match a value at the end.
			rc += ";"
			mw := widthRegexp.FindStringSubmatch(rc)
			mh := heightRegexp.FindStringSubmatch(rc)
			mf := framerateRegexp.FindStringSubmatch(rc)
			if mw == nil || mh == nil || mf == nil {
				continue
			}
			width, werr := strconv.ParseInt(mw[1], 10, 32)
			height, herr := strconv.ParseInt(mh[1], 10, 32)
			framerate, ferr := strconv.ParseInt(mf[1], 10, 32)
			if werr != nil || herr != nil || ferr != nil {
				continue
			}
			if width != 0 && height != 0 && framerate != 0 {
				caps = append(caps, source.DeviceCap{
					Type:      typ,
					Width:     int(width),
					Height:    int(height),
					Framerate: int(framerate),
				})
			}
		}
		if len(caps) == 0 {
			continue
		}

		distance := func(a source.DeviceCap) int {
			return abs(a.Width-640)*abs(a.Height-480) + abs(a.Width-640) + abs(a.Height-480)
		}

		sort.SliceStable(caps, func(i, j int) bool {
			return distance(caps[i]) < distance(caps[j])
		})

		devs = append(devs, source.Device{
			ID:   d.ID,
			Name: d.Name,
			Caps: caps,
		})
	}
	return devs, nil
}
