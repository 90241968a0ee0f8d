package cli

import (
	"flag"
	"strings"
	"testing"

	"github.com/wsmith/csicam"
)

func TestCameraFlags(t *testing.T) {
	var f CameraFlags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.Register(fs)
	if err := fs.Parse([]string{"-sensor-id", "1", "-mode", "2", "-scale", "2", "-flip", "2"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, err := f.Pipeline()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if p.Width != 960 || p.Height != 540 || p.Framerate != 30 {
		t.Fatalf("pipeline, got %dx%d@%d, expected 960x540@30", p.Width, p.Height, p.Framerate)
	}
	if !strings.Contains(p.String(), "sensor-id=1 sensor-mode=2 ") {
		t.Fatalf("pipeline string, got %s", p)
	}
}

func TestCameraFlagsDefaults(t *testing.T) {
	var f CameraFlags
	f.Register(flag.NewFlagSet("test", flag.ContinueOnError))
	p, err := f.Pipeline()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if p.Width != 816 || p.Height != 616 || p.Framerate != 21 {
		t.Fatalf("default pipeline, got %dx%d@%d, expected 816x616@21", p.Width, p.Height, p.Framerate)
	}
}

func TestCameraFlagsRegisterDefaults(t *testing.T) {
	var f CameraFlags
	f.RegisterDefaults(flag.NewFlagSet("test", flag.ContinueOnError), csicam.SensorMode1280x720at60, 2)
	p, err := f.Pipeline()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if p.Mode != csicam.SensorMode1280x720at60 || p.Width != 640 || p.Height != 360 || p.Framerate != 60 {
		t.Fatalf("pipeline, got mode %d %dx%d@%d, expected mode 3 640x360@60", p.Mode, p.Width, p.Height, p.Framerate)
	}
}

func TestCameraFlagsErrors(t *testing.T) {
	f := CameraFlags{Mode: 5, Scale: 1}
	if _, err := f.Pipeline(); err == nil {
		t.Fatalf("missing error for mode 5")
	}
	f = CameraFlags{Mode: 3, Scale: 2, Framerate: 90}
	if _, err := f.Pipeline(); err == nil {
		t.Fatalf("missing error for framerate above mode maximum")
	}
	f = CameraFlags{Mode: 3, Scale: 2, Kind: "bogus"}
	if _, err := f.Open(false); err == nil {
		t.Fatalf("missing error for unknown source kind")
	}
	f = CameraFlags{Kind: KindRemote}
	if _, err := f.Open(false); err == nil {
		t.Fatalf("missing error for remote source without url")
	}
}

func TestWebcamFlags(t *testing.T) {
	var f WebcamFlags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.Register(fs, "webcam-")
	if err := fs.Parse([]string{"-webcam-device", "/dev/video3", "-webcam-width", "0"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Device != "/dev/video3" || f.Kind != KindRaw {
		t.Fatalf("webcam flags, got %+v", f)
	}
	if _, err := f.Open(false); err == nil {
		t.Fatalf("missing error for zero width")
	}
}
