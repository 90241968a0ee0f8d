package csicam_test

import (
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/wsmith/csicam"
)

func TestPipelineString(t *testing.T) {
	mode := csicam.SensorMode3264x2464at21
	size := mode.Scaled(4)
	p, err := csicam.NewPipeline(0, mode, size.X, size.Y, csicam.FlipNone)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	exp := "nvarguscamerasrc sensor-id=0 sensor-mode=0 ! " +
		"video/x-raw(memory:NVMM), format=(string)NV12, framerate=(fraction)21/1 ! " +
		"nvvidconv flip-method=0 ! " +
		"video/x-raw, width=(int)816, height=(int)616, format=(string)BGRx ! " +
		"videoconvert ! video/x-raw, format=(string)BGR ! appsink"
	if s := p.String(); s != exp {
		t.Fatalf("pipeline string, got\n\t%s\nexpected\n\t%s", s, exp)
	}
	if p.FrameSize() != image.Pt(816, 616) {
		t.Fatalf("frame size, got %v", p.FrameSize())
	}

	launch := p.Launch("fdsink fd=1")
	if !strings.HasSuffix(launch, "format=(string)BGR ! fdsink fd=1") {
		t.Fatalf("launch string, got %s", launch)
	}
}

func TestPipelineModes(t *testing.T) {
	const format = "nvarguscamerasrc sensor-id=1 sensor-mode=%d ! " +
		"video/x-raw(memory:NVMM), format=(string)NV12, framerate=(fraction)%d/1 ! " +
		"nvvidconv flip-method=2 ! " +
		"video/x-raw, width=(int)640, height=(int)480, format=(string)BGRx ! " +
		"videoconvert ! video/x-raw, format=(string)BGR ! appsink"
	modes := []struct {
		mode      csicam.SensorMode
		size      image.Point
		framerate int
		name      string
		pipeline  string
	}{
		{csicam.SensorMode3264x2464at21, image.Pt(3264, 2464), 21, "3264x2464@21", fmt.Sprintf(format, 0, 21)},
		{csicam.SensorMode3264x1848at28, image.Pt(3264, 1848), 28, "3264x1848@28", fmt.Sprintf(format, 1, 28)},
		{csicam.SensorMode1920x1080at30, image.Pt(1920, 1080), 30, "1920x1080@30", fmt.Sprintf(format, 2, 30)},
		{csicam.SensorMode1280x720at60, image.Pt(1280, 720), 60, "1280x720@60", fmt.Sprintf(format, 3, 60)},
		{csicam.SensorMode1280x720at120, image.Pt(1280, 720), 120, "1280x720@120", fmt.Sprintf(format, 4, 120)},
	}
	if n := len(csicam.SensorModes()); n != len(modes) {
		t.Fatalf("sensor modes, got %d, expected %d", n, len(modes))
	}
	for i, m := range modes {
		if csicam.SensorModes()[i] != m.mode {
			t.Fatalf("sensor mode %d out of order", i)
		}
		if m.mode.Size() != m.size || m.mode.Framerate() != m.framerate || m.mode.String() != m.name {
			t.Fatalf("mode %d, got %v %d %s, expected %v %d %s", i, m.mode.Size(), m.mode.Framerate(), m.mode, m.size, m.framerate, m.name)
		}
		p, err := csicam.NewPipeline(1, m.mode, 640, 480, csicam.FlipRotate180)
		if err != nil {
			t.Fatalf("new pipeline for mode %d: %v", i, err)
		}
		if s := p.String(); s != m.pipeline {
			t.Fatalf("pipeline for mode %d, got\n\t%s\nexpected\n\t%s", i, s, m.pipeline)
		}
	}
}

func TestPipelineValidate(t *testing.T) {
	if _, err := csicam.NewPipeline(0, csicam.SensorMode(5), 640, 480, csicam.FlipNone); err == nil {
		t.Fatalf("missing error for mode 5")
	}
	if _, err := csicam.NewPipeline(0, csicam.SensorMode(-1), 640, 480, csicam.FlipNone); err == nil {
		t.Fatalf("missing error for mode -1")
	}
	if _, err := csicam.NewPipeline(-1, csicam.SensorMode1920x1080at30, 640, 480, csicam.FlipNone); err == nil {
		t.Fatalf("missing error for negative sensor id")
	}
	if _, err := csicam.NewPipeline(0, csicam.SensorMode1920x1080at30, 0, 480, csicam.FlipNone); err == nil {
		t.Fatalf("missing error for zero width")
	}
	if _, err := csicam.NewPipeline(0, csicam.SensorMode1920x1080at30, 640, 480, csicam.FlipMethod(8)); err == nil {
		t.Fatalf("missing error for flip method 8")
	}

	p, err := csicam.NewPipeline(0, csicam.SensorMode1280x720at60, 1280, 720, csicam.FlipNone)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Framerate = 30
	if err := p.Validate(); err != nil {
		t.Fatalf("framerate below maximum: %v", err)
	}
	p.Framerate = 61
	if err := p.Validate(); err == nil {
		t.Fatalf("missing error for framerate above maximum")
	}
}

func TestScaled(t *testing.T) {
	m := csicam.SensorMode3264x2464at21
	if s := m.Scaled(4); s != image.Pt(816, 616) {
		t.Fatalf("scaled by 4, got %v", s)
	}
	if s := m.Scaled(0); s != image.Pt(3264, 2464) {
		t.Fatalf("scaled by 0, got %v", s)
	}
	if s := csicam.SensorMode(7).Scaled(2); s != (image.Point{}) {
		t.Fatalf("scaled invalid mode, got %v", s)
	}
}

func TestWebcamPipeline(t *testing.T) {
	p := csicam.WebcamPipeline{Device: "/dev/video1", Width: 640, Height: 480}
	exp := "v4l2src device=/dev/video1 ! videoconvert ! videoscale ! " +
		"video/x-raw, width=(int)640, height=(int)480, format=(string)BGR ! appsink"
	if s := p.String(); s != exp {
		t.Fatalf("webcam pipeline, got %s, expected %s", s, exp)
	}
	args := csicam.LaunchArgs(p.Launch("fdsink fd=1"))
	if args[0] != "v4l2src" || args[len(args)-1] != "fd=1" {
		t.Fatalf("launch args, got %q", args)
	}
}
