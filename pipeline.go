package csicam

import (
	"fmt"
	"image"
	"strings"
)

// SensorMode selects one of the native capture modes of the IMX219 CSI
// sensor as exposed by nvarguscamerasrc.
type SensorMode int

// Sensor modes, named after their native resolution and maximum framerate.
const (
	SensorMode3264x2464at21 SensorMode = 0 // 4:3
	SensorMode3264x1848at28 SensorMode = 1 // 16:9
	SensorMode1920x1080at30 SensorMode = 2 // 16:9
	SensorMode1280x720at60  SensorMode = 3 // 16:9
	SensorMode1280x720at120 SensorMode = 4 // 16:9
)

type sensorModeInfo struct {
	width, height int
	framerate     int // Fastest framerate the driver accepts for the mode.
}

// Requesting a framerate above the mode's maximum crashes the argus driver
// and needs a reboot of the board, so these values must be kept exact.
var sensorModes = [...]sensorModeInfo{
	SensorMode3264x2464at21: {3264, 2464, 21},
	SensorMode3264x1848at28: {3264, 1848, 28},
	SensorMode1920x1080at30: {1920, 1080, 30},
	SensorMode1280x720at60:  {1280, 720, 60},
	SensorMode1280x720at120: {1280, 720, 120},
}

// SensorModes returns all valid sensor modes in ascending order.
func SensorModes() []SensorMode {
	r := make([]SensorMode, len(sensorModes))
	for i := range sensorModes {
		r[i] = SensorMode(i)
	}
	return r
}

// Valid returns whether m is a known sensor mode.
func (m SensorMode) Valid() bool {
	return m >= 0 && int(m) < len(sensorModes)
}

// Size returns the native resolution of the mode, or a zero point for an
// invalid mode.
func (m SensorMode) Size() image.Point {
	if !m.Valid() {
		return image.Point{}
	}
	info := sensorModes[m]
	return image.Pt(info.width, info.height)
}

// Framerate returns the maximum framerate for the mode, or 0 for an invalid
// mode.
func (m SensorMode) Framerate() int {
	if !m.Valid() {
		return 0
	}
	return sensorModes[m].framerate
}

// Scaled returns the native resolution divided by div, e.g. Scaled(4) on mode
// 0 gives 816x616. A div below 1 is treated as 1.
func (m SensorMode) Scaled(div int) image.Point {
	if div < 1 {
		div = 1
	}
	return m.Size().Div(div)
}

// String returns a human-readable description, like "3264x2464@21".
func (m SensorMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("invalid sensor mode %d", int(m))
	}
	s := m.Size()
	return fmt.Sprintf("%dx%d@%d", s.X, s.Y, m.Framerate())
}

// FlipMethod is the nvvidconv flip-method property.
type FlipMethod int

// Flip methods as understood by nvvidconv.
const (
	FlipNone             FlipMethod = 0
	FlipCounterClockwise FlipMethod = 1
	FlipRotate180        FlipMethod = 2
	FlipClockwise        FlipMethod = 3
	FlipHorizontal       FlipMethod = 4
	FlipUpperRightDiag   FlipMethod = 5
	FlipVertical         FlipMethod = 6
	FlipUpperLeftDiag    FlipMethod = 7
)

// Descriptor describes a capture pipeline for gstreamer.
type Descriptor interface {
	// String returns the pipeline ending in appsink, as used by
	// applications embedding gstreamer.
	String() string

	// Launch returns the pipeline with the final appsink replaced by sink,
	// for use with gst-launch-1.0.
	Launch(sink string) string

	// FrameSize is the size of the BGR frames the pipeline produces.
	FrameSize() image.Point
}

const appsink = "appsink"

// Pipeline describes a CSI camera capture through nvarguscamerasrc, scaled
// and converted to BGR. A Pipeline is a value; it is never changed after a
// source has been opened with it.
type Pipeline struct {
	SensorID  int
	Mode      SensorMode
	Width     int // Output width after nvvidconv.
	Height    int // Output height after nvvidconv.
	Flip      FlipMethod
	Framerate int // Must not exceed Mode.Framerate().
}

// Ensure Pipeline implements Descriptor.
var _ Descriptor = Pipeline{}

// NewPipeline returns a validated Pipeline running at the maximum framerate
// of the sensor mode.
func NewPipeline(sensorID int, mode SensorMode, width, height int, flip FlipMethod) (Pipeline, error) {
	p := Pipeline{
		SensorID:  sensorID,
		Mode:      mode,
		Width:     width,
		Height:    height,
		Flip:      flip,
		Framerate: mode.Framerate(),
	}
	if err := p.Validate(); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

// Validate checks the pipeline parameters.
func (p Pipeline) Validate() error {
	if p.SensorID < 0 {
		return fmt.Errorf("invalid sensor id %d", p.SensorID)
	}
	if !p.Mode.Valid() {
		return fmt.Errorf("invalid sensor mode %d, need 0-%d", int(p.Mode), len(sensorModes)-1)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", p.Width, p.Height)
	}
	if p.Flip < FlipNone || p.Flip > FlipUpperLeftDiag {
		return fmt.Errorf("invalid flip method %d", int(p.Flip))
	}
	if p.Framerate <= 0 {
		return fmt.Errorf("invalid framerate %d", p.Framerate)
	}
	if limit := p.Mode.Framerate(); p.Framerate > limit {
		return fmt.Errorf("framerate %d too high for sensor mode %s, max %d", p.Framerate, p.Mode, limit)
	}
	return nil
}

// String returns the pipeline for an appsink.
func (p Pipeline) String() string {
	return p.Launch(appsink)
}

// Launch returns the pipeline terminated by sink.
func (p Pipeline) Launch(sink string) string {
	framerate := p.Framerate
	if framerate == 0 {
		framerate = p.Mode.Framerate()
	}
	return fmt.Sprintf("nvarguscamerasrc sensor-id=%d sensor-mode=%d ! "+
		"video/x-raw(memory:NVMM), "+
		"format=(string)NV12, framerate=(fraction)%d/1 ! "+
		"nvvidconv flip-method=%d ! "+
		"video/x-raw, width=(int)%d, height=(int)%d, format=(string)BGRx ! "+
		"videoconvert ! "+
		"video/x-raw, format=(string)BGR ! %s",
		p.SensorID, int(p.Mode), framerate, int(p.Flip), p.Width, p.Height, sink)
}

// FrameSize returns the output size.
func (p Pipeline) FrameSize() image.Point {
	return image.Pt(p.Width, p.Height)
}

// WebcamPipeline describes a V4L2 (USB webcam) capture, scaled and converted
// to BGR.
type WebcamPipeline struct {
	Device string // E.g. /dev/video1.
	Width  int
	Height int
}

// Ensure WebcamPipeline implements Descriptor.
var _ Descriptor = WebcamPipeline{}

// String returns the pipeline for an appsink.
func (p WebcamPipeline) String() string {
	return p.Launch(appsink)
}

// Launch returns the pipeline terminated by sink.
func (p WebcamPipeline) Launch(sink string) string {
	return fmt.Sprintf("v4l2src device=%s ! videoconvert ! videoscale ! "+
		"video/x-raw, width=(int)%d, height=(int)%d, format=(string)BGR ! %s",
		p.Device, p.Width, p.Height, sink)
}

// FrameSize returns the output size.
func (p WebcamPipeline) FrameSize() image.Point {
	return image.Pt(p.Width, p.Height)
}

// LaunchArgs splits a launch description into arguments for gst-launch-1.0,
// which joins its arguments with spaces again before parsing.
func LaunchArgs(desc string) []string {
	return strings.Fields(desc)
}
