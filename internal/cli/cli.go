// Package cli has the flags and source setup shared by the commands.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wsmith/csicam"
	"github.com/wsmith/csicam/display/web"
	"github.com/wsmith/csicam/source/ffmpeg"
	"github.com/wsmith/csicam/source/gstreamer"
	"github.com/wsmith/csicam/source/remote"
	"github.com/wsmith/csicam/source/v4l"
)

// Source kinds for the -source flag.
const (
	KindRaw    = "raw"    // gst-launch writing BGR frames to stdout.
	KindJPEG   = "jpeg"   // gst-launch writing JPEG files to a temp dir.
	KindV4L    = "v4l"    // Webcams only, read directly without gstreamer.
	KindFFmpeg = "ffmpeg" // Webcams only, ffmpeg writing RGBA frames to stdout.
	KindRemote = "remote" // MJPEG over HTTP, see -url.
)

// CameraFlags configure a CSI camera.
type CameraFlags struct {
	SensorID  int
	Mode      int
	Scale     int
	Flip      int
	Framerate int
	Kind      string
	URL       string
}

// Register adds the camera flags to fs, defaulting to the full sensor at a
// quarter of its size.
func (f *CameraFlags) Register(fs *flag.FlagSet) {
	f.RegisterDefaults(fs, csicam.SensorMode3264x2464at21, 4)
}

// RegisterDefaults adds the camera flags to fs with the given default mode
// and scale.
func (f *CameraFlags) RegisterDefaults(fs *flag.FlagSet, mode csicam.SensorMode, scale int) {
	fs.IntVar(&f.SensorID, "sensor-id", 0, "CSI sensor to capture from")
	fs.IntVar(&f.Mode, "mode", int(mode), "sensor mode: "+modeHelp())
	fs.IntVar(&f.Scale, "scale", scale, "divide the native size of the sensor mode by this for the output size")
	fs.IntVar(&f.Flip, "flip", int(csicam.FlipNone), "nvvidconv flip method, 0-7")
	fs.IntVar(&f.Framerate, "framerate", 0, "capture framerate, at most and by default the maximum of the sensor mode")
	fs.StringVar(&f.Kind, "source", KindRaw, "how frames are read from gstreamer: raw or jpeg; or remote to read -url")
	fs.StringVar(&f.URL, "url", "", "MJPEG stream to read with -source remote, e.g. http://jetson:8080/stream")
}

func modeHelp() string {
	var l []string
	for _, m := range csicam.SensorModes() {
		l = append(l, fmt.Sprintf("%d=%s", int(m), m))
	}
	return strings.Join(l, ", ")
}

// Pipeline returns the validated pipeline for the flags.
func (f *CameraFlags) Pipeline() (csicam.Pipeline, error) {
	mode := csicam.SensorMode(f.Mode)
	if !mode.Valid() {
		return csicam.Pipeline{}, fmt.Errorf("invalid sensor mode %d, need one of %s", f.Mode, modeHelp())
	}
	size := mode.Scaled(f.Scale)
	p, err := csicam.NewPipeline(f.SensorID, mode, size.X, size.Y, csicam.FlipMethod(f.Flip))
	if err != nil {
		return csicam.Pipeline{}, err
	}
	if f.Framerate != 0 {
		p.Framerate = f.Framerate
		if err := p.Validate(); err != nil {
			return csicam.Pipeline{}, err
		}
	}
	return p, nil
}

// Open opens the CSI camera source for the flags.
func (f *CameraFlags) Open(verbose bool) (csicam.Source, error) {
	if f.Kind == KindRemote {
		return openRemote(f.URL, verbose)
	}
	p, err := f.Pipeline()
	if err != nil {
		return nil, err
	}
	if verbose {
		log.Printf("pipeline: %s", p)
	}
	return OpenGstreamer(p, f.Kind, verbose)
}

// WebcamFlags configure a USB webcam.
type WebcamFlags struct {
	Device string
	Width  int
	Height int
	Kind   string
	URL    string
}

// Register adds the webcam flags to fs. With prefix, e.g. "webcam-", the
// flags can be combined with CameraFlags.
func (f *WebcamFlags) Register(fs *flag.FlagSet, prefix string) {
	fs.StringVar(&f.Device, prefix+"device", "/dev/video1", "webcam device")
	fs.IntVar(&f.Width, prefix+"width", 640, "webcam frame width")
	fs.IntVar(&f.Height, prefix+"height", 480, "webcam frame height")
	fs.StringVar(&f.Kind, prefix+"source", KindRaw, "how webcam frames are read: raw or jpeg through gstreamer, v4l directly, ffmpeg, or remote to read -"+prefix+"url")
	fs.StringVar(&f.URL, prefix+"url", "", "MJPEG stream to read with -"+prefix+"source remote")
}

// Open opens the webcam source for the flags.
func (f *WebcamFlags) Open(verbose bool) (csicam.Source, error) {
	switch f.Kind {
	case KindV4L:
		src, err := v4l.Open(f.Device, &v4l.Opts{Width: f.Width, Height: f.Height, Verbose: verbose})
		if err != nil {
			return nil, err
		}
		return src, nil
	case KindFFmpeg:
		src, err := ffmpeg.Open(f.Device, &ffmpeg.Opts{Width: f.Width, Height: f.Height, Verbose: verbose})
		if err != nil {
			return nil, err
		}
		return src, nil
	case KindRemote:
		return openRemote(f.URL, verbose)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid webcam size %dx%d", f.Width, f.Height)
	}
	p := csicam.WebcamPipeline{Device: f.Device, Width: f.Width, Height: f.Height}
	return OpenGstreamer(p, f.Kind, verbose)
}

// OpenGstreamer starts a gstreamer source of the given kind for desc.
func OpenGstreamer(desc csicam.Descriptor, kind string, verbose bool) (csicam.Source, error) {
	opts := &gstreamer.Opts{Verbose: verbose}
	switch kind {
	case KindRaw:
		src, err := gstreamer.NewRawSource(desc, opts)
		if err != nil {
			return nil, err
		}
		return src, nil
	case KindJPEG:
		src, err := gstreamer.NewJPEGSource(desc, opts)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown source %q, need %s or %s", kind, KindRaw, KindJPEG)
}

func openRemote(url string, verbose bool) (csicam.Source, error) {
	if url == "" {
		return nil, fmt.Errorf("remote source needs an url")
	}
	src, err := remote.Open(url, &remote.Opts{Verbose: verbose})
	if err != nil {
		return nil, err
	}
	return src, nil
}

// PrintDevices writes the capture devices to w. Devices are listed with
// gstreamer, which reports their caps, or else with v4l2-ctl, or else by
// probing V4L2 directly.
func PrintDevices(w io.Writer) error {
	devs, err := gstreamer.ListDevices()
	if err != nil {
		log.Printf("%v", err)
		devs, err = ffmpeg.ListDevices()
	}
	if err != nil {
		log.Printf("%v", err)
		devs = v4l.FindDevices()
		if len(devs) == 0 {
			return fmt.Errorf("no devices found")
		}
	}
	for _, dev := range devs {
		fmt.Fprintln(w, dev)
	}
	return nil
}

// Window starts a web display listening on addr.
func Window(title, addr string, status func() any, verbose bool) (*web.Server, error) {
	d := web.New(title, &web.Opts{Status: status, Verbose: verbose})
	a, err := d.Listen(addr)
	if err != nil {
		return nil, err
	}
	log.Printf("%s: open http://%s/ in a browser", title, a)
	return d, nil
}

// Signals returns a channel receiving interrupt and terminate signals.
func Signals() <-chan os.Signal {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	return signals
}
