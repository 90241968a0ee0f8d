// Command facedetect detects faces and eyes in the frames of a CSI camera,
// drawing boxes around them in the browser display.
//
// The pigo cascades are not included, get them from the pigo repository:
//
//	curl -LO https://github.com/esimov/pigo/raw/master/cascade/facefinder
//	curl -LO https://github.com/esimov/pigo/raw/master/cascade/puploc
//
// Examples:
//
//	# At the default of 640x360@60.
//	facedetect -cascade facefinder -eyes puploc
//
//	# Larger, at 960x540@30.
//	facedetect -mode 2 -scale 2 -cascade facefinder
//
// Press ESC in the browser window to quit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wsmith/csicam"
	"github.com/wsmith/csicam/detect"
	"github.com/wsmith/csicam/display"
	"github.com/wsmith/csicam/internal/cli"
	"github.com/wsmith/csicam/overlay"
)

var (
	camera      cli.CameraFlags
	listen      string
	listDevices bool
	verbose     bool
	showFPS     bool
	facePath    string
	eyePath     string
	minSize     int
	minScore    float64
)

func init() {
	camera.RegisterDefaults(flag.CommandLine, csicam.SensorMode1280x720at60, 2)
	flag.StringVar(&listen, "listen", "localhost:8080", "address to serve the display on")
	flag.BoolVar(&listDevices, "listdevices", false, "if set, lists devices and exits")
	flag.BoolVar(&verbose, "verbose", false, "print verbose output")
	flag.BoolVar(&showFPS, "fps", true, "draw frames displayed and read per second")
	flag.StringVar(&facePath, "cascade", "cascade/facefinder", "path to pigo face cascade")
	flag.StringVar(&eyePath, "eyes", "", "path to pigo puploc cascade, no eye detection if empty")
	flag.IntVar(&minSize, "minsize", 40, "minimum face size in pixels")
	flag.Float64Var(&minScore, "min-score", 5, "minimum detection score")
}

func usage() {
	log.Println("usage: facedetect [flags]")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	if len(flag.Args()) != 0 {
		usage()
	}
	os.Exit(main0())
}

func main0() int {
	if listDevices {
		if err := cli.PrintDevices(os.Stdout); err != nil {
			log.Printf("listing devices: %v", err)
			return 1
		}
		return 0
	}

	detector, err := detect.LoadFaceDetector(facePath, eyePath, &detect.Opts{
		MinSize:    minSize,
		MinQuality: float32(minScore),
		Verbose:    verbose,
	})
	if err != nil {
		log.Printf("load detector: %v", err)
		return 1
	}

	p, err := camera.Pipeline()
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	src, err := camera.Open(verbose)
	if err != nil {
		log.Printf("open source: %v", err)
		return 1
	}
	cam, err := csicam.Open(src, &csicam.Opts{Verbose: verbose})
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer cam.Release()

	displayed := csicam.NewCounter()
	read := csicam.NewCounter()
	status := func() any {
		return map[string]any{
			"rates":     cam.Rates(),
			"displayed": displayed.Last(),
			"read":      read.Last(),
		}
	}
	title := fmt.Sprintf("Face Detect: Sensor Mode %d, Display %d x %d", camera.Mode, p.Width, p.Height)
	win, err := cli.Window(title, listen, status, verbose)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer win.Close()

	if err := cam.Start(); err != nil {
		log.Printf("start camera: %v", err)
		return 1
	}
	defer cam.Stop()
	for _, c := range []*csicam.Counter{displayed, read} {
		if err := c.Start(time.Second); err != nil {
			log.Printf("start counter: %v", err)
			return 1
		}
		defer c.Stop()
	}

	signals := cli.Signals()
	for {
		select {
		case <-signals:
			return 0
		default:
		}

		ok, img := cam.Read()
		if !ok {
			continue
		}
		read.Inc()
		for _, face := range detector.DetectFaces(img) {
			overlay.DrawRect(img, face.Rect, overlay.Blue, 2)
			for _, eye := range face.Eyes {
				overlay.DrawRect(img, eye, overlay.Green, 2)
			}
		}
		if showFPS {
			overlay.DrawCounts(img, displayed.Last(), read.Last())
		}
		if err := win.Show(img); err != nil {
			log.Printf("show frame: %v", err)
		}
		displayed.Inc()

		if key, ok := win.WaitKey(5 * time.Millisecond); ok && key == display.KeyEsc {
			return 0
		}
	}
}
