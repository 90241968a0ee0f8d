// Command dualcamera shows a CSI camera and a USB webcam side by side in the
// browser. The webcam frame is resized to the size of the CSI camera frame.
//
// Examples:
//
//	# CSI camera at 480x270, webcam on /dev/video1.
//	dualcamera -mode 2 -scale 4
//
//	# Webcam read directly through V4L2.
//	dualcamera -webcam-source v4l -webcam-device /dev/video0
//
// Press q in the browser window to quit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wsmith/csicam"
	"github.com/wsmith/csicam/internal/cli"
	"github.com/wsmith/csicam/overlay"
)

var (
	camera      cli.CameraFlags
	webcam      cli.WebcamFlags
	listen      string
	listDevices bool
	verbose     bool
	showFPS     bool
)

func init() {
	camera.Register(flag.CommandLine)
	webcam.Register(flag.CommandLine, "webcam-")
	flag.StringVar(&listen, "listen", "localhost:8080", "address to serve the display on")
	flag.BoolVar(&listDevices, "listdevices", false, "if set, lists devices and exits")
	flag.BoolVar(&verbose, "verbose", false, "print verbose output")
	flag.BoolVar(&showFPS, "fps", true, "draw frame rates on both cameras")
}

func usage() {
	log.Println("usage: dualcamera [flags]")
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

func open(name string, openFn func(verbose bool) (csicam.Source, error)) (*csicam.Camera, error) {
	src, err := openFn(verbose)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %v", name, err)
	}
	cam, err := csicam.Open(src, &csicam.Opts{DisplayRates: showFPS, Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cam, nil
}

func main0() int {
	if listDevices {
		if err := cli.PrintDevices(os.Stdout); err != nil {
			log.Printf("listing devices: %v", err)
			return 1
		}
		return 0
	}

	p, err := camera.Pipeline()
	if camera.Kind != cli.KindRemote && err != nil {
		log.Printf("%v", err)
		return 1
	}

	picam, err := open("csi camera", camera.Open)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer picam.Release()
	webcamera, err := open("webcam", webcam.Open)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer webcamera.Release()

	status := func() any {
		return map[string]csicam.Rates{"picam": picam.Rates(), "webcam": webcamera.Rates()}
	}
	title := fmt.Sprintf("Picam on left: Sensor Mode %d, Display %d x %d", camera.Mode, p.Width, p.Height)
	win, err := cli.Window(title, listen, status, verbose)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer win.Close()

	for _, c := range []*csicam.Camera{picam, webcamera} {
		if err := c.Start(); err != nil {
			log.Printf("start camera: %v", err)
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

		okL, imgL := picam.Read()
		okR, imgR := webcamera.Read()
		if okL && okR {
			if err := win.Show(overlay.HStack(imgL, imgR)); err != nil {
				log.Printf("show frame: %v", err)
			}
		}
		if key, ok := win.WaitKey(5 * time.Millisecond); ok && key == 'q' {
			return 0
		}
	}
}
