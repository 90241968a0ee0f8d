// Command csicamera shows a CSI camera in the browser, with the rates at which
// frames are grabbed from the camera and read for display.
//
// Examples:
//
//	# Sensor mode 0, at a quarter of its native size, on port 8080.
//	csicamera
//
//	# Second camera at 1280x720@60, upside down, frames through jpeg files.
//	csicamera -sensor-id 1 -mode 3 -scale 1 -flip 2 -source jpeg
//
// Press ESC or q in the browser window to quit.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/wsmith/csicam"
	"github.com/wsmith/csicam/display"
	"github.com/wsmith/csicam/internal/cli"
)

var (
	camera      cli.CameraFlags
	listen      string
	listDevices bool
	verbose     bool
)

func init() {
	camera.Register(flag.CommandLine)
	flag.StringVar(&listen, "listen", "localhost:8080", "address to serve the display on")
	flag.BoolVar(&listDevices, "listdevices", false, "if set, lists devices and exits")
	flag.BoolVar(&verbose, "verbose", false, "print verbose output")
}

func usage() {
	log.Println("usage: csicamera [flags]")
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

	src, err := camera.Open(verbose)
	if err != nil {
		log.Printf("open source: %v", err)
		return 1
	}
	cam, err := csicam.Open(src, &csicam.Opts{DisplayRates: true, Verbose: verbose})
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer cam.Release()

	win, err := cli.Window("CSI Camera", listen, func() any { return cam.Rates() }, verbose)
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

	signals := cli.Signals()
	for {
		select {
		case <-signals:
			return 0
		default:
		}

		if ok, frame := cam.Read(); ok {
			if err := win.Show(frame); err != nil {
				log.Printf("show frame: %v", err)
			}
		}
		if key, ok := win.WaitKey(20 * time.Millisecond); ok {
			switch key {
			case display.KeyEsc, 'q':
				if verbose {
					log.Printf("rates at exit: %s", cam.Rates())
				}
				return 0
			}
		}
	}
}
