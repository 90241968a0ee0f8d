// Command grabframe shows a webcam in the browser, resized, and saves the
// current frame as an image file when s is pressed. Files are named
// <base>_<n>.<suffix>, counting from 0.
//
// Example:
//
//	grabframe -dest demoImages/known -base WS
//
// Press s to save a frame and q to quit.
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
	webcam      cli.WebcamFlags
	listen      string
	listDevices bool
	verbose     bool
	dest        string
	base        string
	suffix      string
	width       int
	height      int
)

func init() {
	webcam.Register(flag.CommandLine, "")
	flag.StringVar(&listen, "listen", "localhost:8080", "address to serve the display on")
	flag.BoolVar(&listDevices, "listdevices", false, "if set, lists devices and exits")
	flag.BoolVar(&verbose, "verbose", false, "print verbose output")
	flag.StringVar(&dest, "dest", ".", "directory to save frames to")
	flag.StringVar(&base, "base", "frame", "base name of saved frames")
	flag.StringVar(&suffix, "suffix", "jpg", "file type of saved frames, jpg, png, gif, tif or bmp")
	flag.IntVar(&width, "display-width", 640, "width frames are resized to")
	flag.IntVar(&height, "display-height", 480, "height frames are resized to")
}

func usage() {
	log.Println("usage: grabframe [flags]")
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
	if width <= 0 || height <= 0 {
		log.Printf("invalid display size %dx%d", width, height)
		return 1
	}
	if fi, err := os.Stat(dest); err != nil || !fi.IsDir() {
		log.Printf("destination %s is not a directory", dest)
		return 1
	}

	src, err := webcam.Open(verbose)
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

	snaps := &csicam.Snapshotter{Dir: dest, Base: base, Suffix: suffix}
	title := fmt.Sprintf("camera resized to %d x %d", width, height)
	win, err := cli.Window(title, listen, nil, verbose)
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

		ok, img := cam.Read()
		if !ok {
			continue
		}
		frame := overlay.Resize(img, width, height)
		if err := win.Show(frame); err != nil {
			log.Printf("show frame: %v", err)
		}

		key, ok := win.WaitKey(5 * time.Millisecond)
		if !ok {
			continue
		}
		switch key {
		case 's':
			path, err := snaps.Save(frame)
			if err != nil {
				log.Printf("%v", err)
			} else {
				log.Printf("saved %s", path)
			}
		case 'q':
			return 0
		}
	}
}
