package csicam_test

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/wsmith/csicam"
)

func TestSnapshotter(t *testing.T) {
	dir := t.TempDir()
	s := &csicam.Snapshotter{Dir: dir, Base: "FaceDetect"}
	img := image.NewNRGBA(image.Rect(0, 0, 10, 6))

	for i, name := range []string{"FaceDetect_0.jpg", "FaceDetect_1.jpg"} {
		path, err := s.Save(img)
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		if path != filepath.Join(dir, name) {
			t.Fatalf("path, got %s, expected %s", path, filepath.Join(dir, name))
		}
		saved, err := imaging.Open(path)
		if err != nil {
			t.Fatalf("opening snapshot: %v", err)
		}
		if saved.Bounds().Dx() != 10 || saved.Bounds().Dy() != 6 {
			t.Fatalf("snapshot size, got %v, expected 10x6", saved.Bounds())
		}
	}

	png := &csicam.Snapshotter{Dir: dir, Base: "dual", Suffix: "png"}
	path, err := png.Save(img)
	if err != nil {
		t.Fatalf("save png: %v", err)
	}
	if filepath.Base(path) != "dual_0.png" {
		t.Fatalf("png path, got %s", path)
	}

	// Failed saves do not use up a number.
	bad := &csicam.Snapshotter{Dir: filepath.Join(dir, "missing"), Base: "x"}
	if _, err := bad.Save(img); err == nil {
		t.Fatalf("missing error for missing directory")
	}
	if err := os.Mkdir(bad.Dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path, err = bad.Save(img)
	if err != nil {
		t.Fatalf("save after mkdir: %v", err)
	}
	if filepath.Base(path) != "x_0.jpg" {
		t.Fatalf("path after failed save, got %s, expected x_0.jpg", path)
	}
}
