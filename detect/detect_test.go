package detect

import (
	"image"
	"testing"

	pigo "github.com/esimov/pigo/core"
)

func TestFaceRect(t *testing.T) {
	det := pigo.Detection{Row: 100, Col: 200, Scale: 60, Q: 10}
	r := faceRect(det)
	exp := image.Rect(170, 70, 230, 130)
	if r != exp {
		t.Fatalf("face rect, got %v, expected %v", r, exp)
	}
}

func TestEyeSearch(t *testing.T) {
	det := pigo.Detection{Row: 100, Col: 200, Scale: 80}
	pls := eyeSearch(det)
	if len(pls) != 2 {
		t.Fatalf("got %d eye search positions, expected 2", len(pls))
	}
	left, right := pls[0], pls[1]
	if left.Row != 94 || right.Row != 94 {
		t.Fatalf("eye rows, got %d and %d, expected 94", left.Row, right.Row)
	}
	if left.Col != 186 || right.Col != 214 {
		t.Fatalf("eye cols, got %d and %d, expected 186 and 214", left.Col, right.Col)
	}
	if left.Scale != 20 {
		t.Fatalf("eye scale, got %v, expected 20", left.Scale)
	}
}

func TestEyeRect(t *testing.T) {
	r := eyeRect(50, 60, 100)
	if r != image.Rect(50, 40, 70, 60) {
		t.Fatalf("eye rect, got %v", r)
	}
	if r := eyeRect(5, 5, 3); r.Dx() != 2 {
		t.Fatalf("eye rect for tiny face, got %v", r)
	}
}

func TestNewFaceDetectorErrors(t *testing.T) {
	if _, err := NewFaceDetector(nil, nil, nil); err == nil {
		t.Fatalf("missing error for empty cascade")
	}
	if _, err := NewFaceDetector([]byte{1}, nil, &Opts{MinSize: 500, MaxSize: 100}); err == nil {
		t.Fatalf("missing error for min size above max size")
	}
	if _, err := LoadFaceDetector("testdata/does-not-exist", "", nil); err == nil {
		t.Fatalf("missing error for missing cascade file")
	}
}
