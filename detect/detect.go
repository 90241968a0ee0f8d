// Package detect finds faces and eyes in frames with the pigo cascade
// classifiers.
//
// Cascade files are not included. The face cascade ("facefinder") and the
// pupil localization cascade ("puploc") are distributed with pigo, in its
// cascade directory.
package detect

import (
	"fmt"
	"image"
	"log"
	"os"
	"time"

	pigo "github.com/esimov/pigo/core"
)

// Detector finds objects in an image, returning their bounding boxes.
type Detector interface {
	Detect(img image.Image) []image.Rectangle
}

// Face is a detected face with its eyes, if an eye cascade was loaded and
// the face is large enough.
type Face struct {
	Rect  image.Rectangle
	Score float32 // Detection quality as reported by pigo.
	Eyes  []image.Rectangle
}

// Opts are options for a FaceDetector. Zero values are replaced with
// defaults.
type Opts struct {
	MinSize     int     // Minimum face size in pixels. Default 40.
	MaxSize     int     // Maximum face size in pixels. Default 1000.
	ShiftFactor float64 // Sliding window step as fraction of window size. Default 0.1.
	ScaleFactor float64 // Window scale step. Default 1.1.
	IoU         float64 // Intersection over union for clustering detections. Default 0.2.
	MinQuality  float32 // Detections below are dropped. Default 5.
	MinEyeFace  int     // Minimum face size to look for eyes. Default 50.
	Verbose     bool
}

var optsDefault = Opts{
	MinSize:     40,
	MaxSize:     1000,
	ShiftFactor: 0.1,
	ScaleFactor: 1.1,
	IoU:         0.2,
	MinQuality:  5,
	MinEyeFace:  50,
}

// FaceDetector detects faces, and optionally eyes within those faces.
type FaceDetector struct {
	opts   Opts
	faces  *pigo.Pigo
	pupils *pigo.PuplocCascade // Nil if no eye cascade was loaded.
}

// Check that FaceDetector implements interface Detector.
var _ Detector = (*FaceDetector)(nil)

// NewFaceDetector returns a detector for the face cascade, and the eye
// (puploc) cascade if not nil.
func NewFaceDetector(faceCascade, eyeCascade []byte, opts *Opts) (*FaceDetector, error) {
	xopts := optsDefault
	if opts != nil {
		xopts = *opts
		if xopts.MinSize == 0 {
			xopts.MinSize = optsDefault.MinSize
		}
		if xopts.MaxSize == 0 {
			xopts.MaxSize = optsDefault.MaxSize
		}
		if xopts.ShiftFactor == 0 {
			xopts.ShiftFactor = optsDefault.ShiftFactor
		}
		if xopts.ScaleFactor == 0 {
			xopts.ScaleFactor = optsDefault.ScaleFactor
		}
		if xopts.IoU == 0 {
			xopts.IoU = optsDefault.IoU
		}
		if xopts.MinQuality == 0 {
			xopts.MinQuality = optsDefault.MinQuality
		}
		if xopts.MinEyeFace == 0 {
			xopts.MinEyeFace = optsDefault.MinEyeFace
		}
	}
	if xopts.MinSize > xopts.MaxSize {
		return nil, fmt.Errorf("min size %d larger than max size %d", xopts.MinSize, xopts.MaxSize)
	}
	if len(faceCascade) == 0 {
		return nil, fmt.Errorf("empty face cascade")
	}

	faces, err := pigo.NewPigo().Unpack(faceCascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking face cascade: %v", err)
	}
	d := &FaceDetector{opts: xopts, faces: faces}

	if len(eyeCascade) > 0 {
		pupils, err := pigo.NewPuplocCascade().UnpackCascade(eyeCascade)
		if err != nil {
			return nil, fmt.Errorf("unpacking eye cascade: %v", err)
		}
		d.pupils = pupils
	}
	return d, nil
}

// LoadFaceDetector reads cascade files and returns a detector for them. If
// eyePath is empty, no eyes are detected.
func LoadFaceDetector(facePath, eyePath string, opts *Opts) (*FaceDetector, error) {
	faceCascade, err := os.ReadFile(facePath)
	if err != nil {
		return nil, fmt.Errorf("reading face cascade: %v", err)
	}
	var eyeCascade []byte
	if eyePath != "" {
		eyeCascade, err = os.ReadFile(eyePath)
		if err != nil {
			return nil, fmt.Errorf("reading eye cascade: %v", err)
		}
	}
	return NewFaceDetector(faceCascade, eyeCascade, opts)
}

// Detect returns the bounding boxes of the faces in img.
func (d *FaceDetector) Detect(img image.Image) []image.Rectangle {
	faces := d.DetectFaces(img)
	r := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		r[i] = f.Rect
	}
	return r
}

// DetectFaces returns the faces in img, with eyes if an eye cascade was
// loaded.
func (d *FaceDetector) DetectFaces(img image.Image) []Face {
	t0 := time.Now()
	b := img.Bounds()
	params := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(img),
		Rows:   b.Dy(),
		Cols:   b.Dx(),
		Dim:    b.Dx(),
	}
	cparams := pigo.CascadeParams{
		MinSize:     d.opts.MinSize,
		MaxSize:     d.opts.MaxSize,
		ShiftFactor: d.opts.ShiftFactor,
		ScaleFactor: d.opts.ScaleFactor,
		ImageParams: params,
	}

	dets := d.faces.RunCascade(cparams, 0.0)
	dets = d.faces.ClusterDetections(dets, d.opts.IoU)

	var faces []Face
	for _, det := range dets {
		if det.Q < d.opts.MinQuality {
			continue
		}
		f := Face{Rect: faceRect(det).Add(b.Min), Score: det.Q}
		if d.pupils != nil && det.Scale >= d.opts.MinEyeFace {
			for _, pl := range eyeSearch(det) {
				eye := d.pupils.RunDetector(pl, params, 0.0, false)
				if eye == nil || eye.Row <= 0 || eye.Col <= 0 {
					continue
				}
				f.Eyes = append(f.Eyes, eyeRect(eye.Row, eye.Col, det.Scale).Add(b.Min))
			}
		}
		faces = append(faces, f)
	}
	if d.opts.Verbose {
		log.Printf("detected %d faces in %v", len(faces), time.Since(t0))
	}
	return faces
}

// faceRect returns the square around a detection, which pigo reports as
// center and size.
func faceRect(det pigo.Detection) image.Rectangle {
	half := det.Scale / 2
	return image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half)
}

// eyeSearch returns the start positions for locating the left and right
// pupil, relative to the face.
func eyeSearch(det pigo.Detection) []pigo.Puploc {
	scale := float32(det.Scale)
	row := det.Row - int(0.075*scale)
	return []pigo.Puploc{
		{Row: row, Col: det.Col - int(0.175*scale), Scale: scale * 0.25, Perturbs: 50},
		{Row: row, Col: det.Col + int(0.185*scale), Scale: scale * 0.25, Perturbs: 50},
	}
}

// eyeRect returns a box around a pupil, sized relative to the face.
func eyeRect(row, col, faceScale int) image.Rectangle {
	half := faceScale / 10
	if half < 1 {
		half = 1
	}
	return image.Rect(col-half, row-half, col+half, row+half)
}
