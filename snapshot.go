package csicam

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
)

// Snapshotter saves frames as numbered image files, Base_0.jpg, Base_1.jpg,
// etc. in Dir. The format follows Suffix, "jpg" if empty.
type Snapshotter struct {
	Dir    string
	Base   string
	Suffix string

	mutex sync.Mutex
	next  int
}

// Save writes img to the next file name and returns its path.
func (s *Snapshotter) Save(img image.Image) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	suffix := s.Suffix
	if suffix == "" {
		suffix = "jpg"
	}
	path := filepath.Join(s.Dir, fmt.Sprintf("%s_%d.%s", s.Base, s.next, suffix))
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("saving snapshot: %v", err)
	}
	s.next++
	return path, nil
}
