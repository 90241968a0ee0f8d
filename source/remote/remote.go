// Package remote implements a frame source reading an MJPEG stream over HTTP,
// such as the /stream of another csicam display or an IP camera.
package remote

import (
	"context"
	"fmt"
	"image"
	"log"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/mattn/go-mjpeg"

	"github.com/wsmith/csicam"
)

// Opts are options for a remote source.
type Opts struct {
	Client  *http.Client // http.DefaultClient if nil.
	Verbose bool
}

// Source decodes frames from a multipart MJPEG HTTP response.
type Source struct {
	url     string
	cancel  context.CancelFunc
	resp    *http.Response
	decoder *mjpeg.Decoder
}

// Check that Source implements interface Source.
var _ csicam.Source = (*Source)(nil)

// Open starts fetching the stream at url.
//
// Callers must call Close to clean up.
func Open(url string, opts *Opts) (src *Source, rerr error) {
	var xopts Opts
	if opts != nil {
		xopts = *opts
	}
	client := xopts.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Source{url: url, cancel: cancel}

	// Ensure cleanup in case of failure.
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching stream: %v", err)
	}
	s.resp = resp
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching stream: %s", resp.Status)
	}
	if xopts.Verbose {
		log.Printf("remote stream %s, content type %s", url, resp.Header.Get("Content-Type"))
	}
	s.decoder, err = mjpeg.NewDecoderFromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("reading stream: %v", err)
	}
	return s, nil
}

// Grab decodes the next frame from the stream.
func (s *Source) Grab() (*image.NRGBA, error) {
	img, err := s.decoder.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding frame from %s: %w", s.url, err)
	}
	return imaging.Clone(img), nil
}

// Close stops fetching the stream.
func (s *Source) Close() error {
	s.cancel()
	if s.resp != nil {
		s.resp.Body.Close()
		s.resp = nil
	}
	return nil
}
