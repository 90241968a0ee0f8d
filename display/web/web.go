// Package web implements a display in the browser. Frames are served as an
// MJPEG stream, and key presses on the page are sent back over a websocket.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"image"
	"image/jpeg"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mattn/go-mjpeg"

	"github.com/wsmith/csicam/display"
)

// Opts are options for a Server.
type Opts struct {
	Quality int              // JPEG quality, 80 if zero.
	Status  func() any       // If set, its result is included in /api/status.
	Verbose bool
	Now     func() time.Time // For timestamps in status, time.Now if nil.
}

// Server is a display showing frames on a web page.
type Server struct {
	title    string
	opts     Opts
	engine   *gin.Engine
	stream   *mjpeg.Stream
	upgrader websocket.Upgrader
	keys     chan int

	mutex sync.Mutex
	last  []byte // Last frame as JPEG.
	shown int
	http  *http.Server
}

// Check that Server implements interface Display.
var _ display.Display = (*Server)(nil)

// keyEvent is sent by the page for each key press.
type keyEvent struct {
	Key int `json:"key"`
}

// Status is returned by /api/status.
type Status struct {
	Title  string    `json:"title"`
	Shown  int       `json:"shown"`
	Time   time.Time `json:"time"`
	Status any       `json:"status,omitempty"`
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// New returns a display with the given window title. Call Listen to serve
// it, or use Handler with an existing HTTP server.
func New(title string, opts *Opts) *Server {
	s := &Server{
		title:  title,
		stream: mjpeg.NewStream(),
		keys:   make(chan int, 16),
	}
	// Viewers may reach the display under any host name.
	s.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.Quality == 0 {
		s.opts.Quality = 80
	}
	if s.opts.Now == nil {
		s.opts.Now = time.Now
	}

	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/", s.handleIndex)
	e.GET("/stream", gin.WrapH(s.stream))
	e.GET("/snapshot", s.handleSnapshot)
	e.GET("/api/status", s.handleStatus)
	e.GET("/ws/keys", s.handleKeys)
	s.engine = e
	return s
}

// Handler returns the HTTP handler serving the display.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Listen starts serving on addr in the background and returns the address
// actually listened on.
func (s *Server) Listen(addr string) (net.Addr, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for display: %v", err)
	}
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	s.mutex.Lock()
	s.http = srv
	s.mutex.Unlock()
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("serving display: %v", err)
		}
	}()
	if s.opts.Verbose {
		log.Printf("display %q at http://%s/", s.title, l.Addr())
	}
	return l.Addr(), nil
}

// Show encodes img as JPEG and sends it to all viewers.
func (s *Server) Show(img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.opts.Quality}); err != nil {
		return fmt.Errorf("encoding frame: %v", err)
	}
	b := buf.Bytes()
	if err := s.stream.Update(b); err != nil {
		return fmt.Errorf("updating stream: %v", err)
	}
	s.mutex.Lock()
	s.last = b
	s.shown++
	s.mutex.Unlock()
	return nil
}

// WaitKey waits up to d for a key pressed in one of the viewing browsers.
func (s *Server) WaitKey(d time.Duration) (int, bool) {
	return display.WaitKey(s.keys, d)
}

// Close stops the HTTP server if Listen was called.
func (s *Server) Close() error {
	s.stream.Close()
	s.mutex.Lock()
	srv := s.http
	s.http = nil
	s.mutex.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		// Streams never finish on their own.
		return srv.Close()
	}
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(c.Writer, s.title); err != nil {
		log.Printf("rendering index: %v", err)
	}
}

func (s *Server) handleSnapshot(c *gin.Context) {
	s.mutex.Lock()
	last := s.last
	s.mutex.Unlock()
	if last == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame yet"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", last)
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mutex.Lock()
	st := Status{Title: s.title, Shown: s.shown, Time: s.opts.Now()}
	s.mutex.Unlock()
	if s.opts.Status != nil {
		st.Status = s.opts.Status()
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleKeys(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		var ev keyEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if s.opts.Verbose && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("reading key event: %v", err)
			}
			return
		}
		select {
		case s.keys <- ev.Key:
		default:
			if s.opts.Verbose {
				log.Printf("dropping key %d, not read in time", ev.Key)
			}
		}
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.}}</title></head>
<body style="margin:0;background:#000">
<img src="/stream" alt="{{.}}" style="display:block;margin:auto">
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws/keys");
document.addEventListener("keydown", (e) => {
	let key = e.key.length === 1 ? e.key.charCodeAt(0) : e.keyCode;
	if (ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify({key: key}));
});
</script>
</body>
</html>
`))
