package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// DefaultMaxSize bounds the longest side of a block when no output size is
// requested.
const DefaultMaxSize = 2048

var errBadRequest = errors.New("bad request")

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, slide.ErrInvalidRegion),
		errors.Is(err, slide.ErrInvalidChannel),
		errors.Is(err, slide.ErrInvalidRange),
		errors.Is(err, slide.ErrUnknownDriver):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, slide.ErrIndexOutOfRange),
		errors.Is(err, slide.ErrNameNotFound):
		return http.StatusNotFound
	case errors.Is(err, slide.ErrOpen),
		errors.Is(err, slide.ErrDecode):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func intQuery(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", errBadRequest, name, v)
	}
	return n, nil
}

// channelsQuery parses a comma-separated channel list such as "2,1,0".
func channelsQuery(q url.Values) ([]int, error) {
	v := q.Get("channels")
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: channels=%q", errBadRequest, v)
		}
		out[i] = n
	}
	return out, nil
}

// openSlide pins the slide named by the request in the cache. The caller
// must call release when the response is written.
func (s *Server) openSlide(r *http.Request) (sl *slide.Slide, release func(), err error) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		return nil, nil, fmt.Errorf("%w: path is required", errBadRequest)
	}
	driver := q.Get("driver")
	if driver == "" {
		driver = s.defaultDriver
	}
	return s.cache.Acquire(path, driver)
}

func (s *Server) sceneFromRequest(r *http.Request) (*slide.Scene, func(), error) {
	sl, release, err := s.openSlide(r)
	if err != nil {
		return nil, nil, err
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("%w: scene index", errBadRequest)
	}
	sc, err := sl.Scene(index)
	if err != nil {
		release()
		return nil, nil, err
	}
	return sc, release, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleDrivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"drivers": s.cache.Registry().IDs()})
}

func (s *Server) handleSlide(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("path") == "" {
		s.writeError(w, fmt.Errorf("%w: path is required", errBadRequest))
		return
	}
	driver := q.Get("driver")
	if driver == "" {
		driver = s.defaultDriver
	}
	info, err := imaging.LoadSlideInfo(s.cache, q.Get("path"), driver)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, info)
}

// handleSlideClose drops path from the slide cache, closing the file.
func (s *Server) handleSlideClose(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, fmt.Errorf("%w: path is required", errBadRequest))
		return
	}
	s.cache.Evict(path)
	w.WriteHeader(http.StatusNoContent)
}

type sceneResponse struct {
	slide.SceneInfo
	Levels []slide.Level `json:"levels"`
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	sc, release, err := s.sceneFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer release()
	info, err := sc.Info()
	if err != nil {
		s.writeError(w, err)
		return
	}
	levels, err := sc.Levels()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, sceneResponse{SceneInfo: info, Levels: levels})
}

func (s *Server) handleSceneBlock(w http.ResponseWriter, r *http.Request) {
	sc, release, err := s.sceneFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer release()
	req, err := blockRequest(sc, r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeBlock(w, r, sc, req)
}

func (s *Server) handleAuxBlock(w http.ResponseWriter, r *http.Request) {
	sl, release, err := s.openSlide(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer release()
	aux, err := sl.AuxImage(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	maxSize, err := intQuery(r.URL.Query(), "max_size", DefaultMaxSize)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rect := aux.Rect()
	s.writeBlock(w, r, aux, slide.BlockRequest{Size: imaging.FitSize(rect.Width, rect.Height, maxSize)})
}

// blockRequest builds a read from the query. Without width and height the
// visible part of the rectangle is fitted into max_size.
func blockRequest(sc *slide.Scene, q url.Values) (slide.BlockRequest, error) {
	var req slide.BlockRequest
	vals := make(map[string]int)
	for _, name := range []string{"x", "y", "w", "h", "width", "height", "z", "t"} {
		n, err := intQuery(q, name, 0)
		if err != nil {
			return req, err
		}
		vals[name] = n
	}
	maxSize, err := intQuery(q, "max_size", DefaultMaxSize)
	if err != nil {
		return req, err
	}
	if req.Channels, err = channelsQuery(q); err != nil {
		return req, err
	}

	sr := sc.Rect()
	req.Rect = slide.Rect{X: vals["x"], Y: vals["y"], Width: vals["w"], Height: vals["h"]}
	if req.Rect.Width == 0 {
		req.Rect.Width = sr.Width - req.Rect.X
	}
	if req.Rect.Height == 0 {
		req.Rect.Height = sr.Height - req.Rect.Y
	}
	req.Size = slide.Size{Width: vals["width"], Height: vals["height"]}
	req.ZRange = slide.Range{First: vals["z"], Last: vals["z"] + 1}
	req.TRange = slide.Range{First: vals["t"], Last: vals["t"] + 1}

	if req.Size.Width == 0 && req.Size.Height == 0 {
		if req.Rect, err = imaging.VisibleRect(sc, req.Rect); err != nil {
			return req, err
		}
		req.Size = imaging.FitSize(req.Rect.Width, req.Rect.Height, maxSize)
	}
	return req, nil
}

func (s *Server) writeBlock(w http.ResponseWriter, r *http.Request, sc *slide.Scene, req slide.BlockRequest) {
	q := r.URL.Query()
	quality, err := intQuery(q, "quality", 90)
	if err != nil {
		s.writeError(w, err)
		return
	}
	block, err := sc.ReadBlock(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	mime, err := imaging.WriteBlock(&buf, block, q.Get("format"), quality)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Block-Size", fmt.Sprintf("%dx%d", block.Width, block.Height))
	w.Write(buf.Bytes())
}
