// Package api serves the appliance status and the operator override over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/itohio/warmer/pkg/sample"
	"github.com/itohio/warmer/pkg/thermostat"
	"github.com/itohio/warmer/pkg/warmer"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

const maxScale = 8

// Appliance is the part of the control loop the API reads and steers.
type Appliance interface {
	Status() *warmer.Status
	Flags() *thermostat.Flags
}

// FrameSource returns the last frame pushed to the display.
type FrameSource interface {
	Frame() (buf []byte, width, height int)
}

type ErrorMessage struct {
	ErrStatusCode int    `json:"errStatusCode"`
	ErrMessage    string `json:"errMessage"`
}

type EnableRequest struct {
	Enabled *bool `json:"enabled"`
}

type EnableResponse struct {
	Enabled bool `json:"enabled"`
}

type HistoryResponse struct {
	Samples []*float32 `json:"samples"` // null marks a gap
}

type Server struct {
	appliance Appliance
	frames    FrameSource

	router    *mux.Router
	apiRouter *mux.Router
	server    *http.Server
	accessLog *io.PipeWriter
}

// New builds the router. frames may be nil, in which case the display
// endpoint reports 503.
func New(listen string, appliance Appliance, frames FrameSource) *Server {
	s := &Server{
		appliance: appliance,
		frames:    frames,
		accessLog: logrus.StandardLogger().WriterLevel(logrus.DebugLevel),
	}

	s.router = mux.NewRouter().StrictSlash(false)
	s.apiRouter = s.router.PathPrefix("/api").Subrouter()
	s.apiRouter.NotFoundHandler = http.HandlerFunc(ErrorNotFoundAction)
	s.apiRouter.MethodNotAllowedHandler = http.HandlerFunc(ErrorMethodNotAllowedAction)

	s.apiRouter.HandleFunc("/status", s.statusAction).Methods("GET")
	s.apiRouter.HandleFunc("/history", s.historyAction).Methods("GET")
	s.apiRouter.HandleFunc("/enable", s.enableAction).Methods("PUT")
	s.apiRouter.HandleFunc("/display.png", s.displayAction).Methods("GET")

	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "PUT", "OPTIONS"})

	s.server = &http.Server{
		Addr:         listen,
		Handler:      s.Handler(handlers.CORS(originsOk, methodsOk)(s.router)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler wraps h with panic recovery and access logging.
func (s *Server) Handler(h http.Handler) http.Handler {
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(logrus.StandardLogger()),
		handlers.PrintRecoveryStack(true),
	)(h)
	return handlers.CombinedLoggingHandler(s.accessLog, h)
}

// Router returns the bare router.
func (s *Server) Router() *mux.Router { return s.router }

// Start serves in the background.
func (s *Server) Start() {
	logrus.Infof("HTTP API listening on %s", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("HTTP API stopped: %v", err)
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.accessLog.Close()
	return s.server.Shutdown(ctx)
}

func (s *Server) statusAction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.appliance.Status())
}

func (s *Server) historyAction(w http.ResponseWriter, r *http.Request) {
	points := 0
	if v := r.URL.Query().Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ErrorMessageAction(w, "points must be a non-negative integer", http.StatusBadRequest)
			return
		}
		points = n
	}

	history := s.appliance.Status().History
	samples := make([]*float32, len(history))
	for i, h := range history {
		if h.Valid {
			v := h.Value
			samples[i] = &v
		}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Samples: sample.Downsample(nil, samples, points)})
}

func (s *Server) enableAction(w http.ResponseWriter, r *http.Request) {
	var req EnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		ErrorStatusAction(w, r, http.StatusBadRequest)
		return
	}

	s.appliance.Flags().SetEnabled(*req.Enabled)
	logrus.Infof("Heater %s over HTTP", map[bool]string{true: "enabled", false: "disabled"}[*req.Enabled])
	writeJSON(w, http.StatusOK, EnableResponse{Enabled: *req.Enabled})
}

func (s *Server) displayAction(w http.ResponseWriter, r *http.Request) {
	if s.frames == nil {
		ErrorStatusAction(w, r, http.StatusServiceUnavailable)
		return
	}
	buf, width, height := s.frames.Frame()
	if len(buf) == 0 {
		ErrorStatusAction(w, r, http.StatusServiceUnavailable)
		return
	}

	scale := 1
	if v := r.URL.Query().Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxScale {
			ErrorMessageAction(w, "scale must be between 1 and 8", http.StatusBadRequest)
			return
		}
		scale = n
	}

	var img image.Image = &image1bit.VerticalLSB{
		Pix:    buf,
		Stride: width,
		Rect:   image.Rect(0, 0, width, height),
	}
	if scale > 1 {
		dst := image.NewGray(image.Rect(0, 0, width*scale, height*scale))
		xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		img = dst
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		logrus.Debugf("Failed to encode display snapshot: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Debugf("Failed to encode response: %v", err)
	}
}

func ErrorNotFoundAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusNotFound)
}

func ErrorMethodNotAllowedAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusMethodNotAllowed)
}

func ErrorStatusAction(w http.ResponseWriter, r *http.Request, status int) {
	ErrorMessageAction(w, "", status)
}

func ErrorMessageAction(w http.ResponseWriter, title string, status int) {
	errorMessage := &ErrorMessage{
		ErrStatusCode: status,
		ErrMessage:    title,
	}

	if title == "" {
		switch status {
		case http.StatusNotFound:
			errorMessage.ErrMessage = "Page not found"
		case http.StatusMethodNotAllowed:
			errorMessage.ErrMessage = "Method not allowed"
		case http.StatusServiceUnavailable:
			errorMessage.ErrMessage = "Service unavailable"
		case http.StatusBadRequest:
			errorMessage.ErrMessage = "Bad request"
		default:
			errorMessage.ErrMessage = "Internal error"
		}
	}

	writeJSON(w, status, errorMessage)
}
