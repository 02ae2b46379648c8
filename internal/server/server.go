// Package server exposes a print session over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"tomgalvin.uk/catprint/internal/bitmap"
	"tomgalvin.uk/catprint/internal/config"
	"tomgalvin.uk/catprint/internal/history"
	"tomgalvin.uk/catprint/internal/printer"
	"tomgalvin.uk/catprint/internal/render"
)

const (
	maxImageSize    = 32 << 20
	defaultJobLimit = 50
	maxJobLimit     = 500
	requestTimeout  = 2 * time.Minute
)

type Server struct {
	Session  *printer.Session
	History  *history.Repository
	Hub      *Hub
	Defaults config.Print

	logger *slog.Logger
	// print jobs outlive their request and stop with this context
	ctx context.Context
	wg  sync.WaitGroup
}

func New(ctx context.Context, session *printer.Session, repo *history.Repository, hub *Hub, defaults config.Print, logger *slog.Logger) *Server {
	return &Server{
		Session:  session,
		History:  repo,
		Hub:      hub,
		Defaults: defaults,
		logger:   logger.With("src", "http"),
		ctx:      ctx,
	}
}

// Wait blocks until every print job started by the server has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// NotifyStatus returns a session status handler that publishes the session
// info on the event stream.
func NotifyStatus(h *Hub, info func() printer.Info, supported bool) func(printer.State) {
	return func(st printer.State) {
		i := info()
		i.State = st
		h.Broadcast(StatusEvent, FromInfo(i, supported))
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/status", s.handleStatus)
			r.Post("/connect", s.handleConnect)
			r.Post("/disconnect", s.handleDisconnect)
			r.Post("/print", s.handlePrint)
			r.Post("/preview", s.handlePreview)
			r.Post("/feed", s.handleFeed)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{id}", s.handleGetJob)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) status() StatusResponse {
	return FromInfo(s.Session.Info(), s.Session.IsSupported())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.Hub.Serve(w, r, Message{Type: StatusEvent, Data: s.status()})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.Connect(r.Context()); err != nil {
		if printer.IsPairingDeclined(err) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.Session.Disconnect()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	lines, err := intParam(r, "lines", s.Defaults.FeedLines)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{err.Error()})
		return
	}
	if err := s.Session.FeedPaper(r.Context(), lines); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// quantize decodes the request body and renders it with the request's
// options over the configured defaults.
func (s *Server) quantize(w http.ResponseWriter, r *http.Request) (*render.Result, render.Options, printer.PrintParams, error) {
	opts, params, err := parseOptions(r, s.Defaults)
	if err != nil {
		return nil, opts, params, err
	}
	img, err := render.Load(http.MaxBytesReader(w, r.Body, maxImageSize))
	if err != nil {
		return nil, opts, params, err
	}
	result, err := render.Quantize(img, opts)
	return result, opts, params, err
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	result, _, _, err := s.quantize(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, render.Preview(result.Bitmap)); err != nil {
		s.logger.Warn("Couldn't write preview", "error", err)
	}
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	if s.Session.State() != printer.Connected {
		s.writeError(w, printer.ErrNotConnected)
		return
	}
	result, opts, params, err := s.quantize(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	job := &history.Job{
		DeviceName: s.Session.DeviceName(),
		Width:      result.Width,
		Height:     result.Height,
		Algorithm:  string(opts.Algorithm),
		Energy:     params.Energy,
	}
	if err := s.History.Create(job); err != nil {
		s.writeError(w, err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job, result.Bitmap, params)
	}()

	writeJSON(w, http.StatusAccepted, FromJob(job))
}

func (s *Server) runJob(job *history.Job, b *bitmap.PackedBitmap, params printer.PrintParams) {
	logger := s.logger.With("job", job.Uuid)
	id := job.Uuid.String()

	if err := s.History.Start(job.Uuid, s.Session.DeviceName()); err != nil {
		logger.Error("Couldn't record job start", "error", err)
	}

	err := s.Session.PrintImage(s.ctx, b, params, func(percent int) {
		s.Hub.Broadcast(ProgressEvent, Progress{Job: id, Percent: percent})
	})
	if err != nil {
		logger.Error("Print job failed", "error", err)
	}

	if err := s.History.Finish(job.Uuid, err); err != nil {
		logger.Error("Couldn't record job result", "error", err)
		return
	}
	if done, err := s.History.Get(job.Uuid); err == nil && done != nil {
		s.Hub.Broadcast(JobEvent, FromJob(done))
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultJobLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{err.Error()})
		return
	}
	limit = max(1, min(limit, maxJobLimit))

	jobs, err := s.History.List(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]JobResponse, len(jobs))
	for i := range jobs {
		resp[i] = FromJob(&jobs[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	u, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{"Invalid job id"})
		return
	}
	job, err := s.History.Get(u)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if job == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{"No such job"})
		return
	}
	writeJSON(w, http.StatusOK, FromJob(job))
}

var errBadParam = errors.New("invalid parameter")

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %q is not a number", errBadParam, name, v)
	}
	return n, nil
}

func parseOptions(r *http.Request, defaults config.Print) (render.Options, printer.PrintParams, error) {
	opts := defaults.RenderOptions()
	params := defaults.PrintParams()

	if d := r.URL.Query().Get("dither"); d != "" {
		a, err := render.ParseAlgorithm(d)
		if err != nil {
			return opts, params, fmt.Errorf("%w dither:\n%w", errBadParam, err)
		}
		opts.Algorithm = a
	}

	var err error
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"threshold", &opts.Threshold},
		{"brightness", &opts.Brightness},
		{"contrast", &opts.Contrast},
		{"sharpen", &opts.Sharpen},
		{"energy", &params.Energy},
		{"feed", &params.FeedLines},
	} {
		if *p.dst, err = intParam(r, p.name, *p.dst); err != nil {
			return opts, params, err
		}
	}
	return opts, params, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadParam), errors.Is(err, render.ErrDecodeFailed):
		status = http.StatusBadRequest
	case errors.Is(err, printer.ErrNotConnected), errors.Is(err, printer.ErrAlreadyConnected):
		status = http.StatusConflict
	case errors.Is(err, printer.ErrUnsupportedTransport):
		status = http.StatusNotImplemented
	case errors.Is(err, printer.ErrDiscoveryFailed), errors.Is(err, printer.ErrTransportWriteFailed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
