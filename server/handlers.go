package server

import (
	"Pictor/core"
	"Pictor/lib/sl"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const maxRequestBytes = 1 << 20

func (s *Server) generateImage(w http.ResponseWriter, r *http.Request) {
	var request core.GenerationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&request); err != nil {
		s.log.Warn("decoding generation request", sl.Err(err))
		http.Error(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	started := time.Now()
	result, err := s.images.GenerateImage(r.Context(), request)
	s.metrics.RecordGeneration(request.Style, err, time.Since(started))
	if err != nil {
		log := s.log.With(slog.String("style", request.Style))
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			log.Warn("rejected generation request", sl.Err(err))
			http.Error(w, "Invalid style value provided.", http.StatusBadRequest)
		case errors.Is(err, core.ErrUpstream):
			log.Error("generating image", sl.Err(err))
			http.Error(w, "Error generating image", http.StatusInternalServerError)
		default:
			log.Error("processing image", sl.Err(err))
			http.Error(w, "Error processing image", http.StatusInternalServerError)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) imagesData(w http.ResponseWriter, r *http.Request) {
	entries, err := s.images.ListImages(r.Context())
	if err != nil {
		s.log.Error("listing images", sl.Err(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "Unable to read images directory",
		})
		return
	}
	if entries == nil {
		entries = []core.ImageEntry{}
	}
	s.metrics.RecordListing(len(entries))
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	file, err := s.images.OpenImage(r.Context(), name)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.With(slog.String("file", name)).Error("opening image", sl.Err(err))
		http.Error(w, "Error reading image", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := file.Content.Close(); err != nil {
			s.log.Warn("closing image", sl.Err(err))
		}
	}()
	http.ServeContent(w, r, file.Name, file.ModTime, file.Content)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("writing response", sl.Err(err))
	}
}
