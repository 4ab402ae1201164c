package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tgstream/core/job"
	"tgstream/logger"
	"tgstream/model"
	"tgstream/repository"

	"github.com/gorilla/mux"
)

type createJobRequest struct {
	Link       string `json:"link"`
	TargetChat string `json:"targetChat,omitempty"`
	BotToken   string `json:"botToken,omitempty"`
}

type jobResponse struct {
	Job         *model.Job `json:"job,omitempty"`
	Category    string     `json:"category,omitempty"`
	Message     string     `json:"message"`
	EmbedURL    string     `json:"embedUrl,omitempty"`
	PlaylistURL string     `json:"playlistUrl,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write JSON response", logger.ErrorField(err))
	}
}

// CreateJobHandler accepts a link and processes it in the background.
func (s *Server) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	var body createJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
		return
	}

	res := s.jobs.Submit(r.Context(), job.Request{
		Link:       strings.TrimSpace(body.Link),
		TargetChat: strings.TrimSpace(body.TargetChat),
		BotToken:   strings.TrimSpace(body.BotToken),
	})

	status := http.StatusAccepted
	switch {
	case res.Category == model.CategoryDanger:
		status = http.StatusBadRequest
		if res.Job == nil && res.Message == job.MsgInternal {
			status = http.StatusInternalServerError
		}
	case res.Job == nil:
		// embed only, nothing to wait for
		status = http.StatusOK
	}

	writeJSON(w, status, jobResponse{
		Job:      res.Job,
		Category: res.Category,
		Message:  res.Message,
		EmbedURL: res.EmbedURL,
	})
}

// GetJobHandler reports the state of a job.
func (s *Server) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !model.IsJobID(id) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "Job not found"})
		return
	}

	j, err := s.jobs.Get(r.Context(), id)
	if errors.Is(err, repository.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "Job not found"})
		return
	}
	if err != nil {
		logger.Error("Failed to load job", logger.String("jobId", id), logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Failed to load job"})
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		Job:         j,
		Category:    j.Category(),
		Message:     j.Message,
		PlaylistURL: s.jobs.PlaylistURL(j),
	})
}
