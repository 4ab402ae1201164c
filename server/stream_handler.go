package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"tgstream/core/video"
	"tgstream/logger"
	"tgstream/model"
	"tgstream/repository"
	"tgstream/storage"

	"github.com/gorilla/mux"
)

var segmentNameRe = regexp.MustCompile(`^segment_\d{3,}\.ts$`)

// objects up to this size are buffered so they can be put in the segment cache
const maxBufferedObject = 16 << 20

func validStreamFile(name string) bool {
	return name == video.PlaylistName || segmentNameRe.MatchString(name)
}

// StreamHandler serves the playlist and segments of a job from disk, falling
// back to object storage.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, file := vars["id"], vars["file"]
	if !model.IsJobID(id) || !validStreamFile(file) {
		http.NotFound(w, r)
		return
	}

	token := r.URL.Query().Get("token")
	if err := s.jobs.Signer().Verify(token, id); err != nil {
		logger.Warn("Rejected stream request", logger.String("jobId", id), logger.ErrorField(err))
		http.Error(w, "Invalid or expired stream link", http.StatusForbidden)
		return
	}

	ctx := r.Context()
	job, err := s.jobs.Get(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrJobNotFound) {
		logger.Warn("Job lookup failed, serving from storage", logger.String("jobId", id), logger.ErrorField(err))
	}
	if job != nil && job.Status == model.JobStatusFailed {
		http.Error(w, "Stream not available: "+job.Message, http.StatusNotFound)
		return
	}

	hlsDir := s.jobs.HLSDir(id)
	if job != nil && !job.Done() {
		// the output directory appears atomically when the job finishes
		if err := video.WaitForFile(ctx, hlsDir, s.readyWait); err != nil {
			notReady(w, job)
			return
		}
	}

	localPath := filepath.Join(hlsDir, file)
	if f, err := os.Open(localPath); err == nil {
		defer f.Close()
		s.serveLocal(w, r, f, id, file, token)
		return
	}

	if s.store != nil && s.serveMirrored(w, r, id, file, token) {
		return
	}

	if job != nil && !job.Done() {
		notReady(w, job)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) serveLocal(w http.ResponseWriter, r *http.Request, f *os.File, id, file, token string) {
	if file == video.PlaylistName {
		data, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, "Failed to read playlist", http.StatusInternalServerError)
			return
		}
		s.writePlaylist(w, data, token)
		return
	}

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Failed to read segment", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", storage.ContentType(file))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, file, info.ModTime(), f)
}

// serveMirrored reports whether the file was found in the segment cache or object storage.
func (s *Server) serveMirrored(w http.ResponseWriter, r *http.Request, id, file, token string) bool {
	ctx := r.Context()

	if s.segments != nil {
		if data := s.segments.Get(ctx, id, file); data != nil {
			s.writeBytes(w, r, file, data, token)
			return true
		}
	}

	obj, info, err := s.store.Open(ctx, id, file)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return false
	}
	if err != nil {
		logger.Error("Failed to read mirrored stream file",
			logger.String("jobId", id),
			logger.String("file", file),
			logger.ErrorField(err))
		http.Error(w, "Storage unavailable", http.StatusBadGateway)
		return true
	}
	defer obj.Close()

	if info.Size > maxBufferedObject {
		w.Header().Set("Content-Type", storage.ContentType(file))
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if _, err := io.Copy(w, obj); err != nil {
			logger.Error("Error serving file from MinIO", logger.ErrorField(err))
		}
		return true
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		http.Error(w, "Failed to read from storage", http.StatusBadGateway)
		return true
	}
	if s.segments != nil {
		s.segments.Set(ctx, id, file, data)
	}
	s.writeBytes(w, r, file, data, token)
	return true
}

func (s *Server) writeBytes(w http.ResponseWriter, r *http.Request, file string, data []byte, token string) {
	if file == video.PlaylistName {
		s.writePlaylist(w, data, token)
		return
	}
	w.Header().Set("Content-Type", storage.ContentType(file))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, file, time.Time{}, bytes.NewReader(data))
}

// writePlaylist serves a playlist, carrying the stream token over to segment URIs.
func (s *Server) writePlaylist(w http.ResponseWriter, data []byte, token string) {
	if token != "" && s.jobs.Signer().Enabled() {
		rewritten, err := video.RewriteSegmentURIs(data, func(uri string) string {
			return uri + "?token=" + url.QueryEscape(token)
		})
		if err != nil {
			logger.Error("Failed to rewrite playlist", logger.ErrorField(err))
			http.Error(w, "Invalid playlist", http.StatusInternalServerError)
			return
		}
		data = rewritten
	}
	w.Header().Set("Content-Type", storage.ContentType(video.PlaylistName))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func notReady(w http.ResponseWriter, job *model.Job) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "2")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      job.ID,
		"status":  job.Status,
		"message": "Stream not ready yet",
	})
}
