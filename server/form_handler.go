package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tgstream/core/job"
	"tgstream/logger"
	"tgstream/model"
)

type pageData struct {
	Link            string
	TargetChat      string
	ShowCredentials bool
	Result          *job.Result
}

// IndexHandler renders the empty form.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{})
}

// SubmitFormHandler runs the submitted link through the pipeline and renders the outcome.
func (s *Server) SubmitFormHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	req := job.Request{
		Link:       strings.TrimSpace(r.PostForm.Get("telegram_link")),
		TargetChat: strings.TrimSpace(r.PostForm.Get("target_chat")),
		BotToken:   strings.TrimSpace(r.PostForm.Get("bot_token")),
	}
	res := s.jobs.Run(r.Context(), req)

	// the token is never echoed back into the page
	s.render(w, http.StatusOK, pageData{
		Link:            req.Link,
		TargetChat:      req.TargetChat,
		ShowCredentials: req.BotToken != "",
		Result:          res,
	})
}

// formRateLimited renders the form again with the throttling message.
func (s *Server) formRateLimited(w http.ResponseWriter, r *http.Request, wait time.Duration) {
	r.ParseForm()
	s.render(w, http.StatusTooManyRequests, pageData{
		Link:       strings.TrimSpace(r.PostForm.Get("telegram_link")),
		TargetChat: strings.TrimSpace(r.PostForm.Get("target_chat")),
		Result: &job.Result{
			Category: model.CategoryDanger,
			Message:  fmt.Sprintf("%s Try again in %d seconds.", msgTooManyRequests, retryAfter(wait)),
		},
	})
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.Error("Failed to render page", logger.ErrorField(err))
	}
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"mode":    s.jobs.Mode(job.Request{}),
		"mirror":  s.store != nil,
		"signing": s.jobs.Signer().Enabled(),
	})
}
