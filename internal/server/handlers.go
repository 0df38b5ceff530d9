package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"postcrawler/pkg/crawler"
	errs "postcrawler/pkg/errors"
	"postcrawler/pkg/models"
)

const maxBodyBytes = 64 << 10

// CrawlRequest is the body of POST /crawl
type CrawlRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,required,url"`
	// URL is accepted as a single-target shorthand
	URL      string `json:"url,omitempty" validate:"omitempty,url"`
	MaxPosts int    `json:"max_posts" validate:"gte=0,lte=100"`
}

// URLResult reports one requested URL
type URLResult struct {
	URL       string `json:"url"`
	Success   bool   `json:"success"`
	Extracted int    `json:"extracted"`
	Saved     int    `json:"saved"`
	Error     string `json:"error,omitempty"`
}

// CrawlResponse is the body of a completed POST /crawl
type CrawlResponse struct {
	RunID      string      `json:"run_id"`
	AuthState  string      `json:"auth_state"`
	Results    []URLResult `json:"results"`
	TotalSaved int         `json:"total_saved"`
	Error      string      `json:"error,omitempty"`
}

// exampleRequest is echoed back on malformed input
var exampleRequest = CrawlRequest{
	URLs:     []string{"https://www.linkedin.com/in/some-profile", "https://www.linkedin.com/company/some-company"},
	MaxPosts: 10,
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.jsonResponse(w, http.StatusBadRequest, map[string]interface{}{
		"error":   message,
		"example": exampleRequest,
	})
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req CrawlRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			s.badRequest(w, "request body is required")
			return
		}
		s.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.URL != "" {
		req.URLs = append([]string{req.URL}, req.URLs...)
	}
	for i, u := range req.URLs {
		req.URLs[i] = strings.TrimSpace(u)
	}
	if err := s.validate.Struct(req); err != nil {
		s.badRequest(w, s.validationMessage(err))
		return
	}
	if len(req.URLs) > s.maxURLs {
		s.badRequest(w, s.urlCountMessage())
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	s.logger.InfoWithFields("On-demand crawl requested", map[string]interface{}{
		"urls":      len(req.URLs),
		"max_posts": req.MaxPosts,
	})

	summary, err := s.crawler.CrawlURLs(ctx, req.URLs, req.MaxPosts)
	if errors.Is(err, crawler.ErrBusy) {
		s.errorResponse(w, http.StatusConflict, err.Error())
		return
	}
	if summary == nil {
		s.errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("crawl failed: %v", err))
		return
	}

	resp := buildResponse(req.URLs, summary)
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		switch {
		case errs.IsRunFatal(errs.TypeOf(err)):
			status = http.StatusBadGateway
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusInternalServerError
		}
	}
	s.jsonResponse(w, status, resp)
}

// buildResponse reports every requested URL in order, including ones the run never reached
func buildResponse(urls []string, summary *models.RunSummary) CrawlResponse {
	resp := CrawlResponse{
		RunID:      summary.RunID,
		AuthState:  summary.AuthState,
		Results:    make([]URLResult, 0, len(urls)),
		TotalSaved: summary.PostsNewTotal,
	}
	for i, u := range urls {
		if i < len(summary.PerSource) {
			src := summary.PerSource[i]
			resp.Results = append(resp.Results, URLResult{
				URL:       u,
				Success:   src.Success,
				Extracted: src.Extracted,
				Saved:     src.Saved,
				Error:     src.Error,
			})
			continue
		}
		resp.Results = append(resp.Results, URLResult{URL: u, Error: "not crawled"})
	}
	return resp
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusNotFound, "run history is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list runs")
		s.errorResponse(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) urlCountMessage() string {
	return fmt.Sprintf("urls must contain between 1 and %d entries", s.maxURLs)
}

// validationMessage renders validator errors by JSON field name
func (s *Server) validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch {
		case strings.HasPrefix(field, "urls["):
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", field))
		case field == "urls" && fe.Tag() == "required":
			msgs = append(msgs, "urls is required")
		case field == "urls":
			msgs = append(msgs, s.urlCountMessage())
		case field == "maxposts":
			msgs = append(msgs, "max_posts must be between 0 and 100")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
