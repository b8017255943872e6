// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package detail polls the generation service for a job's result.
package detail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/genplay/internal/platform/httpx"
)

const (
	successCode  = 1
	maxErrorBody = 4 << 10
)

// Result is the detail endpoint's view of a job.
type Result struct {
	Status          string
	PlaybackURL     string
	DownloadURL     string
	CoverURL        string
	Title           string
	AnswerText      string
	TranscriptLines []string
}

// Ready reports whether the job has a playable URL.
func (r Result) Ready() bool { return r.PlaybackURL != "" }

type envelope struct {
	Code  int             `json:"code"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Msg   string          `json:"msg"`
	Error string          `json:"error"`
}

type payload struct {
	Status      string   `json:"status"`
	VideoURL    string   `json:"video_url"`
	DownloadURL string   `json:"download_url"`
	CoverURL    string   `json:"cover_url"`
	Title       string   `json:"title"`
	Answer      string   `json:"answer"`
	Transcript  []string `json:"transcript"`
}

// Client queries the detail endpoint.
type Client struct {
	base string
	path string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New creates a detail client for {base}{path}.
func New(base, path string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		path: path,
		http: httpx.Instrument(httpx.NewClient(timeout), "detail.get"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detail fetches the job once. Errors wrap one of the package sentinels in *Error.
func (c *Client) Detail(ctx context.Context, id string) (Result, error) {
	u := c.base + c.path + "?id=" + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, &Error{Sentinel: ErrBadResponse, JobID: id, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &Error{Sentinel: ErrUnavailable, JobID: id, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return Result{}, &Error{
			Sentinel: classifyStatus(res.StatusCode),
			JobID:    id,
			Status:   res.StatusCode,
			Message:  strings.TrimSpace(string(body)),
		}
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return Result{}, &Error{Sentinel: ErrBadResponse, JobID: id, Status: res.StatusCode, Err: err}
	}
	if env.Code != successCode || !env.OK {
		msg := env.Msg
		if msg == "" {
			msg = env.Error
		}
		return Result{}, &Error{Sentinel: ErrUpstreamError, JobID: id, Status: res.StatusCode, Message: msg}
	}

	var p payload
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Result{}, &Error{Sentinel: ErrBadResponse, JobID: id, Status: res.StatusCode, Err: err}
		}
	}
	return Result{
		Status:          p.Status,
		PlaybackURL:     p.VideoURL,
		DownloadURL:     p.DownloadURL,
		CoverURL:        p.CoverURL,
		Title:           p.Title,
		AnswerText:      p.Answer,
		TranscriptLines: p.Transcript,
	}, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return ErrUpstreamError
	default:
		return ErrBadResponse
	}
}
