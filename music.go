/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultMusicAPI   = "https://itunes.apple.com/search"
	defaultMusicLimit = 10
	maxMusicLimit     = 25
	maxMusicTerm      = 100
)

// Track is the trimmed metadata returned to clients.
type Track struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

type musicSearcher interface {
	Search(ctx context.Context, term string, limit int) ([]Track, error)
}

type itunesClient struct {
	endpoint string
	http     *http.Client
}

func newITunesClient(endpoint string) *itunesClient {
	return &itunesClient{
		endpoint: endpoint,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type itunesResponse struct {
	Results []struct {
		TrackID        int64  `json:"trackId"`
		TrackName      string `json:"trackName"`
		ArtistName     string `json:"artistName"`
		CollectionName string `json:"collectionName"`
		ArtworkURL100  string `json:"artworkUrl100"`
		PreviewURL     string `json:"previewUrl"`
	} `json:"results"`
}

func (c *itunesClient) Search(ctx context.Context, term string, limit int) ([]Track, error) {
	q := url.Values{
		"term":   {term},
		"media":  {"music"},
		"entity": {"song"},
		"limit":  {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("music search returned %s", resp.Status)
	}

	var body itunesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding music search: %w", err)
	}

	tracks := make([]Track, 0, len(body.Results))
	for _, r := range body.Results {
		if r.TrackName == "" {
			continue
		}
		tracks = append(tracks, Track{
			ID:         r.TrackID,
			Title:      r.TrackName,
			Artist:     r.ArtistName,
			Album:      r.CollectionName,
			ArtworkURL: r.ArtworkURL100,
			PreviewURL: r.PreviewURL,
		})
	}
	return tracks, nil
}

var errBadSearch = errors.New("search term must be 1-100 characters")

func musicQuery(r *http.Request) (string, int, error) {
	term := strings.TrimSpace(r.URL.Query().Get("term"))
	if term == "" || utf8.RuneCountInString(term) > maxMusicTerm {
		return "", 0, errBadSearch
	}

	limit := defaultMusicLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return "", 0, errors.New("invalid limit")
		}
		limit = min(n, maxMusicLimit)
	}

	return term, limit, nil
}

func serveMusicSearch(cfg *Config, s musicSearcher, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		term, limit, err := musicQuery(r)
		if err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, response{Error: err.Error()}, errs)

			return
		}

		tracks, err := s.Search(r.Context(), term, limit)
		if err != nil {
			logf(cfg, "MUSIC: Search for %q failed: %v", term, err)
			writeJSON(cfg, w, http.StatusBadGateway, response{Error: "music search failed"}, errs)

			return
		}

		written := writeJSON(cfg, w, http.StatusOK, response{Success: true, Data: tracks}, errs)

		logf(cfg, "MUSIC: %d results for %q (%s) to %s in %s",
			len(tracks),
			term,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
