package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"
)

// SpeedFeed pulls recent observed speeds for a road from any REST API
// with a JSON response, extracting values with gjson path expressions.
// It supplies the recent-history context that lag and rolling features
// need for live predictions, without coupling the engine to one traffic
// data provider.
//
// URL, Body, and header values are text templates with the variables
// {{.Road}} and {{.Limit}}:
//
//	feed := &SpeedFeed{
//	    URL:       "https://feeds.example.com/speeds?road={{.Road}}&limit={{.Limit}}",
//	    SpeedPath: "data.#.speed_kmh",
//	}
type SpeedFeed struct {
	// URL is the endpoint template (required).
	URL string

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are extra request headers; values may use template variables.
	Headers map[string]string

	// Body is the request body template for POST-style feeds.
	Body string

	// SpeedPath is the gjson path to the speed array, oldest first.
	// Use "#" for arrays, e.g. "data.#.speed_kmh".
	SpeedPath string

	// HTTPClient is optional; a default client with a timeout is used
	// when nil.
	HTTPClient *http.Client
}

// RecentSpeeds fetches up to limit recent speeds for road, oldest first.
func (f *SpeedFeed) RecentSpeeds(ctx context.Context, road string, limit int) ([]float64, error) {
	if f.URL == "" {
		return nil, errors.New("speed feed: URL is required")
	}
	if f.SpeedPath == "" {
		return nil, errors.New("speed feed: SpeedPath is required")
	}
	if limit <= 0 {
		limit = 3
	}

	vars := map[string]any{
		"Road":  url.QueryEscape(road),
		"Limit": limit,
	}

	endpoint, err := renderTemplate(f.URL, vars)
	if err != nil {
		return nil, fmt.Errorf("render url template: %w", err)
	}

	method := f.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if f.Body != "" {
		body, err := renderTemplate(f.Body, vars)
		if err != nil {
			return nil, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = bytes.NewBufferString(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range f.Headers {
		rendered, err := renderTemplate(value, vars)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	cli := f.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speed feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("speed feed status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	result := gjson.GetBytes(respBody, f.SpeedPath)
	if !result.Exists() {
		return nil, fmt.Errorf("speed path %q not found in response", f.SpeedPath)
	}

	values := result.Array()
	if len(values) > limit {
		values = values[len(values)-limit:]
	}

	speeds := make([]float64, 0, len(values))
	for _, v := range values {
		speeds = append(speeds, v.Float())
	}
	return speeds, nil
}

func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
