package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// HTTPResult captures HTTP response details for test assertions
type HTTPResult struct {
	Code    int
	Error   error
	Headers http.Header
	Cookies []*http.Cookie
	Body    []byte
}

// Option adjusts a request before it is served
type Option func(*http.Request)

// WithCookies attaches cookies, typically those set by an earlier result
func WithCookies(cookies ...*http.Cookie) Option {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

// WithRemoteAddr sets the client address seen by the handler
func WithRemoteAddr(addr string) Option {
	return func(r *http.Request) {
		r.RemoteAddr = addr
	}
}

// ExpectStatus validates the HTTP status code and fails the test if it doesn't match
func ExpectStatus(
	t *testing.T,
	expected int,
	result HTTPResult,
) {
	t.Helper()
	if result.Error != nil {
		t.Fatalf("request error: %v", result.Error)
	}
	if result.Code != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, result.Code, string(result.Body))
	}
}

// ExpectRedirect validates a redirect response and returns the Location header
func ExpectRedirect(
	t *testing.T,
	result HTTPResult,
) string {
	t.Helper()
	if result.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect (303), got %d. Body: %s", result.Code, string(result.Body))
	}
	location := result.Headers.Get("Location")
	if location == "" {
		t.Fatal("expected Location header in redirect")
	}
	return location
}

// Get serves a GET request and optionally decodes a JSON response
func Get(
	router http.Handler,
	url string,
	response any,
	opts ...Option,
) HTTPResult {
	return serve(router, httptest.NewRequest(http.MethodGet, url, nil), response, opts)
}

// Post serves a POST request and optionally decodes a JSON response
func Post(
	router http.Handler,
	url string,
	body string,
	response any,
	opts ...Option,
) HTTPResult {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return serve(router, httptest.NewRequest(http.MethodPost, url, reader), response, opts)
}

func serve(
	router http.Handler,
	req *http.Request,
	response any,
	opts []Option,
) HTTPResult {
	for _, opt := range opts {
		opt(req)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	result := HTTPResult{
		Code:    res.Code,
		Headers: res.Header(),
		Cookies: res.Result().Cookies(),
		Body:    res.Body.Bytes(),
	}
	if response != nil && res.Body.Len() > 0 {
		if err := json.Unmarshal(res.Body.Bytes(), response); err != nil {
			result.Error = fmt.Errorf("failed to decode JSON: %v\n%s", err, res.Body.String())
		}
	}
	return result
}
