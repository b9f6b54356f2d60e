package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoJSON_RoundTripAndErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected json content type")
			}
			_, _ = w.Write([]byte(`{"value":"pong"}`))
		default:
			http.Error(w, "nope", http.StatusTeapot)
		}
	}))
	defer ts.Close()

	c, err := NewWithBaseURL(ts.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("NewWithBaseURL error: %v", err)
	}

	var out struct {
		Value string `json:"value"`
	}
	if err := c.DoJSON(context.Background(), http.MethodPost, "ok", nil, map[string]string{"ping": "1"}, &out); err != nil {
		t.Fatalf("DoJSON error: %v", err)
	}
	if out.Value != "pong" {
		t.Fatalf("unexpected body %#v", out)
	}

	err = c.DoJSON(context.Background(), http.MethodGet, "/missing", nil, nil, nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTeapot || httpErr.Body != "nope" {
		t.Fatalf("expected HTTPError 418, got %v", err)
	}
}

func TestResolveURL(t *testing.T) {
	c := New(0)
	if _, err := c.resolveURL("/x"); err != ErrNeedsBaseURL {
		t.Fatalf("expected ErrNeedsBaseURL, got %v", err)
	}
	if _, err := c.resolveURL(" "); err != ErrEmptyURL {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
	if got, _ := c.resolveURL("https://iam.example/v1"); got != "https://iam.example/v1" {
		t.Fatalf("absolute url should pass through, got %q", got)
	}
	if _, err := NewWithBaseURL("not a url", 0); err == nil {
		t.Fatalf("expected invalid base url error")
	}
}
