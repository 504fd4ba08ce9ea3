package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Sternrassler/photo-feed-client/internal/testutil"
	"github.com/Sternrassler/photo-feed-client/pkg/feederr"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "client_id",
			in:   "https://api.example.com/photos?client_id=secret&page=2",
			want: "https://api.example.com/photos?client_id=REDACTED&page=2",
		},
		{
			name: "token",
			in:   "https://api.example.com/photos?token=secret",
			want: "https://api.example.com/photos?token=REDACTED",
		},
		{
			name: "no credentials",
			in:   "https://img.example/a.jpg?w=400&fm=jpg",
			want: "https://img.example/a.jpg?w=400&fm=jpg",
		},
		{
			name: "unparseable keeps path only",
			in:   "http://[::1%zz/photos?client_id=secret",
			want: "http://[::1%zz/photos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactURL(tt.in); got != tt.want {
				t.Errorf("RedactURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedactError(t *testing.T) {
	raw := "https://api.example.com/photos?client_id=secret"

	tests := []struct {
		name string
		err  error
	}{
		{"feed error", feederr.HTTPStatus(raw, http.StatusInternalServerError)},
		{"url error", &url.Error{Op: "Get", URL: raw, Err: errors.New("connection refused")}},
		{"nested", feederr.Transport(raw, &url.Error{Op: "Get", URL: raw, Err: errors.New("timeout")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactError(tt.err)
			if strings.Contains(got.Error(), "secret") {
				t.Errorf("RedactError() = %q, access key leaked", got)
			}
			if feederr.ClassOf(got) != feederr.ClassOf(tt.err) {
				t.Errorf("class = %s, want %s", feederr.ClassOf(got), feederr.ClassOf(tt.err))
			}
		})
	}

	// The original error is left untouched.
	fe := feederr.HTTPStatus(raw, http.StatusNotFound)
	_ = RedactError(fe)
	if fe.URL != raw {
		t.Errorf("original URL modified to %q", fe.URL)
	}

	if RedactError(nil) != nil {
		t.Error("RedactError(nil) should be nil")
	}
}

func TestClient_FetchNeverExposesCredentials(t *testing.T) {
	logs := testutil.CaptureLogs(t)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	client, err := New(DefaultConfig("PhotoFeedTest/1.0"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name  string
		url   string
		class feederr.Class
	}{
		{"non-2xx status", failing.URL + "/photos?client_id=secret-key&page=1", feederr.ClassHTTPStatus},
		{"connection refused", closedURL + "/photos?client_id=secret-key&page=1", feederr.ClassTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Fetch(context.Background(), tt.url)
			if !feederr.IsClass(err, tt.class) {
				t.Fatalf("Fetch() error = %v, want class %s", err, tt.class)
			}
			if strings.Contains(err.Error(), "secret-key") {
				t.Errorf("error leaks access key: %v", err)
			}
		})
	}

	if !logs.Contains("Executing request") {
		t.Fatal("expected request logs to be captured")
	}
	if logs.Contains("secret-key") {
		t.Errorf("logs leak access key:\n%s", logs.String())
	}
}
