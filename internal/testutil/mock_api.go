// Package testutil provides testing utilities for the photo feed client.
package testutil

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// PhotosPath is the listing path served by MockAPI.
const PhotosPath = "/photos"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock photo API and image host for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	pages    map[int][]byte
	gates    map[string]chan struct{}

	quotaLimit     int
	quotaRemaining int

	// Tracking
	requestCount int
	pathCounts   map[string]int
	lastQuery    map[string]string
}

// NewMockAPI creates a new mock API server. Unconfigured pages return an
// empty array and unknown paths return 404.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:       make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pages:          make(map[int][]byte),
		gates:          make(map[string]chan struct{}),
		pathCounts:     make(map[string]int),
		quotaLimit:     50,
		quotaRemaining: 50,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		if r.URL.Path == PhotosPath {
			mock.lastQuery = make(map[string]string)
			for k := range r.URL.Query() {
				mock.lastQuery[k] = r.URL.Query().Get(k)
			}
		}
		gate := mock.gates[r.URL.Path]
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// PhotosURL returns the listing endpoint URL.
func (m *MockAPI) PhotosURL() string {
	return m.server.URL + PhotosPath
}

// ImageURL returns the absolute URL for an image path.
func (m *MockAPI) ImageURL(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.mu.Lock()
	for path, gate := range m.gates {
		close(gate)
		delete(m.gates, path)
	}
	m.mu.Unlock()
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if len(resp.Body) > 0 {
			w.Write(resp.Body)
		}
	})
}

// SetPage configures the listing body returned for a page number.
func (m *MockAPI) SetPage(page int, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = body
}

// SetImage serves data as image/png at path.
func (m *MockAPI) SetImage(path string, data []byte) {
	m.SetResponse(path, MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers:    map[string]string{"Content-Type": "image/png"},
	})
}

// SetQuota sets the quota headers sent with every listing response.
func (m *MockAPI) SetQuota(limit, remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotaLimit = limit
	m.quotaRemaining = remaining
}

// Block holds every request to path until the returned release is called.
func (m *MockAPI) Block(path string) (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gates[path] = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gates[path] == gate {
				delete(m.gates, path)
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastQuery returns the query parameters of the latest listing request.
func (m *MockAPI) LastQuery(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery[key]
}

// defaultHandler serves configured pages with quota headers.
func (m *MockAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != PhotosPath {
		http.NotFound(w, r)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	m.mu.Lock()
	body, ok := m.pages[page]
	if m.quotaRemaining > 0 {
		m.quotaRemaining--
	}
	limit, remaining := m.quotaLimit, m.quotaRemaining
	m.mu.Unlock()

	if !ok {
		body = []byte("[]")
	}

	w.Header().Set("X-Ratelimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-Ratelimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// PhotosJSON builds a listing document with one photo per image URL.
// Photo ids are "photo-1", "photo-2", and so on.
func PhotosJSON(imageURLs ...string) []byte {
	type urls struct {
		Regular string `json:"regular"`
	}
	type photo struct {
		ID   string `json:"id"`
		URLs urls   `json:"urls"`
	}

	photos := make([]photo, len(imageURLs))
	for i, u := range imageURLs {
		photos[i] = photo{ID: "photo-" + strconv.Itoa(i+1), URLs: urls{Regular: u}}
	}
	data, err := json.Marshal(photos)
	if err != nil {
		panic(err)
	}
	return data
}

// PNG returns an encoded solid-color PNG of the given size.
func PNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       []byte(`{"errors":["Internal server error"]}`),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 403 response with an exhausted quota, the
// way the listing API reports it.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       []byte("Rate Limit Exceeded"),
		Headers: map[string]string{
			"X-Ratelimit-Limit":     "50",
			"X-Ratelimit-Remaining": "0",
		},
	}
}
