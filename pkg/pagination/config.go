package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/photo-feed-client/pkg/transport"
)

// DefaultEndpoint is the photo listing endpoint.
const DefaultEndpoint = "https://api.unsplash.com/photos"

// MaxPerPage is the largest page size the API accepts.
const MaxPerPage = 30

// Config holds page source configuration.
type Config struct {
	// Endpoint is the base URL of the photo listing.
	Endpoint string

	// AccessKey is sent as the client_id query parameter (REQUIRED).
	AccessKey string

	// OrderBy is the ordering key (latest, oldest, popular).
	OrderBy string

	// PerPage is the number of photos requested per page.
	PerPage int

	// TotalPages is the constant upper bound on pages. Loading stops once the
	// current page reaches it.
	TotalPages int

	// Timeout bounds one page fetch including quota throttling.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration for the given access key.
func DefaultConfig(accessKey string) Config {
	return Config{
		Endpoint:   DefaultEndpoint,
		AccessKey:  accessKey,
		OrderBy:    "latest",
		PerPage:    10,
		TotalPages: 10000,
		Timeout:    15 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.AccessKey == "" {
		return fmt.Errorf("access key is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute URL (got %q)", c.Endpoint)
	}
	if c.TotalPages < 1 {
		return fmt.Errorf("total_pages must be >= 1 (got %d)", c.TotalPages)
	}
	if c.PerPage < 1 || c.PerPage > MaxPerPage {
		return fmt.Errorf("per_page must be between 1 and %d (got %d)", MaxPerPage, c.PerPage)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %s)", c.Timeout)
	}
	return nil
}

// PageURL builds the request URL for page.
func (c Config) PageURL(page int) (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set("client_id", c.AccessKey)
	if c.OrderBy != "" {
		q.Set("order_by", c.OrderBy)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.PerPage))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// redact hides the access key in a page URL for logging.
func redact(pageURL string) string {
	return transport.RedactURL(pageURL)
}
