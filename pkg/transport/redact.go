package transport

import (
	"errors"
	"net/url"
	"strings"

	"github.com/Sternrassler/photo-feed-client/pkg/feederr"
)

// Redacted replaces credential values in logged URLs.
const Redacted = "REDACTED"

// credentialParams are query parameters that carry API credentials.
var credentialParams = []string{"client_id", "access_key", "api_key", "token"}

// RedactURL hides credential query parameters in rawURL. Unparseable input is
// reduced to what precedes the query.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}

	q := u.Query()
	changed := false
	for _, name := range credentialParams {
		if q.Has(name) {
			q.Set(name, Redacted)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RedactError returns err with every URL it records passed through RedactURL.
// Feed errors are copied, never modified in place.
func RedactError(err error) error {
	if err == nil {
		return nil
	}

	var fe *feederr.Error
	if errors.As(err, &fe) {
		out := *fe
		out.URL = RedactURL(fe.URL)
		out.Err = RedactError(fe.Err)
		return &out
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: RedactURL(ue.URL), Err: ue.Err}
	}

	return err
}
