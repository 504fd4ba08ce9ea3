package pagination

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Item is one photo in the collection. Items are immutable once created.
type Item struct {
	// ID is the photo id from the API, or a generated UUID when absent.
	ID string

	// ImageURL is the photo's urls.regular rendition.
	ImageURL string
}

// photoDTO is the subset of a photo object the feed uses.
type photoDTO struct {
	ID   string `json:"id"`
	URLs *struct {
		Regular string `json:"regular"`
	} `json:"urls"`
}

// ParsePage decodes a page document into items in document order.
//
// Objects that are malformed or lack an absolute urls.regular are skipped and
// counted. A document that is not a JSON array returns an error.
func ParsePage(body []byte) (items []Item, skipped int, err error) {
	var objects []json.RawMessage
	if err := json.Unmarshal(body, &objects); err != nil {
		return nil, 0, fmt.Errorf("decode page document: %w", err)
	}

	items = make([]Item, 0, len(objects))
	for _, raw := range objects {
		item, ok := parsePhoto(raw)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}

	return items, skipped, nil
}

func parsePhoto(raw json.RawMessage) (Item, bool) {
	var dto photoDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return Item{}, false
	}
	if dto.URLs == nil || dto.URLs.Regular == "" {
		return Item{}, false
	}

	u, err := url.Parse(dto.URLs.Regular)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Item{}, false
	}

	id := dto.ID
	if id == "" {
		id = uuid.NewString()
	}

	return Item{ID: id, ImageURL: dto.URLs.Regular}, true
}
