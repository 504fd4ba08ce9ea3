package browser

import (
	"github.com/Sternrassler/photo-feed-client/pkg/decode"
	"github.com/Sternrassler/photo-feed-client/pkg/pagination"
)

// Message types for the browser

// ItemsMsg replaces the displayed item list
type ItemsMsg struct {
	Items []pagination.Item
}

// SlotMsg delivers the image for a visual slot bound to the item at Index.
// A nil Image is the placeholder.
type SlotMsg struct {
	Slot  int
	Index int
	Image *decode.Image
}

// LoaderMsg toggles the loading indicator
type LoaderMsg struct {
	Visible bool
}
