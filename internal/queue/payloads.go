package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Listing is the marketplace reference recorded after a scan is published.
type Listing struct {
	ID          string    `json:"id"`
	URL         string    `json:"url,omitempty"`
	SKU         string    `json:"sku,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// ListingFromJSON decodes a stored listing reference, returning nil when the
// column is empty or unreadable.
func ListingFromJSON(data string) *Listing {
	if strings.TrimSpace(data) == "" {
		return nil
	}
	var listing Listing
	if err := json.Unmarshal([]byte(data), &listing); err != nil {
		return nil
	}
	return &listing
}

// Listing returns the published listing reference, or nil before publishing.
func (i *Item) Listing() *Listing {
	return ListingFromJSON(i.ListingJSON)
}

// SetListing stores the published listing reference. Nil clears the column.
func (i *Item) SetListing(listing *Listing) error {
	if listing == nil {
		i.ListingJSON = ""
		return nil
	}
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	i.ListingJSON = string(data)
	return nil
}
