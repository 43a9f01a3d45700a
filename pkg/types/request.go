package types

import (
	"encoding/json"
	"time"
)

// RequestType discriminates deferred network requests.
type RequestType string

const (
	RequestSearch RequestType = "search"
)

// OfflineRequest is a network-dependent action captured while offline.
type OfflineRequest struct {
	ID        string          `json:"id"`
	Type      RequestType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SearchPayload is the payload of a RequestSearch.
type SearchPayload struct {
	Query string `json:"query"`
}

// ImageResult is a single remote image search hit.
type ImageResult struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	ThumbURL    string `json:"thumbUrl,omitempty"`
	Author      string `json:"author,omitempty"`
}
