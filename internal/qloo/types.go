package qloo

import "fmt"

// Item is a single recommended entity.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// insightsResponse is the JSON response of the insights endpoint.
type insightsResponse struct {
	Results struct {
		Entities []entity `json:"entities"`
	} `json:"results"`
}

// entity is one result entity. Only the fields we display are decoded.
type entity struct {
	Name       string `json:"name"`
	Properties struct {
		Description string `json:"description"`
		Image       *struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"properties"`
}

func (e entity) toItem() Item {
	item := Item{
		Name:        e.Name,
		Description: e.Properties.Description,
	}
	if e.Properties.Image != nil {
		item.ImageURL = e.Properties.Image.URL
	}
	return item
}

// StatusError is returned when the API answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qloo API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("qloo API error: status %d: %s", e.StatusCode, e.Body)
}
