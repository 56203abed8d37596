package filter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bnema/maa-copilot-filter/internal/models"
)

// ErrNotQueryResponse is returned when a body does not have the copilot
// query response shape
var ErrNotQueryResponse = errors.New("not a copilot query response")

// RewriteResponse decodes a copilot query response, passes its listing
// array through apply and re-encodes the response. Fields other than the
// listing array keep their values. When apply removes nothing the
// original body is returned as-is.
func RewriteResponse(body []byte, apply func([]models.RawListing) Result) ([]byte, Result, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, Result{}, fmt.Errorf("%w: %v", ErrNotQueryResponse, err)
	}

	rawData, ok := envelope["data"]
	if !ok {
		return nil, Result{}, fmt.Errorf("%w: missing data", ErrNotQueryResponse)
	}

	var page map[string]json.RawMessage
	if err := json.Unmarshal(rawData, &page); err != nil || page == nil {
		return nil, Result{}, fmt.Errorf("%w: data is not an object", ErrNotQueryResponse)
	}

	rawListings, ok := page["data"]
	if !ok {
		return nil, Result{}, fmt.Errorf("%w: missing data.data", ErrNotQueryResponse)
	}

	var listings []models.RawListing
	if err := json.Unmarshal(rawListings, &listings); err != nil {
		return nil, Result{}, fmt.Errorf("%w: data.data is not an array", ErrNotQueryResponse)
	}

	res := apply(listings)
	if res.Removed == 0 {
		return body, res, nil
	}

	kept := res.Listings
	if kept == nil {
		kept = []models.RawListing{}
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return nil, res, fmt.Errorf("failed to encode listings: %w", err)
	}
	page["data"] = encoded

	if envelope["data"], err = json.Marshal(page); err != nil {
		return nil, res, fmt.Errorf("failed to encode page: %w", err)
	}

	out, err := json.Marshal(envelope)
	if err != nil {
		return nil, res, fmt.Errorf("failed to encode response: %w", err)
	}
	return out, res, nil
}
