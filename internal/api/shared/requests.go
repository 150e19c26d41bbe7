package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DecodePayload reads the request body as a JSON object and returns it
// as a task payload map. An empty body is a valid empty payload, so
// triggers without required fields can be invoked with a bare POST.
func DecodePayload(r *http.Request) (map[string]any, error) {
	payload := make(map[string]any)
	if r.Body == nil {
		return payload, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return payload, nil
		}
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	return payload, nil
}
