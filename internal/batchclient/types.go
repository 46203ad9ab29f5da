package batchclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JobID is the opaque identifier of a remote job. The service sends it as a
// JSON string; numeric ids are accepted too.
type JobID string

// UnmarshalJSON accepts both "123" and 123
func (id *JobID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = JobID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid job id %s: %w", data, err)
	}
	*id = JobID(n.String())
	return nil
}

// Query is one remote job as returned by the batch endpoint
type Query struct {
	ID     JobID  `json:"id"`
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
}

// ContentPayload is the result of a finished job: one opaque record per
// result entry
type ContentPayload struct {
	Results []json.RawMessage `json:"results"`
}

type batchRequest struct {
	Source string   `json:"source"`
	URL    []string `json:"url"`
}

type batchResponse struct {
	Queries []Query `json:"queries"`
}

type statusResponse struct {
	Status string `json:"status"`
}
