package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Pagination is the backend's paging block on list responses
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// ListResponse is a decoded list. Pagination is nil when the backend returned a bare array
// or an envelope without paging.
type ListResponse[T any] struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

var errNoListData = errors.New("response carries no list data")

// DecodeList accepts a bare array, an envelope {success, message, data, pagination},
// or an envelope whose data (or top level) keys the array by one of keys,
// e.g. {"registrars": [...]}.
func DecodeList[T any](body []byte, keys ...string) (ListResponse[T], error) {
	var out ListResponse[T]
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return out, errNoListData
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out.Data); err != nil {
			return out, fmt.Errorf("failed to decode list: %w", err)
		}
		out.Success = true
		return out, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return out, fmt.Errorf("failed to decode list envelope: %w", err)
	}

	out.Success = true
	if raw, ok := envelope["success"]; ok {
		_ = json.Unmarshal(raw, &out.Success)
	}
	out.Message = EnvelopeMessage(trimmed)
	if raw, ok := envelope["pagination"]; ok && !isNull(raw) {
		var p Pagination
		if err := json.Unmarshal(raw, &p); err == nil {
			out.Pagination = &p
		}
	}

	candidates := []map[string]json.RawMessage{envelope}
	if raw, ok := envelope["data"]; ok {
		inner := bytes.TrimSpace(raw)
		if len(inner) > 0 && inner[0] == '[' {
			if err := json.Unmarshal(inner, &out.Data); err != nil {
				return out, fmt.Errorf("failed to decode list data: %w", err)
			}
			return out, nil
		}
		var nested map[string]json.RawMessage
		if len(inner) > 0 && inner[0] == '{' && json.Unmarshal(inner, &nested) == nil {
			candidates = append([]map[string]json.RawMessage{nested}, candidates...)
			if out.Pagination == nil {
				if raw, ok := nested["pagination"]; ok && !isNull(raw) {
					var p Pagination
					if err := json.Unmarshal(raw, &p); err == nil {
						out.Pagination = &p
					}
				}
			}
		}
	}

	for _, candidate := range candidates {
		for _, key := range keys {
			raw, ok := candidate[key]
			if !ok || isNull(raw) {
				continue
			}
			if err := json.Unmarshal(raw, &out.Data); err != nil {
				return out, fmt.Errorf("failed to decode list under %q: %w", key, err)
			}
			return out, nil
		}
	}

	if !out.Success {
		return out, nil
	}
	return out, errNoListData
}

// DecodeItem unwraps a single-record response: {data: {...}}, {<key>: {...}} or the bare record
func DecodeItem(body []byte, keys ...string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("response is not a record")
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	for _, key := range append([]string{"data"}, keys...) {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		inner := bytes.TrimSpace(raw)
		if len(inner) > 0 && inner[0] == '{' {
			// A data envelope may itself key the record, e.g. {data: {ipo: {...}}}
			var nested map[string]json.RawMessage
			if json.Unmarshal(inner, &nested) == nil {
				for _, k := range keys {
					if rec, ok := nested[k]; ok && len(bytes.TrimSpace(rec)) > 0 && bytes.TrimSpace(rec)[0] == '{' {
						return rec, nil
					}
				}
			}
			return inner, nil
		}
	}
	return trimmed, nil
}

// EnvelopeMessage extracts a human readable message from a backend response body
func EnvelopeMessage(body []byte) string {
	var envelope struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	var s string
	if json.Unmarshal(envelope.Error, &s) == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &nested) == nil {
		return nested.Message
	}
	return ""
}
