package store

import (
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/text/unicode/norm"
)

// marshalHeaders converts request headers to JSON TEXT for storage.
// A nil header map is stored as "{}".
func marshalHeaders(h http.Header) (string, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("marshal headers: %w", err)
	}
	return string(data), nil
}

// unmarshalHeaders parses JSON TEXT back into request headers.
func unmarshalHeaders(data string) (http.Header, error) {
	h := http.Header{}
	if data == "" || data == "{}" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	return h, nil
}

// marshalPayload converts a cache payload to JSON TEXT for storage.
// json.RawMessage and []byte holding JSON are stored as-is.
func marshalPayload(payload any) (string, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return rawPayload(p)
	case []byte:
		return rawPayload(p)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func rawPayload(p []byte) (string, error) {
	if !json.Valid(p) {
		return "", fmt.Errorf("marshal payload: invalid raw JSON")
	}
	return string(p), nil
}

// normalizeKey returns the NFC form of a cache key so that canonically
// equivalent keys address the same row.
func normalizeKey(key string) string {
	return norm.NFC.String(key)
}
