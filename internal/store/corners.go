package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/keystone/internal/geom"
)

// DefaultKey is the key the calibration is stored under.
const DefaultKey = "homography"

// ErrDeserialization marks a stored payload that cannot become a corner set.
var ErrDeserialization = errors.New("invalid corner payload")

// DeserializationError carries the rejected payload for diagnostics.
type DeserializationError struct {
	Payload string
	Count   int
	Err     error
}

func (e *DeserializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrDeserialization, e.Err)
	}
	return fmt.Sprintf("%v: expected %d points, got %d", ErrDeserialization, geom.CornerCount, e.Count)
}

func (e *DeserializationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDeserialization, e.Err}
	}
	return []error{ErrDeserialization}
}

type cornerPayload struct {
	Arr []geom.Point `json:"arr"`
}

// EncodeCorners renders corners as {"arr":[{"x":..,"y":..},...]}.
func EncodeCorners(c geom.CornerSet) (string, error) {
	data, err := json.Marshal(cornerPayload{Arr: c.Slice()})
	if err != nil {
		return "", fmt.Errorf("failed to encode corners: %w", err)
	}
	return string(data), nil
}

// DecodeCorners parses a payload written by EncodeCorners. Anything other
// than exactly four points is rejected.
func DecodeCorners(payload string) (geom.CornerSet, error) {
	var p cornerPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return geom.CornerSet{}, &DeserializationError{Payload: payload, Err: err}
	}
	c, ok := geom.CornersFromSlice(p.Arr)
	if !ok {
		return geom.CornerSet{}, &DeserializationError{Payload: payload, Count: len(p.Arr)}
	}
	return c, nil
}

// LoadCorners returns the stored corners, or the canonical set when the key
// is absent or its payload is rejected.
func LoadCorners(s Store, key string, logger *slog.Logger) geom.CornerSet {
	if logger == nil {
		logger = slog.Default()
	}
	payload, ok := s.Get(key)
	if !ok {
		return geom.Canonical()
	}
	c, err := DecodeCorners(payload)
	if err != nil {
		logger.Warn("Error deserializing corner data, using default",
			"key", key, "payload", payload, "error", err)
		return geom.Canonical()
	}
	return c
}

// SaveCorners encodes corners under key and flushes the store.
func SaveCorners(s Store, key string, c geom.CornerSet) error {
	payload, err := EncodeCorners(c)
	if err != nil {
		return err
	}
	if err := s.Set(key, payload); err != nil {
		return fmt.Errorf("failed to store corners: %w", err)
	}
	if err := s.Save(); err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}
	return nil
}
