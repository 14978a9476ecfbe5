// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telemetria/internal/models"
)

// Serializer handles batch encoding/decoding for queue messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts a batch to JSON bytes.
func (s *Serializer) Marshal(batch *models.Batch) ([]byte, error) {
	if batch.BatchID == "" {
		return nil, fmt.Errorf("batch has no batch ID")
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes to a batch.
func (s *Serializer) Unmarshal(data []byte) (*models.Batch, error) {
	var batch models.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal batch: %w", err)
	}
	if batch.BatchID == "" {
		return nil, fmt.Errorf("message carries no batch ID")
	}
	return &batch, nil
}

// SerializeBatch is a convenience function that marshals a batch to JSON.
func SerializeBatch(batch *models.Batch) ([]byte, error) {
	return NewSerializer().Marshal(batch)
}

// DeserializeBatch is a convenience function that unmarshals JSON to a batch.
func DeserializeBatch(data []byte) (*models.Batch, error) {
	return NewSerializer().Unmarshal(data)
}
