package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CloudEvent is the envelope wrapping every event published by this platform.
// The shape follows the CloudEvents spec closely enough for cross-service use.
type CloudEvent struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	SpecVersion string          `json:"specversion"`
	Type        string          `json:"type"`
	Time        time.Time       `json:"time"`
	Data        json.RawMessage `json:"data"`
}

// NewCloudEvent creates an envelope around the given payload.
func NewCloudEvent(source, eventType string, data interface{}) (CloudEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return CloudEvent{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return CloudEvent{
		ID:          uuid.New().String(),
		Source:      source,
		SpecVersion: "1.0",
		Type:        eventType,
		Time:        time.Now().UTC(),
		Data:        payload,
	}, nil
}

// ParseCloudEvent decodes a raw message into a CloudEvent envelope.
func ParseCloudEvent(raw []byte) (CloudEvent, error) {
	var ce CloudEvent
	if err := json.Unmarshal(raw, &ce); err != nil {
		return CloudEvent{}, fmt.Errorf("failed to parse cloud event: %w", err)
	}
	return ce, nil
}

// ParseData decodes the event payload into the given target.
func (e CloudEvent) ParseData(target interface{}) error {
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("failed to parse event data: %w", err)
	}
	return nil
}
