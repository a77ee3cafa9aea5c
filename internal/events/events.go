// Package events describes notifications emitted after image records are stored
package events

import (
	"context"
	"encoding/json"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/wb-go/wbf/retry"
)

type Kind string

const (
	KindUploaded   Kind = "image.uploaded"
	KindCompressed Kind = "image.compressed"
)

type Event struct {
	Kind       Kind              `json:"event"`
	Collection model.Collection  `json:"collection"`
	Degraded   bool              `json:"degraded,omitempty"`
	Record     model.ImageRecord `json:"record"`
}

// Encode returns the message key (record id) and JSON value
func (e Event) Encode() (key []byte, value []byte, err error) {
	value, err = json.Marshal(e)
	if err != nil {
		return nil, nil, err
	}
	return []byte(e.Record.ID), value, nil
}

// NoopPublisher - заглушка, когда брокер не сконфигурирован
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
	return nil
}
