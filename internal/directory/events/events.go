// Package events delivers PersonAdded notifications to external consumers.
//
// The directory itself keeps no subscriber list: it calls one Publisher per
// add inside the add transaction, and optionally more once the add has
// committed. The implementations here decide where the notification goes.
package events

import (
	"context"
	"fmt"

	"residents/internal/directory/models"
)

// Publisher records one PersonAdded notification.
type Publisher interface {
	PublishPersonAdded(ctx context.Context, event models.PersonAdded) error
}

// Multi fans a notification out to several publishers in order and stops at
// the first failure.
type Multi []Publisher

func (m Multi) PublishPersonAdded(ctx context.Context, event models.PersonAdded) error {
	for i, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishPersonAdded(ctx, event); err != nil {
			return fmt.Errorf("publisher %d: %w", i, err)
		}
	}
	return nil
}
