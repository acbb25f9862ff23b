// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warframe_bot/internal/model"
)

// ErrNotFound is returned when a chat has no stored preferences.
var ErrNotFound = errors.New("subscriber not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	GetSubscriber(ctx context.Context, chatID int64) (*model.Subscriber, error)
	PutSubscriber(ctx context.Context, sub *model.Subscriber) error
	// UpdateSubscriber applies fn to the stored record in a single atomic
	// read-modify-write. A missing record starts from model.NewSubscriber.
	// Nothing is written when fn returns an error.
	UpdateSubscriber(ctx context.Context, chatID int64, fn func(*model.Subscriber) error) (*model.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]model.Subscriber, error)

	MarkNotified(ctx context.Context, chatID int64, key string, expiresAt time.Time) error
	IsNotified(ctx context.Context, chatID int64, key string) (bool, error)
	// PruneNotified drops ledger entries that expired before now.
	PruneNotified(ctx context.Context, now time.Time) (int64, error)

	Close() error
}

const timeLayout = "2006-01-02T15:04:05Z"

// row is the column form shared by every backend.
type row struct {
	ChatID         int64  `json:"chat_id"`
	Timezone       string `json:"timezone"`
	Subscriptions  string `json:"subscriptions"`
	FissureFilters string `json:"fissure_filters"`
}

func toRow(sub *model.Subscriber) (row, error) {
	filters, err := model.EncodeFissureFilter(sub.Filter)
	if err != nil {
		return row{}, err
	}
	tz := sub.Timezone
	if tz == "" {
		tz = model.DefaultTimezone
	}
	return row{
		ChatID:         sub.ChatID,
		Timezone:       tz,
		Subscriptions:  model.JoinTopics(sub.Topics),
		FissureFilters: filters,
	}, nil
}

// fromRow never fails: an undecodable filter degrades to the open filter.
func fromRow(r row, log *slog.Logger) model.Subscriber {
	sub := model.Subscriber{
		ChatID:   r.ChatID,
		Timezone: r.Timezone,
		Topics:   model.SplitTopics(r.Subscriptions),
	}
	if sub.Timezone == "" {
		sub.Timezone = model.DefaultTimezone
	}
	f, err := model.DecodeFissureFilter(r.FissureFilters)
	if err != nil {
		log.Warn("stored fissure filter reset", "chat_id", r.ChatID, "error", err)
		sub.FilterReset = true
	}
	sub.Filter = f
	return sub
}
