package storage

import (
	"context"
	"errors"

	"liquidityVault/internal/model"
)

// EventSink receives events of completed vault operations.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.VaultEvent) error
}

// StateSink receives vault state snapshots.
type StateSink interface {
	PutStates(ctx context.Context, states []model.VaultState) error
}

// Sink stores both events and state snapshots.
type Sink interface {
	EventSink
	StateSink
}

// Fanout writes to every sink in order and joins their errors.
type Fanout []Sink

func (f Fanout) PutEvents(ctx context.Context, events []model.VaultEvent) error {
	var errs []error
	for _, s := range f {
		if err := s.PutEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PutStates(ctx context.Context, states []model.VaultState) error {
	var errs []error
	for _, s := range f {
		if err := s.PutStates(ctx, states); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MetricsSink receives aggregated window metrics. Writes must be idempotent
// per (vault, window size, window start).
type MetricsSink interface {
	PutWindowMetrics(ctx context.Context, metrics []model.VaultWindowMetrics) error
}

// MetricsFanout writes to every metrics sink in order and joins their errors.
type MetricsFanout []MetricsSink

func (f MetricsFanout) PutWindowMetrics(ctx context.Context, metrics []model.VaultWindowMetrics) error {
	var errs []error
	for _, s := range f {
		if err := s.PutWindowMetrics(ctx, metrics); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
