package usecase

import (
	"context"
	"time"

	"meshwatch/internal/domain"
)

const (
	DefaultPollInterval   = time.Second
	DefaultMaxRowsPerPoll = 1000
)

// PacketSource returns packets imported strictly after the cursor value,
// newest first, capped at limit.
type PacketSource interface {
	TailSince(ctx context.Context, after string, limit int, filter domain.TailFilter) ([]domain.Packet, error)
}

type TailConfig struct {
	PollInterval time.Duration
	MaxRows      int
	// SkipInitial discards the first non-empty batch so a session only sees
	// packets that arrive after it started. The cursor still advances past
	// the discarded rows.
	SkipInitial bool
	Filter      domain.TailFilter
}

// PacketTail turns the packet table into an ordered, at-least-once,
// resumable event stream. One session is one Run call: a single goroutine
// polls the source, advances an in-memory watermark, and emits events in
// chronological order until the context is cancelled. There is no other
// termination path; source failures ride the stream as error events.
type PacketTail struct {
	Source PacketSource
}

func (t *PacketTail) Run(ctx context.Context, cfg TailConfig) <-chan domain.TailEvent {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRowsPerPoll
	}
	events := make(chan domain.TailEvent)
	go t.run(ctx, cfg, events)
	return events
}

func (t *PacketTail) run(ctx context.Context, cfg TailConfig, events chan<- domain.TailEvent) {
	defer close(events)

	cursor := domain.EpochCursor
	firstPoll := true
	for {
		rows, err := t.Source.TailSince(ctx, cursor, cfg.MaxRows, cfg.Filter)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			// The cursor is left untouched so the next poll retries the
			// same window.
			if !emit(ctx, events, domain.TailEvent{Err: err, Cursor: cursor}) {
				return
			}
		case len(rows) > 0:
			// Advance the watermark to the newest row before emitting
			// anything: a session cancelled mid-batch never replays rows it
			// already moved past. Rows landing later with exactly the
			// watermark timestamp are missed; that is the accepted cost of
			// timestamp-cursor pagination.
			cursor = rows[0].CursorValue()
			if !firstPoll || !cfg.SkipInitial {
				for i := len(rows) - 1; i >= 0; i-- {
					row := rows[i]
					if !emit(ctx, events, domain.TailEvent{Packet: &row, Cursor: cursor}) {
						return
					}
				}
			}
			// Only a non-empty batch completes the first poll: error and
			// empty cycles must not burn the skip-initial discard, or a
			// flaky first poll leaks the whole backlog to a session that
			// asked for new rows only.
			firstPoll = false
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.PollInterval):
		}
	}
}

func emit(ctx context.Context, events chan<- domain.TailEvent, event domain.TailEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
