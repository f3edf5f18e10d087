// Package anki reads review activity out of an Anki collection database.
package anki

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/gamagoat/anki-toggl/internal/config"
	"github.com/gamagoat/anki-toggl/internal/loggy"
	"github.com/gamagoat/anki-toggl/internal/timezone"
)

// defaultRollover is Anki's "next day starts at" hour when the collection
// config does not carry one
const defaultRollover = 4

// Tracker extracts today's review time from a collection file. It opens
// the collection read-only for each query and never returns an error:
// unreadable Anki data means "no reviews today", not a failed sync.
type Tracker struct {
	path         string
	queryTimeout time.Duration
	logger       *loggy.Logger
	builder      sq.StatementBuilderType
}

// NewTracker creates a Tracker for the configured collection
func NewTracker(cfg config.AnkiConfig, logger *loggy.Logger) *Tracker {
	if logger == nil {
		logger = loggy.NewNoopLogger()
	}

	return &Tracker{
		path:         cfg.CollectionPath,
		queryTimeout: cfg.QueryTimeout,
		logger:       logger,
		builder:      sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// CollectionPath returns the configured collection file path
func (t *Tracker) CollectionPath() string {
	return t.path
}

// Available reports whether the collection file exists on disk
func (t *Tracker) Available() bool {
	if t.path == "" {
		return false
	}

	_, err := os.Stat(t.path)
	return err == nil
}

// TodaySession returns today's review activity in the given timezone.
// "Today" follows Anki's own day boundary (the collection's rollover
// hour), so late-night reviews land on the day Anki says they belong to.
func (t *Tracker) TodaySession(ctx context.Context, loc *time.Location) ReviewSession {
	db, err := openCollection(ctx, t.path)
	if err != nil {
		t.logger.Warn("could not open Anki collection", "path", t.path, "error", err)
		return emptySession(loc)
	}
	defer db.Close()

	queryCtx, cancel := context.WithTimeout(ctx, t.queryTimeout)
	defer cancel()

	session, err := t.sessionFrom(queryCtx, db, loc)
	if err != nil {
		t.logger.Warn("could not read review log, treating today as empty", "error", err)
		return emptySession(loc)
	}

	return session
}

// sessionFrom assembles the session out of the review log. Split from
// TodaySession so it can run against any database handle.
func (t *Tracker) sessionFrom(ctx context.Context, db *sql.DB, loc *time.Location) (ReviewSession, error) {
	cutoffMS, err := t.dayCutoffMS(ctx, db)
	if err != nil {
		return ReviewSession{}, err
	}

	firstMS, hasFirst, err := t.edgeReviewMS(ctx, db, cutoffMS, true)
	if err != nil {
		return ReviewSession{}, err
	}

	lastMS, hasLast, err := t.edgeReviewMS(ctx, db, cutoffMS, false)
	if err != nil {
		return ReviewSession{}, err
	}

	totalMS, count, err := t.reviewTotals(ctx, db, cutoffMS)
	if err != nil {
		return ReviewSession{}, err
	}

	session := ReviewSession{
		StartTime:       timezone.NowIn(loc),
		DurationSeconds: totalMS / 1000,
		SessionCount:    count,
	}

	if hasFirst {
		session.StartTime = time.UnixMilli(firstMS).In(loc)
	}
	if hasLast {
		end := time.UnixMilli(lastMS).In(loc)
		session.EndTime = &end
	}

	// Sub-second totals truncate to zero; report those days as fully empty
	// so a zero duration always means nothing to sync
	if session.DurationSeconds == 0 {
		return emptySession(loc), nil
	}

	return session, nil
}

// dayCutoffMS computes the start of the current Anki day in epoch
// milliseconds. Anki anchors days at the collection creation time with the
// hour replaced by the rollover hour, then steps in whole 24h increments.
func (t *Tracker) dayCutoffMS(ctx context.Context, db *sql.DB) (int64, error) {
	query, args, err := t.builder.
		Select("crt", "conf").
		From("col").
		Limit(1).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build col query: %w", err)
	}

	var crt int64
	var conf string
	if err := db.QueryRowContext(ctx, query, args...).Scan(&crt, &conf); err != nil {
		return 0, fmt.Errorf("failed to read collection metadata: %w", err)
	}

	created := time.Unix(crt, 0)
	base := time.Date(created.Year(), created.Month(), created.Day(), rolloverHour(conf), 0, 0, 0, created.Location())

	days := int64(time.Since(base) / (24 * time.Hour))
	if days < 0 {
		// Collection created in the future, clock skew; fall back to the base day
		days = 0
	}

	return base.Add(time.Duration(days) * 24 * time.Hour).UnixMilli(), nil
}

// edgeReviewMS returns the first (ascending) or last review timestamp
// after the cutoff. The second return is false when the day has no reviews.
func (t *Tracker) edgeReviewMS(ctx context.Context, db *sql.DB, cutoffMS int64, ascending bool) (int64, bool, error) {
	order := "id DESC"
	if ascending {
		order = "id ASC"
	}

	query, args, err := t.builder.
		Select("id").
		From("revlog").
		Where(sq.Gt{"id": cutoffMS}).
		OrderBy(order).
		Limit(1).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build revlog query: %w", err)
	}

	var id int64
	err = db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read review bounds: %w", err)
	}

	return id, true, nil
}

// reviewTotals returns the summed review time in milliseconds and the
// review count after the cutoff
func (t *Tracker) reviewTotals(ctx context.Context, db *sql.DB, cutoffMS int64) (int64, int64, error) {
	query, args, err := t.builder.
		Select("COALESCE(SUM(time), 0)").
		From("revlog").
		Where(sq.Gt{"id": cutoffMS}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build sum query: %w", err)
	}

	var totalMS int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&totalMS); err != nil {
		return 0, 0, fmt.Errorf("failed to read review time: %w", err)
	}

	query, args, err = t.builder.
		Select("COUNT(*)").
		From("revlog").
		Where(sq.Gt{"id": cutoffMS}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, 0, fmt.Errorf("failed to read review count: %w", err)
	}

	return totalMS, count, nil
}

// rolloverHour extracts the day rollover hour from the collection config
// JSON, defaulting when absent or out of range
func rolloverHour(conf string) int {
	var parsed struct {
		Rollover *int `json:"rollover"`
	}
	if err := json.Unmarshal([]byte(conf), &parsed); err != nil || parsed.Rollover == nil {
		return defaultRollover
	}

	if *parsed.Rollover < 0 || *parsed.Rollover > 23 {
		return defaultRollover
	}

	return *parsed.Rollover
}

func emptySession(loc *time.Location) ReviewSession {
	return ReviewSession{StartTime: timezone.NowIn(loc)}
}
