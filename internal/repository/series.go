package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bunn/bunn/internal/model"
)

// ErrSeriesNotFound is returned when a series does not exist.
var ErrSeriesNotFound = errors.New("series not found")

// GetOrCreateSeries finds a series by (title, platform) or creates it.
// Capture requests reference shows by title, so the row is made on first
// sight.
func (r *Repository) GetOrCreateSeries(ctx context.Context, title string, platform model.Platform) (*model.Series, error) {
	series, err := r.getSeriesByTitle(ctx, title, platform)
	if err == nil {
		return series, nil
	}
	if !errors.Is(err, ErrSeriesNotFound) {
		return nil, err
	}

	series = &model.Series{
		ID:        newSeriesID(),
		Title:     title,
		Platform:  platform,
		CreatedAt: time.Now(),
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO series (id, title, platform, created_at)
		VALUES ($1, $2, $3, $4)
	`, series.ID, series.Title, series.Platform, series.CreatedAt)
	if err != nil {
		// Concurrent capture of the same show; read the winner.
		if isUniqueViolation(err) {
			return r.getSeriesByTitle(ctx, title, platform)
		}
		return nil, fmt.Errorf("failed to create series: %w", err)
	}

	return series, nil
}

func (r *Repository) getSeriesByTitle(ctx context.Context, title string, platform model.Platform) (*model.Series, error) {
	var series model.Series
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, platform, created_at
		FROM series
		WHERE title = $1 AND platform = $2
	`, title, platform).Scan(&series.ID, &series.Title, &series.Platform, &series.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	return &series, nil
}
