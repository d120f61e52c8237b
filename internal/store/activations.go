package store

import (
	"context"
	"fmt"
	"time"
)

// VideoStat counts activations of one video.
type VideoStat struct {
	VideoID     string    `json:"video_id"`
	Activations int64     `json:"activations"`
	LastSeen    time.Time `json:"last_seen"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalVisitors    int64       `json:"total_visitors"`
	UniqueVisitors   int64       `json:"unique_visitors"`
	VisitorsToday    int64       `json:"visitors_today"`
	VisitorsThisWeek int64       `json:"visitors_this_week"`
	TotalActivations int64       `json:"total_activations"`
	TopVideos        []VideoStat `json:"top_videos"`
	RecentVisitors   []Visit     `json:"recent_visitors"`
}

// RecordActivation stores the first autoplay of an embed instance.
func (s *Store) RecordActivation(ctx context.Context, instanceID, videoID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activations (instance_id, video_id, activated_at)
		VALUES (?, ?, ?)
	`, instanceID, videoID, formatTime(at))
	if err != nil {
		return fmt.Errorf("record activation: %w", err)
	}
	return nil
}

// Stats aggregates visitor and activation counts as of now.
func (s *Store) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{}
	day := now.UTC().Truncate(24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&stats.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{formatTime(day)}},
		{&stats.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{formatTime(week)}},
		{&stats.TotalActivations, `SELECT COUNT(*) FROM activations`, nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, COUNT(*) AS n, MAX(activated_at)
		FROM activations
		GROUP BY video_id
		ORDER BY n DESC, video_id
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("top videos: %w", err)
	}
	for rows.Next() {
		var v VideoStat
		var last string
		if err := rows.Scan(&v.VideoID, &v.Activations, &last); err != nil {
			continue
		}
		v.LastSeen = parseTime(last)
		stats.TopVideos = append(stats.TopVideos, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top videos: %w", err)
	}

	stats.RecentVisitors, err = s.RecentVisits(ctx, 50)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
