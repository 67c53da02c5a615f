package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/example/teammeeting/internal/persistence"
)

var _ persistence.ViewRepository = (*Storage)(nil)

// RecordView logs the view and marks the activity completed for the user.
func (s *Storage) RecordView(ctx context.Context, view persistence.ModuleView) error {
	err := s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO module_views (activity_id, user_id, group_id, viewed_at) VALUES (?, ?, ?, ?)`),
			view.ActivityID, view.UserID, view.GroupID, view.ViewedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO completions (activity_id, user_id, completed_at) VALUES (?, ?, ?)
			ON CONFLICT (activity_id, user_id) DO NOTHING`),
			view.ActivityID, view.UserID, view.ViewedAt)
		return err
	})
	return s.mapper.MapError(err)
}

// IsCompleted reports whether the user has viewed the activity.
func (s *Storage) IsCompleted(ctx context.Context, activityID string, userID int64) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		s.rebind(`SELECT COUNT(*) FROM completions WHERE activity_id = ? AND user_id = ?`), activityID, userID)
	if err != nil {
		return false, s.mapper.MapError(err)
	}
	return count > 0, nil
}
