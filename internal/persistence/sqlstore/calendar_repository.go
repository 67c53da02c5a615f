package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/example/teammeeting/internal/persistence"
)

var _ persistence.CalendarRepository = (*Storage)(nil)

type calendarEventRow struct {
	ID          string `db:"id"`
	ActivityID  string `db:"activity_id"`
	CourseID    int64  `db:"course_id"`
	GroupID     int64  `db:"group_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	EventType   string `db:"event_type"`
	TimeStart   int64  `db:"time_start"`
	Duration    int64  `db:"duration"`
	Visible     int    `db:"visible"`
}

// ReplaceEvents swaps the calendar events of an activity for events.
func (s *Storage) ReplaceEvents(ctx context.Context, activityID string, events []persistence.CalendarEvent) error {
	err := s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM calendar_events WHERE activity_id = ?`), activityID); err != nil {
			return err
		}
		for _, event := range events {
			row := calendarEventRow{
				ID:          event.ID,
				ActivityID:  activityID,
				CourseID:    event.CourseID,
				GroupID:     event.GroupID,
				Name:        event.Name,
				Description: event.Description,
				EventType:   event.EventType,
				TimeStart:   event.TimeStart,
				Duration:    event.Duration,
				Visible:     boolToInt(event.Visible),
			}
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO calendar_events
					(id, activity_id, course_id, group_id, name, description, event_type, time_start, duration, visible)
				VALUES
					(:id, :activity_id, :course_id, :group_id, :name, :description, :event_type, :time_start, :duration, :visible)`,
				row); err != nil {
				return err
			}
		}
		return nil
	})
	return s.mapper.MapError(err)
}

// ListEvents returns the calendar events of an activity by group.
func (s *Storage) ListEvents(ctx context.Context, activityID string) ([]persistence.CalendarEvent, error) {
	var rows []calendarEventRow
	err := s.db.SelectContext(ctx, &rows, s.rebind(`
		SELECT id, activity_id, course_id, group_id, name, description, event_type, time_start, duration, visible
		FROM calendar_events WHERE activity_id = ? ORDER BY group_id, id`), activityID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}

	events := make([]persistence.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, persistence.CalendarEvent{
			ID:          row.ID,
			ActivityID:  row.ActivityID,
			CourseID:    row.CourseID,
			GroupID:     row.GroupID,
			Name:        row.Name,
			Description: row.Description,
			EventType:   row.EventType,
			TimeStart:   row.TimeStart,
			Duration:    row.Duration,
			Visible:     row.Visible != 0,
		})
	}
	return events, nil
}
