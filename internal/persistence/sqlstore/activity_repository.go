package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/teammeeting/internal/persistence"
)

var _ persistence.ActivityRepository = (*Storage)(nil)

type activityRow struct {
	ID                 string `db:"id"`
	CourseID           int64  `db:"course_id"`
	Name               string `db:"name"`
	Intro              string `db:"intro"`
	OpenAt             int64  `db:"open_at"`
	CloseAt            int64  `db:"close_at"`
	Reusable           int    `db:"reusable"`
	GroupID            int64  `db:"group_id"`
	GroupMode          int    `db:"group_mode"`
	GroupingID         int64  `db:"grouping_id"`
	ChatMode           string `db:"chat_mode"`
	AttendeeMode       string `db:"attendee_mode"`
	AttendeeRole       string `db:"attendee_role"`
	TeacherMode        string `db:"teacher_mode"`
	DefaultOrganiserID int64  `db:"default_organiser_id"`
	Visible            int    `db:"visible"`
	ModifiedBy         int64  `db:"modified_by"`
	ModifiedAt         int64  `db:"modified_at"`
}

const activityColumns = `id, course_id, name, intro, open_at, close_at, reusable, group_id,
	group_mode, grouping_id, chat_mode, attendee_mode, attendee_role, teacher_mode,
	default_organiser_id, visible, modified_by, modified_at`

func activityToRow(a persistence.Activity) activityRow {
	return activityRow{
		ID:                 a.ID,
		CourseID:           a.CourseID,
		Name:               a.Name,
		Intro:              a.Intro,
		OpenAt:             a.OpenAt,
		CloseAt:            a.CloseAt,
		Reusable:           boolToInt(a.Reusable),
		GroupID:            a.GroupID,
		GroupMode:          a.GroupMode,
		GroupingID:         a.GroupingID,
		ChatMode:           a.ChatMode,
		AttendeeMode:       a.AttendeeMode,
		AttendeeRole:       a.AttendeeRole,
		TeacherMode:        a.TeacherMode,
		DefaultOrganiserID: a.DefaultOrganiserID,
		Visible:            boolToInt(a.Visible),
		ModifiedBy:         a.ModifiedBy,
		ModifiedAt:         a.ModifiedAt,
	}
}

func (r activityRow) toActivity(teachers []int64) persistence.Activity {
	return persistence.Activity{
		ID:                 r.ID,
		CourseID:           r.CourseID,
		Name:               r.Name,
		Intro:              r.Intro,
		OpenAt:             r.OpenAt,
		CloseAt:            r.CloseAt,
		Reusable:           r.Reusable != 0,
		GroupID:            r.GroupID,
		GroupMode:          r.GroupMode,
		GroupingID:         r.GroupingID,
		ChatMode:           r.ChatMode,
		AttendeeMode:       r.AttendeeMode,
		AttendeeRole:       r.AttendeeRole,
		TeacherMode:        r.TeacherMode,
		TeacherIDs:         teachers,
		DefaultOrganiserID: r.DefaultOrganiserID,
		Visible:            r.Visible != 0,
		ModifiedBy:         r.ModifiedBy,
		ModifiedAt:         r.ModifiedAt,
	}
}

// CreateActivity inserts the activity and its teacher allow-list.
func (s *Storage) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" {
		return persistence.ErrConstraintViolation
	}
	err := s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO activities (`+activityColumns+`)
			VALUES (:id, :course_id, :name, :intro, :open_at, :close_at, :reusable, :group_id,
				:group_mode, :grouping_id, :chat_mode, :attendee_mode, :attendee_role, :teacher_mode,
				:default_organiser_id, :visible, :modified_by, :modified_at)`,
			activityToRow(activity))
		if err != nil {
			return err
		}
		return replaceTeachers(ctx, tx, activity.ID, activity.TeacherIDs)
	})
	return s.mapper.MapError(err)
}

// UpdateActivity overwrites the activity and its teacher allow-list.
func (s *Storage) UpdateActivity(ctx context.Context, activity persistence.Activity) error {
	err := s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE activities
			SET name = :name, intro = :intro, open_at = :open_at, close_at = :close_at,
				reusable = :reusable, group_id = :group_id, group_mode = :group_mode,
				grouping_id = :grouping_id, chat_mode = :chat_mode, attendee_mode = :attendee_mode,
				attendee_role = :attendee_role, teacher_mode = :teacher_mode,
				default_organiser_id = :default_organiser_id, visible = :visible,
				modified_by = :modified_by, modified_at = :modified_at
			WHERE id = :id`,
			activityToRow(activity))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return persistence.ErrNotFound
		}
		return replaceTeachers(ctx, tx, activity.ID, activity.TeacherIDs)
	})
	return s.mapper.MapError(err)
}

func replaceTeachers(ctx context.Context, tx *sqlx.Tx, activityID string, teacherIDs []int64) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM activity_teachers WHERE activity_id = ?`), activityID); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO activity_teachers (activity_id, user_id) VALUES (?, ?)`),
			activityID, id); err != nil {
			return err
		}
	}
	return nil
}

// GetActivity loads an activity by id.
func (s *Storage) GetActivity(ctx context.Context, id string) (persistence.Activity, error) {
	var row activityRow
	err := s.db.GetContext(ctx, &row, s.rebind(`SELECT `+activityColumns+` FROM activities WHERE id = ?`), id)
	if err != nil {
		return persistence.Activity{}, s.mapper.MapError(err)
	}
	teachers, err := s.activityTeachers(ctx, id)
	if err != nil {
		return persistence.Activity{}, err
	}
	return row.toActivity(teachers), nil
}

// ListActivities returns the activities of a course ordered by id.
func (s *Storage) ListActivities(ctx context.Context, courseID int64) ([]persistence.Activity, error) {
	var rows []activityRow
	err := s.db.SelectContext(ctx, &rows,
		s.rebind(`SELECT `+activityColumns+` FROM activities WHERE course_id = ? ORDER BY id`), courseID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}

	activities := make([]persistence.Activity, 0, len(rows))
	for _, row := range rows {
		teachers, err := s.activityTeachers(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		activities = append(activities, row.toActivity(teachers))
	}
	return activities, nil
}

func (s *Storage) activityTeachers(ctx context.Context, activityID string) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		s.rebind(`SELECT user_id FROM activity_teachers WHERE activity_id = ? ORDER BY user_id`), activityID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: load teachers of %s: %w", activityID, s.mapper.MapError(err))
	}
	return ids, nil
}

// DeleteActivity removes the activity and everything hanging off it.
func (s *Storage) DeleteActivity(ctx context.Context, id string) error {
	err := s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"activity_teachers", "meetings", "calendar_events", "module_views", "completions"} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE activity_id = ?`), id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM activities WHERE id = ?`), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
	return s.mapper.MapError(err)
}
