package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/example/teammeeting/internal/persistence"
)

var _ persistence.MeetingRepository = (*Storage)(nil)

type meetingRow struct {
	ID                string         `db:"id"`
	ActivityID        string         `db:"activity_id"`
	GroupID           int64          `db:"group_id"`
	OrganiserID       sql.NullInt64  `db:"organiser_id"`
	ProviderMeetingID sql.NullString `db:"provider_meeting_id"`
	JoinURL           sql.NullString `db:"join_url"`
	LastSync          int64          `db:"last_sync"`
}

const meetingColumns = `id, activity_id, group_id, organiser_id, provider_meeting_id, join_url, last_sync`

func meetingToRow(m persistence.Meeting) meetingRow {
	return meetingRow{
		ID:                m.ID,
		ActivityID:        m.ActivityID,
		GroupID:           m.GroupID,
		OrganiserID:       sql.NullInt64{Int64: m.OrganiserID, Valid: m.OrganiserID != 0},
		ProviderMeetingID: sql.NullString{String: m.ProviderMeetingID, Valid: m.ProviderMeetingID != ""},
		JoinURL:           sql.NullString{String: m.JoinURL, Valid: m.JoinURL != ""},
		LastSync:          m.LastSync,
	}
}

func (r meetingRow) toMeeting() persistence.Meeting {
	return persistence.Meeting{
		ID:                r.ID,
		ActivityID:        r.ActivityID,
		GroupID:           r.GroupID,
		OrganiserID:       r.OrganiserID.Int64,
		ProviderMeetingID: r.ProviderMeetingID.String,
		JoinURL:           r.JoinURL.String,
		LastSync:          r.LastSync,
	}
}

// GetMeeting loads the record of one group of an activity.
func (s *Storage) GetMeeting(ctx context.Context, activityID string, groupID int64) (persistence.Meeting, error) {
	var row meetingRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT `+meetingColumns+` FROM meetings WHERE activity_id = ? AND group_id = ?`),
		activityID, groupID)
	if err != nil {
		return persistence.Meeting{}, s.mapper.MapError(err)
	}
	return row.toMeeting(), nil
}

// InsertMeeting stores a new record.
func (s *Storage) InsertMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" || meeting.ActivityID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO meetings (`+meetingColumns+`)
			VALUES (:id, :activity_id, :group_id, :organiser_id, :provider_meeting_id, :join_url, :last_sync)`,
			meetingToRow(meeting))
		return err
	})
}

// UpdateMeeting overwrites a record by id.
func (s *Storage) UpdateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	return s.retry.WithRetry(ctx, func() error {
		res, err := s.db.NamedExecContext(ctx, `
			UPDATE meetings
			SET organiser_id = :organiser_id, provider_meeting_id = :provider_meeting_id,
				join_url = :join_url, last_sync = :last_sync
			WHERE id = :id`,
			meetingToRow(meeting))
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
}

// ClaimOrganiser records meeting.OrganiserID on the (activity, group) row
// when no organiser is set yet, inserting the row if it does not exist.
// The remote meeting fields are cleared.
func (s *Storage) ClaimOrganiser(ctx context.Context, meeting persistence.Meeting) (persistence.Meeting, error) {
	if meeting.OrganiserID == 0 || meeting.ActivityID == "" || meeting.ID == "" {
		return persistence.Meeting{}, persistence.ErrConstraintViolation
	}

	var claimed meetingRow
	err := s.retry.WithRetry(ctx, func() error {
		return s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO meetings (id, activity_id, group_id, last_sync)
				VALUES (?, ?, ?, 0)
				ON CONFLICT (activity_id, group_id) DO NOTHING`),
				meeting.ID, meeting.ActivityID, meeting.GroupID)
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx, tx.Rebind(`
				UPDATE meetings
				SET organiser_id = ?, provider_meeting_id = NULL, join_url = NULL, last_sync = 0
				WHERE activity_id = ? AND group_id = ? AND organiser_id IS NULL`),
				meeting.OrganiserID, meeting.ActivityID, meeting.GroupID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return persistence.ErrConflict
			}

			return tx.GetContext(ctx, &claimed, tx.Rebind(
				`SELECT `+meetingColumns+` FROM meetings WHERE activity_id = ? AND group_id = ?`),
				meeting.ActivityID, meeting.GroupID)
		})
	})
	if err != nil {
		return persistence.Meeting{}, err
	}
	return claimed.toMeeting(), nil
}

// FindMeetingByOrganiser returns the record organised by organiserID, if any.
func (s *Storage) FindMeetingByOrganiser(ctx context.Context, activityID string, organiserID int64) (persistence.Meeting, error) {
	var row meetingRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT `+meetingColumns+` FROM meetings WHERE activity_id = ? AND organiser_id = ?`),
		activityID, organiserID)
	if err != nil {
		return persistence.Meeting{}, s.mapper.MapError(err)
	}
	return row.toMeeting(), nil
}

// ListMeetings returns the records of an activity ordered by group.
func (s *Storage) ListMeetings(ctx context.Context, activityID string) ([]persistence.Meeting, error) {
	return s.selectMeetings(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE activity_id = ? ORDER BY group_id`, activityID)
}

// ListStaleMeetings returns created meetings last synchronised before syncedBefore.
func (s *Storage) ListStaleMeetings(ctx context.Context, syncedBefore int64) ([]persistence.Meeting, error) {
	return s.selectMeetings(ctx, `
		SELECT `+meetingColumns+` FROM meetings
		WHERE provider_meeting_id IS NOT NULL AND organiser_id IS NOT NULL AND last_sync < ?
		ORDER BY last_sync, id`, syncedBefore)
}

func (s *Storage) selectMeetings(ctx context.Context, query string, args ...any) ([]persistence.Meeting, error) {
	var rows []meetingRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, s.mapper.MapError(err)
	}
	meetings := make([]persistence.Meeting, 0, len(rows))
	for _, row := range rows {
		meetings = append(meetings, row.toMeeting())
	}
	return meetings, nil
}
