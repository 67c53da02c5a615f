package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SyncReport summarises a background attendee synchronisation run.
type SyncReport struct {
	Synced int
	Failed int
}

// SyncService pushes attendee lists of meetings that were not refreshed recently.
type SyncService struct {
	meetings    *MeetingService
	resyncAfter time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewSyncService constructs a sync service on top of the meeting service.
func NewSyncService(meetings *MeetingService, resyncAfter time.Duration, now func() time.Time, logger *slog.Logger) *SyncService {
	if now == nil {
		now = time.Now
	}
	if resyncAfter <= 0 {
		resyncAfter = DefaultResyncAfter
	}
	return &SyncService{meetings: meetings, resyncAfter: resyncAfter, now: now, logger: defaultLogger(logger)}
}

// SyncStale refreshes every created meeting whose last sync is older than the
// re-sync age. A failing record is logged and counted; the run continues.
func (s *SyncService) SyncStale(ctx context.Context) (report SyncReport, err error) {
	if s == nil || s.meetings == nil {
		err = fmt.Errorf("SyncService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "SyncService", "SyncStale")

	cutoff := s.now().Add(-s.resyncAfter)
	var records []MeetingRecord
	records, err = s.meetings.meetings.ListStaleMeetings(ctx, cutoff)
	if err != nil {
		err = mapMeetingRepoError(err)
		logger.ErrorContext(ctx, "failed to list stale meetings", "error", err, "error_kind", ErrorKind(err))
		return
	}

	activities := make(map[string]Activity)
	for _, record := range records {
		if err = ctx.Err(); err != nil {
			return
		}
		recordLogger := logger.With("activity_id", record.ActivityID, "group_id", record.GroupID, "meeting_id", record.ID)

		activity, ok := activities[record.ActivityID]
		if !ok {
			activity, err = s.meetings.loadActivity(ctx, record.ActivityID)
			if err != nil {
				recordLogger.ErrorContext(ctx, "failed to load activity", "error", err, "error_kind", ErrorKind(err))
				report.Failed++
				err = nil
				continue
			}
			activities[record.ActivityID] = activity
		}

		if _, syncErr := s.meetings.refreshAttendees(ctx, activity, record); syncErr != nil {
			recordLogger.ErrorContext(ctx, "failed to synchronise attendees", "error", syncErr, "error_kind", ErrorKind(syncErr))
			report.Failed++
			continue
		}
		report.Synced++
	}

	logger.InfoContext(ctx, "attendee sync finished", "synced", report.Synced, "failed", report.Failed)
	return
}

// Run calls SyncStale on every tick until the context is cancelled.
func (s *SyncService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SyncStale(ctx)
		}
	}
}

// MeetingDetail describes one meeting record of an activity.
type MeetingDetail struct {
	Record        MeetingRecord
	OrganiserName string
	Remote        *RemoteMeeting
	RemoteError   error
}

// ActivityReport is the administrative view of an activity and its meetings.
type ActivityReport struct {
	Activity    Activity
	ForcedGroup *Group
	Meetings    []MeetingDetail
}

// DescribeActivity lists the meeting records of an activity along with the
// remote meeting state. Remote lookup failures are reported per record.
func (s *MeetingService) DescribeActivity(ctx context.Context, activityID string) (ActivityReport, error) {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return ActivityReport{}, err
	}
	report := ActivityReport{Activity: activity}

	if activity.GroupID != 0 {
		groups, err := s.groups.AllGroups(ctx, activity)
		if err != nil {
			return ActivityReport{}, fmt.Errorf("list groups: %w", err)
		}
		for _, g := range groups {
			if g.ID == activity.GroupID {
				g := g
				report.ForcedGroup = &g
			}
		}
	}

	records, err := s.meetings.ListMeetings(ctx, activityID)
	if err != nil {
		return ActivityReport{}, mapMeetingRepoError(err)
	}

	for _, record := range records {
		detail := MeetingDetail{Record: record}
		var organiser UserProfile
		if record.HasOrganiser() {
			if organiser, err = s.users.Profile(ctx, record.OrganiserID); err == nil {
				detail.OrganiserName = organiser.FullName
			}
		}
		if record.HasMeeting() && organiser.Linked() && s.providerAvailable() {
			remote, err := s.provider.GetMeeting(ctx, record.ProviderMeetingID, participantFor(organiser, RoleOrganizer))
			if err != nil {
				detail.RemoteError = providerError("get", err)
			} else {
				detail.Remote = &remote
			}
		}
		report.Meetings = append(report.Meetings, detail)
	}
	return report, nil
}

// DescribeActivityFor is DescribeActivity restricted to actors that can
// manage the activity.
func (s *MeetingService) DescribeActivityFor(ctx context.Context, actorID int64, activityID string) (ActivityReport, error) {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return ActivityReport{}, err
	}
	if err := s.require(ctx, activity, actorID, CapabilityManage); err != nil {
		return ActivityReport{}, err
	}
	return s.DescribeActivity(ctx, activityID)
}
