package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultMeetingDuration is applied to time-boxed activities without a close date.
const DefaultMeetingDuration = 2 * time.Hour

// ActivityInput captures the editable attributes of an activity.
type ActivityInput struct {
	Name         string
	Intro        string
	OpenAt       time.Time
	CloseAt      time.Time
	Reusable     bool
	GroupID      int64
	GroupMode    GroupMode
	GroupingID   int64
	ChatMode     ChatMode
	AttendeeMode AttendeeMode
	AttendeeRole AttendeeRole
	TeacherMode  TeacherMode
	TeacherIDs   []int64
	Visible      bool
	// DefaultOrganiserFromCreator makes the creating user the default organiser.
	DefaultOrganiserFromCreator bool
}

// AddActivityParams bundles the inputs for AddActivity.
type AddActivityParams struct {
	Principal Principal
	CourseID  int64
	Input     ActivityInput
}

// UpdateActivityParams bundles the inputs for UpdateActivity.
type UpdateActivityParams struct {
	Principal  Principal
	ActivityID string
	Input      ActivityInput
}

// ActivityServiceDeps groups the collaborators of the activity service.
type ActivityServiceDeps struct {
	Activities   ActivityRepository
	Meetings     MeetingRecordStore
	Courses      CourseCatalog
	Users        UserDirectory
	Capabilities CapabilityOracle
	Groups       GroupDirectory
	Provider     MeetingProvider
	Calendar     CalendarSink
}

// ActivityService manages the lifecycle of activities.
type ActivityService struct {
	activities      ActivityRepository
	meetings        MeetingRecordStore
	courses         CourseCatalog
	users           UserDirectory
	capabilities    CapabilityOracle
	groups          GroupDirectory
	provider        MeetingProvider
	calendar        CalendarSink
	defaultDuration time.Duration
	prefixSubject   bool
	idGenerator     func() string
	now             func() time.Time
	logger          *slog.Logger
}

// NewActivityService constructs an activity service with the provided dependencies.
func NewActivityService(deps ActivityServiceDeps, options ActivityOptions, idGenerator func() string, now func() time.Time) *ActivityService {
	return NewActivityServiceWithLogger(deps, options, idGenerator, now, nil)
}

// ActivityOptions tunes the activity service.
type ActivityOptions struct {
	DefaultDuration time.Duration
	PrefixSubject   bool
}

// NewActivityServiceWithLogger constructs an activity service with a specified logger.
func NewActivityServiceWithLogger(deps ActivityServiceDeps, options ActivityOptions, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ActivityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if options.DefaultDuration <= 0 {
		options.DefaultDuration = DefaultMeetingDuration
	}
	return &ActivityService{
		activities:      deps.Activities,
		meetings:        deps.Meetings,
		courses:         deps.Courses,
		users:           deps.Users,
		capabilities:    deps.Capabilities,
		groups:          deps.Groups,
		provider:        deps.Provider,
		calendar:        deps.Calendar,
		defaultDuration: options.DefaultDuration,
		prefixSubject:   options.PrefixSubject,
		idGenerator:     idGenerator,
		now:             now,
		logger:          defaultLogger(logger),
	}
}

func (s *ActivityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ActivityService", operation, attrs...)
}

// AddActivity validates input and creates an activity in a course.
func (s *ActivityService) AddActivity(ctx context.Context, params AddActivityParams) (activity Activity, err error) {
	if s == nil {
		err = fmt.Errorf("ActivityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AddActivity",
		"principal_id", params.Principal.UserID,
		"course_id", params.CourseID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add activity", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("activity_id", activity.ID).InfoContext(ctx, "activity added")
	}()

	if err = s.requireManage(ctx, Activity{CourseID: params.CourseID}, params.Principal.UserID); err != nil {
		return
	}
	if s.provider == nil || !s.provider.Available() {
		err = ErrNotConfigured
		return
	}

	var creator UserProfile
	creator, err = s.users.Profile(ctx, params.Principal.UserID)
	if err != nil {
		err = mapDirectoryError(err)
		return
	}
	if !creator.Linked() {
		err = ErrIdentityNotLinked
		return
	}

	input, vErr := normaliseActivityInput(params.Input, nil, s.now(), s.defaultDuration)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	activity = applyActivityInput(Activity{ID: s.idGenerator(), CourseID: params.CourseID}, input)
	activity.ModifiedBy = params.Principal.UserID
	activity.ModifiedAt = s.now()
	if input.DefaultOrganiserFromCreator {
		activity.DefaultOrganiserID = params.Principal.UserID
	}

	activity, err = s.activities.CreateActivity(ctx, activity)
	if err != nil {
		err = mapActivityRepoError(err)
		return
	}

	err = s.rebuildCalendar(ctx, activity)
	return
}

// UpdateActivity validates input, persists the change and patches remote
// meetings when the name or dates changed.
func (s *ActivityService) UpdateActivity(ctx context.Context, params UpdateActivityParams) (activity Activity, err error) {
	if s == nil {
		err = fmt.Errorf("ActivityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateActivity",
		"principal_id", params.Principal.UserID,
		"activity_id", params.ActivityID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update activity", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "activity updated")
	}()

	var existing Activity
	existing, err = s.activities.GetActivity(ctx, params.ActivityID)
	if err != nil {
		err = mapActivityRepoError(err)
		return
	}
	if err = s.requireManage(ctx, existing, params.Principal.UserID); err != nil {
		return
	}

	input, vErr := normaliseActivityInput(params.Input, &existing, s.now(), s.defaultDuration)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := applyActivityInput(existing, input)
	updated.ModifiedBy = params.Principal.UserID
	updated.ModifiedAt = s.now()

	activity, err = s.activities.UpdateActivity(ctx, updated)
	if err != nil {
		err = mapActivityRepoError(err)
		return
	}

	if err = s.rebuildCalendar(ctx, activity); err != nil {
		return
	}

	if existing.Name != activity.Name || !existing.OpenAt.Equal(activity.OpenAt) || !existing.CloseAt.Equal(activity.CloseAt) {
		err = s.patchMeetings(ctx, activity)
	}
	return
}

// DeleteActivity removes an activity and its meeting records. Remote
// meetings are deleted on a best-effort basis.
func (s *ActivityService) DeleteActivity(ctx context.Context, principal Principal, activityID string) error {
	if s == nil {
		return fmt.Errorf("ActivityService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteActivity",
		"principal_id", principal.UserID,
		"activity_id", activityID,
	)

	activity, err := s.activities.GetActivity(ctx, activityID)
	if err != nil {
		err = mapActivityRepoError(err)
		logger.ErrorContext(ctx, "failed to delete activity", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if err := s.requireManage(ctx, activity, principal.UserID); err != nil {
		logger.ErrorContext(ctx, "failed to delete activity", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	records, err := s.meetings.ListMeetings(ctx, activityID)
	if err != nil {
		err = mapMeetingRepoError(err)
		logger.ErrorContext(ctx, "failed to delete activity", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.activities.DeleteActivity(ctx, activityID); err != nil {
		err = mapActivityRepoError(err)
		logger.ErrorContext(ctx, "failed to delete activity", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if s.calendar != nil {
		if err := s.calendar.ReplaceEvents(ctx, activityID, nil); err != nil {
			logger.WarnContext(ctx, "failed to remove calendar events", "error", err)
		}
	}

	for _, record := range records {
		if !record.HasMeeting() || !record.HasOrganiser() || s.provider == nil || !s.provider.Available() {
			continue
		}
		organiser, err := s.users.Profile(ctx, record.OrganiserID)
		if err == nil {
			err = s.provider.DeleteMeeting(ctx, record.ProviderMeetingID, participantFor(organiser, RoleOrganizer))
		}
		if err != nil {
			logger.WarnContext(ctx, "failed to delete online meeting",
				"group_id", record.GroupID,
				"provider_meeting_id", record.ProviderMeetingID,
				"error", err,
			)
		}
	}

	logger.InfoContext(ctx, "activity deleted", "meetings", len(records))
	return nil
}

// CalendarEvents returns the events published for an activity.
func CalendarEvents(activity Activity, groupIDs []int64, newID func() string) []CalendarEvent {
	if activity.OpenAt.IsZero() || activity.CloseAt.IsZero() {
		return nil
	}
	events := make([]CalendarEvent, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		events = append(events, CalendarEvent{
			ID:          newID(),
			ActivityID:  activity.ID,
			CourseID:    activity.CourseID,
			GroupID:     groupID,
			Name:        activity.Name,
			Description: activity.Name,
			EventType:   "open",
			Start:       activity.OpenAt,
			Duration:    activity.CloseAt.Sub(activity.OpenAt),
			Visible:     activity.Visible,
		})
	}
	return events
}

func (s *ActivityService) rebuildCalendar(ctx context.Context, activity Activity) error {
	if s.calendar == nil {
		return nil
	}
	groupIDs := []int64{0}
	if activity.GroupID != 0 {
		groupIDs = []int64{activity.GroupID}
	} else if s.groups != nil {
		mode, err := s.groups.GroupMode(ctx, activity)
		if err != nil {
			return fmt.Errorf("resolve group mode: %w", err)
		}
		if mode != GroupModeNone {
			all, err := s.groups.AllGroups(ctx, activity)
			if err != nil {
				return fmt.Errorf("list groups: %w", err)
			}
			groupIDs = groupIDs[:0]
			for _, g := range all {
				groupIDs = append(groupIDs, g.ID)
			}
		}
	}
	if err := s.calendar.ReplaceEvents(ctx, activity.ID, CalendarEvents(activity, groupIDs, s.idGenerator)); err != nil {
		return fmt.Errorf("replace calendar events: %w", err)
	}
	return nil
}

func (s *ActivityService) patchMeetings(ctx context.Context, activity Activity) error {
	records, err := s.meetings.ListMeetings(ctx, activity.ID)
	if err != nil {
		return mapMeetingRepoError(err)
	}

	subject := activity.Name
	if s.prefixSubject && s.courses != nil {
		course, err := s.courses.Course(ctx, activity.CourseID)
		if err != nil {
			return mapDirectoryError(err)
		}
		subject = "[" + course.ShortName + "] " + activity.Name
	}

	var errs []error
	for _, record := range records {
		if !record.HasMeeting() || !record.HasOrganiser() {
			continue
		}
		if s.provider == nil || !s.provider.Available() {
			return ErrNotConfigured
		}
		organiser, err := s.users.Profile(ctx, record.OrganiserID)
		if err != nil {
			errs = append(errs, mapDirectoryError(err))
			continue
		}
		req := MeetingRequest{Organiser: participantFor(organiser, RoleOrganizer), Subject: subject}
		if activity.TimeBoxed() {
			req.Start = activity.OpenAt.UTC()
			req.End = activity.CloseAt.UTC()
		}
		if err := s.provider.UpdateMeeting(ctx, record.ProviderMeetingID, req); err != nil {
			errs = append(errs, providerError("update meeting", err))
		}
	}
	return errors.Join(errs...)
}

func (s *ActivityService) requireManage(ctx context.Context, activity Activity, userID int64) error {
	ok, err := s.capabilities.HasCapability(ctx, activity, userID, CapabilityManage)
	if err != nil {
		return fmt.Errorf("check manage capability: %w", err)
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func applyActivityInput(activity Activity, input ActivityInput) Activity {
	activity.Name = input.Name
	activity.Intro = input.Intro
	activity.OpenAt = input.OpenAt
	activity.CloseAt = input.CloseAt
	activity.Reusable = input.Reusable
	activity.GroupID = input.GroupID
	activity.GroupMode = input.GroupMode
	activity.GroupingID = input.GroupingID
	activity.ChatMode = input.ChatMode
	activity.AttendeeMode = input.AttendeeMode
	activity.AttendeeRole = input.AttendeeRole
	activity.TeacherMode = input.TeacherMode
	activity.TeacherIDs = append([]int64(nil), input.TeacherIDs...)
	activity.Visible = input.Visible
	return activity
}

// normaliseActivityInput applies defaults and validates the input. Reusable
// activities have no dates; time-boxed ones without a close date get the
// default duration. A close date in the past is rejected unless an edit
// leaves the dates untouched.
func normaliseActivityInput(input ActivityInput, existing *Activity, now time.Time, defaultDuration time.Duration) (ActivityInput, *ValidationError) {
	vErr := &ValidationError{}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		vErr.add("name", "name is required")
	}

	if input.ChatMode == "" {
		input.ChatMode = ChatModeAlways
	}
	if input.ChatMode != ChatModeAlways && input.ChatMode != ChatModeDuringMeeting {
		vErr.add("chat_mode", "chat mode is invalid")
	}
	if input.AttendeeMode == "" {
		input.AttendeeMode = AttendeeModeNone
	}
	if input.AttendeeMode != AttendeeModeNone && input.AttendeeMode != AttendeeModeForced {
		vErr.add("attendee_mode", "attendee mode is invalid")
	}
	if input.AttendeeRole == "" {
		input.AttendeeRole = AttendeeRoleAttendee
	}
	if input.AttendeeRole != AttendeeRoleAttendee && input.AttendeeRole != AttendeeRolePresenter {
		vErr.add("attendee_role", "attendee role is invalid")
	}
	if input.TeacherMode == "" {
		input.TeacherMode = TeacherModeAll
	}
	if input.TeacherMode != TeacherModeAll && input.TeacherMode != TeacherModeSelected {
		vErr.add("teacher_mode", "teacher mode is invalid")
	}
	if input.GroupMode < GroupModeNone || input.GroupMode > GroupModeVisible {
		vErr.add("group_mode", "group mode is invalid")
	}
	if input.GroupID < 0 {
		vErr.add("group_id", "group id is invalid")
	}

	if input.Reusable {
		input.OpenAt = time.Time{}
		input.CloseAt = time.Time{}
		return input, vErr
	}

	if input.OpenAt.IsZero() {
		vErr.add("open_at", "open date is required")
		return input, vErr
	}
	if input.CloseAt.IsZero() {
		input.CloseAt = input.OpenAt.Add(defaultDuration)
	}

	datesChanged := existing == nil ||
		!existing.OpenAt.Equal(input.OpenAt) ||
		!existing.CloseAt.Equal(input.CloseAt)
	if datesChanged && input.CloseAt.Before(now) {
		vErr.add("close_at", "close date must not be in the past")
	}
	if !input.OpenAt.Before(input.CloseAt) {
		vErr.add("close_at", "close date must be after open date")
	}
	return input, vErr
}
