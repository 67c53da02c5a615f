package main

import (
	"context"
	"errors"
	"time"

	"github.com/example/teammeeting/internal/application"
	"github.com/example/teammeeting/internal/persistence"
)

type activityRepositoryAdapter struct {
	repo persistence.ActivityRepository
}

func newActivityRepositoryAdapter(repo persistence.ActivityRepository) *activityRepositoryAdapter {
	return &activityRepositoryAdapter{repo: repo}
}

func (a *activityRepositoryAdapter) CreateActivity(ctx context.Context, activity application.Activity) (application.Activity, error) {
	if err := a.repo.CreateActivity(ctx, toPersistenceActivity(activity)); err != nil {
		return application.Activity{}, err
	}
	return a.GetActivity(ctx, activity.ID)
}

func (a *activityRepositoryAdapter) UpdateActivity(ctx context.Context, activity application.Activity) (application.Activity, error) {
	if err := a.repo.UpdateActivity(ctx, toPersistenceActivity(activity)); err != nil {
		return application.Activity{}, err
	}
	return a.GetActivity(ctx, activity.ID)
}

func (a *activityRepositoryAdapter) GetActivity(ctx context.Context, id string) (application.Activity, error) {
	stored, err := a.repo.GetActivity(ctx, id)
	if err != nil {
		return application.Activity{}, err
	}
	return toApplicationActivity(stored), nil
}

func (a *activityRepositoryAdapter) DeleteActivity(ctx context.Context, id string) error {
	return a.repo.DeleteActivity(ctx, id)
}

type meetingStoreAdapter struct {
	repo persistence.MeetingRepository
}

func newMeetingStoreAdapter(repo persistence.MeetingRepository) *meetingStoreAdapter {
	return &meetingStoreAdapter{repo: repo}
}

func (a *meetingStoreAdapter) GetMeeting(ctx context.Context, activityID string, groupID int64) (application.MeetingRecord, bool, error) {
	stored, err := a.repo.GetMeeting(ctx, activityID, groupID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.MeetingRecord{}, false, nil
		}
		return application.MeetingRecord{}, false, err
	}
	return toApplicationMeeting(stored), true, nil
}

func (a *meetingStoreAdapter) InsertMeeting(ctx context.Context, record application.MeetingRecord) (application.MeetingRecord, error) {
	if err := a.repo.InsertMeeting(ctx, toPersistenceMeeting(record)); err != nil {
		return application.MeetingRecord{}, err
	}
	return record, nil
}

func (a *meetingStoreAdapter) UpdateMeeting(ctx context.Context, record application.MeetingRecord) (application.MeetingRecord, error) {
	if err := a.repo.UpdateMeeting(ctx, toPersistenceMeeting(record)); err != nil {
		return application.MeetingRecord{}, err
	}
	return record, nil
}

func (a *meetingStoreAdapter) ClaimOrganiser(ctx context.Context, record application.MeetingRecord) (application.MeetingRecord, error) {
	claimed, err := a.repo.ClaimOrganiser(ctx, toPersistenceMeeting(record))
	if err != nil {
		return application.MeetingRecord{}, err
	}
	return toApplicationMeeting(claimed), nil
}

func (a *meetingStoreAdapter) FindOrganisedMeeting(ctx context.Context, activityID string, organiserID int64) (application.MeetingRecord, bool, error) {
	stored, err := a.repo.FindMeetingByOrganiser(ctx, activityID, organiserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.MeetingRecord{}, false, nil
		}
		return application.MeetingRecord{}, false, err
	}
	return toApplicationMeeting(stored), true, nil
}

func (a *meetingStoreAdapter) ListMeetings(ctx context.Context, activityID string) ([]application.MeetingRecord, error) {
	models, err := a.repo.ListMeetings(ctx, activityID)
	if err != nil {
		return nil, err
	}
	return toApplicationMeetings(models), nil
}

func (a *meetingStoreAdapter) ListStaleMeetings(ctx context.Context, syncedBefore time.Time) ([]application.MeetingRecord, error) {
	models, err := a.repo.ListStaleMeetings(ctx, toUnix(syncedBefore))
	if err != nil {
		return nil, err
	}
	return toApplicationMeetings(models), nil
}

// directoryAdapter answers group, user, course and capability questions from
// the directory tables.
type directoryAdapter struct {
	repo persistence.DirectoryRepository
}

func newDirectoryAdapter(repo persistence.DirectoryRepository) *directoryAdapter {
	return &directoryAdapter{repo: repo}
}

func (a *directoryAdapter) Course(ctx context.Context, courseID int64) (application.Course, error) {
	course, err := a.repo.GetCourse(ctx, courseID)
	if err != nil {
		return application.Course{}, err
	}
	return application.Course{
		ID:             course.ID,
		ShortName:      course.ShortName,
		FullName:       course.FullName,
		HasLandingPage: course.HasLandingPage,
	}, nil
}

func (a *directoryAdapter) Profile(ctx context.Context, userID int64) (application.UserProfile, error) {
	user, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return application.UserProfile{}, err
	}
	return application.UserProfile{
		ID:             user.ID,
		FullName:       user.FullName,
		Email:          user.Email,
		RemoteObjectID: user.RemoteObjectID,
		RemoteUPN:      user.RemoteUPN,
	}, nil
}

// GroupMode applies the course level forced mode over the activity's own.
func (a *directoryAdapter) GroupMode(ctx context.Context, activity application.Activity) (application.GroupMode, error) {
	course, err := a.repo.GetCourse(ctx, activity.CourseID)
	if err != nil {
		return application.GroupModeNone, err
	}
	if course.ForcedGroupMode != nil {
		return application.GroupMode(*course.ForcedGroupMode), nil
	}
	return activity.GroupMode, nil
}

func (a *directoryAdapter) GroupsOf(ctx context.Context, activity application.Activity, userID int64) ([]application.Group, error) {
	groups, err := a.repo.ListUserGroups(ctx, activity.CourseID, activity.GroupingID, userID)
	if err != nil {
		return nil, err
	}
	return toApplicationGroups(groups), nil
}

func (a *directoryAdapter) AllGroups(ctx context.Context, activity application.Activity) ([]application.Group, error) {
	groups, err := a.repo.ListGroups(ctx, activity.CourseID, activity.GroupingID)
	if err != nil {
		return nil, err
	}
	return toApplicationGroups(groups), nil
}

func (a *directoryAdapter) Students(ctx context.Context, activity application.Activity, groupID int64) ([]int64, error) {
	return a.repo.ListRoleUsers(ctx, activity.CourseID, []string{persistence.RoleStudent}, groupID)
}

func (a *directoryAdapter) HasCapability(ctx context.Context, activity application.Activity, userID int64, capability application.Capability) (bool, error) {
	roles, err := a.repo.UserRoles(ctx, activity.CourseID, userID)
	if err != nil {
		return false, err
	}
	granted := rolesWithCapability(capability)
	for _, role := range roles {
		for _, candidate := range granted {
			if role == candidate {
				return true, nil
			}
		}
	}
	return false, nil
}

func (a *directoryAdapter) UsersWithCapability(ctx context.Context, activity application.Activity, capability application.Capability, groupID int64) ([]int64, error) {
	return a.repo.ListRoleUsers(ctx, activity.CourseID, rolesWithCapability(capability), groupID)
}

// rolesWithCapability lists the course roles granting capability.
func rolesWithCapability(capability application.Capability) []string {
	switch capability {
	case application.CapabilityView:
		return []string{persistence.RoleManager, persistence.RoleEditingTeacher, persistence.RoleTeacher, persistence.RoleStudent}
	case application.CapabilityPresent:
		return []string{persistence.RoleManager, persistence.RoleEditingTeacher, persistence.RoleTeacher}
	case application.CapabilityManage, application.CapabilityAccessAllGroups:
		return []string{persistence.RoleManager, persistence.RoleEditingTeacher}
	default:
		return nil
	}
}

type viewRecorderAdapter struct {
	repo persistence.ViewRepository
	now  func() time.Time
}

func newViewRecorderAdapter(repo persistence.ViewRepository, now func() time.Time) *viewRecorderAdapter {
	return &viewRecorderAdapter{repo: repo, now: now}
}

func (a *viewRecorderAdapter) RecordView(ctx context.Context, activity application.Activity, userID int64, groupID int64) error {
	return a.repo.RecordView(ctx, persistence.ModuleView{
		ActivityID: activity.ID,
		UserID:     userID,
		GroupID:    groupID,
		ViewedAt:   toUnix(a.now()),
	})
}

type calendarSinkAdapter struct {
	repo persistence.CalendarRepository
}

func newCalendarSinkAdapter(repo persistence.CalendarRepository) *calendarSinkAdapter {
	return &calendarSinkAdapter{repo: repo}
}

func (a *calendarSinkAdapter) ReplaceEvents(ctx context.Context, activityID string, events []application.CalendarEvent) error {
	models := make([]persistence.CalendarEvent, 0, len(events))
	for _, event := range events {
		models = append(models, persistence.CalendarEvent{
			ID:          event.ID,
			ActivityID:  event.ActivityID,
			CourseID:    event.CourseID,
			GroupID:     event.GroupID,
			Name:        event.Name,
			Description: event.Description,
			EventType:   event.EventType,
			TimeStart:   toUnix(event.Start),
			Duration:    int64(event.Duration / time.Second),
			Visible:     event.Visible,
		})
	}
	return a.repo.ReplaceEvents(ctx, activityID, models)
}

type tokenRepositoryAdapter struct {
	repo persistence.TokenRepository
}

func newTokenRepositoryAdapter(repo persistence.TokenRepository) *tokenRepositoryAdapter {
	return &tokenRepositoryAdapter{repo: repo}
}

func (a *tokenRepositoryAdapter) CreateToken(ctx context.Context, token application.WebServiceToken) error {
	return a.repo.CreateToken(ctx, persistence.Token{
		ID:         token.ID,
		UserID:     token.UserID,
		SecretHash: token.SecretHash,
		CreatedAt:  toUnix(token.CreatedAt),
		LastUsedAt: toUnix(token.LastUsedAt),
	})
}

func (a *tokenRepositoryAdapter) GetToken(ctx context.Context, id string) (application.WebServiceToken, error) {
	stored, err := a.repo.GetToken(ctx, id)
	if err != nil {
		return application.WebServiceToken{}, err
	}
	return application.WebServiceToken{
		ID:         stored.ID,
		UserID:     stored.UserID,
		SecretHash: stored.SecretHash,
		CreatedAt:  fromUnix(stored.CreatedAt),
		LastUsedAt: fromUnix(stored.LastUsedAt),
	}, nil
}

func (a *tokenRepositoryAdapter) TouchToken(ctx context.Context, id string, usedAt time.Time) error {
	return a.repo.TouchToken(ctx, id, toUnix(usedAt))
}

func toApplicationActivity(model persistence.Activity) application.Activity {
	return application.Activity{
		ID:                 model.ID,
		CourseID:           model.CourseID,
		Name:               model.Name,
		Intro:              model.Intro,
		OpenAt:             fromUnix(model.OpenAt),
		CloseAt:            fromUnix(model.CloseAt),
		Reusable:           model.Reusable,
		GroupID:            model.GroupID,
		GroupMode:          application.GroupMode(model.GroupMode),
		GroupingID:         model.GroupingID,
		ChatMode:           application.ChatMode(model.ChatMode),
		AttendeeMode:       application.AttendeeMode(model.AttendeeMode),
		AttendeeRole:       application.AttendeeRole(model.AttendeeRole),
		TeacherMode:        application.TeacherMode(model.TeacherMode),
		TeacherIDs:         append([]int64(nil), model.TeacherIDs...),
		DefaultOrganiserID: model.DefaultOrganiserID,
		Visible:            model.Visible,
		ModifiedBy:         model.ModifiedBy,
		ModifiedAt:         fromUnix(model.ModifiedAt),
	}
}

func toPersistenceActivity(activity application.Activity) persistence.Activity {
	return persistence.Activity{
		ID:                 activity.ID,
		CourseID:           activity.CourseID,
		Name:               activity.Name,
		Intro:              activity.Intro,
		OpenAt:             toUnix(activity.OpenAt),
		CloseAt:            toUnix(activity.CloseAt),
		Reusable:           activity.Reusable,
		GroupID:            activity.GroupID,
		GroupMode:          int(activity.GroupMode),
		GroupingID:         activity.GroupingID,
		ChatMode:           string(activity.ChatMode),
		AttendeeMode:       string(activity.AttendeeMode),
		AttendeeRole:       string(activity.AttendeeRole),
		TeacherMode:        string(activity.TeacherMode),
		TeacherIDs:         append([]int64(nil), activity.TeacherIDs...),
		DefaultOrganiserID: activity.DefaultOrganiserID,
		Visible:            activity.Visible,
		ModifiedBy:         activity.ModifiedBy,
		ModifiedAt:         toUnix(activity.ModifiedAt),
	}
}

func toApplicationMeeting(model persistence.Meeting) application.MeetingRecord {
	return application.MeetingRecord{
		ID:                model.ID,
		ActivityID:        model.ActivityID,
		GroupID:           model.GroupID,
		OrganiserID:       model.OrganiserID,
		ProviderMeetingID: model.ProviderMeetingID,
		JoinURL:           model.JoinURL,
		LastSync:          fromUnix(model.LastSync),
	}
}

func toApplicationMeetings(models []persistence.Meeting) []application.MeetingRecord {
	if len(models) == 0 {
		return nil
	}
	records := make([]application.MeetingRecord, 0, len(models))
	for _, model := range models {
		records = append(records, toApplicationMeeting(model))
	}
	return records
}

func toPersistenceMeeting(record application.MeetingRecord) persistence.Meeting {
	return persistence.Meeting{
		ID:                record.ID,
		ActivityID:        record.ActivityID,
		GroupID:           record.GroupID,
		OrganiserID:       record.OrganiserID,
		ProviderMeetingID: record.ProviderMeetingID,
		JoinURL:           record.JoinURL,
		LastSync:          toUnix(record.LastSync),
	}
}

func toApplicationGroups(models []persistence.Group) []application.Group {
	if len(models) == 0 {
		return nil
	}
	groups := make([]application.Group, 0, len(models))
	for _, model := range models {
		groups = append(groups, application.Group{ID: model.ID, Name: model.Name})
	}
	return groups
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(seconds int64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}
