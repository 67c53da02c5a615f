package persistence

import "context"

// ActivityRepository stores activity configuration.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	UpdateActivity(ctx context.Context, activity Activity) error
	GetActivity(ctx context.Context, id string) (Activity, error)
	ListActivities(ctx context.Context, courseID int64) ([]Activity, error)
	// DeleteActivity removes the activity together with its meetings,
	// calendar events, views and completion state.
	DeleteActivity(ctx context.Context, id string) error
}

// MeetingRepository stores per group meeting records.
type MeetingRepository interface {
	GetMeeting(ctx context.Context, activityID string, groupID int64) (Meeting, error)
	InsertMeeting(ctx context.Context, meeting Meeting) error
	UpdateMeeting(ctx context.Context, meeting Meeting) error
	// ClaimOrganiser sets the organiser when none is set and clears the
	// remote meeting fields. It returns ErrConflict when an organiser is
	// already present and ErrDuplicate when the organiser already organises
	// another group of the activity.
	ClaimOrganiser(ctx context.Context, meeting Meeting) (Meeting, error)
	FindMeetingByOrganiser(ctx context.Context, activityID string, organiserID int64) (Meeting, error)
	ListMeetings(ctx context.Context, activityID string) ([]Meeting, error)
	ListStaleMeetings(ctx context.Context, syncedBefore int64) ([]Meeting, error)
}

// DirectoryRepository exposes courses, users, groups and role assignments.
type DirectoryRepository interface {
	GetCourse(ctx context.Context, id int64) (Course, error)
	UpsertCourse(ctx context.Context, course Course) error
	GetUser(ctx context.Context, id int64) (User, error)
	UpsertUser(ctx context.Context, user User) error
	UpsertGroup(ctx context.Context, group Group) error
	AddGroupToGrouping(ctx context.Context, groupingID, groupID int64) error
	AddGroupMember(ctx context.Context, groupID, userID int64) error
	AssignRole(ctx context.Context, assignment RoleAssignment) error
	ListGroups(ctx context.Context, courseID, groupingID int64) ([]Group, error)
	ListUserGroups(ctx context.Context, courseID, groupingID, userID int64) ([]Group, error)
	ListRoleUsers(ctx context.Context, courseID int64, roles []string, groupID int64) ([]int64, error)
	UserRoles(ctx context.Context, courseID, userID int64) ([]string, error)
}

// CalendarRepository stores activity calendar events.
type CalendarRepository interface {
	ReplaceEvents(ctx context.Context, activityID string, events []CalendarEvent) error
	ListEvents(ctx context.Context, activityID string) ([]CalendarEvent, error)
}

// ViewRepository records module views and completion.
type ViewRepository interface {
	RecordView(ctx context.Context, view ModuleView) error
	IsCompleted(ctx context.Context, activityID string, userID int64) (bool, error)
}

// TokenRepository stores web service tokens.
type TokenRepository interface {
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, id string) (Token, error)
	TouchToken(ctx context.Context, id string, usedAt int64) error
}
