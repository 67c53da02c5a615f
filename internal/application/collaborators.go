package application

import (
	"context"
	"time"
)

// Capability enumerates the permission checks the engine performs.
type Capability int

const (
	CapabilityView Capability = iota
	CapabilityManage
	CapabilityPresent
	CapabilityAccessAllGroups
)

func (c Capability) String() string {
	switch c {
	case CapabilityView:
		return "view"
	case CapabilityManage:
		return "manage"
	case CapabilityPresent:
		return "present"
	case CapabilityAccessAllGroups:
		return "accessallgroups"
	default:
		return "unknown"
	}
}

// CapabilityOracle answers permission questions in the context of an activity.
type CapabilityOracle interface {
	HasCapability(ctx context.Context, activity Activity, userID int64, capability Capability) (bool, error)
	// UsersWithCapability lists holders of a capability ordered by user id.
	// A non-zero groupID restricts the result to members of that group.
	UsersWithCapability(ctx context.Context, activity Activity, capability Capability, groupID int64) ([]int64, error)
}

// GroupDirectory exposes group membership for an activity.
type GroupDirectory interface {
	GroupMode(ctx context.Context, activity Activity) (GroupMode, error)
	GroupsOf(ctx context.Context, activity Activity, userID int64) ([]Group, error)
	AllGroups(ctx context.Context, activity Activity) ([]Group, error)
	// Students lists students of the course, or of the group when groupID is non-zero.
	Students(ctx context.Context, activity Activity, groupID int64) ([]int64, error)
}

// UserDirectory resolves user profiles.
type UserDirectory interface {
	Profile(ctx context.Context, userID int64) (UserProfile, error)
}

// CourseCatalog resolves courses.
type CourseCatalog interface {
	Course(ctx context.Context, courseID int64) (Course, error)
}

// MeetingProvider manages remote online meetings.
type MeetingProvider interface {
	Available() bool
	CreateMeeting(ctx context.Context, req MeetingRequest) (RemoteMeeting, error)
	UpdateAttendees(ctx context.Context, meetingID string, organiser Participant, participants []Participant) error
	UpdateMeeting(ctx context.Context, meetingID string, req MeetingRequest) error
	DeleteMeeting(ctx context.Context, meetingID string, organiser Participant) error
	GetMeeting(ctx context.Context, meetingID string, organiser Participant) (RemoteMeeting, error)
}

// ActivityRepository persists activity configuration.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) (Activity, error)
	UpdateActivity(ctx context.Context, activity Activity) (Activity, error)
	GetActivity(ctx context.Context, id string) (Activity, error)
	DeleteActivity(ctx context.Context, id string) error
}

// MeetingRecordStore persists per group meeting records.
type MeetingRecordStore interface {
	GetMeeting(ctx context.Context, activityID string, groupID int64) (MeetingRecord, bool, error)
	InsertMeeting(ctx context.Context, record MeetingRecord) (MeetingRecord, error)
	UpdateMeeting(ctx context.Context, record MeetingRecord) (MeetingRecord, error)
	// ClaimOrganiser assigns the organiser only when the record has none, and
	// resets the remote meeting fields. The record is created when absent.
	ClaimOrganiser(ctx context.Context, record MeetingRecord) (MeetingRecord, error)
	FindOrganisedMeeting(ctx context.Context, activityID string, organiserID int64) (MeetingRecord, bool, error)
	ListMeetings(ctx context.Context, activityID string) ([]MeetingRecord, error)
	ListStaleMeetings(ctx context.Context, syncedBefore time.Time) ([]MeetingRecord, error)
}

// ViewRecorder records module views and completion.
type ViewRecorder interface {
	RecordView(ctx context.Context, activity Activity, userID int64, groupID int64) error
}

// CalendarSink stores calendar events of an activity.
type CalendarSink interface {
	ReplaceEvents(ctx context.Context, activityID string, events []CalendarEvent) error
}

// Notifier informs an organiser that their meeting was created.
type Notifier interface {
	MeetingCreated(ctx context.Context, notice MeetingNotice) error
}

// MeetingNotice is the content of a meeting created notification.
type MeetingNotice struct {
	Organiser    UserProfile
	ActivityName string
	CourseName   string
	JoinURL      string
}
