package application

import "time"

// GroupMode is the effective group partitioning of an activity.
type GroupMode int

const (
	GroupModeNone GroupMode = iota
	GroupModeSeparate
	GroupModeVisible
)

func (m GroupMode) String() string {
	switch m {
	case GroupModeSeparate:
		return "separate"
	case GroupModeVisible:
		return "visible"
	default:
		return "none"
	}
}

// ChatMode controls when attendees can use the meeting chat.
type ChatMode string

const (
	ChatModeAlways        ChatMode = "always"
	ChatModeDuringMeeting ChatMode = "during_meeting"
)

// AttendeeMode controls whether students are pushed to the meeting as attendees.
type AttendeeMode string

const (
	AttendeeModeNone   AttendeeMode = "none"
	AttendeeModeForced AttendeeMode = "forced"
)

// AttendeeRole is the default role granted to people joining the meeting.
type AttendeeRole string

const (
	AttendeeRoleAttendee  AttendeeRole = "attendee"
	AttendeeRolePresenter AttendeeRole = "presenter"
)

// TeacherMode selects which eligible staff are added to the meeting.
type TeacherMode string

const (
	TeacherModeAll      TeacherMode = "all"
	TeacherModeSelected TeacherMode = "selected"
)

// Role is the remote meeting role carried by a participant entry.
type Role string

const (
	RoleOrganizer   Role = "organizer"
	RoleCoorganizer Role = "coorganizer"
	RolePresenter   Role = "presenter"
	RoleAttendee    Role = "attendee"
)

// Activity is the configuration of one team meeting instance in a course.
type Activity struct {
	ID                 string
	CourseID           int64
	Name               string
	Intro              string
	OpenAt             time.Time
	CloseAt            time.Time
	Reusable           bool
	GroupID            int64
	GroupMode          GroupMode
	GroupingID         int64
	ChatMode           ChatMode
	AttendeeMode       AttendeeMode
	AttendeeRole       AttendeeRole
	TeacherMode        TeacherMode
	TeacherIDs         []int64
	DefaultOrganiserID int64
	Visible            bool
	ModifiedBy         int64
	ModifiedAt         time.Time
}

// TimeBoxed reports whether the activity is restricted to its open window.
func (a Activity) TimeBoxed() bool {
	return !a.Reusable
}

// WithinWindow reports whether t falls inside [OpenAt, CloseAt). Zero bounds are open.
func (a Activity) WithinWindow(t time.Time) bool {
	if !a.OpenAt.IsZero() && t.Before(a.OpenAt) {
		return false
	}
	if !a.CloseAt.IsZero() && !t.Before(a.CloseAt) {
		return false
	}
	return true
}

// Closed reports whether a time-boxed activity has ended at t.
func (a Activity) Closed(t time.Time) bool {
	return a.TimeBoxed() && !a.CloseAt.IsZero() && !t.Before(a.CloseAt)
}

// MeetingRecord tracks the organiser and remote meeting of one group of an activity.
type MeetingRecord struct {
	ID                string
	ActivityID        string
	GroupID           int64
	OrganiserID       int64
	ProviderMeetingID string
	JoinURL           string
	LastSync          time.Time
}

// StubMeetingRecord returns the in-memory record used until the first save.
func StubMeetingRecord(activityID string, groupID int64) MeetingRecord {
	return MeetingRecord{ActivityID: activityID, GroupID: groupID}
}

// Persisted reports whether the record has been saved.
func (m MeetingRecord) Persisted() bool {
	return m.ID != ""
}

// HasOrganiser reports whether an organiser has been assigned.
func (m MeetingRecord) HasOrganiser() bool {
	return m.OrganiserID != 0
}

// HasMeeting reports whether the remote meeting exists.
func (m MeetingRecord) HasMeeting() bool {
	return m.ProviderMeetingID != ""
}

// Ready reports whether participants can be sent to the meeting.
func (m MeetingRecord) Ready() bool {
	return m.HasOrganiser() && m.JoinURL != ""
}

// Participant is one entry of the list handed to the meeting provider.
type Participant struct {
	UserID   int64
	ObjectID string
	UPN      string
	Role     Role
}

// Group is a course group.
type Group struct {
	ID   int64
	Name string
}

// GroupResolution is the outcome of resolving the group an actor should use.
type GroupResolution struct {
	GroupID    int64
	Determined bool
}

// UserProfile describes a user and their link to the remote identity provider.
type UserProfile struct {
	ID             int64
	FullName       string
	Email          string
	RemoteObjectID string
	RemoteUPN      string
}

// Linked reports whether the user can take part in remote meetings.
func (u UserProfile) Linked() bool {
	return u.RemoteObjectID != ""
}

// Course holds the course attributes the engine needs.
type Course struct {
	ID             int64
	ShortName      string
	FullName       string
	HasLandingPage bool
}

// CalendarEvent is an "open" event published for an activity.
type CalendarEvent struct {
	ID          string
	ActivityID  string
	CourseID    int64
	GroupID     int64
	Name        string
	Description string
	EventType   string
	Start       time.Time
	Duration    time.Duration
	Visible     bool
}

// RemoteMeeting is the provider side view of a meeting.
type RemoteMeeting struct {
	ID           string
	Subject      string
	JoinURL      string
	OrganizerUPN string
	Start        time.Time
	End          time.Time
	Participants []Participant
}

// MeetingRequest is the payload for creating or patching a remote meeting.
type MeetingRequest struct {
	Organiser         Participant
	Participants      []Participant
	Subject           string
	Start             time.Time
	End               time.Time
	AllowedPresenters string
	ChatMode          ChatMode
}

// Principal identifies the acting user of a request.
type Principal struct {
	UserID int64
}
