package persistence

// Timestamps are stored as unix seconds; zero means unset.

// Activity mirrors a row of the activities table plus its teacher allow-list.
type Activity struct {
	ID                 string
	CourseID           int64
	Name               string
	Intro              string
	OpenAt             int64
	CloseAt            int64
	Reusable           bool
	GroupID            int64
	GroupMode          int
	GroupingID         int64
	ChatMode           string
	AttendeeMode       string
	AttendeeRole       string
	TeacherMode        string
	TeacherIDs         []int64
	DefaultOrganiserID int64
	Visible            bool
	ModifiedBy         int64
	ModifiedAt         int64
}

// Meeting mirrors a row of the meetings table. Zero values stand for NULL.
type Meeting struct {
	ID                string
	ActivityID        string
	GroupID           int64
	OrganiserID       int64
	ProviderMeetingID string
	JoinURL           string
	LastSync          int64
}

// Course is a course of the directory.
type Course struct {
	ID              int64
	ShortName       string
	FullName        string
	HasLandingPage  bool
	ForcedGroupMode *int
}

// User is a directory user with an optional remote identity link.
type User struct {
	ID             int64
	FullName       string
	Email          string
	RemoteObjectID string
	RemoteUPN      string
}

// Group is a course group.
type Group struct {
	ID       int64
	CourseID int64
	Name     string
}

// Role names used by course role assignments.
const (
	RoleManager        = "manager"
	RoleEditingTeacher = "editingteacher"
	RoleTeacher        = "teacher"
	RoleStudent        = "student"
)

// RoleAssignment grants a course role to a user.
type RoleAssignment struct {
	CourseID int64
	UserID   int64
	Role     string
}

// CalendarEvent mirrors a row of the calendar_events table.
type CalendarEvent struct {
	ID          string
	ActivityID  string
	CourseID    int64
	GroupID     int64
	Name        string
	Description string
	EventType   string
	TimeStart   int64
	Duration    int64
	Visible     bool
}

// ModuleView is a recorded view of an activity.
type ModuleView struct {
	ActivityID string
	UserID     int64
	GroupID    int64
	ViewedAt   int64
}

// Token mirrors a row of the ws_tokens table.
type Token struct {
	ID         string
	UserID     int64
	SecretHash string
	CreatedAt  int64
	LastUsedAt int64
}
