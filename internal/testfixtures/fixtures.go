package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/teammeeting/internal/application"
	"github.com/example/teammeeting/internal/persistence"
	"github.com/example/teammeeting/internal/persistence/sqlstore"
)

var activityCounter uint64

var referenceTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime is the baseline instant used by fixtures and NewClock.
func ReferenceTime() time.Time {
	return referenceTime
}

// Directory identifiers loaded by DefaultSeed.
const (
	CourseID        int64 = 2
	ManagerID       int64 = 1
	TeacherID       int64 = 10
	CoTeacherID     int64 = 11
	StudentID       int64 = 20
	OtherStudentID  int64 = 21
	UnlinkedUserID  int64 = 22
	AlphaGroupID    int64 = 5
	BetaGroupID     int64 = 6
	AlphaGroupingID int64 = 1
)

// CourseShortName is the short name of the seeded course.
const CourseShortName = "CS101"

// DefaultSeed describes one course with two groups:
//
//	Alpha (5, grouping 1): editing teacher 10, students 20 and 22
//	Beta  (6):             teacher 11, student 21
//
// User 1 is a course manager outside any group. User 22 has no remote identity.
func DefaultSeed() sqlstore.Seed {
	return sqlstore.Seed{
		Courses: []sqlstore.SeedCourse{
			{ID: CourseID, ShortName: CourseShortName, FullName: "Introduction to Computing"},
		},
		Users: []sqlstore.SeedUser{
			linkedUser(ManagerID, "Mia Manager"),
			linkedUser(TeacherID, "Tina Teacher"),
			linkedUser(CoTeacherID, "Nico Teacher"),
			linkedUser(StudentID, "Sam Student"),
			linkedUser(OtherStudentID, "Sue Student"),
			{ID: UnlinkedUserID, FullName: "Uma Unlinked"},
		},
		Groups: []sqlstore.SeedGroup{
			{ID: AlphaGroupID, CourseID: CourseID, Name: "Alpha", Groupings: []int64{AlphaGroupingID}, Members: []int64{TeacherID, StudentID, UnlinkedUserID}},
			{ID: BetaGroupID, CourseID: CourseID, Name: "Beta", Members: []int64{CoTeacherID, OtherStudentID}},
		},
		Roles: []sqlstore.SeedRole{
			{CourseID: CourseID, Role: persistence.RoleManager, Users: []int64{ManagerID}},
			{CourseID: CourseID, Role: persistence.RoleEditingTeacher, Users: []int64{TeacherID}},
			{CourseID: CourseID, Role: persistence.RoleTeacher, Users: []int64{CoTeacherID}},
			{CourseID: CourseID, Role: persistence.RoleStudent, Users: []int64{StudentID, OtherStudentID, UnlinkedUserID}},
		},
	}
}

func linkedUser(id int64, name string) sqlstore.SeedUser {
	return sqlstore.SeedUser{
		ID:             id,
		FullName:       name,
		Email:          fmt.Sprintf("user%d@example.com", id),
		RemoteObjectID: ObjectID(id),
		RemoteUPN:      fmt.Sprintf("user%d@example.com", id),
	}
}

// ObjectID is the remote identity assigned to linked seed users.
func ObjectID(userID int64) string {
	return fmt.Sprintf("obj-%d", userID)
}

// ActivityFixture is a deterministic activity configuration.
type ActivityFixture struct {
	ID                 string
	CourseID           int64
	Name               string
	OpenAt             time.Time
	CloseAt            time.Time
	Reusable           bool
	GroupID            int64
	GroupMode          application.GroupMode
	GroupingID         int64
	ChatMode           application.ChatMode
	AttendeeMode       application.AttendeeMode
	AttendeeRole       application.AttendeeRole
	TeacherMode        application.TeacherMode
	TeacherIDs         []int64
	DefaultOrganiserID int64
}

// ActivityOption configures an ActivityFixture.
type ActivityOption func(*ActivityFixture)

// NewActivityFixture returns a separate-groups activity open for two hours
// from ReferenceTime, with forced attendees and all teachers.
func NewActivityFixture(opts ...ActivityOption) ActivityFixture {
	idx := atomic.AddUint64(&activityCounter, 1)
	fixture := ActivityFixture{
		ID:           fmt.Sprintf("activity-%03d", idx),
		CourseID:     CourseID,
		Name:         fmt.Sprintf("Meeting %03d", idx),
		OpenAt:       referenceTime,
		CloseAt:      referenceTime.Add(2 * time.Hour),
		GroupMode:    application.GroupModeSeparate,
		ChatMode:     application.ChatModeAlways,
		AttendeeMode: application.AttendeeModeForced,
		AttendeeRole: application.AttendeeRoleAttendee,
		TeacherMode:  application.TeacherModeAll,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithActivityID overrides the generated id.
func WithActivityID(id string) ActivityOption {
	return func(f *ActivityFixture) { f.ID = id }
}

// WithGroupMode sets the group mode.
func WithGroupMode(mode application.GroupMode) ActivityOption {
	return func(f *ActivityFixture) { f.GroupMode = mode }
}

// WithForcedGroup pins the activity to one group.
func WithForcedGroup(groupID int64) ActivityOption {
	return func(f *ActivityFixture) { f.GroupID = groupID }
}

// WithGrouping restricts the activity to a grouping.
func WithGrouping(groupingID int64) ActivityOption {
	return func(f *ActivityFixture) { f.GroupingID = groupingID }
}

// WithWindow sets the open window.
func WithWindow(open, close time.Time) ActivityOption {
	return func(f *ActivityFixture) {
		f.OpenAt = open
		f.CloseAt = close
	}
}

// Reusable clears the window and marks the activity reusable.
func Reusable() ActivityOption {
	return func(f *ActivityFixture) {
		f.Reusable = true
		f.OpenAt = time.Time{}
		f.CloseAt = time.Time{}
	}
}

// WithSelectedTeachers restricts staff to ids.
func WithSelectedTeachers(ids ...int64) ActivityOption {
	return func(f *ActivityFixture) {
		f.TeacherMode = application.TeacherModeSelected
		f.TeacherIDs = append([]int64(nil), ids...)
	}
}

// WithoutForcedAttendees disables pushing students to the meeting.
func WithoutForcedAttendees() ActivityOption {
	return func(f *ActivityFixture) { f.AttendeeMode = application.AttendeeModeNone }
}

// WithAttendeeRole sets the role of forced attendees.
func WithAttendeeRole(role application.AttendeeRole) ActivityOption {
	return func(f *ActivityFixture) { f.AttendeeRole = role }
}

// WithDefaultOrganiser sets the legacy default organiser.
func WithDefaultOrganiser(userID int64) ActivityOption {
	return func(f *ActivityFixture) { f.DefaultOrganiserID = userID }
}

// Application returns the fixture as an application.Activity.
func (f ActivityFixture) Application() application.Activity {
	return application.Activity{
		ID:                 f.ID,
		CourseID:           f.CourseID,
		Name:               f.Name,
		OpenAt:             f.OpenAt,
		CloseAt:            f.CloseAt,
		Reusable:           f.Reusable,
		GroupID:            f.GroupID,
		GroupMode:          f.GroupMode,
		GroupingID:         f.GroupingID,
		ChatMode:           f.ChatMode,
		AttendeeMode:       f.AttendeeMode,
		AttendeeRole:       f.AttendeeRole,
		TeacherMode:        f.TeacherMode,
		TeacherIDs:         append([]int64(nil), f.TeacherIDs...),
		DefaultOrganiserID: f.DefaultOrganiserID,
		Visible:            true,
	}
}

// Persistence returns the fixture as a persistence.Activity.
func (f ActivityFixture) Persistence() persistence.Activity {
	return persistence.Activity{
		ID:                 f.ID,
		CourseID:           f.CourseID,
		Name:               f.Name,
		OpenAt:             unix(f.OpenAt),
		CloseAt:            unix(f.CloseAt),
		Reusable:           f.Reusable,
		GroupID:            f.GroupID,
		GroupMode:          int(f.GroupMode),
		GroupingID:         f.GroupingID,
		ChatMode:           string(f.ChatMode),
		AttendeeMode:       string(f.AttendeeMode),
		AttendeeRole:       string(f.AttendeeRole),
		TeacherMode:        string(f.TeacherMode),
		TeacherIDs:         append([]int64(nil), f.TeacherIDs...),
		DefaultOrganiserID: f.DefaultOrganiserID,
		Visible:            true,
	}
}

// Input returns the fixture as an application.ActivityInput.
func (f ActivityFixture) Input() application.ActivityInput {
	return application.ActivityInput{
		Name:         f.Name,
		OpenAt:       f.OpenAt,
		CloseAt:      f.CloseAt,
		Reusable:     f.Reusable,
		GroupID:      f.GroupID,
		GroupMode:    f.GroupMode,
		GroupingID:   f.GroupingID,
		ChatMode:     f.ChatMode,
		AttendeeMode: f.AttendeeMode,
		AttendeeRole: f.AttendeeRole,
		TeacherMode:  f.TeacherMode,
		TeacherIDs:   append([]int64(nil), f.TeacherIDs...),
		Visible:      true,
	}
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
