package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/teammeeting/internal/persistence"
)

var testNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubCapabilities struct {
	grants map[int64]map[Capability]bool
	groups *stubGroups
	err    error
}

func newStubCapabilities(groups *stubGroups) *stubCapabilities {
	return &stubCapabilities{grants: make(map[int64]map[Capability]bool), groups: groups}
}

func (s *stubCapabilities) grant(userID int64, caps ...Capability) *stubCapabilities {
	if s.grants[userID] == nil {
		s.grants[userID] = make(map[Capability]bool)
	}
	for _, c := range caps {
		s.grants[userID][c] = true
	}
	return s
}

func (s *stubCapabilities) HasCapability(_ context.Context, _ Activity, userID int64, capability Capability) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.grants[userID][capability], nil
}

func (s *stubCapabilities) UsersWithCapability(_ context.Context, _ Activity, capability Capability, groupID int64) ([]int64, error) {
	var ids []int64
	for id, caps := range s.grants {
		if !caps[capability] {
			continue
		}
		if groupID != 0 && s.groups != nil && !s.groups.isMember(groupID, id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type stubGroups struct {
	mode     GroupMode
	groups   []Group
	members  map[int64][]int64
	students []int64
}

func newStubGroups(mode GroupMode) *stubGroups {
	return &stubGroups{mode: mode, members: make(map[int64][]int64)}
}

func (s *stubGroups) addGroup(id int64, name string, members ...int64) *stubGroups {
	s.groups = append(s.groups, Group{ID: id, Name: name})
	s.members[id] = append(s.members[id], members...)
	return s
}

func (s *stubGroups) isMember(groupID, userID int64) bool {
	for _, id := range s.members[groupID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *stubGroups) GroupMode(_ context.Context, activity Activity) (GroupMode, error) {
	return s.mode, nil
}

func (s *stubGroups) GroupsOf(_ context.Context, _ Activity, userID int64) ([]Group, error) {
	var out []Group
	for _, g := range s.groups {
		if s.isMember(g.ID, userID) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubGroups) AllGroups(_ context.Context, _ Activity) ([]Group, error) {
	return append([]Group(nil), s.groups...), nil
}

func (s *stubGroups) Students(_ context.Context, _ Activity, groupID int64) ([]int64, error) {
	var out []int64
	for _, id := range s.students {
		if groupID == 0 || s.isMember(groupID, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

type stubUsers struct {
	profiles map[int64]UserProfile
}

func newStubUsers(linked ...int64) *stubUsers {
	s := &stubUsers{profiles: make(map[int64]UserProfile)}
	for _, id := range linked {
		s.add(id, true)
	}
	return s
}

func (s *stubUsers) add(id int64, linked bool) *stubUsers {
	p := UserProfile{ID: id, FullName: fmt.Sprintf("User %d", id), Email: fmt.Sprintf("user%d@example.com", id)}
	if linked {
		p.RemoteObjectID = fmt.Sprintf("obj-%d", id)
		p.RemoteUPN = p.Email
	}
	s.profiles[id] = p
	return s
}

func (s *stubUsers) Profile(_ context.Context, userID int64) (UserProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	return p, nil
}

type stubCourses struct {
	courses map[int64]Course
}

func (s *stubCourses) Course(_ context.Context, courseID int64) (Course, error) {
	c, ok := s.courses[courseID]
	if !ok {
		return Course{}, persistence.ErrNotFound
	}
	return c, nil
}

type memActivities struct {
	mu      sync.Mutex
	items   map[string]Activity
	deleted []string
}

func newMemActivities(activities ...Activity) *memActivities {
	m := &memActivities{items: make(map[string]Activity)}
	for _, a := range activities {
		m.items[a.ID] = a
	}
	return m
}

func (m *memActivities) CreateActivity(_ context.Context, a Activity) (Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[a.ID]; ok {
		return Activity{}, persistence.ErrDuplicate
	}
	m.items[a.ID] = a
	return a, nil
}

func (m *memActivities) UpdateActivity(_ context.Context, a Activity) (Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[a.ID]; !ok {
		return Activity{}, persistence.ErrNotFound
	}
	m.items[a.ID] = a
	return a, nil
}

func (m *memActivities) GetActivity(_ context.Context, id string) (Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return Activity{}, persistence.ErrNotFound
	}
	return a, nil
}

func (m *memActivities) DeleteActivity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type meetingKey struct {
	activityID string
	groupID    int64
}

type memMeetings struct {
	mu        sync.Mutex
	records   map[meetingKey]MeetingRecord
	writes    int
	updateErr error
	// failUpdateAfter makes UpdateMeeting fail once the given number of
	// successful updates has been reached; zero disables it.
	failUpdateAfter int
	updates         int
	// beforeClaim runs under the lock ahead of ClaimOrganiser, standing in
	// for a writer that got there first.
	beforeClaim func(records map[meetingKey]MeetingRecord)
}

func newMemMeetings(records ...MeetingRecord) *memMeetings {
	m := &memMeetings{records: make(map[meetingKey]MeetingRecord)}
	for _, r := range records {
		m.records[meetingKey{r.ActivityID, r.GroupID}] = r
	}
	return m
}

func (m *memMeetings) get(activityID string, groupID int64) (MeetingRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[meetingKey{activityID, groupID}]
	return r, ok
}

func (m *memMeetings) GetMeeting(_ context.Context, activityID string, groupID int64) (MeetingRecord, bool, error) {
	r, ok := m.get(activityID, groupID)
	return r, ok, nil
}

func (m *memMeetings) InsertMeeting(_ context.Context, r MeetingRecord) (MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := meetingKey{r.ActivityID, r.GroupID}
	if _, ok := m.records[key]; ok {
		return MeetingRecord{}, persistence.ErrDuplicate
	}
	m.records[key] = r
	m.writes++
	return r, nil
}

func (m *memMeetings) UpdateMeeting(_ context.Context, r MeetingRecord) (MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return MeetingRecord{}, m.updateErr
	}
	if m.failUpdateAfter > 0 && m.updates >= m.failUpdateAfter {
		return MeetingRecord{}, errors.New("update failed")
	}
	key := meetingKey{r.ActivityID, r.GroupID}
	if _, ok := m.records[key]; !ok {
		return MeetingRecord{}, persistence.ErrNotFound
	}
	m.records[key] = r
	m.writes++
	m.updates++
	return r, nil
}

func (m *memMeetings) ClaimOrganiser(_ context.Context, r MeetingRecord) (MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeClaim != nil {
		m.beforeClaim(m.records)
		m.beforeClaim = nil
	}
	key := meetingKey{r.ActivityID, r.GroupID}
	for k, existing := range m.records {
		if k.activityID == r.ActivityID && k != key && existing.OrganiserID == r.OrganiserID {
			return MeetingRecord{}, persistence.ErrDuplicate
		}
	}
	existing, ok := m.records[key]
	if ok && existing.OrganiserID != 0 {
		return MeetingRecord{}, persistence.ErrConflict
	}
	if ok {
		r.ID = existing.ID
	}
	r.ProviderMeetingID = ""
	r.JoinURL = ""
	r.LastSync = time.Time{}
	m.records[key] = r
	m.writes++
	return r, nil
}

func (m *memMeetings) FindOrganisedMeeting(_ context.Context, activityID string, organiserID int64) (MeetingRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.records {
		if k.activityID == activityID && r.OrganiserID == organiserID {
			return r, true, nil
		}
	}
	return MeetingRecord{}, false, nil
}

func (m *memMeetings) ListMeetings(_ context.Context, activityID string) ([]MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MeetingRecord
	for k, r := range m.records {
		if k.activityID == activityID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (m *memMeetings) ListStaleMeetings(_ context.Context, syncedBefore time.Time) ([]MeetingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MeetingRecord
	for _, r := range m.records {
		if r.HasMeeting() && r.HasOrganiser() && r.LastSync.Before(syncedBefore) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActivityID != out[j].ActivityID {
			return out[i].ActivityID < out[j].ActivityID
		}
		return out[i].GroupID < out[j].GroupID
	})
	return out, nil
}

type attendeeCall struct {
	meetingID    string
	organiser    Participant
	participants []Participant
}

type stubProvider struct {
	unavailable bool
	createErr   error
	attendeeErr error
	updateErr   error
	deleteErr   error
	getErr      error

	created   []MeetingRequest
	attendees []attendeeCall
	updated   map[string]MeetingRequest
	deleted   []string
}

func newStubProvider() *stubProvider {
	return &stubProvider{updated: make(map[string]MeetingRequest)}
}

func (p *stubProvider) Available() bool { return !p.unavailable }

func (p *stubProvider) CreateMeeting(_ context.Context, req MeetingRequest) (RemoteMeeting, error) {
	if p.createErr != nil {
		return RemoteMeeting{}, p.createErr
	}
	p.created = append(p.created, req)
	id := fmt.Sprintf("remote-%d", len(p.created))
	return RemoteMeeting{ID: id, JoinURL: "https://teams.example/join/" + id, Subject: req.Subject}, nil
}

func (p *stubProvider) UpdateAttendees(_ context.Context, meetingID string, organiser Participant, participants []Participant) error {
	if p.attendeeErr != nil {
		return p.attendeeErr
	}
	p.attendees = append(p.attendees, attendeeCall{meetingID: meetingID, organiser: organiser, participants: participants})
	return nil
}

func (p *stubProvider) UpdateMeeting(_ context.Context, meetingID string, req MeetingRequest) error {
	if p.updateErr != nil {
		return p.updateErr
	}
	p.updated[meetingID] = req
	return nil
}

func (p *stubProvider) DeleteMeeting(_ context.Context, meetingID string, _ Participant) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, meetingID)
	return nil
}

func (p *stubProvider) GetMeeting(_ context.Context, meetingID string, organiser Participant) (RemoteMeeting, error) {
	if p.getErr != nil {
		return RemoteMeeting{}, p.getErr
	}
	return RemoteMeeting{ID: meetingID, OrganizerUPN: organiser.UPN}, nil
}

type stubViews struct {
	views []int64
}

func (s *stubViews) RecordView(_ context.Context, _ Activity, userID int64, groupID int64) error {
	s.views = append(s.views, groupID)
	return nil
}

type stubCalendar struct {
	events map[string][]CalendarEvent
}

func (s *stubCalendar) ReplaceEvents(_ context.Context, activityID string, events []CalendarEvent) error {
	if s.events == nil {
		s.events = make(map[string][]CalendarEvent)
	}
	s.events[activityID] = events
	return nil
}

type stubNotifier struct {
	notices []MeetingNotice
	err     error
}

func (s *stubNotifier) MeetingCreated(_ context.Context, notice MeetingNotice) error {
	s.notices = append(s.notices, notice)
	return s.err
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// meetingWorld wires a MeetingService over in-memory collaborators.
type meetingWorld struct {
	activities   *memActivities
	meetings     *memMeetings
	courses      *stubCourses
	users        *stubUsers
	capabilities *stubCapabilities
	groups       *stubGroups
	provider     *stubProvider
	views        *stubViews
	notifier     *stubNotifier
	clock        *fakeClock
}

func newMeetingWorld(mode GroupMode, activity Activity) *meetingWorld {
	groups := newStubGroups(mode)
	return &meetingWorld{
		activities:   newMemActivities(activity),
		meetings:     newMemMeetings(),
		courses:      &stubCourses{courses: map[int64]Course{activity.CourseID: {ID: activity.CourseID, ShortName: "CS101", FullName: "Computing", HasLandingPage: true}}},
		users:        newStubUsers(),
		capabilities: newStubCapabilities(groups),
		groups:       groups,
		provider:     newStubProvider(),
		views:        &stubViews{},
		notifier:     &stubNotifier{},
		clock:        &fakeClock{now: testNow},
	}
}

func (w *meetingWorld) service(options MeetingOptions) *MeetingService {
	return NewMeetingServiceWithLogger(MeetingServiceDeps{
		Activities:   w.activities,
		Meetings:     w.meetings,
		Courses:      w.courses,
		Users:        w.users,
		Capabilities: w.capabilities,
		Groups:       w.groups,
		Provider:     w.provider,
		Views:        w.views,
		Notifier:     w.notifier,
	}, options, sequence("meeting"), w.clock.Now, discardLogger())
}

func testActivity(id string) Activity {
	return Activity{
		ID:           id,
		CourseID:     2,
		Name:         "Weekly sync",
		OpenAt:       testNow,
		CloseAt:      testNow.Add(time.Hour),
		ChatMode:     ChatModeAlways,
		AttendeeMode: AttendeeModeForced,
		AttendeeRole: AttendeeRoleAttendee,
		TeacherMode:  TeacherModeAll,
		Visible:      true,
	}
}

func int64Ptr(v int64) *int64 { return &v }
