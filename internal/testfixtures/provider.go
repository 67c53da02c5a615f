package testfixtures

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/teammeeting/internal/application"
)

var _ application.MeetingProvider = (*FakeProvider)(nil)

// AttendeeUpdate records one UpdateAttendees call.
type AttendeeUpdate struct {
	MeetingID    string
	Organiser    application.Participant
	Participants []application.Participant
}

// FakeProvider is an in-memory MeetingProvider that records every call.
// Set the *Err fields to make the matching call fail.
type FakeProvider struct {
	mu sync.Mutex

	Unavailable bool
	CreateErr   error
	AttendeeErr error
	UpdateErr   error
	DeleteErr   error

	Created         []application.MeetingRequest
	AttendeeUpdates []AttendeeUpdate
	MeetingUpdates  map[string]application.MeetingRequest
	Deleted         []string

	meetings map[string]application.RemoteMeeting
	counter  int
}

// NewFakeProvider returns an available provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		MeetingUpdates: make(map[string]application.MeetingRequest),
		meetings:       make(map[string]application.RemoteMeeting),
	}
}

// JoinURL is the join URL the fake assigns to a meeting id.
func JoinURL(meetingID string) string {
	return "https://teams.example/join/" + meetingID
}

func (p *FakeProvider) Available() bool {
	return !p.Unavailable
}

func (p *FakeProvider) CreateMeeting(ctx context.Context, req application.MeetingRequest) (application.RemoteMeeting, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return application.RemoteMeeting{}, p.CreateErr
	}
	p.counter++
	id := fmt.Sprintf("remote-%d", p.counter)
	meeting := application.RemoteMeeting{
		ID:           id,
		Subject:      req.Subject,
		JoinURL:      JoinURL(id),
		OrganizerUPN: req.Organiser.UPN,
		Start:        req.Start,
		End:          req.End,
		Participants: append([]application.Participant(nil), req.Participants...),
	}
	p.meetings[id] = meeting
	p.Created = append(p.Created, req)
	return meeting, nil
}

func (p *FakeProvider) UpdateAttendees(ctx context.Context, meetingID string, organiser application.Participant, participants []application.Participant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AttendeeErr != nil {
		return p.AttendeeErr
	}
	p.AttendeeUpdates = append(p.AttendeeUpdates, AttendeeUpdate{
		MeetingID:    meetingID,
		Organiser:    organiser,
		Participants: append([]application.Participant(nil), participants...),
	})
	if meeting, ok := p.meetings[meetingID]; ok {
		meeting.Participants = append([]application.Participant(nil), participants...)
		p.meetings[meetingID] = meeting
	}
	return nil
}

func (p *FakeProvider) UpdateMeeting(ctx context.Context, meetingID string, req application.MeetingRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.UpdateErr != nil {
		return p.UpdateErr
	}
	p.MeetingUpdates[meetingID] = req
	if meeting, ok := p.meetings[meetingID]; ok {
		meeting.Subject = req.Subject
		meeting.Start = req.Start
		meeting.End = req.End
		p.meetings[meetingID] = meeting
	}
	return nil
}

func (p *FakeProvider) DeleteMeeting(ctx context.Context, meetingID string, organiser application.Participant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	delete(p.meetings, meetingID)
	p.Deleted = append(p.Deleted, meetingID)
	return nil
}

func (p *FakeProvider) GetMeeting(ctx context.Context, meetingID string, organiser application.Participant) (application.RemoteMeeting, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	meeting, ok := p.meetings[meetingID]
	if !ok {
		return application.RemoteMeeting{}, application.ErrNotFound
	}
	return meeting, nil
}

// CreatedCount returns the number of successful CreateMeeting calls.
func (p *FakeProvider) CreatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Created)
}

// LastAttendeeUpdate returns the most recent UpdateAttendees call.
func (p *FakeProvider) LastAttendeeUpdate() (AttendeeUpdate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.AttendeeUpdates) == 0 {
		return AttendeeUpdate{}, false
	}
	return p.AttendeeUpdates[len(p.AttendeeUpdates)-1], true
}
