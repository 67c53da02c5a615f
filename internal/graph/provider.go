package graph

import (
	"context"
	"errors"
	"net/http"

	pkgerrors "github.com/pkg/errors"
	msgraph "github.com/yaegashi/msgraph.go/beta"

	"github.com/example/teammeeting/internal/application"
)

var _ application.MeetingProvider = (*Client)(nil)

// CreateMeeting creates an online meeting owned by the request organiser.
func (c *Client) CreateMeeting(ctx context.Context, req application.MeetingRequest) (application.RemoteMeeting, error) {
	if err := c.ready(req.Organiser); err != nil {
		return application.RemoteMeeting{}, err
	}

	in := newMeetingPayload(req)
	var out onlineMeeting
	err := c.meetings(req.Organiser).Request().JSONRequest(ctx, http.MethodPost, "", &in, &out)
	if err != nil {
		return application.RemoteMeeting{}, pkgerrors.Wrap(err, "cannot create meeting")
	}
	if out.ID == "" {
		return application.RemoteMeeting{}, pkgerrors.New("cannot create meeting: response carries no meeting id")
	}
	return out.toRemote(), nil
}

// UpdateAttendees replaces the attendee list of a meeting.
func (c *Client) UpdateAttendees(ctx context.Context, meetingID string, organiser application.Participant, list []application.Participant) error {
	if err := c.ready(organiser); err != nil {
		return err
	}
	in := attendeesPatch{Participants: attendeesOnly{Attendees: toParticipantInfos(list)}}
	err := c.meetings(organiser).ID(meetingID).Request().JSONRequest(ctx, http.MethodPatch, "", &in, nil)
	return pkgerrors.Wrapf(err, "cannot update attendees of meeting %s", meetingID)
}

// UpdateMeeting patches the subject and, for time-boxed requests, the schedule.
func (c *Client) UpdateMeeting(ctx context.Context, meetingID string, req application.MeetingRequest) error {
	if err := c.ready(req.Organiser); err != nil {
		return err
	}
	in := newUpdatePayload(req)
	err := c.meetings(req.Organiser).ID(meetingID).Request().JSONRequest(ctx, http.MethodPatch, "", &in, nil)
	return pkgerrors.Wrapf(err, "cannot update meeting %s", meetingID)
}

// DeleteMeeting removes a meeting. A meeting already gone counts as deleted.
func (c *Client) DeleteMeeting(ctx context.Context, meetingID string, organiser application.Participant) error {
	if err := c.ready(organiser); err != nil {
		return err
	}
	err := c.meetings(organiser).ID(meetingID).Request().Delete(ctx)
	if err != nil && !isNotFound(err) {
		return pkgerrors.Wrapf(err, "cannot delete meeting %s", meetingID)
	}
	return nil
}

// GetMeeting fetches the current state of a meeting.
func (c *Client) GetMeeting(ctx context.Context, meetingID string, organiser application.Participant) (application.RemoteMeeting, error) {
	if err := c.ready(organiser); err != nil {
		return application.RemoteMeeting{}, err
	}
	var out onlineMeeting
	err := c.meetings(organiser).ID(meetingID).Request().JSONRequest(ctx, http.MethodGet, "", nil, &out)
	if err != nil {
		if isNotFound(err) {
			return application.RemoteMeeting{}, pkgerrors.Wrapf(application.ErrNotFound, "meeting %s", meetingID)
		}
		return application.RemoteMeeting{}, pkgerrors.Wrapf(err, "cannot get meeting %s", meetingID)
	}
	return out.toRemote(), nil
}

func (c *Client) meetings(organiser application.Participant) *msgraph.UserOnlineMeetingsCollectionRequestBuilder {
	return c.builder.Users().ID(organiser.ObjectID).OnlineMeetings()
}

func (c *Client) ready(organiser application.Participant) error {
	if !c.Available() {
		return application.ErrNotConfigured
	}
	if organiser.ObjectID == "" {
		return application.ErrIdentityNotLinked
	}
	return nil
}

func isNotFound(err error) bool {
	var errRes *msgraph.ErrorResponse
	if errors.As(err, &errRes) && errRes.Response != nil {
		return errRes.Response.StatusCode == http.StatusNotFound
	}
	return false
}
