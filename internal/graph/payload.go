package graph

import (
	"time"

	"github.com/example/teammeeting/internal/application"
)

const graphTimeLayout = "2006-01-02T15:04:05Z"

type identity struct {
	User *identityUser `json:"user,omitempty"`
}

type identityUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

type participantInfo struct {
	Identity identity `json:"identity"`
	UPN      string   `json:"upn,omitempty"`
	Role     string   `json:"role,omitempty"`
}

type participants struct {
	Organizer *participantInfo  `json:"organizer,omitempty"`
	Attendees []participantInfo `json:"attendees"`
}

type lobbyBypassSettings struct {
	Scope                 string `json:"scope"`
	IsDialInBypassEnabled bool   `json:"isDialInBypassEnabled"`
}

type onlineMeeting struct {
	ID                  string               `json:"id,omitempty"`
	Subject             string               `json:"subject,omitempty"`
	StartDateTime       string               `json:"startDateTime,omitempty"`
	EndDateTime         string               `json:"endDateTime,omitempty"`
	JoinWebURL          string               `json:"joinWebUrl,omitempty"`
	JoinURL             string               `json:"joinUrl,omitempty"`
	AllowedPresenters   string               `json:"allowedPresenters,omitempty"`
	AutoAdmittedUsers   string               `json:"autoAdmittedUsers,omitempty"`
	AllowMeetingChat    string               `json:"allowMeetingChat,omitempty"`
	LobbyBypassSettings *lobbyBypassSettings `json:"lobbyBypassSettings,omitempty"`
	Participants        *participants        `json:"participants,omitempty"`
}

// attendeesPatch only touches participants.attendees.
type attendeesPatch struct {
	Participants attendeesOnly `json:"participants"`
}

type attendeesOnly struct {
	Attendees []participantInfo `json:"attendees"`
}

func newMeetingPayload(req application.MeetingRequest) onlineMeeting {
	organizer := toParticipantInfo(req.Organiser)
	// Graph rejects "organizer" as a role value; the organiser presents.
	organizer.Role = string(application.RolePresenter)

	m := onlineMeeting{
		Subject:           req.Subject,
		AllowedPresenters: req.AllowedPresenters,
		AutoAdmittedUsers: "everyone",
		AllowMeetingChat:  chatSetting(req.ChatMode),
		LobbyBypassSettings: &lobbyBypassSettings{
			Scope:                 "everyone",
			IsDialInBypassEnabled: true,
		},
		Participants: &participants{
			Organizer: &organizer,
			Attendees: toParticipantInfos(req.Participants),
		},
	}
	if !req.Start.IsZero() && !req.End.IsZero() {
		m.StartDateTime = formatTime(req.Start)
		m.EndDateTime = formatTime(req.End)
	}
	return m
}

func newUpdatePayload(req application.MeetingRequest) onlineMeeting {
	m := onlineMeeting{Subject: req.Subject}
	if !req.Start.IsZero() && !req.End.IsZero() {
		m.StartDateTime = formatTime(req.Start)
		m.EndDateTime = formatTime(req.End)
	}
	return m
}

func chatSetting(mode application.ChatMode) string {
	if mode == application.ChatModeDuringMeeting {
		return "limited"
	}
	return "enabled"
}

func toParticipantInfo(p application.Participant) participantInfo {
	return participantInfo{
		Identity: identity{User: &identityUser{ID: p.ObjectID}},
		UPN:      p.UPN,
		Role:     string(p.Role),
	}
}

func toParticipantInfos(list []application.Participant) []participantInfo {
	out := make([]participantInfo, 0, len(list))
	for _, p := range list {
		out = append(out, toParticipantInfo(p))
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(graphTimeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, graphTimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (m onlineMeeting) toRemote() application.RemoteMeeting {
	remote := application.RemoteMeeting{
		ID:      m.ID,
		Subject: m.Subject,
		JoinURL: m.JoinWebURL,
		Start:   parseTime(m.StartDateTime),
		End:     parseTime(m.EndDateTime),
	}
	if remote.JoinURL == "" {
		remote.JoinURL = m.JoinURL
	}
	if m.Participants != nil {
		if m.Participants.Organizer != nil {
			remote.OrganizerUPN = m.Participants.Organizer.UPN
		}
		for _, a := range m.Participants.Attendees {
			p := application.Participant{UPN: a.UPN, Role: application.Role(a.Role)}
			if a.Identity.User != nil {
				p.ObjectID = a.Identity.User.ID
			}
			remote.Participants = append(remote.Participants, p)
		}
	}
	return remote
}
