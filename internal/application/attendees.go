package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// MaxCoorganisers is the provider side limit on co-organisers per meeting.
const MaxCoorganisers = 10

// AttendeeListBuilder computes the participant list sent to the meeting provider.
type AttendeeListBuilder struct {
	capabilities CapabilityOracle
	groups       GroupDirectory
	users        UserDirectory
}

// NewAttendeeListBuilder constructs a builder over the directories.
func NewAttendeeListBuilder(capabilities CapabilityOracle, groups GroupDirectory, users UserDirectory) AttendeeListBuilder {
	return AttendeeListBuilder{capabilities: capabilities, groups: groups, users: users}
}

// Build returns co-organisers, presenters and attendees in that order. The
// organiser and users without a remote identity never appear. An empty result
// is replaced with the organiser tagged as presenter because the provider
// rejects empty participant lists.
func (b AttendeeListBuilder) Build(ctx context.Context, activity Activity, organiserID, groupID int64) ([]Participant, error) {
	mode, err := b.groups.GroupMode(ctx, activity)
	if err != nil {
		return nil, fmt.Errorf("resolve group mode: %w", err)
	}

	placed := map[int64]struct{}{organiserID: {}}

	presenterScope := int64(0)
	if groupID != 0 && mode == GroupModeSeparate {
		presenterScope = groupID
	}
	presenterIDs, err := b.capabilities.UsersWithCapability(ctx, activity, CapabilityPresent, presenterScope)
	if err != nil {
		return nil, fmt.Errorf("list presenters: %w", err)
	}
	presenterIDs = sortedUnique(presenterIDs)
	if activity.TeacherMode == TeacherModeSelected {
		presenterIDs = intersect(presenterIDs, activity.TeacherIDs)
	}

	staff, err := b.participants(ctx, presenterIDs, placed)
	if err != nil {
		return nil, err
	}
	for i := range staff {
		if i < MaxCoorganisers {
			staff[i].Role = RoleCoorganizer
		} else {
			staff[i].Role = RolePresenter
		}
	}

	var attendees []Participant
	if activity.AttendeeMode == AttendeeModeForced {
		studentIDs, err := b.groups.Students(ctx, activity, groupID)
		if err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		attendees, err = b.participants(ctx, sortedUnique(studentIDs), placed)
		if err != nil {
			return nil, err
		}
		for i := range attendees {
			attendees[i].Role = RoleAttendee
		}
	}

	list := make([]Participant, 0, len(staff)+len(attendees))
	list = append(list, staff...)
	list = append(list, attendees...)
	if len(list) > 0 {
		return list, nil
	}

	organiser, err := b.users.Profile(ctx, organiserID)
	if err != nil {
		return nil, fmt.Errorf("load organiser profile: %w", err)
	}
	return []Participant{participantFor(organiser, RolePresenter)}, nil
}

// participants resolves profiles for ids not yet placed and marks them placed.
func (b AttendeeListBuilder) participants(ctx context.Context, ids []int64, placed map[int64]struct{}) ([]Participant, error) {
	out := make([]Participant, 0, len(ids))
	for _, id := range ids {
		if _, ok := placed[id]; ok {
			continue
		}
		placed[id] = struct{}{}

		profile, err := b.users.Profile(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load profile %d: %w", id, err)
		}
		if !profile.Linked() {
			continue
		}
		out = append(out, participantFor(profile, RoleAttendee))
	}
	return out, nil
}

func participantFor(profile UserProfile, role Role) Participant {
	return Participant{
		UserID:   profile.ID,
		ObjectID: profile.RemoteObjectID,
		UPN:      profile.RemoteUPN,
		Role:     role,
	}
}

func sortedUnique(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func intersect(ids, allowed []int64) []int64 {
	set := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
