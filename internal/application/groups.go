package application

import (
	"context"
	"fmt"
)

// GroupResolver decides which group of an activity an actor works in.
type GroupResolver struct {
	groups       GroupDirectory
	capabilities CapabilityOracle
}

// NewGroupResolver constructs a resolver over the directory and capability oracle.
func NewGroupResolver(groups GroupDirectory, capabilities CapabilityOracle) GroupResolver {
	return GroupResolver{groups: groups, capabilities: capabilities}
}

// CanAccessGroup reports whether userID may use groupID within the activity.
func (r GroupResolver) CanAccessGroup(ctx context.Context, activity Activity, userID, groupID int64) (bool, error) {
	mode, err := r.groups.GroupMode(ctx, activity)
	if err != nil {
		return false, fmt.Errorf("resolve group mode: %w", err)
	}
	if mode == GroupModeNone {
		return groupID == 0, nil
	}

	allGroups, err := r.capabilities.HasCapability(ctx, activity, userID, CapabilityAccessAllGroups)
	if err != nil {
		return false, fmt.Errorf("check access all groups: %w", err)
	}

	var candidates []Group
	if mode == GroupModeSeparate && !allGroups {
		candidates, err = r.groups.GroupsOf(ctx, activity, userID)
	} else {
		candidates, err = r.groups.AllGroups(ctx, activity)
	}
	if err != nil {
		return false, fmt.Errorf("list candidate groups: %w", err)
	}
	return containsGroup(candidates, groupID), nil
}

// Resolve applies the forced group, validates a requested group and falls
// back to automatic selection. A forced group the actor cannot access yields
// ErrGroupAccessDenied; an inaccessible requested group is ignored.
func (r GroupResolver) Resolve(ctx context.Context, activity Activity, actorID int64, requested *int64) (GroupResolution, error) {
	candidate := requested
	forced := activity.GroupID != 0
	if forced {
		id := activity.GroupID
		candidate = &id
	}

	if candidate != nil {
		ok, err := r.CanAccessGroup(ctx, activity, actorID, *candidate)
		if err != nil {
			return GroupResolution{}, err
		}
		if ok {
			return GroupResolution{GroupID: *candidate, Determined: true}, nil
		}
		if forced {
			return GroupResolution{}, ErrGroupAccessDenied
		}
	}

	mode, err := r.groups.GroupMode(ctx, activity)
	if err != nil {
		return GroupResolution{}, fmt.Errorf("resolve group mode: %w", err)
	}
	if mode == GroupModeNone {
		return GroupResolution{GroupID: 0, Determined: true}, nil
	}

	own, others, err := r.CandidateGroups(ctx, activity, actorID)
	if err != nil {
		return GroupResolution{}, err
	}
	if len(own) == 1 && len(others) == 0 {
		return GroupResolution{GroupID: own[0].ID, Determined: true}, nil
	}
	return GroupResolution{}, nil
}

// CandidateGroups returns the actor's own groups and, when the group mode is
// visible or the actor can access all groups, the remaining groups.
func (r GroupResolver) CandidateGroups(ctx context.Context, activity Activity, actorID int64) (own, others []Group, err error) {
	mode, err := r.groups.GroupMode(ctx, activity)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve group mode: %w", err)
	}
	if mode == GroupModeNone {
		return nil, nil, nil
	}

	allGroups, err := r.capabilities.HasCapability(ctx, activity, actorID, CapabilityAccessAllGroups)
	if err != nil {
		return nil, nil, fmt.Errorf("check access all groups: %w", err)
	}

	own, err = r.groups.GroupsOf(ctx, activity, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("list actor groups: %w", err)
	}
	if mode != GroupModeVisible && !allGroups {
		return own, nil, nil
	}

	all, err := r.groups.AllGroups(ctx, activity)
	if err != nil {
		return nil, nil, fmt.Errorf("list all groups: %w", err)
	}
	for _, g := range all {
		if !containsGroup(own, g.ID) {
			others = append(others, g)
		}
	}
	return own, others, nil
}

func containsGroup(groups []Group, id int64) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}
