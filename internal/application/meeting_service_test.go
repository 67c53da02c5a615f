package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMeetingServiceResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("provider not configured", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView)
		w.provider.unavailable = true

		_, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("missing view capability", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))

		_, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("unknown activity", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))

		_, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "missing", ActorID: 20})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("outside window only managers proceed", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView).grant(1, CapabilityView, CapabilityManage)
		w.clock.now = testNow.Add(4000 * time.Second)
		svc := w.service(MeetingOptions{})

		res, err := svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateUnavailable {
			t.Fatalf("expected unavailable, got %s", res.State)
		}
		if !res.OpenAt.Equal(testNow) || !res.CloseAt.Equal(testNow.Add(time.Hour)) {
			t.Fatalf("expected window in result, got %v-%v", res.OpenAt, res.CloseAt)
		}
		if len(w.views.views) != 0 {
			t.Fatalf("expected no view to be recorded")
		}

		res, err = svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateLobby {
			t.Fatalf("expected manager to reach the lobby, got %s", res.State)
		}
	})

	t.Run("reusable activity ignores window", func(t *testing.T) {
		activity := testActivity("a1")
		activity.Reusable = true
		activity.OpenAt = time.Time{}
		activity.CloseAt = time.Time{}
		w := newMeetingWorld(GroupModeNone, activity)
		w.capabilities.grant(20, CapabilityView)
		w.clock.now = testNow.Add(365 * 24 * time.Hour)

		res, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateLobby {
			t.Fatalf("expected lobby, got %s", res.State)
		}
	})

	t.Run("group picker lists organisers", func(t *testing.T) {
		w := newMeetingWorld(GroupModeVisible, testActivity("a1"))
		w.groups.addGroup(5, "Alpha", 20).addGroup(6, "Beta", 21)
		w.capabilities.grant(20, CapabilityView)
		w.users.add(11, true)
		w.meetings = newMemMeetings(MeetingRecord{ID: "m6", ActivityID: "a1", GroupID: 6, OrganiserID: 11})

		res, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateGroupUndetermined {
			t.Fatalf("expected group selection, got %s", res.State)
		}
		if len(res.Groups) != 2 {
			t.Fatalf("expected two options, got %+v", res.Groups)
		}
		if !res.Groups[0].Member || res.Groups[0].Group.ID != 5 || res.Groups[0].OrganiserID != 0 {
			t.Fatalf("unexpected first option %+v", res.Groups[0])
		}
		if res.Groups[1].Member || res.Groups[1].OrganiserName != "User 11" {
			t.Fatalf("unexpected second option %+v", res.Groups[1])
		}
		if len(w.views.views) != 0 {
			t.Fatalf("expected no view before group resolution")
		}
	})

	t.Run("forced group without access is fatal", func(t *testing.T) {
		activity := testActivity("a1")
		activity.GroupID = 6
		w := newMeetingWorld(GroupModeSeparate, activity)
		w.groups.addGroup(5, "Alpha", 20).addGroup(6, "Beta", 21)
		w.capabilities.grant(20, CapabilityView)

		_, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if !errors.Is(err, ErrGroupAccessDenied) {
			t.Fatalf("expected ErrGroupAccessDenied, got %v", err)
		}
	})

	t.Run("student waits in lobby without creating anything", func(t *testing.T) {
		w := newMeetingWorld(GroupModeSeparate, testActivity("a1"))
		w.groups.addGroup(5, "Alpha", 20)
		w.capabilities.grant(20, CapabilityView)

		res, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateLobby || res.GroupID != 5 || res.CanNominate {
			t.Fatalf("unexpected resolution %+v", res)
		}
		if w.meetings.writes != 0 {
			t.Fatalf("expected no record to be written, got %d writes", w.meetings.writes)
		}
		if len(w.views.views) != 1 || w.views.views[0] != 5 {
			t.Fatalf("expected one view for group 5, got %v", w.views.views)
		}
	})

	t.Run("student does not retry a failed creation", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView)
		w.users.add(10, true)
		w.meetings = newMemMeetings(MeetingRecord{ID: "m1", ActivityID: "a1", OrganiserID: 10})

		res, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateLobby {
			t.Fatalf("expected lobby, got %s", res.State)
		}
		if len(w.provider.created) != 0 {
			t.Fatalf("expected no provider call")
		}
	})

	t.Run("presenter retries a failed creation", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(11, CapabilityView, CapabilityPresent)
		w.users.add(10, true).add(11, true)
		w.meetings = newMemMeetings(MeetingRecord{ID: "m1", ActivityID: "a1", OrganiserID: 10})

		res, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 11})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateReady || res.JoinURL == "" {
			t.Fatalf("expected ready, got %+v", res)
		}
		if len(w.provider.created) != 1 || w.provider.created[0].Organiser.UserID != 10 {
			t.Fatalf("expected meeting created for organiser 10, got %+v", w.provider.created)
		}
	})

	t.Run("default organiser is assigned", func(t *testing.T) {
		activity := testActivity("a1")
		activity.DefaultOrganiserID = 10
		w := newMeetingWorld(GroupModeNone, activity)
		w.capabilities.grant(20, CapabilityView).grant(10, CapabilityView, CapabilityPresent)
		w.users.add(10, true)
		svc := w.service(MeetingOptions{})

		res, err := svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateLobby {
			t.Fatalf("expected lobby for student, got %s", res.State)
		}
		record, ok := w.meetings.get("a1", 0)
		if !ok || record.OrganiserID != 10 {
			t.Fatalf("expected persisted default organiser, got %+v", record)
		}

		res, err = svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateReady {
			t.Fatalf("expected ready for organiser, got %s", res.State)
		}
	})

	t.Run("default organiser busy in another group is not assigned", func(t *testing.T) {
		activity := testActivity("a1")
		activity.GroupID = 6
		activity.DefaultOrganiserID = 10
		w := newMeetingWorld(GroupModeSeparate, activity)
		w.groups.addGroup(5, "Alpha", 10, 20).addGroup(6, "Beta", 11, 21)
		w.capabilities.grant(21, CapabilityView).
			grant(11, CapabilityView, CapabilityPresent).
			grant(10, CapabilityView, CapabilityPresent, CapabilityAccessAllGroups)
		w.users.add(10, true).add(11, true)
		w.meetings = newMemMeetings(MeetingRecord{ID: "m5", ActivityID: "a1", GroupID: 5, OrganiserID: 10, ProviderMeetingID: "remote-5", JoinURL: "https://join/5", LastSync: testNow})
		svc := w.service(MeetingOptions{})

		res, err := svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 21})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateLobby || res.GroupID != 6 {
			t.Fatalf("expected lobby for group 6, got %+v", res)
		}
		if record, ok := w.meetings.get("a1", 6); ok && record.OrganiserID != 0 {
			t.Fatalf("expected group 6 to stay without organiser, got %+v", record)
		}

		res, err = svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 11})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateLobby || !res.CanNominate {
			t.Fatalf("expected co-teacher to be offered nomination, got %+v", res)
		}

		joinURL, err := svc.NominateOrganiser(ctx, "a1", 11, 6)
		if err != nil {
			t.Fatalf("unexpected nomination error: %v", err)
		}
		if joinURL == "" {
			t.Fatalf("expected join url after nomination")
		}
	})

	t.Run("default organiser loses the claim race", func(t *testing.T) {
		activity := testActivity("a1")
		activity.DefaultOrganiserID = 10
		w := newMeetingWorld(GroupModeNone, activity)
		w.capabilities.grant(20, CapabilityView)
		w.users.add(10, true).add(11, true)
		w.meetings.beforeClaim = func(records map[meetingKey]MeetingRecord) {
			records[meetingKey{"a1", 0}] = MeetingRecord{ID: "m-other", ActivityID: "a1", OrganiserID: 11}
		}

		res, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateLobby || res.Meeting.OrganiserID != 11 {
			t.Fatalf("expected lobby with the winning organiser, got %+v", res)
		}
	})

	// Redirect when requested and (the course has a landing page or the
	// actor cannot manage).
	t.Run("redirect decision", func(t *testing.T) {
		ready := MeetingRecord{ID: "m1", ActivityID: "a1", OrganiserID: 10, ProviderMeetingID: "remote-1", JoinURL: "https://join", LastSync: testNow}
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView).grant(1, CapabilityView, CapabilityManage)
		w.meetings = newMemMeetings(ready)
		svc := w.service(MeetingOptions{})

		res, err := svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20, Redirect: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Redirect || res.JoinURL != "https://join" {
			t.Fatalf("expected student redirect, got %+v", res)
		}

		res, err = svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 1, Redirect: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Redirect {
			t.Fatalf("expected manager redirect when the course has its own page")
		}

		w.courses.courses[2] = Course{ID: 2, ShortName: "CS101"}
		res, err = svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 1, Redirect: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Redirect {
			t.Fatalf("expected manager to stay on the intermediate page without a course page")
		}

		res, err = svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Redirect {
			t.Fatalf("expected no redirect when not requested")
		}
	})
}

func TestMeetingServiceNominateThenReady(t *testing.T) {
	ctx := context.Background()
	w := newMeetingWorld(GroupModeNone, testActivity("a1"))
	w.capabilities.grant(10, CapabilityView, CapabilityPresent)
	w.users.add(10, true).add(20, true)
	w.groups.students = []int64{20}
	svc := w.service(MeetingOptions{PrefixSubject: true})

	res, err := svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != StateLobby || !res.CanNominate {
		t.Fatalf("expected lobby with nomination, got %+v", res)
	}

	joinURL, err := svc.NominateOrganiser(ctx, "a1", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if joinURL == "" {
		t.Fatalf("expected join url")
	}

	record, ok := w.meetings.get("a1", 0)
	if !ok || record.OrganiserID != 10 || record.JoinURL != joinURL || !record.LastSync.Equal(testNow) {
		t.Fatalf("unexpected stored record %+v", record)
	}

	if len(w.provider.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(w.provider.created))
	}
	req := w.provider.created[0]
	if req.Subject != "[CS101] Weekly sync" {
		t.Fatalf("unexpected subject %q", req.Subject)
	}
	if req.Organiser.Role != RoleOrganizer || req.Organiser.ObjectID != "obj-10" {
		t.Fatalf("unexpected organiser %+v", req.Organiser)
	}
	if !req.Start.Equal(testNow) || req.Start.Location() != time.UTC || !req.End.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("unexpected window %v-%v", req.Start, req.End)
	}
	if req.AllowedPresenters != "roleIsPresenter" || req.ChatMode != ChatModeAlways {
		t.Fatalf("unexpected meeting options %+v", req)
	}
	if ids := participantIDs(req.Participants); len(ids) != 1 || ids[0] != 20 {
		t.Fatalf("expected student 20 as attendee, got %v", ids)
	}

	if len(w.notifier.notices) != 1 || w.notifier.notices[0].JoinURL != joinURL || w.notifier.notices[0].CourseName != "Computing" {
		t.Fatalf("expected notification, got %+v", w.notifier.notices)
	}

	res, err = svc.Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != StateReady || res.JoinURL != joinURL {
		t.Fatalf("expected ready with join url, got %+v", res)
	}
}

func TestMeetingServiceNominateOrganiser(t *testing.T) {
	ctx := context.Background()

	newWorld := func() *meetingWorld {
		w := newMeetingWorld(GroupModeSeparate, testActivity("a1"))
		w.groups.addGroup(5, "Alpha", 10, 11, 20).addGroup(6, "Beta", 21)
		w.capabilities.
			grant(10, CapabilityView, CapabilityPresent, CapabilityAccessAllGroups).
			grant(11, CapabilityView, CapabilityPresent).
			grant(20, CapabilityView)
		w.users.add(10, true).add(11, true).add(20, true).add(21, true)
		w.groups.students = []int64{20, 21}
		return w
	}

	t.Run("second organiser for same group", func(t *testing.T) {
		w := newWorld()
		svc := w.service(MeetingOptions{})
		if _, err := svc.NominateOrganiser(ctx, "a1", 10, 5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := svc.NominateOrganiser(ctx, "a1", 11, 5)
		if !errors.Is(err, ErrAlreadyOrganiser) {
			t.Fatalf("expected ErrAlreadyOrganiser, got %v", err)
		}
	})

	t.Run("organiser of another group", func(t *testing.T) {
		w := newWorld()
		svc := w.service(MeetingOptions{})
		if _, err := svc.NominateOrganiser(ctx, "a1", 10, 5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := svc.NominateOrganiser(ctx, "a1", 10, 6)
		if !errors.Is(err, ErrAlreadyOrganiserElsewhere) {
			t.Fatalf("expected ErrAlreadyOrganiserElsewhere, got %v", err)
		}
		if _, ok := w.meetings.get("a1", 6); ok {
			t.Fatalf("expected no record for group 6")
		}
	})

	t.Run("student cannot nominate", func(t *testing.T) {
		w := newWorld()
		_, err := w.service(MeetingOptions{}).NominateOrganiser(ctx, "a1", 20, 5)
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("foreign group", func(t *testing.T) {
		w := newWorld()
		_, err := w.service(MeetingOptions{}).NominateOrganiser(ctx, "a1", 11, 6)
		if !errors.Is(err, ErrGroupAccessDenied) {
			t.Fatalf("expected ErrGroupAccessDenied, got %v", err)
		}
	})

	t.Run("unlinked presenter", func(t *testing.T) {
		w := newWorld()
		w.users.add(11, false)
		_, err := w.service(MeetingOptions{}).NominateOrganiser(ctx, "a1", 11, 5)
		if !errors.Is(err, ErrIdentityNotLinked) {
			t.Fatalf("expected ErrIdentityNotLinked, got %v", err)
		}
	})

	t.Run("provider failure keeps organiser", func(t *testing.T) {
		w := newWorld()
		w.provider.createErr = errors.New("graph unavailable")
		_, err := w.service(MeetingOptions{}).NominateOrganiser(ctx, "a1", 10, 5)
		var pErr *ProviderError
		if !errors.As(err, &pErr) || pErr.Op != "create" {
			t.Fatalf("expected create ProviderError, got %v", err)
		}
		record, ok := w.meetings.get("a1", 5)
		if !ok || record.OrganiserID != 10 || record.HasMeeting() {
			t.Fatalf("expected organiser without meeting, got %+v", record)
		}
	})
}

func TestMeetingServiceResync(t *testing.T) {
	ctx := context.Background()
	stale := MeetingRecord{
		ID:                "m1",
		ActivityID:        "a1",
		OrganiserID:       10,
		ProviderMeetingID: "remote-1",
		JoinURL:           "https://join",
		LastSync:          testNow.Add(-400 * time.Second),
	}

	t.Run("pushes attendees when stale", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView)
		w.users.add(10, true).add(20, true)
		w.groups.students = []int64{20}
		w.meetings = newMemMeetings(stale)

		res, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != StateReady {
			t.Fatalf("expected ready, got %s", res.State)
		}
		if len(w.provider.attendees) != 1 || w.provider.attendees[0].meetingID != "remote-1" {
			t.Fatalf("expected one attendee push, got %+v", w.provider.attendees)
		}
		record, _ := w.meetings.get("a1", 0)
		if !record.LastSync.Equal(testNow) {
			t.Fatalf("expected last sync to advance, got %v", record.LastSync)
		}
	})

	t.Run("recent sync is left alone", func(t *testing.T) {
		fresh := stale
		fresh.LastSync = testNow.Add(-time.Minute)
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView)
		w.meetings = newMemMeetings(fresh)

		if _, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(w.provider.attendees) != 0 {
			t.Fatalf("expected no attendee push")
		}
	})

	t.Run("failure restores last sync", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView)
		w.users.add(10, true).add(20, true)
		w.groups.students = []int64{20}
		w.meetings = newMemMeetings(stale)
		w.provider.attendeeErr = errors.New("throttled")

		_, err := w.service(MeetingOptions{}).Resolve(ctx, ResolveParams{ActivityID: "a1", ActorID: 20})
		var pErr *ProviderError
		if !errors.As(err, &pErr) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		record, _ := w.meetings.get("a1", 0)
		if !record.LastSync.Equal(stale.LastSync) {
			t.Fatalf("expected last sync %v to be restored, got %v", stale.LastSync, record.LastSync)
		}
	})
}

func TestMeetingServiceIsReady(t *testing.T) {
	ctx := context.Background()
	ready := MeetingRecord{ID: "m1", ActivityID: "a1", OrganiserID: 10, ProviderMeetingID: "remote-1", JoinURL: "https://join", LastSync: testNow.Add(-time.Hour)}

	t.Run("does not write", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView)
		svc := w.service(MeetingOptions{})

		for i := 0; i < 3; i++ {
			status, err := svc.IsReady(ctx, "a1", 20, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status.Ready {
				t.Fatalf("expected not ready")
			}
		}
		if w.meetings.writes != 0 {
			t.Fatalf("expected no writes, got %d", w.meetings.writes)
		}
		if _, ok := w.meetings.get("a1", 0); ok {
			t.Fatalf("expected no record to be created")
		}
	})

	t.Run("reports join url without resync", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView)
		w.meetings = newMemMeetings(ready)
		svc := w.service(MeetingOptions{})

		status, err := svc.IsReady(ctx, "a1", 20, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !status.Ready || status.JoinURL != "https://join" {
			t.Fatalf("unexpected status %+v", status)
		}
		record, _ := w.meetings.get("a1", 0)
		if !record.LastSync.Equal(ready.LastSync) || w.meetings.writes != 0 || len(w.provider.attendees) != 0 {
			t.Fatalf("expected poll to be read only")
		}
	})

	t.Run("closed window hides url from students", func(t *testing.T) {
		w := newMeetingWorld(GroupModeNone, testActivity("a1"))
		w.capabilities.grant(20, CapabilityView)
		w.meetings = newMemMeetings(ready)
		w.clock.now = testNow.Add(2 * time.Hour)

		status, err := w.service(MeetingOptions{}).IsReady(ctx, "a1", 20, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Ready {
			t.Fatalf("expected not ready outside window")
		}
	})

	t.Run("group access is checked", func(t *testing.T) {
		w := newMeetingWorld(GroupModeSeparate, testActivity("a1"))
		w.groups.addGroup(5, "Alpha", 20).addGroup(6, "Beta", 21)
		w.capabilities.grant(20, CapabilityView)

		_, err := w.service(MeetingOptions{}).IsReady(ctx, "a1", 20, 6)
		if !errors.Is(err, ErrGroupAccessDenied) {
			t.Fatalf("expected ErrGroupAccessDenied, got %v", err)
		}
	})
}

func TestMeetingServiceDescribeActivity(t *testing.T) {
	ctx := context.Background()
	activity := testActivity("a1")
	activity.GroupID = 5
	w := newMeetingWorld(GroupModeSeparate, activity)
	w.groups.addGroup(5, "Alpha", 10)
	w.users.add(10, true)
	w.meetings = newMemMeetings(MeetingRecord{ID: "m1", ActivityID: "a1", GroupID: 5, OrganiserID: 10, ProviderMeetingID: "remote-1", JoinURL: "https://join"})

	report, err := w.service(MeetingOptions{}).DescribeActivity(ctx, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ForcedGroup == nil || report.ForcedGroup.Name != "Alpha" {
		t.Fatalf("expected forced group Alpha, got %+v", report.ForcedGroup)
	}
	if len(report.Meetings) != 1 {
		t.Fatalf("expected one meeting, got %d", len(report.Meetings))
	}
	detail := report.Meetings[0]
	if detail.OrganiserName != "User 10" || detail.Remote == nil || detail.Remote.OrganizerUPN != "user10@example.com" {
		t.Fatalf("unexpected detail %+v", detail)
	}

	w.provider.getErr = errors.New("gone")
	report, err = w.service(MeetingOptions{}).DescribeActivity(ctx, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Meetings[0].RemoteError == nil {
		t.Fatalf("expected remote error to be reported per meeting")
	}
}

func TestMeetingServiceDescribeActivityForRequiresManage(t *testing.T) {
	ctx := context.Background()
	w := newMeetingWorld(GroupModeNone, testActivity("a1"))
	w.capabilities.grant(20, CapabilityView).grant(1, CapabilityManage)
	svc := w.service(MeetingOptions{})

	if _, err := svc.DescribeActivityFor(ctx, 20, "a1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	report, err := svc.DescribeActivityFor(ctx, 1, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Activity.ID != "a1" || len(report.Meetings) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}
