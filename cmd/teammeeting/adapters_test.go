package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/teammeeting/internal/application"
	"github.com/example/teammeeting/internal/testfixtures"
)

func TestDirectoryAdapterCapabilities(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLHarness(t)
	directory := newDirectoryAdapter(harness.Store)
	activity := testfixtures.NewActivityFixture().Application()
	ctx := context.Background()

	tests := []struct {
		userID     int64
		capability application.Capability
		expected   bool
	}{
		{testfixtures.ManagerID, application.CapabilityManage, true},
		{testfixtures.ManagerID, application.CapabilityAccessAllGroups, true},
		{testfixtures.TeacherID, application.CapabilityManage, true},
		{testfixtures.CoTeacherID, application.CapabilityPresent, true},
		{testfixtures.CoTeacherID, application.CapabilityManage, false},
		{testfixtures.CoTeacherID, application.CapabilityAccessAllGroups, false},
		{testfixtures.StudentID, application.CapabilityView, true},
		{testfixtures.StudentID, application.CapabilityPresent, false},
		{999, application.CapabilityView, false},
	}
	for _, tc := range tests {
		ok, err := directory.HasCapability(ctx, activity, tc.userID, tc.capability)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, ok, "user %d capability %s", tc.userID, tc.capability)
	}

	presenters, err := directory.UsersWithCapability(ctx, activity, application.CapabilityPresent, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{testfixtures.ManagerID, testfixtures.TeacherID, testfixtures.CoTeacherID}, presenters)

	inBeta, err := directory.UsersWithCapability(ctx, activity, application.CapabilityPresent, testfixtures.BetaGroupID)
	require.NoError(t, err)
	assert.Equal(t, []int64{testfixtures.CoTeacherID}, inBeta)

	students, err := directory.Students(ctx, activity, testfixtures.AlphaGroupID)
	require.NoError(t, err)
	assert.Equal(t, []int64{testfixtures.StudentID, testfixtures.UnlinkedUserID}, students)
}

func TestDirectoryAdapterGroups(t *testing.T) {
	t.Parallel()

	forced := int(application.GroupModeVisible)
	seed := testfixtures.DefaultSeed()
	seed.Courses[0].ForcedGroupMode = &forced
	harness := testfixtures.NewSQLHarnessWithSeed(t, seed)
	directory := newDirectoryAdapter(harness.Store)
	ctx := context.Background()

	activity := testfixtures.NewActivityFixture(testfixtures.WithGroupMode(application.GroupModeNone)).Application()
	mode, err := directory.GroupMode(ctx, activity)
	require.NoError(t, err)
	assert.Equal(t, application.GroupModeVisible, mode)

	all, err := directory.AllGroups(ctx, activity)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	grouped := testfixtures.NewActivityFixture(testfixtures.WithGrouping(testfixtures.AlphaGroupingID)).Application()
	inGrouping, err := directory.AllGroups(ctx, grouped)
	require.NoError(t, err)
	require.Len(t, inGrouping, 1)
	assert.Equal(t, "Alpha", inGrouping[0].Name)

	own, err := directory.GroupsOf(ctx, activity, testfixtures.OtherStudentID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, testfixtures.BetaGroupID, own[0].ID)

	profile, err := directory.Profile(ctx, testfixtures.UnlinkedUserID)
	require.NoError(t, err)
	assert.False(t, profile.Linked())
}

func TestMeetingStoreAdapter(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLHarness(t)
	fixture := testfixtures.NewActivityFixture()
	harness.CreateActivity(t, fixture)
	store := newMeetingStoreAdapter(harness.Store)
	ctx := context.Background()

	_, found, err := store.GetMeeting(ctx, fixture.ID, testfixtures.AlphaGroupID)
	require.NoError(t, err)
	assert.False(t, found)

	claimed, err := store.ClaimOrganiser(ctx, application.MeetingRecord{
		ID:          "m-1",
		ActivityID:  fixture.ID,
		GroupID:     testfixtures.AlphaGroupID,
		OrganiserID: testfixtures.TeacherID,
	})
	require.NoError(t, err)
	assert.True(t, claimed.LastSync.IsZero())

	synced := testfixtures.ReferenceTime()
	claimed.ProviderMeetingID = "remote-1"
	claimed.JoinURL = testfixtures.JoinURL("remote-1")
	claimed.LastSync = synced
	_, err = store.UpdateMeeting(ctx, claimed)
	require.NoError(t, err)

	got, found, err := store.FindOrganisedMeeting(ctx, fixture.ID, testfixtures.TeacherID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Ready())
	assert.True(t, synced.Equal(got.LastSync))

	stale, err := store.ListStaleMeetings(ctx, synced.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	stale, err = store.ListStaleMeetings(ctx, synced.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	_, found, err = store.FindOrganisedMeeting(ctx, fixture.ID, testfixtures.StudentID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUnixConversion(t *testing.T) {
	t.Parallel()

	assert.Zero(t, toUnix(time.Time{}))
	assert.True(t, fromUnix(0).IsZero())

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, at, fromUnix(toUnix(at)))
}
