package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/teammeeting/internal/persistence"
)

// DefaultResyncAfter is the minimum age of an attendee list before it is pushed again.
const DefaultResyncAfter = 5 * time.Minute

// ResolutionState is the caller facing outcome of Resolve.
type ResolutionState string

const (
	StateGroupUndetermined ResolutionState = "select_group"
	StateUnavailable       ResolutionState = "unavailable"
	StateLobby             ResolutionState = "lobby"
	StateReady             ResolutionState = "ready"
)

// ResolveParams identifies the activity, the actor and the optional requested group.
type ResolveParams struct {
	ActivityID string
	ActorID    int64
	GroupID    *int64
	Redirect   bool
}

// GroupOption is an entry of the group picker.
type GroupOption struct {
	Group         Group
	Member        bool
	OrganiserID   int64
	OrganiserName string
}

// Resolution describes what the caller must show or do next.
type Resolution struct {
	State       ResolutionState
	Activity    Activity
	GroupID     int64
	Groups      []GroupOption
	OpenAt      time.Time
	CloseAt     time.Time
	CanNominate bool
	Meeting     MeetingRecord
	JoinURL     string
	Redirect    bool
}

// ReadyStatus is the answer of the lightweight ready poll.
type ReadyStatus struct {
	Ready   bool
	JoinURL string
}

// MeetingOptions tunes the behaviour of the meeting service.
type MeetingOptions struct {
	PrefixSubject bool
	ResyncAfter   time.Duration
}

// MeetingServiceDeps groups the collaborators of the meeting service.
type MeetingServiceDeps struct {
	Activities   ActivityRepository
	Meetings     MeetingRecordStore
	Courses      CourseCatalog
	Users        UserDirectory
	Capabilities CapabilityOracle
	Groups       GroupDirectory
	Provider     MeetingProvider
	Views        ViewRecorder
	Notifier     Notifier
}

// MeetingService resolves meetings, assigns organisers and keeps remote
// attendee lists current.
type MeetingService struct {
	activities   ActivityRepository
	meetings     MeetingRecordStore
	courses      CourseCatalog
	users        UserDirectory
	capabilities CapabilityOracle
	groups       GroupDirectory
	provider     MeetingProvider
	views        ViewRecorder
	notifier     Notifier
	resolver     GroupResolver
	attendees    AttendeeListBuilder
	options      MeetingOptions
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewMeetingService constructs a meeting service with the provided dependencies.
func NewMeetingService(deps MeetingServiceDeps, options MeetingOptions, idGenerator func() string, now func() time.Time) *MeetingService {
	return NewMeetingServiceWithLogger(deps, options, idGenerator, now, nil)
}

// NewMeetingServiceWithLogger constructs a meeting service with a specified logger.
func NewMeetingServiceWithLogger(deps MeetingServiceDeps, options MeetingOptions, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MeetingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if options.ResyncAfter <= 0 {
		options.ResyncAfter = DefaultResyncAfter
	}
	return &MeetingService{
		activities:   deps.Activities,
		meetings:     deps.Meetings,
		courses:      deps.Courses,
		users:        deps.Users,
		capabilities: deps.Capabilities,
		groups:       deps.Groups,
		provider:     deps.Provider,
		views:        deps.Views,
		notifier:     deps.Notifier,
		resolver:     NewGroupResolver(deps.Groups, deps.Capabilities),
		attendees:    NewAttendeeListBuilder(deps.Capabilities, deps.Groups, deps.Users),
		options:      options,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MeetingService", operation, attrs...)
}

// Resolve runs the per request lifecycle: permission and availability
// checks, group resolution, view recording, fetch-or-create of the meeting,
// the periodic attendee re-sync and the redirect decision.
func (s *MeetingService) Resolve(ctx context.Context, params ResolveParams) (res Resolution, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Resolve",
		"activity_id", params.ActivityID,
		"actor_id", params.ActorID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to resolve meeting", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "meeting resolved", "state", res.State, "group_id", res.GroupID)
	}()

	var activity Activity
	activity, err = s.loadActivity(ctx, params.ActivityID)
	if err != nil {
		return
	}
	res.Activity = activity

	if !s.providerAvailable() {
		err = ErrNotConfigured
		return
	}

	if err = s.require(ctx, activity, params.ActorID, CapabilityView); err != nil {
		return
	}

	var canManage bool
	canManage, err = s.capabilities.HasCapability(ctx, activity, params.ActorID, CapabilityManage)
	if err != nil {
		return
	}

	if activity.TimeBoxed() && !activity.WithinWindow(s.now()) && !canManage {
		res.State = StateUnavailable
		res.OpenAt = activity.OpenAt
		res.CloseAt = activity.CloseAt
		return
	}

	var resolution GroupResolution
	resolution, err = s.resolver.Resolve(ctx, activity, params.ActorID, params.GroupID)
	if err != nil {
		return
	}
	if !resolution.Determined {
		res.State = StateGroupUndetermined
		res.Groups, err = s.groupOptions(ctx, activity, params.ActorID)
		return
	}
	res.GroupID = resolution.GroupID

	if s.views != nil {
		if err = s.views.RecordView(ctx, activity, params.ActorID, res.GroupID); err != nil {
			err = fmt.Errorf("record view: %w", err)
			return
		}
	}

	var canPresent bool
	canPresent, err = s.canPresentInGroup(ctx, activity, params.ActorID, res.GroupID)
	if err != nil {
		return
	}

	var record MeetingRecord
	record, err = s.fetchOrCreate(ctx, activity, res.GroupID, canManage || canPresent)
	res.Meeting = record
	if err != nil {
		return
	}

	if !record.Ready() {
		res.State = StateLobby
		res.CanNominate = canPresent
		return
	}

	if s.now().Sub(record.LastSync) > s.options.ResyncAfter {
		record, err = s.refreshAttendees(ctx, activity, record)
		res.Meeting = record
		if err != nil {
			return
		}
	}

	res.State = StateReady
	res.JoinURL = record.JoinURL

	if params.Redirect {
		var course Course
		course, err = s.courses.Course(ctx, activity.CourseID)
		if err != nil {
			err = mapDirectoryError(err)
			return
		}
		// Managers stay on the intermediate page only when the course has
		// no page of its own to return to.
		res.Redirect = course.HasLandingPage || !canManage
	}
	return
}

// NominateOrganiser makes the actor the organiser of the group's meeting and
// creates the remote meeting straight away.
func (s *MeetingService) NominateOrganiser(ctx context.Context, activityID string, actorID, groupID int64) (joinURL string, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "NominateOrganiser",
		"activity_id", activityID,
		"actor_id", actorID,
		"group_id", groupID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to nominate organiser", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "organiser nominated")
	}()

	var activity Activity
	activity, err = s.loadActivity(ctx, activityID)
	if err != nil {
		return
	}
	if !s.providerAvailable() {
		err = ErrNotConfigured
		return
	}

	var canPresent, canManage bool
	if canPresent, err = s.capabilities.HasCapability(ctx, activity, actorID, CapabilityPresent); err != nil {
		return
	}
	if canManage, err = s.capabilities.HasCapability(ctx, activity, actorID, CapabilityManage); err != nil {
		return
	}
	if !canPresent && !canManage {
		err = ErrPermissionDenied
		return
	}

	var ok bool
	ok, err = s.resolver.CanAccessGroup(ctx, activity, actorID, groupID)
	if err != nil {
		return
	}
	if !ok {
		err = ErrGroupAccessDenied
		return
	}

	var profile UserProfile
	profile, err = s.users.Profile(ctx, actorID)
	if err != nil {
		err = mapDirectoryError(err)
		return
	}
	if !profile.Linked() {
		err = ErrIdentityNotLinked
		return
	}

	var record MeetingRecord
	record, err = s.loadMeeting(ctx, activity.ID, groupID)
	if err != nil {
		return
	}
	if record.HasOrganiser() {
		err = ErrAlreadyOrganiser
		return
	}

	var elsewhere MeetingRecord
	var found bool
	elsewhere, found, err = s.meetings.FindOrganisedMeeting(ctx, activity.ID, actorID)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	if found && elsewhere.GroupID != groupID {
		err = ErrAlreadyOrganiserElsewhere
		return
	}

	claim := record
	claim.OrganiserID = actorID
	claim.ProviderMeetingID = ""
	claim.JoinURL = ""
	claim.LastSync = time.Time{}
	if !claim.Persisted() {
		claim.ID = s.idGenerator()
	}
	record, err = s.meetings.ClaimOrganiser(ctx, claim)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = ErrAlreadyOrganiserElsewhere
			return
		}
		err = mapMeetingRepoError(err)
		return
	}

	record, err = s.createOnlineMeeting(ctx, activity, record)
	if err != nil {
		return
	}
	joinURL = record.JoinURL
	return
}

// IsReady reports whether the meeting of a group can be joined. It never
// writes: no record is created and no re-sync happens.
func (s *MeetingService) IsReady(ctx context.Context, activityID string, actorID, groupID int64) (status ReadyStatus, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	var activity Activity
	activity, err = s.loadActivity(ctx, activityID)
	if err != nil {
		return
	}
	if err = s.require(ctx, activity, actorID, CapabilityView); err != nil {
		return
	}

	var ok bool
	ok, err = s.resolver.CanAccessGroup(ctx, activity, actorID, groupID)
	if err != nil {
		return
	}
	if !ok {
		err = ErrGroupAccessDenied
		return
	}

	var record MeetingRecord
	record, err = s.loadMeeting(ctx, activity.ID, groupID)
	if err != nil {
		return
	}
	if !record.Ready() {
		return
	}

	if activity.TimeBoxed() && !activity.WithinWindow(s.now()) {
		var canManage bool
		canManage, err = s.capabilities.HasCapability(ctx, activity, actorID, CapabilityManage)
		if err != nil {
			return
		}
		if !canManage {
			return
		}
	}

	status.Ready = true
	status.JoinURL = record.JoinURL
	return
}

func (s *MeetingService) fetchOrCreate(ctx context.Context, activity Activity, groupID int64, mayCreate bool) (MeetingRecord, error) {
	record, err := s.loadMeeting(ctx, activity.ID, groupID)
	if err != nil {
		return record, err
	}

	if !record.HasOrganiser() {
		if record, err = s.assignDefaultOrganiser(ctx, activity, record); err != nil {
			return record, err
		}
	}

	if record.HasOrganiser() && record.JoinURL == "" && mayCreate {
		return s.createOnlineMeeting(ctx, activity, record)
	}
	return record, nil
}

// assignDefaultOrganiser claims the record for the default organiser. The
// claim is skipped when that user already organises another group, and a
// lost race leaves the record as another writer stored it.
func (s *MeetingService) assignDefaultOrganiser(ctx context.Context, activity Activity, record MeetingRecord) (MeetingRecord, error) {
	organiserID, err := s.defaultOrganiser(ctx, activity, record.GroupID)
	if err != nil || organiserID == 0 {
		return record, err
	}

	elsewhere, found, err := s.meetings.FindOrganisedMeeting(ctx, activity.ID, organiserID)
	if err != nil {
		return record, mapMeetingRepoError(err)
	}
	if found && elsewhere.GroupID != record.GroupID {
		s.loggerWith(ctx, "assignDefaultOrganiser",
			"activity_id", activity.ID,
			"group_id", record.GroupID,
			"organiser_id", organiserID,
			"organised_group_id", elsewhere.GroupID,
		).InfoContext(ctx, "default organiser already organises another group")
		return record, nil
	}

	claim := record
	claim.OrganiserID = organiserID
	if !claim.Persisted() {
		claim.ID = s.idGenerator()
	}
	claimed, err := s.meetings.ClaimOrganiser(ctx, claim)
	if err == nil {
		return claimed, nil
	}
	if errors.Is(err, persistence.ErrConflict) || errors.Is(err, persistence.ErrDuplicate) {
		return s.loadMeeting(ctx, activity.ID, record.GroupID)
	}
	return record, mapMeetingRepoError(err)
}

// defaultOrganiser returns the configured organiser when the activity is
// ungrouped or forced to the requested group.
func (s *MeetingService) defaultOrganiser(ctx context.Context, activity Activity, groupID int64) (int64, error) {
	if activity.DefaultOrganiserID == 0 {
		return 0, nil
	}
	if activity.GroupID != 0 {
		if activity.GroupID == groupID {
			return activity.DefaultOrganiserID, nil
		}
		return 0, nil
	}
	mode, err := s.groups.GroupMode(ctx, activity)
	if err != nil {
		return 0, fmt.Errorf("resolve group mode: %w", err)
	}
	if mode == GroupModeNone && groupID == 0 {
		return activity.DefaultOrganiserID, nil
	}
	return 0, nil
}

// createOnlineMeeting creates the remote meeting for a record that has an
// organiser and no meeting yet, then persists the meeting id and join URL.
func (s *MeetingService) createOnlineMeeting(ctx context.Context, activity Activity, record MeetingRecord) (MeetingRecord, error) {
	if record.HasMeeting() {
		return record, ErrMeetingAlreadyCreated
	}
	if !record.HasOrganiser() {
		return record, ErrOrganiserMissing
	}
	if !s.providerAvailable() {
		return record, ErrNotConfigured
	}

	organiser, err := s.users.Profile(ctx, record.OrganiserID)
	if err != nil {
		return record, mapDirectoryError(err)
	}
	if !organiser.Linked() {
		return record, ErrIdentityNotLinked
	}

	participants, err := s.attendees.Build(ctx, activity, record.OrganiserID, record.GroupID)
	if err != nil {
		return record, err
	}

	req, err := s.meetingRequest(ctx, activity, organiser, participants)
	if err != nil {
		return record, err
	}

	remote, err := s.provider.CreateMeeting(ctx, req)
	if err != nil {
		return record, providerError("create", err)
	}

	record.ProviderMeetingID = remote.ID
	record.JoinURL = remote.JoinURL
	record.LastSync = s.now()
	record, err = s.saveMeeting(ctx, record)
	if err != nil {
		return record, err
	}

	s.loggerWith(ctx, "createOnlineMeeting",
		"activity_id", activity.ID,
		"group_id", record.GroupID,
		"organiser_id", record.OrganiserID,
	).InfoContext(ctx, "online meeting created", "provider_meeting_id", record.ProviderMeetingID)

	s.notifyCreated(ctx, activity, organiser, record)
	return record, nil
}

func (s *MeetingService) meetingRequest(ctx context.Context, activity Activity, organiser UserProfile, participants []Participant) (MeetingRequest, error) {
	subject, err := s.subject(ctx, activity)
	if err != nil {
		return MeetingRequest{}, err
	}

	req := MeetingRequest{
		Organiser:         participantFor(organiser, RoleOrganizer),
		Participants:      participants,
		Subject:           subject,
		AllowedPresenters: allowedPresenters(activity.AttendeeRole),
		ChatMode:          activity.ChatMode,
	}
	if activity.TimeBoxed() {
		req.Start = activity.OpenAt.UTC()
		req.End = activity.CloseAt.UTC()
	}
	return req, nil
}

func (s *MeetingService) subject(ctx context.Context, activity Activity) (string, error) {
	if !s.options.PrefixSubject || s.courses == nil {
		return activity.Name, nil
	}
	course, err := s.courses.Course(ctx, activity.CourseID)
	if err != nil {
		return "", mapDirectoryError(err)
	}
	return "[" + course.ShortName + "] " + activity.Name, nil
}

func allowedPresenters(role AttendeeRole) string {
	if role == AttendeeRolePresenter {
		return "everyone"
	}
	return "roleIsPresenter"
}

// refreshAttendees pushes a fresh attendee list. lastSync is stamped before
// the push and restored when the push fails.
func (s *MeetingService) refreshAttendees(ctx context.Context, activity Activity, record MeetingRecord) (MeetingRecord, error) {
	if !record.HasMeeting() {
		return record, ErrMeetingNotCreated
	}
	if !record.HasOrganiser() {
		return record, ErrOrganiserMissing
	}

	logger := s.loggerWith(ctx, "refreshAttendees",
		"activity_id", activity.ID,
		"group_id", record.GroupID,
		"meeting_id", record.ID,
	)

	previous := record.LastSync
	record.LastSync = s.now()
	stamped, err := s.meetings.UpdateMeeting(ctx, record)
	if err != nil {
		record.LastSync = previous
		return record, mapMeetingRepoError(err)
	}
	record = stamped

	pushErr := s.pushAttendees(ctx, activity, record)
	if pushErr == nil {
		logger.InfoContext(ctx, "attendees synchronised")
		return record, nil
	}

	record.LastSync = previous
	if restored, err := s.meetings.UpdateMeeting(ctx, record); err != nil {
		logger.ErrorContext(ctx, "failed to restore last sync", "error", err)
	} else {
		record = restored
	}
	return record, pushErr
}

func (s *MeetingService) pushAttendees(ctx context.Context, activity Activity, record MeetingRecord) error {
	if !s.providerAvailable() {
		return ErrNotConfigured
	}
	organiser, err := s.users.Profile(ctx, record.OrganiserID)
	if err != nil {
		return mapDirectoryError(err)
	}
	participants, err := s.attendees.Build(ctx, activity, record.OrganiserID, record.GroupID)
	if err != nil {
		return err
	}
	if err := s.provider.UpdateAttendees(ctx, record.ProviderMeetingID, participantFor(organiser, RoleOrganizer), participants); err != nil {
		return providerError("update attendees", err)
	}
	return nil
}

func (s *MeetingService) notifyCreated(ctx context.Context, activity Activity, organiser UserProfile, record MeetingRecord) {
	if s.notifier == nil {
		return
	}
	notice := MeetingNotice{
		Organiser:    organiser,
		ActivityName: activity.Name,
		JoinURL:      record.JoinURL,
	}
	if s.courses != nil {
		if course, err := s.courses.Course(ctx, activity.CourseID); err == nil {
			notice.CourseName = course.FullName
		}
	}
	if err := s.notifier.MeetingCreated(ctx, notice); err != nil {
		s.loggerWith(ctx, "notifyCreated", "activity_id", activity.ID, "organiser_id", organiser.ID).
			WarnContext(ctx, "failed to send meeting notification", "error", err)
	}
}

func (s *MeetingService) groupOptions(ctx context.Context, activity Activity, actorID int64) ([]GroupOption, error) {
	own, others, err := s.resolver.CandidateGroups(ctx, activity, actorID)
	if err != nil {
		return nil, err
	}

	options := make([]GroupOption, 0, len(own)+len(others))
	add := func(g Group, member bool) error {
		option := GroupOption{Group: g, Member: member}
		record, found, err := s.meetings.GetMeeting(ctx, activity.ID, g.ID)
		if err != nil {
			return mapMeetingRepoError(err)
		}
		if found && record.HasOrganiser() {
			option.OrganiserID = record.OrganiserID
			if profile, err := s.users.Profile(ctx, record.OrganiserID); err == nil {
				option.OrganiserName = profile.FullName
			}
		}
		options = append(options, option)
		return nil
	}
	for _, g := range own {
		if err := add(g, true); err != nil {
			return nil, err
		}
	}
	for _, g := range others {
		if err := add(g, false); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// canPresentInGroup reports whether the actor holds the present capability
// and may present in the group.
func (s *MeetingService) canPresentInGroup(ctx context.Context, activity Activity, actorID, groupID int64) (bool, error) {
	canPresent, err := s.capabilities.HasCapability(ctx, activity, actorID, CapabilityPresent)
	if err != nil || !canPresent {
		return false, err
	}
	mode, err := s.groups.GroupMode(ctx, activity)
	if err != nil {
		return false, fmt.Errorf("resolve group mode: %w", err)
	}
	if mode != GroupModeSeparate {
		return true, nil
	}
	allGroups, err := s.capabilities.HasCapability(ctx, activity, actorID, CapabilityAccessAllGroups)
	if err != nil || allGroups {
		return allGroups, err
	}
	own, err := s.groups.GroupsOf(ctx, activity, actorID)
	if err != nil {
		return false, fmt.Errorf("list actor groups: %w", err)
	}
	return containsGroup(own, groupID), nil
}

func (s *MeetingService) require(ctx context.Context, activity Activity, actorID int64, capability Capability) error {
	ok, err := s.capabilities.HasCapability(ctx, activity, actorID, capability)
	if err != nil {
		return fmt.Errorf("check %s capability: %w", capability, err)
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func (s *MeetingService) providerAvailable() bool {
	return s.provider != nil && s.provider.Available()
}

func (s *MeetingService) loadActivity(ctx context.Context, id string) (Activity, error) {
	if s.activities == nil {
		return Activity{}, fmt.Errorf("activity repository not configured")
	}
	activity, err := s.activities.GetActivity(ctx, id)
	if err != nil {
		return Activity{}, mapActivityRepoError(err)
	}
	return activity, nil
}

// loadMeeting returns the stored record or an unsaved stub.
func (s *MeetingService) loadMeeting(ctx context.Context, activityID string, groupID int64) (MeetingRecord, error) {
	record, found, err := s.meetings.GetMeeting(ctx, activityID, groupID)
	if err != nil {
		return MeetingRecord{}, mapMeetingRepoError(err)
	}
	if !found {
		return StubMeetingRecord(activityID, groupID), nil
	}
	return record, nil
}

// saveMeeting inserts a record without identifier and updates it otherwise.
func (s *MeetingService) saveMeeting(ctx context.Context, record MeetingRecord) (MeetingRecord, error) {
	var (
		saved MeetingRecord
		err   error
	)
	if record.Persisted() {
		saved, err = s.meetings.UpdateMeeting(ctx, record)
	} else {
		record.ID = s.idGenerator()
		saved, err = s.meetings.InsertMeeting(ctx, record)
	}
	if err != nil {
		return record, mapMeetingRepoError(err)
	}
	return saved, nil
}

func mapMeetingRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict), errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyOrganiser
	default:
		return err
	}
}

func mapActivityRepoError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func mapDirectoryError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
