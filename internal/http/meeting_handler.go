package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/teammeeting/internal/application"
)

type meetingService interface {
	Resolve(ctx context.Context, params application.ResolveParams) (application.Resolution, error)
	NominateOrganiser(ctx context.Context, activityID string, actorID, groupID int64) (string, error)
	IsReady(ctx context.Context, activityID string, actorID, groupID int64) (application.ReadyStatus, error)
	DescribeActivityFor(ctx context.Context, actorID int64, activityID string) (application.ActivityReport, error)
}

type MeetingHandler struct {
	service   meetingService
	responder responder
	logger    *slog.Logger
}

func NewMeetingHandler(service meetingService, logger *slog.Logger) *MeetingHandler {
	base := defaultLogger(logger)
	return &MeetingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *MeetingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MeetingHandler", operation, attrs...)
}

// View resolves the meeting for the caller and either redirects to the join
// URL or describes what the client must show.
func (h *MeetingHandler) View(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	activityID, ok := activityIDParam(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidActivityID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	groupID, err := optionalInt64Query(r, "group")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGroupID)
		return
	}
	redirect, err := boolQuery(r, "redirect")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRedirectFlag)
		return
	}

	logger := h.log(r.Context(), "View", "activity_id", activityID, "principal_id", principal.UserID)

	res, err := h.service.Resolve(r.Context(), application.ResolveParams{
		ActivityID: activityID,
		ActorID:    principal.UserID,
		GroupID:    groupID,
		Redirect:   redirect,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "meeting resolution failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if res.State == application.StateReady && res.Redirect {
		logger.InfoContext(r.Context(), "redirecting to meeting", "group_id", res.GroupID)
		http.Redirect(w, r, res.JoinURL, http.StatusFound)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toResolutionDTO(res))
}

// Ready answers the lobby poll.
func (h *MeetingHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	activityID, ok := activityIDParam(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidActivityID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	groupID, err := optionalInt64Query(r, "group")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGroupID)
		return
	}
	var group int64
	if groupID != nil {
		group = *groupID
	}

	status, err := h.service.IsReady(r.Context(), activityID, principal.UserID, group)
	if err != nil {
		h.log(r.Context(), "Ready", "activity_id", activityID, "group_id", group).
			ErrorContext(r.Context(), "ready check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, readyResponse{Ready: status.Ready, JoinURL: status.JoinURL})
}

// Nominate makes the caller the organiser of a group's meeting.
func (h *MeetingHandler) Nominate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	activityID, ok := activityIDParam(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidActivityID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req nominateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Nominate", "activity_id", activityID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode nomination", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := validateRequest(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Nominate", "activity_id", activityID, "principal_id", principal.UserID, "group_id", *req.GroupID)

	joinURL, err := h.service.NominateOrganiser(r.Context(), activityID, principal.UserID, *req.GroupID)
	if err != nil {
		logger.ErrorContext(r.Context(), "nomination failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "organiser nominated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, nominateResponse{JoinURL: joinURL})
}

// Meetings lists the meeting records of an activity with their remote state.
func (h *MeetingHandler) Meetings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	activityID, ok := activityIDParam(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidActivityID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	report, err := h.service.DescribeActivityFor(r.Context(), principal.UserID, activityID)
	if err != nil {
		h.log(r.Context(), "Meetings", "activity_id", activityID).
			ErrorContext(r.Context(), "meeting listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toActivityReportDTO(report))
}

type nominateRequest struct {
	GroupID *int64 `json:"group_id" validate:"required,gte=0"`
}

type nominateResponse struct {
	JoinURL string `json:"join_url"`
}

type readyResponse struct {
	Ready   bool   `json:"ready"`
	JoinURL string `json:"join_url,omitempty"`
}

type resolutionDTO struct {
	State       string           `json:"state"`
	ActivityID  string           `json:"activity_id"`
	Name        string           `json:"name"`
	GroupID     int64            `json:"group_id"`
	Groups      []groupOptionDTO `json:"groups,omitempty"`
	OpenAt      string           `json:"open_at,omitempty"`
	CloseAt     string           `json:"close_at,omitempty"`
	CanNominate bool             `json:"can_nominate"`
	JoinURL     string           `json:"join_url,omitempty"`
}

type groupOptionDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Member        bool   `json:"member"`
	OrganiserID   int64  `json:"organiser_id,omitempty"`
	OrganiserName string `json:"organiser_name,omitempty"`
}

func toResolutionDTO(res application.Resolution) resolutionDTO {
	dto := resolutionDTO{
		State:       string(res.State),
		ActivityID:  res.Activity.ID,
		Name:        res.Activity.Name,
		GroupID:     res.GroupID,
		OpenAt:      formatTime(res.OpenAt),
		CloseAt:     formatTime(res.CloseAt),
		CanNominate: res.CanNominate,
		JoinURL:     res.JoinURL,
	}
	for _, option := range res.Groups {
		dto.Groups = append(dto.Groups, groupOptionDTO{
			ID:            option.Group.ID,
			Name:          option.Group.Name,
			Member:        option.Member,
			OrganiserID:   option.OrganiserID,
			OrganiserName: option.OrganiserName,
		})
	}
	return dto
}

type activityReportDTO struct {
	ActivityID  string             `json:"activity_id"`
	Name        string             `json:"name"`
	ForcedGroup string             `json:"forced_group,omitempty"`
	Meetings    []meetingDetailDTO `json:"meetings"`
}

type meetingDetailDTO struct {
	GroupID           int64            `json:"group_id"`
	OrganiserID       int64            `json:"organiser_id,omitempty"`
	OrganiserName     string           `json:"organiser_name,omitempty"`
	ProviderMeetingID string           `json:"provider_meeting_id,omitempty"`
	JoinURL           string           `json:"join_url,omitempty"`
	LastSync          string           `json:"last_sync,omitempty"`
	Subject           string           `json:"subject,omitempty"`
	OrganizerUPN      string           `json:"organizer_upn,omitempty"`
	Participants      []participantDTO `json:"participants,omitempty"`
	RemoteError       string           `json:"remote_error,omitempty"`
}

type participantDTO struct {
	UPN  string `json:"upn"`
	Role string `json:"role"`
}

func toActivityReportDTO(report application.ActivityReport) activityReportDTO {
	dto := activityReportDTO{
		ActivityID: report.Activity.ID,
		Name:       report.Activity.Name,
		Meetings:   make([]meetingDetailDTO, 0, len(report.Meetings)),
	}
	if report.ForcedGroup != nil {
		dto.ForcedGroup = report.ForcedGroup.Name
	}
	for _, detail := range report.Meetings {
		item := meetingDetailDTO{
			GroupID:           detail.Record.GroupID,
			OrganiserID:       detail.Record.OrganiserID,
			OrganiserName:     detail.OrganiserName,
			ProviderMeetingID: detail.Record.ProviderMeetingID,
			JoinURL:           detail.Record.JoinURL,
			LastSync:          formatTime(detail.Record.LastSync),
		}
		if detail.Remote != nil {
			item.Subject = detail.Remote.Subject
			item.OrganizerUPN = detail.Remote.OrganizerUPN
			for _, p := range detail.Remote.Participants {
				item.Participants = append(item.Participants, participantDTO{UPN: p.UPN, Role: string(p.Role)})
			}
		}
		if detail.RemoteError != nil {
			item.RemoteError = detail.RemoteError.Error()
		}
		dto.Meetings = append(dto.Meetings, item)
	}
	return dto
}

func activityIDParam(r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "activityID"))
	return id, id != ""
}

func optionalInt64Query(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, errInvalidGroupID
	}
	return &v, nil
}

func boolQuery(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
