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

type activityService interface {
	AddActivity(ctx context.Context, params application.AddActivityParams) (application.Activity, error)
	UpdateActivity(ctx context.Context, params application.UpdateActivityParams) (application.Activity, error)
	DeleteActivity(ctx context.Context, principal application.Principal, activityID string) error
}

type ActivityHandler struct {
	service   activityService
	responder responder
	logger    *slog.Logger
}

func NewActivityHandler(service activityService, logger *slog.Logger) *ActivityHandler {
	base := defaultLogger(logger)
	return &ActivityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ActivityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ActivityHandler", operation, attrs...)
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	courseID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "courseID")), 10, 64)
	if err != nil || courseID <= 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCourseID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	req, ok := h.decode(w, r, "Create")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Create", "course_id", courseID, "principal_id", principal.UserID)

	activity, err := h.service.AddActivity(r.Context(), application.AddActivityParams{
		Principal: principal,
		CourseID:  courseID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "activity creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "activity created", "activity_id", activity.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toActivityDTO(activity))
}

func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	req, ok := h.decode(w, r, "Update")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Update", "activity_id", activityID, "principal_id", principal.UserID)

	activity, err := h.service.UpdateActivity(r.Context(), application.UpdateActivityParams{
		Principal:  principal,
		ActivityID: activityID,
		Input:      req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "activity update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "activity updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toActivityDTO(activity))
}

func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.DeleteActivity(r.Context(), principal, activityID); err != nil {
		h.log(r.Context(), "Delete", "activity_id", activityID).
			ErrorContext(r.Context(), "activity deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ActivityHandler) decode(w http.ResponseWriter, r *http.Request, operation string) (activityRequest, bool) {
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode activity", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return activityRequest{}, false
	}
	if err := validateRequest(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return activityRequest{}, false
	}
	return req, true
}

type activityRequest struct {
	Name               string     `json:"name" validate:"required,max=255"`
	Intro              string     `json:"intro"`
	OpenAt             *time.Time `json:"open_at"`
	CloseAt            *time.Time `json:"close_at"`
	Reusable           bool       `json:"reusable"`
	GroupID            int64      `json:"group_id" validate:"gte=0"`
	GroupMode          string     `json:"group_mode" validate:"omitempty,oneof=none separate visible"`
	GroupingID         int64      `json:"grouping_id" validate:"gte=0"`
	ChatMode           string     `json:"chat_mode" validate:"omitempty,oneof=always during_meeting"`
	AttendeeMode       string     `json:"attendee_mode" validate:"omitempty,oneof=none forced"`
	AttendeeRole       string     `json:"attendee_role" validate:"omitempty,oneof=attendee presenter"`
	TeacherMode        string     `json:"teacher_mode" validate:"omitempty,oneof=all selected"`
	TeacherIDs         []int64    `json:"teacher_ids" validate:"dive,gt=0"`
	Visible            *bool      `json:"visible"`
	CreatorIsOrganiser bool       `json:"creator_is_organiser"`
}

func (req activityRequest) toInput() application.ActivityInput {
	input := application.ActivityInput{
		Name:                        req.Name,
		Intro:                       req.Intro,
		Reusable:                    req.Reusable,
		GroupID:                     req.GroupID,
		GroupMode:                   parseGroupMode(req.GroupMode),
		GroupingID:                  req.GroupingID,
		ChatMode:                    application.ChatMode(req.ChatMode),
		AttendeeMode:                application.AttendeeMode(req.AttendeeMode),
		AttendeeRole:                application.AttendeeRole(req.AttendeeRole),
		TeacherMode:                 application.TeacherMode(req.TeacherMode),
		TeacherIDs:                  req.TeacherIDs,
		Visible:                     true,
		DefaultOrganiserFromCreator: req.CreatorIsOrganiser,
	}
	if req.OpenAt != nil {
		input.OpenAt = req.OpenAt.UTC()
	}
	if req.CloseAt != nil {
		input.CloseAt = req.CloseAt.UTC()
	}
	if req.Visible != nil {
		input.Visible = *req.Visible
	}
	return input
}

func parseGroupMode(raw string) application.GroupMode {
	switch raw {
	case "separate":
		return application.GroupModeSeparate
	case "visible":
		return application.GroupModeVisible
	default:
		return application.GroupModeNone
	}
}

type activityDTO struct {
	ID                 string  `json:"id"`
	CourseID           int64   `json:"course_id"`
	Name               string  `json:"name"`
	Intro              string  `json:"intro,omitempty"`
	OpenAt             string  `json:"open_at,omitempty"`
	CloseAt            string  `json:"close_at,omitempty"`
	Reusable           bool    `json:"reusable"`
	GroupID            int64   `json:"group_id"`
	GroupMode          string  `json:"group_mode"`
	GroupingID         int64   `json:"grouping_id"`
	ChatMode           string  `json:"chat_mode"`
	AttendeeMode       string  `json:"attendee_mode"`
	AttendeeRole       string  `json:"attendee_role"`
	TeacherMode        string  `json:"teacher_mode"`
	TeacherIDs         []int64 `json:"teacher_ids,omitempty"`
	DefaultOrganiserID int64   `json:"default_organiser_id,omitempty"`
	Visible            bool    `json:"visible"`
	ModifiedAt         string  `json:"modified_at,omitempty"`
}

func toActivityDTO(a application.Activity) activityDTO {
	return activityDTO{
		ID:                 a.ID,
		CourseID:           a.CourseID,
		Name:               a.Name,
		Intro:              a.Intro,
		OpenAt:             formatTime(a.OpenAt),
		CloseAt:            formatTime(a.CloseAt),
		Reusable:           a.Reusable,
		GroupID:            a.GroupID,
		GroupMode:          a.GroupMode.String(),
		GroupingID:         a.GroupingID,
		ChatMode:           string(a.ChatMode),
		AttendeeMode:       string(a.AttendeeMode),
		AttendeeRole:       string(a.AttendeeRole),
		TeacherMode:        string(a.TeacherMode),
		TeacherIDs:         a.TeacherIDs,
		DefaultOrganiserID: a.DefaultOrganiserID,
		Visible:            a.Visible,
		ModifiedAt:         formatTime(a.ModifiedAt),
	}
}
