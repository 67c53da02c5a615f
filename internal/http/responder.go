package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/teammeeting/internal/application"
	"github.com/example/teammeeting/internal/logging"
)

var (
	errBadRequestBody      = errors.New("無効なリクエスト形式です。")
	errInvalidActivityID   = errors.New("無効なアクティビティ ID です。")
	errInvalidCourseID     = errors.New("無効なコース ID です。")
	errInvalidGroupID      = errors.New("無効なグループ ID です。")
	errInvalidRedirectFlag = errors.New("redirect パラメータが不正です。")
	errMissingCredentials  = errors.New("認証トークンを指定してください")
	errInvalidCredentials  = errors.New("認証トークンが無効です。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, resp := serviceErrorResponse(err)
	r.writeJSON(ctx, w, status, resp)
}

// serviceErrorResponse maps application errors to a status and payload.
// Configuration errors win over provider errors that wrap them.
func serviceErrorResponse(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, application.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "NOT_CONFIGURED",
			Message:   "Teams 連携が設定されていません。管理者に連絡してください。",
		}
	case errors.Is(err, application.ErrIdentityNotLinked):
		return http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "IDENTITY_NOT_LINKED",
			Message:   "Microsoft アカウントが連携されていません。",
		}
	}

	var pErr *application.ProviderError
	if errors.As(err, &pErr) {
		return http.StatusBadGateway, errorResponse{
			ErrorCode: "PROVIDER_ERROR",
			Message:   "Teams との通信に失敗しました。しばらくしてから再度お試しください。",
		}
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		}
	}

	switch {
	case errors.Is(err, application.ErrPermissionDenied):
		return http.StatusForbidden, errorResponse{
			ErrorCode: "PERMISSION_DENIED",
			Message:   "この操作を実行する権限がありません。",
		}
	case errors.Is(err, application.ErrGroupAccessDenied):
		return http.StatusForbidden, errorResponse{
			ErrorCode: "GROUP_ACCESS_DENIED",
			Message:   "指定されたグループにアクセスできません。",
		}
	case errors.Is(err, application.ErrInvalidToken):
		return http.StatusUnauthorized, errorResponse{
			ErrorCode: "INVALID_TOKEN",
			Message:   errInvalidCredentials.Error(),
		}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"}
	case errors.Is(err, application.ErrAlreadyOrganiser):
		return http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_ORGANISER",
			Message:   "このグループには既に開催者が設定されています。",
		}
	case errors.Is(err, application.ErrAlreadyOrganiserElsewhere):
		return http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_ORGANISER_ELSEWHERE",
			Message:   "既に別のグループの開催者です。",
		}
	case errors.Is(err, application.ErrMeetingAlreadyCreated),
		errors.Is(err, application.ErrOrganiserMissing),
		errors.Is(err, application.ErrMeetingNotCreated):
		return http.StatusConflict, errorResponse{
			ErrorCode: "PRECONDITION_FAILED",
			Message:   localizedStatusMessage(http.StatusConflict),
		}
	}

	return http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, r.logger)
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusServiceUnavailable:
		return "サービスを利用できません。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "name is required":
		return "名前は必須です。"
	case "open date is required":
		return "開始日時は必須です。"
	case "close date must not be in the past":
		return "終了日時に過去の日時は指定できません。"
	case "close date must be after open date":
		return "終了日時は開始日時より後である必要があります。"
	case "chat mode is invalid":
		return "チャットの設定が不正です。"
	case "attendee mode is invalid":
		return "参加者の設定が不正です。"
	case "attendee role is invalid":
		return "参加者の役割が不正です。"
	case "teacher mode is invalid":
		return "教師の設定が不正です。"
	case "group mode is invalid":
		return "グループモードが不正です。"
	case "group id is invalid":
		return "グループ ID が不正です。"
	default:
		if field, ok := strings.CutSuffix(message, " is required"); ok {
			return field + " は必須です。"
		}
		if field, ok := strings.CutSuffix(message, " is invalid"); ok {
			return field + " の値が不正です。"
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
