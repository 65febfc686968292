package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInternalServer     = errors.New("internal server error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")

	ErrUserNotFound   = errors.New("user not found")
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrNotMember      = errors.New("not a member of this room")

	ErrRoomNameRequired  = errors.New("room name is required")
	ErrRoomNameDuplicate = errors.New("a room with this name already exists, please choose another name")
	ErrRoomIDRequired    = errors.New("room id is required")
	ErrUserIDRequired    = errors.New("user id is required")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrDefaultRoom       = errors.New("default rooms cannot be deleted")
	ErrNotRoomCreator    = errors.New("only the room creator can delete this room")
	ErrNoPermission      = errors.New("no permission for this operation")
	ErrOwnerOnly         = errors.New("only the room owner can do this")
	ErrCannotRemoveOwner = errors.New("cannot remove the room owner")
	ErrAlreadyMember     = errors.New("user is already in the room")
	ErrRoomFull          = errors.New("room is full")
	ErrMuted             = errors.New("you are muted in this room")
	ErrRateLimited       = errors.New("rate limit exceeded, please slow down")
	ErrNoActiveRoom      = errors.New("join a room first")
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

// Kind классифицирует ошибку бизнес-правил
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindPermission
	KindConflict
	KindValidation
	KindRateLimited
	KindAuth
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrRoomNotFound, KindNotFound},
	{ErrMemberNotFound, KindNotFound},
	{ErrNotMember, KindPermission},
	{ErrForbidden, KindPermission},
	{ErrDefaultRoom, KindPermission},
	{ErrNotRoomCreator, KindPermission},
	{ErrNoPermission, KindPermission},
	{ErrOwnerOnly, KindPermission},
	{ErrCannotRemoveOwner, KindPermission},
	{ErrMuted, KindPermission},
	{ErrRoomNameDuplicate, KindConflict},
	{ErrRoomAlreadyExists, KindConflict},
	{ErrAlreadyMember, KindConflict},
	{ErrRoomFull, KindConflict},
	{ErrUserAlreadyExists, KindConflict},
	{ErrBadRequest, KindValidation},
	{ErrRoomNameRequired, KindValidation},
	{ErrRoomIDRequired, KindValidation},
	{ErrUserIDRequired, KindValidation},
	{ErrNoActiveRoom, KindValidation},
	{ErrRateLimited, KindRateLimited},
	{ErrUnauthorized, KindAuth},
	{ErrInvalidCredentials, KindAuth},
	{ErrInvalidToken, KindAuth},
	{ErrTokenExpired, KindAuth},
}

// KindOf возвращает вид ошибки; неизвестные ошибки считаются внутренними
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// UserMessage возвращает текст, который можно показать клиенту.
// Внутренние ошибки не раскрываются.
func UserMessage(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "something went wrong while processing your request"
}

func HTTPStatusFromError(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
