package services

import "errors"

// Общие ошибки сервисного слоя и их маппинг в HTTP описаны в handlers.
var (
	// Ресурс не найден
	ErrUserNotFound         = errors.New("user not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrMemberNotFound       = errors.New("team member not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrJoinRequestNotFound  = errors.New("join request not found")
	ErrInviteNotFound       = errors.New("invite not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrChatRoomNotFound     = errors.New("chat room not found")

	// Валидация
	ErrValidationFailed         = errors.New("validation failed")
	ErrTeamNameRequired         = errors.New("team name is required")
	ErrEventTitleRequired       = errors.New("event title is required")
	ErrEventInvalidTimeRange    = errors.New("event start time must be before end time")
	ErrEventStartInPast         = errors.New("event start time must be in the future")
	ErrEventInvalidCapacity     = errors.New("event max participants must be positive")
	ErrChatMessageEmpty         = errors.New("chat message content must not be empty")
	ErrPasswordTooShort         = errors.New("password is too short")
	ErrInvalidJoinRequestAction = errors.New("invalid join request action")

	// Конфликты
	ErrEventFull            = errors.New("event is full")
	ErrAlreadyReserved      = errors.New("user already reserved a spot for this event")
	ErrAlreadyMember        = errors.New("user is already a member of this team")
	ErrAlreadyRequested     = errors.New("a pending join request already exists")
	ErrInviteUsed           = errors.New("invite has already been used")
	ErrInviteExpired        = errors.New("invite has expired")
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrUserNicknameConflict = errors.New("nickname is already in use")
	ErrTeamNameConflict     = errors.New("team name is already in use")

	// Состояние события
	ErrEventLocked = errors.New("event has already started and can no longer be modified")
	ErrEventClosed = errors.New("event is closed")

	// Авторизация
	ErrForbiddenOperation       = errors.New("operation not allowed for the current user")
	ErrManagerActionForbidden   = errors.New("only the team owner or an admin can perform this action")
	ErrOwnerActionForbidden     = errors.New("only the team owner can perform this action")
	ErrOwnerSelfChangeForbidden = errors.New("the owner cannot change or remove their own role without transferring ownership first")
	ErrLastOwnerRemoval         = errors.New("cannot remove the team owner; transfer ownership first")
	ErrNotRoomMember            = errors.New("user is not a member of this chat room")

	// Аутентификация
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrInvalidProviderToken   = errors.New("invalid identity provider token")
)
