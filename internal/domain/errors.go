package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code does not resolve to an active room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrParticipantNotFound is returned when a session has never joined a room.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrRoomFull indicates every winner slot of a room has been claimed.
	ErrRoomFull = errors.New("all winner slots are taken")
	// ErrUnauthorized is returned when an admin credential is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation wraps malformed room or admin payloads.
	ErrValidation = errors.New("validation failed")
	// ErrAdminExists is returned when setup runs after an administrator was created.
	ErrAdminExists = errors.New("admin already exists")
	// ErrAdminNotFound is returned when a username has no account.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrTooManyAttempts is returned while a client is locked out of login.
	ErrTooManyAttempts = errors.New("too many login attempts")
)
