package domain

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrPhotoNotFound = errors.New("profile picture not found")
	ErrDuplicateName = errors.New("user with this name already exists")
	ErrDuplicateID   = errors.New("user with this id already exists")
	// ErrIntegrity covers constraint failures other than a duplicate name.
	ErrIntegrity = errors.New("integrity constraint violated")

	ErrStorageCredentials = errors.New("storage credential error")
	ErrStorageClient      = errors.New("storage client error")
)
