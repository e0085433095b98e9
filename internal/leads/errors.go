package leads

import "errors"

var (
	// ErrLeadNotFound is returned when an update or lookup names an unknown lead id
	ErrLeadNotFound = errors.New("leads: lead not found")

	// ErrInvalidStatus is returned when a patch carries a status outside the lifecycle
	ErrInvalidStatus = errors.New("leads: invalid status")

	// ErrMissingConversation is returned when a lead is created without a source conversation
	ErrMissingConversation = errors.New("leads: conversation id is required")

	// ErrEmptyPatch is returned when an update carries no changes
	ErrEmptyPatch = errors.New("leads: patch is empty")

	// ErrNotEmpty is returned when a restore targets a store that already holds leads
	ErrNotEmpty = errors.New("leads: store is not empty")
)
