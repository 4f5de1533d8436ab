package hotmic

import "errors"

// Sentinel errors for the mutation-time and configuration failure kinds.
// Callers branch on kind with errors.Is.
var (
	// ErrCycleDetected is returned when a routing mutation would introduce
	// a cycle among channel dependency edges (Copy/Merge/EchoCanceller).
	// The mutation is refused and the previously published snapshot
	// remains active.
	ErrCycleDetected = errors.New("hotmic: routing mutation would introduce a cycle")
	// ErrDuplicateBinding is returned for a device id already bound to
	// another channel or for a second active OutputSend. The target of a
	// Copy plugin is not checked: a Copy naming an existing channel is
	// accepted.
	ErrDuplicateBinding = errors.New("hotmic: duplicate binding rejected")
	// ErrConfigRejected is returned when a plugin's Initialize rejects the
	// configured sample rate or block size (e.g. a plugin that requires a
	// fixed sample rate).
	ErrConfigRejected = errors.New("hotmic: plugin rejected configuration")
	// ErrChannelNotFound is returned by graph mutation methods addressing
	// an unknown channel id.
	ErrChannelNotFound = errors.New("hotmic: channel not found")
	// ErrNotCopyTarget names the case of a channel that is not
	// copy-created. No Engine method returns it.
	ErrNotCopyTarget = errors.New("hotmic: channel is not a copy target")
)
