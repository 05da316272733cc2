package vfs

// Flags modify how a registered backend is driven by the dispatcher.
type Flags int

const (
	// FlagDefault selects the bare op variants with no special handling.
	FlagDefault Flags = 0

	// FlagContextPtr makes the dispatcher call the context aware op
	// variants, passing the ctx value given at registration.
	FlagContextPtr Flags = 1 << iota

	// FlagReadOnlyFS rejects every mutating op on the mount with EROFS
	// without consulting the backend.
	FlagReadOnlyFS

	// FlagStatic marks the operation set as owned by the caller; the
	// dispatcher aliases it instead of taking a deep copy.
	FlagStatic
)

// accModeMask extracts the access mode from open flags (os.O_RDONLY,
// os.O_WRONLY or os.O_RDWR).
const accModeMask = 3
