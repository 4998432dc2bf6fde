package store

import "errors"

// errStoreUnavailable simulates transient backend unavailability in the
// memory store. The worker treats any batch-level Apply error the same way,
// so the concrete value is unexported.
var errStoreUnavailable = errors.New("entity store unavailable")
