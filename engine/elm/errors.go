package elm

import (
	"errors"

	"tachtalk/engine/adapter"
)

// errorIsTimeout reports whether err should surface to the client as
// "NO DATA" (upstream silence), per §4.2's error table.
func errorIsTimeout(err error) bool {
	return errors.Is(err, adapter.ErrTimeout)
}

// errorIsFault reports whether err should surface as "UNABLE TO CONNECT"
// (adapter fault: no physical connection available), per §4.2.
func errorIsFault(err error) bool {
	return errors.Is(err, adapter.ErrIO) || errors.Is(err, adapter.ErrNoPrompt)
}
