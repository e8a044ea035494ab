package utils

// Guard undoes partial construction. Defer OnFail right after acquiring a resource and call
// Success once the constructor can no longer fail.
type Guard struct {
	cleanup func()
	done    bool
}

// NewGuard returns a Guard that runs cleanup from OnFail.
func NewGuard(cleanup func()) *Guard {
	return &Guard{cleanup: cleanup}
}

// OnFail runs the cleanup unless Success was called first.
func (guard *Guard) OnFail() {
	if guard.done {
		return
	}
	guard.done = true
	guard.cleanup()
}

// Success disarms the guard.
func (guard *Guard) Success() {
	guard.done = true
}
