package ports

// Recorder collects store metrics.
type Recorder interface {
	// Persisted counts a successful write of a store.
	Persisted(store string)

	// Malformed counts a persisted value that could not be decoded.
	Malformed(store string)

	// Transferred counts guest items merged into an account on login.
	Transferred(store string, items int)

	// AccountEvent counts a registry event by kind: registered, updated or deleted.
	AccountEvent(kind string)
}

// NopRecorder discards every measure.
type NopRecorder struct{}

func (NopRecorder) Persisted(string)        {}
func (NopRecorder) Malformed(string)        {}
func (NopRecorder) Transferred(string, int) {}
func (NopRecorder) AccountEvent(string)     {}
