package ami

// Hooks groups the client's byte-level and lifecycle observability
// callbacks. Any slot left nil is simply not invoked. None of these
// callbacks should block: they run synchronously on the triggering
// operation (DataSent from within Publish, DataReceived from the worker,
// Stopped from whichever caller performs the drain).
type Hooks struct {
	// DataSent fires from within Publish immediately after the write
	// lock is released, with the exact bytes written.
	DataSent func(b []byte)

	// DataReceived fires from the worker for each raw inbound read,
	// rather than once per fully-assembled message, because that's the
	// boundary LineReader actually observes.
	DataReceived func(b []byte)

	// Stopped fires exactly once per client when it transitions to
	// Stopped. cause is nil for a voluntary Stop.
	Stopped func(cause error)
}

func (h Hooks) dataSent(b []byte) {
	if h.DataSent != nil {
		h.DataSent(b)
	}
}

func (h Hooks) dataReceived(b []byte) {
	if h.DataReceived != nil {
		h.DataReceived(b)
	}
}

func (h Hooks) stopped(cause error) {
	if h.Stopped != nil {
		h.Stopped(cause)
	}
}
