package relay

import "sync"

// CallSession is the shared state of one call: the telephony stream
// identity, playback timing and the interruption bookkeeping. Both pumps
// touch it concurrently; every method holds the mutex for the whole of
// its read-modify-write step.
type CallSession struct {
	mu sync.Mutex

	streamSID            string
	latestMediaTimestamp int
	lastAssistantItem    string
	responseStart        *int
	markQueue            []string
}

// NewCallSession creates an empty call session.
func NewCallSession() *CallSession {
	return &CallSession{}
}

// BeginStream records the stream SID and resets the media clock.
func (c *CallSession) BeginStream(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamSID = sid
	c.latestMediaTimestamp = 0
	c.responseStart = nil
}

// StreamSID returns the current stream SID.
func (c *CallSession) StreamSID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamSID
}

// ObserveMedia advances the media clock to the frame timestamp. Twilio
// timestamps are monotonic within a stream.
func (c *CallSession) ObserveMedia(timestampMs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestMediaTimestamp = timestampMs
}

// BeginResponse notes an audio delta for an assistant item. The first
// delta of a turn pins the response start to the current media clock;
// later deltas only keep the item ID current.
func (c *CallSession) BeginResponse(itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.responseStart == nil {
		start := c.latestMediaTimestamp
		c.responseStart = &start
	}
	if itemID != "" {
		c.lastAssistantItem = itemID
	}
}

// MarkDelivered enqueues a playback marker sent to the telephony leg.
func (c *CallSession) MarkDelivered(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markQueue = append(c.markQueue, name)
}

// MarkAcked pops the oldest pending marker. Acks on an empty queue are
// ignored.
func (c *CallSession) MarkAcked() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.markQueue) > 0 {
		c.markQueue = c.markQueue[1:]
	}
}

// InterruptCut is the outcome of an interruption: what to truncate and
// where to send the clear.
type InterruptCut struct {
	StreamSID string

	// ItemID is the assistant item to truncate; empty means nothing is
	// attributable and only the clear is sent.
	ItemID string

	// ElapsedMs is the audio the caller actually heard, media clock
	// minus response start. It is passed through unclamped.
	ElapsedMs int
}

// Interrupt handles the caller starting to speak over the assistant.
// It is a no-op (ok=false) unless audio is both in flight (non-empty
// mark queue) and attributed to a turn (response start pinned).
// Otherwise it computes the cut and clears the mark queue, assistant
// item and response start as one atomic group.
func (c *CallSession) Interrupt() (InterruptCut, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.markQueue) == 0 || c.responseStart == nil {
		return InterruptCut{}, false
	}

	cut := InterruptCut{
		StreamSID: c.streamSID,
		ItemID:    c.lastAssistantItem,
		ElapsedMs: c.latestMediaTimestamp - *c.responseStart,
	}

	c.markQueue = nil
	c.lastAssistantItem = ""
	c.responseStart = nil

	return cut, true
}
