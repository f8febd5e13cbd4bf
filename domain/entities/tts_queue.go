package entities

// TtsState represents the playback state of one client's TTS queue
type TtsState string

const (
	TtsStateIdle     TtsState = "idle"
	TtsStateSpeaking TtsState = "speaking"
	TtsStatePaused   TtsState = "paused"
)

// TtsUtterance is one queued or playing speech item
type TtsUtterance struct {
	ID       UtteranceID `json:"id"`
	Text     string      `json:"text"`
	Priority Priority    `json:"priority"`
	Format   AudioFormat `json:"format"`
}

// TtsQueue is the per-client priority queue and playback state machine for
// speech synthesis. Depth is bounded; high-priority items are inserted ahead
// of normal items already queued but never ahead of the item currently
// speaking.
//
// Like SttSession, the queue never opens or closes streams. The orchestrator
// pairs every transition into or out of speaking with the matching output
// stream operation.
type TtsQueue struct {
	client   ClientID
	state    TtsState
	maxDepth int
	queue    []TtsUtterance
	current  *TtsUtterance
	stream   StreamID
	nextID   UtteranceID
}

// NewTtsQueue creates an idle queue for a client, bounded to maxDepth items
func NewTtsQueue(client ClientID, maxDepth int) *TtsQueue {
	return &TtsQueue{
		client:   client,
		state:    TtsStateIdle,
		maxDepth: maxDepth,
		queue:    make([]TtsUtterance, 0, maxDepth),
	}
}

// Client returns the owning client
func (q *TtsQueue) Client() ClientID {
	return q.client
}

// State returns the playback state
func (q *TtsQueue) State() TtsState {
	return q.state
}

// Len returns the number of queued (not yet speaking) utterances
func (q *TtsQueue) Len() int {
	return len(q.queue)
}

// Peek returns a copy of the utterance Start would pop next, if any
func (q *TtsQueue) Peek() (TtsUtterance, bool) {
	if len(q.queue) == 0 {
		return TtsUtterance{}, false
	}
	return q.queue[0], true
}

// Current returns a copy of the utterance being spoken or paused, if any
func (q *TtsQueue) Current() (TtsUtterance, bool) {
	if q.current == nil {
		return TtsUtterance{}, false
	}
	return *q.current, true
}

// Stream returns the output stream recorded at Start, valid while speaking
// or paused
func (q *TtsQueue) Stream() (StreamID, bool) {
	if q.state == TtsStateIdle {
		return 0, false
	}
	return q.stream, true
}

// Queue appends an utterance. High-priority items are inserted ahead of
// queued normal items. Fails with ErrTtsQueueFull at maxDepth.
func (q *TtsQueue) Queue(text string, priority Priority, format AudioFormat) (UtteranceID, error) {
	if len(q.queue) >= q.maxDepth {
		return 0, ErrTtsQueueFull
	}
	utterance := TtsUtterance{
		ID:       q.nextID,
		Text:     text,
		Priority: priority,
		Format:   format,
	}
	q.nextID++

	if priority == PriorityHigh {
		insertAt := len(q.queue)
		for i, queued := range q.queue {
			if queued.Priority == PriorityNormal {
				insertAt = i
				break
			}
		}
		q.queue = append(q.queue, TtsUtterance{})
		copy(q.queue[insertAt+1:], q.queue[insertAt:])
		q.queue[insertAt] = utterance
	} else {
		q.queue = append(q.queue, utterance)
	}
	return utterance.ID, nil
}

// Start pops the head of the queue and begins speaking it on the given
// output stream. Fails with ErrTtsInvalidState unless idle, ErrTtsQueueEmpty
// if nothing is queued.
func (q *TtsQueue) Start(stream StreamID) (TtsUtterance, error) {
	if q.state != TtsStateIdle {
		return TtsUtterance{}, ErrTtsInvalidState
	}
	if len(q.queue) == 0 {
		return TtsUtterance{}, ErrTtsQueueEmpty
	}
	head := q.queue[0]
	q.queue = q.queue[1:]
	q.current = &head
	q.stream = stream
	q.state = TtsStateSpeaking
	return head, nil
}

// Complete finishes the current utterance, transitioning speaking to idle,
// and returns it
func (q *TtsQueue) Complete() (TtsUtterance, error) {
	if q.state != TtsStateSpeaking {
		return TtsUtterance{}, ErrTtsInvalidState
	}
	finished := *q.current
	q.current = nil
	q.stream = 0
	q.state = TtsStateIdle
	return finished, nil
}

// Pause transitions speaking to paused
func (q *TtsQueue) Pause() error {
	if q.state != TtsStateSpeaking {
		return ErrTtsInvalidState
	}
	q.state = TtsStatePaused
	return nil
}

// Resume transitions paused back to speaking
func (q *TtsQueue) Resume() error {
	if q.state != TtsStatePaused {
		return ErrTtsInvalidState
	}
	q.state = TtsStateSpeaking
	return nil
}

// Cancel stops the current utterance, if any, returning to idle. With
// clearQueue it also drains everything still queued. Cancelling an idle
// queue is a no-op and returns nil, so error-branch cleanup can always call
// it.
func (q *TtsQueue) Cancel(clearQueue bool) *TtsUtterance {
	var cancelled *TtsUtterance
	if q.current != nil {
		c := *q.current
		cancelled = &c
	}
	q.current = nil
	q.stream = 0
	q.state = TtsStateIdle
	if clearQueue {
		q.queue = q.queue[:0]
	}
	return cancelled
}

// Interrupt atomically discards the in-flight utterance and begins a new
// high-priority one without an intermediate idle state. Valid only while
// speaking; the output stream recorded at Start stays attached to the
// replacement, which is what keeps a speaking client's stream open across a
// preemption.
func (q *TtsQueue) Interrupt(text string, format AudioFormat) (UtteranceID, error) {
	if q.state != TtsStateSpeaking {
		return 0, ErrTtsInvalidState
	}
	replacement := TtsUtterance{
		ID:       q.nextID,
		Text:     text,
		Priority: PriorityHigh,
		Format:   format,
	}
	q.nextID++
	q.current = &replacement
	return replacement.ID, nil
}
