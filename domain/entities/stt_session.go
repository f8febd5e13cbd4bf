package entities

// SttState represents the state of the speech recognition slot
type SttState string

const (
	SttStateIdle       SttState = "idle"
	SttStateListening  SttState = "listening"
	SttStateProcessing SttState = "processing"
)

// SttResult represents one finalized recognized utterance
type SttResult struct {
	Client     ClientID `json:"client"`
	Text       string   `json:"text"`
	Confidence int      `json:"confidence"` // percent, 0-100
	IsFinal    bool     `json:"is_final"`
}

// SttSession is the single-slot state machine for speech recognition. At most
// one client may hold the slot at a time; a second Start fails until the
// first session has been delivered, cancelled, or errored back to idle.
//
// The session never touches audio streams itself. The orchestrator opens and
// closes the associated stream in lockstep with these transitions.
type SttSession struct {
	state      SttState
	client     ClientID
	hasClient  bool
	stream     StreamID
	partialTxt string
	partialCnf int
}

// NewSttSession creates an idle session slot
func NewSttSession() *SttSession {
	return &SttSession{state: SttStateIdle}
}

// State returns the current session state
func (s *SttSession) State() SttState {
	return s.state
}

// ActiveClient returns the client holding the slot, if any
func (s *SttSession) ActiveClient() (ClientID, bool) {
	return s.client, s.hasClient
}

// Stream returns the input stream recorded at Start, valid while non-idle
func (s *SttSession) Stream() (StreamID, bool) {
	if s.state == SttStateIdle {
		return 0, false
	}
	return s.stream, true
}

// Partial returns the most recent incremental recognition text
func (s *SttSession) Partial() (string, int) {
	return s.partialTxt, s.partialCnf
}

// Start transitions idle to listening, recording the client and its input
// stream. Fails with ErrSttAlreadyActive if any session is in flight.
func (s *SttSession) Start(client ClientID, stream StreamID) error {
	if s.state != SttStateIdle {
		return ErrSttAlreadyActive
	}
	s.state = SttStateListening
	s.client = client
	s.hasClient = true
	s.stream = stream
	s.partialTxt = ""
	s.partialCnf = 0
	return nil
}

// UpdatePartial records an incremental recognition result for UI feedback.
// Valid only while listening; does not change state.
func (s *SttSession) UpdatePartial(text string, confidence int) error {
	if s.state != SttStateListening {
		return ErrSttInvalidState
	}
	s.partialTxt = text
	s.partialCnf = confidence
	return nil
}

// EndUtterance transitions listening to processing
func (s *SttSession) EndUtterance() error {
	if s.state != SttStateListening {
		return ErrSttInvalidState
	}
	s.state = SttStateProcessing
	return nil
}

// DeliverResult finalizes the utterance, transitioning processing to idle and
// clearing the active client. Fails with ErrSttInvalidState outside
// processing.
func (s *SttSession) DeliverResult(text string, confidence int) (SttResult, error) {
	if s.state != SttStateProcessing {
		return SttResult{}, ErrSttInvalidState
	}
	result := SttResult{
		Client:     s.client,
		Text:       text,
		Confidence: confidence,
		IsFinal:    true,
	}
	s.reset()
	return result, nil
}

// Cancel returns the session to idle from any state. It reports the client
// that held the slot, if any, so the caller can reconcile streams. Cancelling
// an idle session is a no-op, which lets every multi-step orchestration path
// unwind through here unconditionally.
func (s *SttSession) Cancel() (ClientID, bool) {
	client, had := s.client, s.hasClient
	s.reset()
	return client, had
}

// Fail has the same contract as Cancel; it is the path used when the
// recognition provider reports a fault.
func (s *SttSession) Fail() (ClientID, bool) {
	return s.Cancel()
}

func (s *SttSession) reset() {
	s.state = SttStateIdle
	s.client = 0
	s.hasClient = false
	s.stream = 0
	s.partialTxt = ""
	s.partialCnf = 0
}
