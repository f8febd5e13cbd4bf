package entities

// TtsManager holds one TtsQueue per client, created lazily on first queue
// operation. Queues for different clients are fully independent.
type TtsManager struct {
	maxDepth int
	queues   map[ClientID]*TtsQueue
}

// NewTtsManager creates a manager whose queues are bounded to maxDepth items
func NewTtsManager(maxDepth int) *TtsManager {
	return &TtsManager{
		maxDepth: maxDepth,
		queues:   make(map[ClientID]*TtsQueue),
	}
}

// Queue returns the client's queue, creating it on first use
func (m *TtsManager) Queue(client ClientID) *TtsQueue {
	if q, ok := m.queues[client]; ok {
		return q
	}
	q := NewTtsQueue(client, m.maxDepth)
	m.queues[client] = q
	return q
}

// Get returns the client's queue if one has been created
func (m *TtsManager) Get(client ClientID) (*TtsQueue, bool) {
	q, ok := m.queues[client]
	return q, ok
}

// Remove drops the client's queue entirely; used by disconnect handling
func (m *TtsManager) Remove(client ClientID) {
	delete(m.queues, client)
}

// Queues returns every live queue; iteration order is unspecified
func (m *TtsManager) Queues() []*TtsQueue {
	out := make([]*TtsQueue, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q)
	}
	return out
}
