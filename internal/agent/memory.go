package agent

import (
	"errors"
	"sync"
	"time"
)

// DefaultIdle is how long a conversation may sit unused before a save evicts it.
const DefaultIdle = time.Hour

// ErrNotOwner is returned when a conversation id is used by a customer or store
// other than the one that started it.
var ErrNotOwner = errors.New("conversation belongs to another customer")

// Message is one turn of a conversation.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// Conversation is the memory of one conversation id.
type Conversation struct {
	ID           string    `json:"conversation_id"`
	CustomerID   string    `json:"customer_id"`
	StoreID      int64     `json:"store_id"`
	Messages     []Message `json:"messages"`
	MessageCount int       `json:"message_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// MemoryStore keeps conversations in process memory. Entries idle longer than the
// idle window are dropped on every Save. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	convs   map[string]*Conversation
	idle    time.Duration
	nowFunc func() time.Time
}

// NewMemoryStore returns an empty store. A nil clock uses time.Now.
func NewMemoryStore(idle time.Duration, now func() time.Time) *MemoryStore {
	if idle <= 0 {
		idle = DefaultIdle
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{convs: map[string]*Conversation{}, idle: idle, nowFunc: now}
}

// GetOrCreate returns a copy of the conversation, creating an empty one if needed.
func (m *MemoryStore) GetOrCreate(id, customerID string, storeID int64) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[id]; ok {
		if !c.ownedBy(customerID, storeID) {
			return Conversation{}, ErrNotOwner
		}
		return c.clone(), nil
	}
	c := &Conversation{ID: id, CustomerID: customerID, StoreID: storeID, LastUpdated: m.nowFunc()}
	m.convs[id] = c
	return c.clone(), nil
}

// Save stores c, stamps it and evicts idle conversations.
func (m *MemoryStore) Save(c Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	c.LastUpdated = now
	saved := c.clone()
	m.convs[c.ID] = &saved
	for id, conv := range m.convs {
		if now.Sub(conv.LastUpdated) > m.idle {
			delete(m.convs, id)
		}
	}
}

// History returns the messages of a conversation, or nil if there is none.
func (m *MemoryStore) History(id, customerID string, storeID int64) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, nil
	}
	if !c.ownedBy(customerID, storeID) {
		return nil, ErrNotOwner
	}
	return c.clone().Messages, nil
}

// Clear forgets a conversation. Clearing an unknown id is a no-op.
func (m *MemoryStore) Clear(id, customerID string, storeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil
	}
	if !c.ownedBy(customerID, storeID) {
		return ErrNotOwner
	}
	delete(m.convs, id)
	return nil
}

// Len is the number of live conversations.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.convs)
}

func (c *Conversation) clone() Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}

func (c *Conversation) ownedBy(customerID string, storeID int64) bool {
	return c.CustomerID == customerID && c.StoreID == storeID
}
