// Package bus provides the durable mailbox agents communicate through.
package bus

import "fmt"

// Partition names a lifecycle stage within the mailbox.
type Partition string

const (
	// Inbox holds task messages awaiting an agent.
	Inbox Partition = "inbox"
	// Outbox holds result messages awaiting the manager.
	Outbox Partition = "outbox"
	// Reviews holds messages awaiting approval routing.
	Reviews Partition = "reviews"
)

// Partitions lists every partition a store must provide.
func Partitions() []Partition {
	return []Partition{Inbox, Outbox, Reviews}
}

// Message type discriminators.
const (
	TypeCollect = "collect"
	TypeResult  = "result"
)

// Wildcard is the recipient matched by every consumer.
const Wildcard = "*"

// ManagerID is the well-known identity of the orchestrator.
const ManagerID = "manager"

// CollectPayload is the body of a collect task.
type CollectPayload struct {
	Platform       string  `json:"platform"`
	Window         string  `json:"window"`
	MinCredibility float64 `json:"min_credibility,omitempty"`
}

// Signals flags notable properties of a news item.
type Signals struct {
	Release bool `json:"release,omitempty"`
}

// ResultItem is one collected datum inside a result message. News collectors
// fill the title/url/credibility fields; repository collectors fill the
// repo/stars/prs/releases fields. Unused fields are omitted on the wire.
type ResultItem struct {
	Title       string   `json:"title,omitempty"`
	URL         string   `json:"url,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Credibility *float64 `json:"credibility,omitempty"`
	Signals     Signals  `json:"signals,omitempty"`

	Repo       string `json:"repo,omitempty"`
	StarsDelta int    `json:"stars_delta,omitempty"`
	PRsMerged  int    `json:"prs_merged,omitempty"`
	Releases   int    `json:"releases,omitempty"`
}

// Message is the unit of communication on the bus. ID and TS are assigned at
// publish time when absent and immutable afterwards.
type Message struct {
	ID     string `json:"id,omitempty"`
	TS     string `json:"ts,omitempty"`
	From   string `json:"from"`
	To     string `json:"to"`
	Type   string `json:"type"`
	Topic  string `json:"topic,omitempty"`
	Thread string `json:"thread,omitempty"`
	Status string `json:"status,omitempty"`

	Payload *CollectPayload `json:"payload,omitempty"`
	Items   []ResultItem    `json:"items,omitempty"`

	P2P              bool `json:"p2p,omitempty"`
	RequiresApproval bool `json:"requires_manager_approval,omitempty"`
}

// ConsumeOpts holds optional parameters for consuming messages.
type ConsumeOpts struct {
	Keep  bool // leave records in place (non-destructive peek)
	Limit int  // max messages to return; 0 means no limit
}

// Stats reports the number of pending records per partition.
type Stats struct {
	Inbox   int `json:"inbox"`
	Outbox  int `json:"outbox"`
	Reviews int `json:"reviews"`
}

// Store is a durable mailbox. Implementations must make a published message
// visible atomically (a consumer never observes a half-written record) and
// must treat removal of an already-removed record as a benign no-op, so two
// consumers racing on the same record settle to at-most-once delivery.
type Store interface {
	// Publish persists msg under partition p, assigning ID and TS when
	// missing, and returns the record's location.
	Publish(p Partition, msg *Message) (string, error)

	// Consume returns messages in partition p addressed to recipient or to
	// the wildcard, in publish order, and removes them unless opts.Keep is
	// set. Messages addressed to other recipients are left untouched.
	Consume(p Partition, recipient string, opts ConsumeOpts) ([]Message, error)

	// Stats counts pending records per partition.
	Stats() (Stats, error)

	Close() error
}

// Validate checks the fields every published message must carry.
func (m *Message) Validate() error {
	if m.From == "" {
		return fmt.Errorf("bus: from is required")
	}
	if m.To == "" {
		return fmt.Errorf("bus: to is required")
	}
	if m.Type == "" {
		return fmt.Errorf("bus: type is required")
	}
	return nil
}

// AddressedTo reports whether the message may be claimed by recipient.
// Messages to the wildcard may be claimed by anyone, and the manager's
// approval gate consumes as the wildcard to claim the whole partition.
func (m *Message) AddressedTo(recipient string) bool {
	return recipient == Wildcard || m.To == recipient || m.To == Wildcard
}
