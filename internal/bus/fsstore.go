package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// tsLayout is the wire format for message timestamps.
const tsLayout = "2006-01-02T15:04:05Z"

// auditLog is the append-only publish log, relative to the store root.
const auditLog = "logs/bus.log"

// FSStore is a filesystem-backed Store. Each message is one JSON file named
// <ts>__<seq>__<id>.json under its partition directory, so a lexicographic
// directory scan yields publish order. Records become visible via rename,
// which is atomic on POSIX filesystems.
type FSStore struct {
	root string
	seq  atomic.Uint64 // orders same-second publishes within this process
	logM sync.Mutex
}

// Open creates the partition and log directories under root and returns a
// ready store.
func Open(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("bus: root is required")
	}
	for _, p := range Partitions() {
		if err := os.MkdirAll(filepath.Join(root, string(p)), 0o755); err != nil {
			return nil, fmt.Errorf("bus: open %s: %w", root, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, filepath.Dir(auditLog)), 0o755); err != nil {
		return nil, fmt.Errorf("bus: open %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

// Root returns the store's base directory.
func (s *FSStore) Root() string { return s.root }

// Publish assigns ID/TS when missing, writes the record to a temp file,
// renames it into the partition, and appends an audit line.
func (s *FSStore) Publish(p Partition, msg *Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("bus: message is required")
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.TS == "" {
		msg.TS = time.Now().UTC().Format(tsLayout)
	}

	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("bus: marshal message %s: %w", msg.ID, err)
	}

	dir := filepath.Join(s.root, string(p))
	name := fmt.Sprintf("%s__%09d__%s.json", msg.TS, s.seq.Add(1), msg.ID)
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".pub-*")
	if err != nil {
		return "", fmt.Errorf("bus: publish to %s: %w", p, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("bus: publish to %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("bus: publish to %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("bus: publish to %s: %w", p, err)
	}

	if err := s.appendAudit(msg); err != nil {
		log.Printf("bus: audit log append failed: %v", err)
	}
	return final, nil
}

// Consume scans partition p in record-name order, claims every record
// addressed to recipient or the wildcard, and deletes claimed records unless
// opts.Keep is set. A record that vanished before our delete was claimed by a
// racing consumer; the removal is treated as a no-op and the message is still
// returned, so delivery is at-most-once, not exactly-once.
func (s *FSStore) Consume(p Partition, recipient string, opts ConsumeOpts) ([]Message, error) {
	if recipient == "" {
		return nil, fmt.Errorf("bus: recipient is required")
	}

	dir := filepath.Join(s.root, string(p))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("bus: scan %s: %w", p, err)
	}

	var claimed []string
	var msgs []Message
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // claimed by a racing consumer
			}
			log.Printf("bus: skipping unreadable record %s: %v", e.Name(), err)
			continue
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Printf("bus: skipping malformed record %s: %v", e.Name(), err)
			continue
		}
		if !m.AddressedTo(recipient) {
			continue
		}
		msgs = append(msgs, m)
		claimed = append(claimed, path)
		if opts.Limit > 0 && len(msgs) >= opts.Limit {
			break
		}
	}

	if !opts.Keep {
		for _, path := range claimed {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("bus: remove %s: %w", filepath.Base(path), err)
			}
		}
	}
	return msgs, nil
}

// Stats counts pending records in each partition.
func (s *FSStore) Stats() (Stats, error) {
	var st Stats
	for _, p := range Partitions() {
		n, err := s.countRecords(p)
		if err != nil {
			return Stats{}, err
		}
		switch p {
		case Inbox:
			st.Inbox = n
		case Outbox:
			st.Outbox = n
		case Reviews:
			st.Reviews = n
		}
	}
	return st, nil
}

func (s *FSStore) countRecords(p Partition) (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(p)))
	if err != nil {
		return 0, fmt.Errorf("bus: scan %s: %w", p, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the filesystem store.
func (s *FSStore) Close() error { return nil }

func (s *FSStore) appendAudit(msg *Message) error {
	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.logM.Lock()
	defer s.logM.Unlock()
	f, err := os.OpenFile(filepath.Join(s.root, auditLog), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}
