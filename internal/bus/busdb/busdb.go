// Package busdb implements the bus.Store interface on a SQL database via
// GORM, as an alternative to the filesystem store for deployments that
// already run a database. SQLite (file or :memory:) covers the single-machine
// case; a MySQL-compatible server DSN covers shared setups.
package busdb

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/pulse/internal/bus"
)

// tsLayout mirrors the wire format used by the filesystem store.
const tsLayout = "2006-01-02T15:04:05Z"

// Record is one stored message. The autoincrement ID preserves publish order
// within a partition.
type Record struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Partition string `gorm:"size:16;not null;index"`
	MsgID     string `gorm:"size:64;not null"`
	ToAgent   string `gorm:"size:64;not null;index"`
	Body      string `gorm:"type:text"`
	CreatedAt time.Time
}

// AuditEntry is one append-only audit row, mirroring the filesystem store's
// bus.log line per publish.
type AuditEntry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Body      string `gorm:"type:text"`
	CreatedAt time.Time
}

// DBStore is a bus.Store backed by a GORM connection.
type DBStore struct {
	db *gorm.DB
}

// MySQLDSN builds a DSN for a MySQL-compatible server.
func MySQLDSN(host string, port int, database string) string {
	return fmt.Sprintf("root@tcp(%s:%d)/%s?parseTime=true", host, port, database)
}

// OpenSQLite opens (or creates) a SQLite-backed store at path. Use
// ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*DBStore, error) {
	if path == "" {
		return nil, fmt.Errorf("busdb: path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("busdb: open sqlite %s: %w", path, err)
	}
	return open(db)
}

// OpenMySQL opens a store on a MySQL-compatible server.
func OpenMySQL(host string, port int, database string) (*DBStore, error) {
	db, err := gorm.Open(mysql.Open(MySQLDSN(host, port, database)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("busdb: connect to %s:%d/%s: %w", host, port, database, err)
	}
	return open(db)
}

func open(db *gorm.DB) (*DBStore, error) {
	if err := db.AutoMigrate(&Record{}, &AuditEntry{}); err != nil {
		return nil, fmt.Errorf("busdb: auto-migrate: %w", err)
	}
	return &DBStore{db: db}, nil
}

// Publish assigns ID/TS when missing and inserts the record. The row insert
// is the visibility point; readers never see a partial message.
func (s *DBStore) Publish(p bus.Partition, msg *bus.Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("busdb: message is required")
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

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("busdb: marshal message %s: %w", msg.ID, err)
	}

	rec := Record{
		Partition: string(p),
		MsgID:     msg.ID,
		ToAgent:   msg.To,
		Body:      string(body),
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("busdb: publish to %s: %w", p, err)
	}
	if err := s.db.Create(&AuditEntry{Body: string(body), CreatedAt: time.Now()}).Error; err != nil {
		log.Printf("busdb: audit append failed: %v", err)
	}
	return fmt.Sprintf("%s/%d", p, rec.ID), nil
}

// Consume selects records addressed to recipient or the wildcard in insert
// order and deletes them in the same transaction unless opts.Keep is set.
// The transactional delete gives strict claim semantics: a record claimed
// here is never returned to a racing consumer.
func (s *DBStore) Consume(p bus.Partition, recipient string, opts bus.ConsumeOpts) ([]bus.Message, error) {
	if recipient == "" {
		return nil, fmt.Errorf("busdb: recipient is required")
	}

	var msgs []bus.Message
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// The wildcard recipient claims every record in the partition.
		q := tx.Where("partition = ?", string(p))
		if recipient != bus.Wildcard {
			q = q.Where("to_agent = ? OR to_agent = ?", recipient, bus.Wildcard)
		}
		q = q.Order("id ASC")
		if opts.Limit > 0 {
			q = q.Limit(opts.Limit)
		}
		var recs []Record
		if err := q.Find(&recs).Error; err != nil {
			return fmt.Errorf("busdb: scan %s: %w", p, err)
		}

		var ids []uint
		for _, rec := range recs {
			var m bus.Message
			if err := json.Unmarshal([]byte(rec.Body), &m); err != nil {
				log.Printf("busdb: skipping malformed record %d: %v", rec.ID, err)
				continue
			}
			msgs = append(msgs, m)
			ids = append(ids, rec.ID)
		}

		if !opts.Keep && len(ids) > 0 {
			if err := tx.Delete(&Record{}, ids).Error; err != nil {
				return fmt.Errorf("busdb: remove claimed records: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Stats counts pending records per partition.
func (s *DBStore) Stats() (bus.Stats, error) {
	var st bus.Stats
	for _, p := range bus.Partitions() {
		var n int64
		if err := s.db.Model(&Record{}).Where("partition = ?", string(p)).Count(&n).Error; err != nil {
			return bus.Stats{}, fmt.Errorf("busdb: count %s: %w", p, err)
		}
		switch p {
		case bus.Inbox:
			st.Inbox = int(n)
		case bus.Outbox:
			st.Outbox = int(n)
		case bus.Reviews:
			st.Reviews = int(n)
		}
	}
	return st, nil
}

// Close releases the underlying connection.
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("busdb: close: %w", err)
	}
	return sqlDB.Close()
}
