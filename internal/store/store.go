// Package store persists a completed archive parse into SQLite, for
// callers that want to query results later rather than re-parsing the
// archive on every run. Schema and migration style follow the same
// migrate-then-upsert shape the teacher's contact store uses.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Technical-1/email-archive-parser/internal/archive"
)

// itemsDelimiter separates PurchaseResult.Items entries within a single
// SQLite TEXT column; chosen to avoid collision with ordinary item text.
const itemsDelimiter = "\x1f"

// Store manages a single SQLite database holding one archive's parse
// results.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (creating if necessary) a SQLite database at dbPath
// and ensures its schema is current.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS emails (
			message_id TEXT PRIMARY KEY,
			subject TEXT,
			sender TEXT,
			sender_name TEXT,
			date TEXT,
			folder_id TEXT,
			thread_id TEXT,
			has_attachments INTEGER NOT NULL DEFAULT 0,
			size INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_emails_sender ON emails(sender);
		CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date);

		CREATE TABLE IF NOT EXISTS contacts (
			email TEXT PRIMARY KEY,
			display_name TEXT,
			email_count INTEGER NOT NULL DEFAULT 0,
			first_seen TEXT,
			last_seen TEXT
		);

		CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_name TEXT NOT NULL,
			service_type TEXT,
			domain TEXT,
			confidence INTEGER NOT NULL,
			signup_date TEXT,
			signup_email_id TEXT,
			email_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS purchases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			merchant TEXT NOT NULL,
			category TEXT,
			amount REAL NOT NULL DEFAULT 0,
			currency TEXT,
			purchase_date TEXT,
			order_number TEXT,
			items TEXT,
			confidence INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_name TEXT NOT NULL,
			category TEXT,
			monthly_amount REAL NOT NULL DEFAULT 0,
			currency TEXT,
			frequency TEXT,
			last_renewal_date TEXT,
			is_active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS newsletters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_email TEXT NOT NULL,
			sender_name TEXT,
			category TEXT,
			email_count INTEGER NOT NULL DEFAULT 0,
			frequency TEXT,
			unsubscribe_link TEXT,
			last_email_date TEXT
		);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult persists every part of a ParseResult in one transaction:
// emails, rolled-up contacts, and whichever detector aggregates were
// populated. Calling SaveResult more than once against the same
// database appends rows rather than replacing them — callers that want
// a fresh database per run should point NewStore at a new path.
func (s *Store) SaveResult(result *archive.ParseResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveEmails(tx, result); err != nil {
		return err
	}
	if err := saveContacts(tx, result); err != nil {
		return err
	}
	if err := saveAccounts(tx, result); err != nil {
		return err
	}
	if err := savePurchases(tx, result); err != nil {
		return err
	}
	if err := saveSubscriptions(tx, result); err != nil {
		return err
	}
	if err := saveNewsletters(tx, result); err != nil {
		return err
	}

	return tx.Commit()
}

func saveEmails(tx *sql.Tx, result *archive.ParseResult) error {
	stmt, err := tx.Prepare(`
		INSERT INTO emails (message_id, subject, sender, sender_name, date, folder_id, thread_id, has_attachments, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			subject = excluded.subject, sender = excluded.sender, sender_name = excluded.sender_name,
			date = excluded.date, folder_id = excluded.folder_id, thread_id = excluded.thread_id,
			has_attachments = excluded.has_attachments, size = excluded.size
	`)
	if err != nil {
		return fmt.Errorf("prepare emails insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range result.Emails {
		attachments := 0
		if e.HasAttachments {
			attachments = 1
		}
		if _, err := stmt.Exec(e.MessageID, e.Subject, e.Sender, e.SenderName, e.Date, e.FolderID, e.ThreadID, attachments, e.Size); err != nil {
			return fmt.Errorf("insert email %s: %w", e.MessageID, err)
		}
	}
	return nil
}

func saveContacts(tx *sql.Tx, result *archive.ParseResult) error {
	stmt, err := tx.Prepare(`
		INSERT INTO contacts (email, display_name, email_count, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			display_name = excluded.display_name, email_count = excluded.email_count,
			first_seen = excluded.first_seen, last_seen = excluded.last_seen
	`)
	if err != nil {
		return fmt.Errorf("prepare contacts insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range result.Contacts {
		if _, err := stmt.Exec(c.Email, c.DisplayName, c.EmailCount, c.FirstSeen, c.LastSeen); err != nil {
			return fmt.Errorf("insert contact %s: %w", c.Email, err)
		}
	}
	return nil
}

func saveAccounts(tx *sql.Tx, result *archive.ParseResult) error {
	stmt, err := tx.Prepare(`
		INSERT INTO accounts (service_name, service_type, domain, confidence, signup_date, signup_email_id, email_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare accounts insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range result.Accounts {
		if _, err := stmt.Exec(a.ServiceName, string(a.ServiceType), a.Domain, a.Confidence, a.SignupDate, a.SignupEmailID, a.EmailCount); err != nil {
			return fmt.Errorf("insert account %s: %w", a.ServiceName, err)
		}
	}
	return nil
}

func savePurchases(tx *sql.Tx, result *archive.ParseResult) error {
	stmt, err := tx.Prepare(`
		INSERT INTO purchases (merchant, category, amount, currency, purchase_date, order_number, items, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare purchases insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range result.Purchases {
		items := strings.Join(p.Items, itemsDelimiter)
		if _, err := stmt.Exec(p.Merchant, p.Category, p.Amount, p.Currency, p.PurchaseDate, p.OrderNumber, items, p.Confidence); err != nil {
			return fmt.Errorf("insert purchase %s: %w", p.Merchant, err)
		}
	}
	return nil
}

func saveSubscriptions(tx *sql.Tx, result *archive.ParseResult) error {
	stmt, err := tx.Prepare(`
		INSERT INTO subscriptions (service_name, category, monthly_amount, currency, frequency, last_renewal_date, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare subscriptions insert: %w", err)
	}
	defer stmt.Close()

	for _, sub := range result.Subscriptions {
		isActive := 0
		if sub.IsActive {
			isActive = 1
		}
		if _, err := stmt.Exec(sub.ServiceName, sub.Category, sub.MonthlyAmount, sub.Currency, sub.Frequency, sub.LastRenewalDate, isActive); err != nil {
			return fmt.Errorf("insert subscription %s: %w", sub.ServiceName, err)
		}
	}
	return nil
}

func saveNewsletters(tx *sql.Tx, result *archive.ParseResult) error {
	stmt, err := tx.Prepare(`
		INSERT INTO newsletters (sender_email, sender_name, category, email_count, frequency, unsubscribe_link, last_email_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare newsletters insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range result.Newsletters {
		if _, err := stmt.Exec(n.SenderEmail, n.SenderName, string(n.Category), n.EmailCount, n.Frequency, n.UnsubscribeLink, n.LastEmailDate); err != nil {
			return fmt.Errorf("insert newsletter %s: %w", n.SenderEmail, err)
		}
	}
	return nil
}

// EmailCount returns the number of rows in the emails table, mainly
// for smoke-testing that a save actually landed.
func (s *Store) EmailCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM emails`).Scan(&n)
	return n, err
}
