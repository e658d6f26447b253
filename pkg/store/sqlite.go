package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/events"
	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/reliability"
)

// SQLite persists commitments, participants, reliability scores and the
// notification outbox in a single-file database. Timestamps are stored as
// unix microseconds so deadline comparisons stay exact in SQL.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// The driver serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return NewSQLite(db)
}

// NewSQLite wraps an existing handle and runs migrations.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS commitments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		organizer TEXT NOT NULL,
		amount_micro INTEGER NOT NULL,
		target_participants INTEGER NOT NULL,
		deadline INTEGER NOT NULL,
		status TEXT NOT NULL,
		escrow_address TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		released_micro INTEGER NOT NULL DEFAULT 0,
		release_tx_ref TEXT NOT NULL DEFAULT '',
		released_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS participants (
		commitment_id INTEGER NOT NULL,
		phone TEXT NOT NULL,
		status TEXT NOT NULL,
		invited_at INTEGER NOT NULL,
		locked_at INTEGER,
		lock_tx_ref TEXT NOT NULL DEFAULT '',
		refund_tx_ref TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (commitment_id, phone)
	);
	CREATE INDEX IF NOT EXISTS idx_participants_phone ON participants(phone);
	CREATE INDEX IF NOT EXISTS idx_commitments_due ON commitments(status, deadline);
	CREATE TABLE IF NOT EXISTS reliability_scores (
		identity TEXT PRIMARY KEY,
		score INTEGER NOT NULL,
		fulfilled INTEGER NOT NULL,
		missed INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		recipient TEXT NOT NULL,
		payload JSON NOT NULL,
		occurred_at INTEGER NOT NULL,
		done INTEGER NOT NULL DEFAULT 0
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Close releases the underlying handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const sqliteCommitmentColumns = `id, title, organizer, amount_micro, target_participants, deadline,
	status, escrow_address, created_at, released_micro, release_tx_ref, released_at`

func (s *SQLite) CreateCommitment(ctx context.Context, c *commitment.Commitment) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO commitments (title, organizer, amount_micro, target_participants, deadline, status, escrow_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Title, string(c.Organizer), c.AmountPerPerson.Micro, c.TargetParticipants,
		c.Deadline.UnixMicro(), string(c.Status), c.EscrowAddress, c.CreatedAt.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("insert commitment: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLite) GetCommitment(ctx context.Context, id int64) (*commitment.Commitment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCommitmentColumns+` FROM commitments WHERE id = ?`, id)
	return scanCommitment(row)
}

func (s *SQLite) BindEscrow(ctx context.Context, id int64, address string) error {
	var current string
	err := s.db.QueryRowContext(ctx, `SELECT escrow_address FROM commitments WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return commitment.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load escrow binding: %w", err)
	}
	if current != "" && current != address {
		return commitment.ErrEscrowAlreadyBound
	}
	_, err = s.db.ExecContext(ctx, `UPDATE commitments SET escrow_address = ? WHERE id = ?`, address, id)
	return err
}

func (s *SQLite) TransitionStatus(ctx context.Context, id int64, from, to commitment.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM commitments WHERE id = ?`, id).Scan(&exists); err == sql.ErrNoRows {
		return commitment.ErrNotFound
	}
	return commitment.ErrStatusConflict
}

func (s *SQLite) RecordRelease(ctx context.Context, id int64, rr commitment.ReleaseResult, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET released_micro = ?, release_tx_ref = ?, released_at = ? WHERE id = ?`,
		rr.ReleasedAmount.Micro, string(rr.ReleaseTxRef), at.UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("record release: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commitment.ErrNotFound
	}
	return nil
}

func (s *SQLite) AddParticipant(ctx context.Context, p *commitment.Participant) error {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM commitments WHERE id = ?`, p.CommitmentID).Scan(&exists); err == sql.ErrNoRows {
		return commitment.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("check commitment: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM participants WHERE commitment_id = ? AND phone = ?`,
		p.CommitmentID, string(p.Phone)).Scan(&exists); err == nil {
		return commitment.ErrDuplicate
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("check participant: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (commitment_id, phone, status, invited_at, lock_tx_ref, refund_tx_ref)
		VALUES (?, ?, ?, ?, '', '')`,
		p.CommitmentID, string(p.Phone), string(p.Status), p.InvitedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *SQLite) GetParticipant(ctx context.Context, id int64, phone identity.Phone) (*commitment.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT commitment_id, phone, status, invited_at, locked_at, lock_tx_ref, refund_tx_ref
		FROM participants WHERE commitment_id = ? AND phone = ?`, id, string(phone))
	return scanParticipant(row)
}

func (s *SQLite) ListParticipants(ctx context.Context, id int64) ([]commitment.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT commitment_id, phone, status, invited_at, locked_at, lock_tx_ref, refund_tx_ref
		FROM participants WHERE commitment_id = ? ORDER BY invited_at, phone`, id)
	if err != nil {
		return nil, err
	}
	return collectParticipants(rows)
}

func (s *SQLite) UpdateParticipant(ctx context.Context, p *commitment.Participant) error {
	var lockedAt any
	if p.LockedAt != nil {
		lockedAt = p.LockedAt.UnixMicro()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE participants SET status = ?, locked_at = ?, lock_tx_ref = ?, refund_tx_ref = ?
		WHERE commitment_id = ? AND phone = ?`,
		string(p.Status), lockedAt, string(p.LockTxRef), string(p.RefundTxRef),
		p.CommitmentID, string(p.Phone))
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commitment.ErrParticipantNotFound
	}
	return nil
}

func (s *SQLite) ListByParticipant(ctx context.Context, phone identity.Phone) ([]commitment.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT commitment_id, phone, status, invited_at, locked_at, lock_tx_ref, refund_tx_ref
		FROM participants WHERE phone = ? ORDER BY invited_at DESC`, string(phone))
	if err != nil {
		return nil, err
	}
	return collectParticipants(rows)
}

func (s *SQLite) ListDueOpen(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM commitments WHERE status = ? AND deadline <= ? ORDER BY id`,
		string(commitment.StatusOpen), asOf.UnixMicro())
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (s *SQLite) ListUnrefunded(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id FROM commitments c
		JOIN participants p ON p.commitment_id = c.id
		WHERE c.status = ? AND p.status = ?
		ORDER BY c.id`,
		string(commitment.StatusCancelled), string(commitment.ParticipantLocked))
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// GetScore implements reliability.Store.
func (s *SQLite) GetScore(ctx context.Context, id identity.Phone) (reliability.Score, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identity, score, fulfilled, missed, updated_at
		FROM reliability_scores WHERE identity = ?`, string(id))
	var sc reliability.Score
	var ident string
	var updated int64
	err := row.Scan(&ident, &sc.Score, &sc.Fulfilled, &sc.Missed, &updated)
	if err == sql.ErrNoRows {
		return reliability.Score{}, false, nil
	}
	if err != nil {
		return reliability.Score{}, false, fmt.Errorf("load score: %w", err)
	}
	sc.Identity = identity.Phone(ident)
	sc.UpdatedAt = time.UnixMicro(updated).UTC()
	return sc, true, nil
}

// PutScore implements reliability.Store.
func (s *SQLite) PutScore(ctx context.Context, sc reliability.Score) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reliability_scores (identity, score, fulfilled, missed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (identity) DO UPDATE SET
			score = excluded.score,
			fulfilled = excluded.fulfilled,
			missed = excluded.missed,
			updated_at = excluded.updated_at`,
		string(sc.Identity), sc.Score, sc.Fulfilled, sc.Missed, sc.UpdatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("persist score: %w", err)
	}
	return nil
}

// Schedule implements events.OutboxStore.
func (s *SQLite) Schedule(ctx context.Context, ev *events.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outbox (id, kind, recipient, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), string(ev.Recipient), string(payload), ev.OccurredAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("schedule event: %w", err)
	}
	return nil
}

// Pending implements events.OutboxStore.
func (s *SQLite) Pending(ctx context.Context, limit int) ([]*events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, recipient, payload, occurred_at
		FROM outbox WHERE done = 0 ORDER BY occurred_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*events.Event
	for rows.Next() {
		var ev events.Event
		var kind, recipient, payload string
		var occurred int64
		if err := rows.Scan(&ev.ID, &kind, &recipient, &payload, &occurred); err != nil {
			return nil, err
		}
		ev.Kind = events.Kind(kind)
		ev.Recipient = identity.Phone(recipient)
		ev.OccurredAt = time.UnixMicro(occurred).UTC()
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", ev.ID, err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// MarkDone implements events.OutboxStore.
func (s *SQLite) MarkDone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE outbox SET done = 1 WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommitment(row rowScanner) (*commitment.Commitment, error) {
	var c commitment.Commitment
	var organizer, status, txRef string
	var deadline, created int64
	var releasedAt sql.NullInt64
	err := row.Scan(&c.ID, &c.Title, &organizer, &c.AmountPerPerson.Micro, &c.TargetParticipants,
		&deadline, &status, &c.EscrowAddress, &created, &c.ReleasedAmount.Micro, &txRef, &releasedAt)
	if err == sql.ErrNoRows {
		return nil, commitment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan commitment: %w", err)
	}
	c.Organizer = identity.Phone(organizer)
	c.Status = commitment.Status(status)
	c.ReleaseTxRef = chain.TxRef(txRef)
	c.Deadline = time.UnixMicro(deadline).UTC()
	c.CreatedAt = time.UnixMicro(created).UTC()
	if releasedAt.Valid {
		t := time.UnixMicro(releasedAt.Int64).UTC()
		c.ReleasedAt = &t
	}
	return &c, nil
}

func scanParticipant(row rowScanner) (*commitment.Participant, error) {
	var p commitment.Participant
	var phone, status, lockRef, refundRef string
	var invited int64
	var lockedAt sql.NullInt64
	err := row.Scan(&p.CommitmentID, &phone, &status, &invited, &lockedAt, &lockRef, &refundRef)
	if err == sql.ErrNoRows {
		return nil, commitment.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	p.Phone = identity.Phone(phone)
	p.Status = commitment.ParticipantStatus(status)
	p.LockTxRef = chain.TxRef(lockRef)
	p.RefundTxRef = chain.TxRef(refundRef)
	p.InvitedAt = time.UnixMicro(invited).UTC()
	if lockedAt.Valid {
		t := time.UnixMicro(lockedAt.Int64).UTC()
		p.LockedAt = &t
	}
	return &p, nil
}

func collectParticipants(rows *sql.Rows) ([]commitment.Participant, error) {
	defer func() { _ = rows.Close() }()
	var out []commitment.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer func() { _ = rows.Close() }()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
