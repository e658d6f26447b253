package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/events"
	"github.com/Mindburn-Labs/pact/pkg/identity"
	"github.com/Mindburn-Labs/pact/pkg/reliability"
)

const pqUniqueViolation = "23505"

// Postgres is the production persistence backend. Schema mirrors the
// SQLite layout; timestamps are unix microseconds here too so both
// backends share scan helpers.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects using a lib/pq DSN and runs migrations.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgres(db)
}

// NewPostgres wraps an existing handle and runs migrations.
func NewPostgres(db *sql.DB) (*Postgres, error) {
	s := &Postgres{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS commitments (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		organizer TEXT NOT NULL,
		amount_micro BIGINT NOT NULL,
		target_participants INT NOT NULL,
		deadline BIGINT NOT NULL,
		status TEXT NOT NULL,
		escrow_address TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		released_micro BIGINT NOT NULL DEFAULT 0,
		release_tx_ref TEXT NOT NULL DEFAULT '',
		released_at BIGINT
	);
	CREATE TABLE IF NOT EXISTS participants (
		commitment_id BIGINT NOT NULL REFERENCES commitments(id),
		phone TEXT NOT NULL,
		status TEXT NOT NULL,
		invited_at BIGINT NOT NULL,
		locked_at BIGINT,
		lock_tx_ref TEXT NOT NULL DEFAULT '',
		refund_tx_ref TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (commitment_id, phone)
	);
	CREATE INDEX IF NOT EXISTS idx_participants_phone ON participants(phone);
	CREATE INDEX IF NOT EXISTS idx_commitments_due ON commitments(status, deadline);
	CREATE TABLE IF NOT EXISTS reliability_scores (
		identity TEXT PRIMARY KEY,
		score INT NOT NULL,
		fulfilled INT NOT NULL,
		missed INT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		recipient TEXT NOT NULL,
		payload JSONB NOT NULL,
		occurred_at BIGINT NOT NULL,
		done BOOLEAN NOT NULL DEFAULT FALSE
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Close releases the underlying handle.
func (s *Postgres) Close() error {
	return s.db.Close()
}

func (s *Postgres) CreateCommitment(ctx context.Context, c *commitment.Commitment) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO commitments (title, organizer, amount_micro, target_participants, deadline, status, escrow_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		c.Title, string(c.Organizer), c.AmountPerPerson.Micro, c.TargetParticipants,
		c.Deadline.UnixMicro(), string(c.Status), c.EscrowAddress, c.CreatedAt.UnixMicro()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert commitment: %w", err)
	}
	return id, nil
}

func (s *Postgres) GetCommitment(ctx context.Context, id int64) (*commitment.Commitment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, organizer, amount_micro, target_participants, deadline,
		       status, escrow_address, created_at, released_micro, release_tx_ref, released_at
		FROM commitments WHERE id = $1`, id)
	return scanCommitment(row)
}

func (s *Postgres) BindEscrow(ctx context.Context, id int64, address string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE commitments SET escrow_address = $1
		WHERE id = $2 AND (escrow_address = '' OR escrow_address = $1)`, address, id)
	if err != nil {
		return fmt.Errorf("bind escrow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM commitments WHERE id = $1`, id).Scan(&exists); err == sql.ErrNoRows {
		return commitment.ErrNotFound
	}
	return commitment.ErrEscrowAlreadyBound
}

func (s *Postgres) TransitionStatus(ctx context.Context, id int64, from, to commitment.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM commitments WHERE id = $1`, id).Scan(&exists); err == sql.ErrNoRows {
		return commitment.ErrNotFound
	}
	return commitment.ErrStatusConflict
}

func (s *Postgres) RecordRelease(ctx context.Context, id int64, rr commitment.ReleaseResult, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE commitments SET released_micro = $1, release_tx_ref = $2, released_at = $3
		WHERE id = $4`,
		rr.ReleasedAmount.Micro, string(rr.ReleaseTxRef), at.UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("record release: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commitment.ErrNotFound
	}
	return nil
}

func (s *Postgres) AddParticipant(ctx context.Context, p *commitment.Participant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (commitment_id, phone, status, invited_at)
		VALUES ($1, $2, $3, $4)`,
		p.CommitmentID, string(p.Phone), string(p.Status), p.InvitedAt.UnixMicro())
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return commitment.ErrDuplicate
		case "23503": // foreign_key_violation: unknown commitment
			return commitment.ErrNotFound
		}
	}
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *Postgres) GetParticipant(ctx context.Context, id int64, phone identity.Phone) (*commitment.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT commitment_id, phone, status, invited_at, locked_at, lock_tx_ref, refund_tx_ref
		FROM participants WHERE commitment_id = $1 AND phone = $2`, id, string(phone))
	return scanParticipant(row)
}

func (s *Postgres) ListParticipants(ctx context.Context, id int64) ([]commitment.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT commitment_id, phone, status, invited_at, locked_at, lock_tx_ref, refund_tx_ref
		FROM participants WHERE commitment_id = $1 ORDER BY invited_at, phone`, id)
	if err != nil {
		return nil, err
	}
	return collectParticipants(rows)
}

func (s *Postgres) UpdateParticipant(ctx context.Context, p *commitment.Participant) error {
	var lockedAt any
	if p.LockedAt != nil {
		lockedAt = p.LockedAt.UnixMicro()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE participants SET status = $1, locked_at = $2, lock_tx_ref = $3, refund_tx_ref = $4
		WHERE commitment_id = $5 AND phone = $6`,
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

func (s *Postgres) ListByParticipant(ctx context.Context, phone identity.Phone) ([]commitment.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT commitment_id, phone, status, invited_at, locked_at, lock_tx_ref, refund_tx_ref
		FROM participants WHERE phone = $1 ORDER BY invited_at DESC`, string(phone))
	if err != nil {
		return nil, err
	}
	return collectParticipants(rows)
}

func (s *Postgres) ListDueOpen(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM commitments WHERE status = $1 AND deadline <= $2 ORDER BY id`,
		string(commitment.StatusOpen), asOf.UnixMicro())
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (s *Postgres) ListUnrefunded(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id FROM commitments c
		JOIN participants p ON p.commitment_id = c.id
		WHERE c.status = $1 AND p.status = $2
		ORDER BY c.id`,
		string(commitment.StatusCancelled), string(commitment.ParticipantLocked))
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// GetScore implements reliability.Store.
func (s *Postgres) GetScore(ctx context.Context, id identity.Phone) (reliability.Score, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identity, score, fulfilled, missed, updated_at
		FROM reliability_scores WHERE identity = $1`, string(id))
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
func (s *Postgres) PutScore(ctx context.Context, sc reliability.Score) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reliability_scores (identity, score, fulfilled, missed, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity) DO UPDATE SET
			score = EXCLUDED.score,
			fulfilled = EXCLUDED.fulfilled,
			missed = EXCLUDED.missed,
			updated_at = EXCLUDED.updated_at`,
		string(sc.Identity), sc.Score, sc.Fulfilled, sc.Missed, sc.UpdatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("persist score: %w", err)
	}
	return nil
}

// Schedule implements events.OutboxStore.
func (s *Postgres) Schedule(ctx context.Context, ev *events.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outbox (id, kind, recipient, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, string(ev.Kind), string(ev.Recipient), string(payload), ev.OccurredAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("schedule event: %w", err)
	}
	return nil
}

// Pending implements events.OutboxStore.
func (s *Postgres) Pending(ctx context.Context, limit int) ([]*events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, recipient, payload, occurred_at
		FROM outbox WHERE NOT done ORDER BY occurred_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*events.Event
	for rows.Next() {
		var ev events.Event
		var kind, recipient string
		var payload []byte
		var occurred int64
		if err := rows.Scan(&ev.ID, &kind, &recipient, &payload, &occurred); err != nil {
			return nil, err
		}
		ev.Kind = events.Kind(kind)
		ev.Recipient = identity.Phone(recipient)
		ev.OccurredAt = time.UnixMicro(occurred).UTC()
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", ev.ID, err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// MarkDone implements events.OutboxStore.
func (s *Postgres) MarkDone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE outbox SET done = TRUE WHERE id = $1`, id)
	return err
}
