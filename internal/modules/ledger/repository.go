package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/blumarkets/layers/internal/domain"
)

// ErrDuplicateKey is returned when an idempotency key was already used.
var ErrDuplicateKey = fmt.Errorf("idempotency key already used")

// RepositoryInterface defines ledger persistence operations.
type RepositoryInterface interface {
	Append(entry Entry) (*Entry, error)
	GetByIdempotencyKey(key string) (*Entry, error)
	GetByID(id string) (*Entry, error)
	List(limit int) ([]Entry, error)
	ListByKind(kind domain.ActionKind, limit int) ([]Entry, error)
}

// Repository stores journal entries. Snapshots are packed with msgpack;
// payloads stay JSON so they are inspectable with plain SQL.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// Ensure Repository implements RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new ledger repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "ledger").Logger(),
	}
}

// Append writes a new entry and returns it with its assigned ID. When
// the idempotency key was already used, the original entry is returned
// with ErrDuplicateKey so the caller can reply with the first result.
func (r *Repository) Append(entry Entry) (*Entry, error) {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	beforeBlob, err := msgpack.Marshal(entry.Before)
	if err != nil {
		return nil, fmt.Errorf("failed to pack before snapshot: %w", err)
	}
	afterBlob, err := msgpack.Marshal(entry.After)
	if err != nil {
		return nil, fmt.Errorf("failed to pack after snapshot: %w", err)
	}
	frictionJSON, err := json.Marshal(entry.FrictionCopy)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal friction copy: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO ledger_entries
		 (id, idempotency_key, kind, payload, before_snapshot, after_snapshot, boundary, friction_copy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.IdempotencyKey,
		string(entry.Kind),
		string(payloadJSON),
		beforeBlob,
		afterBlob,
		entry.Boundary.String(),
		string(frictionJSON),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			existing, getErr := r.GetByIdempotencyKey(entry.IdempotencyKey)
			if getErr != nil {
				return nil, getErr
			}
			return existing, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	r.log.Debug().Str("id", entry.ID).Str("kind", string(entry.Kind)).Msg("Ledger entry appended")
	return &entry, nil
}

// GetByIdempotencyKey returns the entry for a key, or nil when unused.
func (r *Repository) GetByIdempotencyKey(key string) (*Entry, error) {
	return r.getOne(`WHERE idempotency_key = ?`, key)
}

// GetByID returns one entry, or nil when it does not exist.
func (r *Repository) GetByID(id string) (*Entry, error) {
	return r.getOne(`WHERE id = ?`, id)
}

// List returns the most recent entries, newest first. ULIDs sort
// lexicographically by creation time.
func (r *Repository) List(limit int) ([]Entry, error) {
	rows, err := r.db.Query(selectClause+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListByKind returns the most recent entries of one kind, newest first.
func (r *Repository) ListByKind(kind domain.ActionKind, limit int) ([]Entry, error) {
	rows, err := r.db.Query(selectClause+` WHERE kind = ? ORDER BY id DESC LIMIT ?`, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", kind, err)
	}
	defer rows.Close()
	return r.collect(rows)
}

const selectClause = `SELECT id, idempotency_key, kind, payload, before_snapshot, after_snapshot, boundary, friction_copy, created_at
	FROM ledger_entries`

func (r *Repository) getOne(where string, arg interface{}) (*Entry, error) {
	row := r.db.QueryRow(selectClause+" "+where, arg)
	entry, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scan(row rowScanner) (*Entry, error) {
	var e Entry
	var kind, payloadJSON, boundaryName, frictionJSON, createdAt string
	var beforeBlob, afterBlob []byte
	if err := row.Scan(&e.ID, &e.IdempotencyKey, &kind, &payloadJSON, &beforeBlob, &afterBlob, &boundaryName, &frictionJSON, &createdAt); err != nil {
		return nil, err
	}

	e.Kind = domain.ActionKind(kind)
	payload, err := decodePayload(e.Kind, []byte(payloadJSON))
	if err != nil {
		return nil, err
	}
	e.Payload = payload

	if err := msgpack.Unmarshal(beforeBlob, &e.Before); err != nil {
		return nil, fmt.Errorf("failed to unpack before snapshot: %w", err)
	}
	if err := msgpack.Unmarshal(afterBlob, &e.After); err != nil {
		return nil, fmt.Errorf("failed to unpack after snapshot: %w", err)
	}
	if err := e.Boundary.UnmarshalJSON([]byte(`"` + boundaryName + `"`)); err != nil {
		return nil, fmt.Errorf("bad boundary %q: %w", boundaryName, err)
	}
	if err := json.Unmarshal([]byte(frictionJSON), &e.FrictionCopy); err != nil {
		return nil, fmt.Errorf("bad friction copy: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = ts
	return &e, nil
}

func (r *Repository) collect(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// decodePayload revives a payload into its concrete type by kind.
func decodePayload(kind domain.ActionKind, data []byte) (domain.ActionPayload, error) {
	var err error
	switch kind {
	case domain.ActionAddFunds:
		var p domain.AddFundsPayload
		err = json.Unmarshal(data, &p)
		return p, err
	case domain.ActionTrade:
		var p domain.TradePayload
		err = json.Unmarshal(data, &p)
		return p, err
	case domain.ActionRebalance:
		var p domain.RebalancePayload
		err = json.Unmarshal(data, &p)
		return p, err
	case domain.ActionBorrow:
		var p domain.BorrowPayload
		err = json.Unmarshal(data, &p)
		return p, err
	case domain.ActionRepay:
		var p domain.RepayPayload
		err = json.Unmarshal(data, &p)
		return p, err
	case domain.ActionProtect:
		var p domain.ProtectPayload
		err = json.Unmarshal(data, &p)
		return p, err
	}
	return nil, fmt.Errorf("unknown action kind %q", kind)
}
