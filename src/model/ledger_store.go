package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/smartvest/backend/src/models"
	"github.com/username/smartvest/backend/src/portfolio"
)

// LedgerStore loads and persists one user's ledger. Save is a single SQL
// transaction that replaces balance and positions and appends the new
// transaction tail, so a ledger mutation is all-or-nothing: a storage
// failure persists nothing.
//
// Concurrent same-user cycles are serialized through optimistic versioning:
// Find reads the row's version, Save updates only if it is unchanged and
// bumps it. A losing Save returns portfolio.ErrVersionConflict without
// touching anything; Update retries the whole cycle.
type LedgerStore struct {
	db *sql.DB
}

// saveAttempts bounds Update's conflict retries. Each conflict needs another
// writer landing mid-cycle, so the bound is only hit under sustained
// contention on one user.
const saveAttempts = 10

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Find loads the ledger for a user. Returns portfolio.ErrUserNotFound when
// the user does not exist.
func (s *LedgerStore) Find(userID int64) (*portfolio.Ledger, error) {
	ledger := portfolio.NewLedger()

	err := s.db.QueryRow(`SELECT balance, version FROM users WHERE id = ?`, userID).Scan(&ledger.Balance, &ledger.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, portfolio.ErrUserNotFound
		}
		return nil, fmt.Errorf("loading balance for user %d: %w", userID, err)
	}

	rows, err := s.db.Query(`SELECT symbol, quantity, total_cost, avg_price FROM positions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading positions for user %d: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var pos models.Position
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &pos.TotalCost, &pos.AvgPrice); err != nil {
			return nil, fmt.Errorf("scanning position for user %d: %w", userID, err)
		}
		ledger.Positions[pos.Symbol] = &pos
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	txRows, err := s.db.Query(`SELECT payload FROM transactions WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading transactions for user %d: %w", userID, err)
	}
	defer txRows.Close()
	for txRows.Next() {
		var payload []byte
		if err := txRows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning transaction for user %d: %w", userID, err)
		}
		tx, err := models.UnmarshalTransaction(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding transaction for user %d: %w", userID, err)
		}
		ledger.Transactions = append(ledger.Transactions, tx)
	}
	if err := txRows.Err(); err != nil {
		return nil, err
	}

	return ledger, nil
}

// Save persists a mutated ledger: balance and positions are replaced,
// transactions recorded since Find are appended. The transaction log itself
// is append-only; existing rows are never touched. Save only succeeds if the
// row still carries the version Find read; otherwise it returns
// portfolio.ErrVersionConflict and persists nothing.
func (s *LedgerStore) Save(userID int64, ledger *portfolio.Ledger) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning ledger save for user %d: %w", userID, err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.Exec(
		`UPDATE users SET balance = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		ledger.Balance, time.Now().UTC(), userID, ledger.Version,
	)
	if err != nil {
		return fmt.Errorf("saving balance for user %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := dbTx.QueryRow(`SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("checking user %d during save: %w", userID, err)
		}
		if exists == 0 {
			return portfolio.ErrUserNotFound
		}
		return fmt.Errorf("saving ledger for user %d: %w", userID, portfolio.ErrVersionConflict)
	}

	if _, err := dbTx.Exec(`DELETE FROM positions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing positions for user %d: %w", userID, err)
	}
	for _, pos := range ledger.SortedPositions() {
		_, err := dbTx.Exec(
			`INSERT INTO positions (user_id, symbol, quantity, total_cost, avg_price) VALUES (?, ?, ?, ?, ?)`,
			userID, pos.Symbol, pos.Quantity, pos.TotalCost, pos.AvgPrice,
		)
		if err != nil {
			return fmt.Errorf("saving position %s for user %d: %w", pos.Symbol, userID, err)
		}
	}

	for _, tx := range ledger.Appended() {
		payload, err := models.MarshalTransaction(tx)
		if err != nil {
			return fmt.Errorf("encoding transaction for user %d: %w", userID, err)
		}
		_, err = dbTx.Exec(
			`INSERT INTO transactions (user_id, type, payload, created_at) VALUES (?, ?, ?, ?)`,
			userID, tx.Type(), string(payload), tx.Time(),
		)
		if err != nil {
			return fmt.Errorf("appending transaction for user %d: %w", userID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing ledger save for user %d: %w", userID, err)
	}
	ledger.Version++
	return nil
}

// Update runs one read-modify-write cycle: load the ledger, apply fn, save.
// On a version conflict the whole cycle is retried against the fresh state,
// so concurrent mutations of the same user serialize instead of losing
// updates. A cycle whose fn records no transactions is not saved.
func (s *LedgerStore) Update(userID int64, fn func(*portfolio.Ledger) error) (*portfolio.Ledger, error) {
	var err error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		var ledger *portfolio.Ledger
		ledger, err = s.Find(userID)
		if err != nil {
			return nil, err
		}
		if err = fn(ledger); err != nil {
			return nil, err
		}
		if len(ledger.Appended()) == 0 {
			return ledger, nil
		}
		err = s.Save(userID, ledger)
		if err == nil {
			return ledger, nil
		}
		if !errors.Is(err, portfolio.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, err
}
