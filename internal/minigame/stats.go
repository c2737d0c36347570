package minigame

import (
	"context"
	"fmt"

	"guildkeeper/internal/ledger"
)

// Stats aggregates a user's capture/duel history from the transaction
// log, backing the "minigame stats" command (SPEC_FULL.md §10).
type Stats struct {
	CaptureWins   int
	CaptureLosses int
	DuelWins      int
	DuelLosses    int
	NetCoinFlow   float64
}

// Stats computes win/loss counts and net coin flow for (guild, user)
// across every capture and duel transaction on record.
func (e *Engine) Stats(ctx context.Context, guild, user string) (*Stats, error) {
	rows, err := e.store.DB().QueryContext(ctx, `SELECT kind, amount FROM transactions
		WHERE guild = ? AND user = ? AND currency = ? AND kind IN (?, ?, ?)`,
		guild, user, string(ledger.CurrencyCoins),
		string(ledger.KindCapture), string(ledger.KindDuelWager), string(ledger.KindDuelPayout))
	if err != nil {
		return nil, fmt.Errorf("minigame: stats query: %w", err)
	}
	defer rows.Close()

	s := &Stats{}
	for rows.Next() {
		var kind string
		var amount float64
		if err := rows.Scan(&kind, &amount); err != nil {
			return nil, fmt.Errorf("minigame: stats scan: %w", err)
		}
		s.NetCoinFlow += amount

		switch ledger.Kind(kind) {
		case ledger.KindCapture:
			if amount >= 0 {
				s.CaptureWins++
			} else {
				s.CaptureLosses++
			}
		case ledger.KindDuelPayout:
			s.DuelWins++
		case ledger.KindDuelWager:
			s.DuelLosses++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
