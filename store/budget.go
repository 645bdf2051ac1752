package store

import "context"

// Budget refusal reasons.
const (
	ReasonGlobalLimit = "global_limit"
	ReasonUserLimit   = "user_limit"
)

// TryConsumeLLMCall records one content-service call for userID on day if
// both the global and the per-user daily totals are below their limits.
// The read, compare and increment run in a single transaction. On refusal
// it returns false and ReasonGlobalLimit or ReasonUserLimit.
func (s *Store) TryConsumeLLMCall(ctx context.Context, day, userID string, maxPerDay, maxPerUser int) (bool, string, error) {
	var (
		ok     bool
		reason string
	)
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		ok, reason, err = tx.TryConsumeLLMCall(day, userID, maxPerDay, maxPerUser)
		return err
	})
	return ok, reason, err
}

// TryConsumeLLMCall is the in-transaction form of Store.TryConsumeLLMCall.
func (t *Tx) TryConsumeLLMCall(day, userID string, maxPerDay, maxPerUser int) (bool, string, error) {
	var global int
	if _, err := t.get("read llm usage", &global,
		`SELECT COALESCE(SUM(calls), 0) FROM llm_usage WHERE day = ?`, day); err != nil {
		return false, "", err
	}
	var user int
	if _, err := t.get("read llm usage", &user,
		`SELECT calls FROM llm_usage WHERE day = ? AND user_id = ?`, day, userID); err != nil {
		return false, "", err
	}
	if global >= maxPerDay {
		return false, ReasonGlobalLimit, nil
	}
	if user >= maxPerUser {
		return false, ReasonUserLimit, nil
	}
	if _, err := t.exec("consume llm call",
		`INSERT INTO llm_usage (day, user_id, calls) VALUES (?, ?, 1)
		 ON CONFLICT(day, user_id) DO UPDATE SET calls = calls + 1`, day, userID); err != nil {
		return false, "", err
	}
	return true, "", nil
}

// LLMCalls returns the recorded call count for userID on day.
func (t *Tx) LLMCalls(day, userID string) (int, error) {
	var n int
	if _, err := t.get("read llm usage", &n,
		`SELECT calls FROM llm_usage WHERE day = ? AND user_id = ?`, day, userID); err != nil {
		return 0, err
	}
	return n, nil
}

// TryConsumeNPCMove spends one unit of the global NPC move budget for the
// hour bucket if fewer than limit moves were made in it.
func (t *Tx) TryConsumeNPCMove(bucket int64, limit int) (bool, error) {
	var used int
	if _, err := t.get("read move budget", &used,
		`SELECT moves FROM npc_move_budget WHERE hour_bucket = ?`, bucket); err != nil {
		return false, err
	}
	if used >= limit {
		return false, nil
	}
	if _, err := t.exec("consume move budget",
		`INSERT INTO npc_move_budget (hour_bucket, moves) VALUES (?, 1)
		 ON CONFLICT(hour_bucket) DO UPDATE SET moves = moves + 1`, bucket); err != nil {
		return false, err
	}
	return true, nil
}

// NPCMovesUsed returns how many NPC moves were spent in the hour bucket.
func (t *Tx) NPCMovesUsed(bucket int64) (int, error) {
	var used int
	if _, err := t.get("read move budget", &used,
		`SELECT moves FROM npc_move_budget WHERE hour_bucket = ?`, bucket); err != nil {
		return 0, err
	}
	return used, nil
}
