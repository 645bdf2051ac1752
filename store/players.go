package store

import (
	"fmt"
	"strings"

	"github.com/nathoo/asterfall/types"
)

// StartingHP is the hp of a freshly created player.
const StartingHP = 20

type playerRow struct {
	ID         string `db:"player_id"`
	Name       string `db:"name"`
	LocationID string `db:"location_id"`
	HP         int    `db:"hp"`
	XP         int    `db:"xp"`
	Injury     int    `db:"injury"`
}

func (r playerRow) player() types.Player {
	return types.Player{ID: r.ID, Name: r.Name, LocationID: r.LocationID, HP: r.HP, XP: r.XP, Injury: r.Injury}
}

// CreatePlayer inserts a player at locationID unless one already exists.
// It reports whether a row was created.
func (t *Tx) CreatePlayer(id, name, locationID string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("player id is required")
	}
	res, err := t.exec("create player",
		`INSERT OR IGNORE INTO players (player_id, name, location_id, hp, xp, injury, created_ts)
		 VALUES (?, ?, ?, ?, 0, 0, ?)`,
		id, name, locationID, StartingHP, t.Now().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fail("create player", err)
	}
	return n > 0, nil
}

// Player returns the player with id.
func (t *Tx) Player(id string) (types.Player, bool, error) {
	var row playerRow
	ok, err := t.get("get player", &row,
		`SELECT player_id, name, location_id, hp, xp, injury FROM players WHERE player_id = ?`, id)
	if err != nil || !ok {
		return types.Player{}, ok, err
	}
	return row.player(), true, nil
}

// UpdatePlayer writes a player's mutable fields.
func (t *Tx) UpdatePlayer(p types.Player) error {
	_, err := t.exec("update player",
		`UPDATE players SET location_id = ?, hp = ?, xp = ?, injury = ? WHERE player_id = ?`,
		p.LocationID, p.HP, p.XP, p.Injury, p.ID)
	return err
}
