package engine

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/nathoo/asterfall/engine/continuity"
	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/engine/parser"
	"github.com/nathoo/asterfall/store"
	"github.com/nathoo/asterfall/types"
)

// MaxHP is a player's full health.
const MaxHP = store.StartingHP

const (
	investigateFind   = 10
	investigateDanger = 15
	shortRestHeal     = 2
)

// turn carries one resolution through its transaction.
type turn struct {
	e       *Engine
	tx      *store.Tx
	actorID string
	name    string
	text    string
	plan    plan

	events     []types.Event
	action     types.Action
	modeBefore types.Mode
	threadID   string
	result     types.Result
	compact    *compaction
}

// outcome is what a handler decided. A non-empty npcID marks a resolved
// TALK.
type outcome struct {
	ok        bool
	msg       string
	npcID     string
	npcName   string
	narration string
}

func reply(msg string) outcome { return outcome{ok: true, msg: msg} }

func (t *turn) run() error {
	tx := t.tx
	intent := t.plan.intent
	t.action = intent.Action

	sess, err := tx.SessionState(t.actorID)
	if err != nil {
		return err
	}
	t.modeBefore = sess.Mode

	player, started, err := tx.Player(t.actorID)
	if err != nil {
		return err
	}

	var out outcome
	switch {
	case intent.Action == types.ActionHelp:
		where := t.e.world.Start
		if started {
			where = player.LocationID
		}
		out = reply(helpCommands + "\n" + t.e.world.Prompt(where))

	case intent.Action == types.ActionStart:
		out, err = t.start(player, started)

	case !started:
		out = outcome{ok: false, msg: startFirstMessage}

	default:
		enc, live, encErr := tx.EncounterFor(t.actorID, player.LocationID)
		switch {
		case encErr != nil:
			err = encErr
		case live:
			out, err = t.combat(&player, enc)
		case parser.NeedsClarification(intent):
			out = reply(intent.ClarifyQuestion)
		default:
			out, err = t.explore(&player)
		}
	}
	if err != nil {
		return err
	}
	return t.finish(sess, out)
}

// finish writes the continuity records every turn leaves behind.
func (t *turn) finish(sess types.SessionState, out outcome) error {
	tx := t.tx

	locationID := t.e.world.Start
	encounterID := ""
	if p, ok, err := tx.Player(t.actorID); err != nil {
		return err
	} else if ok {
		locationID = p.LocationID
		enc, live, err := tx.EncounterFor(t.actorID, locationID)
		if err != nil {
			return err
		}
		if live {
			encounterID = enc.ID
		}
	}

	mode := continuity.Mode(encounterID != "", out.npcID != "")
	loc, _ := t.e.world.Location(locationID)
	scope := continuity.Scope{
		Action:       t.action,
		LocationID:   locationID,
		LocationName: loc.Name,
		NPCID:        out.npcID,
		NPCName:      out.npcName,
		EncounterID:  encounterID,
	}
	threadID, title := scope.Thread()

	msg, repeats := continuity.AntiRepeat(sess.LastBotMessage, sess.RepeatCount, out.msg)
	if err := tx.UpsertSessionState(types.SessionState{
		PlayerID:          t.actorID,
		Mode:              mode,
		ActiveNPCID:       out.npcID,
		ActiveEncounterID: encounterID,
		ActiveThreadID:    threadID,
		LastBotMessage:    out.msg,
		RepeatCount:       repeats,
	}); err != nil {
		return err
	}
	if err := tx.UpsertThread(types.Thread{
		PlayerID:    t.actorID,
		ThreadID:    threadID,
		Type:        continuity.ThreadType(threadID),
		Title:       title,
		Status:      "ACTIVE",
		LastMessage: msg,
	}); err != nil {
		return err
	}
	scene, err := tx.SceneMemory(t.actorID)
	if err != nil {
		return err
	}
	if _, err := tx.MergeSceneMemory(t.actorID, continuity.ScenePatch(scene, continuity.SceneFields{
		Mode:       mode,
		Action:     t.action,
		LocationID: locationID,
		ThreadID:   threadID,
		Message:    msg,
		Narration:  out.narration,
	})); err != nil {
		return err
	}

	t.threadID = threadID
	t.result = types.Result{OK: out.ok, Message: msg, Mode: mode, Events: t.events}
	return nil
}

// emit appends an event for the actor and records it on the result.
func (t *turn) emit(eventType string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	if _, err := t.tx.AppendEvent(t.actorID, eventType, data); err != nil {
		return err
	}
	t.events = append(t.events, types.Event{Type: eventType, Data: data})
	return nil
}

func (t *turn) prompt(locationID string) string {
	return t.e.world.Prompt(locationID)
}

func (t *turn) start(p types.Player, started bool) (outcome, error) {
	if started {
		loc, _ := t.e.world.Location(p.LocationID)
		return reply(fmt.Sprintf("Your journey continues in %s.\n%s", loc.Name, t.prompt(p.LocationID))), nil
	}
	name := t.name
	if name == "" {
		name = t.actorID
	}
	start := t.e.world.Start
	created, err := t.tx.CreatePlayer(t.actorID, name, start)
	if err != nil {
		return outcome{}, err
	}
	if created {
		if err := t.emit(events.PlayerStarted, map[string]any{"name": name, "location_id": start}); err != nil {
			return outcome{}, err
		}
	}
	loc, _ := t.e.world.Location(start)
	return reply(fmt.Sprintf("Your journey begins in %s.\n%s", loc.Name, t.prompt(start))), nil
}

func (t *turn) explore(p *types.Player) (outcome, error) {
	switch t.plan.intent.Action {
	case types.ActionLook:
		return t.look(p), nil
	case types.ActionMove:
		return t.move(p)
	case types.ActionInvestigate:
		return t.investigate(p)
	case types.ActionTalk:
		return t.talk(p)
	case types.ActionRestShort, types.ActionRestLong:
		return t.rest(p)
	case types.ActionStats:
		return t.stats(p, types.ModeExplore), nil
	case types.ActionRecap:
		return t.recap()
	default:
		return reply(unknownMessage + "\n" + t.prompt(p.LocationID)), nil
	}
}

func (t *turn) look(p *types.Player) outcome {
	loc, _ := t.e.world.Location(p.LocationID)
	text := t.plan.narration
	if text == "" {
		text = loc.Description
	}
	if text == "" {
		text = "The world flickers uncertainly."
	}
	return outcome{ok: true, msg: text + "\n\n" + t.prompt(p.LocationID), narration: text}
}

func (t *turn) move(p *types.Player) (outcome, error) {
	dest := t.e.world.Destination(t.plan.intent.Target)
	scene, err := t.tx.SceneMemory(t.actorID)
	if err != nil {
		return outcome{}, err
	}
	firstVisit := !continuity.Visited(scene, dest)

	from := p.LocationID
	p.LocationID = dest
	if err := t.tx.UpdatePlayer(*p); err != nil {
		return outcome{}, err
	}
	if err := t.emit(events.PlayerMoved, map[string]any{"from": from, "to": dest}); err != nil {
		return outcome{}, err
	}

	loc, _ := t.e.world.Location(dest)
	msg := fmt.Sprintf("You move to %s.", loc.Name)
	if firstVisit && loc.Description != "" {
		msg += "\n" + loc.Description
	}
	return reply(msg + "\n" + t.prompt(dest)), nil
}

func (t *turn) investigate(p *types.Player) (outcome, error) {
	roll := t.e.rng.Roll(20)
	discovery := "old mortar dust"
	if roll >= investigateFind {
		discovery = "constellation sigil"
	}
	if err := t.emit(events.Investigated, map[string]any{
		"roll": roll, "discovery": discovery, "location_id": p.LocationID,
	}); err != nil {
		return outcome{}, err
	}
	if roll < investigateDanger {
		return reply(fmt.Sprintf("You investigate and find %s.\n%s", discovery, t.prompt(p.LocationID))), nil
	}

	id, err := t.triggerCombat(p.LocationID)
	if err != nil {
		return outcome{}, err
	}
	return reply(fmt.Sprintf("You uncover danger. Combat starts: %s\n%s", id, combatPrompt)), nil
}

func (t *turn) triggerCombat(locationID string) (string, error) {
	enc := types.Encounter{
		ID:         ulid.MustNew(ulid.Timestamp(t.tx.Now()), ulid.DefaultEntropy()).String(),
		ActorID:    t.actorID,
		LocationID: locationID,
		State: types.EncounterState{
			EnemyRole: defaultEnemyRole,
			Turn:      1,
			Zone:      []string{"front", "mid", "rear"},
		},
	}
	if err := t.tx.CreateEncounter(enc); err != nil {
		return "", err
	}
	if err := t.emit(events.CombatTriggered, map[string]any{
		"encounter_id": enc.ID, "location_id": locationID, "enemy_role": enc.State.EnemyRole,
	}); err != nil {
		return "", err
	}
	return enc.ID, nil
}

func (t *turn) rest(p *types.Player) (outcome, error) {
	eventType := events.RestShort
	if t.plan.intent.Action == types.ActionRestLong {
		eventType = events.RestLong
		p.HP = MaxHP
		p.Injury = 0
	} else {
		p.HP = min(MaxHP, p.HP+shortRestHeal)
	}
	if err := t.tx.UpdatePlayer(*p); err != nil {
		return outcome{}, err
	}
	if err := t.emit(eventType, map[string]any{"hp": p.HP, "injury": p.Injury}); err != nil {
		return outcome{}, err
	}
	return reply(fmt.Sprintf("You take time to recover. HP %d/%d.\n%s", p.HP, MaxHP, t.prompt(p.LocationID))), nil
}

func (t *turn) stats(p *types.Player, mode types.Mode) outcome {
	loc, _ := t.e.world.Location(p.LocationID)
	name := loc.Name
	if name == "" {
		name = p.LocationID
	}
	return reply(fmt.Sprintf("HP %d/%d | XP %d | Injury %d | Location %s | Mode %s",
		p.HP, MaxHP, p.XP, p.Injury, name, mode))
}

func (t *turn) recap() (outcome, error) {
	recs, err := t.tx.RecentEvents(t.actorID, recapLimit)
	if err != nil {
		return outcome{}, err
	}
	return reply(events.Recap(recs)), nil
}
