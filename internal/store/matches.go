// Package store is the persistence collaborator: it durably records
// formed matches. The matchmaking core hands it events and moves on; a
// failed write is logged, never propagated.
package store

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"matchserver/internal/match"
)

// MatchRecorder writes one matches row plus one match_players row per
// member for every formed match.
//
// Schema:
//
//	CREATE TABLE matches (
//	    id        BIGINT AUTO_INCREMENT PRIMARY KEY,
//	    room_id   VARCHAR(64)  NOT NULL,
//	    mode      VARCHAR(32)  NOT NULL,
//	    formed_at DATETIME(3)  NOT NULL
//	);
//	CREATE TABLE match_players (
//	    match_id  BIGINT       NOT NULL,
//	    player_id VARCHAR(64)  NOT NULL,
//	    slot      INT          NOT NULL,
//	    PRIMARY KEY (match_id, slot)
//	);
type MatchRecorder struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMatchRecorder(db *sql.DB, logger *zap.Logger) *MatchRecorder {
	return &MatchRecorder{db: db, logger: logger}
}

// RecordMatch persists the event on its own goroutine so the caller
// never blocks on the database.
func (r *MatchRecorder) RecordMatch(ev match.Event) {
	go r.record(ev)
}

func (r *MatchRecorder) record(ev match.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("record match: begin tx", zap.String("room_id", ev.RoomID), zap.Error(err))
		return
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO matches (room_id, mode, formed_at) VALUES (?, ?, ?)`,
		ev.RoomID, ev.Mode, ev.FormedAt,
	)
	if err != nil {
		r.logger.Error("record match: insert match", zap.String("room_id", ev.RoomID), zap.Error(err))
		return
	}

	matchID, err := res.LastInsertId()
	if err != nil {
		r.logger.Error("record match: last insert id", zap.String("room_id", ev.RoomID), zap.Error(err))
		return
	}

	for slot, playerID := range ev.Players {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_players (match_id, player_id, slot) VALUES (?, ?, ?)`,
			matchID, playerID, slot,
		); err != nil {
			r.logger.Error("record match: insert player",
				zap.String("room_id", ev.RoomID),
				zap.String("player_id", playerID),
				zap.Error(err))
			return
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("record match: commit", zap.String("room_id", ev.RoomID), zap.Error(err))
	}
}
