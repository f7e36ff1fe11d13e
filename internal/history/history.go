// Package history archives finished games in Postgres. It is write-mostly:
// nothing is ever restored from it.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/quarto-backend/internal/engine"
	"github.com/DoyleJ11/quarto-backend/internal/lobby"
)

const (
	ResultWin       = "win"
	ResultDraw      = "draw"
	ResultAbandoned = "abandoned"

	ActionSelect = "select"
	ActionPlace  = "place"

	DefaultRecentLimit = 20
	maxRecentLimit     = 100
)

// GameRecord is one finished game.
type GameRecord struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	GameID      string    `gorm:"index;not null;type:varchar(6)" json:"gameId"`
	Player0     string    `gorm:"not null" json:"player0"`
	Player1     string    `gorm:"not null" json:"player1"`
	WinnerID    *string   `json:"winnerId"`
	Result      string    `gorm:"type:varchar(16);not null;check:result IN ('win','draw','abandoned')" json:"result"`
	Moves       int       `gorm:"default:0" json:"moves"`
	PvE         bool      `gorm:"default:false" json:"pve"`
	AgentID     *string   `json:"agentId,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `gorm:"index" json:"finishedAt"`
	DurationSec int       `gorm:"default:0" json:"durationSec"`
	MoveLog     []Move    `gorm:"serializer:json;type:jsonb" json:"moveLog"`
	CreatedAt   time.Time `json:"-"`
}

func (GameRecord) TableName() string { return "game_records" }

// Move is one half-turn of a finished game.
type Move struct {
	Action   string `json:"action"`
	PlayerID string `json:"playerId"`
	Piece    int    `json:"piece"`
	Cell     *int   `json:"cell,omitempty"`
}

// movesFrom keeps the player actions of an event log and drops the
// bookkeeping events.
func movesFrom(players [2]string, log []engine.Event) []Move {
	moves := make([]Move, 0, len(log))
	for _, ev := range log {
		switch ev.Type {
		case engine.EvtPieceSelected:
			moves = append(moves, Move{Action: ActionSelect, PlayerID: players[ev.Seat], Piece: int(ev.Piece)})
		case engine.EvtPiecePlaced:
			cell := int(ev.Cell)
			moves = append(moves, Move{Action: ActionPlace, PlayerID: players[ev.Seat], Piece: int(ev.Piece), Cell: &cell})
		}
	}
	return moves
}

// FromResult maps a session result onto a new record.
func FromResult(res lobby.Result) GameRecord {
	rec := GameRecord{
		ID:          uuid.NewString(),
		GameID:      res.GameID,
		Player0:     res.Players[0],
		Player1:     res.Players[1],
		Moves:       res.Moves,
		PvE:         res.PvE,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		DurationSec: int(res.FinishedAt.Sub(res.StartedAt).Seconds()),
		MoveLog:     movesFrom(res.Players, res.Log),
	}
	switch {
	case res.Abandoned:
		rec.Result = ResultAbandoned
	case res.Draw:
		rec.Result = ResultDraw
	default:
		rec.Result = ResultWin
	}
	if res.WinnerID != "" {
		w := res.WinnerID
		rec.WinnerID = &w
	}
	if res.AgentID != "" {
		a := res.AgentID
		rec.AgentID = &a
	}
	return rec
}

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("history: empty DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	return New(db, logger)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&GameRecord{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db, logger: logger.Named("history")}, nil
}

// Record implements lobby.Recorder.
func (s *Store) Record(ctx context.Context, res lobby.Result) error {
	rec := FromResult(res)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("history: record %s: %w", res.GameID, err)
	}
	s.logger.Debug("game recorded", zap.String("game_id", rec.GameID), zap.String("result", rec.Result))
	return nil
}

// Recent returns the latest finished games, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	var recs []GameRecord
	err := s.db.WithContext(ctx).Order("finished_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return recs, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
