package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/logging"
)

const DefaultStaleAfter = time.Hour

// Store is the conversation state store. It keeps the in-memory Conversation in step with
// every write it makes.
type Store struct {
	repo       Repository
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewStore(repo Repository, staleAfter time.Duration, logger *zap.Logger) *Store {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Store{repo: repo, staleAfter: staleAfter, logger: logging.OrNop(logger), now: time.Now}
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) GetOrCreate(ctx context.Context, phone string) (*Conversation, error) {
	return s.repo.GetOrCreate(ctx, phone)
}

// Update moves c to state with context cc. userID links the conversation when non-nil.
func (s *Store) Update(ctx context.Context, c *Conversation, state State, cc Context, userID *uuid.UUID) error {
	at := s.now()
	if err := s.repo.Update(ctx, c.ID, state, cc, userID, at); err != nil {
		return err
	}
	c.State = state
	c.Context = cc
	c.LastMessageAt = at
	if userID != nil {
		c.UserID = userID
	}
	return nil
}

// Reset returns c to idle with an empty context.
func (s *Store) Reset(ctx context.Context, c *Conversation) error {
	return s.Update(ctx, c, StateIdle, Context{}, nil)
}

// ResetIfStale resets a non-idle conversation whose last activity is older than the stale
// window and reports whether it did.
func (s *Store) ResetIfStale(ctx context.Context, c *Conversation) (bool, error) {
	if c.State == StateIdle || s.now().Sub(c.LastMessageAt) <= s.staleAfter {
		return false, nil
	}
	s.logger.Info("resetting stale conversation",
		zap.String("phone", logging.MaskPhone(c.Phone)),
		zap.String("state", string(c.State)),
		zap.Time("last_message_at", c.LastMessageAt),
	)
	return true, s.Reset(ctx, c)
}

// LogMessage appends to the message log. Failures are logged, never returned.
func (s *Store) LogMessage(ctx context.Context, c *Conversation, dir Direction, text, sid string) {
	err := s.repo.LogMessage(ctx, Message{
		ConversationID: c.ID,
		UserID:         c.UserID,
		Direction:      dir,
		Text:           text,
		ProviderSID:    sid,
	})
	if err != nil {
		s.logger.Warn("message log write failed", zap.String("direction", string(dir)), zap.Error(err))
	}
}
