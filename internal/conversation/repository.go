package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/vaidya/internal/db"
)

type Repository interface {
	// GetOrCreate returns the conversation for phone, creating an idle one on first contact.
	GetOrCreate(ctx context.Context, phone string) (*Conversation, error)
	// Update writes state and context and bumps last activity. A nil userID keeps the current link.
	Update(ctx context.Context, id uuid.UUID, state State, c Context, userID *uuid.UUID, at time.Time) error
	LogMessage(ctx context.Context, m Message) error
}

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(db db.DBTX) *PgRepository {
	return &PgRepository{db: db}
}

const conversationColumns = `id, phone, user_id, current_state, context, last_message_at, created_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		c   Conversation
		raw []byte
	)
	if err := row.Scan(&c.ID, &c.Phone, &c.UserID, &c.State, &raw, &c.LastMessageAt, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if len(raw) > 0 {
		// unreadable context is treated as empty; the processor then resets the flow
		_ = json.Unmarshal(raw, &c.Context)
	}
	if c.State == "" {
		c.State = StateIdle
	}
	return &c, nil
}

func (r *PgRepository) GetOrCreate(ctx context.Context, phone string) (*Conversation, error) {
	conv, err := scanConversation(r.db.QueryRow(ctx, `
		INSERT INTO whatsapp_conversations (phone, current_state, context)
		VALUES ($1, 'idle', '{}'::jsonb)
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING `+conversationColumns,
		phone,
	))
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	return conv, nil
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, state State, c Context, userID *uuid.UUID, at time.Time) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation context: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE whatsapp_conversations
		SET current_state = $2,
		    context = $3::jsonb,
		    user_id = COALESCE($4, user_id),
		    last_message_at = $5
		WHERE id = $1
	`, id, string(state), string(payload), userID, at)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *PgRepository) LogMessage(ctx context.Context, m Message) error {
	var sid *string
	if m.ProviderSID != "" {
		sid = &m.ProviderSID
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO whatsapp_messages (conversation_id, user_id, direction, message_text, message_type, twilio_message_sid)
		VALUES ($1, $2, $3, $4, 'text', $5)
	`, m.ConversationID, m.UserID, string(m.Direction), m.Text, sid)
	if err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return nil
}
