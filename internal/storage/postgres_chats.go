package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Geetk172/archestra/pkg/models"
)

type postgresChatStore struct {
	db *sql.DB
}

func (s *postgresChatStore) Create(ctx context.Context, chat *models.Chat) error {
	if chat == nil || chat.ID == "" {
		return fmt.Errorf("chat is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, created_at, updated_at) VALUES ($1,$2,$3)`,
		chat.ID, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

func (s *postgresChatStore) Get(ctx context.Context, id string) (*models.ChatWithInteractions, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM chats WHERE id = $1`, id)
	var chat models.Chat
	if err := row.Scan(&chat.ID, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	interactions, err := s.ListInteractions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ChatWithInteractions{Chat: chat, Interactions: interactions}, nil
}

func (s *postgresChatStore) List(ctx context.Context) ([]*models.ChatWithInteractions, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at FROM chats ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []*models.ChatWithInteractions
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(&chat.ID, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, &models.ChatWithInteractions{Chat: chat})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	for _, chat := range chats {
		interactions, err := s.ListInteractions(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		chat.Interactions = interactions
	}
	return chats, nil
}

// AppendInteraction is the only write on interactions; there is no
// update or delete. Taint implies a reason.
func (s *postgresChatStore) AppendInteraction(ctx context.Context, interaction *models.Interaction) error {
	if interaction == nil || interaction.ID == "" {
		return fmt.Errorf("interaction is required")
	}
	if interaction.Tainted && interaction.TaintReason == "" {
		return ErrTaintReasonRequired
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, chat_id, content, tainted, taint_reason, created_at)
		 VALUES ($1,$2,$3,$4,$5,now())`,
		interaction.ID, interaction.ChatID, []byte(interaction.Content),
		interaction.Tainted, interaction.TaintReason,
	)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, interaction.ChatID)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}

func (s *postgresChatStore) ListInteractions(ctx context.Context, chatID string) ([]*models.Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, content, tainted, taint_reason, created_at
		 FROM interactions WHERE chat_id = $1
		 ORDER BY created_at, seq`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*models.Interaction
	for rows.Next() {
		var in models.Interaction
		var content []byte
		if err := rows.Scan(&in.ID, &in.ChatID, &content, &in.Tainted, &in.TaintReason, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Content = content
		interactions = append(interactions, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return interactions, nil
}
