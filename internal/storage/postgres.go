package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/Geetk172/archestra/pkg/models"
)

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns default pool settings.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewPostgresStores opens a pooled connection and returns the store set
// backed by it.
func NewPostgresStores(dsn string, config *PostgresConfig) (StoreSet, *sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return StoreSet{}, nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return StoreSet{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return StoreSet{}, nil, fmt.Errorf("ping database: %w", err)
	}

	stores := StoreSet{
		Agents:             &postgresAgentStore{db: db},
		Tools:              &postgresToolStore{db: db},
		InvocationPolicies: &postgresInvocationPolicyStore{db: db},
		TrustedPolicies:    &postgresTrustedPolicyStore{db: db},
		Chats:              &postgresChatStore{db: db},
		DualLLM:            &postgresDualLLMStore{db: db},
		closer:             db.Close,
	}
	return stores, db, nil
}

func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate")
}

type postgresAgentStore struct {
	db *sql.DB
}

func (s *postgresAgentStore) Create(ctx context.Context, agent *models.Agent) error {
	if agent == nil || agent.ID == "" {
		return fmt.Errorf("agent is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, created_at, updated_at) VALUES ($1,$2,$3,$4)`,
		agent.ID, agent.Name, agent.CreatedAt, agent.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (s *postgresAgentStore) Get(ctx context.Context, id string) (*models.Agent, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM agents WHERE id = $1`, id)
	var agent models.Agent
	if err := row.Scan(&agent.ID, &agent.Name, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &agent, nil
}

func (s *postgresAgentStore) List(ctx context.Context) ([]*models.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM agents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		var agent models.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, &agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

func (s *postgresAgentStore) Update(ctx context.Context, agent *models.Agent) error {
	if agent == nil || agent.ID == "" {
		return fmt.Errorf("agent is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET name = $2, updated_at = $3 WHERE id = $1`,
		agent.ID, agent.Name, agent.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("update agent: %w", err)
	}
	return requireRow(res, "update agent")
}

func (s *postgresAgentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return requireRow(res, "delete agent")
}

type postgresToolStore struct {
	db *sql.DB
}

func (s *postgresToolStore) Create(ctx context.Context, tool *models.Tool) error {
	if tool == nil || tool.ID == "" {
		return fmt.Errorf("tool is required")
	}
	params := tool.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tools (id, agent_id, name, description, parameters) VALUES ($1,$2,$3,$4,$5)`,
		tool.ID, tool.AgentID, tool.Name, tool.Description, []byte(params),
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create tool: %w", err)
	}
	return nil
}

func (s *postgresToolStore) Get(ctx context.Context, id string) (*models.Tool, error) {
	return s.getWhere(ctx, `id = $1`, id)
}

func (s *postgresToolStore) GetByName(ctx context.Context, name string) (*models.Tool, error) {
	return s.getWhere(ctx, `name = $1`, name)
}

func (s *postgresToolStore) getWhere(ctx context.Context, clause string, arg any) (*models.Tool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, name, description, parameters FROM tools WHERE `+clause, arg)
	var tool models.Tool
	var params []byte
	if err := row.Scan(&tool.ID, &tool.AgentID, &tool.Name, &tool.Description, &params); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tool: %w", err)
	}
	tool.Parameters = params
	return &tool, nil
}

func (s *postgresToolStore) ListForAgent(ctx context.Context, agentID string) ([]*models.Tool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, name, description, parameters FROM tools WHERE agent_id = $1 ORDER BY name`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var tools []*models.Tool
	for rows.Next() {
		var tool models.Tool
		var params []byte
		if err := rows.Scan(&tool.ID, &tool.AgentID, &tool.Name, &tool.Description, &params); err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		tool.Parameters = params
		tools = append(tools, &tool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return tools, nil
}

func (s *postgresToolStore) Update(ctx context.Context, tool *models.Tool) error {
	if tool == nil || tool.ID == "" {
		return fmt.Errorf("tool is required")
	}
	params := tool.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tools SET name = $2, description = $3, parameters = $4 WHERE id = $1`,
		tool.ID, tool.Name, tool.Description, []byte(params),
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("update tool: %w", err)
	}
	return requireRow(res, "update tool")
}

func (s *postgresToolStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	return requireRow(res, "delete tool")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
