package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Geetk172/archestra/pkg/models"
)

const invocationPolicyColumns = `id, tool_id, description, argument_name, operator, value, action, block_prompt, created_at`

type postgresInvocationPolicyStore struct {
	db *sql.DB
}

func (s *postgresInvocationPolicyStore) Create(ctx context.Context, p *models.ToolInvocationPolicy) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("policy is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_invocation_policies (`+invocationPolicyColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.ToolID, p.Description, p.ArgumentName, string(p.Operator), p.Value,
		string(p.Action), p.BlockPrompt, p.CreatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create tool invocation policy: %w", err)
	}
	return nil
}

func (s *postgresInvocationPolicyStore) Get(ctx context.Context, id string) (*models.ToolInvocationPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invocationPolicyColumns+` FROM tool_invocation_policies WHERE id = $1`, id)
	p, err := scanInvocationPolicy(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tool invocation policy: %w", err)
	}
	return p, nil
}

func (s *postgresInvocationPolicyStore) List(ctx context.Context) ([]*models.ToolInvocationPolicy, error) {
	return s.queryPolicies(ctx,
		`SELECT `+invocationPolicyColumns+` FROM tool_invocation_policies ORDER BY created_at, id`)
}

func (s *postgresInvocationPolicyStore) ListByTool(ctx context.Context, toolID string) ([]*models.ToolInvocationPolicy, error) {
	return s.queryPolicies(ctx,
		`SELECT `+invocationPolicyColumns+` FROM tool_invocation_policies WHERE tool_id = $1 ORDER BY created_at, id`,
		toolID)
}

func (s *postgresInvocationPolicyStore) Update(ctx context.Context, p *models.ToolInvocationPolicy) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("policy is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tool_invocation_policies
		 SET description = $2, argument_name = $3, operator = $4, value = $5, action = $6, block_prompt = $7
		 WHERE id = $1`,
		p.ID, p.Description, p.ArgumentName, string(p.Operator), p.Value, string(p.Action), p.BlockPrompt,
	)
	if err != nil {
		return fmt.Errorf("update tool invocation policy: %w", err)
	}
	return requireRow(res, "update tool invocation policy")
}

func (s *postgresInvocationPolicyStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tool_invocation_policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tool invocation policy: %w", err)
	}
	return requireRow(res, "delete tool invocation policy")
}

func (s *postgresInvocationPolicyStore) Assign(ctx context.Context, agentID, policyID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_tool_invocation_policies (agent_id, policy_id) VALUES ($1,$2)
		 ON CONFLICT DO NOTHING`,
		agentID, policyID,
	)
	if err != nil {
		return fmt.Errorf("assign tool invocation policy: %w", err)
	}
	return nil
}

func (s *postgresInvocationPolicyStore) Unassign(ctx context.Context, agentID, policyID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agent_tool_invocation_policies WHERE agent_id = $1 AND policy_id = $2`,
		agentID, policyID,
	)
	if err != nil {
		return fmt.Errorf("unassign tool invocation policy: %w", err)
	}
	return requireRow(res, "unassign tool invocation policy")
}

func (s *postgresInvocationPolicyStore) ListForAgent(ctx context.Context, agentID string) ([]*models.ToolInvocationPolicy, error) {
	return s.queryPolicies(ctx,
		`SELECT p.id, p.tool_id, p.description, p.argument_name, p.operator, p.value, p.action, p.block_prompt, p.created_at
		 FROM tool_invocation_policies p
		 JOIN agent_tool_invocation_policies ap ON ap.policy_id = p.id
		 WHERE ap.agent_id = $1
		 ORDER BY p.created_at, p.id`,
		agentID)
}

func (s *postgresInvocationPolicyStore) ListAgentsForPolicy(ctx context.Context, policyID string) ([]string, error) {
	return queryAgentIDs(ctx, s.db,
		`SELECT agent_id FROM agent_tool_invocation_policies WHERE policy_id = $1 ORDER BY agent_id`,
		policyID)
}

// ListToolInvocationPoliciesForAgentAndTool is the proxy-path read: one
// join query, stable order so deny reasons are deterministic.
func (s *postgresInvocationPolicyStore) ListToolInvocationPoliciesForAgentAndTool(ctx context.Context, agentID, toolName string) ([]*models.ToolInvocationPolicy, error) {
	return s.queryPolicies(ctx,
		`SELECT p.id, p.tool_id, p.description, p.argument_name, p.operator, p.value, p.action, p.block_prompt, p.created_at
		 FROM tool_invocation_policies p
		 JOIN agent_tool_invocation_policies ap ON ap.policy_id = p.id
		 JOIN tools t ON t.id = p.tool_id
		 WHERE ap.agent_id = $1 AND t.name = $2
		 ORDER BY p.created_at, p.id`,
		agentID, toolName)
}

func (s *postgresInvocationPolicyStore) queryPolicies(ctx context.Context, query string, args ...any) ([]*models.ToolInvocationPolicy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tool invocation policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.ToolInvocationPolicy
	for rows.Next() {
		p, err := scanInvocationPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool invocation policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tool invocation policies: %w", err)
	}
	return policies, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocationPolicy(row rowScanner) (*models.ToolInvocationPolicy, error) {
	var p models.ToolInvocationPolicy
	var operator, action string
	if err := row.Scan(&p.ID, &p.ToolID, &p.Description, &p.ArgumentName, &operator,
		&p.Value, &action, &p.BlockPrompt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Operator = models.Operator(operator)
	p.Action = models.PolicyAction(action)
	return &p, nil
}

const trustedPolicyColumns = `id, tool_id, description, attribute_path, operator, value, created_at`

type postgresTrustedPolicyStore struct {
	db *sql.DB
}

func (s *postgresTrustedPolicyStore) Create(ctx context.Context, p *models.TrustedDataPolicy) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("policy is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trusted_data_policies (`+trustedPolicyColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.ToolID, p.Description, p.AttributePath, string(p.Operator), p.Value, p.CreatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create trusted data policy: %w", err)
	}
	return nil
}

func (s *postgresTrustedPolicyStore) Get(ctx context.Context, id string) (*models.TrustedDataPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trustedPolicyColumns+` FROM trusted_data_policies WHERE id = $1`, id)
	p, err := scanTrustedPolicy(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trusted data policy: %w", err)
	}
	return p, nil
}

func (s *postgresTrustedPolicyStore) List(ctx context.Context) ([]*models.TrustedDataPolicy, error) {
	return s.queryPolicies(ctx,
		`SELECT `+trustedPolicyColumns+` FROM trusted_data_policies ORDER BY created_at, id`)
}

func (s *postgresTrustedPolicyStore) ListByTool(ctx context.Context, toolID string) ([]*models.TrustedDataPolicy, error) {
	return s.queryPolicies(ctx,
		`SELECT `+trustedPolicyColumns+` FROM trusted_data_policies WHERE tool_id = $1 ORDER BY created_at, id`,
		toolID)
}

func (s *postgresTrustedPolicyStore) Update(ctx context.Context, p *models.TrustedDataPolicy) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("policy is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE trusted_data_policies
		 SET description = $2, attribute_path = $3, operator = $4, value = $5
		 WHERE id = $1`,
		p.ID, p.Description, p.AttributePath, string(p.Operator), p.Value,
	)
	if err != nil {
		return fmt.Errorf("update trusted data policy: %w", err)
	}
	return requireRow(res, "update trusted data policy")
}

func (s *postgresTrustedPolicyStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trusted_data_policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trusted data policy: %w", err)
	}
	return requireRow(res, "delete trusted data policy")
}

func (s *postgresTrustedPolicyStore) Assign(ctx context.Context, agentID, policyID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_trusted_data_policies (agent_id, policy_id) VALUES ($1,$2)
		 ON CONFLICT DO NOTHING`,
		agentID, policyID,
	)
	if err != nil {
		return fmt.Errorf("assign trusted data policy: %w", err)
	}
	return nil
}

func (s *postgresTrustedPolicyStore) Unassign(ctx context.Context, agentID, policyID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agent_trusted_data_policies WHERE agent_id = $1 AND policy_id = $2`,
		agentID, policyID,
	)
	if err != nil {
		return fmt.Errorf("unassign trusted data policy: %w", err)
	}
	return requireRow(res, "unassign trusted data policy")
}

func (s *postgresTrustedPolicyStore) ListForAgent(ctx context.Context, agentID string) ([]*models.TrustedDataPolicy, error) {
	return s.queryPolicies(ctx,
		`SELECT p.id, p.tool_id, p.description, p.attribute_path, p.operator, p.value, p.created_at
		 FROM trusted_data_policies p
		 JOIN agent_trusted_data_policies ap ON ap.policy_id = p.id
		 WHERE ap.agent_id = $1
		 ORDER BY p.created_at, p.id`,
		agentID)
}

func (s *postgresTrustedPolicyStore) ListAgentsForPolicy(ctx context.Context, policyID string) ([]string, error) {
	return queryAgentIDs(ctx, s.db,
		`SELECT agent_id FROM agent_trusted_data_policies WHERE policy_id = $1 ORDER BY agent_id`,
		policyID)
}

// ListTrustedDataPoliciesForAgentAndTool is the proxy-path read; single
// join query in stable order.
func (s *postgresTrustedPolicyStore) ListTrustedDataPoliciesForAgentAndTool(ctx context.Context, agentID, toolName string) ([]*models.TrustedDataPolicy, error) {
	return s.queryPolicies(ctx,
		`SELECT p.id, p.tool_id, p.description, p.attribute_path, p.operator, p.value, p.created_at
		 FROM trusted_data_policies p
		 JOIN agent_trusted_data_policies ap ON ap.policy_id = p.id
		 JOIN tools t ON t.id = p.tool_id
		 WHERE ap.agent_id = $1 AND t.name = $2
		 ORDER BY p.created_at, p.id`,
		agentID, toolName)
}

func (s *postgresTrustedPolicyStore) queryPolicies(ctx context.Context, query string, args ...any) ([]*models.TrustedDataPolicy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trusted data policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.TrustedDataPolicy
	for rows.Next() {
		p, err := scanTrustedPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trusted data policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trusted data policies: %w", err)
	}
	return policies, nil
}

func scanTrustedPolicy(row rowScanner) (*models.TrustedDataPolicy, error) {
	var p models.TrustedDataPolicy
	var operator string
	if err := row.Scan(&p.ID, &p.ToolID, &p.Description, &p.AttributePath, &operator,
		&p.Value, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Operator = models.Operator(operator)
	return &p, nil
}

func queryAgentIDs(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents for policy: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agents for policy: %w", err)
	}
	return ids, nil
}
