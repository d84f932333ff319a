package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/loyaltyledger/engine/programconfig"
)

// programConfigStore implements programconfig.Store. It is a separate type
// from Store because programconfig.Store.Get and jobproc.ReceiptStore.Get
// collide in name on Store, and Go cannot overload a method name on one
// receiver.
type programConfigStore struct{ s *Store }

// ProgramConfigStoreView returns the programconfig.Store view over this Store.
func (s *Store) ProgramConfigStoreView() programconfig.Store { return &programConfigStore{s: s} }

func (p *programConfigStore) Get(ctx context.Context, tx any, tenant, programID string) (json.RawMessage, bool, error) {
	var raw []byte
	err := p.s.q(tx).QueryRowContext(ctx, `
		SELECT config FROM program_configs WHERE tenant = $1 AND program_id = $2`,
		tenant, programID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: get program config: %w", err)
	}
	return json.RawMessage(raw), true, nil
}

// Put implements programconfig.Store: an upsert keyed by (tenant, program_id),
// the write path behind PUT /v1/programs/{id}/config.
func (p *programConfigStore) Put(ctx context.Context, tenant, programID string, cfg json.RawMessage) error {
	_, err := p.s.db.ExecContext(ctx, `
		INSERT INTO program_configs (tenant, program_id, config)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant, program_id) DO UPDATE SET config = EXCLUDED.config`,
		tenant, programID, []byte(cfg))
	if err != nil {
		return fmt.Errorf("postgres: put program config: %w", err)
	}
	return nil
}
