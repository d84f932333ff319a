package memory

import (
	"context"
	"encoding/json"

	"github.com/loyaltyledger/engine/programconfig"
)

// programConfigStore implements programconfig.Store. It is a separate type
// from Store because programconfig.Store.Get and jobproc.ReceiptStore.Get
// collide in name on Store, and Go cannot overload a method name on one
// receiver.
type programConfigStore struct{ s *Store }

// ProgramConfigStoreView returns the programconfig.Store view over this Store.
func (s *Store) ProgramConfigStoreView() programconfig.Store { return &programConfigStore{s: s} }

func (p *programConfigStore) Get(_ context.Context, _ any, tenant, programID string) (json.RawMessage, bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	cfg, ok := p.s.programConfigs[programKey{tenant, programID}]
	if !ok {
		return nil, false, nil
	}
	return json.RawMessage(cfg), true, nil
}

func (p *programConfigStore) Put(_ context.Context, tenant, programID string, cfg json.RawMessage) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.programConfigs[programKey{tenant, programID}] = append([]byte(nil), cfg...)
	return nil
}
