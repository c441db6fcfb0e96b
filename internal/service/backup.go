package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/store"
)

func (s *Service) ExportBackup(ctx context.Context) (domain.Backup, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Backup{}, err
	}
	return s.repo.Snapshot(ctx)
}

// ImportBackup replaces every collection with the document in raw and resets
// the live orders. Nothing changes unless the whole document is valid.
func (s *Service) ImportBackup(ctx context.Context, raw []byte) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	backup, err := decodeBackup(raw)
	if err != nil {
		return err
	}

	if err := s.repo.ReplaceAll(ctx, backup); err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			return fmt.Errorf("%w: %v", ErrMalformedBackup, err)
		}
		return err
	}

	s.orders.Reset()
	s.orders.LoadTables(backup.Tables)
	s.invalidateCatalog(ctx)

	s.logger.Info().
		Str("actor", actor.Username).
		Int("products", len(backup.Products)).
		Int("sales", len(backup.Sales)).
		Int("tables", len(backup.Tables)).
		Msg("backup restored")
	return nil
}

// decodeBackup requires every top-level key, arrays for collections and an
// object for settings.
func decodeBackup(raw []byte) (domain.Backup, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Backup{}, fmt.Errorf("%w: %v", ErrMalformedBackup, err)
	}
	for _, key := range domain.BackupKeys {
		value, ok := fields[key]
		if !ok {
			return domain.Backup{}, fmt.Errorf("%w: missing %q", ErrMalformedBackup, key)
		}
		want := byte('[')
		if key == "settings" {
			want = '{'
		}
		if trimmed := bytes.TrimSpace(value); len(trimmed) == 0 || trimmed[0] != want {
			return domain.Backup{}, fmt.Errorf("%w: %q has the wrong shape", ErrMalformedBackup, key)
		}
	}

	var backup domain.Backup
	if err := json.Unmarshal(raw, &backup); err != nil {
		return domain.Backup{}, fmt.Errorf("%w: %v", ErrMalformedBackup, err)
	}
	return backup, nil
}
