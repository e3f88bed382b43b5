package session

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/sportmatch/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sportmatch/internal/common"
	"github.com/dmitrijs2005/sportmatch/internal/cryptox"
	"github.com/dmitrijs2005/sportmatch/internal/dbx"
)

const (
	keyPrefix = "session."
	keySalt   = keyPrefix + "salt"
	keySealed = keyPrefix + "sealed"
	saltSize  = 16
)

var ErrCorruptSnapshot = errors.New("persisted session cannot be opened")

// SQLitePersister stores the snapshot sealed with a key derived from a
// device secret, in the metadata table.
type SQLitePersister struct {
	db     *sql.DB
	secret []byte

	mu      sync.Mutex
	keySalt []byte
	key     []byte
}

func NewSQLitePersister(db *sql.DB, secret []byte) *SQLitePersister {
	return &SQLitePersister{db: db, secret: append([]byte(nil), secret...)}
}

var _ Persister = (*SQLitePersister)(nil)

func (p *SQLitePersister) Save(ctx context.Context, snap Snapshot) error {
	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)

		salt, err := repo.Get(ctx, keySalt)
		if err != nil {
			return err
		}
		if salt == nil {
			salt = common.GenerateRandByteArray(saltSize)
			if err := repo.Set(ctx, keySalt, salt); err != nil {
				return err
			}
		}

		sealed, err := cryptox.SealJSON(p.deriveKey(salt), snap)
		if err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
		return repo.Set(ctx, keySealed, sealed)
	})
}

func (p *SQLitePersister) Load(ctx context.Context) (Snapshot, bool, error) {
	repo := metadata.NewSQLiteRepository(p.db)

	sealed, err := repo.Get(ctx, keySealed)
	if err != nil {
		return Snapshot{}, false, err
	}
	if sealed == nil {
		return Snapshot{}, false, nil
	}
	salt, err := repo.Get(ctx, keySalt)
	if err != nil {
		return Snapshot{}, false, err
	}
	if salt == nil {
		return Snapshot{}, false, ErrCorruptSnapshot
	}

	var snap Snapshot
	if err := cryptox.OpenJSON(p.deriveKey(salt), sealed, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return snap, true, nil
}

// Clear removes the sealed snapshot; the salt stays for the next login.
func (p *SQLitePersister) Clear(ctx context.Context) error {
	return metadata.NewSQLiteRepository(p.db).Delete(ctx, keySealed)
}

// Purge deletes every persisted session key, salt included. It runs when
// persistence is switched off so no sealed credential stays on disk.
func Purge(ctx context.Context, repo metadata.Repository) (int, error) {
	pairs, err := repo.List(ctx, keyPrefix)
	if err != nil {
		return 0, err
	}
	for k := range pairs {
		if err := repo.Delete(ctx, k); err != nil {
			return 0, err
		}
	}
	return len(pairs), nil
}

func (p *SQLitePersister) deriveKey(salt []byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key == nil || !bytes.Equal(p.keySalt, salt) {
		p.key = cryptox.DeriveKey(p.secret, salt)
		p.keySalt = append([]byte(nil), salt...)
	}
	return p.key
}
