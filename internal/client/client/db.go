package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sportmatch/internal/client/migrations"
	"github.com/dmitrijs2005/sportmatch/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sportmatch/internal/dbx"
	"github.com/dmitrijs2005/sportmatch/internal/filex"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
}

// InitDatabase opens the local SQLite database, creating its directory if
// needed, and applies the embedded migrations.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	if path := filex.SQLiteFile(dsn); path != "" {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}

	db, err := dbx.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := dbx.Migrate(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
