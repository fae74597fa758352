// Package credential persists the bearer token that proves an authenticated
// session, so that a restarted client can resume it.
//
// Only the session layer writes the credential; the request gateway reads it
// for every call and deletes it when the backend rejects it.
package credential

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/ticketdesk/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ticketdesk/internal/dbx"
)

// Metadata keys. TokenKey is the single slot holding the active credential.
const (
	TokenKey     = "access_token"
	LastEmailKey = "last_email"
)

// Store is the persisted credential cell.
//
// Token returns "" when no credential is stored. Delete removes the token
// only; the remembered email survives logout.
type Store interface {
	Token(ctx context.Context) (string, error)
	Save(ctx context.Context, token, email string) error
	Delete(ctx context.Context) error
	LastEmail(ctx context.Context) (string, error)
}

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns a Store over the metadata table of db.
func NewSQLiteStore(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) repo() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

func (s *sqliteStore) Token(ctx context.Context) (string, error) {
	v, err := s.repo().Get(ctx, TokenKey)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return string(v), nil
}

// Save overwrites the token and remembers email in one transaction.
func (s *sqliteStore) Save(ctx context.Context, token, email string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, TokenKey, []byte(token)); err != nil {
			return err
		}
		if email == "" {
			return nil
		}
		return repo.Set(ctx, LastEmailKey, []byte(email))
	})
}

func (s *sqliteStore) Delete(ctx context.Context) error {
	if err := s.repo().Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (s *sqliteStore) LastEmail(ctx context.Context) (string, error) {
	v, err := s.repo().Get(ctx, LastEmailKey)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
