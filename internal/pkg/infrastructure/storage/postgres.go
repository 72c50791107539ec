package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "datastore"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

type postgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a storage backend on a postgres database, for
// emulator state that should survive restarts.
func NewPostgres(ctx context.Context, cfg Config) (Storage, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = pool.Ping(ctx)
	if err != nil {
		return nil, err
	}

	ddl := `CREATE TABLE IF NOT EXISTS entities (
		project_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		body JSONB NOT NULL,
		PRIMARY KEY (project_id, kind, name)
	);`

	_, err = pool.Exec(ctx, ddl)
	if err != nil {
		return nil, err
	}

	return &postgresStorage{pool: pool}, nil
}

func (s *postgresStorage) Put(ctx context.Context, projectID, kind, name string, body []byte) error {
	sql := `INSERT INTO entities (project_id, kind, name, body) VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, kind, name) DO UPDATE SET body = EXCLUDED.body;`

	_, err := s.pool.Exec(ctx, sql, projectID, kind, name, body)
	return err
}

func (s *postgresStorage) Get(ctx context.Context, projectID, kind, name string) ([]byte, error) {
	sql := `SELECT body FROM entities WHERE project_id=$1 AND kind=$2 AND name=$3;`

	var body []byte
	err := s.pool.QueryRow(ctx, sql, projectID, kind, name).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotExist
		}
		return nil, err
	}

	return body, nil
}

func (s *postgresStorage) Delete(ctx context.Context, projectID, kind, name string) error {
	sql := `DELETE FROM entities WHERE project_id=$1 AND kind=$2 AND name=$3;`

	_, err := s.pool.Exec(ctx, sql, projectID, kind, name)
	return err
}

func (s *postgresStorage) ListKind(ctx context.Context, projectID, kind string) ([][]byte, error) {
	sql := `SELECT body FROM entities WHERE project_id=$1 AND kind=$2 ORDER BY name;`

	rows, err := s.pool.Query(ctx, sql, projectID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bodies := make([][]byte, 0)

	for rows.Next() {
		var body []byte
		err := rows.Scan(&body)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bodies, nil
}
