package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	logx "tgcast/pkg/logx"
)

func postgresDialect() dialect {
	return dialect{
		name:     "postgres",
		numbered: true,
		timeArg:  func(t time.Time) any { return t.UTC() },
		isConflict: func(err error) bool {
			var pgErr *pgconn.PgError
			return errors.As(err, &pgErr) && pgErr.Code == "23505"
		},
	}
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &sqlStore{db: db, d: postgresDialect(), log: log}
	ddl, err := migrationsFS.ReadFile("migrations/postgres.sql")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := st.migrate(ctx, string(ddl)); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", "postgres"))
	return st, nil
}
