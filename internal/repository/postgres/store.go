package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/decsecmsg/internal/repository"
)

// NewGateway wires the postgres repositories. Closing the gateway closes the pool.
func NewGateway(pool *pgxpool.Pool) *repository.Gateway {
	return repository.NewGateway(
		NewUserRepo(pool),
		NewContactRepo(pool),
		NewMessageRepo(pool),
		func(context.Context) error {
			pool.Close()
			return nil
		},
	)
}
