package storage

import (
	"context"
	"database/sql"
	"time"
)

// DedupRepo recuerda las claves de eventos HTTP ya procesados.
type DedupRepo struct{ db *sql.DB }

func NewDedupRepo(db *sql.DB) *DedupRepo { return &DedupRepo{db: db} }

// Claim devuelve true la primera vez que ve la clave.
func (r *DedupRepo) Claim(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO event_dedup (dedup_key) VALUES ($1) ON CONFLICT DO NOTHING`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release libera la clave (el evento falló y se puede reintentar).
func (r *DedupRepo) Release(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM event_dedup WHERE dedup_key = $1`, key)
	return err
}

// Prune borra las claves más viejas que maxAge.
func (r *DedupRepo) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM event_dedup WHERE received_at < now() - make_interval(secs => $1)`, maxAge.Seconds())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
