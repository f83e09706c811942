package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
)

type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(pool *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func (r *AuditLogRepository) Insert(ctx context.Context, l entity.AuditLog) error {
	md := l.Metadata
	if md == nil {
		md = map[string]any{}
	}
	b, err := json.Marshal(md)
	if err != nil {
		return err
	}

	var uid pgtype.UUID
	if parsed, err := uuid.Parse(l.UserID); err == nil {
		uid = pgtype.UUID{Bytes: parsed, Valid: true}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, email, action, ip, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uid, nullText(l.Email), l.Action, nullText(l.IP), nullText(l.UserAgent), b)
	return err
}

var _ repository.AuditLogRepository = (*AuditLogRepository)(nil)
