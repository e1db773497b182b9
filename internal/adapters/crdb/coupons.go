package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/eventhub/internal/domain"
)

const couponColumns = `id, code, discount_type, discount_value, is_active, expires_at, max_uses, used_count, created_at`

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	var discountType string
	var maxUses *int64
	var used int64
	err := row.Scan(&c.ID, &c.Code, &discountType, &c.DiscountValue, &c.IsActive, &c.ExpiresAt, &maxUses, &used, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.DiscountType = domain.DiscountType(discountType)
	c.UsedCount = int(used)
	if maxUses != nil {
		m := int(*maxUses)
		c.MaxUses = &m
	}
	return &c, nil
}

func (r *Repository) CreateCoupon(ctx context.Context, c domain.Coupon) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO coupons (id, code, discount_type, discount_value, is_active, expires_at, max_uses, used_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.Code, string(c.DiscountType), c.DiscountValue, c.IsActive, c.ExpiresAt, c.MaxUses, c.UsedCount, c.CreatedAt)
	if err := mapTxError(err); errors.Is(err, domain.ErrConflict) {
		return errors.Mark(errors.Newf("coupon code %s already exists", c.Code), domain.ErrConflict)
	} else if err != nil {
		return err
	}
	return nil
}

func (r *Repository) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("coupon %s not found", code)
	}
	return c, err
}
