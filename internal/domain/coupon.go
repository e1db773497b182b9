package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type Coupon struct {
	ID            uuid.UUID
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	IsActive      bool
	ExpiresAt     *time.Time
	MaxUses       *int
	UsedCount     int
	CreatedAt     time.Time
}

// CheckRedeemable enforces active, unexpired and usedCount < maxUses.
func (c Coupon) CheckRedeemable(now time.Time) error {
	if !c.IsActive {
		return Validationf("coupon %s is not active", c.Code)
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return Validationf("coupon %s has expired", c.Code)
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return Validationf("coupon %s usage limit exceeded", c.Code)
	}
	return nil
}

// Discount is never larger than amount.
func (c Coupon) Discount(amount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		d = amount.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		d = c.DiscountValue
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(amount) {
		return amount
	}
	return d
}

func (c Coupon) Validate() error {
	if c.Code == "" {
		return Validationf("coupon code is required")
	}
	switch c.DiscountType {
	case DiscountPercentage:
		if c.DiscountValue.LessThanOrEqual(decimal.Zero) || c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			return Validationf("percentage discount must be in (0, 100]")
		}
	case DiscountFixed:
		if c.DiscountValue.LessThanOrEqual(decimal.Zero) {
			return Validationf("fixed discount must be positive")
		}
	default:
		return Validationf("unknown discount type %q", c.DiscountType)
	}
	if c.MaxUses != nil && *c.MaxUses <= 0 {
		return Validationf("max uses must be positive")
	}
	return nil
}
