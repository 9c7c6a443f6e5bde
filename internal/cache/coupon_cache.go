package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/kiosk-order-system/internal/model"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
)

const couponKeyPrefix = "kiosk:coupon:"

// CouponCache is a read-through cache in front of the coupon catalog.
// Cache failures degrade to the inner repository.
type CouponCache struct {
	inner service.CouponRepositoryInterface
	store Store
	ttl   time.Duration
}

// NewCouponCache wraps inner with store using the given entry lifetime.
func NewCouponCache(inner service.CouponRepositoryInterface, store Store, ttl time.Duration) *CouponCache {
	return &CouponCache{inner: inner, store: store, ttl: ttl}
}

func (c *CouponCache) GetByID(ctx context.Context, id string) (*model.Coupon, error) {
	if coupon, ok := c.lookup(ctx, id); ok {
		return coupon, nil
	}
	coupon, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, coupon)
	return coupon, nil
}

func (c *CouponCache) GetByIDs(ctx context.Context, ids []string) ([]model.Coupon, error) {
	found := make(map[string]model.Coupon, len(ids))
	var missing []string
	for _, id := range ids {
		if coupon, ok := c.lookup(ctx, id); ok {
			found[id] = *coupon
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		loaded, err := c.inner.GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for i := range loaded {
			found[loaded[i].ID] = loaded[i]
			c.fill(ctx, &loaded[i])
		}
	}

	out := make([]model.Coupon, 0, len(ids))
	for _, id := range ids {
		out = append(out, found[id])
	}
	return out, nil
}

func (c *CouponCache) lookup(ctx context.Context, id string) (*model.Coupon, bool) {
	raw, ok, err := c.store.Get(ctx, couponKeyPrefix+id)
	if err != nil {
		log.Warn().Err(err).Str("coupon_id", id).Msg("coupon cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var coupon model.Coupon
	if err := json.Unmarshal([]byte(raw), &coupon); err != nil {
		log.Warn().Err(err).Str("coupon_id", id).Msg("discarding undecodable cached coupon")
		return nil, false
	}
	return &coupon, true
}

func (c *CouponCache) fill(ctx context.Context, coupon *model.Coupon) {
	raw, err := json.Marshal(coupon)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, couponKeyPrefix+coupon.ID, string(raw), c.ttl); err != nil {
		log.Warn().Err(err).Str("coupon_id", coupon.ID).Msg("coupon cache write failed")
	}
}
