package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
	"github.com/patrickmn/go-cache"
)

// CachingOracle memoizes successful lookups of another oracle. Misses are not
// cached so a transient fallback failure can recover on a later pass.
type CachingOracle struct {
	next  Oracle
	cache *cache.Cache
}

func NewCachingOracle(next Oracle, ttl time.Duration) *CachingOracle {
	return &CachingOracle{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachingOracle) EURRate(symbol string, day time.Time) (float64, error) {
	key := fmt.Sprintf("%s@%s", strings.ToLower(strings.TrimSpace(symbol)), utils.FormatDay(day))
	if cached, found := c.cache.Get(key); found {
		return cached.(float64), nil
	}

	rate, err := c.next.EURRate(symbol, day)
	if err != nil {
		return 0, err
	}
	c.cache.Set(key, rate, cache.DefaultExpiration)
	return rate, nil
}
