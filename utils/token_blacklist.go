package utils

import (
	"sync"
	"time"
)

const blacklistPrefix = "jwt:blacklist:"

var (
	revokedMu sync.RWMutex
	revoked   = map[string]time.Time{}
)

// BlacklistToken revokes a token until its natural expiration. Redis is
// preferred so revocation survives restarts; without Redis an in-memory
// map covers the single-process case.
func BlacklistToken(token string, expiresAt time.Time) {
	if rc := GetRedis(); rc != nil {
		ttl := time.Until(expiresAt)
		if ttl <= 0 {
			return
		}
		ctx, cancel := cacheCtx(2 * time.Second)
		defer cancel()
		_ = rc.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
		return
	}
	revokedMu.Lock()
	revoked[token] = expiresAt
	revokedMu.Unlock()
}

// IsTokenBlacklisted reports whether a token was revoked before expiry.
// A Redis error fails open so a cache outage cannot lock everyone out.
func IsTokenBlacklisted(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := cacheCtx(2 * time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, blacklistPrefix+token).Result()
		if err == nil {
			return n > 0
		}
		return false
	}
	revokedMu.RLock()
	expiresAt, ok := revoked[token]
	revokedMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		revokedMu.Lock()
		delete(revoked, token)
		revokedMu.Unlock()
		return false
	}
	return true
}
