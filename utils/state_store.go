package utils

import (
	"sync"
	"time"
)

const oauthStatePrefix = "oauth:state:"

var (
	oauthStateMu sync.Mutex
	oauthStates  = map[string]time.Time{}
)

// SaveState records an OAuth state token with a TTL. States live in
// Redis when available; the in-memory map only covers a single instance.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := cacheCtx(2 * time.Second)
		defer cancel()
		_ = rc.Set(ctx, oauthStatePrefix+state, "1", ttl).Err()
		return
	}
	oauthStateMu.Lock()
	oauthStates[state] = time.Now().Add(ttl)
	oauthStateMu.Unlock()
}

// ConsumeState validates a state token and removes it so it cannot be
// replayed.
func ConsumeState(state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := cacheCtx(2 * time.Second)
		defer cancel()
		key := oauthStatePrefix + state
		if v, err := rc.GetDel(ctx, key).Result(); err == nil {
			return v != ""
		}
		// Older servers lack GETDEL; fall back to an atomic script.
		script := `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`
		if res, err := rc.Eval(ctx, script, []string{key}).Result(); err == nil {
			return res != nil
		}
		return false
	}
	oauthStateMu.Lock()
	expiresAt, ok := oauthStates[state]
	if ok {
		delete(oauthStates, state)
	}
	oauthStateMu.Unlock()
	return ok && time.Now().Before(expiresAt)
}
