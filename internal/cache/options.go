package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// optionsTTL bounds how long a terminal's parsed options block stays
// cached in Redis before the entry expires.
const optionsTTL = 5 * time.Minute

// OptionsCache mirrors each terminal's options map into Redis. The
// registry writes it when init options are applied and drops it when the
// terminal is deleted; the registry's own terminal reads go to postgres,
// not to this cache.
type OptionsCache struct {
	kv KVStore
}

func NewOptionsCache(kv KVStore) *OptionsCache {
	return &OptionsCache{kv: kv}
}

func optionsKey(serial string) string {
	return fmt.Sprintf("terminal:%s:options", serial)
}

// Get returns the cached options map, or (nil, false) on a cache miss.
func (c *OptionsCache) Get(ctx context.Context, serial string) (map[string]string, bool) {
	raw, err := c.kv.Get(ctx, optionsKey(serial))
	if err != nil {
		return nil, false
	}
	var opts map[string]string
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, false
	}
	return opts, true
}

// Set refreshes the cached options map for serial.
func (c *OptionsCache) Set(ctx context.Context, serial string, opts map[string]string) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshal terminal options: %w", err)
	}
	return c.kv.Set(ctx, optionsKey(serial), string(data), optionsTTL)
}

// Invalidate drops the cached entry, e.g. after an operator deletes the
// terminal.
func (c *OptionsCache) Invalidate(ctx context.Context, serial string) error {
	return c.kv.Del(ctx, optionsKey(serial))
}
