package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
	"github.com/valkey-io/valkey-go/valkeycompat"
)

// Valkey is a shared cache backed by a Valkey (or Redis) server.
type Valkey struct {
	raw    valkey.Client
	client valkeycompat.Cmdable
	prefix string
}

// NewValkey connects to addr (comma separated for several nodes).
func NewValkey(addr, prefix string) (*Valkey, error) {
	var nodes []string
	for _, p := range strings.Split(addr, ",") {
		if p = strings.TrimSpace(p); p != "" {
			nodes = append(nodes, p)
		}
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("valkey address is required")
	}
	raw, err := valkey.NewClient(valkey.ClientOption{InitAddress: nodes})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Valkey{raw: raw, client: valkeycompat.NewAdapter(raw), prefix: prefix}, nil
}

func (v *Valkey) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := v.client.Get(ctx, v.key(key)).Bytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("valkey get: %w", err)
	}
	return raw, nil
}

func (v *Valkey) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := v.client.Set(ctx, v.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

func (v *Valkey) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = v.key(k)
	}
	if err := v.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("valkey del: %w", err)
	}
	return nil
}

// Close releases the underlying connections.
func (v *Valkey) Close() {
	v.raw.Close()
}

func (v *Valkey) key(k string) string {
	if v.prefix == "" {
		return k
	}
	return v.prefix + ":" + k
}

var _ Cache = (*Valkey)(nil)
