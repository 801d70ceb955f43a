package harness

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	pool "github.com/jolestar/go-commons-pool/v2"

	"kvcore/interface/backend"
)

// 使用pool时，需要告诉它怎么创建一个客户端，怎么销毁一个客户端

// clientFactory makes load clients bound to one backend and remembers every
// client it made so the run can merge their samples.
type clientFactory struct {
	backend backend.Backend
	cfg     LoadConfig

	mu      sync.Mutex
	nextID  int64
	clients []*loadClient
}

// MakeObject creates a client with its own random source
func (f *clientFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &loadClient{
		backend: f.backend,
		cfg:     f.cfg,
		rng:     rand.New(rand.NewSource(f.cfg.Seed + f.nextID)),
		samples: make([]time.Duration, 0, 1024),
	}
	f.clients = append(f.clients, c)
	return pool.NewPooledObject(c), nil
}

// DestroyObject keeps the client's samples; only its backend handle is dropped
func (f *clientFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	c, ok := object.Object.(*loadClient)
	if !ok {
		return errors.New("type mismatch")
	}
	c.backend = nil
	return nil
}

func (f *clientFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	c, ok := object.Object.(*loadClient)
	return ok && c.backend != nil
}

func (f *clientFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *clientFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

// newClientPool holds at most cfg.Clients clients; borrowers wait for a free one.
func newClientPool(ctx context.Context, f *clientFactory) *pool.ObjectPool {
	poolConfig := pool.NewDefaultPoolConfig()
	poolConfig.MaxTotal = f.cfg.Clients
	poolConfig.MaxIdle = f.cfg.Clients
	poolConfig.BlockWhenExhausted = true
	return pool.NewObjectPool(ctx, f, poolConfig)
}

func borrowClient(ctx context.Context, p *pool.ObjectPool) (*loadClient, error) {
	raw, err := p.BorrowObject(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := raw.(*loadClient)
	if !ok {
		return nil, errors.New("client factory made wrong type")
	}
	return c, nil
}
