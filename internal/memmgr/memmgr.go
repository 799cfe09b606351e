// Package memmgr implements the MemoryManager external interface (§6):
// pooled ownership of vector buffers and aggregate hash-table blocks, so
// operators allocate from (and return to) a shared pool instead of the Go
// heap directly. The pooling pattern — factory, free-list channel, health
// eviction of stale blocks, atomic counters for stats — mirrors a generic
// storage connection pool, adapted here to pool fixed-size memory blocks
// instead of network connections.
package memmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"graphflow/internal/vector"
)

var (
	ErrManagerClosed = errors.New("memory manager is closed")
	ErrPoolExhausted = errors.New("block pool is exhausted")
)

// Block is a pooled, reusable byte buffer used for hash-table entry
// storage and other fixed-size allocations that outlive a single next()
// call.
type Block struct {
	Bytes []byte
	id    uint64
}

// BlockConfig mirrors a generic connection-pool's tuning knobs,
// generalized from pooled network connections to pooled memory blocks.
type BlockConfig struct {
	BlockSize           int
	MaxBlocks           int
	MinBlocks           int
	MaxIdleTime         time.Duration
	HealthCheckInterval time.Duration
}

// DefaultBlockConfig returns sensible pool sizing defaults, scaled to a
// 64KiB hash-table block size.
func DefaultBlockConfig() *BlockConfig {
	return &BlockConfig{
		BlockSize:           64 * 1024,
		MaxBlocks:           64,
		MinBlocks:           2,
		MaxIdleTime:         30 * time.Minute,
		HealthCheckInterval: time.Minute,
	}
}

type pooledBlock struct {
	block      *Block
	lastUsedAt time.Time
	mu         sync.Mutex
}

func (pb *pooledBlock) isIdleExpired(maxIdle time.Duration) bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return maxIdle > 0 && time.Since(pb.lastUsedAt) > maxIdle
}

func (pb *pooledBlock) markUsed() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.lastUsedAt = time.Now()
}

// MemoryManager pools fixed-size Blocks for aggregate hash-table entry
// storage and provides plain Vector allocation for operator pipelines.
type MemoryManager struct {
	config *BlockConfig
	blocks chan *pooledBlock
	mu     sync.RWMutex
	closed int32

	nextBlockID    uint64
	activeCount    int32
	totalAllocated int64
	totalReleased  int64

	healthTicker *time.Ticker
	healthDone   chan struct{}
	healthWg     sync.WaitGroup
}

// New creates a MemoryManager, pre-allocating MinBlocks and starting the
// idle-block eviction loop.
func New(config *BlockConfig) (*MemoryManager, error) {
	if config == nil {
		config = DefaultBlockConfig()
	}
	if config.MaxBlocks <= 0 {
		return nil, errors.New("max blocks must be positive")
	}
	if config.MinBlocks < 0 || config.MinBlocks > config.MaxBlocks {
		return nil, errors.New("invalid min blocks")
	}

	m := &MemoryManager{
		config:     config,
		blocks:     make(chan *pooledBlock, config.MaxBlocks),
		healthDone: make(chan struct{}),
	}
	for i := 0; i < config.MinBlocks; i++ {
		if err := m.allocateBlock(); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("failed to pre-allocate blocks: %w", err)
		}
	}
	if config.HealthCheckInterval > 0 {
		m.healthTicker = time.NewTicker(config.HealthCheckInterval)
		m.healthWg.Add(1)
		go m.evictionLoop()
	}
	return m, nil
}

// AcquireBlock returns a Block from the pool, allocating a new one if
// under MaxBlocks, or blocking until ctx is done if the pool is exhausted.
func (m *MemoryManager) AcquireBlock(ctx context.Context) (*Block, error) {
	if atomic.LoadInt32(&m.closed) == 1 {
		return nil, ErrManagerClosed
	}
	select {
	case pb := <-m.blocks:
		pb.markUsed()
		atomic.AddInt32(&m.activeCount, 1)
		return pb.block, nil
	default:
		current := len(m.blocks) + int(atomic.LoadInt32(&m.activeCount))
		if current < m.config.MaxBlocks {
			if err := m.allocateBlock(); err != nil {
				return nil, err
			}
			return m.AcquireBlock(ctx)
		}
		select {
		case pb := <-m.blocks:
			pb.markUsed()
			atomic.AddInt32(&m.activeCount, 1)
			return pb.block, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReleaseBlock returns a block to the pool for reuse, zeroing its bytes so
// the next acquirer never observes a stale hash-table entry.
func (m *MemoryManager) ReleaseBlock(b *Block) {
	atomic.AddInt32(&m.activeCount, -1)
	if atomic.LoadInt32(&m.closed) == 1 {
		return
	}
	for i := range b.Bytes {
		b.Bytes[i] = 0
	}
	pb := &pooledBlock{block: b, lastUsedAt: time.Now()}
	select {
	case m.blocks <- pb:
	default:
		atomic.AddInt64(&m.totalReleased, 1)
	}
}

// AllocateVector is a thin convenience wrapper: vectors are not pooled
// (their lifetime is one pipeline pass and Go's GC reclaims them cheaply),
// but allocation is routed through the manager so call sites have one
// place to account for memory pressure.
func (m *MemoryManager) AllocateVector(t vector.LogicalType, capacity int) *vector.Vector {
	return vector.NewVectorCapacity(t, capacity)
}

// Close stops the eviction loop and drains the pool.
func (m *MemoryManager) Close() error {
	if !atomic.CompareAndSwapInt32(&m.closed, 0, 1) {
		return nil
	}
	if m.healthTicker != nil {
		m.healthTicker.Stop()
		close(m.healthDone)
		m.healthWg.Wait()
	}
	close(m.blocks)
	return nil
}

// Stats reports pool occupancy for diagnostics.
type Stats struct {
	MaxBlocks      int
	IdleBlocks     int
	ActiveBlocks   int
	TotalAllocated int64
	TotalReleased  int64
}

func (m *MemoryManager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		MaxBlocks:      m.config.MaxBlocks,
		IdleBlocks:     len(m.blocks),
		ActiveBlocks:   int(atomic.LoadInt32(&m.activeCount)),
		TotalAllocated: atomic.LoadInt64(&m.totalAllocated),
		TotalReleased:  atomic.LoadInt64(&m.totalReleased),
	}
}

func (m *MemoryManager) allocateBlock() error {
	id := atomic.AddUint64(&m.nextBlockID, 1)
	b := &Block{Bytes: make([]byte, m.config.BlockSize), id: id}
	pb := &pooledBlock{block: b, lastUsedAt: time.Now()}
	select {
	case m.blocks <- pb:
		atomic.AddInt64(&m.totalAllocated, 1)
		return nil
	default:
		return ErrPoolExhausted
	}
}

func (m *MemoryManager) evictionLoop() {
	defer m.healthWg.Done()
	for {
		select {
		case <-m.healthTicker.C:
			m.evictIdle()
		case <-m.healthDone:
			return
		}
	}
}

func (m *MemoryManager) evictIdle() {
	var keep []*pooledBlock
	for {
		select {
		case pb := <-m.blocks:
			keep = append(keep, pb)
		default:
			goto drained
		}
	}
drained:
	for _, pb := range keep {
		if pb.isIdleExpired(m.config.MaxIdleTime) && len(m.blocks)+int(atomic.LoadInt32(&m.activeCount)) > m.config.MinBlocks {
			atomic.AddInt64(&m.totalReleased, 1)
			continue
		}
		select {
		case m.blocks <- pb:
		default:
		}
	}
	for len(m.blocks)+int(atomic.LoadInt32(&m.activeCount)) < m.config.MinBlocks {
		if err := m.allocateBlock(); err != nil {
			break
		}
	}
}
