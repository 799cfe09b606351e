// Package planstore is an optional, shared Redis cache mapping a
// query-graph's structural hash to the planner.JoinTree the DP solver
// already found for it, so repeated query shapes across processes skip
// re-solving. A cache miss always falls back to the caller solving it
// fresh — this package never computes a plan itself.
package planstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"graphflow/internal/planner"
)

// Store wraps a Redis client scoped to one key prefix and TTL.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Config names the Redis endpoint and cache TTL.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New dials Redis and verifies connectivity. The caller owns shutting
// down the returned Store's underlying connection via Close.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to plan cache redis: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{client: client, prefix: "graphflow:plan:", ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// cachedTree is the JSON-serializable slice of a JoinTree worth
// caching: the unexported boundNodes/boundRels/order bookkeeping is
// solver-internal and not needed once a plan is chosen.
type cachedTree struct {
	Root        *planner.PlanNode
	Cardinality float64
	Cost        float64
}

// Get looks up the cached JoinTree for qg's structural shape. ok is
// false on a cache miss; err is non-nil only for a genuine Redis or
// decode failure, which callers should treat the same as a miss.
func (s *Store) Get(ctx context.Context, qg planner.QueryGraph) (*planner.JoinTree, bool, error) {
	key := s.key(qg)
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ct cachedTree
	if err := json.Unmarshal(data, &ct); err != nil {
		return nil, false, err
	}
	return &planner.JoinTree{Root: ct.Root, Cardinality: ct.Cardinality, Cost: ct.Cost}, true, nil
}

// Put stores tree under qg's structural hash, overwriting any prior
// entry and resetting its TTL.
func (s *Store) Put(ctx context.Context, qg planner.QueryGraph, tree *planner.JoinTree) error {
	data, err := json.Marshal(cachedTree{Root: tree.Root, Cardinality: tree.Cardinality, Cost: tree.Cost})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(qg), data, s.ttl).Err()
}

func (s *Store) key(qg planner.QueryGraph) string {
	return s.prefix + fmt.Sprintf("%x", hashQueryGraph(qg))
}

// hashQueryGraph hashes the structural shape of a query graph (which
// tables and rels connect which variables, in what direction, with what
// predicates attached) so two queries over different literal constants
// but the same shape share one cache entry. Predicate *values* never
// enter the hash, only the (Var, IsRel, Property) triple identifying
// which slot is filtered.
func hashQueryGraph(qg planner.QueryGraph) uint64 {
	h := xxhash.New()
	nodes := append([]planner.QueryNode(nil), qg.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, n := range nodes {
		fmt.Fprintf(h, "N:%d:%d|", n.ID, n.Table)
	}
	rels := append([]planner.QueryRel(nil), qg.Rels...)
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	for _, r := range rels {
		fmt.Fprintf(h, "R:%d:%d:%d:%d:%d|", r.ID, r.Table, r.Src, r.Dst, r.Dir)
	}
	preds := append([]planner.PredicateRef(nil), qg.Predicates...)
	sort.Slice(preds, func(i, j int) bool {
		if preds[i].Var != preds[j].Var {
			return preds[i].Var < preds[j].Var
		}
		return preds[i].Property < preds[j].Property
	})
	for _, p := range preds {
		fmt.Fprintf(h, "P:%d:%v:%s|", p.Var, p.IsRel, p.Property)
	}
	exprVars := append([]uint32(nil), qg.ExprScanVars...)
	sort.Slice(exprVars, func(i, j int) bool { return exprVars[i] < exprVars[j] })
	for _, v := range exprVars {
		fmt.Fprintf(h, "E:%d|", v)
	}
	return h.Sum64()
}
