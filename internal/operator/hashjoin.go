package operator

import (
	"graphflow/internal/kernel"
	"graphflow/internal/memmgr"
	"graphflow/internal/vector"
)

// SIPPolicy is the sideways-information-passing hint chosen for a
// HashJoin based on the probe/build cardinality ratio against a
// configured SIPRatio (original_source supplement, §3 of SPEC_FULL.md).
type SIPPolicy int

const (
	AllowBoth SIPPolicy = iota
	ProhibitProbeToBuild
	ProhibitBuildToProbe
)

// ChooseSIPPolicy picks a policy from the probe/build cardinality ratio:
// when probe vastly outnumbers build, pushing a probe-side filter back to
// build pays off and vice versa; near-balanced ratios allow both
// directions.
func ChooseSIPPolicy(probeCard, buildCard float64, sipRatio float64) SIPPolicy {
	if buildCard <= 0 {
		return AllowBoth
	}
	ratio := probeCard / buildCard
	switch {
	case ratio > sipRatio:
		return ProhibitBuildToProbe
	case ratio < 1/sipRatio:
		return ProhibitProbeToBuild
	default:
		return AllowBoth
	}
}

// hashBucket is one group of build-side rows sharing a join-key hash.
type hashBucket struct {
	rows []buildRow
}

type buildRow struct {
	chunk *vector.DataChunk
	pos   int
}

// HashJoin is a two-phase operator: Build drains the right child into a
// hash table keyed on the join columns; Next probes the left child's
// batches against it, emitting one flat output row per matching pair.
type HashJoin struct {
	Probe    Operator
	Build    Operator
	KeyIdx   int // join-key column index, same on both sides
	SIP      SIPPolicy

	table map[uint64]*hashBucket

	probeChunk *vector.DataChunk
	probeIdx   int
	probePos   []int
	matches    []buildRow
	matchIdx   int

	result *vector.ResultSet
}

func NewHashJoin(probe, build Operator, keyIdx int) *HashJoin {
	return &HashJoin{Probe: probe, Build: build, KeyIdx: keyIdx, SIP: AllowBoth}
}

func (h *HashJoin) InitResultSet(mm *memmgr.MemoryManager) error {
	if err := h.Probe.InitResultSet(mm); err != nil {
		return err
	}
	if err := h.Build.InitResultSet(mm); err != nil {
		return err
	}
	return h.buildPhase()
}

func (h *HashJoin) buildPhase() error {
	h.table = make(map[uint64]*hashBucket)
	for {
		ok, err := h.Build.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rs := h.Build.ResultSet()
		for _, chunk := range rs.Chunks {
			keyVec := chunk.Vectors[h.KeyIdx]
			chunk.State.ForEach(func(_, pos int) {
				if keyVec.IsNull(pos) {
					return
				}
				hv := kernel.Hash64(keyVec, pos)
				b, ok := h.table[hv]
				if !ok {
					b = &hashBucket{}
					h.table[hv] = b
				}
				b.rows = append(b.rows, buildRow{chunk: chunk, pos: pos})
			})
		}
	}
	return nil
}

func (h *HashJoin) ReInitToRerun() {
	h.Probe.ReInitToRerun()
	h.Build.ReInitToRerun()
	h.probeChunk = nil
	h.probeIdx = 0
	h.matches = nil
	h.matchIdx = 0
}

func (h *HashJoin) Next() (bool, error) {
	for {
		if h.matchIdx < len(h.matches) {
			m := h.matches[h.matchIdx]
			h.matchIdx++
			probePos := h.probePos[h.probeIdx-1]
			h.result = h.joinRow(h.probeChunk, probePos, m)
			return true, nil
		}

		if h.probeChunk == nil || h.probeIdx >= len(h.probePos) {
			ok, err := h.Probe.Next()
			if err != nil || !ok {
				return ok, err
			}
			rs := h.Probe.ResultSet()
			if len(rs.Chunks) == 0 {
				continue
			}
			h.probeChunk = rs.Chunks[0]
			h.probePos = nil
			h.probeChunk.State.ForEach(func(_, pos int) {
				h.probePos = append(h.probePos, pos)
			})
			h.probeIdx = 0
			if len(h.probePos) == 0 {
				h.probeChunk = nil
				continue
			}
		}

		pos := h.probePos[h.probeIdx]
		h.probeIdx++
		keyVec := h.probeChunk.Vectors[h.KeyIdx]
		if keyVec.IsNull(pos) {
			h.matches = nil
			h.matchIdx = 0
			continue
		}
		hv := kernel.Hash64(keyVec, pos)
		bucket, found := h.table[hv]
		if !found {
			h.matches = nil
			h.matchIdx = 0
			continue
		}
		h.matches = bucket.rows
		h.matchIdx = 0
	}
}

func (h *HashJoin) joinRow(probeChunk *vector.DataChunk, probePos int, m buildRow) *vector.ResultSet {
	vectors := make([]*vector.Vector, 0, len(probeChunk.Vectors)+len(m.chunk.Vectors))
	flatProbe := vector.NewFlatState(probePos)
	for _, v := range probeChunk.Vectors {
		cp := *v
		cp.State = flatProbe
		vectors = append(vectors, &cp)
	}
	flatBuild := vector.NewFlatState(m.pos)
	for _, v := range m.chunk.Vectors {
		cp := *v
		cp.State = flatBuild
		vectors = append(vectors, &cp)
	}
	chunk := &vector.DataChunk{Vectors: vectors, State: vector.NewFlatState(0)}
	return vector.NewResultSet(chunk)
}

func (h *HashJoin) ResultSet() *vector.ResultSet { return h.result }

func (h *HashJoin) Clone() Operator {
	return &HashJoin{Probe: h.Probe.Clone(), Build: h.Build.Clone(), KeyIdx: h.KeyIdx, SIP: h.SIP}
}
