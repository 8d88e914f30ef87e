package ctw

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"gomic/domain/core"
	"gomic/domain/mic"
)

const stateVersion = 1

// nodeRecord is the serialized form of one allocated node: its arena
// position, its path-hash key and the full estimator state. Restoring at
// the recorded index keeps reloads byte-for-byte equivalent to the
// original arena regardless of the original insertion order.
type nodeRecord struct {
	Index    uint32
	Key      uint64
	Kind     uint8
	C0       uint32
	C1       uint32
	Rescales uint32
	LogPe    float64
	LogPw    float64
}

type probeState struct {
	Count uint64
	Total uint64
	Min   uint32
	Max   uint32
}

// treeState is the versioned serializable state of a Tree.
type treeState struct {
	Version int
	Tag     string

	QLower      []float64
	QUpper      []float64
	QResolution []int

	Variables []int
	Lags      int
	MaxDepth  int
	Capacity  int

	PermBits []mic.BitRef
	PermCorr []float64

	TrainedSteps  uint64
	HashNanos     uint64
	MixNanos      uint64
	FailedAllocs  uint64
	RescaleEvents uint64
	LeafProbes    probeState
	BranchProbes  probeState

	Nodes []nodeRecord
}

// Save serializes the tree to gob so a caller can resume training or
// score after reload. Safe to call concurrently with scoring but not
// with training.
func (t *Tree) Save(w io.Writer) error {
	state := treeState{
		Version:       stateVersion,
		Tag:           t.tag.String(),
		QLower:        t.qspec.Lower,
		QUpper:        t.qspec.Upper,
		QResolution:   t.qspec.Resolution,
		Variables:     t.cspec.Variables,
		Lags:          t.cspec.Lags,
		MaxDepth:      t.cspec.MaxDepth,
		Capacity:      t.cspec.Capacity,
		PermBits:      t.perm.Bits,
		PermCorr:      t.perm.Correlations,
		TrainedSteps:  t.trainedSteps,
		HashNanos:     t.hashNanos,
		MixNanos:      t.mixNanos,
		FailedAllocs:  t.arena.failedAllocs,
		RescaleEvents: t.arena.rescaleEvents,
		LeafProbes:    saveProbes(&t.arena.leafProbes),
		BranchProbes:  saveProbes(&t.arena.branchProbes),
	}
	for i := range t.arena.nodes {
		n := &t.arena.nodes[i]
		if n.kind == nodeFree {
			continue
		}
		state.Nodes = append(state.Nodes, nodeRecord{
			Index:    uint32(i),
			Key:      n.key,
			Kind:     uint8(n.kind),
			C0:       n.c0,
			C1:       n.c1,
			Rescales: n.rescales,
			LogPe:    n.logPe,
			LogPw:    n.logPw,
		})
	}
	return gob.NewEncoder(w).Encode(state)
}

// Fingerprint hashes the serialized tree state, identifying exactly which
// trained tree produced a score or a saved stream. Two trees share a
// fingerprint iff Save would emit the same bytes for both.
func (t *Tree) Fingerprint() (core.TreeFingerprint, error) {
	var buf bytes.Buffer
	if err := t.Save(&buf); err != nil {
		return "", err
	}
	return core.NewTreeFingerprint(buf.Bytes()), nil
}

// Load rebuilds a tree from a Save stream.
func Load(r io.Reader) (*Tree, error) {
	var state treeState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptState, err)
	}
	if state.Version != stateVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", core.ErrUnsupportedVersion, state.Version, stateVersion)
	}

	qspec := mic.QuantizationSpec{Lower: state.QLower, Upper: state.QUpper, Resolution: state.QResolution}
	cspec := mic.ContextSpec{Variables: state.Variables, Lags: state.Lags, MaxDepth: state.MaxDepth, Capacity: state.Capacity}
	if err := qspec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptState, err)
	}
	if err := cspec.Validate(qspec); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptState, err)
	}

	perm := mic.BitPermutation{Bits: state.PermBits, Correlations: state.PermCorr}
	tree := newTree(qspec, cspec, perm, core.ModelTag(state.Tag))
	tree.trainedSteps = state.TrainedSteps
	tree.hashNanos = state.HashNanos
	tree.mixNanos = state.MixNanos
	tree.arena.failedAllocs = state.FailedAllocs
	tree.arena.rescaleEvents = state.RescaleEvents
	loadProbes(&tree.arena.leafProbes, state.LeafProbes)
	loadProbes(&tree.arena.branchProbes, state.BranchProbes)

	for _, rec := range state.Nodes {
		if int(rec.Index) >= cspec.Capacity || rec.Key == 0 {
			return nil, fmt.Errorf("%w: node record %d out of range", core.ErrCorruptState, rec.Index)
		}
		kind := nodeKind(rec.Kind)
		switch kind {
		case nodeLeaf:
			tree.arena.leafCount++
		case nodeBranch:
			tree.arena.branchCount++
		default:
			return nil, fmt.Errorf("%w: node record %d has kind %d", core.ErrCorruptState, rec.Index, rec.Kind)
		}
		tree.arena.nodes[rec.Index] = node{
			key:      rec.Key,
			kind:     kind,
			c0:       rec.C0,
			c1:       rec.C1,
			rescales: rec.Rescales,
			logPe:    rec.LogPe,
			logPw:    rec.LogPw,
		}
	}
	if _, ok := tree.arena.lookup(rootKey); !ok {
		return nil, fmt.Errorf("%w: missing root node", core.ErrCorruptState)
	}
	return tree, nil
}

func saveProbes(s *probeStats) probeState {
	return probeState{Count: s.count, Total: s.total, Min: s.min, Max: s.max}
}

func loadProbes(s *probeStats, st probeState) {
	s.count = st.Count
	s.total = st.Total
	s.min = st.Min
	s.max = st.Max
}
