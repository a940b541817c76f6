package trie

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/synerthink/dotlanth/errs"
)

// Hash is the 32-byte Keccak-256 identifier of a serialized node (spec.md
// §4.5: "Node identifiers are Keccak-256 of the serialized node").
type Hash [32]byte

// NodeId is an alias kept for readability at call sites that read a node
// reference out of a branch slot or extension target.
type NodeId = Hash

// keccak256 hashes data with Keccak-256, grounded on
// original_source/crates/dotdb/core/src/state/mpt/lib.rs's keccak256.
func keccak256(data []byte) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// kind tags the three node shapes a serialized node may take.
type kind uint8

const (
	kindLeaf kind = iota + 1
	kindExtension
	kindBranch
)

// node is the in-memory representation of one trie node. Exactly one of the
// shape-specific fields is meaningful, selected by Kind.
type node struct {
	Kind kind

	// Leaf
	LeafPath  []byte // remaining nibbles from this node to the value
	LeafValue []byte

	// Extension
	ExtPath  []byte // shared nibbles compressed into this node
	ExtChild NodeId

	// Branch: one child slot per nibble value (16) plus an optional value
	// for a key that terminates exactly at this branch.
	BranchChildren [16]*NodeId
	BranchValue    []byte
}

func newLeaf(path []byte, value []byte) *node {
	return &node{Kind: kindLeaf, LeafPath: path, LeafValue: value}
}

func newExtension(path []byte, child NodeId) *node {
	return &node{Kind: kindExtension, ExtPath: path, ExtChild: child}
}

func newBranch() *node {
	return &node{Kind: kindBranch}
}

func (n *node) hasValue() bool {
	return n.Kind == kindBranch && n.BranchValue != nil
}

// serialize encodes n into a canonical byte form suitable for hashing and
// storage. Layout: [kind byte][compact-path-len varint][compact-path bytes]
// then shape-specific fields. Branch nodes store 16 presence-tagged child
// hash slots followed by a presence-tagged value.
func (n *node) serialize() []byte {
	switch n.Kind {
	case kindLeaf:
		cp := CompactPath{Nibbles: n.LeafPath, IsLeaf: true}.Encode()
		out := make([]byte, 0, 1+4+len(cp)+4+len(n.LeafValue))
		out = append(out, byte(kindLeaf))
		out = appendLenPrefixed(out, cp)
		out = appendLenPrefixed(out, n.LeafValue)
		return out
	case kindExtension:
		cp := CompactPath{Nibbles: n.ExtPath, IsLeaf: false}.Encode()
		out := make([]byte, 0, 1+4+len(cp)+32)
		out = append(out, byte(kindExtension))
		out = appendLenPrefixed(out, cp)
		out = append(out, n.ExtChild[:]...)
		return out
	case kindBranch:
		out := make([]byte, 0, 1+16*33+4+len(n.BranchValue))
		out = append(out, byte(kindBranch))
		for _, c := range n.BranchChildren {
			if c == nil {
				out = append(out, 0)
			} else {
				out = append(out, 1)
				out = append(out, c[:]...)
			}
		}
		out = appendLenPrefixed(out, n.BranchValue)
		return out
	default:
		return nil
	}
}

func appendLenPrefixed(out []byte, b []byte) []byte {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	out = append(out, l[:]...)
	return append(out, b...)
}

func readLenPrefixed(b []byte, off int) ([]byte, int, error) {
	if off+4 > len(b) {
		return nil, 0, errs.New(errs.KindFormat, "truncated node encoding")
	}
	n := int(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	if off+n > len(b) {
		return nil, 0, errs.New(errs.KindFormat, "truncated node encoding")
	}
	return b[off : off+n], off + n, nil
}

// deserializeNode is the inverse of node.serialize.
func deserializeNode(b []byte) (*node, error) {
	if len(b) == 0 {
		return nil, errs.New(errs.KindFormat, "empty node encoding")
	}
	switch kind(b[0]) {
	case kindLeaf:
		cpBytes, off, err := readLenPrefixed(b, 1)
		if err != nil {
			return nil, err
		}
		val, _, err := readLenPrefixed(b, off)
		if err != nil {
			return nil, err
		}
		cp := DecodeCompactPath(cpBytes)
		return newLeaf(cp.Nibbles, val), nil
	case kindExtension:
		cpBytes, off, err := readLenPrefixed(b, 1)
		if err != nil {
			return nil, err
		}
		if off+32 > len(b) {
			return nil, errs.New(errs.KindFormat, "truncated extension child hash")
		}
		var child NodeId
		copy(child[:], b[off:off+32])
		cp := DecodeCompactPath(cpBytes)
		return newExtension(cp.Nibbles, child), nil
	case kindBranch:
		n := newBranch()
		off := 1
		for i := 0; i < 16; i++ {
			if off >= len(b) {
				return nil, errs.New(errs.KindFormat, "truncated branch encoding")
			}
			present := b[off]
			off++
			if present != 0 {
				if off+32 > len(b) {
					return nil, errs.New(errs.KindFormat, "truncated branch child hash")
				}
				var h NodeId
				copy(h[:], b[off:off+32])
				n.BranchChildren[i] = &h
				off += 32
			}
		}
		val, _, err := readLenPrefixed(b, off)
		if err != nil {
			return nil, err
		}
		if len(val) > 0 {
			n.BranchValue = val
		}
		return n, nil
	default:
		return nil, errs.New(errs.KindTrie, "invalid node type")
	}
}

// id returns the content-addressed identifier of n (its hash).
func (n *node) id() Hash {
	return keccak256(n.serialize())
}
