package trie

import (
	"bytes"

	"github.com/synerthink/dotlanth/errs"
)

// Store is the content-addressed persistence the trie is built over. A
// *storage/engine.BlobStore satisfies this directly.
type Store interface {
	Get(id [32]byte) ([]byte, error)
	Put(id [32]byte, data []byte) error
	Has(id [32]byte) bool
}

// Trie is an immutable-root Merkle Patricia Trie (spec.md §4.5, C5): every
// Put/Delete returns a new root hash, leaving prior roots (and every node
// reachable from them) intact in Store for as long as something references
// them.
type Trie struct {
	store Store
}

// New wraps a Store with trie operations.
func New(store Store) *Trie {
	return &Trie{store: store}
}

// EmptyRoot is the canonical root of a trie with zero entries: there is no
// node to hash, so it is simply the zero hash.
var EmptyRoot Hash

func (t *Trie) loadNode(id Hash) (*node, error) {
	raw, err := t.store.Get(id)
	if err != nil {
		return nil, errs.Wrap(errs.KindTrie, "node not found", err).With(map[string]any{"node_id": id})
	}
	return deserializeNode(raw)
}

func (t *Trie) storeNode(n *node) (Hash, error) {
	id := n.id()
	if err := t.store.Put(id, n.serialize()); err != nil {
		return Hash{}, err
	}
	return id, nil
}

// Get retrieves the value stored under key, starting from root.
func (t *Trie) Get(root Hash, key []byte) ([]byte, error) {
	if root == EmptyRoot {
		return nil, errs.New(errs.KindTrie, "key not found").With(map[string]any{"key": key})
	}
	return t.get(root, KeyToNibbles(key), key)
}

func (t *Trie) get(id Hash, nibbles []byte, origKey []byte) ([]byte, error) {
	n, err := t.loadNode(id)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case kindLeaf:
		if bytes.Equal(n.LeafPath, nibbles) {
			return n.LeafValue, nil
		}
		return nil, errs.New(errs.KindTrie, "key not found").With(map[string]any{"key": origKey})
	case kindExtension:
		cpl := commonPrefix(n.ExtPath, nibbles)
		if cpl != len(n.ExtPath) {
			return nil, errs.New(errs.KindTrie, "key not found").With(map[string]any{"key": origKey})
		}
		return t.get(n.ExtChild, nibbles[cpl:], origKey)
	case kindBranch:
		if len(nibbles) == 0 {
			if n.hasValue() {
				return n.BranchValue, nil
			}
			return nil, errs.New(errs.KindTrie, "key not found").With(map[string]any{"key": origKey})
		}
		idx := nibbles[0]
		child := n.BranchChildren[idx]
		if child == nil {
			return nil, errs.New(errs.KindTrie, "key not found").With(map[string]any{"key": origKey})
		}
		return t.get(*child, nibbles[1:], origKey)
	default:
		return nil, errs.New(errs.KindTrie, "invalid node type")
	}
}

// Put inserts or overwrites key=value and returns the new root.
func (t *Trie) Put(root Hash, key, value []byte) (Hash, error) {
	nibbles := KeyToNibbles(key)
	if root == EmptyRoot {
		n := newLeaf(nibbles, value)
		return t.storeNode(n)
	}
	return t.put(root, nibbles, value)
}

func (t *Trie) put(id Hash, nibbles []byte, value []byte) (Hash, error) {
	n, err := t.loadNode(id)
	if err != nil {
		return Hash{}, err
	}
	switch n.Kind {
	case kindLeaf:
		cpl := commonPrefix(n.LeafPath, nibbles)
		if cpl == len(n.LeafPath) && cpl == len(nibbles) {
			return t.storeNode(newLeaf(nibbles, value))
		}
		return t.splitLeaf(n, cpl, nibbles, value)
	case kindExtension:
		cpl := commonPrefix(n.ExtPath, nibbles)
		if cpl == len(n.ExtPath) {
			childID, err := t.put(n.ExtChild, nibbles[cpl:], value)
			if err != nil {
				return Hash{}, err
			}
			return t.storeNode(newExtension(n.ExtPath, childID))
		}
		return t.splitExtension(n, cpl, nibbles, value)
	case kindBranch:
		if len(nibbles) == 0 {
			n.BranchValue = value
			return t.storeNode(n)
		}
		idx := nibbles[0]
		var childID Hash
		if n.BranchChildren[idx] != nil {
			cid, err := t.put(*n.BranchChildren[idx], nibbles[1:], value)
			if err != nil {
				return Hash{}, err
			}
			childID = cid
		} else {
			leaf := newLeaf(nibbles[1:], value)
			cid, err := t.storeNode(leaf)
			if err != nil {
				return Hash{}, err
			}
			childID = cid
		}
		n.BranchChildren[idx] = &childID
		return t.storeNode(n)
	default:
		return Hash{}, errs.New(errs.KindTrie, "invalid node type")
	}
}

// splitLeaf handles divergence partway through a leaf's path: the shared
// prefix becomes an extension (if non-empty) over a new branch holding both
// the old and new values.
func (t *Trie) splitLeaf(n *node, cpl int, nibbles []byte, value []byte) (Hash, error) {
	branch := newBranch()
	oldRest := n.LeafPath[cpl:]
	newRest := nibbles[cpl:]

	if len(oldRest) == 0 {
		branch.BranchValue = n.LeafValue
	} else {
		oldLeaf := newLeaf(oldRest[1:], n.LeafValue)
		oldID, err := t.storeNode(oldLeaf)
		if err != nil {
			return Hash{}, err
		}
		branch.BranchChildren[oldRest[0]] = &oldID
	}

	if len(newRest) == 0 {
		branch.BranchValue = value
	} else {
		newLeafNode := newLeaf(newRest[1:], value)
		newID, err := t.storeNode(newLeafNode)
		if err != nil {
			return Hash{}, err
		}
		branch.BranchChildren[newRest[0]] = &newID
	}

	branchID, err := t.storeNode(branch)
	if err != nil {
		return Hash{}, err
	}
	if cpl == 0 {
		return branchID, nil
	}
	return t.storeNode(newExtension(n.LeafPath[:cpl], branchID))
}

// splitExtension handles divergence partway through an extension's shared
// path, mirroring splitLeaf but preserving the extension's child subtree.
func (t *Trie) splitExtension(n *node, cpl int, nibbles []byte, value []byte) (Hash, error) {
	branch := newBranch()
	oldRest := n.ExtPath[cpl:]
	newRest := nibbles[cpl:]

	if len(oldRest) == 1 {
		branch.BranchChildren[oldRest[0]] = &n.ExtChild
	} else {
		extID, err := t.storeNode(newExtension(oldRest[1:], n.ExtChild))
		if err != nil {
			return Hash{}, err
		}
		branch.BranchChildren[oldRest[0]] = &extID
	}

	if len(newRest) == 0 {
		branch.BranchValue = value
	} else {
		newLeafNode := newLeaf(newRest[1:], value)
		newID, err := t.storeNode(newLeafNode)
		if err != nil {
			return Hash{}, err
		}
		branch.BranchChildren[newRest[0]] = &newID
	}

	branchID, err := t.storeNode(branch)
	if err != nil {
		return Hash{}, err
	}
	if cpl == 0 {
		return branchID, nil
	}
	return t.storeNode(newExtension(n.ExtPath[:cpl], branchID))
}

// Delete removes key from the trie rooted at root and returns the new root.
// Deletion collapses single-child branches and merges redundant extensions
// (spec.md §4.5).
func (t *Trie) Delete(root Hash, key []byte) (Hash, error) {
	if root == EmptyRoot {
		return Hash{}, errs.New(errs.KindTrie, "key not found").With(map[string]any{"key": key})
	}
	newID, deleted, err := t.del(root, KeyToNibbles(key))
	if err != nil {
		return Hash{}, err
	}
	if !deleted {
		return Hash{}, errs.New(errs.KindTrie, "key not found").With(map[string]any{"key": key})
	}
	return newID, nil
}

// del returns (newNodeID, deleted), where deleted reports that key was found
// and removed. When the subtree becomes entirely empty it returns
// (EmptyRoot, true) and the caller removes the slot.
func (t *Trie) del(id Hash, nibbles []byte) (Hash, bool, error) {
	n, err := t.loadNode(id)
	if err != nil {
		return Hash{}, false, err
	}
	switch n.Kind {
	case kindLeaf:
		if !bytes.Equal(n.LeafPath, nibbles) {
			return Hash{}, false, errs.New(errs.KindTrie, "key not found")
		}
		return EmptyRoot, true, nil
	case kindExtension:
		cpl := commonPrefix(n.ExtPath, nibbles)
		if cpl != len(n.ExtPath) {
			return Hash{}, false, errs.New(errs.KindTrie, "key not found")
		}
		childID, existed, err := t.del(n.ExtChild, nibbles[cpl:])
		if err != nil {
			return Hash{}, false, err
		}
		if !existed {
			return Hash{}, false, nil
		}
		if childID == EmptyRoot {
			return EmptyRoot, true, nil
		}
		merged, err := t.mergeExtension(n.ExtPath, childID)
		if err != nil {
			return Hash{}, false, err
		}
		return merged, true, nil
	case kindBranch:
		if len(nibbles) == 0 {
			if !n.hasValue() {
				return Hash{}, false, errs.New(errs.KindTrie, "key not found")
			}
			n.BranchValue = nil
		} else {
			idx := nibbles[0]
			if n.BranchChildren[idx] == nil {
				return Hash{}, false, errs.New(errs.KindTrie, "key not found")
			}
			childID, existed, err := t.del(*n.BranchChildren[idx], nibbles[1:])
			if err != nil {
				return Hash{}, false, err
			}
			if !existed {
				return Hash{}, false, nil
			}
			if childID == EmptyRoot {
				n.BranchChildren[idx] = nil
			} else {
				n.BranchChildren[idx] = &childID
			}
		}
		return t.collapseBranch(n)
	default:
		return Hash{}, false, errs.New(errs.KindTrie, "invalid node type")
	}
}

// collapseBranch reduces a branch with a single remaining child and no
// value down to an extension (or bare leaf/extension merge), per spec.md
// §4.5's "deletion collapses single-child branches" rule.
func (t *Trie) collapseBranch(n *node) (Hash, bool, error) {
	count := 0
	var onlyIdx byte
	for i, c := range n.BranchChildren {
		if c != nil {
			count++
			onlyIdx = byte(i)
		}
	}
	if count == 0 && !n.hasValue() {
		return EmptyRoot, true, nil
	}
	if count == 0 && n.hasValue() {
		id, err := t.storeNode(newLeaf(nil, n.BranchValue))
		return id, true, err
	}
	if count == 1 && !n.hasValue() {
		childID := *n.BranchChildren[onlyIdx]
		child, err := t.loadNode(childID)
		if err != nil {
			return Hash{}, false, err
		}
		switch child.Kind {
		case kindLeaf:
			id, err := t.storeNode(newLeaf(append([]byte{onlyIdx}, child.LeafPath...), child.LeafValue))
			return id, true, err
		case kindExtension:
			id, err := t.storeNode(newExtension(append([]byte{onlyIdx}, child.ExtPath...), child.ExtChild))
			return id, true, err
		default: // branch
			id, err := t.storeNode(newExtension([]byte{onlyIdx}, childID))
			return id, true, err
		}
	}
	id, err := t.storeNode(n)
	return id, true, err
}

// mergeExtension merges an extension's shared path with its child when the
// child is itself a leaf or extension, avoiding chains of single-purpose
// extension nodes.
func (t *Trie) mergeExtension(path []byte, childID Hash) (Hash, error) {
	child, err := t.loadNode(childID)
	if err != nil {
		return Hash{}, err
	}
	switch child.Kind {
	case kindLeaf:
		return t.storeNode(newLeaf(append(append([]byte{}, path...), child.LeafPath...), child.LeafValue))
	case kindExtension:
		return t.storeNode(newExtension(append(append([]byte{}, path...), child.ExtPath...), child.ExtChild))
	default:
		return t.storeNode(newExtension(path, childID))
	}
}

// ProofNode is one step in an inclusion or absence proof: the serialized
// node bytes as they were hashed, in root-to-leaf order.
type ProofNode struct {
	Encoded []byte
}

// Proof is the ordered sequence of nodes from root down to the target leaf,
// or to the point where the key's path diverges from the trie (an absence
// witness), per spec.md §4.5.
type Proof struct {
	Nodes []ProofNode
}

// Prove builds an inclusion or absence proof for key against root.
func (t *Trie) Prove(root Hash, key []byte) (Proof, error) {
	var proof Proof
	if root == EmptyRoot {
		return proof, nil
	}
	nibbles := KeyToNibbles(key)
	id := root
	for {
		n, err := t.loadNode(id)
		if err != nil {
			return Proof{}, err
		}
		proof.Nodes = append(proof.Nodes, ProofNode{Encoded: n.serialize()})
		switch n.Kind {
		case kindLeaf:
			return proof, nil
		case kindExtension:
			cpl := commonPrefix(n.ExtPath, nibbles)
			if cpl != len(n.ExtPath) {
				return proof, nil
			}
			nibbles = nibbles[cpl:]
			id = n.ExtChild
		case kindBranch:
			if len(nibbles) == 0 {
				return proof, nil
			}
			idx := nibbles[0]
			if n.BranchChildren[idx] == nil {
				return proof, nil
			}
			id = *n.BranchChildren[idx]
			nibbles = nibbles[1:]
		default:
			return Proof{}, errs.New(errs.KindTrie, "invalid node type")
		}
	}
}

// Verify recomputes hashes bottom-up over proof and checks that the
// reconstructed root matches claimedRoot, then confirms the proof actually
// terminates at key=value (inclusion) or at an absence witness when value
// is nil. Any hash mismatch fails with InvalidProof (spec.md §4.5).
func Verify(claimedRoot Hash, key, value []byte, proof Proof) (bool, error) {
	if len(proof.Nodes) == 0 {
		return claimedRoot == EmptyRoot && value == nil, nil
	}

	// Recompute the hash chain: node i's encoded bytes must hash to the
	// identifier referenced by node i-1 (or to claimedRoot for node 0).
	want := claimedRoot
	nibbles := KeyToNibbles(key)
	for i, pn := range proof.Nodes {
		n, err := deserializeNode(pn.Encoded)
		if err != nil {
			return false, errs.Wrap(errs.KindTrie, "invalid proof", err)
		}
		got := keccak256(pn.Encoded)
		if got != want {
			return false, errs.New(errs.KindTrie, "invalid proof").With(map[string]any{"index": i})
		}

		switch n.Kind {
		case kindLeaf:
			match := bytes.Equal(n.LeafPath, nibbles) && bytes.Equal(n.LeafValue, value)
			absence := value == nil && !bytes.Equal(n.LeafPath, nibbles)
			return match || absence, nil
		case kindExtension:
			cpl := commonPrefix(n.ExtPath, nibbles)
			if cpl != len(n.ExtPath) {
				return value == nil, nil
			}
			nibbles = nibbles[cpl:]
			want = n.ExtChild
		case kindBranch:
			if len(nibbles) == 0 {
				if value == nil {
					return !n.hasValue(), nil
				}
				return n.hasValue() && bytes.Equal(n.BranchValue, value), nil
			}
			idx := nibbles[0]
			if n.BranchChildren[idx] == nil {
				return value == nil, nil
			}
			want = *n.BranchChildren[idx]
			nibbles = nibbles[1:]
		default:
			return false, errs.New(errs.KindTrie, "invalid node type")
		}
	}
	return value == nil, nil
}
