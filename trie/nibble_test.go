package trie

import (
	"bytes"
	"testing"
)

func TestNibbleRoundTrip(t *testing.T) {
	keys := [][]byte{
		{},
		{0x01},
		{0xab, 0xcd, 0xef},
		{0x00, 0xff, 0x10, 0x20},
	}
	for _, k := range keys {
		got := NibblesToKey(KeyToNibbles(k))
		if !bytes.Equal(got, k) {
			t.Fatalf("round trip mismatch: key=%x got=%x", k, got)
		}
	}
}

func TestCompactPathRoundTrip(t *testing.T) {
	cases := []CompactPath{
		{Nibbles: []byte{}, IsLeaf: false},
		{Nibbles: []byte{1, 2, 3}, IsLeaf: true},
		{Nibbles: []byte{0xa, 0xb, 0xc, 0xd}, IsLeaf: false},
		{Nibbles: []byte{0xf}, IsLeaf: true},
	}
	for _, c := range cases {
		got := DecodeCompactPath(c.Encode())
		if got.IsLeaf != c.IsLeaf {
			t.Fatalf("IsLeaf mismatch: want %v got %v (path %v)", c.IsLeaf, got.IsLeaf, c.Nibbles)
		}
		if !bytes.Equal(got.Nibbles, c.Nibbles) {
			t.Fatalf("nibbles mismatch: want %v got %v", c.Nibbles, got.Nibbles)
		}
	}
}

func TestCommonPrefix(t *testing.T) {
	if got := commonPrefix([]byte{1, 2, 3}, []byte{1, 2, 4}); got != 2 {
		t.Fatalf("want 2 got %d", got)
	}
	if got := commonPrefix([]byte{}, []byte{1}); got != 0 {
		t.Fatalf("want 0 got %d", got)
	}
}
