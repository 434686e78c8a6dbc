package repository

import (
	"hash/fnv"

	"github.com/okian/bullbear/internal/domain/types"
)

// Treap ranking index.
//
// Ordering: score DESC, then handle ASC, then id ASC (deterministic).
// "less" means ranks earlier so in-order traversal yields the leaderboard
// from best to worst.

type rankKey struct {
	score  int64
	handle string
	id     string
}

type node struct {
	key   rankKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether a appears before b on the leaderboard.
func less(a, b rankKey) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.handle != b.handle {
		return a.handle < b.handle
	}
	return a.id < b.id
}

// priority is derived from the id so the tree shape is reproducible.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k rankKey) *node {
	if n == nil {
		return &node{key: k, prio: priority(k.id), size: 1}
	}
	if less(k, n.key) {
		n.left = insert(n.left, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k rankKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case k == n.key:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit ids in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.key.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// countScoresAbove returns the number of distinct scores strictly greater than score.
func countScoresAbove(n *node, score int64, last *int64, seen *int) {
	if n == nil {
		return
	}
	countScoresAbove(n.left, score, last, seen)
	if n.key.score <= score {
		return
	}
	if *seen == 0 || n.key.score != *last {
		*seen++
		*last = n.key.score
	}
	countScoresAbove(n.right, score, last, seen)
}

// assignRanksWithTies assigns dense ranks to entries already in rank order.
// Guessers with the same score share a rank and the next score takes the next rank.
func assignRanksWithTies(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score {
			rank++
		}
		entries[i].Rank = rank
	}
}
