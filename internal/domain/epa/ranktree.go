package epa

// rankTree is an order-statistics treap over team ratings.
//
// Ordering: rating DESC, then team ASC. "less" means ranks earlier, so an
// in-order traversal yields the standings from best to worst.
type rankTree struct {
	root   *node
	byTeam map[int]float64
}

type node struct {
	team   int
	rating float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func newRankTree() *rankTree {
	return &rankTree{byTeam: make(map[int]float64)}
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

// less returns true if (aRating, aTeam) ranks before (bRating, bTeam).
func less(aRating float64, aTeam int, bRating float64, bTeam int) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aTeam < bTeam
}

// priority is a splitmix64 hash of the team number.
func priority(team int) uint64 {
	z := uint64(team) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
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

func insert(n *node, team int, rating float64) *node {
	if n == nil {
		return &node{team: team, rating: rating, prio: priority(team), size: 1}
	}
	if less(rating, team, n.rating, n.team) {
		n.left = insert(n.left, team, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, team, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, team int, rating float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case team == n.team:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, team, rating)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, team, rating)
		}
	case less(rating, team, n.rating, n.team):
		n.left = remove(n.left, team, rating)
	default:
		n.right = remove(n.right, team, rating)
	}
	fix(n)
	return n
}

// upsert sets the rating of team, replacing any previous position.
func (t *rankTree) upsert(team int, rating float64) {
	if old, ok := t.byTeam[team]; ok {
		if old == rating {
			return
		}
		t.root = remove(t.root, team, old)
	}
	t.byTeam[team] = rating
	t.root = insert(t.root, team, rating)
}

// rankOf returns the 1-based position of team, or 0 if absent.
func (t *rankTree) rankOf(team int) int {
	rating, ok := t.byTeam[team]
	if !ok {
		return 0
	}
	rank := 0
	n := t.root
	for n != nil {
		switch {
		case n.team == team:
			return rank + nsize(n.left) + 1
		case less(rating, team, n.rating, n.team):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// walk visits teams in rank order until fn returns false.
func (t *rankTree) walk(fn func(rank, team int, rating float64) bool) {
	rank := 0
	var visit func(n *node) bool
	visit = func(n *node) bool {
		if n == nil {
			return true
		}
		if !visit(n.left) {
			return false
		}
		rank++
		if !fn(rank, n.team, n.rating) {
			return false
		}
		return visit(n.right)
	}
	visit(t.root)
}

func (t *rankTree) len() int {
	return nsize(t.root)
}
