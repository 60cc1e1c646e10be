// Package initiative holds the pure ordering rules for encounter turns:
// the canonical comparator, suffix disambiguation for look-alike tokens,
// and the sequence scans used to advance turns. Nothing here touches the
// store; callers project the inputs and commit the results.
package initiative

import (
	"sort"
	"strings"
)

// Entrant is one initiative-list entry with its projected sort inputs.
// Rolled is false when the token has no recorded roll.
type Entrant struct {
	Key    string
	Roll   float64
	Rolled bool
}

// Compare orders entrants by roll descending with an ascending key
// tie-break. Entrants without a roll always sort after rolled ones,
// again keyed ascending among themselves.
func Compare(a, b Entrant) int {
	switch {
	case a.Rolled && !b.Rolled:
		return -1
	case !a.Rolled && b.Rolled:
		return 1
	case a.Rolled && a.Roll != b.Roll:
		if a.Roll > b.Roll {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Key, b.Key)
}

// Order returns the entrant keys in canonical turn order.
func Order(entrants []Entrant) []string {
	es := make([]Entrant, len(entrants))
	copy(es, entrants)
	sort.Slice(es, func(i, j int) bool {
		return Compare(es[i], es[j]) < 0
	})
	keys := make([]string, len(es))
	for i, e := range es {
		keys[i] = e.Key
	}
	return keys
}

// Following returns the element after the first occurrence of cur.
// ok is false when cur is absent or is the last element.
func Following(list []string, cur string) (next string, ok bool) {
	for i, v := range list {
		if v == cur {
			if i+1 < len(list) {
				return list[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// Advance returns the turn holder after cur, wrapping to the head of the
// order when cur is last or absent. wrapped reports that a new round
// begins. An empty order yields "".
func Advance(order []string, cur string) (next string, wrapped bool) {
	if len(order) == 0 {
		return "", false
	}
	if next, ok := Following(order, cur); ok {
		return next, false
	}
	return order[0], true
}
