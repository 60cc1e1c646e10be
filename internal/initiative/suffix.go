package initiative

// Member describes one token under suffix consideration, projected from
// the union of tokens already in the list and tokens being added.
// Suffix is 0 when the token has none yet.
type Member struct {
	Key      string
	Label    string
	Checksum string
	Player   bool
	Suffix   int
}

type group struct {
	max     int
	pending []string
}

// Suffixes computes the label suffixes needed to tell look-alike tokens
// apart, keyed by token key. Tokens group by (label, image checksum);
// player tokens neither join groups nor receive suffixes. Within a group
// of two or more, every member lacking a suffix is assigned the next
// integer above the group's current maximum, in input order. Members
// already carrying a suffix keep it, so a second run over the same list
// returns nothing.
func Suffixes(members []Member) map[string]int {
	groups := make(map[[2]string]*group)
	order := make([][2]string, 0, len(members))
	sizes := make(map[[2]string]int)

	for _, m := range members {
		if m.Player {
			continue
		}
		id := [2]string{m.Label, m.Checksum}
		g, ok := groups[id]
		if !ok {
			g = &group{}
			groups[id] = g
			order = append(order, id)
		}
		sizes[id]++
		if m.Suffix > g.max {
			g.max = m.Suffix
		}
		if m.Suffix == 0 {
			g.pending = append(g.pending, m.Key)
		}
	}

	out := make(map[string]int)
	for _, id := range order {
		g := groups[id]
		if sizes[id] < 2 {
			continue
		}
		next := g.max
		for _, key := range g.pending {
			next++
			out[key] = next
		}
	}
	return out
}
