package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderByClause renders orderings whose fields are listed in `allowed` (param -> column).
// Unknown fields are dropped; `fallback` is used when nothing remains.
func OrderByClause(orderings []DBOrdering, allowed map[string]string, fallback ...DBOrdering) string {
	list := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := allowed[ord.Field]; ok {
			list = append(list, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(list) == 0 {
		for _, ord := range fallback {
			list = append(list, ord.String())
		}
	}
	return strings.Join(list, ", ")
}
