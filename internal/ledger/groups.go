package ledger

import (
	"fmt"
	"strings"
)

// Groups maps uppercase keywords to ordered member lists, in creation order.
type Groups struct {
	keys    []string
	members map[string][]string
}

// Group is one keyword with its members.
type Group struct {
	Keyword string   `json:"keyword"`
	Members []string `json:"members"`
}

func NewGroups() *Groups {
	return &Groups{members: make(map[string][]string)}
}

func GroupsFrom(list []Group) *Groups {
	g := NewGroups()
	for _, grp := range list {
		g.Set(grp.Keyword, grp.Members)
	}
	return g
}

func (g *Groups) Len() int { return len(g.keys) }

func (g *Groups) Has(keyword string) bool {
	_, ok := g.members[keyword]
	return ok
}

func (g *Groups) Keywords() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Members returns a copy of the group's member list, nil if unknown.
func (g *Groups) Members(keyword string) []string {
	m, ok := g.members[keyword]
	if !ok {
		return nil
	}
	out := make([]string, len(m))
	copy(out, m)
	return out
}

func (g *Groups) Set(keyword string, members []string) {
	if _, ok := g.members[keyword]; !ok {
		g.keys = append(g.keys, keyword)
	}
	m := make([]string, len(members))
	copy(m, members)
	g.members[keyword] = m
}

func (g *Groups) Remove(keyword string) bool {
	if _, ok := g.members[keyword]; !ok {
		return false
	}
	delete(g.members, keyword)
	for i, k := range g.keys {
		if k == keyword {
			g.keys = append(g.keys[:i], g.keys[i+1:]...)
			break
		}
	}
	return true
}

// RenameMember rewrites oldName to newName in every group and returns the
// number of groups touched.
func (g *Groups) RenameMember(oldName, newName string) int {
	touched := 0
	for _, k := range g.keys {
		m := g.members[k]
		for i, name := range m {
			if name == oldName {
				m[i] = newName
				touched++
			}
		}
	}
	return touched
}

func (g *Groups) List() []Group {
	out := make([]Group, 0, len(g.keys))
	for _, k := range g.keys {
		out = append(out, Group{Keyword: k, Members: g.Members(k)})
	}
	return out
}

// Render lists one "KEYWORD - A, B" line per group.
func (g *Groups) Render() string {
	lines := make([]string, 0, len(g.keys))
	for _, k := range g.keys {
		lines = append(lines, fmt.Sprintf("%s - %s", k, strings.Join(g.members[k], ", ")))
	}
	return strings.Join(lines, "\n")
}
