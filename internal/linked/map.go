// Package linked holds the mutable graph built during one generation
// attempt: placed rooms at absolute positions, the connections made between
// them and the items assigned to their slots. It also answers the
// reachability queries the search strategies rely on.
//
// A Map is owned by a single attempt and is not safe for concurrent use.
package linked

import (
	"image"
	"sort"

	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/zyedidia/generic/mapset"
)

// Map is the set of rooms placed so far
type Map struct {
	rooms     []*Room
	cachedHit *Room
	nextID    int
}

// NewMap returns an empty map
func NewMap() *Map {
	return &Map{}
}

// Room is one placed instance of a static room
type Room struct {
	ID       int
	Static   *library.StaticRoom
	Position image.Point
	Bounds   image.Rectangle
	// ExtraBounds are the room's extra space rectangles in map coordinates
	ExtraBounds []image.Rectangle
	// WarpMap records, per custom warp name, the room the warp leads to
	WarpMap      map[string]*Room
	UsedKeyholes mapset.Set[int]
	// Backtrack rooms were added while searching for a key spot
	Backtrack bool

	nodes     map[string]*Node
	nodeOrder []*Node
}

// Count returns the number of placed rooms
func (m *Map) Count() int {
	return len(m.rooms)
}

// Rooms returns the placed rooms in placement order
func (m *Map) Rooms() []*Room {
	return m.rooms
}

// Worth sums the worth of every placed room, counting backtrack rooms double
func (m *Map) Worth() float64 {
	var total float64
	for _, r := range m.rooms {
		total += r.Worth()
	}
	return total
}

// Bounds returns the union of every placed room's bounds
func (m *Map) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, r := range m.rooms {
		b = b.Union(r.Bounds)
	}
	return b
}

// CachedHit returns the room that caused the last overlap, if any
func (m *Map) CachedHit() *Room {
	return m.cachedHit
}

// Footprint returns the rectangles a static room would occupy at pos
func Footprint(static *library.StaticRoom, pos image.Point) []image.Rectangle {
	rects := []image.Rectangle{static.Mask.Bounds().Add(pos)}
	for _, r := range static.ExtraSpace {
		rects = append(rects, r.Add(pos))
	}
	return rects
}

// AreaFree reports whether none of rects overlaps a placed room. The room
// that last caused an overlap is checked first.
func (m *Map) AreaFree(rects ...image.Rectangle) bool {
	if m.cachedHit != nil && m.cachedHit.overlaps(rects) {
		return false
	}
	for _, r := range m.rooms {
		if r == m.cachedHit {
			continue
		}
		if r.overlaps(rects) {
			m.cachedHit = r
			return false
		}
	}
	return true
}

// CanPlace reports whether static fits at pos
func (m *Map) CanPlace(static *library.StaticRoom, pos image.Point) bool {
	return m.AreaFree(Footprint(static, pos)...)
}

// AddRoom places static at pos without checking for overlaps
func (m *Map) AddRoom(static *library.StaticRoom, pos image.Point, backtrack bool) *Room {
	rects := Footprint(static, pos)
	r := &Room{
		ID:           m.nextID,
		Static:       static,
		Position:     pos,
		Bounds:       rects[0],
		ExtraBounds:  rects[1:],
		WarpMap:      make(map[string]*Room),
		UsedKeyholes: mapset.New[int](),
		Backtrack:    backtrack,
		nodes:        make(map[string]*Node),
	}
	m.nextID++

	for _, sn := range static.Nodes() {
		n := &Node{
			Static:       sn,
			Room:         r,
			Collectables: make(map[*library.StaticCollectable]Placement),
		}
		r.nodes[sn.Name] = n
		r.nodeOrder = append(r.nodeOrder, n)
	}

	m.rooms = append(m.rooms, r)
	return r
}

// RemoveRoom disconnects every edge of r and takes it off the map. Warps
// of other rooms that led to r are forgotten.
func (m *Map) RemoveRoom(r *Room) {
	for _, n := range r.nodeOrder {
		for len(n.Edges) > 0 {
			m.Disconnect(n.Edges[len(n.Edges)-1])
		}
	}
	for _, other := range m.rooms {
		for name, target := range other.WarpMap {
			if target == r {
				delete(other.WarpMap, name)
			}
		}
	}
	clear(r.WarpMap)
	for i, existing := range m.rooms {
		if existing == r {
			m.rooms = append(m.rooms[:i], m.rooms[i+1:]...)
			break
		}
	}
	if m.cachedHit == r {
		m.cachedHit = nil
	}
	// IDs are only reused when the most recent room is rolled back
	if r.ID == m.nextID-1 {
		m.nextID--
	}
}

// Worth returns the room's contribution to the map worth
func (r *Room) Worth() float64 {
	if r.Backtrack {
		return 2 * r.Static.Worth
	}
	return r.Static.Worth
}

// Node returns the placed node with the given static name, or nil
func (r *Room) Node(name string) *Node {
	return r.nodes[name]
}

// Nodes returns the placed nodes in static declaration order
func (r *Room) Nodes() []*Node {
	return r.nodeOrder
}

// Keyholes returns the used keyhole ids in ascending order
func (r *Room) Keyholes() []int {
	var ids []int
	r.UsedKeyholes.Each(func(id int) {
		ids = append(ids, id)
	})
	sort.Ints(ids)
	return ids
}

func (r *Room) overlaps(rects []image.Rectangle) bool {
	for _, a := range rects {
		if a.Overlaps(r.Bounds) {
			return true
		}
		for _, b := range r.ExtraBounds {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

func (r *Room) String() string {
	return r.Static.Name
}
