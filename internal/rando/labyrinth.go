package rando

import (
	"fmt"
	"image"

	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/linked"
	"github.com/zyedidia/generic/heap"
)

// labyrinthStartTask places the fixed hub the labyrinth grows from
type labyrinthStartTask struct {
	taskBase
	static *library.StaticRoom
	tried  bool
}

func (t *labyrinthStartTask) Next() bool {
	if t.tried {
		return false
	}
	t.tried = true
	g := t.g
	room, receipt := g.placeRoom(t.static, image.Point{}, false)
	t.record(receipt)
	g.start = room
	t.addFront(&labyrinthExpandTask{taskBase: taskBase{g: g}})
	return true
}

func (t *labyrinthStartTask) Undo() {
	t.taskBase.Undo()
	t.g.start = nil
}

func (t *labyrinthStartTask) String() string {
	return "labyrinth start " + t.static.Name
}

// labyrinthExpandTask adds one room to an exit the player can use and come
// back through. Ending rooms and rooms with flag setters stay out of the
// hub graph. Options are drawn from a priority queue over the frontier.
type labyrinthExpandTask struct {
	taskBase
	options []option
	cursor  int
	started bool
}

func (t *labyrinthExpandTask) Next() bool {
	g := t.g
	if g.m.Count() >= g.budget.MaxRooms {
		return true
	}

	if !t.started {
		t.prepare()
		t.cursor = 0
		t.started = true
	}

	for t.cursor < len(t.options) {
		o := t.options[t.cursor]
		t.cursor++

		pos, ok := g.fit(o.exit, o.static, o.entrance)
		if !ok {
			continue
		}
		g.attach(&t.taskBase, o.exit, o.static, o.entrance, pos, false)
		t.addFront(&labyrinthExpandTask{taskBase: taskBase{g: g}})
		return true
	}

	t.started = false
	// the frontier is exhausted; a map past half the room cap is kept
	return g.m.Count() >= g.minRooms()
}

func (t *labyrinthExpandTask) prepare() {
	g := t.g
	closure := linked.NewClosure(g.startNode(), &g.caps, &g.caps, false, 0)

	var exits []linked.Exit
	for _, exit := range closure.UnlinkedEdges() {
		if keyhole, ok := g.exitLock(exit); ok && keyhole < 0 {
			exits = append(exits, exit)
		}
	}
	shuffle(g.rng, exits)

	rooms := g.candidates(func(r *library.StaticRoom) bool {
		return !r.IsEnd() && !r.HasFlagSetters()
	})

	// rooms that bring item slots are tried first, the rest in shuffled order
	pq := heap.New[rankedOption](func(a, b rankedOption) bool {
		if a.slots != b.slots {
			return a.slots
		}
		return a.seq < b.seq
	})
	seq := 0
	for _, exit := range exits {
		for _, o := range g.options(exit, rooms, &g.caps) {
			pq.Push(rankedOption{option: o, slots: len(o.static.Collectables) > 0, seq: seq})
			seq++
		}
	}

	t.options = t.options[:0]
	for pq.Size() > 0 {
		r, _ := pq.Pop()
		t.options = append(t.options, r.option)
	}
}

type rankedOption struct {
	option
	slots bool
	seq   int
}

func (t *labyrinthExpandTask) String() string {
	return fmt.Sprintf("labyrinth expand at %d rooms", t.g.m.Count())
}

func (g *generator) minRooms() int {
	return (g.budget.MaxRooms + 1) / 2
}

// prune removes leaf rooms that give the player no reachable item slot,
// repeating until none are left
func (g *generator) prune() {
	for {
		reach := linked.NewClosure(g.startNode(), &g.caps, nil, false, 0)
		slots := slotRooms(reach.UnlinkedCollectables())

		removed := false
		for _, r := range g.m.Rooms() {
			if r == g.start || slots[r] || linkCount(r) != 1 {
				continue
			}
			g.log.Debug("pruning leaf room", "room", r.Static.Name)
			g.m.RemoveRoom(r)
			removed = true
			break
		}
		if !removed {
			return
		}
	}
}

func slotRooms(slots []linked.Slot) map[*linked.Room]bool {
	rooms := make(map[*linked.Room]bool)
	for _, s := range slots {
		rooms[s.Node.Room] = true
	}
	return rooms
}

func linkCount(r *linked.Room) int {
	n := 0
	for _, node := range r.Nodes() {
		n += len(node.Edges)
	}
	return n
}

// itemSlots returns the free slots reachable from the start. Slots that can
// only be reached one way come first and are marked for auto bubbles.
func (g *generator) itemSlots() ([]linked.Slot, map[linked.Slot]bool) {
	caps := g.travelCaps()
	closure := linked.NewClosure(g.startNode(), &caps, &caps, false, 0)
	safe := closure.UnlinkedCollectables()
	closure.Extend(&caps, nil)

	safeSet := make(map[linked.Slot]bool, len(safe))
	for _, s := range safe {
		safeSet[s] = true
	}

	var bubble []linked.Slot
	for _, s := range closure.UnlinkedCollectables() {
		if !safeSet[s] {
			bubble = append(bubble, s)
		}
	}
	shuffle(g.rng, bubble)
	shuffle(g.rng, safe)

	bubbleSet := make(map[linked.Slot]bool, len(bubble))
	for _, s := range bubble {
		bubbleSet[s] = true
	}
	return append(bubble, safe...), bubbleSet
}

// placeGems hides the tier's gems, preferring one-way spots
func (g *generator) placeGems() error {
	count := g.budget.Gems
	if count > linked.NumGems {
		count = linked.NumGems
	}

	slots, bubble := g.itemSlots()
	if len(slots) < count {
		return &GenerationError{
			Backtracks: g.engine.backtracks,
			Reason:     fmt.Sprintf("only %d reachable slots for %d gems", len(slots), count),
		}
	}
	for i := 0; i < count; i++ {
		s := slots[i]
		s.Node.Place(s.Static, linked.Placement{Item: linked.Gem(i), AutoBubble: bubble[s]})
	}
	return nil
}

// placeStrawberries fills a share of the remaining reachable slots
func (g *generator) placeStrawberries() {
	density := g.settings.StrawberryDensity()
	if density <= 0 {
		return
	}
	slots, bubble := g.itemSlots()
	count := int(density*float64(len(slots)) + 0.5)
	for _, s := range slots[:count] {
		s.Node.Place(s.Static, linked.Placement{Item: linked.ItemStrawberry, AutoBubble: bubble[s]})
	}
}
