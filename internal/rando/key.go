package rando

import (
	"fmt"

	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/linked"
)

// keyTask places the key for a locked exit. It first tries the empty slots
// already reachable from the start, then extends the map with a backtrack
// room that holds a free slot. Either way the player must be able to carry
// the key from its slot back to the lock.
type keyTask struct {
	taskBase
	lock    linked.Exit
	keyhole int

	slots      []linked.Slot
	extensions []option
	cursor     int
	started    bool
}

func (t *keyTask) Next() bool {
	g := t.g
	if !t.started {
		t.prepare()
		t.cursor = 0
		t.started = true
	}

	for t.cursor < len(t.slots) {
		slot := t.slots[t.cursor]
		t.cursor++

		t.record(g.useKeyhole(t.lock.Node.Room, t.keyhole))
		t.record(g.placeItem(slot, linked.Placement{Item: linked.ItemKey}))
		return true
	}

	for t.cursor < len(t.slots)+len(t.extensions) {
		o := t.extensions[t.cursor-len(t.slots)]
		t.cursor++

		if t.extend(o) {
			return true
		}
	}

	t.started = false
	return false
}

// prepare collects the reachable key slots and the backtrack room options
func (t *keyTask) prepare() {
	g := t.g
	closure := linked.NewClosure(g.startNode(), &g.caps, nil, false, 0)

	t.slots = t.carried(keySlots(closure.UnlinkedCollectables()))
	shuffle(g.rng, t.slots)

	t.extensions = nil
	rooms := g.candidates(func(r *library.StaticRoom) bool {
		return len(r.Collectables) > 0 && !g.isEnding(r)
	})
	for _, exit := range closure.UnlinkedEdges() {
		if exit.Static == t.lock.Static && exit.Node == t.lock.Node {
			continue
		}
		if keyhole, ok := g.exitLock(exit); !ok || keyhole >= 0 {
			continue
		}
		// the player has to come back out with the key
		t.extensions = append(t.extensions, g.options(exit, rooms, &g.caps)...)
	}
	shuffle(g.rng, t.extensions)
}

// extend attaches a backtrack room and puts the key in a slot reachable
// from its entrance. Nothing is kept when no slot is reachable.
func (t *keyTask) extend(o option) bool {
	g := t.g
	pos, ok := g.fit(o.exit, o.static, o.entrance)
	if !ok {
		return false
	}

	node := g.attach(&t.taskBase, o.exit, o.static, o.entrance, pos, true)
	inner := linked.NewClosure(node, &g.caps, &g.caps, true, 0)
	slots := t.carried(keySlots(inner.UnlinkedCollectables()))
	if len(slots) == 0 {
		t.revert()
		return false
	}

	t.record(g.useKeyhole(t.lock.Node.Room, t.keyhole))
	t.record(g.placeItem(slots[g.rng.Intn(len(slots))], linked.Placement{Item: linked.ItemKey}))
	return true
}

func (t *keyTask) String() string {
	return fmt.Sprintf("key for keyhole %d in %s", t.keyhole, t.lock.Node.Room)
}

// carried keeps the slots from which the lock can be reached holding the key
func (t *keyTask) carried(slots []linked.Slot) []linked.Slot {
	caps := t.g.caps.WithKey()
	var out []linked.Slot
	for _, s := range slots {
		if linked.NewClosure(s.Node, &caps, nil, false, 0).Contains(t.lock.Node) {
			out = append(out, s)
		}
	}
	return out
}

// keySlots drops slots that can only be reached in flight
func keySlots(slots []linked.Slot) []linked.Slot {
	var out []linked.Slot
	for _, s := range slots {
		if !s.Static.MustFly {
			out = append(out, s)
		}
	}
	return out
}
