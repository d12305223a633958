package rando

import (
	"image"

	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/linked"
)

// Receipt undoes exactly one mutation of the generation state. It is only
// valid while every later mutation has already been undone.
type Receipt interface {
	Undo()
}

type roomReceipt struct {
	g    *generator
	room *linked.Room
	// poolIndex is where the static room sat in the remaining pool, or -1
	poolIndex int
}

func (r *roomReceipt) Undo() {
	r.g.m.RemoveRoom(r.room)
	if r.poolIndex >= 0 {
		pool := r.g.remaining
		pool = append(pool, nil)
		copy(pool[r.poolIndex+1:], pool[r.poolIndex:])
		pool[r.poolIndex] = r.room.Static
		r.g.remaining = pool
	}
}

type connectReceipt struct {
	m    *linked.Map
	edge *linked.Edge
	// warps holds the WarpMap entries the connection set
	warps []warpEntry
}

type warpEntry struct {
	room *linked.Room
	name string
}

func (r *connectReceipt) Undo() {
	r.m.Disconnect(r.edge)
	for _, w := range r.warps {
		delete(w.room.WarpMap, w.name)
	}
}

type itemReceipt struct {
	node *linked.Node
	slot *library.StaticCollectable
}

func (r *itemReceipt) Undo() {
	r.node.Unplace(r.slot)
}

type keyholeReceipt struct {
	room *linked.Room
	id   int
}

func (r *keyholeReceipt) Undo() {
	r.room.UsedKeyholes.Remove(r.id)
}

// placeRoom adds static to the map and takes it out of the remaining pool
func (g *generator) placeRoom(static *library.StaticRoom, pos image.Point, backtrack bool) (*linked.Room, Receipt) {
	room := g.m.AddRoom(static, pos, backtrack)
	receipt := &roomReceipt{g: g, room: room, poolIndex: -1}
	if !g.settings.RepeatRooms {
		for i, s := range g.remaining {
			if s == static {
				g.remaining = append(g.remaining[:i], g.remaining[i+1:]...)
				receipt.poolIndex = i
				break
			}
		}
	}
	g.observe(EventRoomPlaced, room)
	return room, receipt
}

// connect links an exit of a placed room to an entrance of another. Warp
// connections also record each side's warp target.
func (g *generator) connect(exit linked.Exit, node *linked.Node, entrance *library.StaticEdge) Receipt {
	edge := g.m.Connect(exit.Node, exit.Static, node, entrance)
	receipt := &connectReceipt{m: g.m, edge: edge}
	if exit.Static.CustomWarp && entrance.CustomWarp {
		from, to := exit.Node.Room, node.Room
		from.WarpMap[exit.Static.Warp] = to
		to.WarpMap[entrance.Warp] = from
		receipt.warps = []warpEntry{{from, exit.Static.Warp}, {to, entrance.Warp}}
	}
	return receipt
}

func (g *generator) placeItem(slot linked.Slot, p linked.Placement) Receipt {
	slot.Node.Place(slot.Static, p)
	return &itemReceipt{node: slot.Node, slot: slot.Static}
}

func (g *generator) useKeyhole(room *linked.Room, id int) Receipt {
	room.UsedKeyholes.Put(id)
	return &keyholeReceipt{room: room, id: id}
}
