package rando

import (
	"fmt"
	"image"

	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/linked"
	"github.com/zyedidia/generic/mapset"
)

// pathwayStartTask places the first room of a pathway at the origin
type pathwayStartTask struct {
	taskBase
	rooms   []*library.StaticRoom
	cursor  int
	started bool
}

func (t *pathwayStartTask) Next() bool {
	g := t.g
	if !t.started {
		t.rooms = g.candidates(g.startFilter())
		t.cursor = 0
		t.started = true
	}

	if t.cursor < len(t.rooms) {
		static := t.rooms[t.cursor]
		t.cursor++

		room, receipt := g.placeRoom(static, image.Point{}, false)
		t.record(receipt)
		g.start = room
		t.addFront(&pathwayEdgeTask{taskBase: taskBase{g: g}, node: room.Node(library.MainNode)})
		return true
	}

	t.started = false
	return false
}

func (t *pathwayStartTask) Undo() {
	t.taskBase.Undo()
	t.g.start = nil
}

func (t *pathwayStartTask) String() string {
	return "pathway start"
}

// startFilter keeps flagged start rooms, or failing those any room that is
// not an ending and has a way out
func (g *generator) startFilter() func(*library.StaticRoom) bool {
	starts := g.lib.StartRooms()
	if len(starts) == 0 {
		return func(r *library.StaticRoom) bool {
			return !g.isEnding(r) && len(r.ExternalEdges()) > 0
		}
	}
	allowed := mapset.New[*library.StaticRoom]()
	for _, r := range starts {
		allowed.Put(r)
	}
	return allowed.Has
}

// isEnding reports whether the level can be finished in r with the
// configured capabilities
func (g *generator) isEnding(r *library.StaticRoom) bool {
	return r.IsEnd() && r.ReqEnd.Able(g.caps)
}

// pathwayEdgeTask picks the exit the pathway continues through. Exits are
// taken from the part of the room reachable from the entrance node.
type pathwayEdgeTask struct {
	taskBase
	node    *linked.Node
	exits   []linked.Exit
	cursor  int
	started bool
}

func (t *pathwayEdgeTask) Next() bool {
	g := t.g
	if !t.started {
		t.exits = t.exits[:0]
		closure := linked.NewClosure(t.node, &g.caps, nil, true, 0)
		for _, exit := range closure.UnlinkedEdges() {
			if _, ok := g.exitLock(exit); ok {
				t.exits = append(t.exits, exit)
			}
		}
		shuffle(g.rng, t.exits)
		t.cursor = 0
		t.started = true
	}

	for t.cursor < len(t.exits) {
		exit := t.exits[t.cursor]
		t.cursor++

		keyhole, ok := g.exitLock(exit)
		if !ok {
			continue
		}
		t.addFront(&pathwayRoomTask{taskBase: taskBase{g: g}, exit: exit})
		if keyhole >= 0 {
			t.addFront(&keyTask{taskBase: taskBase{g: g}, lock: exit, keyhole: keyhole})
		}
		return true
	}

	t.started = false
	return false
}

func (t *pathwayEdgeTask) String() string {
	return fmt.Sprintf("pathway edge from %s", t.node)
}

// pathwayRoomTask attaches a room to an exit within the worth budget. Once
// the minimum worth is placed an ending room becomes increasingly likely to
// be required.
type pathwayRoomTask struct {
	taskBase
	exit    linked.Exit
	options []option
	cursor  int
	started bool
}

func (t *pathwayRoomTask) Next() bool {
	g := t.g
	if !t.started {
		t.options = g.options(t.exit, g.candidates(g.pathwayFilter()), nil)
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
		node := g.attach(&t.taskBase, o.exit, o.static, o.entrance, pos, false)
		if !g.isEnding(o.static) {
			t.addFront(&pathwayEdgeTask{taskBase: taskBase{g: g}, node: node})
		}
		return true
	}

	t.started = false
	return false
}

func (t *pathwayRoomTask) String() string {
	return fmt.Sprintf("pathway room at %s", t.exit.Static)
}

// pathwayFilter applies the worth budget to the next room choice
func (g *generator) pathwayFilter() func(*library.StaticRoom) bool {
	worth := g.m.Worth()
	endAllowed := worth >= g.budget.MinWorth

	needEnd := false
	if endAllowed {
		span := g.budget.MaxWorth - g.budget.MinWorth
		if span <= 0 {
			needEnd = true
		} else {
			needEnd = g.rng.Float64() < (worth-g.budget.MinWorth)/span
		}
	}

	return func(r *library.StaticRoom) bool {
		if worth+r.Worth > g.budget.MaxWorth {
			return false
		}
		if g.isEnding(r) {
			return endAllowed
		}
		return !needEnd && len(r.ExternalEdges()) > 1
	}
}
