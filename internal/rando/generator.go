package rando

import (
	"image"
	"log/slog"
	"math/rand"

	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/geometry"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/linked"
	"github.com/lawnchairsociety/roomweaver/internal/requirement"
)

// generator is the state of one attempt. Nothing in it is shared with other
// attempts except the read-only library.
type generator struct {
	lib      *library.Library
	settings *config.Settings
	caps     requirement.Capabilities
	budget   Budget
	rng      *rand.Rand
	log      *slog.Logger
	attempt  int
	observer func(Event)

	m         *linked.Map
	remaining []*library.StaticRoom
	engine    *engine
	start     *linked.Room
}

func newGenerator(lib *library.Library, settings *config.Settings, budget Budget, attempt int, log *slog.Logger, observer func(Event)) *generator {
	g := &generator{
		lib:       lib,
		settings:  settings,
		caps:      settings.Capabilities(),
		budget:    budget,
		rng:       newRand(settings.Seed, attempt),
		log:       log,
		attempt:   attempt,
		observer:  observer,
		m:         linked.NewMap(),
		remaining: append([]*library.StaticRoom(nil), lib.Rooms()...),
	}
	g.engine = newEngine(budget.MaxBacktracks, log)
	return g
}

// run builds the map with the configured strategy and then places the
// remaining items
func (g *generator) run() error {
	switch g.settings.Algorithm {
	case config.AlgorithmLabyrinth:
		starts := g.lib.HubRooms()
		if len(starts) == 0 {
			starts = g.lib.StartRooms()
		}
		if len(starts) == 0 {
			return ErrNoStartRoom
		}
		g.engine.pushBack(&labyrinthStartTask{taskBase: taskBase{g: g}, static: starts[0]})
	default:
		g.engine.pushBack(&pathwayStartTask{taskBase: taskBase{g: g}})
	}

	if err := g.engine.run(); err != nil {
		return err
	}

	if g.settings.Algorithm == config.AlgorithmLabyrinth {
		g.prune()
		if err := g.placeGems(); err != nil {
			return err
		}
	}
	if g.settings.Algorithm != config.AlgorithmEndless {
		g.placeStrawberries()
	}
	return nil
}

// pool returns the rooms still available for placement
func (g *generator) pool() []*library.StaticRoom {
	if g.settings.RepeatRooms {
		return g.lib.Rooms()
	}
	return g.remaining
}

// candidates returns a shuffled copy of the pool filtered by keep
func (g *generator) candidates(keep func(*library.StaticRoom) bool) []*library.StaticRoom {
	var out []*library.StaticRoom
	for _, r := range g.pool() {
		if keep(r) {
			out = append(out, r)
		}
	}
	shuffle(g.rng, out)
	return out
}

func (g *generator) startNode() *linked.Node {
	return g.start.Node(library.MainNode)
}

// travelCaps are the capabilities used for reachability once the map is
// built: a used keyhole means its key was placed before the door.
func (g *generator) travelCaps() requirement.Capabilities {
	for _, r := range g.m.Rooms() {
		if r.UsedKeyholes.Size() > 0 {
			return g.caps.WithKey()
		}
	}
	return g.caps
}

// exitLock reports whether exit can be left, and the keyhole that must be
// opened first, or -1
func (g *generator) exitLock(exit linked.Exit) (int, bool) {
	switch exit.Static.Kind() {
	case geometry.HoleNone:
		return 0, false
	case geometry.HoleUnknown:
		if !g.settings.EnterUnknown {
			return 0, false
		}
	}

	switch r := exit.Static.ReqOut().Conflicts(g.caps).(type) {
	case requirement.Possible:
		return -1, true
	case requirement.KeyRequirement:
		if exit.Node.Room.UsedKeyholes.Has(r.KeyholeID) {
			return 0, false
		}
		return r.KeyholeID, true
	}
	return 0, false
}

// entrances lists the edges of static that can receive a connection from
// exit. capsOut, when set, must also allow leaving through the entrance.
func (g *generator) entrances(exit linked.Exit, static *library.StaticRoom, capsOut *requirement.Capabilities) []*library.StaticEdge {
	var out []*library.StaticEdge
	for _, e := range linked.AvailableNewEdges(static, &g.caps, capsOut, g.settings.EnterUnknown) {
		if exit.Static.CustomWarp {
			if e.CustomWarp {
				out = append(out, e)
			}
			continue
		}
		if e.HoleTarget != nil && exit.Static.HoleTarget != nil && e.HoleTarget.Side == exit.Static.HoleTarget.Side.Opposite() {
			out = append(out, e)
		}
	}
	return out
}

// fit returns where static goes when entered from exit through entrance,
// and whether that spot is free
func (g *generator) fit(exit linked.Exit, static *library.StaticRoom, entrance *library.StaticEdge) (image.Point, bool) {
	if exit.Static.CustomWarp {
		pos := g.m.WarpPosition()
		return pos, g.m.CanPlace(static, pos)
	}
	pos, ok := linked.JoinPosition(exit.Node.Room, exit.Static.HoleTarget, static, entrance.HoleTarget)
	if !ok {
		return pos, false
	}
	return pos, g.m.CanPlace(static, pos)
}

// attach places static at pos and connects entrance to exit. It returns the
// entrance node of the new room.
func (g *generator) attach(t *taskBase, exit linked.Exit, static *library.StaticRoom, entrance *library.StaticEdge, pos image.Point, backtrack bool) *linked.Node {
	room, receipt := g.placeRoom(static, pos, backtrack)
	t.record(receipt)
	node := room.Node(entrance.FromNode.Name)
	t.record(g.connect(exit, node, entrance))
	return node
}

// option is one concrete way of attaching a room to an exit
type option struct {
	exit     linked.Exit
	static   *library.StaticRoom
	entrance *library.StaticEdge
}

// options expands rooms into their usable entrances for exit, shuffling
// the entrances of each room
func (g *generator) options(exit linked.Exit, rooms []*library.StaticRoom, capsOut *requirement.Capabilities) []option {
	var out []option
	for _, r := range rooms {
		edges := g.entrances(exit, r, capsOut)
		shuffle(g.rng, edges)
		for _, e := range edges {
			out = append(out, option{exit: exit, static: r, entrance: e})
		}
	}
	return out
}

func (g *generator) observe(kind EventKind, room *linked.Room) {
	if g.observer == nil {
		return
	}
	ev := Event{Kind: kind, Attempt: g.attempt, Rooms: g.m.Count(), Worth: g.m.Worth(), Backtracks: g.engine.backtracks}
	if room != nil {
		ev.Room = room.Static.Name
	}
	g.observer(ev)
}
