package rando

import (
	"context"
	"errors"
	"fmt"
	"image"
	"reflect"
	"testing"
	"time"

	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/geometry"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/linked"
	"github.com/lawnchairsociety/roomweaver/internal/logger"
)

const chainLibrary = `
source: test
rooms:
  - name: Start
    start: true
    worth: 1
    tiles: ["########", "#......#", "#......#", "##....##"]
    holes: [{side: down, idx: 0}]
  - name: Middle
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
  - name: End
    worth: 1
    end: {}
    tiles: ["##....##", "#......#", "#......#", "########"]
    holes: [{side: up, idx: 0}]
`

const lockedLibrary = `
source: test
rooms:
  - name: Start
    start: true
    worth: 1
    tiles: ["########", "#......#", "#......#", "##....##"]
    holes: [{side: down, idx: 0, req_out: {key: true, keyhole: 7}}]
    collectables: [{x: 3, y: 1}]
  - name: Middle
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
  - name: End
    worth: 1
    end: {}
    tiles: ["##....##", "#......#", "#......#", "########"]
    holes: [{side: up, idx: 0}]
`

// gridLibrary rooms are 8x8 with a size 4 hole centred on each open side
const gridLibrary = `
source: grid
rooms:
  - name: hub
    hub: true
    worth: 1
    tiles: ["##....##", "#......#", "........", "........", "........", "........", "#......#", "##....##"]
    holes:
      - {side: up, idx: 0}
      - {side: down, idx: 0}
      - {side: left, idx: 0}
      - {side: right, idx: 0}
    collectables: [{x: 3, y: 3}]
  - name: shaft
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "#......#", "#......#", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
    collectables: [{x: 4, y: 4}]
  - name: hall
    worth: 1
    tiles: ["########", "#......#", "........", "........", "........", "........", "#......#", "########"]
    holes: [{side: left, idx: 0}, {side: right, idx: 0}]
    collectables: [{x: 2, y: 4}]
  - name: cross
    worth: 1
    tiles: ["##....##", "#......#", "........", "........", "........", "........", "#......#", "##....##"]
    holes:
      - {side: up, idx: 0}
      - {side: down, idx: 0}
      - {side: left, idx: 0}
      - {side: right, idx: 0}
    collectables: [{x: 5, y: 5}, {x: 2, y: 2}]
  - name: pit
    worth: 1
    end: {}
    tiles: ["##....##", "#......#", "#......#", "#......#", "#......#", "#......#", "#......#", "########"]
    holes: [{side: up, idx: 0}]
  - name: alcove
    worth: 1
    end: {}
    tiles: ["########", "#......#", ".......#", ".......#", ".......#", ".......#", "#......#", "########"]
    holes: [{side: left, idx: 0}]
`

func mustLibrary(t *testing.T, src string) *library.Library {
	t.Helper()
	rooms, err := library.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	lib, err := library.New(rooms)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return lib
}

func holeEdge(t *testing.T, room *library.StaticRoom, side geometry.Side) *library.StaticEdge {
	t.Helper()
	for _, e := range room.ExternalEdges() {
		if e.HoleTarget != nil && e.HoleTarget.Side == side {
			return e
		}
	}
	t.Fatalf("room %s has no %s hole", room.Name, side)
	return nil
}

func placements(m *linked.Map) []string {
	var out []string
	for _, r := range m.Rooms() {
		out = append(out, fmt.Sprintf("%s@%d,%d", r.Static.Name, r.Position.X, r.Position.Y))
	}
	return out
}

func chainSettings() *config.Settings {
	s := config.DefaultSettings()
	s.Seed = "test"
	s.Strawberries = config.StrawberriesNone
	s.Budget = &config.Budget{MinWorth: 2, MaxWorth: 3}
	return s
}

func TestPathwayThreeRoomChain(t *testing.T) {
	lib := mustLibrary(t, chainLibrary)

	res, err := Generate(lib, chainSettings(), Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := []string{"Start@0,0", "Middle@0,4", "End@0,8"}
	if got := placements(res.Map); !reflect.DeepEqual(got, want) {
		t.Errorf("placements = %v, want %v", got, want)
	}
	if res.Attempt != 0 {
		t.Errorf("Attempt = %d, want 0", res.Attempt)
	}
	if res.Start == nil || res.Start.Static.Name != "Start" {
		t.Errorf("Start = %v, want Start", res.Start)
	}
	if res.Map.Worth() != 3 {
		t.Errorf("Worth = %v, want 3", res.Map.Worth())
	}

	start := res.Map.Rooms()[0]
	middle := res.Map.Rooms()[1]
	edge := start.Node(library.MainNode).LinkedEdge(holeEdge(t, start.Static, geometry.Down))
	if edge == nil {
		t.Fatal("Start down hole is not linked")
	}
	if other := edge.Other(start.Node(library.MainNode)); other.Room != middle {
		t.Errorf("Start links to %s, want Middle", other.Room)
	}
	offset := geometry.Compatible(holeEdge(t, start.Static, geometry.Down).HoleTarget, holeEdge(t, middle.Static, geometry.Up).HoleTarget)
	if offset != 0 {
		t.Errorf("Middle offset = %d, want 0", offset)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	lib := mustLibrary(t, gridLibrary)

	settings := config.DefaultSettings()
	settings.Seed = "same seed"
	settings.RepeatRooms = true
	settings.Budget = &config.Budget{MinWorth: 4, MaxWorth: 8}

	first, err1 := Generate(lib, settings, Options{})
	second, err2 := Generate(lib, settings, Options{})
	if (err1 == nil) != (err2 == nil) {
		t.Fatalf("runs disagree: %v vs %v", err1, err2)
	}
	if err1 != nil {
		t.Fatalf("Generate failed: %v", err1)
	}

	if !reflect.DeepEqual(placements(first.Map), placements(second.Map)) {
		t.Errorf("placements differ:\n%v\n%v", placements(first.Map), placements(second.Map))
	}
	if first.Bounds() != second.Bounds() {
		t.Errorf("bounds differ: %v vs %v", first.Bounds(), second.Bounds())
	}
	if first.Backtracks != second.Backtracks || first.Attempt != second.Attempt {
		t.Errorf("search differs: %d/%d vs %d/%d", first.Attempt, first.Backtracks, second.Attempt, second.Backtracks)
	}

	last := first.Map.Rooms()[first.Map.Count()-1]
	if !last.Static.IsEnd() {
		t.Errorf("last room = %s, want an ending room", last)
	}
	if w := first.Map.Worth(); w < 4 || w > 8 {
		t.Errorf("Worth = %v, want within [4, 8]", w)
	}
}

func TestPathwayPlacesKeyForLockedExit(t *testing.T) {
	lib := mustLibrary(t, lockedLibrary)

	res, err := Generate(lib, chainSettings(), Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	start := res.Map.Rooms()[0]
	if got := start.Keyholes(); !reflect.DeepEqual(got, []int{7}) {
		t.Errorf("Keyholes = %v, want [7]", got)
	}

	main := start.Node(library.MainNode)
	p, ok := main.Placed(start.Static.Collectables[0])
	if !ok || p.Item != linked.ItemKey {
		t.Errorf("start slot = %v (placed %v), want key", p.Item, ok)
	}
	if res.Map.Count() != 3 {
		t.Errorf("Count = %d, want 3", res.Map.Count())
	}
}

func TestLabyrinth(t *testing.T) {
	lib := mustLibrary(t, gridLibrary)

	settings := config.DefaultSettings()
	settings.Algorithm = config.AlgorithmLabyrinth
	settings.Seed = "maze"
	settings.RepeatRooms = true
	settings.Strawberries = config.StrawberriesNone
	settings.Budget = &config.Budget{MaxRooms: 6}

	res, err := Generate(lib, settings, Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if res.Start.Static.Name != "hub" {
		t.Errorf("Start = %s, want hub", res.Start)
	}
	if n := res.Map.Count(); n < 3 || n > 6 {
		t.Errorf("Count = %d, want between 3 and 6", n)
	}

	gems := 0
	for _, r := range res.Map.Rooms() {
		if r.Static.IsEnd() {
			t.Errorf("labyrinth placed ending room %s", r)
		}
		for _, n := range r.Nodes() {
			for _, p := range n.Collectables {
				if p.Item >= linked.ItemGem1 {
					gems++
				}
			}
		}
	}
	if gems != res.Budget.Gems {
		t.Errorf("gems placed = %d, want %d", gems, res.Budget.Gems)
	}
}

func TestStrawberriesByDensity(t *testing.T) {
	lib := mustLibrary(t, gridLibrary)

	settings := config.DefaultSettings()
	settings.Algorithm = config.AlgorithmLabyrinth
	settings.Seed = "berries"
	settings.RepeatRooms = true
	settings.Strawberries = config.StrawberriesMany
	settings.Budget = &config.Budget{MaxRooms: 4}

	res, err := Generate(lib, settings, Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	free, berries := 0, 0
	for _, r := range res.Map.Rooms() {
		for _, n := range r.Nodes() {
			for _, sc := range n.Static.Collectables {
				p, ok := n.Placed(sc)
				switch {
				case !ok:
					free++
				case p.Item == linked.ItemStrawberry:
					berries++
				}
			}
		}
	}
	if berries == 0 {
		t.Error("no strawberries placed")
	}
	if berries < free {
		t.Errorf("strawberries = %d, free = %d, want most slots filled at density 0.7", berries, free)
	}
}

func TestGenerateErrors(t *testing.T) {
	lib := mustLibrary(t, chainLibrary)

	t.Run("empty after filter", func(t *testing.T) {
		s := chainSettings()
		s.Sources = []string{"nothing"}
		if _, err := Generate(lib, s, Options{}); !errors.Is(err, ErrEmptyLibrary) {
			t.Errorf("err = %v, want ErrEmptyLibrary", err)
		}
	})

	t.Run("labyrinth without hub", func(t *testing.T) {
		noHub := mustLibrary(t, `
rooms:
  - name: lone
    tiles: ["####", "#..#", "####"]
`)
		s := chainSettings()
		s.Algorithm = config.AlgorithmLabyrinth
		if _, err := Generate(noHub, s, Options{}); !errors.Is(err, ErrNoStartRoom) {
			t.Errorf("err = %v, want ErrNoStartRoom", err)
		}
	})

	t.Run("invalid settings", func(t *testing.T) {
		s := chainSettings()
		s.Length = "epic"
		if _, err := Generate(lib, s, Options{}); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("retry cap", func(t *testing.T) {
		s := chainSettings()
		// the chain is worth 3, so a 10 minimum can never end
		s.Budget = &config.Budget{MinWorth: 10, MaxWorth: 12}

		var failed []int
		opts := Options{
			MaxAttempts: 3,
			Observer: func(ev Event) {
				if ev.Kind == EventAttemptFailed {
					failed = append(failed, ev.Attempt)
				}
			},
		}
		_, err := Generate(lib, s, opts)
		if !errors.Is(err, ErrCannotGenerate) {
			t.Fatalf("err = %v, want ErrCannotGenerate", err)
		}
		if !reflect.DeepEqual(failed, []int{0, 1, 2}) {
			t.Errorf("failed attempts = %v, want [0 1 2]", failed)
		}
	})
}

func TestObserverEvents(t *testing.T) {
	lib := mustLibrary(t, chainLibrary)

	var kinds []EventKind
	var rooms []string
	_, err := Generate(lib, chainSettings(), Options{Observer: func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventRoomPlaced {
			rooms = append(rooms, ev.Room)
		}
	}})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if kinds[0] != EventAttemptStarted || kinds[len(kinds)-1] != EventGenerated {
		t.Errorf("events = %v, want attempt_started first and generated last", kinds)
	}
	if want := []string{"Start", "Middle", "End"}; !reflect.DeepEqual(rooms, want) {
		t.Errorf("placed rooms = %v, want %v", rooms, want)
	}
}

func TestGenerateContext(t *testing.T) {
	lib := mustLibrary(t, chainLibrary)

	res, err := GenerateContext(context.Background(), lib, chainSettings(), Options{})
	if err != nil {
		t.Fatalf("GenerateContext failed: %v", err)
	}
	if res.Map.Count() != 3 {
		t.Errorf("Count = %d, want 3", res.Map.Count())
	}

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	finished := make(chan struct{})

	opts := Options{
		Observer: func(ev Event) {
			if ev.Kind == EventAttemptStarted {
				cancel()
				<-release
			}
		},
		Finished: func() { close(finished) },
	}
	if _, err := GenerateContext(ctx, lib, chainSettings(), opts); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	select {
	case <-finished:
		t.Error("Finished called while the abandoned run was still going")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Error("Finished not called after the abandoned run returned")
	}
}

func TestBudgetFor(t *testing.T) {
	s := config.DefaultSettings()
	s.Length = config.LengthLong
	if got := BudgetFor(s); got != tiers[config.LengthLong] {
		t.Errorf("BudgetFor(long) = %+v, want %+v", got, tiers[config.LengthLong])
	}

	s.Budget = &config.Budget{MaxRooms: 9, MaxBacktracks: 5}
	got := BudgetFor(s)
	if got.MaxRooms != 9 || got.MaxBacktracks != 5 || got.MinWorth != tiers[config.LengthLong].MinWorth {
		t.Errorf("BudgetFor with overrides = %+v", got)
	}

	s.Algorithm = config.AlgorithmEndless
	s.Budget = nil
	if got := BudgetFor(s); got != tiers[config.LengthShort] {
		t.Errorf("BudgetFor(endless) = %+v, want short tier", got)
	}

	s.Algorithm = config.AlgorithmPathway
	s.Budget = &config.Budget{MinWorth: 80}
	if got := BudgetFor(s); got.MaxWorth != 80 {
		t.Errorf("MaxWorth = %v, want raised to MinWorth 80", got.MaxWorth)
	}
}

func TestDeriveSeed(t *testing.T) {
	if deriveSeed("abc", 0) != deriveSeed("abc", 0) {
		t.Error("deriveSeed is not stable")
	}
	if deriveSeed("abc", 0) == deriveSeed("abc", 1) {
		t.Error("retries share a seed")
	}
	if deriveSeed("abc", 0) == deriveSeed("abd", 0) {
		t.Error("different seeds collide")
	}
}

func newTestGenerator(t *testing.T, src string) *generator {
	t.Helper()
	lib := mustLibrary(t, src)
	settings := chainSettings()
	return newGenerator(lib, settings, BudgetFor(settings), 0, logger.With(), nil)
}

func poolNames(g *generator) []string {
	var out []string
	for _, r := range g.remaining {
		out = append(out, r.Name)
	}
	return out
}

func TestRoomReceiptRoundTrip(t *testing.T) {
	g := newTestGenerator(t, chainLibrary)
	before := poolNames(g)

	middle := g.lib.Room("Middle")
	room, receipt := g.placeRoom(middle, image.Pt(3, 4), true)
	if g.m.Count() != 1 || g.m.Worth() != 2 {
		t.Errorf("after place: Count = %d, Worth = %v, want 1 and 2", g.m.Count(), g.m.Worth())
	}
	if got := poolNames(g); !reflect.DeepEqual(got, []string{"Start", "End"}) {
		t.Errorf("pool = %v, want [Start End]", got)
	}
	if room.Position != image.Pt(3, 4) {
		t.Errorf("Position = %v, want (3,4)", room.Position)
	}

	receipt.Undo()
	if g.m.Count() != 0 || g.m.Worth() != 0 {
		t.Errorf("after undo: Count = %d, Worth = %v, want 0 and 0", g.m.Count(), g.m.Worth())
	}
	if got := poolNames(g); !reflect.DeepEqual(got, before) {
		t.Errorf("pool = %v, want %v", got, before)
	}
}

func TestRepeatRoomsKeepPool(t *testing.T) {
	g := newTestGenerator(t, chainLibrary)
	g.settings.RepeatRooms = true

	g.placeRoom(g.lib.Room("Start"), image.Point{}, false)
	if len(g.pool()) != 3 {
		t.Errorf("pool size = %d, want 3 with repeat rooms", len(g.pool()))
	}
}

func TestConnectItemAndKeyholeReceipts(t *testing.T) {
	g := newTestGenerator(t, lockedLibrary)

	startStatic := g.lib.Room("Start")
	middleStatic := g.lib.Room("Middle")
	start, _ := g.placeRoom(startStatic, image.Point{}, false)
	middle, _ := g.placeRoom(middleStatic, image.Pt(0, 4), false)

	exit := linked.Exit{Node: start.Node(library.MainNode), Static: holeEdge(t, startStatic, geometry.Down)}
	conn := g.connect(exit, middle.Node(library.MainNode), holeEdge(t, middleStatic, geometry.Up))
	if len(exit.Node.Edges) != 1 {
		t.Fatalf("edges after connect = %d, want 1", len(exit.Node.Edges))
	}

	slot := linked.Slot{Node: exit.Node, Static: startStatic.Collectables[0]}
	item := g.placeItem(slot, linked.Placement{Item: linked.ItemKey})
	keyhole := g.useKeyhole(start, 7)

	if _, ok := slot.Node.Placed(slot.Static); !ok {
		t.Error("slot empty after placeItem")
	}
	if !start.UsedKeyholes.Has(7) {
		t.Error("keyhole 7 not marked used")
	}

	keyhole.Undo()
	item.Undo()
	conn.Undo()

	if start.UsedKeyholes.Size() != 0 {
		t.Errorf("keyholes after undo = %v, want none", start.Keyholes())
	}
	if _, ok := slot.Node.Placed(slot.Static); ok {
		t.Error("slot still filled after undo")
	}
	if len(exit.Node.Edges) != 0 || len(middle.Node(library.MainNode).Edges) != 0 {
		t.Error("edges left after connect undo")
	}
}

func TestExitLock(t *testing.T) {
	g := newTestGenerator(t, lockedLibrary)
	startStatic := g.lib.Room("Start")
	start, _ := g.placeRoom(startStatic, image.Point{}, false)
	exit := linked.Exit{Node: start.Node(library.MainNode), Static: holeEdge(t, startStatic, geometry.Down)}

	keyhole, ok := g.exitLock(exit)
	if !ok || keyhole != 7 {
		t.Errorf("exitLock = %d, %v, want 7, true", keyhole, ok)
	}

	start.UsedKeyholes.Put(7)
	if _, ok := g.exitLock(exit); ok {
		t.Error("exitLock allowed a keyhole that is already used")
	}
}

// choiceTask picks the next of its choices and queues child
type choiceTask struct {
	taskBase
	choices []int
	cursor  int
	picked  *int
	child   Task
}

func (t *choiceTask) Next() bool {
	if t.cursor >= len(t.choices) {
		t.cursor = 0
		return false
	}
	*t.picked = t.choices[t.cursor]
	t.cursor++
	if t.child != nil {
		t.addFront(t.child)
	}
	return true
}

// checkTask succeeds when ok does
type checkTask struct {
	taskBase
	ok   func() bool
	runs int
}

func (t *checkTask) Next() bool {
	t.runs++
	return t.ok()
}

func TestEngineBacktracks(t *testing.T) {
	g := &generator{}
	g.engine = newEngine(0, logger.With())

	picked := -1
	check := &checkTask{taskBase: taskBase{g: g}, ok: func() bool { return picked == 3 }}
	choice := &choiceTask{taskBase: taskBase{g: g}, choices: []int{1, 2, 3}, picked: &picked, child: check}
	g.engine.pushBack(choice)

	if err := g.engine.run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if picked != 3 {
		t.Errorf("picked = %d, want 3", picked)
	}
	if g.engine.backtracks != 2 {
		t.Errorf("backtracks = %d, want 2", g.engine.backtracks)
	}
	if check.runs != 3 {
		t.Errorf("check runs = %d, want 3", check.runs)
	}
	if g.engine.queue.Front != nil {
		t.Error("queue not drained")
	}
}

func TestEngineFailures(t *testing.T) {
	tests := []struct {
		name          string
		choices       []int
		maxBacktracks int
		reason        string
	}{
		{"exhausted", []int{1, 2}, 0, "no completed task left to undo"},
		{"ceiling", []int{1, 2, 3, 4}, 2, "backtrack ceiling reached"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &generator{}
			g.engine = newEngine(tt.maxBacktracks, logger.With())

			picked := 0
			check := &checkTask{taskBase: taskBase{g: g}, ok: func() bool { return false }}
			g.engine.pushBack(&choiceTask{taskBase: taskBase{g: g}, choices: tt.choices, picked: &picked, child: check})

			err := g.engine.run()
			if !errors.Is(err, ErrGeneration) {
				t.Fatalf("err = %v, want ErrGeneration", err)
			}
			var genErr *GenerationError
			if !errors.As(err, &genErr) || genErr.Reason != tt.reason {
				t.Errorf("err = %v, want reason %q", err, tt.reason)
			}
		})
	}
}

func TestUndoDropsQueuedChildren(t *testing.T) {
	g := &generator{}
	g.engine = newEngine(0, logger.With())

	later := &checkTask{taskBase: taskBase{g: g}, ok: func() bool { return true }}
	g.engine.pushBack(later)

	picked := 0
	child := &checkTask{taskBase: taskBase{g: g}, ok: func() bool { return true }}
	choice := &choiceTask{taskBase: taskBase{g: g}, choices: []int{1}, picked: &picked, child: child}
	if !choice.Next() {
		t.Fatal("Next() = false, want true")
	}
	if front := g.engine.queue.Front; front == nil || front.Value != Task(child) {
		t.Fatal("child not queued at the front")
	}

	choice.Undo()
	front := g.engine.queue.Front
	if front == nil || front.Value != Task(later) || front.Next != nil {
		t.Error("queue after Undo should hold only the task queued before")
	}
	if choice.front != 0 {
		t.Errorf("front = %d, want 0", choice.front)
	}
}

// pitLibrary locks Start's only exit and hides a slot in a pit the player
// cannot climb back out of
func pitLibrary(mainSlot bool) string {
	collectables := ""
	if mainSlot {
		collectables = "    collectables: [{x: 2, y: 1}]\n"
	}
	return fmt.Sprintf(`
source: test
rooms:
  - name: Start
    start: true
    worth: 1
    tiles: ["########", "#......#", "#......#", "##....##"]
    holes: [{side: down, idx: 0, req_out: {key: true, keyhole: 7}}]
%s    subrooms:
      - name: pit
        collectables: [{x: 5, y: 2}]
    internal_edges:
      - {from: main, to: pit, req_in: {impossible: true}}
  - name: Middle
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
  - name: End
    worth: 1
    end: {}
    tiles: ["##....##", "#......#", "#......#", "########"]
    holes: [{side: up, idx: 0}]
`, collectables)
}

func TestKeySlotMustReachLock(t *testing.T) {
	t.Run("only slot behind a drop", func(t *testing.T) {
		lib := mustLibrary(t, pitLibrary(false))
		_, err := Generate(lib, chainSettings(), Options{MaxAttempts: 2})
		if !errors.Is(err, ErrCannotGenerate) {
			t.Errorf("err = %v, want ErrCannotGenerate", err)
		}
	})

	lib := mustLibrary(t, pitLibrary(true))
	for _, seed := range []string{"a", "b", "c", "d", "e", "f"} {
		t.Run("seed "+seed, func(t *testing.T) {
			settings := chainSettings()
			settings.Seed = seed

			res, err := Generate(lib, settings, Options{})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}

			start := res.Map.Rooms()[0]
			if got := start.Keyholes(); !reflect.DeepEqual(got, []int{7}) {
				t.Errorf("Keyholes = %v, want [7]", got)
			}
			p, ok := start.Node(library.MainNode).Placed(start.Static.Collectables[0])
			if !ok || p.Item != linked.ItemKey {
				t.Errorf("main slot = %v (placed %v), want key", p.Item, ok)
			}
			if p, ok := start.Node("pit").Placed(start.Static.Collectables[1]); ok {
				t.Errorf("pit slot holds %v, want empty", p.Item)
			}
		})
	}
}

const pruneLibrary = `
source: test
rooms:
  - name: hub
    hub: true
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
    collectables: [{x: 3, y: 1}]
    warps: [{name: portal}]
  - name: shaft
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
    collectables: [{x: 3, y: 1}]
  - name: tube
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
  - name: cap
    worth: 1
    tiles: ["########", "#......#", "#......#", "##....##"]
    holes: [{side: down, idx: 0}]
  - name: vault
    worth: 1
    tiles: ["########", "#......#", "#......#", "########"]
    warps: [{name: back}]
`

func warpEdge(t *testing.T, room *library.StaticRoom) *library.StaticEdge {
	t.Helper()
	for _, e := range room.ExternalEdges() {
		if e.CustomWarp {
			return e
		}
	}
	t.Fatalf("room %s has no warp", room.Name)
	return nil
}

// attachRoom places static through entrance next to from's exit edge
func attachRoom(t *testing.T, g *generator, from *linked.Room, exitEdge *library.StaticEdge, static *library.StaticRoom, entrance *library.StaticEdge) *linked.Room {
	t.Helper()
	exit := linked.Exit{Node: from.Node(exitEdge.FromNode.Name), Static: exitEdge}
	pos, ok := g.fit(exit, static, entrance)
	if !ok {
		t.Fatalf("%s does not fit next to %s", static.Name, from)
	}
	return g.attach(&taskBase{g: g}, exit, static, entrance, pos, false).Room
}

func TestPruneLeafRooms(t *testing.T) {
	g := newTestGenerator(t, pruneLibrary)
	hubStatic, tubeStatic := g.lib.Room("hub"), g.lib.Room("tube")
	capStatic, shaftStatic, vaultStatic := g.lib.Room("cap"), g.lib.Room("shaft"), g.lib.Room("vault")

	hub, _ := g.placeRoom(hubStatic, image.Point{}, false)
	g.start = hub

	tube := attachRoom(t, g, hub, holeEdge(t, hubStatic, geometry.Up), tubeStatic, holeEdge(t, tubeStatic, geometry.Down))
	attachRoom(t, g, tube, holeEdge(t, tubeStatic, geometry.Up), capStatic, holeEdge(t, capStatic, geometry.Down))
	attachRoom(t, g, hub, holeEdge(t, hubStatic, geometry.Down), shaftStatic, holeEdge(t, shaftStatic, geometry.Up))
	vault := attachRoom(t, g, hub, warpEdge(t, hubStatic), vaultStatic, warpEdge(t, vaultStatic))
	if hub.WarpMap["portal"] != vault {
		t.Fatalf("portal leads to %v, want vault", hub.WarpMap["portal"])
	}

	g.prune()

	var names []string
	for _, r := range g.m.Rooms() {
		names = append(names, r.Static.Name)
	}
	if want := []string{"hub", "shaft"}; !reflect.DeepEqual(names, want) {
		t.Errorf("rooms = %v, want %v", names, want)
	}
	if len(hub.WarpMap) != 0 {
		t.Errorf("hub WarpMap = %v, want empty", hub.WarpMap)
	}
	if n := linkCount(hub); n != 1 {
		t.Errorf("hub links = %d, want 1", n)
	}
}

// ledgeLibrary has a hub whose ledge can be dropped into but not left
const ledgeLibrary = `
source: test
rooms:
  - name: hub
    hub: true
    worth: 1
    tiles: ["########", "#......#", "#......#", "########"]
    collectables: [{x: 2, y: 1}, {x: 3, y: 1}]
    subrooms:
      - name: ledge
        collectables: [{x: 6, y: 2}]
    internal_edges:
      - {from: main, to: ledge, req_in: {impossible: true}}
`

func TestGemsPreferOneWaySlots(t *testing.T) {
	lib := mustLibrary(t, ledgeLibrary)

	for _, seed := range []string{"a", "b", "c", "d"} {
		t.Run("seed "+seed, func(t *testing.T) {
			settings := config.DefaultSettings()
			settings.Algorithm = config.AlgorithmLabyrinth
			settings.Seed = seed
			settings.Strawberries = config.StrawberriesNone
			settings.Budget = &config.Budget{MaxRooms: 1}

			res, err := Generate(lib, settings, Options{})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			hub := res.Map.Rooms()[0]
			cs := hub.Static.Collectables

			ledge, ok := hub.Node("ledge").Placed(cs[2])
			if !ok || ledge.Item != linked.Gem(0) || !ledge.AutoBubble {
				t.Errorf("ledge slot = %+v (placed %v), want first gem with auto bubble", ledge, ok)
			}

			main := hub.Node(library.MainNode)
			gems := 0
			for _, sc := range cs[:2] {
				p, ok := main.Placed(sc)
				if !ok {
					continue
				}
				gems++
				if p.Item != linked.Gem(1) || p.AutoBubble {
					t.Errorf("main slot = %+v, want second gem without auto bubble", p)
				}
			}
			if gems != 1 {
				t.Errorf("gems in main = %d, want 1", gems)
			}
		})
	}
}

// labyrinthLibrary adds a dead end without slots and a room that sets a
// flag to the grid rooms
const labyrinthLibrary = gridLibrary + `
  - name: stub
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "#......#", "#......#", "#......#", "#......#", "########"]
    holes: [{side: up, idx: 0}]
  - name: lever
    worth: 1
    tiles: ["##....##", "#......#", "#......#", "#......#", "#......#", "#......#", "#......#", "##....##"]
    holes: [{side: up, idx: 0}, {side: down, idx: 0}]
    collectables: [{x: 4, y: 4}]
    flags: [{flag: gate, set: true}]
`

func TestLabyrinthRoomChoice(t *testing.T) {
	lib := mustLibrary(t, labyrinthLibrary)

	for _, seed := range []string{"a", "b", "c", "d", "e"} {
		t.Run("seed "+seed, func(t *testing.T) {
			settings := config.DefaultSettings()
			settings.Algorithm = config.AlgorithmLabyrinth
			settings.Seed = seed
			settings.RepeatRooms = true
			settings.Strawberries = config.StrawberriesNone
			settings.Budget = &config.Budget{MaxRooms: 8}

			res, err := Generate(lib, settings, Options{})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			for _, r := range res.Map.Rooms() {
				if r.Static.HasFlagSetters() {
					t.Errorf("labyrinth placed flag room %s", r)
				}
				if r != res.Start && linkCount(r) == 1 && len(r.Static.Collectables) == 0 {
					t.Errorf("leaf room %s without slots survived", r)
				}
			}
		})
	}
}

func TestLabyrinthTriesSlotRoomsFirst(t *testing.T) {
	g := newTestGenerator(t, labyrinthLibrary)
	g.settings.RepeatRooms = true
	hub, _ := g.placeRoom(g.lib.Room("hub"), image.Point{}, false)
	g.start = hub

	task := &labyrinthExpandTask{taskBase: taskBase{g: g}}
	task.prepare()
	if len(task.options) == 0 {
		t.Fatal("no options around the hub")
	}

	bare := 0
	for i, o := range task.options {
		if o.static.HasFlagSetters() || o.static.IsEnd() {
			t.Errorf("option %d uses excluded room %s", i, o.static.Name)
		}
		if len(o.static.Collectables) == 0 {
			bare++
			continue
		}
		if bare > 0 {
			t.Errorf("option %d (%s) with slots comes after a room without", i, o.static.Name)
		}
	}
	if bare == 0 {
		t.Error("stub never offered")
	}
}
