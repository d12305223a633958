// Package mapfile converts generated maps to and from a YAML document that
// level writers and the inspection tools consume.
package mapfile

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/geometry"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/linked"
	"gopkg.in/yaml.v3"
)

// MapData is the serialized form of a generated map
type MapData struct {
	RunID     string    `yaml:"run_id,omitempty"`
	Seed      string    `yaml:"seed"`
	Algorithm string    `yaml:"algorithm"`
	Length    string    `yaml:"length"`
	SavedAt   time.Time `yaml:"saved_at"`
	Bounds    RectData  `yaml:"bounds"`
	Worth     float64   `yaml:"worth"`

	Rooms       []RoomData       `yaml:"rooms"`
	Connections []ConnectionData `yaml:"connections"`
}

// RectData is a rectangle in map tiles
type RectData struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// RoomData is one placed room. Rooms are referred to by their position in
// MapData.Rooms.
type RoomData struct {
	Name      string     `yaml:"name"`
	Source    string     `yaml:"source"`
	X         int        `yaml:"x"`
	Y         int        `yaml:"y"`
	Width     int        `yaml:"width"`
	Height    int        `yaml:"height"`
	Backtrack bool       `yaml:"backtrack,omitempty"`
	Keyholes  []int      `yaml:"keyholes,omitempty"`
	Items     []ItemData `yaml:"items,omitempty"`
}

// ItemData is an item assigned to a collectable slot of a room
type ItemData struct {
	Slot       int    `yaml:"slot"`
	X          int    `yaml:"x"`
	Y          int    `yaml:"y"`
	Item       string `yaml:"item"`
	AutoBubble bool   `yaml:"auto_bubble,omitempty"`
}

// ConnectionData joins two room endpoints
type ConnectionData struct {
	From EndpointData `yaml:"from"`
	To   EndpointData `yaml:"to"`
}

// EndpointData names one side of a connection: a hole by side and ordinal,
// or a custom warp by name
type EndpointData struct {
	Room int    `yaml:"room"`
	Node string `yaml:"node"`
	Side string `yaml:"side,omitempty"`
	Hole int    `yaml:"hole,omitempty"`
	Warp string `yaml:"warp,omitempty"`
}

// Serialize converts a generated map to MapData
func Serialize(m *linked.Map, settings *config.Settings) *MapData {
	b := m.Bounds()
	data := &MapData{
		Seed:      settings.Seed,
		Algorithm: string(settings.Algorithm),
		Length:    string(settings.Length),
		SavedAt:   time.Now(),
		Bounds:    rectData(b),
		Worth:     m.Worth(),
		Rooms:     make([]RoomData, 0, m.Count()),
	}

	index := make(map[*linked.Room]int, m.Count())
	for i, r := range m.Rooms() {
		index[r] = i
		data.Rooms = append(data.Rooms, serializeRoom(r))
	}

	for _, r := range m.Rooms() {
		for _, n := range r.Nodes() {
			for _, e := range n.Edges {
				if e.NodeA != n {
					continue
				}
				data.Connections = append(data.Connections, ConnectionData{
					From: endpoint(index, e.NodeA, e.StaticA),
					To:   endpoint(index, e.NodeB, e.StaticB),
				})
			}
		}
	}

	return data
}

func rectData(r image.Rectangle) RectData {
	return RectData{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// serializeRoom converts a placed room to RoomData
func serializeRoom(r *linked.Room) RoomData {
	rd := RoomData{
		Name:      r.Static.Name,
		Source:    r.Static.Source,
		X:         r.Position.X,
		Y:         r.Position.Y,
		Width:     r.Static.Width(),
		Height:    r.Static.Height(),
		Backtrack: r.Backtrack,
		Keyholes:  r.Keyholes(),
	}

	for _, sc := range r.Static.Collectables {
		p, ok := r.Node(sc.Node.Name).Placed(sc)
		if !ok {
			continue
		}
		rd.Items = append(rd.Items, ItemData{
			Slot:       sc.Index,
			X:          r.Position.X + sc.Position.X,
			Y:          r.Position.Y + sc.Position.Y,
			Item:       p.Item.String(),
			AutoBubble: p.AutoBubble,
		})
	}
	return rd
}

func endpoint(index map[*linked.Room]int, n *linked.Node, se *library.StaticEdge) EndpointData {
	ep := EndpointData{Room: index[n.Room], Node: n.Static.Name}
	if se.CustomWarp {
		ep.Warp = se.Warp
		return ep
	}
	h := se.HoleTarget
	ep.Side = h.Side.String()
	for i, candidate := range geometry.HolesOnSide(n.Room.Static.Holes, h.Side) {
		if candidate == h {
			ep.Hole = i
		}
	}
	return ep
}

// Marshal encodes the map as YAML
func Marshal(data *MapData) ([]byte, error) {
	out, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal map data: %w", err)
	}
	return out, nil
}

// Unmarshal decodes a document produced by Marshal
func Unmarshal(raw []byte) (*MapData, error) {
	var data MapData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse map YAML: %w", err)
	}
	return &data, nil
}

// Save writes the map to a YAML file
func Save(data *MapData, filename string) error {
	yamlData, err := Marshal(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, yamlData, 0644); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}

	return nil
}

// Load reads a map file written by Save
func Load(filename string) (*MapData, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}

	return Unmarshal(raw)
}

// Resolve rebuilds the linked map against the library the map was made
// from. Rooms are placed first and connections linked in a second pass.
func (d *MapData) Resolve(lib *library.Library) (*linked.Map, error) {
	m := linked.NewMap()
	rooms := make([]*linked.Room, 0, len(d.Rooms))

	for i, rd := range d.Rooms {
		static := lib.Room(rd.Name)
		if static == nil {
			return nil, fmt.Errorf("room %d: unknown room %q", i, rd.Name)
		}
		r := m.AddRoom(static, image.Pt(rd.X, rd.Y), rd.Backtrack)
		for _, id := range rd.Keyholes {
			r.UsedKeyholes.Put(id)
		}
		for _, item := range rd.Items {
			if item.Slot < 0 || item.Slot >= len(static.Collectables) {
				return nil, fmt.Errorf("room %d: unknown slot %d", i, item.Slot)
			}
			kind, err := linked.ParseItemKind(item.Item)
			if err != nil {
				return nil, fmt.Errorf("room %d: %w", i, err)
			}
			sc := static.Collectables[item.Slot]
			r.Node(sc.Node.Name).Place(sc, linked.Placement{Item: kind, AutoBubble: item.AutoBubble})
		}
		rooms = append(rooms, r)
	}

	for i, c := range d.Connections {
		a, sa, err := resolveEndpoint(rooms, c.From)
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
		b, sb, err := resolveEndpoint(rooms, c.To)
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
		m.Connect(a, sa, b, sb)
		if sa.CustomWarp && sb.CustomWarp {
			a.Room.WarpMap[sa.Warp] = b.Room
			b.Room.WarpMap[sb.Warp] = a.Room
		}
	}

	return m, nil
}

func resolveEndpoint(rooms []*linked.Room, ep EndpointData) (*linked.Node, *library.StaticEdge, error) {
	if ep.Room < 0 || ep.Room >= len(rooms) {
		return nil, nil, fmt.Errorf("unknown room index %d", ep.Room)
	}
	r := rooms[ep.Room]
	n := r.Node(ep.Node)
	if n == nil {
		return nil, nil, fmt.Errorf("room %s has no node %q", r, ep.Node)
	}

	if ep.Warp != "" {
		for _, se := range n.Static.Edges {
			if se.CustomWarp && se.Warp == ep.Warp {
				return n, se, nil
			}
		}
		return nil, nil, fmt.Errorf("node %s has no warp %q", n, ep.Warp)
	}

	side, err := geometry.ParseSide(ep.Side)
	if err != nil {
		return nil, nil, err
	}
	holes := geometry.HolesOnSide(r.Static.Holes, side)
	if ep.Hole < 0 || ep.Hole >= len(holes) {
		return nil, nil, fmt.Errorf("room %s has no %s hole #%d", r, side, ep.Hole)
	}
	se := r.Static.HoleEdge(holes[ep.Hole])
	if se == nil || se.FromNode != n.Static {
		return nil, nil, fmt.Errorf("hole %s #%d does not belong to node %s", side, ep.Hole, n)
	}
	return n, se, nil
}
