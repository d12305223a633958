// Package library loads the room library: the authored room fragments and
// the immutable static graph derived from each of them. A Library is
// read-only once loaded and may be shared by concurrent generation attempts.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zyedidia/generic/mapset"
	"gopkg.in/yaml.v3"
)

// Library is an ordered, name-indexed collection of static rooms
type Library struct {
	rooms  []*StaticRoom
	byName map[string]*StaticRoom
}

// New builds a library from already constructed rooms. Room names must be
// unique.
func New(rooms []*StaticRoom) (*Library, error) {
	lib := &Library{byName: make(map[string]*StaticRoom, len(rooms))}
	for _, r := range rooms {
		if _, exists := lib.byName[r.Name]; exists {
			return nil, &ConfigError{Room: r.Name, Field: "name", Msg: "duplicate room name"}
		}
		lib.byName[r.Name] = r
		lib.rooms = append(lib.rooms, r)
	}
	return lib, nil
}

// Parse builds the rooms of one YAML library document
func Parse(data []byte) ([]*StaticRoom, error) {
	var doc LibraryYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse room library: %w", err)
	}

	rooms := make([]*StaticRoom, 0, len(doc.Rooms))
	for _, cfg := range doc.Rooms {
		room, err := BuildRoom(cfg, doc.Source)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// Load reads and builds every given library file, in order
func Load(paths ...string) (*Library, error) {
	var rooms []*StaticRoom
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read room library %s: %w", path, err)
		}
		parsed, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rooms = append(rooms, parsed...)
	}
	return New(rooms)
}

// LoadDir loads every .yaml and .yml file in dir, sorted by name
func LoadDir(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read room library directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	return Load(paths...)
}

// Rooms returns every room in load order
func (l *Library) Rooms() []*StaticRoom {
	return l.rooms
}

// Len returns the number of rooms
func (l *Library) Len() int {
	return len(l.rooms)
}

// Room returns the room with the given name, or nil
func (l *Library) Room(name string) *StaticRoom {
	return l.byName[name]
}

// Sources returns the distinct source set names in load order
func (l *Library) Sources() []string {
	seen := mapset.New[string]()
	var out []string
	for _, r := range l.rooms {
		if !seen.Has(r.Source) {
			seen.Put(r.Source)
			out = append(out, r.Source)
		}
	}
	return out
}

// Filter returns a library restricted to rooms from the given sources.
// An empty list keeps every room.
func (l *Library) Filter(sources []string) *Library {
	if len(sources) == 0 {
		return l
	}

	enabled := mapset.New[string]()
	for _, s := range sources {
		enabled.Put(s)
	}

	out := &Library{byName: make(map[string]*StaticRoom)}
	for _, r := range l.rooms {
		if enabled.Has(r.Source) {
			out.rooms = append(out.rooms, r)
			out.byName[r.Name] = r
		}
	}
	return out
}

// StartRooms returns rooms flagged as start rooms, or hub rooms when none are
func (l *Library) StartRooms() []*StaticRoom {
	var starts, hubs []*StaticRoom
	for _, r := range l.rooms {
		if r.Start {
			starts = append(starts, r)
		}
		if r.Hub {
			hubs = append(hubs, r)
		}
	}
	if len(starts) > 0 {
		return starts
	}
	return hubs
}

// HubRooms returns rooms flagged as labyrinth hubs
func (l *Library) HubRooms() []*StaticRoom {
	var hubs []*StaticRoom
	for _, r := range l.rooms {
		if r.Hub {
			hubs = append(hubs, r)
		}
	}
	return hubs
}
