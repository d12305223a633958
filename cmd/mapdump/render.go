package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gookit/color"
	"github.com/lawnchairsociety/roomweaver/internal/mapfile"
)

var (
	colorTitle     = color.Style{color.FgCyan, color.OpBold}
	colorRoom      = color.Style{color.FgBlue}
	colorBacktrack = color.Style{color.FgYellow}
	colorItem      = color.Style{color.FgGreen, color.OpBold}
	colorWarning   = color.Style{color.FgRed, color.OpBold}
	colorSubtle    = color.Style{color.FgGray}
)

const symbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

type options struct {
	scale  int
	grid   bool
	legend bool
}

// render formats the whole map report
func render(data *mapfile.MapData, opts options) string {
	var out strings.Builder

	out.WriteString(colorTitle.Sprintf("Map %s (%s/%s)", data.Seed, data.Algorithm, data.Length) + "\n")
	if data.RunID != "" {
		out.WriteString(fmt.Sprintf("Run: %s\n", data.RunID))
	}
	if !data.SavedAt.IsZero() {
		out.WriteString(fmt.Sprintf("Generated: %s\n", data.SavedAt.Format("2006-01-02 15:04:05")))
	}
	out.WriteString(fmt.Sprintf("Rooms: %d  Worth: %.2f  Bounds: %dx%d at (%d,%d)\n",
		len(data.Rooms), data.Worth, data.Bounds.W, data.Bounds.H, data.Bounds.X, data.Bounds.Y))
	out.WriteString(strings.Repeat("=", 60) + "\n\n")

	if opts.grid && len(data.Rooms) > 0 {
		renderGrid(&out, data, opts.scale)
		out.WriteString("\n")
	}
	renderRooms(&out, data)
	out.WriteString("\n")
	renderConnections(&out, data)

	if unreachable := unreachableRooms(data); len(unreachable) > 0 {
		names := make([]string, 0, len(unreachable))
		for _, i := range unreachable {
			names = append(names, fmt.Sprintf("[%s] %s", symbol(i), data.Rooms[i].Name))
		}
		out.WriteString("\n" + colorWarning.Sprint("Unreachable rooms: "+strings.Join(names, ", ")) + "\n")
	}

	if opts.legend {
		out.WriteString(legend())
	}
	return out.String()
}

// symbol names room i in the grid; symbols repeat past the alphabet
func symbol(i int) string {
	return string(symbols[i%len(symbols)])
}

// renderGrid draws every room as a block of its symbol, one character per
// scale x scale tiles
func renderGrid(out *strings.Builder, data *mapfile.MapData, scale int) {
	if scale < 1 {
		scale = 1
	}
	cols := (data.Bounds.W + scale - 1) / scale
	rows := (data.Bounds.H + scale - 1) / scale
	grid := make([][]byte, rows)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(" ", cols))
	}

	for i, r := range data.Rooms {
		x0 := (r.X - data.Bounds.X) / scale
		y0 := (r.Y - data.Bounds.Y) / scale
		x1 := (r.X - data.Bounds.X + r.Width - 1) / scale
		y1 := (r.Y - data.Bounds.Y + r.Height - 1) / scale
		for y := y0; y <= y1 && y < rows; y++ {
			for x := x0; x <= x1 && x < cols; x++ {
				grid[y][x] = symbols[i%len(symbols)]
			}
		}
	}

	border := "+" + strings.Repeat("-", cols) + "+\n"
	out.WriteString(border)
	for _, row := range grid {
		out.WriteString("|" + string(row) + "|\n")
	}
	out.WriteString(border)
}

func renderRooms(out *strings.Builder, data *mapfile.MapData) {
	out.WriteString("Room Details:\n")
	for i, r := range data.Rooms {
		style := colorRoom
		if r.Backtrack {
			style = colorBacktrack
		}
		line := fmt.Sprintf("  [%s] %-25s (%d,%d) %dx%d %s", symbol(i), truncate(r.Name, 25), r.X, r.Y, r.Width, r.Height, r.Source)

		var markers []string
		if i == 0 {
			markers = append(markers, "start")
		}
		if r.Backtrack {
			markers = append(markers, "backtrack")
		}
		for _, k := range r.Keyholes {
			markers = append(markers, fmt.Sprintf("keyhole %d", k))
		}
		if len(markers) > 0 {
			line += " [" + strings.Join(markers, ", ") + "]"
		}
		out.WriteString(style.Sprint(line) + "\n")

		for _, item := range r.Items {
			text := fmt.Sprintf("      %s at (%d,%d)", item.Item, item.X, item.Y)
			if item.AutoBubble {
				text += " bubble"
			}
			out.WriteString(colorItem.Sprint(text) + "\n")
		}
	}
}

func renderConnections(out *strings.Builder, data *mapfile.MapData) {
	out.WriteString("Connections:\n")
	for _, c := range data.Connections {
		out.WriteString(fmt.Sprintf("  %s  <->  %s\n", describe(data, c.From), describe(data, c.To)))
	}
	if len(data.Connections) == 0 {
		out.WriteString(colorSubtle.Sprint("  (none)") + "\n")
	}
}

func describe(data *mapfile.MapData, ep mapfile.EndpointData) string {
	name := "?"
	if ep.Room >= 0 && ep.Room < len(data.Rooms) {
		name = data.Rooms[ep.Room].Name
	}
	where := fmt.Sprintf("%s #%d", ep.Side, ep.Hole)
	if ep.Warp != "" {
		where = "warp " + ep.Warp
	}
	return fmt.Sprintf("[%s] %s.%s %s", symbol(ep.Room), name, ep.Node, where)
}

// unreachableRooms returns the rooms with no connection path to room 0
func unreachableRooms(data *mapfile.MapData) []int {
	if len(data.Rooms) == 0 {
		return nil
	}
	adj := make(map[int][]int)
	for _, c := range data.Connections {
		adj[c.From.Room] = append(adj[c.From.Room], c.To.Room)
		adj[c.To.Room] = append(adj[c.To.Room], c.From.Room)
	}

	seen := map[int]bool{0: true}
	queue := []int{0}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	var missing []int
	for i := range data.Rooms {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	sort.Ints(missing)
	return missing
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func legend() string {
	return `
Legend:
  [A]..[9]  Rooms in placement order; [A] is the start room
  backtrack Room added while searching for a key spot
  keyhole   Keyhole id opened in the room
  bubble    Item reachable one way only; collecting it returns the player

  Connections:
  side #n   The nth hole on that side of the room
  warp x    Custom warp named x
`
}
