package linked

import "fmt"

// ItemKind is the item assigned to a collectable slot
type ItemKind int

const (
	ItemKey ItemKind = iota
	ItemStrawberry
	ItemGem1
	ItemGem2
	ItemGem3
	ItemGem4
	ItemGem5
	ItemGem6
)

// NumGems is the number of distinct gem items
const NumGems = 6

var itemNames = []string{"key", "strawberry", "gem1", "gem2", "gem3", "gem4", "gem5", "gem6"}

func (k ItemKind) String() string {
	if k < 0 || int(k) >= len(itemNames) {
		return "unknown"
	}
	return itemNames[k]
}

// Gem returns the gem item with the given zero-based index
func Gem(i int) ItemKind {
	return ItemGem1 + ItemKind(i%NumGems)
}

// ParseItemKind converts a name produced by String back to an ItemKind
func ParseItemKind(s string) (ItemKind, error) {
	for i, name := range itemNames {
		if name == s {
			return ItemKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown item %q", s)
}

// Placement is an item assigned to a slot. AutoBubble marks slots the
// player can reach but not walk back from, so the item returns them to
// safety when collected.
type Placement struct {
	Item       ItemKind
	AutoBubble bool
}
