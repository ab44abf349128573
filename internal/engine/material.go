package engine

import "strings"

// Material is the namespaced key of something an item display can show.
type Material string

const (
	DiamondBlock Material = "minecraft:diamond_block"
	GoldBlock    Material = "minecraft:gold_block"
	IronBlock    Material = "minecraft:iron_block"
	EmeraldBlock Material = "minecraft:emerald_block"
	Stone        Material = "minecraft:stone"
	Cobblestone  Material = "minecraft:cobblestone"
	Dirt         Material = "minecraft:dirt"
	GrassBlock   Material = "minecraft:grass_block"
	Sand         Material = "minecraft:sand"
	OakPlanks    Material = "minecraft:oak_planks"
	OakLog       Material = "minecraft:oak_log"
	Glass        Material = "minecraft:glass"
	TNT          Material = "minecraft:tnt"
	Shulker      Material = "minecraft:shulker_box"
)

const defaultNamespace = "minecraft"

var catalog = map[Material]struct{}{
	DiamondBlock: {},
	GoldBlock:    {},
	IronBlock:    {},
	EmeraldBlock: {},
	Stone:        {},
	Cobblestone:  {},
	Dirt:         {},
	GrassBlock:   {},
	Sand:         {},
	OakPlanks:    {},
	OakLog:       {},
	Glass:        {},
	TNT:          {},
	Shulker:      {},
}

// MaterialFromKey maps a block key such as "minecraft:oak_log[axis=y]" to
// the displayable material with the same key. A missing namespace means
// "minecraft". ok is false when the catalog has no such material.
func MaterialFromKey(key string) (m Material, ok bool) {
	key = strings.TrimSpace(key)
	if i := strings.IndexByte(key, '['); i >= 0 {
		key = key[:i]
	}
	key = strings.ToLower(key)
	if key == "" {
		return "", false
	}
	if !strings.Contains(key, ":") {
		key = defaultNamespace + ":" + key
	}
	m = Material(key)
	_, ok = catalog[m]
	return m, ok
}

// Name is the key without its namespace.
func (m Material) Name() string {
	if _, name, ok := strings.Cut(string(m), ":"); ok {
		return name
	}
	return string(m)
}
