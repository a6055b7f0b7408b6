package swapd

import "strings"

// defaultRoutingOffset is the offset in minutes added to routed CLTV deltas
// when no override matches.
const defaultRoutingOffset = 60

// RoutingOffsets resolves the safety offset that is added on top of routed
// CLTV deltas before converting them to a swap timeout. Offsets can be
// overridden per pair and per destination node, the largest match wins.
type RoutingOffsets struct {
	pairs map[string]int64
	nodes map[string]int64
}

// NewRoutingOffsets creates offsets with per pair and per destination node
// overrides in minutes. Nil maps mean no overrides.
func NewRoutingOffsets(pairs map[string]int64,
	nodes map[string]int64) *RoutingOffsets {

	lowered := make(map[string]int64, len(nodes))
	for id, offset := range nodes {
		lowered[strings.ToLower(id)] = offset
	}

	return &RoutingOffsets{
		pairs: pairs,
		nodes: lowered,
	}
}

// GetOffset returns the offset in minutes to apply for a route towards one
// of the destinations.
func (r *RoutingOffsets) GetOffset(pairID string,
	destinations []string) int64 {

	offset := int64(defaultRoutingOffset)
	if pairOffset, ok := r.pairs[pairID]; ok {
		offset = pairOffset
	}

	for _, destination := range destinations {
		nodeOffset, ok := r.nodes[strings.ToLower(destination)]
		if ok && nodeOffset > offset {
			offset = nodeOffset
		}
	}

	return offset
}
