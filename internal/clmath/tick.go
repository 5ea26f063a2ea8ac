package clmath

// TickSpacing is the grid step every position boundary must sit on.
const TickSpacing int32 = 4

// Tick bounds accepted by the pool contract.
const (
	MinTick int32 = -665454
	MaxTick int32 = 831818
)

// FloorToGrid returns the largest grid tick <= tick.
func FloorToGrid(tick int32) int32 {
	r := tick % TickSpacing
	if r < 0 {
		r += TickSpacing
	}
	return tick - r
}

// CeilToGrid returns the smallest grid tick >= tick.
func CeilToGrid(tick int32) int32 {
	floor := FloorToGrid(tick)
	if floor == tick {
		return tick
	}
	return floor + TickSpacing
}

// OnGrid reports whether tick is a multiple of TickSpacing.
func OnGrid(tick int32) bool {
	return tick%TickSpacing == 0
}
