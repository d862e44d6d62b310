package silo

// Config holds the compile-time tunables promoted to run-time
// variables, following the teacher's package-level Config pattern.
// It is read at the point of use, not copied into a World: a change
// affects archetypes created, queries compiled, and Update or Run calls
// made after it, including in existing Worlds.
var Config config = defaultConfig()

type config struct {
	// ChunkBytes is the fixed byte capacity of a chunk. Default 16 KiB.
	ChunkBytes uintptr

	// MaxQueryTerms bounds how many All/Any/Not/Changed terms a single
	// query may carry. Default 8.
	MaxQueryTerms int

	// MaxComponentSize bounds a single component's byte size. Default
	// 255.
	MaxComponentSize uintptr

	// DefragBudgetRows bounds how many rows World.Update moves per
	// call while defragmenting archetypes. Default 100.
	DefragBudgetRows int

	// ChunkDeathCountdown is how many World.Update calls an emptied
	// chunk survives before it is actually released, giving in-flight
	// iteration a grace window.
	ChunkDeathCountdown int

	// BatchSize is how many chunks the query runner hands to the
	// callback per dispatch batch.
	BatchSize int

	// SoALaneWidths enumerates the supported SIMD-style lane widths
	// for SoA components; 1 denotes AoS.
	SoALaneWidths []int
}

func defaultConfig() config {
	return config{
		ChunkBytes:          16 * 1024,
		MaxQueryTerms:       8,
		MaxComponentSize:    255,
		DefragBudgetRows:    100,
		ChunkDeathCountdown: 1,
		BatchSize:           16,
		SoALaneWidths:       []int{1, 4, 8, 16},
	}
}

// Reset restores default tunables. Intended for tests that mutate
// Config.
func (c *config) Reset() {
	*c = defaultConfig()
}
