package cellar

import "runtime"

// Config holds per-World configuration, passed by value to NewWorld. The
// registry and the managed/shared stores are owned per-World and
// multi-world setups are independent, so there is no process-wide global
// to mutate.
type Config struct {
	// ChunkBudgetBytes bounds the byte size of one archetype chunk; chunk
	// capacity C is derived from it and the archetype's unmanaged-instance
	// row size.
	ChunkBudgetBytes int

	// DefaultChunkCapacity is used when an archetype's unmanaged-instance
	// row size is zero (e.g. an entity with only managed/shared/no
	// components).
	DefaultChunkCapacity int

	// WorkerPoolSize bounds the concurrency of ForEachParallel. Batch
	// migrations (MutateComponents) run sequentially and do not use the
	// pool. Zero means logical-core-count.
	WorkerPoolSize int

	// AutoRegisterGenerated, when true, invokes every function registered
	// via RegisterAutoRegisterHook at World construction time. This is the
	// external "register all known components" hook; cellar itself never
	// generates such a hook.
	AutoRegisterGenerated bool
}

const defaultChunkBudgetBytes = 16 * 1024

// DefaultConfig returns the configuration a freshly constructed World
// uses when the caller doesn't need anything special.
func DefaultConfig() Config {
	return Config{
		ChunkBudgetBytes:      defaultChunkBudgetBytes,
		DefaultChunkCapacity:  64,
		WorkerPoolSize:        runtime.NumCPU(),
		AutoRegisterGenerated: true,
	}
}

func (c Config) normalized() Config {
	if c.ChunkBudgetBytes <= 0 {
		c.ChunkBudgetBytes = defaultChunkBudgetBytes
	}
	if c.DefaultChunkCapacity <= 0 {
		c.DefaultChunkCapacity = 64
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = runtime.NumCPU()
	}
	return c
}

// AutoRegisterHook is the external "register all known components"
// callback a code-generation layer built on top of cellar would supply.
// cellar only carries the hook; it never produces one itself.
type AutoRegisterHook func(*World)

var autoRegisterHooks []AutoRegisterHook

// RegisterAutoRegisterHook appends a hook run by NewWorld when
// Config.AutoRegisterGenerated is true. Intended for external code
// generators, not for use by application code directly.
func RegisterAutoRegisterHook(hook AutoRegisterHook) {
	autoRegisterHooks = append(autoRegisterHooks, hook)
}
