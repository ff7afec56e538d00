package cellar

import "sync"

// entityCommand represents one recorded structural change that can be
// applied to a world at playback time.
type entityCommand interface {
	apply(w *World) error
}

// EntityCommandBuffer records structural changes while queries iterate
// and applies them later with Playback. Recording is cheap and never
// touches the world. Commands referencing entities destroyed by the time
// playback runs become no-ops; commands play back in recorded order
// within one recorder, and writer shards play back after the buffer's
// own commands, each shard in creation order.
type EntityCommandBuffer struct {
	mu       sync.Mutex
	commands []entityCommand
	writers  []*ParallelCommandWriter
}

var _ EntityCommandRecorder = &EntityCommandBuffer{}

// NewEntityCommandBuffer constructs an empty buffer.
func NewEntityCommandBuffer() *EntityCommandBuffer {
	return &EntityCommandBuffer{}
}

func (b *EntityCommandBuffer) record(cmd entityCommand) {
	b.mu.Lock()
	b.commands = append(b.commands, cmd)
	b.mu.Unlock()
}

// Create records creation of one entity carrying classes.
func (b *EntityCommandBuffer) Create(classes ...ComponentClass) {
	b.record(createCommand{classes: classes})
}

// CreateWith records creation of one entity carrying classes; init runs
// against the world right after the entity exists, with the new id.
func (b *EntityCommandBuffer) CreateWith(init func(*World, EntityID), classes ...ComponentClass) {
	b.record(createCommand{classes: classes, init: init})
}

// AddComponents records adding classes to eid.
func (b *EntityCommandBuffer) AddComponents(eid EntityID, classes ...ComponentClass) {
	b.record(mutateCommand{eid: eid, adds: classes})
}

// RemoveComponents records removing classes from eid.
func (b *EntityCommandBuffer) RemoveComponents(eid EntityID, classes ...ComponentClass) {
	b.record(mutateCommand{eid: eid, removes: classes})
}

// MutateComponents records a combined add/remove transform on eid.
func (b *EntityCommandBuffer) MutateComponents(eid EntityID, adds, removes []ComponentClass) {
	b.record(mutateCommand{eid: eid, adds: adds, removes: removes})
}

// SetManaged records storing obj as eid's managed-instance component for
// class.
func (b *EntityCommandBuffer) SetManaged(eid EntityID, class ComponentClass, obj any) {
	b.record(setManagedCommand{eid: eid, class: class, obj: obj})
}

// SetSharedManaged records re-keying eid's chunk group by the
// shared-managed value for class.
func (b *EntityCommandBuffer) SetSharedManaged(eid EntityID, class ComponentClass, value any) {
	b.record(setSharedManagedCommand{eid: eid, class: class, value: value})
}

// SetSharedUnmanaged records re-keying eid's chunk group by the
// shared-unmanaged value for class.
func (b *EntityCommandBuffer) SetSharedUnmanaged(eid EntityID, class ComponentClass, value uint64) {
	b.record(setSharedUnmanagedCommand{eid: eid, class: class, value: value})
}

// Destroy records destruction of eid.
func (b *EntityCommandBuffer) Destroy(eid EntityID) {
	b.record(destroyCommand{eid: eid})
}

// AsParallelWriter returns a recorder safe to use from inside one
// parallel query worker. Each writer owns a private command shard, so
// recording from concurrent workers never contends; obtain one writer
// per goroutine. Shards are drained by the parent buffer's Playback.
func (b *EntityCommandBuffer) AsParallelWriter() *ParallelCommandWriter {
	w := &ParallelCommandWriter{}
	b.mu.Lock()
	b.writers = append(b.writers, w)
	b.mu.Unlock()
	return w
}

// Playback applies every recorded command against w in order and clears
// the buffer. Returns LockedStorageError if a query over w is still
// iterating; the caller is responsible for ordering playback after
// iteration.
func (b *EntityCommandBuffer) Playback(w *World) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if w.Locked() {
		return LockedStorageError{}
	}
	return b.playbackLocked(w)
}

// playbackLocked drains the buffer without checking the world's lock
// state. Called directly by the world when the last query unlocks.
func (b *EntityCommandBuffer) playbackLocked(w *World) error {
	b.mu.Lock()
	commands := b.commands
	writers := b.writers
	b.commands = nil
	b.writers = nil
	b.mu.Unlock()

	for _, cmd := range commands {
		if err := cmd.apply(w); err != nil {
			return err
		}
	}
	for _, wr := range writers {
		for _, cmd := range wr.commands {
			if err := cmd.apply(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the number of commands currently recorded, including
// writer shards.
func (b *EntityCommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.commands)
	for _, wr := range b.writers {
		n += len(wr.commands)
	}
	return n
}

// ParallelCommandWriter is a single-goroutine command recorder backed by
// a private shard of its parent EntityCommandBuffer.
type ParallelCommandWriter struct {
	commands []entityCommand
}

var _ EntityCommandRecorder = &ParallelCommandWriter{}

func (w *ParallelCommandWriter) record(cmd entityCommand) {
	w.commands = append(w.commands, cmd)
}

// Create records creation of one entity carrying classes.
func (w *ParallelCommandWriter) Create(classes ...ComponentClass) {
	w.record(createCommand{classes: classes})
}

// CreateWith records creation of one entity carrying classes with an
// init callback.
func (w *ParallelCommandWriter) CreateWith(init func(*World, EntityID), classes ...ComponentClass) {
	w.record(createCommand{classes: classes, init: init})
}

// AddComponents records adding classes to eid.
func (w *ParallelCommandWriter) AddComponents(eid EntityID, classes ...ComponentClass) {
	w.record(mutateCommand{eid: eid, adds: classes})
}

// RemoveComponents records removing classes from eid.
func (w *ParallelCommandWriter) RemoveComponents(eid EntityID, classes ...ComponentClass) {
	w.record(mutateCommand{eid: eid, removes: classes})
}

// MutateComponents records a combined add/remove transform on eid.
func (w *ParallelCommandWriter) MutateComponents(eid EntityID, adds, removes []ComponentClass) {
	w.record(mutateCommand{eid: eid, adds: adds, removes: removes})
}

// SetManaged records storing obj as eid's managed-instance component.
func (w *ParallelCommandWriter) SetManaged(eid EntityID, class ComponentClass, obj any) {
	w.record(setManagedCommand{eid: eid, class: class, obj: obj})
}

// SetSharedManaged records re-keying eid's group by a shared-managed value.
func (w *ParallelCommandWriter) SetSharedManaged(eid EntityID, class ComponentClass, value any) {
	w.record(setSharedManagedCommand{eid: eid, class: class, value: value})
}

// SetSharedUnmanaged records re-keying eid's group by a shared-unmanaged value.
func (w *ParallelCommandWriter) SetSharedUnmanaged(eid EntityID, class ComponentClass, value uint64) {
	w.record(setSharedUnmanagedCommand{eid: eid, class: class, value: value})
}

// Destroy records destruction of eid.
func (w *ParallelCommandWriter) Destroy(eid EntityID) {
	w.record(destroyCommand{eid: eid})
}

// createCommand creates one entity with the given components
type createCommand struct {
	classes []ComponentClass
	init    func(*World, EntityID)
}

func (c createCommand) apply(w *World) error {
	eid, err := w.CreateEntity(c.classes...)
	if err != nil {
		return err
	}
	if c.init != nil {
		c.init(w, eid)
	}
	return nil
}

// destroyCommand removes an entity from the world
type destroyCommand struct {
	eid EntityID
}

func (c destroyCommand) apply(w *World) error {
	return w.DestroyEntity(c.eid)
}

// mutateCommand applies an add/remove component transform to an entity.
// An entity destroyed since recording is skipped.
type mutateCommand struct {
	eid     EntityID
	adds    []ComponentClass
	removes []ComponentClass
}

func (c mutateCommand) apply(w *World) error {
	if !w.Entity(c.eid) {
		return nil
	}
	adds := classMask(c.adds)
	removes := classMask(c.removes)
	return w.MutateComponents([]EntityID{c.eid}, adds, removes)
}

// setManagedCommand stores a managed-instance object on an entity
type setManagedCommand struct {
	eid   EntityID
	class ComponentClass
	obj   any
}

func (c setManagedCommand) apply(w *World) error {
	if !w.Entity(c.eid) {
		return nil
	}
	return w.SetManagedComponent(c.eid, c.class, c.obj)
}

// setSharedManagedCommand re-keys an entity's group by a shared-managed value
type setSharedManagedCommand struct {
	eid   EntityID
	class ComponentClass
	value any
}

func (c setSharedManagedCommand) apply(w *World) error {
	if !w.Entity(c.eid) {
		return nil
	}
	return w.SetManagedSharedComponent(c.eid, c.class, c.value)
}

// setSharedUnmanagedCommand re-keys an entity's group by a shared-unmanaged value
type setSharedUnmanagedCommand struct {
	eid   EntityID
	class ComponentClass
	value uint64
}

func (c setSharedUnmanagedCommand) apply(w *World) error {
	if !w.Entity(c.eid) {
		return nil
	}
	return w.SetUnmanagedSharedComponent(c.eid, c.class, c.value)
}
