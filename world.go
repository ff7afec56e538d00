package cellar

import (
	"sync"
	"sync/atomic"

	"github.com/TheBitDrifter/bark"
)

// World is the top-level entry point for entity operations. It owns the
// component registry, the managed/shared value stores, every archetype,
// and the entity-id-to-location record map. Each World carries its own
// registry and stores, so multiple worlds in one process are fully
// independent.
//
// Structural operations (create, destroy, add/remove component, set
// shared) fail with LockedStorageError while a query is iterating. The
// Enqueue methods defer them to the moment the last active query releases
// its lock; an EntityCommandBuffer records them for an explicit Playback
// once iteration is done.
type World struct {
	config   Config
	registry *Registry
	managed  *ManagedObjectStore
	shared   *SharedValueStore
	dispatch *dispatcher

	archMu     sync.RWMutex
	archByMask map[Mask]*Archetype
	archList   []*Archetype

	entMu        sync.RWMutex
	entities     map[EntityID]entityRecord
	nextEntityID atomic.Uint64

	lockCount atomic.Int32
	pending   *EntityCommandBuffer

	closed atomic.Bool
}

// NewWorld constructs a World from cfg, running every hook registered via
// RegisterAutoRegisterHook if cfg.AutoRegisterGenerated is set.
func NewWorld(cfg Config) *World {
	cfg = cfg.normalized()
	w := &World{
		config:     cfg,
		registry:   NewRegistry(),
		managed:    NewManagedObjectStore(),
		shared:     NewSharedValueStore(),
		archByMask: make(map[Mask]*Archetype),
		entities:   make(map[EntityID]entityRecord),
		pending:    NewEntityCommandBuffer(),
	}
	w.dispatch = newDispatcher(cfg.WorkerPoolSize)
	if cfg.AutoRegisterGenerated {
		for _, hook := range autoRegisterHooks {
			hook(w)
		}
	}
	return w
}

// Close releases the World's worker pool and marks it closed; every
// handle, byte slice, and entity record derived from it becomes invalid.
// Calling Close twice returns InvalidStateAfterCloseError.
func (w *World) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return InvalidStateAfterCloseError{}
	}
	w.dispatch.close()
	return nil
}

func (w *World) checkOpen() error {
	if w.closed.Load() {
		return InvalidStateAfterCloseError{}
	}
	return nil
}

// checkMutable guards every structural operation: the world must be open
// and not locked by an active query.
func (w *World) checkMutable() error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if w.Locked() {
		return LockedStorageError{}
	}
	return nil
}

// Register interns descriptor under key, returning its TypeID. Exposed
// for callers that build a ComponentDescriptor directly instead of
// through MustRegister/RegisterManaged/RegisterUnmanagedShared/
// RegisterManagedShared.
func (w *World) Register(key string, descriptor ComponentDescriptor) (TypeID, error) {
	return w.registry.Register(key, descriptor)
}

// Registry returns the world's component registry.
func (w *World) Registry() *Registry { return w.registry }

// ManagedStore returns the world's managed object store.
func (w *World) ManagedStore() *ManagedObjectStore { return w.managed }

// SharedStore returns the world's shared value store.
func (w *World) SharedStore() *SharedValueStore { return w.shared }

// Locked reports whether a query currently holds the World's structural
// lock.
func (w *World) Locked() bool {
	return w.lockCount.Load() > 0
}

func (w *World) lock() {
	w.lockCount.Add(1)
}

// unlock releases one query hold; the last release drains commands
// enqueued while the world was locked. A command that fails during this
// drain has no originating call to surface its error through, so it
// panics with an annotated trace.
func (w *World) unlock() {
	if w.lockCount.Add(-1) == 0 {
		if err := w.pending.playbackLocked(w); err != nil {
			panic(bark.AddTrace(err))
		}
	}
}

func (w *World) getOrCreateArchetype(mask Mask) (*Archetype, error) {
	w.archMu.RLock()
	a, ok := w.archByMask[mask]
	w.archMu.RUnlock()
	if ok {
		return a, nil
	}

	w.archMu.Lock()
	defer w.archMu.Unlock()
	if a, ok := w.archByMask[mask]; ok {
		return a, nil
	}
	a, err := newArchetype(w.registry, mask, w.config)
	if err != nil {
		return nil, err
	}
	w.archByMask[mask] = a
	w.archList = append(w.archList, a)
	return a, nil
}

// Archetypes returns a snapshot of every archetype created so far, in
// creation order (the order sequential query iteration visits them).
func (w *World) Archetypes() []*Archetype {
	w.archMu.RLock()
	defer w.archMu.RUnlock()
	return append([]*Archetype(nil), w.archList...)
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	return len(w.entities)
}

// CreateEntity creates a single entity carrying classes and returns its
// id.
func (w *World) CreateEntity(classes ...ComponentClass) (EntityID, error) {
	ids, err := w.CreateEntities(1, classes...)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// CreateEntities creates n entities, all carrying classes. New entities
// always start in the archetype's default (all-unset) shared-key group
// and move only on an explicit SetManagedSharedComponent or
// SetUnmanagedSharedComponent call.
func (w *World) CreateEntities(n int, classes ...ComponentClass) ([]EntityID, error) {
	if err := w.checkMutable(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	mask := classMask(classes)
	arch, err := w.getOrCreateArchetype(mask)
	if err != nil {
		return nil, err
	}
	group := arch.GetOrCreateGroup(arch.zeroKey())

	ids := make([]EntityID, n)
	w.entMu.Lock()
	defer w.entMu.Unlock()
	for i := 0; i < n; i++ {
		eid := EntityID(w.nextEntityID.Add(1))
		loc := group.AddEntity(eid)
		w.entities[eid] = entityRecord{
			loc: entityLocation{archetype: arch, group: group, chunk: loc.chunkIndex, slot: loc.slot},
		}
		ids[i] = eid
	}
	return ids, nil
}

// DestroyEntity releases eid's slot and every managed-instance ticket it
// held. Destroying an id with no live record is a silent no-op, matching
// the double-free tolerance of chunk slots and store tickets.
func (w *World) DestroyEntity(eid EntityID) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	w.entMu.Lock()
	rec, ok := w.entities[eid]
	if !ok {
		w.entMu.Unlock()
		return nil
	}
	delete(w.entities, eid)
	w.entMu.Unlock()

	w.releaseManagedTickets(rec)
	rec.loc.group.RemoveEntity(slotLocation{chunkIndex: rec.loc.chunk, slot: rec.loc.slot})
	if rec.onDestroy != nil {
		rec.onDestroy(eid)
	}
	return nil
}

func (w *World) releaseManagedTickets(rec entityRecord) {
	arch := rec.loc.archetype
	chunk := rec.loc.group.ChunkAt(rec.loc.chunk)
	for _, id := range arch.managedIDs {
		col := arch.ManagedColumnIndex(id)
		if ticket := chunk.ManagedTicket(col, rec.loc.slot); ticket != -1 {
			w.managed.Release(int(ticket))
		}
	}
	for _, id := range arch.managedSharedIDs {
		idx, _, _ := arch.SharedIndex(id)
		if ticket := rec.loc.group.Key().ManagedTickets[idx]; ticket != -1 {
			w.shared.Release(int(ticket))
		}
	}
}

// Entity reports whether eid currently has a live record.
func (w *World) Entity(eid EntityID) bool {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	_, ok := w.entities[eid]
	return ok
}

// HasComponent reports whether eid's current archetype carries class.
func (w *World) HasComponent(eid EntityID, class ComponentClass) (bool, error) {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	rec, ok := w.entities[eid]
	if !ok {
		return false, EntityNotFoundError{EntityID: eid}
	}
	return rec.loc.archetype.Mask().Contains(class.TypeID()), nil
}

// GetComponentBytes returns a view into the chunk column holding class's
// data for eid. The caller must not retain the slice across a structural
// mutation of the world.
func (w *World) GetComponentBytes(eid EntityID, class ComponentClass) ([]byte, error) {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	rec, ok := w.entities[eid]
	if !ok {
		return nil, EntityNotFoundError{EntityID: eid}
	}
	col := rec.loc.archetype.ColumnIndex(class.TypeID())
	if col < 0 {
		return nil, ComponentNotFoundError{TypeID: class.TypeID()}
	}
	chunk := rec.loc.group.ChunkAt(rec.loc.chunk)
	return chunk.GetColumnSlice(col, rec.loc.slot), nil
}

// reshapeKey maps oldKey's shared slots (keyed by type id) onto newArch's
// shared-slot layout, leaving slots newArch doesn't share with oldArch at
// their zero value. Used whenever a structural change alters an
// archetype's component set without itself re-keying any shared value.
func reshapeKey(oldArch, newArch *Archetype, oldKey SharedKey) SharedKey {
	newKey := newArch.zeroKey()
	for _, id := range oldArch.managedSharedIDs {
		oldIdx, _, _ := oldArch.SharedIndex(id)
		if newIdx, managed, ok := newArch.SharedIndex(id); ok && managed {
			newKey.ManagedTickets[newIdx] = oldKey.ManagedTickets[oldIdx]
		}
	}
	for _, id := range oldArch.unmanagedSharedIDs {
		oldIdx, _, _ := oldArch.SharedIndex(id)
		if newIdx, managed, ok := newArch.SharedIndex(id); ok && !managed {
			newKey.UnmanagedValues[newIdx] = oldKey.UnmanagedValues[oldIdx]
		}
	}
	return newKey
}

// copyColumns moves one entity's data between slots: unmanaged-instance
// column bytes are copied for types present in both archetypes,
// managed-instance tickets present in both are carried over without a
// ref-count change, and tickets present only in the source are released.
// Types present only in the destination keep their freshly zeroed bytes
// and -1 tickets.
func (w *World) copyColumns(oldArch *Archetype, oldChunk *Chunk, oldSlot int, newArch *Archetype, newChunk *Chunk, newSlot int) {
	for _, id := range newArch.unmanagedIDs {
		if srcCol := oldArch.ColumnIndex(id); srcCol >= 0 {
			dstCol := newArch.ColumnIndex(id)
			newChunk.SetColumnSlice(dstCol, newSlot, oldChunk.GetColumnSlice(srcCol, oldSlot))
		}
	}
	for _, id := range oldArch.managedIDs {
		oldCol := oldArch.ManagedColumnIndex(id)
		ticket := oldChunk.ManagedTicket(oldCol, oldSlot)
		if dstCol := newArch.ManagedColumnIndex(id); dstCol >= 0 {
			newChunk.SetManagedTicket(dstCol, newSlot, ticket)
		} else if ticket != -1 {
			w.managed.Release(int(ticket))
		}
	}
}

// releaseDroppedManagedShared releases the shared-value ref this entity
// held for any managed-shared component type present in oldArch but not
// newArch (a RemoveComponent on a managed-shared class).
func (w *World) releaseDroppedManagedShared(oldArch, newArch *Archetype, oldKey SharedKey) {
	for _, id := range oldArch.managedSharedIDs {
		if _, _, ok := newArch.SharedIndex(id); ok {
			continue
		}
		oldIdx, _, _ := oldArch.SharedIndex(id)
		if ticket := oldKey.ManagedTickets[oldIdx]; ticket != -1 {
			w.shared.Release(int(ticket))
		}
	}
}

// migrateLocked moves eid into the archetype for newMask: allocate a
// destination slot, copy shared columns/tickets, release what the
// destination no longer carries, free the source slot, and republish the
// record in one map update. The destination shared key is produced by
// keyFn(oldArch, newArch, oldKey). Caller must hold entMu.
func (w *World) migrateLocked(eid EntityID, newMask Mask, keyFn func(oldArch, newArch *Archetype, oldKey SharedKey) SharedKey) error {
	rec, ok := w.entities[eid]
	if !ok {
		return EntityNotFoundError{EntityID: eid}
	}

	oldArch := rec.loc.archetype
	oldGroup := rec.loc.group
	oldChunk := oldGroup.ChunkAt(rec.loc.chunk)
	oldSlot := rec.loc.slot
	oldKey := oldGroup.Key()

	newArch, err := w.getOrCreateArchetype(newMask)
	if err != nil {
		return err
	}
	newKey := keyFn(oldArch, newArch, oldKey)
	newGroup := newArch.GetOrCreateGroup(newKey)

	loc := newGroup.AddEntity(eid)
	newChunk := newGroup.ChunkAt(loc.chunkIndex)

	w.copyColumns(oldArch, oldChunk, oldSlot, newArch, newChunk, loc.slot)
	w.releaseDroppedManagedShared(oldArch, newArch, oldKey)

	oldGroup.RemoveEntity(slotLocation{chunkIndex: rec.loc.chunk, slot: oldSlot})

	rec.loc = entityLocation{archetype: newArch, group: newGroup, chunk: loc.chunkIndex, slot: loc.slot}
	w.entities[eid] = rec
	return nil
}

// addComponentRaw migrates eid into the archetype that additionally
// carries class, then runs apply over the destination column bytes when
// supplied. Adding a component the entity already carries is a no-op.
func (w *World) addComponentRaw(eid EntityID, class ComponentClass, apply func([]byte)) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	w.entMu.Lock()
	defer w.entMu.Unlock()

	rec, ok := w.entities[eid]
	if !ok {
		return EntityNotFoundError{EntityID: eid}
	}
	if rec.loc.archetype.Mask().Contains(class.TypeID()) {
		return nil
	}
	newMask := rec.loc.archetype.Mask().With(class.TypeID())
	if err := w.migrateLocked(eid, newMask, reshapeKey); err != nil {
		return err
	}
	if apply == nil {
		return nil
	}
	rec = w.entities[eid]
	col := rec.loc.archetype.ColumnIndex(class.TypeID())
	if col < 0 {
		return nil
	}
	chunk := rec.loc.group.ChunkAt(rec.loc.chunk)
	apply(chunk.GetColumnSlice(col, rec.loc.slot))
	return nil
}

// AddComponent adds class to eid with zeroed bytes (or a -1 ticket / an
// unset shared slot, depending on the component kind). Adding a
// component the entity already carries is a no-op.
func (w *World) AddComponent(eid EntityID, class ComponentClass) error {
	return w.addComponentRaw(eid, class, nil)
}

// AddComponentStrict is AddComponent, except adding a component the
// entity already carries returns ComponentExistsError.
func (w *World) AddComponentStrict(eid EntityID, class ComponentClass) error {
	has, err := w.HasComponent(eid, class)
	if err != nil {
		return err
	}
	if has {
		return ComponentExistsError{TypeID: class.TypeID()}
	}
	return w.addComponentRaw(eid, class, nil)
}

// AddComponentBytes adds class to eid and copies src over the freshly
// zeroed destination column (bounded by the column's element size).
func (w *World) AddComponentBytes(eid EntityID, class ComponentClass, src []byte) error {
	return w.addComponentRaw(eid, class, func(dst []byte) {
		copy(dst, src)
	})
}

// AddComponentInit adds class to eid and runs init against a handle
// bound to the destination column, letting the caller set fields by
// index before the entity is observable under the new archetype's
// queries.
func (w *World) AddComponentInit(eid EntityID, class ComponentClass, init func(*ComponentHandle)) error {
	desc, ok := w.registry.GetDescriptor(class.TypeID())
	if !ok {
		return ComponentNotRegisteredError{Key: class.TypeID()}
	}
	return w.addComponentRaw(eid, class, func(b []byte) {
		h := acquireHandle()
		h.Bind(b, desc)
		init(h)
		releaseHandle(h)
	})
}

// RemoveComponent migrates eid out of class's archetype. Removing a
// component the entity does not carry is a no-op.
func (w *World) RemoveComponent(eid EntityID, class ComponentClass) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	w.entMu.Lock()
	defer w.entMu.Unlock()

	rec, ok := w.entities[eid]
	if !ok {
		return EntityNotFoundError{EntityID: eid}
	}
	if !rec.loc.archetype.Mask().Contains(class.TypeID()) {
		return nil
	}
	newMask := rec.loc.archetype.Mask().Without(class.TypeID())
	return w.migrateLocked(eid, newMask, reshapeKey)
}

// MutateComponents applies a combined add/remove mask transform to every
// entity in batch. Entities are grouped by source archetype so the
// destination mask is computed once per group. Referencing the same
// entity id twice in one batch is InvalidBatchError.
func (w *World) MutateComponents(batch []EntityID, adds, removes Mask) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	seen := make(map[EntityID]struct{}, len(batch))
	for _, eid := range batch {
		if _, dup := seen[eid]; dup {
			return InvalidBatchError{EntityID: eid}
		}
		seen[eid] = struct{}{}
	}

	w.entMu.Lock()
	defer w.entMu.Unlock()

	newMasks := make(map[*Archetype]Mask)
	for _, eid := range batch {
		rec, ok := w.entities[eid]
		if !ok {
			return EntityNotFoundError{EntityID: eid}
		}
		src := rec.loc.archetype
		newMask, memoized := newMasks[src]
		if !memoized {
			newMask = maskDifference(maskUnion(src.Mask(), adds), removes)
			newMasks[src] = newMask
		}
		if newMask == src.Mask() {
			continue
		}
		if err := w.migrateLocked(eid, newMask, reshapeKey); err != nil {
			return err
		}
	}
	return nil
}

func maskUnion(a, b Mask) Mask {
	var m Mask
	for i := range m {
		m[i] = a[i] | b[i]
	}
	return m
}

func maskDifference(a, b Mask) Mask {
	var m Mask
	for i := range m {
		m[i] = a[i] &^ b[i]
	}
	return m
}

// SetManagedComponent stores obj as eid's managed-instance component for
// class, adding the component first if the entity does not carry it. A
// previously stored ticket is released.
func (w *World) SetManagedComponent(eid EntityID, class ComponentClass, obj any) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	w.entMu.Lock()
	defer w.entMu.Unlock()

	rec, ok := w.entities[eid]
	if !ok {
		return EntityNotFoundError{EntityID: eid}
	}
	if !rec.loc.archetype.Mask().Contains(class.TypeID()) {
		newMask := rec.loc.archetype.Mask().With(class.TypeID())
		if err := w.migrateLocked(eid, newMask, reshapeKey); err != nil {
			return err
		}
		rec = w.entities[eid]
	}
	col := rec.loc.archetype.ManagedColumnIndex(class.TypeID())
	if col < 0 {
		return ComponentNotFoundError{TypeID: class.TypeID()}
	}
	chunk := rec.loc.group.ChunkAt(rec.loc.chunk)
	if old := chunk.ManagedTicket(col, rec.loc.slot); old != -1 {
		w.managed.Release(int(old))
	}
	chunk.SetManagedTicket(col, rec.loc.slot, int32(w.managed.Store(obj)))
	return nil
}

// GetManagedComponent returns the managed-instance object stored for
// class on eid, or ComponentNotFoundError if the entity does not carry
// the component or no object has been stored yet.
func (w *World) GetManagedComponent(eid EntityID, class ComponentClass) (any, error) {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	rec, ok := w.entities[eid]
	if !ok {
		return nil, EntityNotFoundError{EntityID: eid}
	}
	col := rec.loc.archetype.ManagedColumnIndex(class.TypeID())
	if col < 0 {
		return nil, ComponentNotFoundError{TypeID: class.TypeID()}
	}
	chunk := rec.loc.group.ChunkAt(rec.loc.chunk)
	ticket := chunk.ManagedTicket(col, rec.loc.slot)
	if ticket == -1 {
		return nil, ComponentNotFoundError{TypeID: class.TypeID()}
	}
	obj, live := w.managed.Get(int(ticket))
	if !live {
		return nil, ComponentNotFoundError{TypeID: class.TypeID()}
	}
	return obj, nil
}

// SetManagedSharedComponent deduplicates value via the shared value
// store and migrates eid into the chunk group keyed by its index.
// Setting the value the entity's group is already keyed by is a no-op.
func (w *World) SetManagedSharedComponent(eid EntityID, class ComponentClass, value any) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	w.entMu.Lock()
	defer w.entMu.Unlock()

	rec, ok := w.entities[eid]
	if !ok {
		return EntityNotFoundError{EntityID: eid}
	}
	arch := rec.loc.archetype
	idx, managed, ok2 := arch.SharedIndex(class.TypeID())
	if !ok2 || !managed {
		return ComponentNotFoundError{TypeID: class.TypeID()}
	}

	newTicket := int32(w.shared.Acquire(value))
	oldKey := rec.loc.group.Key()
	if oldKey.ManagedTickets[idx] == newTicket {
		w.shared.Release(int(newTicket))
		return nil
	}

	newKey := cloneSharedKey(oldKey)
	newKey.ManagedTickets[idx] = newTicket

	if err := w.migrateWithinArchetypeLocked(eid, arch, newKey); err != nil {
		w.shared.Release(int(newTicket))
		return err
	}
	if oldKey.ManagedTickets[idx] != -1 {
		w.shared.Release(int(oldKey.ManagedTickets[idx]))
	}
	return nil
}

// SetUnmanagedSharedComponent sets an unmanaged-shared component's
// 64-bit value directly, migrating eid into the chunk group keyed by the
// updated value. Setting the current value again is a no-op.
func (w *World) SetUnmanagedSharedComponent(eid EntityID, class ComponentClass, value uint64) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	w.entMu.Lock()
	defer w.entMu.Unlock()

	rec, ok := w.entities[eid]
	if !ok {
		return EntityNotFoundError{EntityID: eid}
	}
	arch := rec.loc.archetype
	idx, managed, ok2 := arch.SharedIndex(class.TypeID())
	if !ok2 || managed {
		return ComponentNotFoundError{TypeID: class.TypeID()}
	}

	oldKey := rec.loc.group.Key()
	if oldKey.UnmanagedValues[idx] == value {
		return nil
	}
	newKey := cloneSharedKey(oldKey)
	newKey.UnmanagedValues[idx] = value
	return w.migrateWithinArchetypeLocked(eid, arch, newKey)
}

// GetUnmanagedShared returns the shared-unmanaged value eid's chunk
// group is keyed by for class.
func (w *World) GetUnmanagedShared(eid EntityID, class ComponentClass) (uint64, error) {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	rec, ok := w.entities[eid]
	if !ok {
		return 0, EntityNotFoundError{EntityID: eid}
	}
	idx, managed, ok2 := rec.loc.archetype.SharedIndex(class.TypeID())
	if !ok2 || managed {
		return 0, ComponentNotFoundError{TypeID: class.TypeID()}
	}
	return rec.loc.group.Key().UnmanagedValues[idx], nil
}

// GetManagedShared returns the shared-managed value eid's chunk group is
// keyed by for class, or ComponentNotFoundError if no value has been
// set.
func (w *World) GetManagedShared(eid EntityID, class ComponentClass) (any, error) {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	rec, ok := w.entities[eid]
	if !ok {
		return nil, EntityNotFoundError{EntityID: eid}
	}
	idx, managed, ok2 := rec.loc.archetype.SharedIndex(class.TypeID())
	if !ok2 || !managed {
		return nil, ComponentNotFoundError{TypeID: class.TypeID()}
	}
	ticket := rec.loc.group.Key().ManagedTickets[idx]
	if ticket == -1 {
		return nil, ComponentNotFoundError{TypeID: class.TypeID()}
	}
	value, live := w.shared.Value(int(ticket))
	if !live {
		return nil, ComponentNotFoundError{TypeID: class.TypeID()}
	}
	return value, nil
}

func cloneSharedKey(k SharedKey) SharedKey {
	out := SharedKey{}
	if k.ManagedTickets != nil {
		out.ManagedTickets = append([]int32(nil), k.ManagedTickets...)
	}
	if k.UnmanagedValues != nil {
		out.UnmanagedValues = append([]uint64(nil), k.UnmanagedValues...)
	}
	return out
}

// migrateWithinArchetypeLocked moves eid between two groups of the same
// archetype: column bytes and managed tickets are copied 1-to-1, no
// archetype change.
func (w *World) migrateWithinArchetypeLocked(eid EntityID, arch *Archetype, newKey SharedKey) error {
	rec := w.entities[eid]
	oldGroup := rec.loc.group
	oldChunk := oldGroup.ChunkAt(rec.loc.chunk)
	oldSlot := rec.loc.slot

	newGroup := arch.GetOrCreateGroup(newKey)
	loc := newGroup.AddEntity(eid)
	newChunk := newGroup.ChunkAt(loc.chunkIndex)

	w.copyColumns(arch, oldChunk, oldSlot, arch, newChunk, loc.slot)
	oldGroup.RemoveEntity(slotLocation{chunkIndex: rec.loc.chunk, slot: oldSlot})

	rec.loc = entityLocation{archetype: arch, group: newGroup, chunk: loc.chunkIndex, slot: loc.slot}
	w.entities[eid] = rec
	return nil
}

// EnqueueCreateEntities records deferred creation of n entities carrying
// classes. The command runs when the last active query unlocks, or
// immediately if the world is not locked.
func (w *World) EnqueueCreateEntities(n int, classes ...ComponentClass) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		w.pending.Create(classes...)
	}
	return w.drainIfUnlocked()
}

// EnqueueDestroyEntity records deferred destruction of eid.
func (w *World) EnqueueDestroyEntity(eid EntityID) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	w.pending.Destroy(eid)
	return w.drainIfUnlocked()
}

// EnqueueAddComponents records deferred addition of classes to eid.
func (w *World) EnqueueAddComponents(eid EntityID, classes ...ComponentClass) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	w.pending.AddComponents(eid, classes...)
	return w.drainIfUnlocked()
}

// EnqueueRemoveComponents records deferred removal of classes from eid.
func (w *World) EnqueueRemoveComponents(eid EntityID, classes ...ComponentClass) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	w.pending.RemoveComponents(eid, classes...)
	return w.drainIfUnlocked()
}

func (w *World) drainIfUnlocked() error {
	if w.Locked() {
		return nil
	}
	return w.pending.playbackLocked(w)
}

// SetParent establishes a parent/child relationship between two entities
// and registers callback to run when parent is destroyed. An entity may
// have at most one parent.
func (w *World) SetParent(child, parent EntityID, callback EntityDestroyCallback) error {
	w.entMu.Lock()
	defer w.entMu.Unlock()
	childRec, ok := w.entities[child]
	if !ok {
		return EntityNotFoundError{EntityID: child}
	}
	if _, ok := w.entities[parent]; !ok {
		return EntityNotFoundError{EntityID: parent}
	}
	if childRec.hasParent {
		return EntityRelationError{Child: child, Parent: childRec.parent}
	}
	childRec.hasParent = true
	childRec.parent = parent
	w.entities[child] = childRec

	parentRec := w.entities[parent]
	parentRec.onDestroy = chainCallback(parentRec.onDestroy, callback)
	w.entities[parent] = parentRec
	return nil
}

func chainCallback(existing, add EntityDestroyCallback) EntityDestroyCallback {
	if existing == nil {
		return add
	}
	return func(eid EntityID) {
		existing(eid)
		add(eid)
	}
}

// SetDestroyCallback registers callback to run when eid is destroyed, in
// registration order after any callbacks already present.
func (w *World) SetDestroyCallback(eid EntityID, callback EntityDestroyCallback) error {
	w.entMu.Lock()
	defer w.entMu.Unlock()
	rec, ok := w.entities[eid]
	if !ok {
		return EntityNotFoundError{EntityID: eid}
	}
	rec.onDestroy = chainCallback(rec.onDestroy, callback)
	w.entities[eid] = rec
	return nil
}

// Parent returns child's parent id, or (0, false) if it has none or its
// parent has since been destroyed.
func (w *World) Parent(child EntityID) (EntityID, bool) {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	rec, ok := w.entities[child]
	if !ok || !rec.hasParent {
		return 0, false
	}
	if _, alive := w.entities[rec.parent]; !alive {
		return 0, false
	}
	return rec.parent, true
}

// Components returns the registered type ids of every component eid
// currently carries.
func (w *World) Components(eid EntityID) ([]TypeID, error) {
	w.entMu.RLock()
	defer w.entMu.RUnlock()
	rec, ok := w.entities[eid]
	if !ok {
		return nil, EntityNotFoundError{EntityID: eid}
	}
	return rec.loc.archetype.Mask().TypeIDs(), nil
}

// ComponentsAsString returns a sorted, bracketed listing of eid's
// registered component keys.
func (w *World) ComponentsAsString(eid EntityID) (string, error) {
	ids, err := w.Components(eid)
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, w.registry.KeyFor(id))
	}
	return componentsAsString(keys), nil
}
