package silo

import (
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"github.com/TheBitDrifter/bark"
)

// SoAComponent is the marker a component type implements to opt into
// struct-of-arrays storage. LaneArity must equal the number of
// identically-sized primitive fields the type decomposes into; the
// type itself must be trivially copyable (no pointers, no methods with
// pointer receivers that mutate shared state).
type SoAComponent interface {
	LaneArity() int
}

// ChunkComponent is the marker a component type implements to be stored
// once per chunk ("per-chunk"/singleton) instead of once per row.
type ChunkComponent interface {
	IsChunkSingleton()
}

// LifecycleHooks holds the optional function-pointer set a descriptor
// carries in place of virtual dispatch: construct/destruct/copy/move/
// swap for memory management, compare for ordering, and add/remove/set
// hooks the host may use to react to structural changes. Any subset may
// be nil.
type LifecycleHooks struct {
	Construct func(ptr unsafe.Pointer)
	Destruct  func(ptr unsafe.Pointer)
	Copy      func(dst, src unsafe.Pointer)
	Move      func(dst, src unsafe.Pointer)
	Swap      func(a, b unsafe.Pointer)
	Compare   func(a, b unsafe.Pointer) int

	OnAdd    func(w *World, e Entity)
	OnRemove func(w *World, e Entity)
	OnSet    func(w *World, e Entity)
}

// Descriptor is the immutable, globally shared per-type metadata the
// core dispatches through instead of generics at runtime: size,
// alignment, SoA arity, lookup hash, symbolic name, and the lifecycle
// function-pointer set.
type Descriptor struct {
	ID    ComponentID
	Name  string
	Hash  uint64
	goTyp reflect.Type

	Size  uintptr
	Align uintptr
	IsTag bool // zero-size marker component
	Kind  componentKind

	// SoAArity is 0 for AoS components; otherwise the number of
	// parallel sub-arrays the type decomposes into.
	SoAArity int
	// LaneBytes is the byte size of one element of one sub-array,
	// valid only when SoAArity > 0.
	LaneBytes uintptr
	// SoAFieldOffsets holds, for an SoA component, the byte offset of
	// field i within the original Go struct — used to gather/scatter
	// between a caller's T value and the chunk's parallel sub-arrays.
	SoAFieldOffsets []uintptr

	Hooks LifecycleHooks
}

type descriptorRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Descriptor
	byID   map[ComponentID]*Descriptor
	nextID ComponentID
}

var globalDescriptors = &descriptorRegistry{
	byType: make(map[reflect.Type]*Descriptor),
	byID:   make(map[ComponentID]*Descriptor),
}

// normalizeName strips the compiler-inserted "struct "/"class "
// prefixes reflect.Type.String() never actually emits in Go, but the
// stripping still runs so the symbolic name stays stable for types
// defined in generic instantiations (which do carry bracketed type
// arguments we leave alone) and matches the teacher's cross-compiler
// normalization contract.
func normalizeName(name string) string {
	name = strings.TrimPrefix(name, "struct ")
	name = strings.TrimPrefix(name, "class ")
	return name
}

// GetOrCreateDescriptor returns the process-wide descriptor for T,
// creating it on first request. The returned pointer is stable for the
// lifetime of the process.
func GetOrCreateDescriptor[T any]() (*Descriptor, error) {
	var zero T
	typ := reflect.TypeOf(zero)

	globalDescriptors.mu.RLock()
	if d, ok := globalDescriptors.byType[typ]; ok {
		globalDescriptors.mu.RUnlock()
		return d, nil
	}
	globalDescriptors.mu.RUnlock()

	globalDescriptors.mu.Lock()
	defer globalDescriptors.mu.Unlock()
	if d, ok := globalDescriptors.byType[typ]; ok {
		return d, nil
	}

	size := typ.Size()
	if size > Config.MaxComponentSize {
		return nil, ComponentTooLargeError{TypeName: typ.String(), Size: size, Max: Config.MaxComponentSize}
	}

	d := &Descriptor{
		ID:    globalDescriptors.nextID,
		Name:  normalizeName(typ.String()),
		goTyp: typ,
		Size:  size,
		Align: uintptr(typ.Align()),
		IsTag: size == 0,
	}

	if _, ok := any(zero).(ChunkComponent); ok {
		d.Kind = kindChunk
	}

	if soa, ok := any(zero).(SoAComponent); ok && !d.IsTag {
		arity := soa.LaneArity()
		if arity > 0 && typ.Kind() == reflect.Struct && typ.NumField() == arity {
			d.SoAArity = arity
			d.LaneBytes = size / uintptr(arity)
			d.SoAFieldOffsets = make([]uintptr, arity)
			for i := 0; i < arity; i++ {
				d.SoAFieldOffsets[i] = typ.Field(i).Offset
			}
		}
	}

	if !d.IsTag && d.SoAArity == 0 {
		d.Hooks.Construct = func(ptr unsafe.Pointer) { *(*T)(ptr) = zero }
		d.Hooks.Destruct = func(ptr unsafe.Pointer) { *(*T)(ptr) = zero }
		d.Hooks.Copy = func(dst, src unsafe.Pointer) { *(*T)(dst) = *(*T)(src) }
		d.Hooks.Move = func(dst, src unsafe.Pointer) {
			*(*T)(dst) = *(*T)(src)
			*(*T)(src) = zero
		}
		d.Hooks.Swap = func(a, b unsafe.Pointer) {
			ta, tb := (*T)(a), (*T)(b)
			*ta, *tb = *tb, *ta
		}
	}

	d.Hash = xxhashString(d.Name)

	globalDescriptors.nextID++
	globalDescriptors.byType[typ] = d
	globalDescriptors.byID[d.ID] = d
	return d, nil
}

// MustGetOrCreateDescriptor panics (with a trace) instead of returning
// an error. It is meant for call sites that already know the type
// registers cleanly, mirroring the teacher's panic-on-programmer-error
// convention.
func MustGetOrCreateDescriptor[T any]() *Descriptor {
	d, err := GetOrCreateDescriptor[T]()
	if err != nil {
		panic(bark.AddTrace(err))
	}
	return d
}

func descriptorByID(id ComponentID) *Descriptor {
	globalDescriptors.mu.RLock()
	defer globalDescriptors.mu.RUnlock()
	return globalDescriptors.byID[id]
}
