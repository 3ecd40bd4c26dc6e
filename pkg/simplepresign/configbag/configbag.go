// Package configbag provides the layered, type-indexed configuration store that is
// threaded through every stage of a request pipeline.
//
// Values are written into a Layer. A Layer can be frozen into an immutable
// FrozenLayer and pushed onto a Bag. Reads against a Bag return the most recently
// layered value for a key: the mutable interceptor state first, then frozen layers
// from the last added to the first.
//
// Typed entries are keyed by their Go type:
//
//	layer := configbag.NewLayer("signing")
//	configbag.Store(layer, MySettings{Verbose: true})
//
//	bag := configbag.New("operation")
//	bag.AddLayer(layer.Freeze())
//	settings, ok := configbag.Load[MySettings](bag)
package configbag

import (
	"reflect"

	smithy "github.com/aws/smithy-go"
)

// Layer is a named, mutable set of configuration entries
type Layer struct {
	name  string
	props smithy.Properties
	keys  []any
}

// NewLayer creates an empty layer with the given name
func NewLayer(name string) *Layer {
	return &Layer{name: name}
}

// Name returns the layer name
func (l *Layer) Name() string {
	return l.name
}

// Put stores value under key, overwriting any previous value for the same key
func (l *Layer) Put(key, value any) {
	if !l.props.Has(key) {
		l.keys = append(l.keys, key)
	}
	l.props.Set(key, value)
}

// Get returns the value stored under key
func (l *Layer) Get(key any) (any, bool) {
	if !l.props.Has(key) {
		return nil, false
	}
	return l.props.Get(key), true
}

// Has reports whether key is present in the layer
func (l *Layer) Has(key any) bool {
	return l.props.Has(key)
}

// Len returns the number of entries in the layer
func (l *Layer) Len() int {
	return len(l.keys)
}

// Freeze returns an immutable snapshot of the layer. Writes made to the layer
// after Freeze are not visible through the snapshot.
func (l *Layer) Freeze() *FrozenLayer {
	f := &FrozenLayer{name: l.name, keys: make([]any, len(l.keys))}
	copy(f.keys, l.keys)
	for _, k := range l.keys {
		f.props.Set(k, l.props.Get(k))
	}
	return f
}

// FrozenLayer is an immutable set of configuration entries
type FrozenLayer struct {
	name  string
	props smithy.Properties
	keys  []any
}

// Name returns the name of the layer the snapshot was taken from
func (f *FrozenLayer) Name() string {
	return f.name
}

// Get returns the value stored under key
func (f *FrozenLayer) Get(key any) (any, bool) {
	if !f.props.Has(key) {
		return nil, false
	}
	return f.props.Get(key), true
}

// Has reports whether key is present
func (f *FrozenLayer) Has(key any) bool {
	return f.props.Has(key)
}

// Len returns the number of entries
func (f *FrozenLayer) Len() int {
	return len(f.keys)
}

// Keys returns the keys in insertion order
func (f *FrozenLayer) Keys() []any {
	keys := make([]any, len(f.keys))
	copy(keys, f.keys)
	return keys
}

// Bag is a stack of frozen layers with a mutable layer on top. A Bag belongs to a
// single request; it must not be shared between concurrent requests.
type Bag struct {
	name   string
	layers []*FrozenLayer
	state  *Layer
}

// New creates an empty bag
func New(name string) *Bag {
	return &Bag{
		name:  name,
		state: NewLayer(name + ":interceptor_state"),
	}
}

// Name returns the bag name
func (b *Bag) Name() string {
	return b.name
}

// AddLayer pushes a frozen layer onto the stack. Values in later layers shadow
// values in earlier ones. A nil layer is ignored.
func (b *Bag) AddLayer(layer *FrozenLayer) {
	if layer == nil {
		return
	}
	b.layers = append(b.layers, layer)
}

// InterceptorState returns the mutable top layer used for per-request writes
func (b *Bag) InterceptorState() *Layer {
	return b.state
}

// Get returns the most recently layered value for key
func (b *Bag) Get(key any) (any, bool) {
	if v, ok := b.state.Get(key); ok {
		return v, true
	}
	for i := len(b.layers) - 1; i >= 0; i-- {
		if v, ok := b.layers[i].Get(key); ok {
			return v, true
		}
	}
	return nil, false
}

// Snapshot merges the whole stack into a single frozen layer, latest write wins
func (b *Bag) Snapshot() *FrozenLayer {
	merged := NewLayer(b.name)
	for _, layer := range b.layers {
		for _, k := range layer.keys {
			merged.Put(k, layer.props.Get(k))
		}
	}
	for _, k := range b.state.keys {
		merged.Put(k, b.state.props.Get(k))
	}
	return merged.Freeze()
}

// TypeKey returns the key under which values of type T are stored
func TypeKey[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Store writes value into layer under the key for its type T
func Store[T any](layer *Layer, value T) {
	layer.Put(TypeKey[T](), value)
}

// Load returns the most recently layered value of type T. Values are returned by
// copy, so callers can modify the result and Store it back without affecting
// earlier layers.
func Load[T any](b *Bag) (T, bool) {
	var zero T
	v, ok := b.Get(TypeKey[T]())
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
