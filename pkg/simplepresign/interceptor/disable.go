package interceptor

import (
	"reflect"

	"github.com/tendant/simple-presign/pkg/simplepresign/configbag"
)

// Disabled marks every interceptor of one concrete type as switched off
type Disabled struct {
	target reflect.Type
	Reason string
}

// Target returns the interceptor type the marker applies to
func (d Disabled) Target() reflect.Type {
	return d.target
}

type disabledKey struct {
	target reflect.Type
}

// Disable returns a marker for interceptors of type T
func Disable[T Interceptor](reason string) Disabled {
	return Disabled{target: reflect.TypeFor[T](), Reason: reason}
}

// StoreDisabled writes the marker into layer, keyed by its target type
func StoreDisabled(layer *configbag.Layer, d Disabled) {
	layer.Put(disabledKey{target: d.target}, d)
}

// DisabledReason reports whether i has been disabled in cfg and why
func DisabledReason(cfg *configbag.Bag, i Interceptor) (string, bool) {
	v, ok := cfg.Get(disabledKey{target: reflect.TypeOf(i)})
	if !ok {
		return "", false
	}
	d, ok := v.(Disabled)
	if !ok {
		return "", false
	}
	return d.Reason, true
}

// DisabledIn returns the markers present in a frozen layer
func DisabledIn(layer *configbag.FrozenLayer) []Disabled {
	var out []Disabled
	for _, k := range layer.Keys() {
		if _, ok := k.(disabledKey); !ok {
			continue
		}
		v, _ := layer.Get(k)
		if d, ok := v.(Disabled); ok {
			out = append(out, d)
		}
	}
	return out
}
