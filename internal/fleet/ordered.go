package fleet

// ordered is a map that remembers insertion order.
type ordered[V any] struct {
	keys []int
	vals map[int]V
}

func newOrdered[V any]() *ordered[V] {
	return &ordered[V]{vals: make(map[int]V)}
}

func (o *ordered[V]) get(k int) (V, bool) {
	v, ok := o.vals[k]
	return v, ok
}

// set overwrites in place when k exists, otherwise appends.
func (o *ordered[V]) set(k int, v V) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

func (o *ordered[V]) remove(k int) bool {
	if _, ok := o.vals[k]; !ok {
		return false
	}
	delete(o.vals, k)
	for i, key := range o.keys {
		if key == k {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

func (o *ordered[V]) first() (int, bool) {
	if len(o.keys) == 0 {
		return 0, false
	}
	return o.keys[0], true
}

func (o *ordered[V]) len() int {
	return len(o.keys)
}

func (o *ordered[V]) values() []V {
	out := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.vals[k])
	}
	return out
}

// replace drops all entries and inserts items in order. Later duplicates
// overwrite earlier ones but keep the first position.
func (o *ordered[V]) replace(items []V, key func(V) int) {
	o.keys = o.keys[:0]
	o.vals = make(map[int]V, len(items))
	for _, it := range items {
		o.set(key(it), it)
	}
}
