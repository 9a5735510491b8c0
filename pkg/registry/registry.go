// Package registry keeps track of the program variables that have been
// registered with the console.
//
// Variables are kept in registration order, newest first. Every
// registration returns a Handle; unregistering through the handle is an
// O(1) validated removal that may happen in any order.
package registry

import (
	"errors"
	"fmt"

	"github.com/go-delve/tinydbg/pkg/logflags"
)

// ErrStaleHandle is returned when unregistering a handle that does not
// refer to a live registration.
var ErrStaleHandle = errors.New("stale registry handle")

// Variable describes a registered program variable.
type Variable struct {
	// Function is the name of the function that registered the variable.
	Function string
	// Name is the source level name of the variable.
	Name string
	// Addr is the address of the live value.
	Addr uint64
	// Size is the size of the value in bytes.
	Size int
}

func (v Variable) String() string {
	return fmt.Sprintf("%s:%s@%#x[%d]", v.Function, v.Name, v.Addr, v.Size)
}

// Handle identifies a registration. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

const none = -1

type slot struct {
	v    Variable
	gen  uint32 // odd while live
	prev int32  // newer registration
	next int32  // older registration
}

func (s *slot) live() bool {
	return s.gen&1 == 1
}

// Registry is the list of registered variables. It is not safe for
// concurrent use; the console and the program it monitors share a single
// flow of control.
type Registry struct {
	slots []slot
	free  []int32
	head  int32
	n     int
	log   logflags.Logger
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{head: none, log: logflags.RegistryLogger()}
}

// Register adds a variable and makes it the most recent registration.
func (r *Registry) Register(function, name string, addr uint64, size int) Handle {
	var idx int32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		idx = int32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.gen++
	s.v = Variable{Function: function, Name: name, Addr: addr, Size: size}
	s.prev = none
	s.next = r.head
	if r.head != none {
		r.slots[r.head].prev = idx
	}
	r.head = idx
	r.n++

	if logflags.Registry() {
		r.log.WithField("slot", idx).Debugf("register %s", s.v)
	}
	return Handle{index: uint32(idx), gen: s.gen}
}

// Unregister removes the registration identified by h.
func (r *Registry) Unregister(h Handle) error {
	if int(h.index) >= len(r.slots) {
		return ErrStaleHandle
	}
	idx := int32(h.index)
	s := &r.slots[idx]
	if !s.live() || s.gen != h.gen {
		return ErrStaleHandle
	}
	if s.prev != none {
		r.slots[s.prev].next = s.next
	} else {
		r.head = s.next
	}
	if s.next != none {
		r.slots[s.next].prev = s.prev
	}
	if logflags.Registry() {
		r.log.WithField("slot", idx).Debugf("unregister %s", s.v)
	}
	s.gen++
	s.v = Variable{}
	s.prev, s.next = none, none
	r.free = append(r.free, idx)
	r.n--
	return nil
}

// Len returns the number of registered variables.
func (r *Registry) Len() int {
	return r.n
}

// Each calls fn for every registered variable, newest first, until fn
// returns false.
func (r *Registry) Each(fn func(Variable) bool) {
	for i := r.head; i != none; i = r.slots[i].next {
		if !fn(r.slots[i].v) {
			return
		}
	}
}

// All returns every registered variable, newest first.
func (r *Registry) All() []Variable {
	vs := make([]Variable, 0, r.n)
	r.Each(func(v Variable) bool {
		vs = append(vs, v)
		return true
	})
	return vs
}

// Find returns every variable registered with the given name, newest
// first, regardless of the function that registered it.
func (r *Registry) Find(name string) []Variable {
	var vs []Variable
	r.Each(func(v Variable) bool {
		if v.Name == name {
			vs = append(vs, v)
		}
		return true
	})
	return vs
}

// FindPointers returns the variables registered with the given name whose
// size is pointerSize. found reports whether any variable, of any size,
// has that name.
func (r *Registry) FindPointers(name string, pointerSize int) (vs []Variable, found bool) {
	r.Each(func(v Variable) bool {
		if v.Name != name {
			return true
		}
		found = true
		if v.Size == pointerSize {
			vs = append(vs, v)
		}
		return true
	})
	return vs, found
}

// Scope collects registrations that share a lifetime, usually the body of
// a function:
//
//	sc := reg.Scope()
//	defer sc.Close()
//	sc.Register("loop", "x", addr, 2)
type Scope struct {
	r       *Registry
	handles []Handle
}

// Scope returns an empty scope of r.
func (r *Registry) Scope() *Scope {
	return &Scope{r: r}
}

// Register registers a variable in the scope.
func (sc *Scope) Register(function, name string, addr uint64, size int) Handle {
	h := sc.r.Register(function, name, addr, size)
	sc.handles = append(sc.handles, h)
	return h
}

// Close unregisters the scope's variables, most recent first.
func (sc *Scope) Close() error {
	var firstErr error
	for i := len(sc.handles) - 1; i >= 0; i-- {
		if err := sc.r.Unregister(sc.handles[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	sc.handles = nil
	return firstErr
}
