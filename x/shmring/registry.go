package shmring

import (
	"sort"
	"sync"
)

// Handle names a registered Ring across package boundaries. Zero is never issued.
type Handle uint32

type entry struct {
	ring  *Ring
	owner string
}

var (
	regMu sync.RWMutex
	reg   = map[Handle]entry{}
	last  Handle
)

// NewRegistered allocates a Ring of the given power-of-two size and records
// it under a fresh Handle together with the name of its producer.
func NewRegistered(size int, owner string) (Handle, *Ring) {
	r := New(size)
	regMu.Lock()
	last++
	h := last
	reg[h] = entry{ring: r, owner: owner}
	regMu.Unlock()
	return h, r
}

// Get returns the Ring behind h, or nil.
func Get(h Handle) *Ring {
	regMu.RLock()
	defer regMu.RUnlock()
	return reg[h].ring
}

// Owner returns the producer name recorded for h, or "".
func Owner(h Handle) string {
	regMu.RLock()
	defer regMu.RUnlock()
	return reg[h].owner
}

// Handles lists the live handles in issue order.
func Handles() []Handle {
	regMu.RLock()
	out := make([]Handle, 0, len(reg))
	for h := range reg {
		out = append(out, h)
	}
	regMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close forgets h and reports whether it was registered. Rings already
// handed out stay usable.
func Close(h Handle) bool {
	regMu.Lock()
	defer regMu.Unlock()
	_, ok := reg[h]
	delete(reg, h)
	return ok
}
