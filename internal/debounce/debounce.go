// Package debounce coalesces bursts of triggers into a single call.
package debounce

import (
	"sync"
	"time"
)

var afterFunc = time.AfterFunc

type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	gen   uint64
	fn    func()
}

func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)starts the delay. fn runs once the delay passes without another
// trigger.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = afterFunc(d.delay, func() { d.fire(gen) })
}

// fire ignores callbacks from timers that were superseded after they had
// already started.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Keyed keeps one Debouncer per key, so bursts on different keys are
// coalesced independently.
type Keyed[K comparable] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(K)
	stopped bool
	byKey   map[K]*Debouncer
}

func NewKeyed[K comparable](delay time.Duration, fn func(K)) *Keyed[K] {
	return &Keyed[K]{delay: delay, fn: fn, byKey: map[K]*Debouncer{}}
}

// Trigger holds k.mu while arming the timer so it cannot interleave with Stop.
func (k *Keyed[K]) Trigger(key K) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped {
		return
	}
	d, ok := k.byKey[key]
	if !ok {
		d = New(k.delay, func() { k.fn(key) })
		k.byKey[key] = d
	}
	d.Trigger()
}

// Stop cancels every pending call. Later triggers are ignored.
func (k *Keyed[K]) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stopped = true
	for _, d := range k.byKey {
		d.Stop()
	}
}
