package voicegateway

import (
	"sync"

	"github.com/diamondburned/voicegateway/protocol"
)

// VoiceGatewayEvent wraps a decoded control-plane payload handed to
// subscribers of Client.Events.
type VoiceGatewayEvent struct {
	Data protocol.Data
}

// broadcaster fans one internal feed out to many subscriber channels with
// LATEST overflow: a slow subscriber drops intermediate values rather than
// stalling the producer or the other subscribers. There is no publish/
// subscribe library anywhere in the retrieval pack (see DESIGN.md), so this
// is hand-rolled, grounded on utils/ws.Broadcaster's fan-out shape.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan interface{}]struct{}
	done bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan interface{}]struct{})}
}

// subscribe returns a new channel receiving every value published after the
// call. It is buffered 1 and overflow-drops: Publish never blocks on a slow
// reader.
func (b *broadcaster) subscribe() <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan interface{}, 1)
	if b.done {
		close(ch)
		return ch
	}

	b.subs[ch] = struct{}{}
	return ch
}

// publish fans v out to every live subscriber, dropping the oldest buffered
// value for any subscriber that hasn't drained yet (LATEST semantics).
func (b *broadcaster) publish(v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// close marks the broadcaster done and closes every live subscriber channel.
// Publish and subscribe after close are no-ops (subscribe returns a
// pre-closed channel).
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true

	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// replayLast is a single-slot broadcaster that additionally replays the most
// recently published value to every new subscriber immediately, matching
// spec §4.8's "replay-last State stream" contract for state_events().
type replayLast struct {
	mu      sync.Mutex
	subs    map[chan interface{}]struct{}
	lastSet bool
	last    interface{}
	done    bool
}

func newReplayLast() *replayLast {
	return &replayLast{subs: make(map[chan interface{}]struct{})}
}

func (r *replayLast) subscribe() <-chan interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan interface{}, 1)
	if r.done {
		if r.lastSet {
			ch <- r.last
		}
		close(ch)
		return ch
	}

	if r.lastSet {
		ch <- r.last
	}

	r.subs[ch] = struct{}{}
	return ch
}

func (r *replayLast) publish(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = v
	r.lastSet = true

	for ch := range r.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// current returns the most recently published value and whether one has
// been published yet.
func (r *replayLast) current() (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.last, r.lastSet
}

func (r *replayLast) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}
	r.done = true

	for ch := range r.subs {
		close(ch)
	}
	r.subs = nil
}
