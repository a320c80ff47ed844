package controller

import (
	"fmt"
	"net"
	"sync"

	"github.com/qubi-project/qubi-go/protocol"
)

// ResponseHandler observes every decoded inbound datagram, matched or not.
type ResponseHandler func(resp protocol.Response, source *net.UDPAddr)

// ErrorHandler observes dispatch failures and other best-effort errors.
type ErrorHandler func(err error)

type responseEntry struct {
	id int
	fn ResponseHandler
}

type errorEntry struct {
	id int
	fn ErrorHandler
}

// handlerRegistry is an ordered set of observers. Dispatch works on a
// snapshot so handlers may register or remove observers concurrently.
type handlerRegistry struct {
	mu        sync.RWMutex
	nextID    int
	responses []responseEntry
	errors    []errorEntry
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{nextID: 1}
}

func (r *handlerRegistry) addResponse(fn ResponseHandler) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.responses = append(r.responses, responseEntry{id: id, fn: fn})
	return id
}

func (r *handlerRegistry) removeResponse(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.responses {
		if e.id == id {
			r.responses = append(r.responses[:i:i], r.responses[i+1:]...)
			return
		}
	}
}

func (r *handlerRegistry) addError(fn ErrorHandler) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.errors = append(r.errors, errorEntry{id: id, fn: fn})
	return id
}

func (r *handlerRegistry) removeError(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.errors {
		if e.id == id {
			r.errors = append(r.errors[:i:i], r.errors[i+1:]...)
			return
		}
	}
}

// dispatchResponse notifies every response observer. A panicking observer
// is contained and routed to the error observers; the caller's request is
// never failed by observer misbehavior.
func (r *handlerRegistry) dispatchResponse(resp protocol.Response, source *net.UDPAddr) {
	r.mu.RLock()
	snapshot := make([]responseEntry, len(r.responses))
	copy(snapshot, r.responses)
	r.mu.RUnlock()

	for _, e := range snapshot {
		r.invokeResponse(e.fn, resp, source)
	}
}

func (r *handlerRegistry) invokeResponse(fn ResponseHandler, resp protocol.Response, source *net.UDPAddr) {
	defer func() {
		if p := recover(); p != nil {
			r.dispatchError(fmt.Errorf("controller: response handler panic: %v", p))
		}
	}()
	fn(resp, source)
}

// dispatchError notifies every error observer, swallowing their panics.
func (r *handlerRegistry) dispatchError(err error) {
	r.mu.RLock()
	snapshot := make([]errorEntry, len(r.errors))
	copy(snapshot, r.errors)
	r.mu.RUnlock()

	for _, e := range snapshot {
		invokeError(e.fn, err)
	}
}

func invokeError(fn ErrorHandler, err error) {
	defer func() {
		_ = recover()
	}()
	fn(err)
}
