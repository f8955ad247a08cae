/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package fake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// AtomicPtr holds the canned response of a faked call. Readers get a deep copy so a caller
// mutating an SDK output cannot leak into the next call.
type AtomicPtr[T any] struct {
	mu    sync.Mutex
	value *T
}

func (a *AtomicPtr[T]) Set(v *T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = v
}

func (a *AtomicPtr[T]) IsNil() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value == nil
}

func (a *AtomicPtr[T]) Clone() *T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return deepCopy(a.value)
}

func (a *AtomicPtr[T]) Reset() { a.Set(nil) }

// deepCopy round trips v through json. SDK inputs and outputs are plain data so this is enough.
func deepCopy[T any](v *T) *T {
	if v == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		panic(fmt.Sprintf("copying %T, %s", v, err))
	}
	out := new(T)
	if err := json.NewDecoder(&buf).Decode(out); err != nil {
		panic(fmt.Sprintf("copying %T, %s", v, err))
	}
	return out
}

// AtomicError is returned by a faked call while remaining is positive. A negative remaining
// count fails every call.
type AtomicError struct {
	mu        sync.Mutex
	err       error
	remaining int
}

// Set fails the next call with err.
func (e *AtomicError) Set(err error) { e.SetTimes(err, 1) }

// SetTimes fails the next n calls with err, or every call when n <= 0.
func (e *AtomicError) SetTimes(err error, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 {
		n = -1
	}
	e.err, e.remaining = err, n
}

// Get consumes one failure.
func (e *AtomicError) Get() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil || e.remaining == 0 {
		return nil
	}
	if e.remaining > 0 {
		e.remaining--
	}
	return e.err
}

func (e *AtomicError) Reset() { e.SetTimes(nil, 0) }

// AtomicPtrSlice records copies of the values it is given, in order.
type AtomicPtrSlice[T any] struct {
	mu     sync.RWMutex
	values []*T
}

func (a *AtomicPtrSlice[T]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = nil
}

func (a *AtomicPtrSlice[T]) Add(v *T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = append(a.values, deepCopy(v))
}

func (a *AtomicPtrSlice[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// Pop removes the newest value. It returns nil when the slice is empty.
func (a *AtomicPtrSlice[T]) Pop() *T {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.values) == 0 {
		return nil
	}
	last := a.values[len(a.values)-1]
	a.values = a.values[:len(a.values)-1]
	return last
}

// Shift removes the oldest value. It returns nil when the slice is empty.
func (a *AtomicPtrSlice[T]) Shift() *T {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.values) == 0 {
		return nil
	}
	first := a.values[0]
	a.values = a.values[1:]
	return first
}

func (a *AtomicPtrSlice[T]) ForEach(fn func(*T)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, v := range a.values {
		fn(deepCopy(v))
	}
}
