package core

import "sync"

// Used to spawn and control all go routines.
type Invoker interface {
	// Spawn the function on a new go routine.
	Spawn(func())

	// Stop waits until every spawned routine returned.
	Stop()
}

type defaultInvoker struct {
	group *sync.WaitGroup
}

// NewInvoker creates an invoker backed by a wait group.
func NewInvoker() Invoker {
	return &defaultInvoker{group: &sync.WaitGroup{}}
}

// Implements the Invoker interface.
func (i *defaultInvoker) Spawn(f func()) {
	i.group.Add(1)
	go func() {
		defer i.group.Done()
		f()
	}()
}

// Implements the Invoker interface.
func (i *defaultInvoker) Stop() {
	i.group.Wait()
}
