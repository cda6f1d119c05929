// Package runtimetest provides a recording runtime.Runtime for tests.
package runtimetest

import (
	"context"

	"github.com/skorokithakis/dmake/internal/runtime"
)

// Call is one recorded runtime invocation.
type Call struct {
	Method    string // "IsAvailable", "BuildImage" or "RunContainer"
	Build     runtime.BuildOptions
	Container runtime.ContainerOptions
}

// Recorder records every call and fails the ones selected by FailOn.
type Recorder struct {
	Calls []Call

	// FailOn returns the error for the n-th (0-based) call, or nil.
	FailOn func(n int, call Call) error
}

func (r *Recorder) record(call Call) error {
	n := len(r.Calls)
	r.Calls = append(r.Calls, call)
	if r.FailOn != nil {
		return r.FailOn(n, call)
	}
	return nil
}

// IsAvailable records an availability check.
func (r *Recorder) IsAvailable(ctx context.Context) error {
	return r.record(Call{Method: "IsAvailable"})
}

// BuildImage records a build.
func (r *Recorder) BuildImage(ctx context.Context, opts runtime.BuildOptions) error {
	return r.record(Call{Method: "BuildImage", Build: opts})
}

// RunContainer records a container run.
func (r *Recorder) RunContainer(ctx context.Context, opts runtime.ContainerOptions) error {
	return r.record(Call{Method: "RunContainer", Container: opts})
}

// Methods lists the recorded method names in order.
func (r *Recorder) Methods() []string {
	methods := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		methods[i] = c.Method
	}
	return methods
}
