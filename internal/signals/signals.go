package signals

import (
	"context"

	"github.com/maniartech/signals"
	"github.com/namaznow/timings-import/internal/timings"
)

// LocationsLoadedData describes the outcome of a location fetch
type LocationsLoadedData struct {
	Count   int
	Success bool
}

// TimingsSubmittedData describes the outcome of an import submission
type TimingsSubmittedData struct {
	LocationID      int64
	SchoolOfThought timings.SchoolOfThought
	Entries         int
	Success         bool
	Err             error
}

// Signal definitions using generics
var LocationsLoaded = signals.New[LocationsLoadedData]()
var TimingsSubmitted = signals.New[TimingsSubmittedData]()

// EmitLocationsLoaded emits a signal after a location fetch resolves
func EmitLocationsLoaded(ctx context.Context, count int, success bool) {
	LocationsLoaded.Emit(ctx, LocationsLoadedData{
		Count:   count,
		Success: success,
	})
}

// EmitTimingsSubmitted emits a signal after a submission resolves
func EmitTimingsSubmitted(ctx context.Context, data TimingsSubmittedData) {
	TimingsSubmitted.Emit(ctx, data)
}

// OnLocationsLoaded registers a handler for location fetch events
func OnLocationsLoaded(handler func(ctx context.Context, data LocationsLoadedData), key ...string) {
	if len(key) > 0 {
		LocationsLoaded.AddListener(handler, key[0])
	} else {
		LocationsLoaded.AddListener(handler)
	}
}

// OnTimingsSubmitted registers a handler for submission events
func OnTimingsSubmitted(handler func(ctx context.Context, data TimingsSubmittedData), key ...string) {
	if len(key) > 0 {
		TimingsSubmitted.AddListener(handler, key[0])
	} else {
		TimingsSubmitted.AddListener(handler)
	}
}
