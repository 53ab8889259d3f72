// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor implements the api.Reactor/api.Executor/api.Dispatcher
// collaborators: a fixed-size worker pool that runs posted completion
// handlers off the caller's goroutine, and a single-worker serialized
// dispatcher that delivers callbacks to the application in posting order.
package reactor
