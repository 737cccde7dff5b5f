// Package search runs one query against several engines at once and merges
// their results into a single stream.
//
// # Overview
//
// An Orchestrator owns a set of engine adapters and a fetcher. Search starts
// one producer goroutine per engine. Producers push lifecycle messages and
// results into one bounded queue and block when it is full, so a slow reader
// slows the engines down instead of growing memory.
//
// The reading side is lazy. Stream.Next runs on the caller's goroutine: it
// takes the next message from the queue, drops repeated URLs (reporting them
// as EventDuplicate) and returns one Event at a time:
//
//	stream, err := orch.Search(ctx, "golang generics")
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//	for ev := range stream.Events() {
//		switch ev.Kind {
//		case search.EventResult:
//			fmt.Println(ev.Result.Title, ev.Result.URL)
//		case search.EventFailed:
//			fmt.Println(ev.Engine, "failed:", ev.Err)
//		}
//	}
//
// # Ordering
//
// Results from one engine arrive in page order, and an engine's terminal
// event (EventFinished or EventFailed) comes after all of its results.
// Nothing is promised across engines. EventDone is always last.
//
// # Cancellation
//
// Close stops the search: producers notice at their next push, stop fetching
// and exit without reporting an error. Canceling the context passed to Search
// makes every engine that is still running fail with the context error.
package search
