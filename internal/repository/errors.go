// Package repository implements the MySQL access patterns the assignment
// pipeline requires of the relational store.  This file defines error
// values that are reused across repositories.  These sentinel values allow
// higher layers such as the coordinator to distinguish between failure
// scenarios without inspecting SQL errors.  For example, ErrVersionConflict
// signals that a conditional state update lost a race with another writer,
// while ErrManualSelection signals that a requested table combination was
// rejected by validation rather than by infrastructure failure.
package repository

import "errors"

// ErrNotFound is returned when a row the caller asked for does not exist.
// The coordinator translates a missing booking into a no-op outcome.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a conditional update of
// assignment_state found a different assignment_state_version than the
// caller expected.  Another coordinator already advanced the booking; the
// caller must reload rather than overwrite.
var ErrVersionConflict = errors.New("assignment state version conflict")

// ErrManualSelection is returned when a hold request names a table
// combination that cannot be honoured: a table is occupied or held for the
// window, inactive, or the required adjacency does not hold.  It means
// "this plan doesn't work", not that the store failed; the engine moves on
// to the next ranked plan.
var ErrManualSelection = errors.New("table selection rejected")

// ErrHoldExpired is returned when confirming a hold whose TTL has already
// lapsed.  The assignment must be retried from plan generation.
var ErrHoldExpired = errors.New("hold expired")
