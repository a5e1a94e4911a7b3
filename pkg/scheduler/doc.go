// Package scheduler drives the reminder engine.
// It runs one evaluation pass per interval over every live event, hands due
// tiers to the dispatcher and keeps going across per-event failures.
package scheduler
