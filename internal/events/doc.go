// Package events provides the notification hook of the generation scheduler.
//
// Every task status change is published as a TransitionEvent. Components
// register EventHandlers with an EventEmitter and receive transitions without
// the scheduler knowing who listens. Handler failures are reported to the
// emitter's caller but never change task state.
//
// The primary components are:
// - TransitionEvent: a single task status change
// - EventHandler: interface for components that consume transitions
// - EventEmitter: interface for components that publish transitions
package events
