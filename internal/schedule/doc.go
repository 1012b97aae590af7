// Package schedule keeps recurring report definitions armed as daily
// triggers and runs the resulting jobs one at a time.
//
// Registry rebuilds every trigger from the store after each mutation, so the
// armed set always mirrors persisted state: one fixed collection trigger
// plus one trigger per enabled definition. Dispatcher owns the single runner
// goroutine; a job that is already queued or running is not queued again.
package schedule
