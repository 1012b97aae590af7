// Package logx is rankbot's structured logger: a thin value type over
// zerolog whose outputs can be swapped at runtime by a Service.
//
// Outputs are a human console writer, an append-only JSON file and a rate
// limited chat sink that mirrors warnings and errors into the log group.
package logx
