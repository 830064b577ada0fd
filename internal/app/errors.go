package app

import "fmt"

// Exit codes of the startup chain.
const (
	ExitOK = iota
	ExitInitialize
	ExitPerformanceMonitoring
	ExitGPUList
	ExitSelectGPU
	ExitMetricsSupport
	ExitCurrentMetrics
)

// ExitError is a fatal failure that ends the run with a specific exit code.
// Message is shown to the user; Err keeps the underlying cause.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}
