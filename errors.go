package wkhtmltox

import (
	"errors"
	"fmt"

	"github.com/alnah/go-wkhtmltox/internal/native"
)

// Sentinel errors for library operations.
var (
	ErrInitialization = errors.New("engine initialization failed")
	ErrAllocation     = errors.New("native allocation failed")
	ErrSetting        = errors.New("setting rejected")
	ErrConversion     = errors.New("conversion failed")
	ErrResource       = errors.New("invalid resource state")

	// Resource state refinements; all match ErrResource.
	ErrDisposed = fmt.Errorf("%w: disposed", ErrResource)
	ErrNotReady = fmt.Errorf("%w: not ready", ErrResource)
	ErrBusy     = fmt.Errorf("%w: conversion in progress", ErrResource)

	// ErrEngineUnavailable is returned when the binary was built without
	// the wkhtmltox build tag or without cgo.
	ErrEngineUnavailable = native.ErrUnavailable

	// ErrInvalidProfile wraps every settings profile parse or validation error.
	ErrInvalidProfile = errors.New("invalid settings profile")
)
