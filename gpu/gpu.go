// Copyright 2025 Kiln ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package gpu exposes the WebGPU device layer: context creation,
// availability probing and buffer pool statistics.
package gpu

import (
	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/kiln-ml/kiln/internal/device"
)

// Context is a handle to one WebGPU device.
type Context = device.Context

// PoolStats is a snapshot of buffer pool counters.
type PoolStats = device.PoolStats

// MaxRank is the highest tensor rank the kernels support.
const MaxRank = device.MaxRank

// New initializes a Context on the highest-performance adapter available.
//
// Example:
//
//	ctx, err := gpu.New()
//	if err != nil {
//	    log.Fatalf("no GPU: %v", err)
//	}
//	defer ctx.Release()
func New() (*Context, error) {
	return device.New()
}

// IsAvailable reports whether a WebGPU device can be initialized.
func IsAvailable() bool {
	return device.IsAvailable()
}

// ListAdapters returns information about the available GPU adapters.
func ListAdapters() ([]*wgpu.AdapterInfoGo, error) {
	return device.ListAdapters()
}
