// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// MaxFrames is the maximum number of source frames recorded in the Metadata of a traced node.
const MaxFrames = 8

// Frame is a source location where a node was created, used for diagnostics.
type Frame struct {
	Function string
	File     string
	Line     int
}

// String returns "function@file:line", with the base name of the file.
func (f Frame) String() string {
	return fmt.Sprintf("%s@%s:%d", f.Function, filepath.Base(f.File), f.Line)
}

// Metadata holds debug information about a node: its scope and, if the session is traced,
// where in the user's code it was created.
type Metadata struct {
	Scope  string
	Frames []Frame
}

// irPackagePrefix is used to skip frames inside the IR packages when capturing the creation site.
var irPackagePrefix = func() string {
	pc, _, _, _ := runtime.Caller(0)
	name := runtime.FuncForPC(pc).Name()
	// name is like "github.com/gomlx/lazyir/pkg/core/ir.init.func1".
	if idx := strings.LastIndex(name, "/ir."); idx != -1 {
		return name[:idx+len("/ir")]
	}
	return name
}()

// captureFrames returns the first MaxFrames frames of the current stack outside the IR packages
// (including ir/ops and ir/passes) and the Go runtime. Frames from test files are kept.
func captureFrames() []Frame {
	var pcs [64]uintptr
	n := runtime.Callers(2, pcs[:])
	iter := runtime.CallersFrames(pcs[:n])
	var frames []Frame
	for {
		frame, more := iter.Next()
		internal := strings.HasPrefix(frame.Function, irPackagePrefix) && !strings.HasSuffix(frame.File, "_test.go")
		if !internal && !strings.HasPrefix(frame.Function, "runtime.") {
			frames = append(frames, Frame{Function: shortFunctionName(frame.Function), File: frame.File, Line: frame.Line})
			if len(frames) == MaxFrames {
				break
			}
		}
		if !more {
			break
		}
	}
	return frames
}

// shortFunctionName strips the package path, keeping "package.Function".
func shortFunctionName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// shortFrameInfo renders the innermost user frame, or "" if no frames were captured.
func (m Metadata) shortFrameInfo() string {
	if len(m.Frames) == 0 {
		return ""
	}
	return ", location=" + m.Frames[0].String()
}
