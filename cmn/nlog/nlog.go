// Package nlog is this module's logger: severity levels, timestamping, and
// caller reporting, trimmed to what a library (as opposed to a long-running
// server process) needs -- no file rotation, no background flush daemon.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	title  string
	minSev = sevInfo
)

// SetOutput redirects all log output; callers embedding this module in a
// larger process (or a test) may point it at a file or at io.Discard.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// SetTitle records a banner string; nothing in this package prints it. It
// is kept for parity with the server-side logger's API.
func SetTitle(s string) { title = s }

func SetVerbose(warnAndAbove bool) {
	if warnAndAbove {
		minSev = sevWarn
	} else {
		minSev = sevInfo
	}
}

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth+1, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 1, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 1, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 1, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 1, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth+1, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 1, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 1, format, args...) }

// Flush is a no-op here (nothing is buffered); kept so callers shared with
// the server-side logger's shutdown path don't need a build tag.
func Flush(...bool) {}

func log(sev severity, depth int, format string, args ...any) {
	if sev < minSev {
		return
	}
	var line strings.Builder
	line.WriteByte(sevChar[sev])
	line.WriteByte(' ')
	line.WriteString(time.Now().Format("15:04:05.000000"))
	line.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(1 + depth); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		line.WriteString(fn)
		line.WriteByte(':')
		line.WriteString(strconv.Itoa(ln))
		line.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&line, args...)
	} else {
		fmt.Fprintf(&line, format, args...)
		if !strings.HasSuffix(line.String(), "\n") {
			line.WriteByte('\n')
		}
	}

	mu.Lock()
	io.WriteString(out, line.String())
	mu.Unlock()
}
