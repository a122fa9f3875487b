// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package uniqueness collapses repeated identical errors into "first
// occurrence" vs "duplicate" so consumers can report only novel errors.
//
// Errors are identified by a normalized signature: dynamic values such as
// IDs, URLs and timestamps are replaced by placeholders so two errors that
// differ only in interpolated values share a signature.
package uniqueness

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/z5labs/rum/telemetry"
)

const maxMessageLength = 500

var (
	uuidRegexp      = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	urlRegexp       = regexp.MustCompile(`https?://\S+`)
	pathRegexp      = regexp.MustCompile(`/\S+\.(?:js|ts|jsx|tsx|css|html|json)\b`)
	timestampRegexp = regexp.MustCompile(`\b\d{13}\b`)
	numericIDRegexp = regexp.MustCompile(`\b\d{6,}\b`)
	quotedRegexp    = regexp.MustCompile(`'[^']+'|"[^"]+"`)
)

// NormalizeMessage replaces dynamic values inside an error message with
// fixed placeholders and truncates overly long messages.
func NormalizeMessage(message string) string {
	if message == "" {
		return ""
	}

	normalized := uuidRegexp.ReplaceAllString(message, "<UUID>")
	normalized = urlRegexp.ReplaceAllString(normalized, "<URL>")
	normalized = pathRegexp.ReplaceAllString(normalized, "<PATH>")
	normalized = timestampRegexp.ReplaceAllString(normalized, "<TIMESTAMP>")
	normalized = numericIDRegexp.ReplaceAllString(normalized, "<ID>")
	normalized = quotedRegexp.ReplaceAllString(normalized, "<STRING>")

	if len(normalized) > maxMessageLength {
		normalized = normalized[:maxMessageLength] + "..."
	}
	return normalized
}

// StackSignature builds a stable signature over the top depth frames.
// Filenames are reduced to their basename so bundling or deployment path
// changes do not break the signature.
func StackSignature(frames []telemetry.StackFrame, depth int) string {
	if len(frames) == 0 || depth <= 0 {
		return ""
	}
	if len(frames) > depth {
		frames = frames[:depth]
	}

	sigs := make([]string, 0, len(frames))
	for _, frame := range frames {
		var parts []string
		if frame.Filename != "" {
			parts = append(parts, basename(frame.Filename))
		}
		if frame.Function != "" {
			parts = append(parts, frame.Function)
		}
		if frame.Lineno != 0 {
			lineCol := strconv.Itoa(frame.Lineno)
			if frame.Colno != 0 {
				lineCol += ":" + strconv.Itoa(frame.Colno)
			}
			parts = append(parts, lineCol)
		}
		sigs = append(sigs, strings.Join(parts, ":"))
	}
	return strings.Join(sigs, "|")
}

// basename strips directory prefixes, handling both unix and windows
// separators.
func basename(filename string) string {
	idx := strings.LastIndexAny(filename, `/\`)
	if idx == -1 || idx == len(filename)-1 {
		return filename
	}
	return filename[idx+1:]
}

// SignatureOptions are configurable parameters of [Signature].
type SignatureOptions struct {
	stackFrameDepth    int
	includeContextKeys bool
}

// SignatureOption sets a value on [SignatureOptions].
type SignatureOption interface {
	ApplySignatureOption(*SignatureOptions)
}

type signatureOptionFunc func(*SignatureOptions)

func (f signatureOptionFunc) ApplySignatureOption(so *SignatureOptions) {
	f(so)
}

// StackFrameDepth overrides how many stack frames contribute to the
// signature. The default is 5.
func StackFrameDepth(n int) SignatureOption {
	return signatureOptionFunc(func(so *SignatureOptions) {
		so.stackFrameDepth = n
	})
}

// ExcludeContextKeys omits the sorted context attribute key names from
// the signature.
func ExcludeContextKeys() SignatureOption {
	return signatureOptionFunc(func(so *SignatureOptions) {
		so.includeContextKeys = false
	})
}

// Signature builds the delimited signature string identifying errors with
// the same root cause.
func Signature(e telemetry.Exception, opts ...SignatureOption) string {
	so := &SignatureOptions{
		stackFrameDepth:    5,
		includeContextKeys: true,
	}
	for _, opt := range opts {
		opt.ApplySignatureOption(so)
	}

	var parts []string
	if e.Type != "" {
		parts = append(parts, e.Type)
	}
	if msg := NormalizeMessage(e.Value); msg != "" {
		parts = append(parts, msg)
	}
	if e.Stacktrace != nil {
		if sig := StackSignature(e.Stacktrace.Frames, so.stackFrameDepth); sig != "" {
			parts = append(parts, sig)
		}
	}
	if so.includeContextKeys && len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, "context:"+strings.Join(keys, ","))
	}

	return strings.Join(parts, "::")
}

// Hash maps a signature to the stable numeric form stored in the cache.
func Hash(signature string) uint64 {
	return xxhash.Sum64String(signature)
}
