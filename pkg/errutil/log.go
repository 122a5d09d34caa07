// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string. Extra attrs are appended
// as slog key/value pairs.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Error(msg, errorAttrs(err, attrs)...)
}

// LogWarn is LogError at warn level, for failures that were handled.
func LogWarn(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Warn(msg, errorAttrs(err, attrs)...)
}

func errorAttrs(err error, extra []any) []any {
	attrs := make([]any, 0, len(extra)+6)
	attrs = append(attrs, extra...)
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return append(attrs, "error", err)
	}
	attrs = append(attrs, "error", oopsErr.Error())
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
