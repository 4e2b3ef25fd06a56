// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge routes slog records into the global zerolog logger. The
// supervisor tree logs through slog (sutureslog requires it); everything
// else in the process uses zerolog directly, and this bridge keeps both
// paths in one output stream.
//
// Groups are flattened into dotted key prefixes, so WithGroup("tree")
// turns "service" into "tree.service".
type slogBridge struct {
	log    zerolog.Logger
	prefix string
	attrs  []slog.Attr
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return b.log.GetLevel() <= zlevel(level)
}

func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	event := b.log.WithLevel(zlevel(record.Level))
	for _, attr := range b.attrs {
		event = writeAttr(event, b.prefix, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = writeAttr(event, b.prefix, attr)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return &slogBridge{log: b.log, prefix: b.prefix, attrs: merged}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	return &slogBridge{log: b.log, prefix: b.prefix + name + ".", attrs: b.attrs}
}

func writeAttr(event *zerolog.Event, prefix string, attr slog.Attr) *zerolog.Event {
	key := prefix + attr.Key

	switch attr.Value.Kind() {
	case slog.KindString:
		return event.Str(key, attr.Value.String())
	case slog.KindInt64:
		return event.Int64(key, attr.Value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, attr.Value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, attr.Value.Float64())
	case slog.KindBool:
		return event.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return event.Dur(key, attr.Value.Duration())
	case slog.KindTime:
		return event.Time(key, attr.Value.Time())
	case slog.KindGroup:
		for _, member := range attr.Value.Group() {
			event = writeAttr(event, key+".", member)
		}
		return event
	default:
		return event.Interface(key, attr.Value.Any())
	}
}

// zlevel maps slog level ranges onto the four zerolog levels the process
// actually logs at.
func zlevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// NewSlogLogger returns an slog.Logger whose records land in the global
// zerolog output.
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{log: Logger()})
}
