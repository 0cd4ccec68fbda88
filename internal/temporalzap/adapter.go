// Package temporalzap bridges the Temporal SDK logger interface onto zap so
// worker and SDK logs land in the same structured stream as everything else.
package temporalzap

import (
	"fmt"
	"reflect"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// Adapter implements Temporal's log.Logger on a zap logger.
type Adapter struct {
	logger *zap.Logger
}

// NewAdapter wraps logger for the Temporal SDK.
func NewAdapter(logger *zap.Logger) log.Logger {
	return &Adapter{logger: logger}
}

func (a *Adapter) Debug(msg string, keyvals ...interface{}) {
	a.logger.Debug(msg, fieldsFromKeyvals(keyvals)...)
}

func (a *Adapter) Info(msg string, keyvals ...interface{}) {
	a.logger.Info(msg, fieldsFromKeyvals(keyvals)...)
}

func (a *Adapter) Warn(msg string, keyvals ...interface{}) {
	a.logger.Warn(msg, fieldsFromKeyvals(keyvals)...)
}

func (a *Adapter) Error(msg string, keyvals ...interface{}) {
	a.logger.Error(msg, fieldsFromKeyvals(keyvals)...)
}

// With returns a child logger, required by the SDK interface.
func (a *Adapter) With(keyvals ...interface{}) log.Logger {
	return &Adapter{logger: a.logger.With(fieldsFromKeyvals(keyvals)...)}
}

func fieldsFromKeyvals(keyvals []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		if key, ok := keyvals[i].(string); ok {
			fields = append(fields, safeZapField(key, keyvals[i+1]))
		}
	}
	return fields
}

// safeZapField handles values zap.Any cannot serialize; the SDK passes
// arbitrary keyvals and a logging panic must never take down a worker.
func safeZapField(key string, val interface{}) (field zap.Field) {
	defer func() {
		if r := recover(); r != nil {
			field = zap.String(key, fmt.Sprintf("<unserializable: %v>", r))
		}
	}()

	if val == nil {
		return zap.String(key, "<nil>")
	}

	switch reflect.ValueOf(val).Kind() {
	case reflect.Func:
		return zap.String(key, "<func>")
	case reflect.Chan:
		return zap.String(key, "<chan>")
	case reflect.UnsafePointer:
		return zap.String(key, "<unsafe.Pointer>")
	case reflect.Invalid:
		return zap.String(key, "<invalid>")
	default:
		return zap.Any(key, val)
	}
}
