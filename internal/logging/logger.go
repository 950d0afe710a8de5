// Package logging provides categorized, zap-backed logging for the IBCI
// toolchain: one logger per pipeline stage (lexer, parser, sema, interp,
// llm, scheduler, cli), each controllable independently so a user debugging
// the evaluator isn't drowned in lexer noise.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Category names one pipeline stage's logger.
type Category string

const (
	CategoryLexer     Category = "lexer"
	CategoryParser    Category = "parser"
	CategorySema      Category = "sema"
	CategoryInterp    Category = "interp"
	CategoryLLM       Category = "llm"
	CategoryScheduler Category = "scheduler"
	CategoryCLI       Category = "cli"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	enabled = make(map[Category]bool)
	debug   bool
)

// Configure installs the base zap logger and the set of categories enabled
// for debug-level output. Call once at process startup (cmd/ibci's root
// command does this from the --debug/--log-categories flags); safe to call
// again in tests to reset state.
func Configure(debugMode bool, categories []string) {
	mu.Lock()
	defer mu.Unlock()

	debug = debugMode
	enabled = make(map[Category]bool, len(categories))
	for _, c := range categories {
		enabled[Category(c)] = true
	}

	var z *zap.Logger
	var err error
	if debugMode {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		z = zap.NewNop()
	}
	base = z
}

func logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return zap.NewNop()
	}
	return base
}

func categoryEnabled(c Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if len(enabled) == 0 {
		return true
	}
	return enabled[c]
}

// Logger is a category-scoped façade over the shared zap.Logger.
type Logger struct {
	category Category
}

// Get returns the Logger for category. Always non-nil; when the category
// isn't enabled its Debug calls are silently dropped.
func Get(category Category) *Logger {
	return &Logger{category: category}
}

func (l *Logger) with() *zap.Logger {
	return logger().With(zap.String("category", string(l.category)))
}

func (l *Logger) Debug(format string, args ...any) {
	if !categoryEnabled(l.category) {
		return
	}
	l.with().Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.with().Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.with().Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.with().Error(fmt.Sprintf(format, args...))
}

// Sync flushes the underlying zap logger; call before process exit.
func Sync() {
	_ = logger().Sync()
}
