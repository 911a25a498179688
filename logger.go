package casework

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the logging contract shared by every package.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger extends Logger with structured-field support.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

// FmtLogger writes one plain line per entry. It backs tests and any wiring that
// has no go-logger configured.
type FmtLogger struct {
	out    io.Writer
	fields fieldList
}

// NewFmtLogger writes to out, or stdout when out is nil.
func NewFmtLogger(out io.Writer) *FmtLogger {
	if out == nil {
		out = os.Stdout
	}
	return &FmtLogger{out: out}
}

func (l *FmtLogger) Trace(msg string, args ...any) { l.write("TRACE", msg, args) }
func (l *FmtLogger) Debug(msg string, args ...any) { l.write("DEBUG", msg, args) }
func (l *FmtLogger) Info(msg string, args ...any)  { l.write("INFO", msg, args) }
func (l *FmtLogger) Warn(msg string, args ...any)  { l.write("WARN", msg, args) }
func (l *FmtLogger) Error(msg string, args ...any) { l.write("ERROR", msg, args) }
func (l *FmtLogger) Fatal(msg string, args ...any) { l.write("FATAL", msg, args) }

// WithContext is a no-op; the plain logger has nothing to lift from ctx.
func (l *FmtLogger) WithContext(context.Context) Logger {
	if l == nil {
		return NewFmtLogger(nil)
	}
	return l
}

// WithFields returns a logger carrying fields after the current ones.
func (l *FmtLogger) WithFields(fields map[string]any) Logger {
	if l == nil {
		l = NewFmtLogger(nil)
	}
	return &FmtLogger{out: l.out, fields: l.fields.with(fields)}
}

func (l *FmtLogger) write(level, msg string, args []any) {
	if l == nil {
		l = NewFmtLogger(nil)
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	fmt.Fprintf(&b, " %-5s casework: %s", level, strings.TrimSpace(msg))
	for _, f := range l.fields {
		b.WriteByte(' ')
		b.WriteString(f.String())
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(l.out, b.String())
}

// leadingKeys print ahead of other fields so lines about one case line up.
var leadingKeys = map[string]int{"case_id": 0, "event": 1, "execution_id": 2, "stage": 3}

type field struct {
	key   string
	value any
}

func (f field) String() string {
	v := fmt.Sprint(f.value)
	if strings.ContainsAny(v, " \t\"=") {
		v = strconv.Quote(v)
	}
	return f.key + "=" + v
}

type fieldList []field

// with returns a new list with fields set, replacing existing keys.
func (fl fieldList) with(fields map[string]any) fieldList {
	if len(fields) == 0 {
		return fl
	}
	out := make(fieldList, 0, len(fl)+len(fields))
	for _, f := range fl {
		if _, replaced := fields[f.key]; !replaced {
			out = append(out, f)
		}
	}
	for k, v := range fields {
		out = append(out, field{key: k, value: v})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := leadingKeys[out[i].key]
		rj, jok := leadingKeys[out[j].key]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i].key < out[j].key
	})
	return out
}

// GlogLogger adapts a go-logger logger to Logger.
type GlogLogger struct {
	logger glog.Logger
}

// NewGlogLogger builds a go-logger backed Logger. format is "json" or "console".
func NewGlogLogger(out io.Writer, level, format string) *GlogLogger {
	if out == nil {
		out = os.Stdout
	}
	levelOpt := glog.WithLevel("info")
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		levelOpt = glog.WithLevel("trace")
	case "debug":
		levelOpt = glog.WithLevel("debug")
	case "warn":
		levelOpt = glog.WithLevel("warn")
	case "error":
		levelOpt = glog.WithLevel("error")
	}
	if strings.EqualFold(format, "console") {
		return &GlogLogger{logger: glog.NewLogger(glog.WithWriter(out), levelOpt)}
	}
	return &GlogLogger{logger: glog.NewLogger(glog.WithWriter(out), levelOpt, glog.WithLoggerTypeJSON())}
}

// WrapGlog adapts an existing go-logger logger.
func WrapGlog(logger glog.Logger) *GlogLogger {
	return &GlogLogger{logger: logger}
}

func (l *GlogLogger) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l *GlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *GlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *GlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *GlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *GlogLogger) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l *GlogLogger) WithContext(ctx context.Context) Logger {
	if l == nil || l.logger == nil {
		return NewFmtLogger(nil).WithContext(ctx)
	}
	return &GlogLogger{logger: l.logger.WithContext(ctx)}
}

func (l *GlogLogger) WithFields(fields map[string]any) Logger {
	if l == nil || l.logger == nil {
		return NewFmtLogger(nil).WithFields(fields)
	}
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return &GlogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

// NormalizeLogger replaces a nil logger with the fallback.
func NormalizeLogger(logger Logger) Logger {
	if logger == nil {
		return NewFmtLogger(nil)
	}
	return logger
}

// LoggerWithFields attaches fields when the logger supports them.
func LoggerWithFields(logger Logger, fields map[string]any) Logger {
	if logger == nil {
		return NewFmtLogger(nil).WithFields(fields)
	}
	if fl, ok := logger.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return logger
}
