package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindError
	kindAny
)

// Field is one structured key/value attached to a log event.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	num  int64
	flt  float64
	obj  interface{}
}

// Value returns the field as a plain value; errors become their message and
// durations their milliseconds.
func (f Field) Value() interface{} {
	switch f.kind {
	case kindString:
		return f.str
	case kindInt:
		return f.num
	case kindFloat:
		return f.flt
	case kindBool:
		return f.num == 1
	case kindDuration:
		return time.Duration(f.num).Milliseconds()
	case kindError:
		if f.obj == nil {
			return nil
		}
		return f.obj.(error).Error()
	}
	return f.obj
}

func (f Field) apply(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.Key, f.str)
	case kindInt:
		e.Int64(f.Key, f.num)
	case kindFloat:
		e.Float64(f.Key, f.flt)
	case kindBool:
		e.Bool(f.Key, f.num == 1)
	case kindDuration:
		e.Dur(f.Key, time.Duration(f.num))
	case kindError:
		if f.obj != nil {
			e.AnErr(f.Key, f.obj.(error))
		}
	default:
		e.Interface(f.Key, f.obj)
	}
}

func String(key, value string) Field { return Field{Key: key, kind: kindString, str: value} }

func Strings(key string, value []string) Field { return String(key, strings.Join(value, ", ")) }

func Int(key string, value int) Field { return Field{Key: key, kind: kindInt, num: int64(value)} }

func Int64(key string, value int64) Field { return Field{Key: key, kind: kindInt, num: value} }

func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat, flt: value} }

func Bool(key string, value bool) Field {
	f := Field{Key: key, kind: kindBool}
	if value {
		f.num = 1
	}
	return f
}

// Duration logs d in milliseconds.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, kind: kindDuration, num: int64(d)}
}

// Error logs err under "error". A nil error is omitted.
func Error(err error) Field {
	f := Field{Key: "error", kind: kindError}
	if err != nil {
		f.obj = err
	}
	return f
}

func Any(key string, value interface{}) Field { return Field{Key: key, kind: kindAny, obj: value} }
