// The MIT License (MIT)
//
// Copyright (c) 2013-2016 Oryx(ossrs)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// The natnet logger package provides connection-oriented log service.
//		logger.Info.Println(Context, ...)
//		logger.Trace.Println(Context, ...)
//		logger.Warn.Println(Context, ...)
//		logger.Error.Println(Context, ...)
// @remark the Context is optional thus can be nil.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// the context for current goroutine or connection.
type Context interface {
	// get current connection cid.
	Cid() int
}

// the LOG+ which provides connection-based log on top of logrus.
type loggerPlus struct {
	entry *logrus.Entry
	level logrus.Level
}

func newLoggerPlus(out io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	return &loggerPlus{entry: logrus.NewEntry(l), level: level}
}

func (v *loggerPlus) Println(ctx Context, a ...interface{}) {
	e := v.entry.WithField("pid", os.Getpid())
	if ctx != nil {
		e = e.WithField("cid", ctx.Cid())
	}

	switch v.level {
	case logrus.DebugLevel:
		e.Debugln(a...)
	case logrus.WarnLevel:
		e.Warnln(a...)
	case logrus.ErrorLevel:
		e.Errorln(a...)
	default:
		e.Infoln(a...)
	}
}

// Info, the verbose info level, very detail log, the lowest level, to discard.
var Info Logger

// Alias for Info level println.
func I(ctx Context, a ...interface{}) {
	Info.Println(ctx, a...)
}

// Trace, the trace level, something important, the default log level, to stdout.
var Trace Logger

// Alias for Trace level println.
func T(ctx Context, a ...interface{}) {
	Trace.Println(ctx, a...)
}

// Warn, the warning level, dangerous information, to stderr.
var Warn Logger

// Alias for Warn level println.
func W(ctx Context, a ...interface{}) {
	Warn.Println(ctx, a...)
}

// Error, the error level, fatal error things, to stderr.
var Error Logger

// Alias for Error level println.
func E(ctx Context, a ...interface{}) {
	Error.Println(ctx, a...)
}

// The logger for natnet.
type Logger interface {
	// Println for logger plus,
	// @param ctx the connection-oriented context, or nil to ignore.
	Println(ctx Context, a ...interface{})
}

func init() {
	Info = newLoggerPlus(io.Discard, logrus.DebugLevel)
	Trace = newLoggerPlus(os.Stdout, logrus.InfoLevel)
	Warn = newLoggerPlus(os.Stderr, logrus.WarnLevel)
	Error = newLoggerPlus(os.Stderr, logrus.ErrorLevel)
}

// Switch the underlayer io. All non-discarded levels write to w.
// @remark user must close previous io for logger never close it.
func Switch(w io.Writer) {
	Info = newLoggerPlus(io.Discard, logrus.DebugLevel)
	Trace = newLoggerPlus(w, logrus.InfoLevel)
	Warn = newLoggerPlus(w, logrus.WarnLevel)
	Error = newLoggerPlus(w, logrus.ErrorLevel)

	if c, ok := w.(io.Closer); ok {
		previousIo = c
	}
}

// The previous underlayer io for logger.
var previousIo io.Closer

// Cleanup the logger, discard any log until switched to a fresh writer.
func Close() (err error) {
	Info = newLoggerPlus(io.Discard, logrus.DebugLevel)
	Trace = newLoggerPlus(io.Discard, logrus.InfoLevel)
	Warn = newLoggerPlus(io.Discard, logrus.WarnLevel)
	Error = newLoggerPlus(io.Discard, logrus.ErrorLevel)

	if previousIo != nil {
		err = previousIo.Close()
		previousIo = nil
	}

	return
}
