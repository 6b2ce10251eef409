// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package logging builds the loggers used by the
// opcodes commands.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Levels lists the level names accepted by
// ParseLevel, from most to least verbose.
var Levels = []string{"debug", "info", "warn", "error"}

// ParseLevel returns the named log level. The
// empty string selects warn.
func ParseLevel(name string) (logrus.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "", "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.WarnLevel, fmt.Errorf("invalid log level %q: must be one of %s", name, strings.Join(Levels, ", "))
	}
}

// New returns a logger that writes plain text
// entries without timestamps to w.
func New(w io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})

	return log
}
