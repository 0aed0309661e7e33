package util

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	nbcontext "github.com/netbirdio/updater/shared/context"
)

type LogSource string

const (
	HTTPSource   LogSource = "HTTP"
	SystemSource LogSource = "SYSTEM"
)

// InitLog parses and sets log-level input
func InitLog(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("Failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	switch logPath {
	case "", "console":
		log.SetOutput(os.Stderr)
	default:
		lumberjackLogger := &lumberjack.Logger{
			// Log file absolute path, os agnostic
			Filename:   filepath.ToSlash(logPath),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
		log.SetOutput(io.Writer(lumberjackLogger))
	}

	log.SetFormatter(&CustomFormatter{TextFormatter: log.TextFormatter{FullTimestamp: true}})
	log.SetLevel(level)
	return nil
}

// CustomFormatter adds request scoped fields carried by the entry context
type CustomFormatter struct {
	log.TextFormatter
}

func (f *CustomFormatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Context == nil {
		return f.TextFormatter.Format(entry)
	}

	source, _ := entry.Context.Value(nbcontext.SourceKey).(LogSource)
	switch source {
	case HTTPSource, SystemSource:
		if reqID, ok := entry.Context.Value(nbcontext.RequestIDKey).(string); ok {
			entry.Data["requestID"] = reqID
		}
		if deviceID, ok := entry.Context.Value(nbcontext.DeviceIDKey).(string); ok {
			entry.Data["deviceID"] = deviceID
		}
	}

	return f.TextFormatter.Format(entry)
}
