// Package logging wires the process-wide log.Logger output to either
// stderr or a rotating file, based on a GlobalLogConfig.
package logging

import (
	"log"

	"gopkg.in/natefinch/lumberjack.v2"

	"qpiped/internal/config"
)

// Configure points the standard logger at cfg's destination. An empty
// Filename leaves output on stderr (log's default); otherwise writes go
// through a rotating lumberjack file sink.
func Configure(cfg *config.GlobalLogConfig) {
	if cfg == nil || cfg.Filename == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}
