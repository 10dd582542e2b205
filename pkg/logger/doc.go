// Package logger builds configured log/slog loggers with consistent
// attribute helpers.
//
// New applies functional options over production-safe defaults (JSON at INFO
// on stdout); NewFromConfig drives the same options from environment
// variables via Config. Attribute helpers (Error, TaskID, Queue, Channel and
// friends) keep log keys uniform across packages.
//
// Usage:
//
//	log := logger.New(
//		logger.WithService("support-bot"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//	log.Info("task enqueued", logger.TaskID(task.ID), logger.Queue("notifications"))
package logger
