// Package logger provides the structured logging interface used across the crawl pipeline.
//
// It wraps zerolog behind a small Logger interface so components receive a logger through
// their constructors and tests can substitute NewTestLogger or NewNopLogger.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("source", src.Name).InfoWithFields("Source crawled", map[string]interface{}{
//	    "extracted": 8,
//	    "saved":     3,
//	})
//
// Console output is coloured unless Logging.JSON is set. When Logging.File is set, entries
// go to both the console and the file. Session material is never passed to the logger.
package logger
