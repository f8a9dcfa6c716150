// Package logging provides structured logging utilities for housemgr.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "gmail.list")
//	logger.Info("listed unread messages",
//	    logging.Count(n),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("message sent",
//	    logging.UserHash(recipient))
//
// # Security Considerations
//
//   - Recipient addresses are hashed to prevent PII leakage while allowing correlation
//   - OAuth tokens are never logged directly, only through SanitizeToken
package logging
