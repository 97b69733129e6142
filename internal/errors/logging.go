package errors

import (
	"github.com/sirupsen/logrus"
)

// Fields extracts structured log fields from an AppError so call sites can
// attach the error taxonomy to their log entries.
func Fields(err error) logrus.Fields {
	fields := logrus.Fields{}
	appErr, ok := err.(*AppError)
	if !ok {
		return fields
	}

	fields["error_code"] = appErr.Code
	fields["retryable"] = appErr.Retryable
	for k, v := range appErr.Context {
		fields[k] = v
	}
	return fields
}

// LogError logs an error with its structured context attached.
func LogError(logger logrus.FieldLogger, err error, message string) {
	logger.WithError(err).WithFields(Fields(err)).Error(message)
}

// LogWarn logs a retryable or otherwise non-fatal error at warn level.
func LogWarn(logger logrus.FieldLogger, err error, message string) {
	logger.WithError(err).WithFields(Fields(err)).Warn(message)
}
