package errors

// ErrorCategory groups errors by what failed; the CLI derives its exit code
// from it.
type ErrorCategory string

const (
	// Caller input.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryPlugin     ErrorCategory = "plugin"

	// A batch step failed and the stack rolled back.
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryProject    ErrorCategory = "project"
	CategoryRollback   ErrorCategory = "rollback"

	// The batch committed but bookkeeping after it did not.
	CategoryRegistry ErrorCategory = "registry"
	CategoryJournal  ErrorCategory = "journal"

	// Remote systems.
	CategoryGit     ErrorCategory = "git"
	CategoryNetwork ErrorCategory = "network"

	CategoryCanceled ErrorCategory = "canceled"
	CategoryInternal ErrorCategory = "internal"
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryPlugin:     2,
	CategoryNotFound:   3,
	CategoryConfig:     7,
	CategoryGit:        8,
	CategoryNetwork:    8,
	CategoryRegistry:   9,
	CategoryJournal:    9,
	CategoryInternal:   10,
	CategoryFileSystem: 11,
	CategoryProject:    11,
	CategoryRollback:   11,
	CategoryCanceled:   130,
}

// ExitCode is the process exit status for the category, 1 when unmapped.
func (c ErrorCategory) ExitCode() int {
	if code, ok := exitCodes[c]; ok {
		return code
	}
	return 1
}

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells the caller what repeating the operation would achieve.
type RetryStrategy string

const (
	RetryNever RetryStrategy = "never"
	// RetryImmediate: only a cheap tail step failed; rerunning is safe.
	RetryImmediate RetryStrategy = "immediate"
	RetryBackoff   RetryStrategy = "backoff"
	// RetryUserAction: input must change first.
	RetryUserAction RetryStrategy = "user"
)

// ErrorContext is structured detail attached to an error.
type ErrorContext map[string]any

// Get returns the value stored under key.
func (c ErrorContext) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// with returns a copy of c with key set.
func (c ErrorContext) with(key string, value any) ErrorContext {
	out := make(ErrorContext, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[key] = value
	return out
}
