package blogsync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrMissingConfig is wrapped by ConfigError.
	ErrMissingConfig = errors.New("missing required configuration")
	// ErrNoSlug marks documents skipped because their front matter has no slug.
	ErrNoSlug = errors.New("no slug in front matter")
	// ErrUnresolved marks local references whose file does not exist.
	ErrUnresolved = errors.New("reference not found")
	// ErrIneligible marks remote references filtered out by origin.
	ErrIneligible = errors.New("reference not eligible")
	// ErrTooLarge is matched by TooLargeError.
	ErrTooLarge = errors.New("asset exceeds size limit")
)

// ConfigError lists the configuration values that are required but unset.
type ConfigError struct {
	Missing []string
	Reason  string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%v: %s", ErrMissingConfig, strings.Join(e.Missing, ", "))
	}
	return "invalid configuration: " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	if len(e.Missing) > 0 {
		return ErrMissingConfig
	}
	return nil
}

// TooLargeError reports a payload that exceeded the configured cap.
type TooLargeError struct {
	Source string
	Limit  int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s exceeded limit of %d bytes", e.Source, e.Limit)
}

func (e *TooLargeError) Is(target error) bool {
	return target == ErrTooLarge
}

// classifyCheckError maps a transport error to an ErrorClass.
func classifyCheckError(err error) ErrorClass {
	if err == nil {
		return ErrorNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}
	return ErrorNetwork
}
