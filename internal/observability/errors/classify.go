// Package errors reduces errors to low-cardinality labels for metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/target/sessiond/internal/domain/auth"
	apperrors "github.com/target/sessiond/internal/errors"
)

var sentinels = []struct {
	err   error
	label string
}{
	{context.DeadlineExceeded, "timeout"},
	{context.Canceled, "canceled"},
	{domainauth.ErrSessionNotFound, "session_not_found"},
	{domainauth.ErrSessionExists, "session_collision"},
	{domainauth.ErrUserNotFound, "user_not_found"},
	{domainauth.ErrEmailTaken, "email_taken"},
	{domainauth.ErrPasswordMismatch, "password_mismatch"},
}

// Classify returns a label for err. Application errors report their code,
// known sentinels a fixed name, and anything else the innermost concrete
// type in snake case.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) && appErr.Code != "" {
		return string(appErr.Code)
	}
	for _, s := range sentinels {
		if goerrors.Is(err, s.err) {
			return s.label
		}
	}

	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
