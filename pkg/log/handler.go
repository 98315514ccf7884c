package log

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var stackOnce sync.Once

// installStackMarshaler teaches zerolog's Stack() to render cockroachdb stack
// traces under the "stack" key.
func installStackMarshaler() {
	stackOnce.Do(func() {
		zerolog.ErrorStackMarshaler = extractStacktrace
	})
}

// extractStacktrace returns the first safe detail found while unwrapping err;
// for errors built with errors.WithStack that is the formatted stack.
func extractStacktrace(err error) interface{} {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if details := errors.GetSafeDetails(e).SafeDetails; len(details) > 0 {
			return details[0]
		}
	}
	return nil
}
