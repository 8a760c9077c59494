package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a single insert attempt. It must generate a fresh ID on every call.
type Operation func() error

// IsRetryable decides whether a failed attempt should be repeated.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

// Try runs op, retrying on _id collisions with DefaultMaxRetries.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsIDCollision)
}

// WithRetries runs op once plus up to maxRetries more times while retryable(err) holds.
// A short incremental backoff separates attempts; a cancelled ctx stops early.
func WithRetries(ctx context.Context, op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(50*(attempt+1)) * time.Millisecond):
		}
	}
	return err
}

// IsMongoDuplicateKeyError reports any E11000 error, whichever index caused it.
func IsMongoDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsIDCollision reports a duplicate key on the primary key only, so that unique
// secondary indexes (users.email) surface instead of being retried.
func IsIDCollision(err error) bool {
	return IsDuplicateKeyOn(err, "_id_")
}

// IsDuplicateKeyOn reports whether err is a duplicate key violation of the named index.
func IsDuplicateKeyOn(err error, index string) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 && strings.Contains(e.Message, "index: "+index+" ") {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 && strings.Contains(e.Message, "index: "+index+" ") {
				return true
			}
		}
	}
	return false
}
