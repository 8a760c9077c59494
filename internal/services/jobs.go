package services

import (
	"context"

	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// IJobQueue hands work to the background workers. Services treat every
// enqueue as best-effort and only log failures.
type IJobQueue interface {
	EnqueueEmail(ctx context.Context, to, templateID string, data map[string]any) error
	EnqueueImageProcess(ctx context.Context, key string, vehicleID utils.SixID) error
}
