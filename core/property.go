package core

import "context"

// PropertyStore keeps small JSON values such as worker cursors.
type PropertyStore interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any) error
}
