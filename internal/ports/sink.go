package ports

import (
	"context"

	"github.com/ghalamif/perfwatch/internal/domain"
)

type Sink interface {
	WriteBatch(ctx context.Context, readings []*domain.Reading) error
	Name() string
}
