package ports

import "github.com/ghalamif/perfwatch/internal/domain"

// Transformer rewrites readings (calibration, unit conversion) before they reach a sink.
type Transformer interface {
	Transform(*domain.Reading) (*domain.Reading, error)
	Version() uint16
}
