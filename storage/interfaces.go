package storage

import (
	"time"

	"discount-harvester/models"
)

// Mirror receives a copy of every successfully persisted dataset write.
// Mirror failures are logged by callers and never fail a run.
type Mirror interface {
	MirrorHarvest(records []models.HarvestRecord) error
	MirrorDiscrepancies(day time.Time, records []models.DiscrepancyRecord) error
	Close() error
}
