package storage

import (
	"time"

	"github.com/rotisserie/eris"

	"discount-harvester/models"
	"discount-harvester/utils"
)

// HarvestLog is the incremental persistence store of one harvest run. Rows
// are written after every series so a later crash never loses them.
//
// The first append of a run replaces the day's file, except when the file
// already holds rows: then the run is resuming and merges instead.
// Writers are assumed to be serialized by the caller.
type HarvestLog struct {
	dataset  *PrimaryDataset
	mirror   Mirror
	logger   utils.EventSink
	day      time.Time
	resuming bool
	appended bool
	// seen holds the {date, series} dedup keys written so far.
	seen     map[string]struct{}
}

// OpenHarvestLog loads the dedup keys already present for day.
func OpenHarvestLog(dataset *PrimaryDataset, day time.Time, mirror Mirror, logger utils.EventSink) (*HarvestLog, error) {
	h := &HarvestLog{
		dataset: dataset,
		mirror:  mirror,
		logger:  logger,
		day:     day,
		seen:    make(map[string]struct{}),
	}

	existing, err := dataset.Load(day)
	switch {
	case err == nil:
	case eris.Is(err, ErrNotFound):
		return h, nil
	default:
		return nil, eris.Wrap(err, "harvest log: load existing rows")
	}

	for _, r := range existing {
		if r.CollectedOn(day) {
			h.seen[r.DedupKey()] = struct{}{}
		}
	}
	h.resuming = len(existing) > 0
	if h.resuming {
		logger.Info("[store] Resuming %s: %d rows, %d series already collected",
			PrimaryName(day), len(existing), len(h.seen))
	}
	return h, nil
}

// Day is the collection date of the run.
func (h *HarvestLog) Day() time.Time {
	return h.day
}

// Collected reports whether series already has rows for the run's date.
func (h *HarvestLog) Collected(series string) bool {
	_, ok := h.seen[models.DedupKeyFor(h.day, series)]
	return ok
}

// Append persists one series' rows. On failure the previous file is left
// untouched and the rows are not marked collected.
func (h *HarvestLog) Append(records []models.HarvestRecord) error {
	if len(records) == 0 {
		return nil
	}

	replace := !h.appended && !h.resuming
	total, err := h.dataset.Append(h.day, records, replace)
	if err != nil {
		return err
	}
	h.appended = true
	for _, r := range records {
		h.seen[r.DedupKey()] = struct{}{}
	}
	h.logger.Info("[store] %s: +%d rows, %d total", PrimaryName(h.day), len(records), total)

	if h.mirror != nil {
		if err := h.mirror.MirrorHarvest(records); err != nil {
			h.logger.Warn("[store] mirror harvest rows failed: %v", err)
		}
	}
	return nil
}
