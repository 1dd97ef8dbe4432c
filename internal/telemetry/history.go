package telemetry

import "time"

// dateFormat keys the per-day tables.
const dateFormat = "2006-01-02"

// LoadSnapshot builds a Snapshot from the persisted aggregates of the last
// days days, ending at now. Match and page totals are kept in memory only,
// and ZeroResultCount counts the retained zero-result history.
func LoadSnapshot(s Store, days int, now time.Time) (*Snapshot, error) {
	if days < 1 {
		days = 1
	}
	from := now.AddDate(0, 0, -(days - 1))
	fromKey, toKey := from.Format(dateFormat), now.Format(dateFormat)

	modes, err := s.GetModeCounts(fromKey, toKey)
	if err != nil {
		return nil, err
	}
	latencies, err := s.GetLatencyCounts(fromKey, toKey)
	if err != nil {
		return nil, err
	}
	terms, err := s.GetTopTerms(10)
	if err != nil {
		return nil, err
	}
	zero, err := s.GetZeroResultQueries(maxZeroResultRows)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ModeCounts:          modes,
		TopTerms:            terms,
		LatencyDistribution: latencies,
		ZeroResultCount:     int64(len(zero)),
		Since:               time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, now.Location()),
	}
	for _, n := range modes {
		snap.TotalQueries += n
	}
	if len(zero) > 10 {
		zero = zero[:10]
	}
	snap.ZeroResultQueries = zero
	return snap, nil
}
