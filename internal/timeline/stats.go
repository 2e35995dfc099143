package timeline

// aggregate sums segment durations into the public status buckets and the
// internal reservation bucket. Reservation time is deliberately excluded
// from the public rollup: the channel is unavailable by plan, and counting
// it against availability would skew mission comparisons.
func aggregate(segments []Segment, advisoryCount int) (Statistics, InternalStatistics) {
	var stats Statistics
	var internal InternalStatistics

	for i := range segments {
		secs := segments[i].DurationSeconds()
		stats.TotalSeconds += secs

		if segments[i].Type == SegmentTypeReservation {
			internal.ReservationSeconds += secs
			internal.ReservationCount++
			continue
		}

		switch segments[i].CombinedStatus {
		case StatusNominal:
			stats.NominalSeconds += secs
		case StatusDegraded:
			stats.DegradedSeconds += secs
		case StatusCritical:
			stats.CriticalSeconds += secs
		case StatusWarning:
			stats.WarningSeconds += secs
		}
	}

	stats.AdvisoryCount = advisoryCount
	return stats, internal
}
