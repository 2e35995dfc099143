package timeline

import (
	"fmt"
	"sort"
	"time"
)

// buildAdvisories derives one advisory per boundary crossing inside the
// mission window: event starts and ends from the config plus the conflict
// ranges the detector rewrote. Output order is deterministic so repeated
// computations of the same config compare equal.
func buildAdvisories(cfg TransportConfig, conflicts []ConflictRange) []Advisory {
	var advisories []Advisory
	inWindow := func(t time.Time) bool {
		return !t.Before(cfg.MissionStart) && !t.After(cfg.MissionEnd)
	}
	add := func(t time.Time, ev AdvisoryEventType, ch ChannelID, sev AdvisorySeverity, msg string) {
		if inWindow(t) {
			advisories = append(advisories, Advisory{
				Timestamp: t,
				EventType: ev,
				Channel:   ch,
				Severity:  sev,
				Message:   msg,
			})
		}
	}

	for _, ch := range cfg.Channels {
		for _, tr := range ch.Transitions {
			target := tr.ToSatellite
			if target == "" {
				target = "new satellite"
			}
			add(tr.Start, EventTransitionStart, ch.ID, SeverityInfo,
				fmt.Sprintf("%s channel handover to %s begins", ch.ID, target))
			add(tr.End, EventTransitionEnd, ch.ID, SeverityInfo,
				fmt.Sprintf("%s channel handover complete", ch.ID))
		}
		for _, o := range ch.Outages {
			reason := o.Reason
			if reason == "" {
				reason = "scheduled outage"
			}
			add(o.Start, EventOutageStart, ch.ID, SeverityWarning,
				fmt.Sprintf("%s channel offline: %s", ch.ID, reason))
			add(o.End, EventOutageEnd, ch.ID, SeverityInfo,
				fmt.Sprintf("%s channel restored", ch.ID))
		}
		for _, rw := range ch.Reservations {
			purpose := rw.Purpose
			if purpose == "" {
				purpose = "reserved operation"
			}
			add(rw.Start, EventReservationStart, ch.ID, SeverityInfo,
				fmt.Sprintf("%s channel reserved: %s", ch.ID, purpose))
			add(rw.End, EventReservationEnd, ch.ID, SeverityInfo,
				fmt.Sprintf("%s channel released from %s", ch.ID, purpose))
		}
	}

	for _, cr := range conflicts {
		add(cr.Start, EventConflictStart, "", SeverityWarning,
			"Ka/Ku geometric interference window begins")
		add(cr.End, EventConflictEnd, "", SeverityInfo,
			"Ka/Ku geometric interference window ends")
	}

	sort.SliceStable(advisories, func(i, j int) bool {
		if !advisories[i].Timestamp.Equal(advisories[j].Timestamp) {
			return advisories[i].Timestamp.Before(advisories[j].Timestamp)
		}
		if advisories[i].EventType != advisories[j].EventType {
			return advisories[i].EventType < advisories[j].EventType
		}
		return advisories[i].Channel < advisories[j].Channel
	})
	return advisories
}
