package timeline

import (
	"strings"
	"time"
)

// ReasonKaKuInterference is the canonical reason string for the known
// geometric-interference pattern between the Ka and Ku antennas. Planners
// attach it to the degradation event of whichever channel loses the
// geometry argument.
const ReasonKaKuInterference = "Ka/Ku geometric interference"

// ConflictRange marks a run of segments rewritten by the detector
type ConflictRange struct {
	Start time.Time
	End   time.Time
}

// ConflictDetector downgrades the presentation of segments whose only
// degradation is the known Ka/Ku geometric-interference pattern. The
// pattern is operationally routine: the geometry predicts it, crews brief
// it, and painting it as a generic DEGRADED window buries real failures.
// The override rewrites the combined status to WARNING and suppresses the
// impacted list; the underlying channel states are left untouched.
type ConflictDetector struct{}

// NewConflictDetector creates a conflict detector
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// Apply rewrites matching segments in place and returns the time ranges
// it touched, with adjacent ranges coalesced for advisory generation
func (d *ConflictDetector) Apply(segments []Segment) []ConflictRange {
	var ranges []ConflictRange
	for i := range segments {
		if !d.matches(&segments[i]) {
			continue
		}
		segments[i].CombinedStatus = StatusWarning
		segments[i].ImpactedChannels = nil

		if n := len(ranges); n > 0 && ranges[n-1].End.Equal(segments[i].Start) {
			ranges[n-1].End = segments[i].End
		} else {
			ranges = append(ranges, ConflictRange{Start: segments[i].Start, End: segments[i].End})
		}
	}
	return ranges
}

// matches requires a DEGRADED status segment whose single contributing
// reason is the interference pattern, with the degraded channel being Ka
// or Ku. Anything else, including interference stacked on top of another
// failure, keeps its real status.
func (d *ConflictDetector) matches(seg *Segment) bool {
	if seg.Type != SegmentTypeStatus || seg.CombinedStatus != StatusDegraded {
		return false
	}
	if len(seg.Reasons) != 1 || !isInterferenceReason(seg.Reasons[0]) {
		return false
	}
	if len(seg.ImpactedChannels) != 1 {
		return false
	}
	ch := seg.ImpactedChannels[0]
	return ch == ChannelKa || ch == ChannelKu
}

func isInterferenceReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "ka/ku") && strings.Contains(r, "interference")
}
