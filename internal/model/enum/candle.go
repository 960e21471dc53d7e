package enum

// Provenance live, historical, synthetic
type Provenance uint8

const (
	_provenance_beg Provenance = iota
	ProvenanceLive
	ProvenanceHistorical
	ProvenanceSynthetic
	_provenance_end
)

func (p Provenance) IsAvailable() bool {
	return p > _provenance_beg && p < _provenance_end
}

func (p Provenance) String() string {
	switch p {
	case ProvenanceLive:
		return "live"
	case ProvenanceHistorical:
		return "historical"
	case ProvenanceSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}
