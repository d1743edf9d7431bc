package point

// QualityTier is a coarse grade of mapping trustworthiness derived from the
// accumulated issues. It is always recomputed from the issues, never cached.
type QualityTier string

const (
	TierExcellent    QualityTier = "excellent"
	TierGood         QualityTier = "good"
	TierFair         QualityTier = "fair"
	TierPoor         QualityTier = "poor"
	TierUnacceptable QualityTier = "unacceptable"
)

// PathValidator reports whether a composed schema path is on the accepted
// whitelist for a device class. The whitelist itself lives with the schema
// resolver; the assessor only needs the membership test.
type PathValidator func(class DeviceClass, schemaPath string) bool

// Assess derives the issue list for a single mapping from its fields.
func Assess(m Mapping, valid PathValidator) []Issue {
	var issues []Issue
	if m.DeviceClass == "" || m.DeviceClass == DeviceUnknown {
		issues = append(issues, IssueUnknownDeviceType)
	}
	// A generic category means classification never resolved a real
	// category, so it counts as unknown in addition to the fallback marker.
	if m.Category == "" || m.Category == CategoryGeneric {
		issues = append(issues, IssueUnknownCategory)
	}
	if m.Category == CategoryGeneric {
		issues = append(issues, IssueGenericFallback)
	}
	if valid != nil && !valid(m.DeviceClass, m.SchemaPath) {
		issues = append(issues, IssueInvalidSchemaPath)
	}
	return issues
}

// TierFor grades an issue list. The thresholds are fixed:
// 0 issues is excellent, a single issue other than unknownCategory is good,
// up to 2 is fair, up to 3 is poor, anything beyond is unacceptable.
func TierFor(issues []Issue) QualityTier {
	switch n := len(issues); {
	case n == 0:
		return TierExcellent
	case n == 1 && issues[0] != IssueUnknownCategory:
		return TierGood
	case n <= 2:
		return TierFair
	case n <= 3:
		return TierPoor
	default:
		return TierUnacceptable
	}
}

// PoorPoint identifies a mapping graded poor or unacceptable, the candidate
// set for an improvement pass.
type PoorPoint struct {
	RawPointID   string      `json:"rawPointId"`
	RawPointName string      `json:"rawPointName"`
	Tier         QualityTier `json:"tier"`
	Issues       []Issue     `json:"issues"`
}

// QualityReport summarizes the quality of a completed batch.
type QualityReport struct {
	TaskID      string              `json:"taskId,omitempty"`
	Summary     map[QualityTier]int `json:"qualitySummary"`
	PoorQuality []PoorPoint         `json:"pointsWithPoorQuality"`
}

// AssessBatch inspects every mapping of a batch, re-deriving issues and tiers
// from the mapping fields.
func AssessBatch(b *MappingBatch, valid PathValidator) QualityReport {
	report := QualityReport{
		TaskID:      b.Task.TaskID,
		Summary:     make(map[QualityTier]int),
		PoorQuality: []PoorPoint{},
	}
	for _, m := range b.Mappings {
		issues := Assess(m, valid)
		tier := TierFor(issues)
		report.Summary[tier]++
		if tier == TierPoor || tier == TierUnacceptable {
			report.PoorQuality = append(report.PoorQuality, PoorPoint{
				RawPointID:   m.RawPointID,
				RawPointName: m.RawPointName,
				Tier:         tier,
				Issues:       issues,
			})
		}
	}
	return report
}

// QualityFilter selects which tiers an improvement pass re-processes.
type QualityFilter string

const (
	FilterPoor         QualityFilter = "poor"
	FilterUnacceptable QualityFilter = "unacceptable"
	FilterBelowFair    QualityFilter = "below_fair"
	FilterAll          QualityFilter = "all"
)

// Valid reports whether the filter is one of the accepted values.
func (f QualityFilter) Valid() bool {
	switch f {
	case FilterPoor, FilterUnacceptable, FilterBelowFair, FilterAll:
		return true
	}
	return false
}

// Matches reports whether a mapping of the given tier is selected by the filter.
func (f QualityFilter) Matches(t QualityTier) bool {
	switch f {
	case FilterAll:
		return true
	case FilterPoor:
		return t == TierPoor
	case FilterUnacceptable:
		return t == TierUnacceptable
	case FilterBelowFair:
		return t == TierPoor || t == TierUnacceptable
	}
	return false
}
