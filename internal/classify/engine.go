package classify

import (
	"enos-mapping-backend/internal/point"
	"enos-mapping-backend/internal/parse"
)

// Generic-category penalty applied by the confidence scorer.
const (
	genericPenalty  = 0.15
	confidenceFloor = 0.6
)

// scoreConfidence applies the fixed penalty whenever classification fell back
// to the generic category or the device class is unknown. The result is
// floored at 0.6 and always clamped to [0, 1].
func scoreConfidence(base float64, category string, class point.DeviceClass) float64 {
	conf := base
	if category == point.CategoryGeneric || class == point.DeviceUnknown {
		conf -= genericPenalty
		if conf < confidenceFloor {
			conf = confidenceFloor
		}
	}
	return point.ClampConfidence(conf)
}

// Engine is the local fallback classifier: a pure, deterministic composition
// of the parser, the device normalizer, the category rules and the schema
// resolver. It holds no state, performs no I/O and is safe to call from
// concurrent orchestrations.
type Engine struct{}

// NewEngine creates a local classification engine.
func NewEngine() *Engine {
	return &Engine{}
}

// MapPoint classifies a single raw point. Classification problems never
// surface as errors; they accumulate on the mapping as issues. Only an
// unparseable name yields a mapping with error status.
func (e *Engine) MapPoint(rp point.RawPoint) point.Mapping {
	m := point.Mapping{
		RawPointID:   rp.ID,
		RawPointName: rp.Name,
		Unit:         rp.Unit,
		Source:       point.SourceLocalFallback,
		Status:       point.StatusMapped,
	}

	parsed, err := parse.Identifier(rp.Name)
	if err != nil {
		m.Status = point.StatusError
		m.DeviceClass = point.DeviceUnknown
		m.Issues = append(m.Issues, point.IssueUnknownDeviceType, point.IssueUnknownCategory)
		return m
	}

	class := NormalizeDeviceClass(parsed.DeviceTypeToken)
	if class == point.DeviceUnknown && rp.DeviceType != "" {
		// The upload may declare a device type the name does not carry.
		class = NormalizeDeviceClass(rp.DeviceType)
	}
	m.DeviceClass = class
	m.DeviceInstance = parsed.DeviceInstanceToken
	if m.DeviceInstance == "" && rp.DeviceID != "" {
		m.DeviceInstance = rp.DeviceID
	}
	if class == point.DeviceUnknown {
		m.Issues = append(m.Issues, point.IssueUnknownDeviceType)
	}

	matched, ok := classifyCategory(class, parsed.ResidualText)
	if !ok {
		matched = rule{category: point.CategoryGeneric, fragment: point.CategoryGeneric, confidence: genericConfidence}
		m.Issues = append(m.Issues, point.IssueGenericFallback)
	}
	m.Category = matched.category

	prefix := string(class)
	if class == point.DeviceUnknown {
		prefix = parsed.DeviceTypeToken
	}
	m.SchemaPath = ComposePath(prefix, matched.fragment, matched.write)
	if !PathValid(class, m.SchemaPath) {
		m.Issues = append(m.Issues, point.IssueInvalidSchemaPath)
	}

	m.Confidence = scoreConfidence(matched.confidence, m.Category, class)
	return m
}

// MapPoints classifies a whole upload. Identical input always yields an
// identical batch.
func (e *Engine) MapPoints(points []point.RawPoint) point.MappingBatch {
	batch := point.MappingBatch{Mappings: make([]point.Mapping, 0, len(points))}
	for _, rp := range points {
		batch.Mappings = append(batch.Mappings, e.MapPoint(rp))
	}
	batch.Recompute()
	return batch
}
