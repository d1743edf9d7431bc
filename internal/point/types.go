package point

// RawPoint is a single free-form point identifier exported from a BMS.
// It is produced by the ingestion boundary (parsed CSV/JSON upload) and is
// never modified after creation.
type RawPoint struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Unit       string `json:"unit,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
}

// DeviceClass is the canonical equipment category a point belongs to.
type DeviceClass string

const (
	DeviceAHU     DeviceClass = "AHU"
	DeviceFCU     DeviceClass = "FCU"
	DeviceCH      DeviceClass = "CH"
	DevicePUMP    DeviceClass = "PUMP"
	DeviceCT      DeviceClass = "CT"
	DeviceCHPL    DeviceClass = "CHPL"
	DeviceUnknown DeviceClass = "UNKNOWN"
)

// CategoryGeneric is the catch-all category assigned when no classification
// rule matches the point name.
const CategoryGeneric = "generic"

// Issue is a structured, non-fatal finding attached to a Mapping.
type Issue string

const (
	IssueUnknownDeviceType Issue = "unknownDeviceType"
	IssueUnknownCategory   Issue = "unknownCategory"
	IssueGenericFallback   Issue = "genericFallbackUsed"
	IssueInvalidSchemaPath Issue = "invalidSchemaPath"
)

// Source records which engine produced a Mapping.
type Source string

const (
	SourceRemote        Source = "remote"
	SourceLocalFallback Source = "local-fallback"
)

// Status of an individual Mapping.
type Status string

const (
	StatusMapped Status = "mapped"
	StatusError  Status = "error"
)

// Mapping is the resolved EnOS target for one RawPoint. Mappings are treated
// as immutable; an improvement pass produces a new Mapping for the same
// RawPointID which supersedes the prior one in the batch view.
type Mapping struct {
	RawPointID     string      `json:"rawPointId"`
	RawPointName   string      `json:"rawPointName"`
	Unit           string      `json:"unit,omitempty"`
	DeviceClass    DeviceClass `json:"deviceClass"`
	DeviceInstance string      `json:"deviceInstance,omitempty"`
	Category       string      `json:"category"`
	SchemaPath     string      `json:"schemaPath"`
	Confidence     float64     `json:"confidence"`
	Source         Source      `json:"source"`
	Status         Status      `json:"status"`
	Issues         []Issue     `json:"issues,omitempty"`
}

// HasIssue reports whether the mapping carries the given issue.
func (m Mapping) HasIssue(issue Issue) bool {
	for _, i := range m.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

// Stats are the aggregate counters of a MappingBatch.
type Stats struct {
	Total           int `json:"total"`
	Mapped          int `json:"mapped"`
	Errors          int `json:"errors"`
	DeviceCount     int `json:"deviceCount"`
	DeviceTypeCount int `json:"deviceTypeCount"`
}

// TaskMeta carries the async-task bookkeeping reported by the remote service
// while a batch is being processed.
type TaskMeta struct {
	TaskID           string  `json:"taskId,omitempty"`
	TotalBatches     int     `json:"totalBatches,omitempty"`
	CompletedBatches int     `json:"completedBatches,omitempty"`
	Progress         float64 `json:"progress"`
}

// MappingBatch is the unit of work and result for one mapping request.
type MappingBatch struct {
	Mappings []Mapping `json:"mappings"`
	Stats    Stats     `json:"stats"`
	Task     TaskMeta  `json:"task"`
}

// Upsert replaces the mapping for the same RawPointID if present, otherwise
// appends. Batch order is preserved on replacement.
func (b *MappingBatch) Upsert(m Mapping) {
	for i := range b.Mappings {
		if b.Mappings[i].RawPointID == m.RawPointID {
			b.Mappings[i] = m
			return
		}
	}
	b.Mappings = append(b.Mappings, m)
}

// Find returns the mapping for the given RawPointID, if any.
func (b *MappingBatch) Find(rawPointID string) (Mapping, bool) {
	for _, m := range b.Mappings {
		if m.RawPointID == rawPointID {
			return m, true
		}
	}
	return Mapping{}, false
}

// Recompute rebuilds the aggregate stats from the current mappings.
func (b *MappingBatch) Recompute() {
	stats := Stats{Total: len(b.Mappings)}
	instances := make(map[string]struct{})
	classes := make(map[DeviceClass]struct{})
	for _, m := range b.Mappings {
		if m.Status == StatusError {
			stats.Errors++
		} else {
			stats.Mapped++
		}
		if m.DeviceInstance != "" {
			instances[string(m.DeviceClass)+"/"+m.DeviceInstance] = struct{}{}
		}
		if m.DeviceClass != "" && m.DeviceClass != DeviceUnknown {
			classes[m.DeviceClass] = struct{}{}
		}
	}
	stats.DeviceCount = len(instances)
	stats.DeviceTypeCount = len(classes)
	b.Stats = stats
}

// ClampConfidence bounds a confidence value to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
