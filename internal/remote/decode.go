package remote

import (
	"encoding/json"
	"fmt"

	"enos-mapping-backend/internal/point"
)

// The service has shipped two response shapes for individual mappings: the
// current flat record, and a legacy nested {original, mapping} pair kept for
// backward compatibility. Both are normalized here into point.Mapping; the
// rest of the codebase only ever sees the canonical record.

type wireTaskStatus struct {
	Status           string        `json:"status"`
	BatchMode        bool          `json:"batchMode"`
	TotalBatches     int           `json:"totalBatches"`
	CompletedBatches int           `json:"completedBatches"`
	Progress         *float64      `json:"progress"`
	Mappings         []wireMapping `json:"mappings"`
	Stats            *wireStats    `json:"stats"`
	Message          string        `json:"message"`
	Error            string        `json:"error"`
}

type wireStats struct {
	Total           int `json:"total"`
	Mapped          int `json:"mapped"`
	Errors          int `json:"errors"`
	DeviceCount     int `json:"deviceCount"`
	DeviceTypeCount int `json:"deviceTypeCount"`
}

type wireMapping struct {
	// Flat shape.
	RawPointID     string  `json:"rawPointId"`
	RawPointName   string  `json:"rawPointName"`
	Unit           string  `json:"unit"`
	DeviceClass    string  `json:"deviceClass"`
	DeviceInstance string  `json:"deviceInstance"`
	Category       string  `json:"category"`
	SchemaPath     string  `json:"schemaPath"`
	Confidence     float64 `json:"confidence"`
	Status         string  `json:"status"`

	// Legacy nested shape.
	Original *wireOriginalPoint `json:"original"`
	Mapping  *wireMappingTarget `json:"mapping"`
}

type wireOriginalPoint struct {
	PointID   string `json:"pointId"`
	PointName string `json:"pointName"`
	Unit      string `json:"unit"`
}

type wireMappingTarget struct {
	DeviceClass    string  `json:"deviceClass"`
	DeviceInstance string  `json:"deviceInstance"`
	Category       string  `json:"category"`
	SchemaPath     string  `json:"schemaPath"`
	Confidence     float64 `json:"confidence"`
	Status         string  `json:"status"`
}

// decodeTaskStatus turns a raw poll response body into a TaskStatus or a
// structured decode error.
func decodeTaskStatus(body []byte) (*TaskStatus, error) {
	var wire wireTaskStatus
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	if wire.Status == "" {
		return nil, &DecodeError{Reason: "missing status field"}
	}

	status := &TaskStatus{
		Status:           wire.Status,
		BatchMode:        wire.BatchMode,
		TotalBatches:     wire.TotalBatches,
		CompletedBatches: wire.CompletedBatches,
		Message:          wire.Message,
	}
	if status.Message == "" {
		status.Message = wire.Error
	}

	switch {
	case wire.Progress != nil:
		status.Progress = *wire.Progress
	case wire.TotalBatches > 0:
		status.Progress = float64(wire.CompletedBatches) / float64(wire.TotalBatches)
	}

	for i, wm := range wire.Mappings {
		m, err := decodeMapping(wm)
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("mapping %d: %v", i, err)}
		}
		status.Mappings = append(status.Mappings, m)
	}

	if wire.Stats != nil {
		status.Stats = &point.Stats{
			Total:           wire.Stats.Total,
			Mapped:          wire.Stats.Mapped,
			Errors:          wire.Stats.Errors,
			DeviceCount:     wire.Stats.DeviceCount,
			DeviceTypeCount: wire.Stats.DeviceTypeCount,
		}
	}

	return status, nil
}

// decodeMapping normalizes either wire shape into the canonical record.
func decodeMapping(w wireMapping) (point.Mapping, error) {
	if w.Original != nil || w.Mapping != nil {
		if w.Original == nil || w.Mapping == nil {
			return point.Mapping{}, fmt.Errorf("nested shape requires both original and mapping objects")
		}
		if w.Original.PointID == "" {
			return point.Mapping{}, fmt.Errorf("nested shape has empty original.pointId")
		}
		return normalizeMapping(point.Mapping{
			RawPointID:     w.Original.PointID,
			RawPointName:   w.Original.PointName,
			Unit:           w.Original.Unit,
			DeviceClass:    point.DeviceClass(w.Mapping.DeviceClass),
			DeviceInstance: w.Mapping.DeviceInstance,
			Category:       w.Mapping.Category,
			SchemaPath:     w.Mapping.SchemaPath,
			Confidence:     w.Mapping.Confidence,
			Status:         point.Status(w.Mapping.Status),
		}), nil
	}

	if w.RawPointID == "" {
		return point.Mapping{}, fmt.Errorf("flat shape has empty rawPointId")
	}
	return normalizeMapping(point.Mapping{
		RawPointID:     w.RawPointID,
		RawPointName:   w.RawPointName,
		Unit:           w.Unit,
		DeviceClass:    point.DeviceClass(w.DeviceClass),
		DeviceInstance: w.DeviceInstance,
		Category:       w.Category,
		SchemaPath:     w.SchemaPath,
		Confidence:     w.Confidence,
		Status:         point.Status(w.Status),
	}), nil
}

func normalizeMapping(m point.Mapping) point.Mapping {
	m.Source = point.SourceRemote
	if m.Status == "" {
		m.Status = point.StatusMapped
	}
	if m.DeviceClass == "" {
		m.DeviceClass = point.DeviceUnknown
	}
	m.Confidence = point.ClampConfidence(m.Confidence)
	return m
}
