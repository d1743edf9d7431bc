package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enos-mapping-backend/internal/point"
)

func TestDecodeTaskStatus_FlatShape(t *testing.T) {
	body := []byte(`{
		"status": "completed",
		"batchMode": true,
		"totalBatches": 4,
		"completedBatches": 4,
		"mappings": [{
			"rawPointId": "p1",
			"rawPointName": "FCU-B1-46A.RoomTemp",
			"unit": "degC",
			"deviceClass": "FCU",
			"deviceInstance": "B1-46A",
			"category": "zoneTemperature",
			"schemaPath": "FCU_raw_zone_air_temp",
			"confidence": 0.94
		}],
		"stats": {"total": 1, "mapped": 1, "errors": 0, "deviceCount": 1, "deviceTypeCount": 1}
	}`)

	status, err := decodeTaskStatus(body)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, status.Status)
	assert.True(t, status.BatchMode)
	assert.InDelta(t, 1.0, status.Progress, 1e-9)
	require.Len(t, status.Mappings, 1)

	m := status.Mappings[0]
	assert.Equal(t, "p1", m.RawPointID)
	assert.Equal(t, point.DeviceFCU, m.DeviceClass)
	assert.Equal(t, "B1-46A", m.DeviceInstance)
	assert.Equal(t, point.SourceRemote, m.Source)
	assert.Equal(t, point.StatusMapped, m.Status)
	assert.Equal(t, 0.94, m.Confidence)

	require.NotNil(t, status.Stats)
	assert.Equal(t, 1, status.Stats.Mapped)
}

func TestDecodeTaskStatus_NestedShape(t *testing.T) {
	body := []byte(`{
		"status": "completed",
		"mappings": [{
			"original": {"pointId": "p2", "pointName": "AHU1.SupplyTemp", "unit": "degC"},
			"mapping": {
				"deviceClass": "AHU",
				"deviceInstance": "1",
				"category": "supplyTemperature",
				"schemaPath": "AHU_raw_supply_air_temp",
				"confidence": 1.4
			}
		}]
	}`)

	status, err := decodeTaskStatus(body)
	require.NoError(t, err)
	require.Len(t, status.Mappings, 1)

	m := status.Mappings[0]
	assert.Equal(t, "p2", m.RawPointID)
	assert.Equal(t, "AHU1.SupplyTemp", m.RawPointName)
	assert.Equal(t, point.DeviceAHU, m.DeviceClass)
	assert.Equal(t, point.SourceRemote, m.Source)
	// Out-of-range confidence is clamped at the boundary.
	assert.Equal(t, 1.0, m.Confidence)
}

func TestDecodeTaskStatus_ExplicitProgressWins(t *testing.T) {
	body := []byte(`{"status": "processing", "progress": 0.25, "totalBatches": 2, "completedBatches": 1}`)

	status, err := decodeTaskStatus(body)
	require.NoError(t, err)
	assert.Equal(t, 0.25, status.Progress)
	assert.True(t, status.Processing())
}

func TestDecodeTaskStatus_ProgressFromBatches(t *testing.T) {
	body := []byte(`{"status": "processing", "totalBatches": 4, "completedBatches": 1}`)

	status, err := decodeTaskStatus(body)
	require.NoError(t, err)
	assert.Equal(t, 0.25, status.Progress)
}

func TestDecodeTaskStatus_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"not json", `<html>504</html>`},
		{"missing status", `{"mappings": []}`},
		{"nested without mapping object", `{"status": "completed", "mappings": [{"original": {"pointId": "p1"}}]}`},
		{"flat without point id", `{"status": "completed", "mappings": [{"deviceClass": "AHU"}]}`},
		{"nested empty point id", `{"status": "completed", "mappings": [{"original": {"pointId": ""}, "mapping": {}}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeTaskStatus([]byte(tc.body))
			require.Error(t, err)
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecodeTaskStatus_ErrorFieldAsMessage(t *testing.T) {
	body := []byte(`{"status": "failed", "error": "model overloaded"}`)

	status, err := decodeTaskStatus(body)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)
	assert.False(t, status.Succeeded())
	assert.Equal(t, "model overloaded", status.Message)
}

func TestDecodeMapping_DefaultsUnknownClass(t *testing.T) {
	m, err := decodeMapping(wireMapping{RawPointID: "p9", Category: "generic"})
	require.NoError(t, err)
	assert.Equal(t, point.DeviceUnknown, m.DeviceClass)
	assert.Equal(t, point.StatusMapped, m.Status)
}
