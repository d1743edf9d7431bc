package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"enos-mapping-backend/internal/point"
)

func TestExcel(t *testing.T) {
	batch := &point.MappingBatch{
		Task: point.TaskMeta{TaskID: "task-1"},
		Mappings: []point.Mapping{
			{
				RawPointID: "p1", RawPointName: "FCU-B1-46A.RoomTemp", Unit: "degC",
				DeviceClass: point.DeviceFCU, DeviceInstance: "B1-46A",
				Category: "zoneTemperature", SchemaPath: "FCU_raw_zone_air_temp",
				Confidence: 0.94, Source: point.SourceRemote, Status: point.StatusMapped,
			},
			{
				RawPointID: "p2", RawPointName: "XYZ_999.Foo",
				DeviceClass: point.DeviceUnknown, Category: point.CategoryGeneric,
				SchemaPath: "XYZ_raw_generic", Confidence: 0.6,
				Source: point.SourceLocalFallback, Status: point.StatusMapped,
				Issues: []point.Issue{point.IssueUnknownDeviceType, point.IssueGenericFallback},
			},
		},
	}

	data, err := Excel(batch)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Mappings")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Point ID", rows[0][0])
	assert.Equal(t, "Schema Path", rows[0][6])

	assert.Equal(t, "p1", rows[1][0])
	assert.Equal(t, "FCU_raw_zone_air_temp", rows[1][6])
	assert.Equal(t, "remote", rows[1][8])
	assert.Equal(t, "excellent", rows[1][10])

	assert.Equal(t, "XYZ_raw_generic", rows[2][6])
	assert.Equal(t, "unacceptable", rows[2][10])
	assert.Equal(t, "unknownDeviceType, unknownCategory, genericFallbackUsed, invalidSchemaPath", rows[2][11])
}

func TestExcel_EmptyBatch(t *testing.T) {
	data, err := Excel(&point.MappingBatch{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Mappings")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
