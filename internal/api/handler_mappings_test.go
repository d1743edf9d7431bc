package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"enos-mapping-backend/config"
	"enos-mapping-backend/internal/classify"
	"enos-mapping-backend/internal/model"
	"enos-mapping-backend/internal/orchestrator"
	"enos-mapping-backend/internal/point"
	"enos-mapping-backend/internal/store"
)

// stubMapper lets a test script the orchestration outcome.
type stubMapper struct {
	runFn     func(points []point.RawPoint) *orchestrator.Result
	improveFn func(points []point.RawPoint, batch *point.MappingBatch, filter point.QualityFilter) *orchestrator.Result
}

func (m *stubMapper) Run(ctx context.Context, points []point.RawPoint, _ map[string]any) *orchestrator.Result {
	return m.runFn(points)
}

func (m *stubMapper) Improve(ctx context.Context, points []point.RawPoint, batch *point.MappingBatch, filter point.QualityFilter) *orchestrator.Result {
	return m.improveFn(points, batch, filter)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.MappingTask{},
		&model.MappingRecord{},
		&model.PushSubscription{},
	))
	return store.NewGormStore(db)
}

// localMapper is a real orchestrator with the remote disabled: every run
// lands in the local fallback.
func localMapper() Mapper {
	return orchestrator.New(nil, classify.NewEngine(), orchestrator.Config{Enabled: false})
}

func newTestRouter(t *testing.T, s store.Store, mapper Mapper) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	}
	return NewRouter(cfg, s, mapper, classify.NewEngine(), nil, &webpush.Options{VAPIDPublicKey: "test-public-key"})
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPostMappings(t *testing.T) {
	s := newTestStore(t)
	router := newTestRouter(t, s, localMapper())

	w := postJSON(t, router, "/api/mappings", gin.H{"points": []gin.H{
		{"id": "p1", "name": "FCU-B1-46A.RoomTemp", "unit": "degC"},
		{"id": "p2", "name": "AHU1.SupplyTemp", "unit": "degC"},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp mappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, point.SourceLocalFallback, resp.Source)
	require.Len(t, resp.Mappings, 2)
	assert.Equal(t, "FCU_raw_zone_air_temp", resp.Mappings[0].SchemaPath)
	assert.Equal(t, 2, resp.Stats.Mapped)

	// The run is persisted and readable back.
	task, err := s.GetTask(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFallback, task.Status)
}

func TestPostMappings_BadInput(t *testing.T) {
	router := newTestRouter(t, newTestStore(t), localMapper())

	testCases := []struct {
		name string
		body gin.H
	}{
		{"no points", gin.H{}},
		{"empty points", gin.H{"points": []gin.H{}}},
		{"missing id", gin.H{"points": []gin.H{{"name": "AHU1.SupplyTemp"}}}},
		{"missing name", gin.H{"points": []gin.H{{"id": "p1"}}}},
		{"duplicate id", gin.H{"points": []gin.H{
			{"id": "p1", "name": "AHU1.SupplyTemp"},
			{"id": "p1", "name": "AHU2.SupplyTemp"},
		}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, router, "/api/mappings", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPostMappings_RemoteValidationFailure(t *testing.T) {
	mapper := &stubMapper{
		runFn: func([]point.RawPoint) *orchestrator.Result {
			return &orchestrator.Result{Success: false, State: orchestrator.StateFailed, Message: "rejected upstream"}
		},
	}
	router := newTestRouter(t, newTestStore(t), mapper)

	w := postJSON(t, router, "/api/mappings", gin.H{"points": []gin.H{
		{"id": "p1", "name": "AHU1.SupplyTemp"},
	}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp mappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "rejected upstream", resp.Message)
}

func TestPostLocalMappings(t *testing.T) {
	s := newTestStore(t)
	router := newTestRouter(t, s, localMapper())

	w := postJSON(t, router, "/api/mappings/local", gin.H{"points": []gin.H{
		{"id": "p1", "name": "CH_2_ChwsTemp"},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp mappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.TaskID, "local-")
	require.Len(t, resp.Mappings, 1)
	assert.Equal(t, "CH_raw_chws_temp", resp.Mappings[0].SchemaPath)
}

func TestGetMappingTask(t *testing.T) {
	s := newTestStore(t)
	router := newTestRouter(t, s, localMapper())

	w := postJSON(t, router, "/api/mappings", gin.H{"points": []gin.H{
		{"id": "p1", "name": "PUMP-01.RunStatus"},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	var created mappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = get(router, "/api/mappings/"+created.TaskID)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Task     model.MappingTask `json:"task"`
		Mappings []point.Mapping   `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.TaskID, resp.Task.TaskID)
	require.Len(t, resp.Mappings, 1)
	assert.Equal(t, "PUMP_raw_run_status", resp.Mappings[0].SchemaPath)

	w = get(router, "/api/mappings/does-not-exist")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListMappingTasks(t *testing.T) {
	s := newTestStore(t)
	router := newTestRouter(t, s, localMapper())

	for i := 0; i < 3; i++ {
		w := postJSON(t, router, "/api/mappings", gin.H{"points": []gin.H{
			{"id": "p1", "name": "AHU1.SupplyTemp"},
		}})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := get(router, "/api/mappings?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tasks []model.MappingTask `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 2)

	w = get(router, "/api/mappings?limit=nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetQualityReport(t *testing.T) {
	s := newTestStore(t)
	router := newTestRouter(t, s, localMapper())

	w := postJSON(t, router, "/api/mappings", gin.H{"points": []gin.H{
		{"id": "p1", "name": "FCU-B1-46A.RoomTemp"},
		{"id": "p2", "name": "XYZ_999.Foo"},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	var created mappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = get(router, "/api/mappings/"+created.TaskID+"/quality")
	require.Equal(t, http.StatusOK, w.Code)

	var report point.QualityReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, created.TaskID, report.TaskID)
	assert.Equal(t, 1, report.Summary[point.TierExcellent])
	assert.Len(t, report.PoorQuality, 1)
}

func TestPostImprove(t *testing.T) {
	s := newTestStore(t)

	improved := &orchestrator.Result{}
	mapper := &stubMapper{
		runFn: func(points []point.RawPoint) *orchestrator.Result {
			return localMapper().Run(context.Background(), points, nil)
		},
		improveFn: func(points []point.RawPoint, batch *point.MappingBatch, filter point.QualityFilter) *orchestrator.Result {
			clone := *batch
			clone.Task.TaskID = "task-improved"
			improved = &orchestrator.Result{
				Success: true,
				State:   orchestrator.StateCompleted,
				TaskID:  "task-improved",
				Source:  point.SourceRemote,
				Batch:   &clone,
			}
			return improved
		},
	}
	router := newTestRouter(t, s, mapper)

	w := postJSON(t, router, "/api/mappings", gin.H{"points": []gin.H{
		{"id": "p1", "name": "XYZ_999.Foo"},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	var created mappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = postJSON(t, router, "/api/mappings/"+created.TaskID+"/improve", gin.H{"filter_quality": "below_fair"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp mappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "task-improved", resp.TaskID)

	// The original task is superseded.
	task, err := s.GetTask(context.Background(), created.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSuperseded, task.Status)

	w = postJSON(t, router, "/api/mappings/"+created.TaskID+"/improve", gin.H{"filter_quality": "terrible"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/mappings/missing/improve", gin.H{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportMappings(t *testing.T) {
	s := newTestStore(t)
	router := newTestRouter(t, s, localMapper())

	w := postJSON(t, router, "/api/mappings", gin.H{"points": []gin.H{
		{"id": "p1", "name": "CT-1.FanSpeed"},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	var created mappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = get(router, "/api/mappings/"+created.TaskID+"/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.TaskID)
	assert.NotEmpty(t, w.Body.Bytes())

	w = get(router, "/api/mappings/missing/export")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
