package techrecord

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(store RowStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewHTTPServerWithStore(store, nil).RegisterRoutes(engine)
	return engine
}

func TestGetTechRecordsNotFoundEmptyBody(t *testing.T) {
	engine := newTestRouter(newFakeStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/vehicles/NOPE/tech-records", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", w.Body.String())
	}
}

func TestGetTechRecordsInvalidStatus(t *testing.T) {
	engine := newTestRouter(newFakeStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/vehicles/VIN-1/tech-records?status=bogus", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateThenGetSingleVehicle(t *testing.T) {
	store := newFakeStore()
	engine := newTestRouter(store)

	payload := map[string]any{
		"vin":           "ABCDEFGH654321",
		"primaryVrm":    "ALKH567",
		"secondaryVrms": []string{"POI9876"},
		"techRecord": []map[string]any{
			{"vehicleType": "hgv", "grossEecWeight": 22},
		},
		"msUserDetails": map[string]any{"msUser": "tester", "msOid": "oid-1"},
	}
	body, _ := json.Marshal(payload)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vehicles", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// 默认 status（provisional_over_current）查回刚创建的草稿
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/vehicles/ABCDEFGH654321/tech-records?searchCriteria=vin", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var vehicle map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &vehicle); err != nil {
		t.Fatalf("unmarshal single vehicle: %v", err)
	}
	recs, ok := vehicle["techRecord"].([]any)
	if !ok || len(recs) != 1 {
		t.Fatalf("expected one tech record, got %#v", vehicle["techRecord"])
	}
	rec := recs[0].(map[string]any)
	if rec["statusCode"] != "provisional" {
		t.Fatalf("expected provisional, got %v", rec["statusCode"])
	}
	if rec["createdByName"] != "tester" || rec["createdById"] != "oid-1" {
		t.Fatalf("audit fields missing: %#v", rec)
	}
	vrms, ok := vehicle["vrms"].([]any)
	if !ok || len(vrms) != 2 {
		t.Fatalf("expected merged vrms, got %#v", vehicle["vrms"])
	}
	first := vrms[0].(map[string]any)
	if first["vrm"] != "ALKH567" || first["isPrimary"] != true {
		t.Fatalf("primary vrm wrong: %#v", first)
	}
	if _, leaked := vehicle["primaryVrm"]; leaked {
		t.Fatalf("raw primaryVrm leaked into response")
	}
}

func TestUpdateRequiresReason(t *testing.T) {
	store := newFakeStore()
	engine := newTestRouter(store)

	body, _ := json.Marshal(map[string]any{
		"techRecord": []map[string]any{{"grossWeight": 33}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/vehicles/SYS-1/tech-records", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
