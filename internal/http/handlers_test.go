package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"go-sample-plates-report/internal/connectors/samples"
	"go-sample-plates-report/internal/platedata"
	"go-sample-plates-report/internal/report"
)

type fakeSource struct {
	ds       *platedata.Dataset
	err      error
	statsErr error
}

func (f *fakeSource) Kind() string { return "fake" }

func (f *fakeSource) LoadDataset(context.Context) (*platedata.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ds, nil
}

func (f *fakeSource) ServiceStats(context.Context) (*samples.ServiceStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &samples.ServiceStats{Kind: "fake", Plates: int64(len(f.ds.Plates)), Wells: int64(f.ds.WellCount())}, nil
}

func (f *fakeSource) Close() error { return nil }

func fixtureDataset() *platedata.Dataset {
	return &platedata.Dataset{
		Plates: []platedata.Plate{
			{PlateID: "P1", LocalID: "L1", Protocol: "R1"},
			{PlateID: "P2", LocalID: "L2"},
			{PlateID: "P3", LocalID: "L3", Notes: "<b>bold</b>"},
		},
		Wells: map[string][]platedata.Well{
			"P1": {
				{PlateID: "P1", Well: "A01", Family: "Fabaceae", ScientificName: "Acacia dealbata", Concentration: "2.5", SeqReturned: true},
				{PlateID: "P1", Well: "A02", Family: "Fagaceae", ScientificName: "Quercus robur"},
			},
			"P2": {
				{PlateID: "P2", Well: "B01", Family: "Fabaceae", ScientificName: "Mimosa pudica"},
			},
			"P3": {
				{PlateID: "P3", Well: "C01", Family: "Rosaceae", ScientificName: "Rosa canina", SeqReturned: true},
			},
		},
		Taxa: []platedata.Taxon{
			{Family: "Fabaceae", Genus: "Acacia", ScientificName: "Acacia dealbata", Imaged: true},
			{Family: "Fabaceae", Genus: "Mimosa", ScientificName: "Mimosa pudica"},
			{Family: "Rosaceae", Genus: "Rosa", ScientificName: "Rosa canina", Imaged: true},
		},
	}
}

func nitfixLayout(t *testing.T) report.Layout {
	t.Helper()
	l, ok := report.BuiltinLayout(report.LayoutNitfix)
	if !ok {
		t.Fatalf("nitfix layout missing")
	}
	return l
}

func loadedCatalog(t *testing.T) *catalog {
	t.Helper()
	cat := newCatalog(&fakeSource{ds: fixtureDataset()})
	if _, err := cat.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return cat
}

func decodePayload(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return payload
}

func TestPlatesHandler_SourceDisabled(t *testing.T) {
	h := platesHandler(nil, nitfixLayout(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plates", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	if decodePayload(t, rr)["error"] == nil {
		t.Fatalf("expected error field in response")
	}
}

func TestPlatesHandler_NotLoaded(t *testing.T) {
	h := platesHandler(newCatalog(&fakeSource{ds: fixtureDataset()}), nitfixLayout(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plates", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestPlatesHandler_FiltersAndClampsPage(t *testing.T) {
	h := platesHandler(loadedCatalog(t), nitfixLayout(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plates?search-family=FABACEAE&page=9", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	payload := decodePayload(t, rr)
	meta := payload["meta"].(map[string]any)
	if meta["page"].(float64) != 2 || meta["max_page"].(float64) != 2 || meta["label"] != "of 2" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	data := payload["data"].(map[string]any)
	plate := data["plate"].(map[string]any)
	if plate["plate_id"] != "P2" {
		t.Fatalf("expected P2 on page 2, got %+v", plate)
	}
	if wells := data["wells"].([]any); len(wells) != 1 {
		t.Fatalf("expected one matching well, got %d", len(wells))
	}
}

func TestPlatesHandler_BadPageAndFlag(t *testing.T) {
	h := platesHandler(loadedCatalog(t), nitfixLayout(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plates?page=abc&search-seq-returned=on", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	meta := decodePayload(t, rr)["meta"].(map[string]any)
	if meta["page"].(float64) != 1 || meta["plates"].(float64) != 2 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestPlatesHandler_EmptyResult(t *testing.T) {
	h := platesHandler(loadedCatalog(t), nitfixLayout(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plates?search-sci-name=nothing", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	payload := decodePayload(t, rr)
	meta := payload["meta"].(map[string]any)
	if meta["page"].(float64) != 0 || meta["label"] != "of 0" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	data := payload["data"].(map[string]any)
	if data["plate"] != nil || len(data["rows"].([]any)) != 0 {
		t.Fatalf("expected no plate and no rows: %+v", data)
	}
}

func TestPlateTableHandler(t *testing.T) {
	h := plateTableHandler(loadedCatalog(t), nitfixLayout(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plates/table?page=3", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("X-Report-Page") != "3" || rr.Header().Get("X-Report-Max-Page") != "3" {
		t.Fatalf("unexpected page headers: %v", rr.Header())
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, `<tbody id="plate-rows">`) {
		t.Fatalf("expected tbody fragment, got %q", body)
	}
	if !strings.Contains(body, "&lt;b&gt;bold&lt;/b&gt;") {
		t.Fatalf("cell content must be escaped: %q", body)
	}
}

func TestReportPageHandler(t *testing.T) {
	h := reportPageHandler(loadedCatalog(t), nitfixLayout(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `data-live="/api/v1/live"`) {
		t.Fatalf("page must point the script at the live endpoint")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestPrintPageHandler(t *testing.T) {
	h := printPageHandler(loadedCatalog(t), nitfixLayout(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report.html?search-family=fab", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	body := rr.Body.String()
	if n := strings.Count(body, `<tbody class="plate">`); n != 2 {
		t.Fatalf("expected one tbody per matching plate, got %d", n)
	}
	if strings.Contains(body, "data-live") {
		t.Fatalf("print view must not open a live session")
	}
}

func TestCoverageHandler(t *testing.T) {
	h := coverageHandler(loadedCatalog(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/coverage", nil))

	meta := decodePayload(t, rr)["meta"].(map[string]any)
	if meta["families"].(float64) != 2 || meta["taxa"].(float64) != 3 || meta["imaged"].(float64) != 2 {
		t.Fatalf("unexpected coverage meta: %+v", meta)
	}
}

func TestLayoutHandler(t *testing.T) {
	h := layoutHandler(nitfixLayout(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/layout", nil))

	payload := decodePayload(t, rr)
	data := payload["data"].(map[string]any)
	if data["name"] != report.LayoutNitfix {
		t.Fatalf("unexpected layout: %+v", data)
	}
	if builtin := payload["meta"].(map[string]any)["builtin"].([]any); len(builtin) != 2 {
		t.Fatalf("expected two builtin layouts, got %v", builtin)
	}
}

func TestExportHandler(t *testing.T) {
	h := exportHandler(loadedCatalog(t), nitfixLayout(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/export.xlsx", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "sample_plates_report_") || !strings.Contains(cd, ".xlsx") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container")
	}
}

func TestSourceStatusHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	sourceStatusHandler(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status/source", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}

	rr = httptest.NewRecorder()
	sourceStatusHandler(&fakeSource{ds: fixtureDataset()}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status/source", nil))
	data := decodePayload(t, rr)["data"].(map[string]any)
	if data["plates"].(float64) != 3 {
		t.Fatalf("unexpected stats: %+v", data)
	}

	rr = httptest.NewRecorder()
	failing := &fakeSource{ds: fixtureDataset(), statsErr: errors.New("down")}
	sourceStatusHandler(failing).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status/source", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}

func TestReloadHandler(t *testing.T) {
	src := &fakeSource{ds: fixtureDataset()}
	cat := newCatalog(src)
	h := reloadHandler(cat, zerolog.Nop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/reload", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if data := decodePayload(t, rr)["data"].(map[string]any); data["plates"].(float64) != 3 || data["wells"].(float64) != 4 {
		t.Fatalf("unexpected reload result: %+v", data)
	}

	src.err = errors.New("boom")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if _, err := cat.Snapshot(); err != nil {
		t.Fatalf("failed reload must keep the previous dataset")
	}
}

func TestReadyHandler(t *testing.T) {
	cat := newCatalog(&fakeSource{ds: fixtureDataset()})

	rr := httptest.NewRecorder()
	readyHandler(cat).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d before load, got %d", http.StatusServiceUnavailable, rr.Code)
	}

	if _, err := cat.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	rr = httptest.NewRecorder()
	readyHandler(cat).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d after load, got %d", http.StatusOK, rr.Code)
	}
}

func TestNormalizeMetricPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: "/"},
		{path: "/api/v1/plates/table", want: "/api/v1/plates/table"},
		{path: "/api/v1/plates/123", want: "/api/other"},
		{path: "/favicon.ico", want: "other"},
	}
	for _, tt := range tests {
		if got := normalizeMetricPath(tt.path); got != tt.want {
			t.Fatalf("normalizeMetricPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := routes(loadedCatalog(t), nitfixLayout(t), newLiveHub(testLiveConfig(), zerolog.Nop()), zerolog.Nop())
	handler := observabilityMiddleware(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/plates", nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	if !strings.Contains(body, `platereport_http_requests_total{method="GET",path="/api/v1/plates",status="200"}`) {
		t.Fatalf("expected request counter in metrics output")
	}
	if !strings.Contains(body, "platereport_source_queries_total") {
		t.Fatalf("expected source query counter in metrics output")
	}
}
