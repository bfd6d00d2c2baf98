package ui

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"flowdash/adapters/render"
	"flowdash/app"
	"flowdash/domain/table"
	"flowdash/internal/session"
	"flowdash/internal/testkit"
	"flowdash/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type mockUploadRepository struct {
	mock.Mock
}

func (m *mockUploadRepository) Record(ctx context.Context, rec *ports.UploadRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockUploadRepository) ListRecent(ctx context.Context, limit int) ([]*ports.UploadRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*ports.UploadRecord), args.Error(1)
}

func (m *mockUploadRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*ports.UploadRecord, error) {
	args := m.Called(ctx, sessionID, limit)
	return args.Get(0).([]*ports.UploadRecord), args.Error(1)
}

type testClient struct {
	t      *testing.T
	server *Server
	cookie *http.Cookie
}

func newTestServer(t *testing.T, repo ports.UploadRepository, maxUpload int64) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	options := app.DashboardOptions{
		FilterColumns:   []string{"Plant", "Material"},
		Unit:            "MT",
		UnitDivisor:     100000,
		DefaultRenderer: "d3",
	}
	dashboard := app.NewDashboardService(options, render.DefaultRegistry(), repo)
	server, err := NewServer(os.DirFS(".."), dashboard, session.NewStore(time.Hour), ServerOptions{
		MaxUploadBytes: maxUpload,
		SampleRows:     5,
	})
	require.NoError(t, err)
	return server
}

func newClient(t *testing.T, server *Server) *testClient {
	return &testClient{t: t, server: server}
}

func (tc *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	tc.t.Helper()
	if tc.cookie != nil {
		req.AddCookie(tc.cookie)
	}
	rec := httptest.NewRecorder()
	tc.server.Router().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			tc.cookie = c
		}
	}
	return rec
}

func (tc *testClient) get(path string) *httptest.ResponseRecorder {
	return tc.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (tc *testClient) getJSON(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "application/json")
	return tc.do(req)
}

func (tc *testClient) postForm(path string, values url.Values, asJSON bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	return tc.do(req)
}

func (tc *testClient) upload(fileName string, data []byte, asJSON bool) *httptest.ResponseRecorder {
	tc.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(tc.t, err)
	_, err = part.Write(data)
	require.NoError(tc.t, err)
	require.NoError(tc.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	return tc.do(req)
}

func energyCSV(t *testing.T) []byte {
	t.Helper()
	data, err := testkit.CSV(testkit.EnergyTable())
	require.NoError(t, err)
	return data
}

func TestHealth(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))

	rec := client.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
	assert.False(t, gjson.Get(rec.Body.String(), "history").Bool())
}

func TestDashboardWithoutData(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))

	rec := client.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please upload a file to view the diagrams.")
	require.NotNil(t, client.cookie)

	rec = client.get("/api/columns")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_DATA", gjson.Get(rec.Body.String(), "code").String())
}

func TestUploadAndExplore(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))

	rec := client.upload("energy.csv", energyCSV(t), false)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = client.get("/api/columns")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "FY26", gjson.Get(body, "default.value").String())
	assert.Equal(t, "2025-04-01", gjson.Get(body, "classification.display.Apr-25").String())
	assert.Equal(t, `["Plant","Material"]`, gjson.Get(body, "filter_columns").Raw)

	rec = client.get("/api/filters/Plant")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `["P1","P2"]`, gjson.Get(rec.Body.String(), "values").Raw)

	rec = client.get("/api/sankey?source=Source&target=Target&value=Apr-25&filter_column=Material&filter_value=Gas")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Equal(t, int64(6), gjson.Get(body, "links.#").Int())
	assert.Equal(t, "Gas Supply", gjson.Get(body, "nodes.0.name").String())
	assert.Equal(t, "2025-04-01", gjson.Get(body, "value_column").String())
	assert.Equal(t, "Sankey Diagram for Gas", gjson.Get(body, "title").String())

	rec = client.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "File uploaded successfully!")
	assert.Contains(t, page, "/chart/d3?")
	assert.Contains(t, page, "Sankey Diagram for P1")
	assert.Contains(t, page, "Sankey Diagram for Biomass")

	rec = client.get("/?renderer=echarts&filter%5BPlant%5D=P2")
	require.Equal(t, http.StatusOK, rec.Code)
	page = rec.Body.String()
	assert.Contains(t, page, "/chart/echarts?")
	assert.Contains(t, page, "Sankey Diagram for P2")
	assert.NotContains(t, page, "File uploaded successfully!")
}

func TestUploadJSON(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))

	rec := client.upload("energy.csv", energyCSV(t), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "energy.csv", gjson.Get(body, "file_name").String())
	assert.Equal(t, int64(22), gjson.Get(body, "rows").Int())
	assert.Equal(t, int64(8), gjson.Get(body, "columns").Int())
	assert.Equal(t, "", gjson.Get(body, "sheet").String())
}

func TestChart(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))
	client.upload("energy.csv", energyCSV(t), true)

	rec := client.get("/chart/d3?source=Source&target=Target&value=FY26")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "d3-sankey")
	assert.Contains(t, rec.Body.String(), "Coal Supply")

	rec = client.get("/chart/echarts?filter_column=Plant&filter_value=P9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No data to display for Sankey Diagram for P9")

	rec = client.get("/chart/plotly")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = client.get("/chart/d3?value=Plant")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreview(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))

	rec := client.get("/preview")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "How to use the dashboard")

	client.upload("energy.csv", energyCSV(t), true)
	rec = client.get("/preview")
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Data Preview Table")
	assert.Contains(t, page, "Showing 5 of 22 rows")
	assert.Contains(t, page, "<th>Material</th>")
}

func TestUploadErrors(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))

	rec := client.upload("energy.json", []byte("{}"), true)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", gjson.Get(rec.Body.String(), "code").String())

	rec = client.upload("energy.xlsx", []byte("garbage"), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "error").String(), "could not read energy.xlsx")

	rec = client.upload("energy.json", []byte("{}"), false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	rec = client.get("/")
	assert.Contains(t, rec.Body.String(), "Unsupported file format")
}

func TestFailedUploadKeepsPreviousTable(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))
	client.upload("energy.csv", energyCSV(t), true)

	rec := client.upload("broken.xlsx", []byte("garbage"), true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = client.get("/api/columns")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 64))

	rec := client.upload("energy.csv", energyCSV(t), true)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "TOO_LARGE", gjson.Get(rec.Body.String(), "code").String())
}

func TestSelectSheet(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))
	other := table.New([]string{"Source", "Target", "FY26"}, [][]string{{"X", "Y", "7"}})
	data, err := testkit.Workbook([]string{"Energy", "Other"}, []*table.Table{testkit.EnergyTable(), other})
	require.NoError(t, err)

	rec := client.upload("energy.xlsx", data, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `["Energy","Other"]`, gjson.Get(rec.Body.String(), "sheets").Raw)
	assert.Equal(t, "Energy", gjson.Get(rec.Body.String(), "sheet").String())

	rec = client.postForm("/sheet", url.Values{"sheet": {"Other"}}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "rows").Int())

	rec = client.get("/api/sankey")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"source":0,"target":1,"value":7}]`, gjson.Get(rec.Body.String(), "links").Raw)

	rec = client.postForm("/sheet", url.Values{"sheet": {"Missing"}}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = client.postForm("/sheet", url.Values{"sheet": {"Energy"}, "return": {"preview"}}, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/preview", rec.Header().Get("Location"))
}

func TestReset(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))
	client.upload("energy.csv", energyCSV(t), true)

	rec := client.postForm("/reset", url.Values{}, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = client.get("/api/sankey")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = client.get("/")
	assert.Contains(t, rec.Body.String(), "Session cleared")
}

func TestSessionsAreIsolated(t *testing.T) {
	server := newTestServer(t, nil, 1<<20)
	alice := newClient(t, server)
	bob := newClient(t, server)

	alice.upload("energy.csv", energyCSV(t), true)
	bob.get("/")

	assert.Equal(t, http.StatusOK, alice.get("/api/columns").Code)
	assert.Equal(t, http.StatusNotFound, bob.get("/api/columns").Code)
}

func TestUploadHistory(t *testing.T) {
	repo := new(mockUploadRepository)
	client := newClient(t, newTestServer(t, repo, 1<<20))

	repo.On("Record", mock.Anything, mock.MatchedBy(func(rec *ports.UploadRecord) bool {
		return rec.FileName == "energy.csv"
	})).Return(nil).Once()
	client.upload("energy.csv", energyCSV(t), true)

	sessionID := client.cookie.Value
	repo.On("ListBySession", mock.Anything, sessionID, 20).
		Return([]*ports.UploadRecord{{SessionID: sessionID, FileName: "energy.csv", RowCount: 22}}, nil)
	repo.On("ListRecent", mock.Anything, 3).Return([]*ports.UploadRecord{}, nil)

	rec := client.get("/api/uploads")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "energy.csv", gjson.Get(rec.Body.String(), "uploads.0.file_name").String())

	rec = client.get("/api/uploads?scope=all&limit=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[]`, gjson.Get(rec.Body.String(), "uploads").Raw)

	rec = client.get("/api/uploads?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	repo.AssertExpectations(t)
}

func TestUploadHistoryDisabled(t *testing.T) {
	client := newClient(t, newTestServer(t, nil, 1<<20))

	rec := client.get("/api/uploads")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", gjson.Get(rec.Body.String(), "code").String())
}

func TestDemoPreload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dashboard := app.NewDashboardService(app.DashboardOptions{FilterColumns: []string{"Plant", "Material"}}, render.DefaultRegistry(), nil)
	server, err := NewServer(os.DirFS(".."), dashboard, session.NewStore(time.Hour), ServerOptions{
		MaxUploadBytes: 1 << 20,
		SampleRows:     10,
		DemoFile:       &DemoFile{Name: "sample.csv", Data: energyCSV(t)},
	})
	require.NoError(t, err)

	client := newClient(t, server)
	rec := client.get("/api/columns")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Source", gjson.Get(rec.Body.String(), "default.source").String())
}
