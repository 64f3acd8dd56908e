package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"logscan/internal/ingest"
	"logscan/internal/logfile"
	"logscan/internal/scan"
	"logscan/pkg/auth"
	"logscan/pkg/configdir"
	"logscan/pkg/replication"
	"logscan/pkg/tsdb"
)

const testSecret = "test-secret"

func newTestAPI(t *testing.T) (*API, *httptest.Server, string) {
	t.Helper()

	dir, err := configdir.NewFileDirectory(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })

	// Both customers declare a logfile named "web" so cross-tenant reads
	// have a collision candidate to prove isolation against.
	webLogfile := configdir.LogfileDefinition{
		Name:  "web",
		Regex: `(?P<time>\S+ \S+) (?P<status>\d+) (?P<msg>\S+)`,
		RowFields: []configdir.Field{
			{ID: 2, Name: "time", Type: configdir.FieldTypeDateTime, Format: "2006-01-02 15:04:05"},
			{ID: 3, Name: "status", Type: configdir.FieldTypeString},
			{ID: 4, Name: "msg", Type: configdir.FieldTypeString},
		},
	}
	for _, customer := range []string{"acme", "globex"} {
		require.NoError(t, dir.UpdateCustomerConfig(&configdir.CustomerConfig{
			Customer: customer,
			LogfileImportConfig: configdir.LogfileImportConfig{
				Logfiles: []configdir.LogfileDefinition{webLogfile},
			},
		}))
	}

	registry := logfile.NewRegistry(dir)
	store, err := tsdb.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	repl, err := replication.NewMap(replication.Config{LocalAddr: "self:1", Hosts: []string{"self:1"}, ReplicationFactor: 1})
	require.NoError(t, err)

	signer := auth.NewSigner([]byte(testSecret))
	remote := scan.NewRemoteAdapter(nil, nil).WithAuth(signer, auth.Session{IssuedAt: time.Now()})
	coordinator := scan.NewCoordinator(store, repl, remote, nil)
	pipeline := ingest.New(registry, store, nil)

	api := New(registry, pipeline, store, coordinator, signer, nil)
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)

	token, err := signer.EncodeToken(auth.Session{Customer: "acme", IssuedAt: time.Now()})
	require.NoError(t, err)

	return api, srv, token
}

func doRequest(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_RequiresAuth(t *testing.T) {
	_, srv, _ := newTestAPI(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/logfiles", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ListLogfiles(t *testing.T) {
	_, srv, token := newTestAPI(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/logfiles", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Defs []configdir.LogfileDefinition `json:"logfile_definitions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Defs, 1)
	require.Equal(t, "web", body.Defs[0].Name)
}

func TestAPI_GetDefinition(t *testing.T) {
	_, srv, token := newTestAPI(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/logfiles/get_definition", token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/logfiles/get_definition?logfile=missing", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/logfiles/get_definition?logfile=web", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var def configdir.LogfileDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&def))
	require.Equal(t, "web", def.Name)
}

func TestAPI_SetRegex(t *testing.T) {
	_, srv, token := newTestAPI(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/logfiles/set_regex?logfile=web", token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/logfiles/set_regex?logfile=missing&regex=x", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	newRegex := `(?P<time>\S+ \S+) NEW (?P<status>\d+)`
	q := url.Values{"logfile": {"web"}, "regex": {newRegex}}
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/logfiles/set_regex?"+q.Encode(), token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/logfiles/get_definition?logfile=web", token, nil)
	var def configdir.LogfileDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&def))
	require.Equal(t, newRegex, def.Regex)
}

func uploadLines(t *testing.T, srv *httptest.Server, token, lines string) ingest.Result {
	t.Helper()
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/logfiles/upload?logfile=web", token, []byte(lines))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result ingest.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestAPI_UploadDropsUnparsableLines(t *testing.T) {
	_, srv, token := newTestAPI(t)

	result := uploadLines(t, srv, token,
		"2020-01-01 00:00:00 200 alpha\ngarbage\n2020-01-01 00:00:01 500 beta\n")
	require.Equal(t, 2, result.RowsParsed)
	require.Equal(t, 1, result.RowsDropped)
}

func scanLogfile(t *testing.T, srv *httptest.Server, token string, reqBody scanRequest) (*http.Response, scan.Result) {
	t.Helper()
	payload, err := json.Marshal(reqBody)
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/logfiles/scan", token, payload)
	var result scan.Result
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	}
	return resp, result
}

func TestAPI_UploadThenScanRoundTrips(t *testing.T) {
	_, srv, token := newTestAPI(t)

	uploadLines(t, srv, token,
		"2020-01-01 00:00:00 200 alpha\ngarbage\n2020-01-01 00:00:01 500 beta\n")

	end := time.Date(2020, 1, 1, 0, 10, 0, 0, time.UTC)
	resp, result := scanLogfile(t, srv, token, scanRequest{
		Logfile:  "web",
		Capacity: 10,
		Params: scan.LogfileScanParams{
			EndTime:   end,
			ReturnRaw: true,
			Columns:   []string{"status", "msg"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, result.Lines, 2)
	for _, line := range result.Lines {
		require.True(t, line.Time.Before(end))
		require.NotEmpty(t, line.Raw)
		require.Len(t, line.Columns, 2)
	}
}

// Rows uploaded by one customer must be invisible to another customer's
// scan of an identically-named logfile: the table name collides, the
// namespace keeps them apart.
func TestAPI_ScanIsScopedToCustomer(t *testing.T) {
	_, srv, acmeToken := newTestAPI(t)

	uploadLines(t, srv, acmeToken, "2020-01-01 00:00:00 200 alpha\n")

	globexToken, err := auth.NewSigner([]byte(testSecret)).EncodeToken(auth.Session{Customer: "globex", IssuedAt: time.Now()})
	require.NoError(t, err)

	end := time.Date(2020, 1, 1, 0, 10, 0, 0, time.UTC)

	resp, result := scanLogfile(t, srv, acmeToken, scanRequest{
		Logfile:  "web",
		Capacity: 10,
		Params:   scan.LogfileScanParams{EndTime: end},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, result.Lines, 1)

	resp, result = scanLogfile(t, srv, globexToken, scanRequest{
		Logfile:  "web",
		Capacity: 10,
		Params:   scan.LogfileScanParams{EndTime: end},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, result.Lines)
}

func TestAPI_ScanHonorsCapacityAndCondition(t *testing.T) {
	_, srv, token := newTestAPI(t)

	uploadLines(t, srv, token,
		"2020-01-01 00:00:00 200 alpha\n2020-01-01 00:00:01 500 beta\n2020-01-01 00:00:02 200 gamma\n")

	end := time.Date(2020, 1, 1, 0, 10, 0, 0, time.UTC)

	resp, result := scanLogfile(t, srv, token, scanRequest{
		Logfile:  "web",
		Capacity: 1,
		Params:   scan.LogfileScanParams{EndTime: end},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, result.Lines, 1)

	resp, result = scanLogfile(t, srv, token, scanRequest{
		Logfile:  "web",
		Capacity: 10,
		Params: scan.LogfileScanParams{
			EndTime:   end,
			Condition: `status = '500'`,
			Columns:   []string{"msg"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, result.Lines, 1)
	require.Equal(t, []string{"beta"}, result.Lines[0].Columns)
}

func TestAPI_ScanMalformedConditionIsBadRequest(t *testing.T) {
	_, srv, token := newTestAPI(t)

	uploadLines(t, srv, token, "2020-01-01 00:00:00 200 alpha\n")

	resp, _ := scanLogfile(t, srv, token, scanRequest{
		Logfile:  "web",
		Capacity: 10,
		Params: scan.LogfileScanParams{
			EndTime:   time.Date(2020, 1, 1, 0, 10, 0, 0, time.UTC),
			Condition: `a=1; b=2`,
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ScanUnknownLogfileIsNotFound(t *testing.T) {
	_, srv, token := newTestAPI(t)

	resp, _ := scanLogfile(t, srv, token, scanRequest{Logfile: "missing", Capacity: 10})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ScanPartitionRequiresPeerToken(t *testing.T) {
	_, srv, _ := newTestAPI(t)

	payload, err := json.Marshal(scan.RemoteScanRequest{Table: "logs.web"})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/logfiles/scan_partition", "", payload)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ScanPartitionMissingPartitionIs404(t *testing.T) {
	_, srv, token := newTestAPI(t)

	payload, err := json.Marshal(scan.RemoteScanRequest{
		Namespace:     "acme",
		Table:         "logs.web",
		WindowStart:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		PartitionSize: 10 * time.Minute,
		Limit:         10,
	})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/logfiles/scan_partition", token, payload)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ScanPartitionServesMaterializedPartition(t *testing.T) {
	_, srv, token := newTestAPI(t)

	uploadLines(t, srv, token, "2020-01-01 00:00:00 200 alpha\n")

	payload, err := json.Marshal(scan.RemoteScanRequest{
		Namespace:     "acme",
		Table:         "logs.web",
		WindowStart:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		PartitionSize: 10 * time.Minute,
		ReturnRaw:     true,
		Limit:         10,
	})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/logfiles/scan_partition", token, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body scan.RemoteScanResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Lines, 1)
	require.Equal(t, 1, body.RowsScanned)
}
