package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tallyconv/internal/config"
	"github.com/sells-group/tallyconv/internal/extract"
	"github.com/sells-group/tallyconv/internal/model"
	"github.com/sells-group/tallyconv/internal/pipeline"
	"github.com/sells-group/tallyconv/internal/store"
	"github.com/sells-group/tallyconv/internal/validate"
)

type fakeExtractor struct {
	tables []extract.RawTable
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, modality extract.Modality) ([]extract.RawTable, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tables, nil
}

func newTestServer(t *testing.T, ex pipeline.Extractor) *httptest.Server {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	svc := pipeline.New(st, store.NewMemoryBlobStore(), ex, validate.Default())
	srv := New(svc, config.ServerConfig{MaxUploadMB: 5, RatePerSecond: 1000, RateBurst: 1000})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func goodExtractor() *fakeExtractor {
	return &fakeExtractor{tables: []extract.RawTable{{
		{"Date", "Party", "Amount"},
		{"2024-01-15", "Acme", "100"},
	}}}
}

func uploadRequest(t *testing.T, url, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, goodExtractor())
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConvertUploadEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, goodExtractor())
	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/convert", "voucher.pdf", []byte("%PDF")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		FileID string `json:"fileId"`
		Table  struct {
			Headers []string `json:"headers"`
			Rows    []struct {
				Cells map[string]struct {
					Value    json.RawMessage `json:"value"`
					Metadata json.RawMessage `json:"metadata"`
				} `json:"cells"`
			} `json:"rows"`
		} `json:"table"`
		Findings []model.Finding `json:"findings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.NotEmpty(t, result.FileID)
	assert.Equal(t, []string{"Date", "Party", "Amount"}, result.Table.Headers)
	require.Len(t, result.Table.Rows, 1)
	assert.JSONEq(t, `"Acme"`, string(result.Table.Rows[0].Cells["Party"].Value),
		"cell values travel as bare scalars")
	assert.Empty(t, result.Findings)
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, goodExtractor())
	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/upload", "notes.txt", []byte("hi")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestConvertDecodeFailureIs400(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeExtractor{err: model.DecodeError("failed to read PDF file", nil)})
	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/convert", "bad.pdf", []byte("junk")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "failed to read PDF file", body.Error)
	assert.Equal(t, "decode", body.Kind)
}

func TestConvertUnknownFileIs404(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, goodExtractor())
	resp, err := http.Post(ts.URL+"/convert/nope", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadFormats(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, goodExtractor())
	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/convert", "voucher.pdf", []byte("%PDF")))
	require.NoError(t, err)
	defer resp.Body.Close()
	var result struct {
		FileID string `json:"fileId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	tests := []struct {
		format    string
		mediaType string
	}{
		{"csv", "text/csv"},
		{"xml", "application/xml"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dl, err := http.Get(ts.URL + "/download/" + result.FileID + "/" + tt.format)
			require.NoError(t, err)
			defer dl.Body.Close()
			assert.Equal(t, http.StatusOK, dl.StatusCode)
			assert.Equal(t, tt.mediaType, dl.Header.Get("Content-Type"))
			assert.Contains(t, dl.Header.Get("Content-Disposition"), "."+tt.format)
		})
	}

	bad, err := http.Get(ts.URL + "/download/" + result.FileID + "/docx")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, bad.StatusCode)
}

func TestSaveEditsAndHistory(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, goodExtractor())
	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/convert", "voucher.pdf", []byte("%PDF")))
	require.NoError(t, err)
	defer resp.Body.Close()
	var converted struct {
		FileID string `json:"fileId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&converted))

	payload := map[string]any{
		"fileId": converted.FileID,
		"editHistory": []map[string]any{{
			"timestamp": 1700000000,
			"rowId":     "row-0",
			"columnKey": "Amount",
			"oldValue":  "100",
			"newValue":  250,
		}},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	save, err := http.Post(ts.URL+"/api/save-edits", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer save.Body.Close()
	require.Equal(t, http.StatusOK, save.StatusCode)

	dl, err := http.Get(ts.URL + "/download/" + converted.FileID + "/csv")
	require.NoError(t, err)
	defer dl.Body.Close()
	csvBody := new(bytes.Buffer)
	_, err = csvBody.ReadFrom(dl.Body)
	require.NoError(t, err)
	assert.Contains(t, csvBody.String(), "2024-01-15,Acme,250", "download reflects the correction")

	hist, err := http.Get(ts.URL + "/api/edit-history/" + converted.FileID)
	require.NoError(t, err)
	defer hist.Body.Close()
	require.Equal(t, http.StatusOK, hist.StatusCode)

	var artifacts []struct {
		FileID string `json:"fileId"`
		Edits  []struct {
			RowID string `json:"rowId"`
		} `json:"edits"`
	}
	require.NoError(t, json.NewDecoder(hist.Body).Decode(&artifacts))
	require.Len(t, artifacts, 1)
	require.Len(t, artifacts[0].Edits, 1)
	assert.Equal(t, "row-0", artifacts[0].Edits[0].RowID)
}

func TestSaveEditsBadReferenceIs404(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, goodExtractor())
	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/convert", "voucher.pdf", []byte("%PDF")))
	require.NoError(t, err)
	defer resp.Body.Close()
	var converted struct {
		FileID string `json:"fileId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&converted))

	body, err := json.Marshal(map[string]any{
		"fileId": converted.FileID,
		"editHistory": []map[string]any{{
			"timestamp": 1, "rowId": "row-99", "columnKey": "Amount", "newValue": 1,
		}},
	})
	require.NoError(t, err)

	save, err := http.Post(ts.URL+"/api/save-edits", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer save.Body.Close()
	assert.Equal(t, http.StatusNotFound, save.StatusCode)
}

func TestSaveEditsMismatchedModifiedIs422(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, goodExtractor())
	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/convert", "voucher.pdf", []byte("%PDF")))
	require.NoError(t, err)
	defer resp.Body.Close()
	var converted struct {
		FileID string `json:"fileId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&converted))

	// The submitted modified table disagrees with what the edit history
	// produces, so the batch is rejected and nothing is recorded.
	body, err := json.Marshal(map[string]any{
		"fileId": converted.FileID,
		"modifiedData": map[string]any{
			"headers": []string{"Date"},
			"rows":    []any{},
		},
		"editHistory": []map[string]any{{
			"timestamp": 1, "rowId": "row-0", "columnKey": "Amount", "newValue": 250,
		}},
	})
	require.NoError(t, err)

	save, err := http.Post(ts.URL+"/api/save-edits", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer save.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, save.StatusCode)

	hist, err := http.Get(ts.URL + "/api/edit-history/" + converted.FileID)
	require.NoError(t, err)
	defer hist.Body.Close()
	var artifacts []json.RawMessage
	require.NoError(t, json.NewDecoder(hist.Body).Decode(&artifacts))
	assert.Empty(t, artifacts)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	svc := pipeline.New(st, store.NewMemoryBlobStore(), goodExtractor(), validate.Default())
	srv := New(svc, config.ServerConfig{MaxUploadMB: 5, RatePerSecond: 1, RateBurst: 2})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	statuses := make([]int, 0, 4)
	for range 4 {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Contains(t, statuses, http.StatusTooManyRequests)
}
