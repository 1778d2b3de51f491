package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "auction_monitor/config"
)

func TestObjectURL(t *testing.T) {
	aws := appconfig.ArchiveConfig{Bucket: "reports", Region: "sa-east-1"}
	assert.Equal(t, "https://reports.s3.sa-east-1.amazonaws.com/runs/megaleiloes/2024-05-20/run-1.json",
		ObjectURL(aws, "runs/megaleiloes/2024-05-20/run-1.json"))

	minio := appconfig.ArchiveConfig{Bucket: "reports", Endpoint: "http://localhost:9000/"}
	assert.Equal(t, "http://localhost:9000/reports/runs/a.json", ObjectURL(minio, "runs/a.json"))
}

func TestS3Archiver_Upload(t *testing.T) {
	var gotMethod, gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	archiver, err := NewS3Archiver(context.Background(), appconfig.ArchiveConfig{
		Bucket:          "reports",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	payload := []byte(`{"status":"completed"}`)
	err = archiver.Upload(context.Background(), "runs/megaleiloes/2024-05-20/run-7.json", bytes.NewReader(payload), "application/json")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/reports/runs/megaleiloes/2024-05-20/run-7.json", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Contains(t, string(gotBody), `"status":"completed"`)
}
