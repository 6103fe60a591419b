package storage_test

import (
	"context"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/dmgateway/internal/adapter/storage"
	"github.com/neomorfeo/dmgateway/internal/domain"
)

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// serveObject answers path-style requests for one object.
func serveObject(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/staging/inbound/form.pdf" {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(noSuchKey))
		}
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", "8")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte("%PDF-1.7"))
}

func newBucket(t *testing.T, endpoint string) *storage.Bucket {
	t.Helper()
	b, err := storage.New(context.Background(), storage.Config{
		Bucket:    "staging",
		Prefix:    "/inbound/",
		Region:    "eu-west-2",
		Endpoint:  endpoint,
		AccessKey: "test",
		SecretKey: "test",
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	return b
}

func fakeS3(t *testing.T) *storage.Bucket {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(serveObject))
	t.Cleanup(srv.Close)
	return newBucket(t, srv.URL)
}

func TestFileProperties(t *testing.T) {
	props, err := fakeS3(t).FileProperties(context.Background(), "form.pdf")

	require.NoError(t, err)
	assert.Equal(t, int64(8), props.ContentLength)
	assert.Equal(t, "application/pdf", props.ContentType)
}

func TestFileProperties_Missing(t *testing.T) {
	_, err := fakeS3(t).FileProperties(context.Background(), "missing.pdf")

	var up *domain.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusNotFound, up.StatusCode)
}

func TestDownload(t *testing.T) {
	body, err := fakeS3(t).Download(context.Background(), "form.pdf")
	require.NoError(t, err)
	defer body.Close()

	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(b))
}

func TestDownload_Missing(t *testing.T) {
	_, err := fakeS3(t).Download(context.Background(), "missing.pdf")

	var up *domain.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusNotFound, up.StatusCode)
}

func TestFileProperties_CustomCABundle(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(serveObject))
	t.Cleanup(srv.Close)

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, certPEM, 0o600))
	t.Setenv("AWS_CA_BUNDLE", bundle)

	props, err := newBucket(t, srv.URL).FileProperties(context.Background(), "form.pdf")

	require.NoError(t, err)
	assert.Equal(t, int64(8), props.ContentLength)
}
