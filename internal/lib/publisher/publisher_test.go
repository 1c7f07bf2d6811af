package publisher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midweste/wp-git-plugin-repository/internal/lib/stager"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func newBucketServer(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>plugins</Name><Prefix>mirror/</Prefix><KeyCount>2</KeyCount><IsTruncated>false</IsTruncated>
  <Contents><Key>mirror/hello-1.0.0.zip</Key><Size>10</Size></Contents>
  <Contents><Key>mirror/hello-1.1.0.zip</Key><Size>12</Size></Contents>
</ListBucketResult>`))
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestKey(t *testing.T) {
	assert.Equal(t, "hello-1.1.0.zip", NewS3Publisher(S3Config{Endpoint: "s3.test"}).Key("hello", "1.1.0"))
	assert.Equal(t, "mirror/wp/hello-1.1.0.zip", NewS3Publisher(S3Config{Endpoint: "s3.test", Prefix: "/mirror/wp/"}).Key("hello", "1.1.0"))
}

func TestPublish(t *testing.T) {
	srv, requests := newBucketServer(t, http.StatusOK)
	p := NewS3Publisher(S3Config{
		Endpoint: srv.URL, Bucket: "plugins", AccessKey: "key", SecretKey: "secret", Prefix: "mirror",
	})

	payload := []byte("PK\x03\x04archive")
	err := p.Publish(context.Background(), stager.CachedPackage{Slug: "hello", Version: "1.1.0"}, bytes.NewReader(payload))
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/plugins/mirror/hello-1.1.0.zip", req.path)
	assert.Equal(t, "application/zip", req.contentType)
	assert.Equal(t, payload, req.body)
}

func TestPublishError(t *testing.T) {
	srv, _ := newBucketServer(t, http.StatusForbidden)
	p := NewS3Publisher(S3Config{Endpoint: srv.URL, Bucket: "plugins", AccessKey: "key", SecretKey: "secret"})

	err := p.Publish(context.Background(), stager.CachedPackage{Slug: "hello", Version: "1.1.0"}, bytes.NewReader([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploading hello-1.1.0.zip")
}

func TestList(t *testing.T) {
	srv, requests := newBucketServer(t, http.StatusOK)
	p := NewS3Publisher(S3Config{Endpoint: srv.URL, Bucket: "plugins", AccessKey: "key", SecretKey: "secret", Prefix: "mirror"})

	keys, err := p.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mirror/hello-1.0.0.zip", "mirror/hello-1.1.0.zip"}, keys)
	assert.Contains(t, (*requests)[0].path, "/plugins")
}

var _ stager.Publisher = (*S3Publisher)(nil)
