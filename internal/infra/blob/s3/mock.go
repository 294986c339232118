package s3

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NewMockForTests returns a Store backed by an in-process fake S3 endpoint.
// Only the operations the blob contract needs are implemented.
func NewMockForTests() *Store {
	rt := &fakeS3{objects: make(map[string]fakeObject)}
	store, err := New(context.Background(), Config{
		Region:          "us-east-1",
		Bucket:          "mock-bucket",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: rt},
	})
	if err != nil {
		panic(fmt.Errorf("mock s3 store: %w", err))
	}
	return store
}

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

// fakeS3 answers path-style requests of the form /<bucket>/<key>.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodHead:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, objectHeaders(obj), nil), nil
	case http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			body := []byte("<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>")
			return respond(http.StatusNotFound, http.Header{"Content-Type": {"application/xml"}}, body), nil
		}
		return respond(http.StatusOK, objectHeaders(obj), obj.body), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if isChunked(req) {
			if body, err = decodeChunked(body); err != nil {
				return nil, err
			}
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), modified: time.Now().UTC()}
		return respond(http.StatusOK, http.Header{"ETag": {"\"etag\""}}, nil), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (f *fakeS3) list(prefix string) *http.Response {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>%s</LastModified></Contents>",
			k, len(f.objects[k].body), f.objects[k].modified.Format(time.RFC3339))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, []byte(b.String()))
}

func objectHeaders(obj fakeObject) http.Header {
	return http.Header{
		"Content-Length": {strconv.Itoa(len(obj.body))},
		"Content-Type":   {obj.contentType},
		"ETag":           {"\"etag\""},
		"Last-Modified":  {obj.modified.Format(http.TimeFormat)},
	}
}

func respond(status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(bytes.NewReader(body)), ContentLength: int64(len(body))}
}

func isChunked(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") ||
		req.Header.Get("X-Amz-Decoded-Content-Length") != ""
}

// decodeChunked strips aws-chunked framing: hex size lines (optionally with
// extensions), payload, and trailing checksum headers after the zero chunk.
func decodeChunked(b []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(b))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("chunk header: %w", err)
		}
		sizeField := strings.TrimSpace(strings.SplitN(line, ";", 2)[0])
		size, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", sizeField, err)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, fmt.Errorf("chunk body: %w", err)
		}
		if _, err := r.Discard(2); err != nil {
			return nil, fmt.Errorf("chunk terminator: %w", err)
		}
	}
}
