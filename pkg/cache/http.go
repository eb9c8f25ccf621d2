package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ResponseToEntry converts an HTTP response to an Entry.
// It reads the response body and restores it, so the caller can keep
// using resp as if it had not been touched.
func ResponseToEntry(resp *http.Response, typ ResponseType) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Data:       body,
		Type:       typ,
		CachedAt:   time.Now(),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		entry.URL = resp.Request.URL.String()
	}

	return entry, nil
}

// CaptureResponse copies the body of resp as the caller reads it.
// Once the body has been read to EOF, done receives the snapshot. A read
// error, a Close before EOF, or a body larger than limit (when limit > 0)
// discards the copy and done is never called.
func CaptureResponse(resp *http.Response, typ ResponseType, limit int64, done func(*Entry)) {
	entry := &Entry{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Type:       typ,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		entry.URL = resp.Request.URL.String()
	}

	body := resp.Body
	if body == nil {
		body = http.NoBody
	}
	resp.Body = &captureBody{body: body, entry: entry, limit: limit, done: done}
}

type captureBody struct {
	body  io.ReadCloser
	buf   bytes.Buffer
	entry *Entry
	limit int64
	done  func(*Entry)

	// settled is set once the copy was handed to done or discarded
	settled bool
}

func (b *captureBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if b.settled {
		return n, err
	}

	if n > 0 {
		if b.limit > 0 && int64(b.buf.Len()+n) > b.limit {
			b.discard()
			return n, err
		}
		b.buf.Write(p[:n])
	}

	switch {
	case err == io.EOF:
		b.settled = true
		b.entry.Data = b.buf.Bytes()
		b.entry.CachedAt = time.Now()
		b.done(b.entry)
	case err != nil:
		b.discard()
	}
	return n, err
}

func (b *captureBody) Close() error {
	if !b.settled {
		b.discard()
	}
	return b.body.Close()
}

func (b *captureBody) discard() {
	b.settled = true
	b.buf = bytes.Buffer{}
}

// EntryToResponse rebuilds an HTTP response from a cached entry.
// The returned response is independent from the entry: the body can be
// consumed without affecting later lookups.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	header := entry.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}

	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}

// EmptyResponse builds a bodyless response with the given status.
func EmptyResponse(req *http.Request, status int) *http.Response {
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          http.NoBody,
		ContentLength: 0,
		Request:       req,
	}
}

// IsCacheable reports whether a network response may be persisted.
// Only complete, same-origin 200 responses qualify.
func IsCacheable(resp *http.Response, typ ResponseType) bool {
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusOK && typ == TypeBasic
}
