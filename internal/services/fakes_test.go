package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/vertexai/genai"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"

	"github.com/Lllllllleong/rfpworkbench/internal/gcp"
	"github.com/Lllllllleong/rfpworkbench/internal/pipeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memBlobStore is an in-memory BlobStore.
type memBlobStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	deleted  []string
	putErr   error
	putCalls int

	// deadlines records whether each Delete call carried a deadline.
	deadlines []bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobStore) Put(_ context.Context, bucket, object string, r io.Reader, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return "", m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	uri := gcp.GCSURI(bucket, object)
	m.objects[uri] = data
	m.types[uri] = contentType
	return uri, nil
}

func (m *memBlobStore) Read(_ context.Context, uri string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[uri]
	if !ok {
		return nil, fmt.Errorf("object %s not found", uri)
	}
	return data, nil
}

func (m *memBlobStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := gcp.GCSURI(bucket, prefix)
	var uris []string
	for uri := range m.objects {
		if strings.HasPrefix(uri, want) {
			uris = append(uris, uri)
		}
	}
	sort.Strings(uris)
	return uris, nil
}

func (m *memBlobStore) Delete(ctx context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	m.deadlines = append(m.deadlines, hasDeadline)
	m.deleted = append(m.deleted, uri)
	delete(m.objects, uri)
	return nil
}

func (m *memBlobStore) put(uri, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[uri] = []byte(body)
}

// fakeGenerator returns a fixed response and remembers the parts it was sent.
type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, genai.Text(t))
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

// fakeSplitter pretends to split a document into a fixed number of pages.
type fakeSplitter struct {
	pages int
	err   error
	keys  []string
}

func (f *fakeSplitter) Split(_ context.Context, _ pipeline.FileRef, docKey string) (int, error) {
	f.keys = append(f.keys, docKey)
	return f.pages, f.err
}

// fakeExecutions replays states in order, repeating the last one.
type fakeExecutions struct {
	mu        sync.Mutex
	states    []*executionspb.Execution
	polls     int
	created   []*executionspb.CreateExecutionRequest
	cancelled []string
	createErr error
}

func (f *fakeExecutions) CreateExecution(_ context.Context, req *executionspb.CreateExecutionRequest, _ ...gax.CallOption) (*executionspb.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &executionspb.Execution{Name: req.GetParent() + "/executions/exec-1"}, nil
}

func (f *fakeExecutions) GetExecution(_ context.Context, _ *executionspb.GetExecutionRequest, _ ...gax.CallOption) (*executionspb.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.polls, len(f.states)-1)
	f.polls++
	return f.states[i], nil
}

func (f *fakeExecutions) CancelExecution(_ context.Context, req *executionspb.CancelExecutionRequest, _ ...gax.CallOption) (*executionspb.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, req.GetName())
	return &executionspb.Execution{Name: req.GetName(), State: executionspb.Execution_CANCELLED}, nil
}
