package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 stores objects in memory and satisfies S3API.
type fakeS3 struct {
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func newTestS3Store(client S3API) *S3Store {
	return NewS3Store(client, "allocator", "allocations.json", "tasks.json", zerolog.Nop())
}

func TestS3Store_MissingObjectIsEmptyCollection(t *testing.T) {
	store := newTestS3Store(newFakeS3())

	allocations, err := store.LoadAllocations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, allocations)
}

func TestS3Store_AllocationRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := newTestS3Store(fake)
	ctx := context.Background()

	require.NoError(t, store.SaveAllocation(ctx, "ab12", sampleRows()))
	require.NoError(t, store.SaveAllocation(ctx, "cd34", sampleRows()[:1]))

	loaded, err := store.LoadAllocations(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Len(t, loaded["ab12"], 3)

	// Documents are stored as indented JSON keyed by id.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(fake.objects["allocations.json"], &raw))
	assert.Contains(t, raw, "ab12")
	assert.Contains(t, raw, "cd34")
}

func TestS3Store_TaskRoundTrip(t *testing.T) {
	store := newTestS3Store(newFakeS3())
	ctx := context.Background()

	task := TaskRecord{
		AssetSymbols:    []string{"MSFT"},
		TotalInvestment: 50000,
		RiskFreeRate:    0.04,
	}
	require.NoError(t, store.SaveTask(ctx, "ef56", task))

	loaded, err := store.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, task, loaded["ef56"])
}

func TestS3Store_GetErrorPropagates(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = assert.AnError
	store := newTestS3Store(fake)

	_, err := store.LoadAllocations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allocations.json")
}

func TestS3Store_PutErrorPropagates(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = assert.AnError
	store := newTestS3Store(fake)

	err := store.SaveAllocation(context.Background(), "ab12", sampleRows())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put")
}
