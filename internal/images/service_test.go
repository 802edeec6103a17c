package images

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"imgbed/pkg/types"
)

// MockGateway implements BlobGateway for testing
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Put(ctx context.Context, objectName string, data []byte) (string, error) {
	args := m.Called(ctx, objectName, data)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) Delete(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

// fakeIndex records calls without hitting a backend.
type fakeIndex struct {
	records []types.ImageRecord
	addErr  error
	removed []string
}

func (f *fakeIndex) GetAll(_ context.Context) []types.ImageRecord {
	return f.records
}

func (f *fakeIndex) Add(_ context.Context, record types.ImageRecord) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.records = append([]types.ImageRecord{record}, f.records...)
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	out := f.records[:0]
	for _, r := range f.records {
		if r.ID != id {
			out = append(out, r)
		}
	}
	f.records = out
	return nil
}

func mainFile() *File {
	return &File{Name: "a.png", Type: "image/png", Size: 10, Data: []byte("0123456789")}
}

func thumbFile() *File {
	return &File{Name: "a_thumb.webp", Type: "image/webp", Size: 4, Data: []byte("webp")}
}

func TestUpload_MainOnly(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{}
	service := NewService(gateway, idx, "https://img.example.com/")

	gateway.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return len(name) == 40 && name[36:] == ".png" // uuid + ext
	}), []byte("0123456789")).Return("https://api.example.com/pkg/obj.png", nil)

	result, err := service.Upload(context.Background(), mainFile(), nil)
	require.NoError(t, err)

	require.Len(t, idx.records, 1)
	rec := idx.records[0]
	assert.Equal(t, "a.png", rec.Name)
	assert.Equal(t, int64(10), rec.Size)
	assert.Equal(t, "image/png", rec.Type)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, rec.ID+".png", rec.ObjectName)
	assert.Empty(t, rec.ThumbnailObjectName)
	assert.False(t, rec.HasThumbnail())

	assert.Equal(t, "https://img.example.com/image/"+rec.ObjectName, result.URL)
	assert.Equal(t, "https://api.example.com/pkg/obj.png", result.URLOriginal)
	assert.Empty(t, result.ThumbnailURL)
	assert.Empty(t, result.ThumbnailOriginalURL)

	gateway.AssertExpectations(t)
}

func TestUpload_WithThumbnail(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return name[len(name)-4:] == ".png"
	}), mock.Anything).Return("https://api.example.com/main.png", nil)
	gateway.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return name[len(name)-11:] == "_thumb.webp"
	}), mock.Anything).Return("https://api.example.com/thumb.webp", nil)

	result, err := service.Upload(context.Background(), mainFile(), thumbFile())
	require.NoError(t, err)

	require.Len(t, idx.records, 1)
	rec := idx.records[0]
	assert.Equal(t, rec.ID+"_thumb.webp", rec.ThumbnailObjectName)
	assert.True(t, rec.HasThumbnail())
	assert.Equal(t, "https://img.example.com/image/"+rec.ID+"_thumb.webp", result.ThumbnailURL)
	assert.Equal(t, "https://api.example.com/thumb.webp", result.ThumbnailOriginalURL)
}

func TestUpload_NoFile(t *testing.T) {
	service := NewService(&MockGateway{}, &fakeIndex{}, "https://img.example.com")

	_, err := service.Upload(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = service.Upload(context.Background(), &File{Name: "a.png"}, nil)
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestUpload_DefaultExtension(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return name[len(name)-4:] == ".png"
	}), mock.Anything).Return("url", nil)

	_, err := service.Upload(context.Background(), &File{Name: "noext", Size: 3, Data: []byte("abc")}, nil)
	require.NoError(t, err)
	assert.Equal(t, idx.records[0].ID+".png", idx.records[0].ObjectName)
}

func TestUpload_MainFailureWritesNothing(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Put", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("upstream returned 500"))

	_, err := service.Upload(context.Background(), mainFile(), thumbFile())
	require.Error(t, err)
	assert.ErrorContains(t, err, "storing image")

	assert.Empty(t, idx.records)
	gateway.AssertNumberOfCalls(t, "Put", 1)
	gateway.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUpload_ThumbnailFailureCompensates(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{}
	service := NewService(gateway, idx, "https://img.example.com")

	var mainObject string
	gateway.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		if name[len(name)-4:] == ".png" {
			mainObject = name
			return true
		}
		return false
	}), mock.Anything).Return("url", nil)
	gateway.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return name[len(name)-11:] == "_thumb.webp"
	}), mock.Anything).Return("", errors.New("upstream returned 500"))
	gateway.On("Delete", mock.Anything, mock.Anything).Return(nil)

	_, err := service.Upload(context.Background(), mainFile(), thumbFile())
	require.Error(t, err)
	assert.ErrorContains(t, err, "storing thumbnail")

	// The committed main blob was compensated away and no record was written.
	assert.Empty(t, idx.records)
	gateway.AssertCalled(t, "Delete", mock.Anything, mainObject)
}

func TestUpload_CompensationFailureStillSurfacesThumbnailError(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return name[len(name)-4:] == ".png"
	}), mock.Anything).Return("url", nil)
	gateway.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return name[len(name)-11:] == "_thumb.webp"
	}), mock.Anything).Return("", errors.New("thumb failed"))
	gateway.On("Delete", mock.Anything, mock.Anything).Return(errors.New("delete failed"))

	_, err := service.Upload(context.Background(), mainFile(), thumbFile())
	assert.ErrorContains(t, err, "storing thumbnail")
	assert.Empty(t, idx.records)
}

func TestUpload_PersistFailureSurfaces(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{addErr: errors.New("index write failed")}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("url", nil)

	_, err := service.Upload(context.Background(), mainFile(), nil)
	assert.ErrorContains(t, err, "recording image")
}

func TestDelete_ExistingRecord(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{records: []types.ImageRecord{{
		ID:                  "id-1",
		Name:                "a.jpg",
		ObjectName:          "id-1.jpg",
		ThumbnailURL:        "https://img.example.com/image/id-1_thumb.webp",
		ThumbnailObjectName: "id-1_thumb.webp",
	}}}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Delete", mock.Anything, "id-1.jpg").Return(nil)
	gateway.On("Delete", mock.Anything, "id-1_thumb.webp").Return(nil)

	require.NoError(t, service.Delete(context.Background(), "id-1"))

	assert.Empty(t, idx.records)
	assert.Equal(t, []string{"id-1"}, idx.removed)
	gateway.AssertExpectations(t)
}

func TestDelete_LegacyRecordDerivesObjectNames(t *testing.T) {
	gateway := &MockGateway{}
	// A record persisted before explicit object names were stored.
	idx := &fakeIndex{records: []types.ImageRecord{{
		ID:           "id-2",
		Name:         "photo.jpeg",
		ThumbnailURL: "https://img.example.com/image/id-2_thumb.webp",
	}}}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Delete", mock.Anything, "id-2.jpeg").Return(nil)
	gateway.On("Delete", mock.Anything, "id-2_thumb.webp").Return(nil)

	require.NoError(t, service.Delete(context.Background(), "id-2"))
	gateway.AssertExpectations(t)
}

func TestDelete_NoThumbnailSkipsThumbDelete(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{records: []types.ImageRecord{{ID: "id-3", Name: "a.png", ObjectName: "id-3.png"}}}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Delete", mock.Anything, "id-3.png").Return(nil)

	require.NoError(t, service.Delete(context.Background(), "id-3"))
	gateway.AssertNumberOfCalls(t, "Delete", 1)
}

func TestDelete_MissingRecordStillRemovesFromIndex(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{records: []types.ImageRecord{{ID: "other", ObjectName: "other.png"}}}
	service := NewService(gateway, idx, "https://img.example.com")

	require.NoError(t, service.Delete(context.Background(), "ghost"))

	// Defensive removal ran, no blob deletes were attempted, and the rest of
	// the index is untouched.
	assert.Equal(t, []string{"ghost"}, idx.removed)
	require.Len(t, idx.records, 1)
	assert.Equal(t, "other", idx.records[0].ID)
	gateway.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDelete_BlobFailureDoesNotAbort(t *testing.T) {
	gateway := &MockGateway{}
	idx := &fakeIndex{records: []types.ImageRecord{{ID: "id-4", Name: "a.png", ObjectName: "id-4.png"}}}
	service := NewService(gateway, idx, "https://img.example.com")

	gateway.On("Delete", mock.Anything, "id-4.png").Return(errors.New("upstream returned 500"))

	require.NoError(t, service.Delete(context.Background(), "id-4"))
	assert.Empty(t, idx.records)
}

func TestDelete_MissingID(t *testing.T) {
	service := NewService(&MockGateway{}, &fakeIndex{}, "https://img.example.com")
	assert.ErrorIs(t, service.Delete(context.Background(), ""), ErrMissingID)
}

func TestList_ReturnsIndex(t *testing.T) {
	idx := &fakeIndex{records: []types.ImageRecord{{ID: "b"}, {ID: "a"}}}
	service := NewService(&MockGateway{}, idx, "https://img.example.com")

	recs := service.List(context.Background())
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].ID)
}
