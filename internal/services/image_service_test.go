package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oilclothshop/backend/internal/cache"
	"github.com/oilclothshop/backend/internal/models"
	"github.com/oilclothshop/backend/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockImageRepository is a mock implementation of ImageRepository
type mockImageRepository struct {
	images    []models.Image
	image     *models.Image
	data      *models.ImageData
	version   time.Time
	err       error
	dataCalls int

	updatedName string
	updatedData []byte
	deletedID   int64
}

func (m *mockImageRepository) GetAll(ctx context.Context) ([]models.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.images, nil
}

func (m *mockImageRepository) GetByID(ctx context.Context, id int64, includeData bool) (*models.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.image, nil
}

func (m *mockImageRepository) GetVersion(ctx context.Context, id int64) (time.Time, error) {
	if m.err != nil {
		return time.Time{}, m.err
	}
	return m.version, nil
}

func (m *mockImageRepository) GetData(ctx context.Context, id int64) (*models.ImageData, error) {
	m.dataCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

func (m *mockImageRepository) Create(ctx context.Context, name string, data []byte) (*models.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.image, nil
}

func (m *mockImageRepository) Update(ctx context.Context, id int64, name string, data []byte) (*models.Image, error) {
	m.updatedName = name
	m.updatedData = data
	if m.err != nil {
		return nil, m.err
	}
	return m.image, nil
}

func (m *mockImageRepository) Delete(ctx context.Context, id int64) error {
	m.deletedID = id
	return m.err
}

type cacheKey struct {
	id      int64
	version int64
}

// mockImageCache is a map backed cache that can be told to fail
type mockImageCache struct {
	entries  map[cacheKey]*models.ImageData
	getErr   error
	setErr   error
	setCalls int
}

func newMockImageCache() *mockImageCache {
	return &mockImageCache{entries: map[cacheKey]*models.ImageData{}}
}

func (m *mockImageCache) Get(ctx context.Context, id int64, version time.Time) (*models.ImageData, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if d, ok := m.entries[cacheKey{id, version.UnixMicro()}]; ok {
		return d, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *mockImageCache) Set(ctx context.Context, id int64, data *models.ImageData) error {
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[cacheKey{id, data.UpdatedAt.UnixMicro()}] = data
	return nil
}

func (m *mockImageCache) Close() error { return nil }

// storedImageRepository keeps a single image in memory and can hold a payload read
// between taking its snapshot and returning it
type storedImageRepository struct {
	mockImageRepository

	mu      sync.Mutex
	name    string
	payload []byte
	version time.Time
	deleted bool

	snapshotTaken chan struct{}
	release       chan struct{}
}

func newStoredImageRepository(name string, payload []byte) *storedImageRepository {
	return &storedImageRepository{
		name:    name,
		payload: payload,
		version: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// holdNextRead makes the next GetData block after reading until release is closed
func (r *storedImageRepository) holdNextRead() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshotTaken = make(chan struct{})
	r.release = make(chan struct{})
}

func (r *storedImageRepository) GetVersion(ctx context.Context, id int64) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return time.Time{}, models.ErrImageNotFound
	}
	return r.version, nil
}

func (r *storedImageRepository) GetData(ctx context.Context, id int64) (*models.ImageData, error) {
	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return nil, models.ErrImageNotFound
	}
	snapshot := &models.ImageData{Name: r.name, Data: r.payload, UpdatedAt: r.version}
	taken, release := r.snapshotTaken, r.release
	r.snapshotTaken, r.release = nil, nil
	r.mu.Unlock()

	if taken != nil {
		close(taken)
		<-release
	}
	return snapshot, nil
}

func (r *storedImageRepository) Update(ctx context.Context, id int64, name string, data []byte) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return nil, models.ErrImageNotFound
	}
	r.name = name
	if data != nil {
		r.payload = data
	}
	r.version = r.version.Add(time.Microsecond)
	return &models.Image{ID: id, Name: name, UpdatedAt: r.version}, nil
}

func (r *storedImageRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return models.ErrImageNotFound
	}
	r.deleted = true
	return nil
}

func newTestImageService(repo *mockImageRepository, c *mockImageCache) *imageService {
	logger, _ := zap.NewDevelopment()
	return NewImageService(repo, c, validation.New(), logger)
}

func TestNewImageService(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	repo := &mockImageRepository{}
	c := newMockImageCache()
	v := validation.New()

	svc := NewImageService(repo, c, v, logger)

	assert.NotNil(t, svc)
	assert.Equal(t, repo, svc.repo)
	assert.Equal(t, c, svc.cache)
	assert.Equal(t, v, svc.validator)
	assert.Equal(t, logger, svc.logger)
}

func TestImageService_ListImages(t *testing.T) {
	tests := []struct {
		name          string
		mockRepo      *mockImageRepository
		expectedError bool
		expectedCount int
	}{
		{
			name: "success",
			mockRepo: &mockImageRepository{images: []models.Image{
				{ID: 2, Name: "b.png"},
				{ID: 1, Name: "a.jpg"},
			}},
			expectedCount: 2,
		},
		{
			name:          "empty",
			mockRepo:      &mockImageRepository{images: []models.Image{}},
			expectedCount: 0,
		},
		{
			name:          "repository error",
			mockRepo:      &mockImageRepository{err: errors.New("database error")},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestImageService(tt.mockRepo, newMockImageCache())

			result, err := svc.ListImages(context.Background())

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Len(t, result, tt.expectedCount)
			}
		})
	}
}

func TestImageService_GetImage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		img := &models.Image{ID: 3, Name: "roll.png", Data: []byte{1}}
		svc := newTestImageService(&mockImageRepository{image: img}, newMockImageCache())

		result, err := svc.GetImage(context.Background(), 3, true)

		require.NoError(t, err)
		assert.Equal(t, img, result)
	})

	t.Run("not found keeps sentinel", func(t *testing.T) {
		svc := newTestImageService(&mockImageRepository{err: models.ErrImageNotFound}, newMockImageCache())

		result, err := svc.GetImage(context.Background(), 3, false)

		assert.ErrorIs(t, err, models.ErrImageNotFound)
		assert.Nil(t, result)
	})
}

func TestImageService_GetImageData(t *testing.T) {
	version := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)
	payload := &models.ImageData{Name: "roll.PNG", Data: []byte{0x89, 0x50}, UpdatedAt: version}
	key := cacheKey{5, version.UnixMicro()}

	t.Run("miss loads from repository and fills cache", func(t *testing.T) {
		repo := &mockImageRepository{data: payload, version: version}
		c := newMockImageCache()
		svc := newTestImageService(repo, c)

		result, err := svc.GetImageData(context.Background(), 5)

		require.NoError(t, err)
		assert.Equal(t, payload, result)
		assert.Equal(t, 1, repo.dataCalls)
		assert.Equal(t, payload, c.entries[key])
	})

	t.Run("hit for current version skips payload read", func(t *testing.T) {
		repo := &mockImageRepository{data: payload, version: version}
		c := newMockImageCache()
		c.entries[key] = payload
		svc := newTestImageService(repo, c)

		result, err := svc.GetImageData(context.Background(), 5)

		require.NoError(t, err)
		assert.Equal(t, payload, result)
		assert.Equal(t, 0, repo.dataCalls)
	})

	t.Run("entry of an older version is ignored", func(t *testing.T) {
		newer := version.Add(time.Second)
		fresh := &models.ImageData{Name: "roll.PNG", Data: []byte("NEW"), UpdatedAt: newer}
		repo := &mockImageRepository{data: fresh, version: newer}
		c := newMockImageCache()
		c.entries[key] = payload
		svc := newTestImageService(repo, c)

		result, err := svc.GetImageData(context.Background(), 5)

		require.NoError(t, err)
		assert.Equal(t, []byte("NEW"), result.Data)
		assert.Equal(t, 1, repo.dataCalls)
	})

	t.Run("cache failure falls back to repository", func(t *testing.T) {
		repo := &mockImageRepository{data: payload, version: version}
		c := newMockImageCache()
		c.getErr = errors.New("redis down")
		c.setErr = errors.New("redis down")
		svc := newTestImageService(repo, c)

		result, err := svc.GetImageData(context.Background(), 5)

		require.NoError(t, err)
		assert.Equal(t, payload, result)
		assert.Equal(t, 1, repo.dataCalls)
	})

	t.Run("deleted image is not served from cache", func(t *testing.T) {
		repo := &mockImageRepository{err: models.ErrImageNotFound}
		c := newMockImageCache()
		c.entries[key] = payload
		svc := newTestImageService(repo, c)

		result, err := svc.GetImageData(context.Background(), 5)

		assert.ErrorIs(t, err, models.ErrImageNotFound)
		assert.Nil(t, result)
		assert.Equal(t, 0, c.setCalls)
	})
}

// readHeldAcross starts a payload read, lets change run while the read holds its snapshot,
// then lets the read finish and returns what it served
func readHeldAcross(t *testing.T, svc *imageService, repo *storedImageRepository, change func()) *models.ImageData {
	t.Helper()
	repo.holdNextRead()
	taken := repo.snapshotTaken
	release := repo.release

	type result struct {
		data *models.ImageData
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := svc.GetImageData(context.Background(), 1)
		done <- result{data, err}
	}()

	select {
	case <-taken:
	case <-time.After(2 * time.Second):
		t.Fatal("payload read did not start")
	}
	change()
	close(release)

	res := <-done
	require.NoError(t, res.err)
	return res.data
}

func TestImageService_GetImageData_ReadRacingWrite(t *testing.T) {
	newService := func(t *testing.T) (*imageService, *storedImageRepository) {
		c, err := cache.NewRistrettoCache(cache.RistrettoConfig{MaxBytes: 1 << 20, TTL: time.Hour})
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })

		repo := newStoredImageRepository("roll.png", []byte("OLD"))
		return NewImageService(repo, c, validation.New(), zap.NewNop()), repo
	}

	t.Run("replacement is served after a read that started before it", func(t *testing.T) {
		svc, repo := newService(t)

		served := readHeldAcross(t, svc, repo, func() {
			_, err := svc.UpdateImage(context.Background(), 1, &models.UpdateImageRequest{Name: "roll.png", Data: []byte("NEW")})
			require.NoError(t, err)
		})
		assert.Equal(t, []byte("OLD"), served.Data)

		for i := 0; i < 2; i++ {
			data, err := svc.GetImageData(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, []byte("NEW"), data.Data)
		}
	})

	t.Run("rename changes the served name", func(t *testing.T) {
		svc, repo := newService(t)

		readHeldAcross(t, svc, repo, func() {
			_, err := svc.UpdateImage(context.Background(), 1, &models.UpdateImageRequest{Name: "roll.gif"})
			require.NoError(t, err)
		})

		data, err := svc.GetImageData(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "roll.gif", data.Name)
		assert.Equal(t, []byte("OLD"), data.Data)
	})

	t.Run("deleted image is not found after a read that started before the delete", func(t *testing.T) {
		svc, repo := newService(t)

		readHeldAcross(t, svc, repo, func() {
			require.NoError(t, svc.DeleteImage(context.Background(), 1))
		})

		data, err := svc.GetImageData(context.Background(), 1)
		assert.ErrorIs(t, err, models.ErrImageNotFound)
		assert.Nil(t, data)
	})
}

func TestImageService_CreateImage(t *testing.T) {
	created := &models.Image{ID: 9, Name: "roll.jpg", CreatedAt: time.Now(), UpdatedAt: time.Now()}

	tests := []struct {
		name          string
		req           *models.CreateImageRequest
		mockRepo      *mockImageRepository
		expectedError error
	}{
		{
			name:     "success",
			req:      &models.CreateImageRequest{Name: "roll.jpg", Data: []byte{0xFF, 0xD8}},
			mockRepo: &mockImageRepository{image: created},
		},
		{
			name:          "missing name",
			req:           &models.CreateImageRequest{Data: []byte{1}},
			mockRepo:      &mockImageRepository{image: created},
			expectedError: models.ErrValidation,
		},
		{
			name:          "empty payload",
			req:           &models.CreateImageRequest{Name: "roll.jpg", Data: []byte{}},
			mockRepo:      &mockImageRepository{image: created},
			expectedError: models.ErrValidation,
		},
		{
			name:          "repository error",
			req:           &models.CreateImageRequest{Name: "roll.jpg", Data: []byte{1}},
			mockRepo:      &mockImageRepository{err: errors.New("database error")},
			expectedError: errors.New("failed to create image"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestImageService(tt.mockRepo, newMockImageCache())

			result, err := svc.CreateImage(context.Background(), tt.req)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.Nil(t, result)
				if errors.Is(tt.expectedError, models.ErrValidation) {
					assert.ErrorIs(t, err, models.ErrValidation)
				} else {
					assert.NotErrorIs(t, err, models.ErrValidation)
					assert.Contains(t, err.Error(), tt.expectedError.Error())
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, created, result)
			}
		})
	}
}

func TestImageService_UpdateImage(t *testing.T) {
	updated := &models.Image{ID: 4, Name: "renamed.png"}

	tests := []struct {
		name          string
		req           *models.UpdateImageRequest
		mockRepo      *mockImageRepository
		expectedData  []byte
		expectedError error
	}{
		{
			name:         "rename and replace payload",
			req:          &models.UpdateImageRequest{Name: "renamed.png", Data: []byte{7, 7}},
			mockRepo:     &mockImageRepository{image: updated},
			expectedData: []byte{7, 7},
		},
		{
			name:         "rename only",
			req:          &models.UpdateImageRequest{Name: "renamed.png"},
			mockRepo:     &mockImageRepository{image: updated},
			expectedData: nil,
		},
		{
			name:         "empty payload counts as none",
			req:          &models.UpdateImageRequest{Name: "renamed.png", Data: []byte{}},
			mockRepo:     &mockImageRepository{image: updated},
			expectedData: nil,
		},
		{
			name:          "missing name",
			req:           &models.UpdateImageRequest{Data: []byte{1}},
			mockRepo:      &mockImageRepository{image: updated},
			expectedError: models.ErrValidation,
		},
		{
			name:          "not found",
			req:           &models.UpdateImageRequest{Name: "renamed.png"},
			mockRepo:      &mockImageRepository{err: models.ErrImageNotFound},
			expectedError: models.ErrImageNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestImageService(tt.mockRepo, newMockImageCache())

			result, err := svc.UpdateImage(context.Background(), 4, tt.req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, updated, result)
				assert.Equal(t, "renamed.png", tt.mockRepo.updatedName)
				assert.Equal(t, tt.expectedData, tt.mockRepo.updatedData)
			}
		})
	}
}

func TestImageService_DeleteImage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := &mockImageRepository{}
		svc := newTestImageService(repo, newMockImageCache())

		err := svc.DeleteImage(context.Background(), 6)

		require.NoError(t, err)
		assert.Equal(t, int64(6), repo.deletedID)
	})

	t.Run("not found", func(t *testing.T) {
		repo := &mockImageRepository{err: models.ErrImageNotFound}
		svc := newTestImageService(repo, newMockImageCache())

		err := svc.DeleteImage(context.Background(), 6)

		assert.ErrorIs(t, err, models.ErrImageNotFound)
	})
}
