package ai

import (
	"Pictor/core"
	"Pictor/storage"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var imageURLPattern = regexp.MustCompile(`^/images/(\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}-vivid-standard-1024x1024-[0-9a-f]{8})\.png$`)

type upstream struct {
	api      *httptest.Server
	images   *httptest.Server
	apiCalls atomic.Int32
	getCalls atomic.Int32
	requests chan ImageGenerationRequest
}

// newUpstream starts a stub generation API answering with revised and an
// image host serving body
func newUpstream(t *testing.T, revised string, body []byte) *upstream {
	t.Helper()
	u := &upstream{requests: make(chan ImageGenerationRequest, 16)}
	u.images = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.getCalls.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	u.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.apiCalls.Add(1)
		var request ImageGenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err == nil {
			u.requests <- request
		}
		jsonHandler(http.StatusOK, fmt.Sprintf(`{"created":1,"data":[{"url":%q,"revised_prompt":%q}]}`,
			u.images.URL+"/img.png", revised))(w, r)
	}))
	t.Cleanup(func() {
		u.api.Close()
		u.images.Close()
	})
	return u
}

func newTestGenerator(t *testing.T, apiURL string) (*ImageGenerator, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "images")
	store, err := storage.NewFileStore(dir, testLogger())
	require.NoError(t, err)
	return NewImageGenerator(testConfig(apiURL), testLogger(), store), dir
}

func catRequest() core.GenerationRequest {
	return core.GenerationRequest{
		Prompt:     "a cat",
		Style:      "vivid",
		Resolution: "1024x1024",
		Quality:    "standard",
	}
}

func TestGenerateImage(t *testing.T) {
	up := newUpstream(t, "a fluffy cat", pngBytes)
	generator, dir := newTestGenerator(t, up.api.URL)

	result, err := generator.GenerateImage(context.Background(), catRequest())
	require.NoError(t, err)

	assert.Equal(t, "a fluffy cat", result.RevisedPrompt)
	match := imageURLPattern.FindStringSubmatch(result.ImageURL)
	require.NotNil(t, match, result.ImageURL)
	stem := match[1]

	image, err := os.ReadFile(filepath.Join(dir, stem+".png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, image)

	sidecar, err := os.ReadFile(filepath.Join(dir, stem+".prompt"))
	require.NoError(t, err)
	assert.Equal(t, "a cat\n---\na fluffy cat", string(sidecar))
	assert.Equal(t, []string{"a cat", "a fluffy cat"}, strings.Split(string(sidecar), "\n---\n"))

	request := <-up.requests
	assert.Equal(t, ImageGenerationRequest{
		Model: "dall-e-3", Prompt: "a cat", N: 1, Size: "1024x1024", Style: "vivid", Quality: "standard",
	}, request)
	assert.Equal(t, int32(1), up.getCalls.Load())
}

func TestGenerateImageInvalidStyle(t *testing.T) {
	up := newUpstream(t, "unused", pngBytes)
	generator, dir := newTestGenerator(t, up.api.URL)

	for _, style := range []string{"dramatic", "", "VIVID"} {
		request := catRequest()
		request.Style = style
		_, err := generator.GenerateImage(context.Background(), request)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	}

	assert.Zero(t, up.apiCalls.Load())
	assert.Zero(t, up.getCalls.Load())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateImageUpstreamRejection(t *testing.T) {
	api := httptest.NewServer(jsonHandler(http.StatusBadRequest,
		`{"error":{"message":"The size is not supported by this model.","code":"invalid_size"}}`))
	defer api.Close()
	generator, dir := newTestGenerator(t, api.URL)

	request := catRequest()
	request.Resolution = "10x10"
	_, err := generator.GenerateImage(context.Background(), request)
	assert.ErrorIs(t, err, core.ErrUpstream)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateImageDownloadFailure(t *testing.T) {
	images := httptest.NewServer(http.NotFoundHandler())
	defer images.Close()
	api := httptest.NewServer(jsonHandler(http.StatusOK,
		fmt.Sprintf(`{"data":[{"url":%q,"revised_prompt":"r"}]}`, images.URL+"/gone.png")))
	defer api.Close()
	generator, dir := newTestGenerator(t, api.URL)

	_, err := generator.GenerateImage(context.Background(), catRequest())
	assert.ErrorIs(t, err, core.ErrUpstream)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateImageStoresBytesVerbatim(t *testing.T) {
	body := []byte("fixed-bytes-B")
	up := newUpstream(t, "a fluffy cat", body)
	generator, dir := newTestGenerator(t, up.api.URL)

	result, err := generator.GenerateImage(context.Background(), catRequest())
	require.NoError(t, err)

	match := imageURLPattern.FindStringSubmatch(result.ImageURL)
	require.NotNil(t, match, result.ImageURL)
	image, err := os.ReadFile(filepath.Join(dir, match[1]+".png"))
	require.NoError(t, err)
	assert.Equal(t, body, image)
}

func TestGenerateImageTruncatedDownload(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(2*len(pngBytes)))
		_, _ = w.Write(pngBytes)
	}))
	defer images.Close()
	api := httptest.NewServer(jsonHandler(http.StatusOK,
		fmt.Sprintf(`{"data":[{"url":%q,"revised_prompt":"r"}]}`, images.URL+"/img.png")))
	defer api.Close()
	generator, dir := newTestGenerator(t, api.URL)

	_, err := generator.GenerateImage(context.Background(), catRequest())
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.NotErrorIs(t, err, core.ErrStorage)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateImageStorageFailure(t *testing.T) {
	up := newUpstream(t, "r", pngBytes)
	generator, dir := newTestGenerator(t, up.api.URL)
	require.NoError(t, os.RemoveAll(dir))

	_, err := generator.GenerateImage(context.Background(), catRequest())
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestGenerateImageConcurrentRequests(t *testing.T) {
	up := newUpstream(t, "a fluffy cat", pngBytes)
	generator, dir := newTestGenerator(t, up.api.URL)
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	generator.now = func() time.Time { return fixed }

	var wg sync.WaitGroup
	results := make([]*core.GenerationResult, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := generator.GenerateImage(context.Background(), catRequest())
			assert.NoError(t, err)
			results[i] = result
		}()
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.NotEqual(t, results[0].ImageURL, results[1].ImageURL)
	for _, result := range results {
		name := strings.TrimPrefix(result.ImageURL, core.ImagesRoute)
		assert.FileExists(t, filepath.Join(dir, name))
		assert.FileExists(t, filepath.Join(dir, strings.TrimSuffix(name, ".png")+".prompt"))
	}
}

func TestListImagesNewestFirst(t *testing.T) {
	up := newUpstream(t, "revised", pngBytes)
	generator, _ := newTestGenerator(t, up.api.URL)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	generator.now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}

	var urls []string
	for i := 0; i < 4; i++ {
		request := catRequest()
		request.Prompt = fmt.Sprintf("cat %d", i)
		result, err := generator.GenerateImage(context.Background(), request)
		require.NoError(t, err)
		urls = append(urls, result.ImageURL)
	}

	entries, err := generator.ListImages(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, entry := range entries {
		n := 3 - i
		assert.Equal(t, urls[n], entry.ImageURL)
		assert.Equal(t, fmt.Sprintf("cat %d\n---\nrevised", n), entry.Prompt)
		assert.Equal(t, fmt.Sprintf("cat %d", n), entry.OriginalPrompt)
		assert.Equal(t, "revised", entry.RevisedPrompt)
	}
}

func TestListImagesEmpty(t *testing.T) {
	generator, _ := newTestGenerator(t, "http://127.0.0.1:0")
	entries, err := generator.ListImages(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestGenerateImageMemoryStore(t *testing.T) {
	up := newUpstream(t, "a fluffy cat", pngBytes)
	generator := NewImageGenerator(testConfig(up.api.URL), testLogger(), storage.NewMemoryStore())

	result, err := generator.GenerateImage(context.Background(), catRequest())
	require.NoError(t, err)

	entries, err := generator.ListImages(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.ImageURL, entries[0].ImageURL)
	assert.Equal(t, "a cat\n---\na fluffy cat", entries[0].Prompt)

	file, err := generator.OpenImage(context.Background(), strings.TrimPrefix(result.ImageURL, core.ImagesRoute))
	require.NoError(t, err)
	assert.NoError(t, file.Content.Close())
	assert.NoError(t, generator.Close())
}
