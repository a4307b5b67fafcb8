package ai

import (
	"Pictor/core"
	"Pictor/lib/sl"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	maxResponseBytes = 1 << 20
	sniffBytes       = 3072
)

// DallE talks to the OpenAI images API and to the host serving generated images
type DallE struct {
	conf       *core.Config
	log        *slog.Logger
	httpClient *http.Client
}

func NewDallE(conf *core.Config, log *slog.Logger) *DallE {
	return &DallE{
		conf:       conf,
		log:        log.With(sl.Module("dall-e")),
		httpClient: &http.Client{},
	}
}

// Generate requests one image and returns its url and revised prompt
func (d *DallE) Generate(ctx context.Context, request *ImageGenerationRequest) (*ImageData, error) {
	if d.conf.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.conf.GenerateTimeout)
		defer cancel()
	}

	jsonBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.conf.ApiURL, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, core.Upstream(fmt.Errorf("making request: %w", err))
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", d.conf.DalleApiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, core.Upstream(fmt.Errorf("getting response: %w", err))
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			d.log.Error("closing response body", sl.Err(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, core.Upstream(fmt.Errorf("reading response body: %w", err))
	}
	d.log.With(
		slog.Int("status", resp.StatusCode),
		sl.Truncate("body", string(body), 2000),
	).Debug("dall-e returned")

	var response ImageGenerationResponse
	if err = json.Unmarshal(body, &response); err != nil {
		if !successful(resp.StatusCode) {
			return nil, core.Upstream(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		return nil, core.Upstream(fmt.Errorf("decoding response: %w", err))
	}
	if response.Error != nil && response.Error.Message != "" {
		return nil, core.Upstream(fmt.Errorf("api error (status %d, code %q): %s",
			resp.StatusCode, response.Error.Code, response.Error.Message))
	}
	if !successful(resp.StatusCode) {
		return nil, core.Upstream(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if len(response.Data) == 0 {
		return nil, core.Upstream(errors.New("image generation: empty data"))
	}
	image := response.Data[0]
	if image.URL == "" {
		return nil, core.Upstream(errors.New("image generation: missing image url"))
	}
	return &image, nil
}

// Download opens a stream of the image at url. The bytes are passed through
// untouched; the sniffed content type is only logged.
// Read errors of the returned stream are upstream errors.
func (d *DallE) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	cancel := context.CancelFunc(func() {})
	if d.conf.DownloadTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.conf.DownloadTimeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, core.Upstream(fmt.Errorf("making download request: %w", err))
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, core.Upstream(fmt.Errorf("downloading image: %w", err))
	}
	fail := func(err error) (io.ReadCloser, error) {
		_ = resp.Body.Close()
		cancel()
		return nil, core.Upstream(err)
	}

	if !successful(resp.StatusCode) {
		return fail(fmt.Errorf("downloading image: status %d", resp.StatusCode))
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fail(fmt.Errorf("reading image: %w", err))
	}
	head = head[:n]
	mtype := mimetype.Detect(head)
	log := d.log.With(
		slog.String("type", mtype.String()),
		slog.Int64("length", resp.ContentLength),
	)
	if strings.HasPrefix(mtype.String(), "image/") {
		log.Debug("image download started")
	} else {
		log.Warn("downloaded content does not look like an image, storing as is")
	}

	return &download{
		reader: io.MultiReader(bytes.NewReader(head), resp.Body),
		body:   resp.Body,
		cancel: cancel,
	}, nil
}

type download struct {
	reader io.Reader
	body   io.Closer
	cancel context.CancelFunc
}

func (d *download) Read(p []byte) (int, error) {
	n, err := d.reader.Read(p)
	if err != nil && err != io.EOF {
		err = core.Upstream(fmt.Errorf("reading image: %w", err))
	}
	return n, err
}

func (d *download) Close() error {
	err := d.body.Close()
	d.cancel()
	return err
}

func successful(status int) bool {
	return status >= 200 && status < 300
}
