package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
	jsonContentType = "application/json"

	maxManifestBytes = 1 << 20
)

// ObjectStore opens objects addressed by s3://bucket/key manifest URLs.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// statusCoder is implemented by object store errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// Fetcher performs a single GET per manifest. It never retries; deadlines come
// from the caller's context.
type Fetcher struct {
	client  *http.Client
	objects ObjectStore
}

func NewFetcher(client *http.Client, objects ObjectStore) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, objects: objects}
}

func (f *Fetcher) Fetch(ctx context.Context, source Source) (Manifest, error) {
	if strings.HasPrefix(source.ManifestURL, "s3://") {
		return f.fetchObject(ctx, source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.ManifestURL, nil)
	if err != nil {
		return Manifest{}, &FetchError{Portal: source.Name, Kind: FetchTransport, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", jsonContentType)
	req.Header.Set("Content-Type", jsonContentType)

	resp, err := f.client.Do(req)
	if err != nil {
		return Manifest{}, &FetchError{Portal: source.Name, Kind: FetchTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxManifestBytes))
		return Manifest{}, &FetchError{
			Portal:     source.Name,
			Kind:       FetchStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	manifest, err := decodeManifest(resp.Body)
	if err != nil {
		return Manifest{}, &FetchError{Portal: source.Name, Kind: FetchDecode, Err: err}
	}
	return manifest, nil
}

func (f *Fetcher) fetchObject(ctx context.Context, source Source) (Manifest, error) {
	if f.objects == nil {
		return Manifest{}, &FetchError{
			Portal: source.Name,
			Kind:   FetchTransport,
			Err:    errors.New("object store is not configured"),
		}
	}
	bucket, key, err := parseObjectURL(source.ManifestURL)
	if err != nil {
		return Manifest{}, &FetchError{Portal: source.Name, Kind: FetchTransport, Err: err}
	}

	body, err := f.objects.Open(ctx, bucket, key)
	if err != nil {
		var coded statusCoder
		if errors.As(err, &coded) && coded.HTTPStatus() != 0 {
			return Manifest{}, &FetchError{
				Portal:     source.Name,
				Kind:       FetchStatus,
				StatusCode: coded.HTTPStatus(),
				Err:        err,
			}
		}
		return Manifest{}, &FetchError{Portal: source.Name, Kind: FetchTransport, Err: err}
	}
	defer body.Close()

	manifest, err := decodeManifest(body)
	if err != nil {
		return Manifest{}, &FetchError{Portal: source.Name, Kind: FetchDecode, Err: err}
	}
	return manifest, nil
}

func decodeManifest(r io.Reader) (Manifest, error) {
	var manifest Manifest
	if err := json.NewDecoder(io.LimitReader(r, maxManifestBytes)).Decode(&manifest); err != nil {
		return Manifest{}, err
	}
	if manifest.Files == nil {
		return Manifest{}, errors.New("missing field `files`")
	}
	return manifest, nil
}

func parseObjectURL(raw string) (bucket, key string, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse object url: %w", err)
	}
	bucket = parsed.Host
	key = strings.TrimPrefix(parsed.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("object url %q must have the form s3://bucket/key", raw)
	}
	return bucket, key, nil
}
