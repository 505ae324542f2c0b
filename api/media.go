package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// DownloadMedia fetches an authenticated media artifact (uploads, generated
// audio/video/images). fileURL may be absolute or a backend-relative path
// like "/api/uploads/x.mp3". The caller owns the returned reader.
func (c *Client) DownloadMedia(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	url := fileURL
	if strings.HasPrefix(fileURL, "/") {
		url = c.baseURL + fileURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building media request")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", fileURL)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		c.handleUnauthorized()
		return nil, errors.Wrapf(ErrUnauthorized, "fetching %s", fileURL)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errors.Errorf("fetching %s: %s", fileURL, resp.Status)
	}
	return resp.Body, nil
}
