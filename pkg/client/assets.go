package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bandfolio/formkit/pkg/asset"
)

// Assets returns the remote asset store collaborator backed by this client.
func (c *Client) Assets() asset.Store {
	return &assetStore{client: c}
}

type assetStore struct {
	client *Client
}

// Upload sends the file as multipart form data and returns the public
// locator the store assigned.
func (s *assetStore) Upload(ctx context.Context, req asset.UploadRequest) (string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", req.DerivedName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, req.File.Content); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("contentType", req.File.ContentType); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.endpoint("assets"), pr)
	if err != nil {
		return "", fmt.Errorf("client: build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("client: upload %q: %w", req.DerivedName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("client: upload %q: unexpected status %d", req.DerivedName, resp.StatusCode)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("client: decode upload response: %w", err)
	}
	if payload.URL == "" {
		return "", errors.New("client: upload response carried no locator")
	}
	return payload.URL, nil
}

// Delete removes the object behind the locator. A locator that yields no
// storage path and a 404 from the store both count as success, so deleting an
// already-deleted or malformed locator never fails the caller.
func (s *assetStore) Delete(ctx context.Context, locator string) error {
	path := asset.ExtractStoragePath(locator)
	if path == "" {
		return nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.client.endpoint("assets", path), nil)
	if err != nil {
		return fmt.Errorf("client: build delete request: %w", err)
	}

	resp, err := s.client.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("client: delete %q: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("client: delete %q: unexpected status %d", path, resp.StatusCode)
	}
}
