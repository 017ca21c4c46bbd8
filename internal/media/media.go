// Package media loads inbound attachments into memory.
package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxBytes caps an attachment download.
const DefaultMaxBytes = 16 << 20

// ErrCredentialsMissing means the transport credentials are not configured.
var ErrCredentialsMissing = errors.New("media: transport credentials missing")

// FetchError carries the upstream status of a rejected download.
type FetchError struct {
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("media: fetch failed with status %d", e.Status)
}

func download(client *http.Client, req *http.Request, maxBytes int64) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("media: read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("media: attachment exceeds %d bytes", maxBytes)
	}
	return data, nil
}
