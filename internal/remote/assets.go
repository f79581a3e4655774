package remote

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Asset is one binary attached to a created entity.
type Asset struct {
	ID          string
	OwnerID     string
	ContentType string
	Data        []byte
}

// BlobStore holds asset bytes outside the API.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// StorageKey is where an asset's bytes live in blob storage.
func StorageKey(a Asset) string {
	return fmt.Sprintf("assets/%s/%s.jpg", a.OwnerID, a.ID)
}

// UploadAsset attaches a to the entity behind endpoint. With a blob store
// configured the bytes go to storage first and the API receives a reference;
// otherwise the bytes are posted as multipart form data.
func (c *Client) UploadAsset(ctx context.Context, endpoint string, a Asset) error {
	if c.blobs != nil {
		return c.uploadViaBlobStore(ctx, endpoint, a)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("asset_id", a.ID); err != nil {
		return fmt.Errorf("encoding asset %s: %w", a.ID, err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.jpg"`, a.ID))
	h.Set("Content-Type", a.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("encoding asset %s: %w", a.ID, err)
	}
	if _, err := part.Write(a.Data); err != nil {
		return fmt.Errorf("encoding asset %s: %w", a.ID, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encoding asset %s: %w", a.ID, err)
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, &buf, w.FormDataContentType())
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

func (c *Client) uploadViaBlobStore(ctx context.Context, endpoint string, a Asset) error {
	key := StorageKey(a)
	if err := c.blobs.Put(ctx, key, a.ContentType, a.Data); err != nil {
		return fmt.Errorf("storing asset %s: %w", a.ID, err)
	}
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, map[string]any{
		"asset_id":     a.ID,
		"storage_key":  key,
		"content_type": a.ContentType,
		"size":         len(a.Data),
	})
	if err != nil {
		return err
	}
	return checkResponse(resp)
}
