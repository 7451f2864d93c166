package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"textenger/pkg/response"
)

func objectPath(bucket, p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// Upload 以 multipart 表单上传对象，边读边写不整体缓存
func (c *Client) Upload(ctx context.Context, bucket, p string, r io.Reader, size int64, contentType string) error {
	var out response.UploadResponse
	if err := c.postFile(ctx, "/api/v1/storage/object/"+objectPath(bucket, p), path.Base(p), r, contentType, &out); err != nil {
		return err
	}
	if size >= 0 && out.Size != size {
		return fmt.Errorf("upload %s/%s: stored %d bytes, expected %d", bucket, p, out.Size, size)
	}
	return nil
}

// postFile 把 r 作为表单字段 file 流式提交
func (c *Client) postFile(ctx context.Context, escapedPath, filename string, r io.Reader, contentType string, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(escapedPath, nil), pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := c.send(req, out); err != nil {
		_ = pr.Close()
		return err
	}
	return nil
}

// PublicURL 公开访问地址，与服务端 /files 路由对应
func (c *Client) PublicURL(bucket, p string) string {
	return c.endpoint("", nil) + "/files/" + objectPath(bucket, p)
}

// SignedURL 向服务端申请限时访问地址
func (c *Client) SignedURL(ctx context.Context, bucket, p string, ttl time.Duration) (string, error) {
	var out response.SignedURLResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/storage/sign", nil, map[string]any{
		"bucket":     bucket,
		"path":       p,
		"expires_in": int64(ttl / time.Second),
	}, &out)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}
