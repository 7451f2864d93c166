package storage

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"textenger/config"
	"textenger/pkg/jwt"
)

var (
	// ErrInvalidPath 桶名或对象路径非法
	ErrInvalidPath = errors.New("invalid bucket or path")
	// ErrTooLarge 对象超过大小上限
	ErrTooLarge = errors.New("object too large")
	// ErrNotFound 对象不存在
	ErrNotFound = errors.New("object not found")
)

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,62}$`)

// Local 本地磁盘对象存储
// 对象落在 root/bucket/path，公开URL走 /files，签名URL走 /signed/<token>
type Local struct {
	root    string
	baseURL string
	maxSize int64
	signer  *jwt.JWTService
}

// NewLocal 创建本地存储并确保根目录存在
func NewLocal(cfg config.StorageConfig, signer *jwt.JWTService) (*Local, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &Local{
		root:    cfg.Root,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		maxSize: cfg.MaxUploadSize,
		signer:  signer,
	}, nil
}

// MaxSize 单个对象大小上限
func (l *Local) MaxSize() int64 { return l.maxSize }

// resolve 校验并拼出磁盘路径
func (l *Local) resolve(bucket, path string) (string, error) {
	if !bucketPattern.MatchString(bucket) {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidPath, bucket)
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsRune(seg, '\\') {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return filepath.Join(l.root, bucket, filepath.FromSlash(path)), nil
}

// Save 写入对象，先写临时文件再改名，返回写入字节数
func (l *Local) Save(bucket, path string, r io.Reader) (int64, error) {
	full, err := l.resolve(bucket, path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	src := r
	if l.maxSize > 0 {
		src = io.LimitReader(r, l.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if l.maxSize > 0 && n > l.maxSize {
		return 0, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return 0, err
	}
	return n, nil
}

// Open 打开对象用于读取
func (l *Local) Open(bucket, path string) (*os.File, error) {
	full, err := l.resolve(bucket, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// PublicURL 公开访问地址
func (l *Local) PublicURL(bucket, path string) string {
	return l.baseURL + "/files/" + bucket + "/" + escapePath(path)
}

// SignedURL 限时访问地址，对象必须已存在
func (l *Local) SignedURL(bucket, path string, ttl time.Duration) (string, error) {
	full, err := l.resolve(bucket, path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	token, err := l.signer.GenerateObjectToken(bucket, strings.TrimPrefix(path, "/"), ttl)
	if err != nil {
		return "", err
	}
	return l.baseURL + "/signed/" + token, nil
}

// OpenSigned 校验签名令牌并打开对象
func (l *Local) OpenSigned(token string) (*os.File, error) {
	subject, err := l.signer.ValidateObjectToken(token)
	if err != nil {
		return nil, err
	}
	bucket, path, ok := strings.Cut(subject, "/")
	if !ok {
		return nil, ErrInvalidPath
	}
	return l.Open(bucket, path)
}

func escapePath(path string) string {
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
