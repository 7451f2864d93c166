package chatsync

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"textenger/internal/model"
)

// MaxAttachmentSize 单个附件上限 10MB
const MaxAttachmentSize = 10 << 20

// URLMode 附件地址类型
type URLMode string

const (
	URLPublic URLMode = "public"
	URLSigned URLMode = "signed"
)

// Attachment 待发送的附件
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

func (a *Attachment) Size() int64 { return int64(len(a.Data)) }

// ext 文件扩展名（不含点），无法推断时为 bin
func (a *Attachment) ext() string {
	if e := strings.TrimPrefix(filepath.Ext(a.Name), "."); e != "" {
		return strings.ToLower(e)
	}
	if exts, _ := mime.ExtensionsByType(a.ContentType); len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

// AudioCapture 录音设备
type AudioCapture interface {
	Start(ctx context.Context) (Recording, error)
}

// Recording 进行中的录音，Stop 返回 WAV 数据
type Recording interface {
	Stop() ([]byte, error)
	Cancel()
}

// ComposerBackend 发送消息所需的后端能力
type ComposerBackend interface {
	MessageSource
	BlobStore
	Session
}

// ComposerOptions 发送配置
type ComposerOptions struct {
	Logger    *zap.Logger
	Toaster   Toaster
	Bucket    string
	URLMode   URLMode
	SignedTTL time.Duration
	MaxSize   int64
	Capture   AudioCapture
	Now       func() time.Time
}

// Composer 输入框：文本、附件、语音，发送时只插入一条记录
// 发送成功后不直接修改消息列表，等待实时回显
type Composer struct {
	backend ComposerBackend
	opts    ComposerOptions
	log     *zap.Logger

	mu         sync.Mutex
	scope      model.Scope
	text       string
	attachment *Attachment
	recording  Recording
	sending    bool
}

func NewComposer(backend ComposerBackend, scope model.Scope, opts ComposerOptions) *Composer {
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if opts.Toaster == nil {
		opts.Toaster = nopToaster{}
	}
	if opts.Bucket == "" {
		opts.Bucket = "attachments"
	}
	if opts.URLMode == "" {
		opts.URLMode = URLSigned
	}
	if opts.SignedTTL <= 0 {
		opts.SignedTTL = 24 * time.Hour
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = MaxAttachmentSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Composer{
		backend: backend,
		opts:    opts,
		log:     opts.Logger.Named("composer"),
		scope:   scope,
	}
}

// SetScope 切换目标会话，草稿随之清空
func (c *Composer) SetScope(scope model.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope = scope
	c.resetLocked()
}

func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Attach 设置附件，超过大小上限返回 ErrAttachmentTooLarge
func (c *Composer) Attach(a Attachment) error {
	if a.Size() > c.opts.MaxSize {
		c.opts.Toaster.Toast("File too large", ErrAttachmentTooLarge)
		return fmt.Errorf("%w: %s is %d bytes", ErrAttachmentTooLarge, a.Name, a.Size())
	}
	if a.ContentType == "" {
		a.ContentType = mime.TypeByExtension(filepath.Ext(a.Name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = &a
	return nil
}

func (c *Composer) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = nil
}

func (c *Composer) Attachment() *Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment
}

// StartRecording 开始录制语音，同一时间只允许一个录音
func (c *Composer) StartRecording(ctx context.Context) error {
	if c.opts.Capture == nil {
		return ErrNoCapture
	}
	c.mu.Lock()
	if c.recording != nil {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.mu.Unlock()

	rec, err := c.opts.Capture.Start(ctx)
	if err != nil {
		c.opts.Toaster.Toast("Could not access microphone", err)
		return fmt.Errorf("start recording: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording != nil {
		rec.Cancel()
		return ErrAlreadyRecording
	}
	c.recording = rec
	return nil
}

// StopRecording 结束录音，生成的 WAV 作为附件
func (c *Composer) StopRecording() error {
	c.mu.Lock()
	rec := c.recording
	c.recording = nil
	c.mu.Unlock()
	if rec == nil {
		return ErrNotRecording
	}

	data, err := rec.Stop()
	if err != nil {
		c.opts.Toaster.Toast("Recording failed", err)
		return fmt.Errorf("stop recording: %w", err)
	}
	return c.Attach(Attachment{
		Name:        fmt.Sprintf("voice-note-%d.wav", c.opts.Now().UnixMilli()),
		ContentType: "audio/wav",
		Data:        data,
	})
}

func (c *Composer) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording != nil
}

func (c *Composer) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Submit 发送草稿：先上传附件，再插入一条消息
// 任何一步失败都保留草稿；成功后清空草稿
func (c *Composer) Submit(ctx context.Context) (*model.Message, error) {
	self, ok := c.backend.CurrentUserID()
	if !ok {
		return nil, ErrNoSession
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return nil, ErrSendInFlight
	}
	text := strings.TrimSpace(c.text)
	att := c.attachment
	scope := c.scope
	if text == "" && att == nil {
		c.mu.Unlock()
		return nil, ErrEmptyDraft
	}
	c.sending = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	msg := &model.Message{AuthorID: self, Content: text}
	scope.Stamp(msg)

	if att != nil {
		url, err := c.upload(ctx, self, att)
		if err != nil {
			c.log.Error("上传附件失败", zap.String("name", att.Name), zap.Error(err))
			c.opts.Toaster.Toast("Failed to upload file", err)
			return nil, err
		}
		msg.AttachmentURL = url
		msg.AttachmentType = att.ContentType
		msg.AttachmentName = att.Name
		msg.AttachmentSize = att.Size()
		if msg.Content == "" {
			msg.Content = AttachmentFallback
		}
	}

	inserted, err := c.backend.InsertMessage(ctx, msg)
	if err != nil {
		c.log.Error("发送消息失败", zap.String("scope", scope.Key()), zap.Error(err))
		c.opts.Toaster.Toast("Failed to send message", err)
		return nil, fmt.Errorf("send message: %w", err)
	}

	c.mu.Lock()
	if c.scope == scope {
		c.resetLocked()
	}
	c.mu.Unlock()
	return inserted, nil
}

// upload 上传附件并返回可访问的URL
func (c *Composer) upload(ctx context.Context, self int64, att *Attachment) (string, error) {
	if att.Size() > c.opts.MaxSize {
		return "", ErrAttachmentTooLarge
	}
	path := fmt.Sprintf("attachments/%d-%d.%s", self, c.opts.Now().UnixMilli(), att.ext())
	if err := c.backend.Upload(ctx, c.opts.Bucket, path, bytes.NewReader(att.Data), att.Size(), att.ContentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if c.opts.URLMode == URLPublic {
		return c.backend.PublicURL(c.opts.Bucket, path), nil
	}
	url, err := c.backend.SignedURL(ctx, c.opts.Bucket, path, c.opts.SignedTTL)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", path, err)
	}
	return url, nil
}

func (c *Composer) resetLocked() {
	c.text = ""
	c.attachment = nil
	if c.recording != nil {
		c.recording.Cancel()
		c.recording = nil
	}
}
