package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"textenger/internal/appstate"
	"textenger/internal/chatsync"
	"textenger/internal/model"
	"textenger/pkg/client"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	flagReadOnly bool
	flagBell     bool
)

// printer 把会话变化输出到终端，只追加未打印过的消息
type printer struct {
	out    io.Writer
	window time.Duration
	kind   model.ScopeKind
	title  string
	sub    string

	mu      sync.Mutex
	printed map[int64]struct{}
	last    *model.Message
}

func newPrinter(out io.Writer, kind model.ScopeKind, window time.Duration) *printer {
	return &printer{out: out, kind: kind, window: window, printed: make(map[int64]struct{})}
}

func (p *printer) setEmptyState(title, sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title, p.sub = title, sub
}

func (p *printer) OnChange(ch chatsync.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ch.PreserveAnchor {
		// 加载了更早的历史，整段重印
		fmt.Fprintln(p.out, "──── 更早的消息 ────")
		p.printed = make(map[int64]struct{})
		p.last = nil
	}
	if len(ch.Messages) == 0 {
		fmt.Fprintf(p.out, "%s\n%s\n", p.title, p.sub)
		return
	}
	for run := range chatsync.Runs(ch.Messages, p.window) {
		for i, m := range run.Messages {
			if _, ok := p.printed[m.ID]; ok {
				continue
			}
			// 紧接上一条打印的同组消息不重复头部
			if i == 0 || p.last == nil || p.last.ID != run.Messages[i-1].ID {
				h := run.Header()
				edited := ""
				if h.Edited {
					edited = " (edited)"
				}
				fmt.Fprintf(p.out, "\n%s  %s%s\n", h.DisplayName, chatsync.FormatTimestamp(h.Timestamp, time.Now()), edited)
			}
			fmt.Fprintf(p.out, "  %s\n", chatsync.Body(p.kind, m))
			if m.HasAttachment() {
				fmt.Fprintf(p.out, "  [%s] %s %s\n", m.AttachmentKind(), m.AttachmentName, m.AttachmentURL)
			}
			p.printed[m.ID] = struct{}{}
			p.last = m
		}
	}
}

// selectAction 把作用域转成全局选择动作
func selectAction(scope model.Scope) appstate.Action {
	switch scope.Kind {
	case model.KindDirect:
		return appstate.SelectDirect{PeerID: scope.PeerID}
	case model.KindRoom:
		return appstate.SelectRoom{RoomID: scope.ID}
	default:
		return appstate.SelectChannel{ChannelID: scope.ID}
	}
}

// emptyStateName 私聊为对方用户名，房间为房间名
func emptyStateName(ctx context.Context, c *client.Client, scope model.Scope) (string, error) {
	switch scope.Kind {
	case model.KindDirect:
		p, err := c.Profile(ctx, scope.PeerID)
		if err != nil {
			return "", err
		}
		return p.Username, nil
	case model.KindRoom:
		rooms, err := c.Rooms(ctx)
		if err != nil {
			return "", err
		}
		for _, r := range rooms {
			if r.ID == scope.ID {
				return r.Name, nil
			}
		}
	}
	return "", nil
}

func composerOptions(toaster chatsync.Toaster) chatsync.ComposerOptions {
	return chatsync.ComposerOptions{
		Logger:    log,
		Toaster:   toaster,
		Bucket:    cfg.Storage.AttachmentsBucket,
		URLMode:   chatsync.URLMode(cfg.Storage.URLMode),
		SignedTTL: cfg.Storage.SignedURLTTL,
		MaxSize:   cfg.Storage.MaxUploadSize,
	}
}

// readAttachment 读取本地文件作为附件
func readAttachment(path string) (chatsync.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chatsync.Attachment{}, err
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return chatsync.Attachment{Name: filepath.Base(path), ContentType: ct, Data: data}, nil
}

var openCmd = &cobra.Command{
	Use:   "open <channel:ID|room:ID|dm:USERID>",
	Short: "打开会话：显示历史、实时接收新消息，输入文本发送",
	Long: `打开会话后：
  直接输入文本回车发送
  /file <路径>   发送附件
  /more          加载更早的消息
  /quit          退出`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		c, err := newClient(ctx, true)
		if err != nil {
			return err
		}
		self, _ := c.CurrentUserID()
		scope, err := model.ParseScope(args[0], self)
		if err != nil {
			return err
		}

		toaster := chatsync.ToastFunc(func(msg string, err error) {
			fmt.Fprintf(os.Stderr, "! %s\n", msg)
			log.Warn(msg, zap.Error(err))
		})
		notifications := chatsync.NewNotifications(c, chatsync.TerminalBell{W: os.Stdout}, log)
		state := appstate.New(appstate.State{CurrentUserID: self, WindowFocused: !flagBell})
		out := newPrinter(os.Stdout, scope.Kind, cfg.Sync.GroupWindow)

		// 设置与空会话文案互不依赖，并行加载
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := notifications.Load(gctx); err != nil {
				toaster.Toast("Failed to load notification settings", err)
			}
			return nil
		})
		g.Go(func() error {
			name, err := emptyStateName(gctx, c, scope)
			if err != nil {
				return err
			}
			out.setEmptyState(chatsync.EmptyState(scope, name))
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		conv := chatsync.NewConversation(c, chatsync.Options{
			Logger: log,
			PageSizes: chatsync.PageSizes{
				Channel: cfg.Sync.ChannelPageSize,
				Direct:  cfg.Sync.DirectPageSize,
				Room:    cfg.Sync.RoomPageSize,
			},
			GroupWindow: cfg.Sync.GroupWindow,
			Reconnect:   chatsync.ReconnectPolicy{Min: cfg.Sync.ReconnectMin, Max: cfg.Sync.ReconnectMax},
			Toaster:     toaster,
			Cue:         notifications,
			Focus:       state,
			OnChange:    out.OnChange,
		})

		follow := make(chan error, 1)
		go func() { follow <- chatsync.FollowSelection(ctx, state, conv) }()
		state.Dispatch(selectAction(scope))

		if flagReadOnly {
			<-ctx.Done()
			<-follow
			return nil
		}

		composer := chatsync.NewComposer(c, scope, composerOptions(toaster))
		lines := make(chan string)
		go func() {
			defer close(lines)
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				lines <- sc.Text()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				<-follow
				return nil
			case line, ok := <-lines:
				if !ok {
					cancel()
					<-follow
					return nil
				}
				if quit := handleInput(ctx, conv, composer, line); quit {
					cancel()
					<-follow
					return nil
				}
			}
		}
	},
}

// handleInput 处理一行输入，返回是否退出
func handleInput(ctx context.Context, conv *chatsync.Conversation, composer *chatsync.Composer, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == "/quit":
		return true
	case line == "/more":
		if err := conv.LoadMore(ctx); err != nil && !errors.Is(err, chatsync.ErrLoadInFlight) {
			fmt.Fprintln(os.Stderr, "!", err)
		}
		if !conv.HasMore() {
			fmt.Fprintln(os.Stderr, "-- 没有更早的消息了 --")
		}
		return false
	case strings.HasPrefix(line, "/file "):
		att, err := readAttachment(strings.TrimSpace(strings.TrimPrefix(line, "/file ")))
		if err != nil {
			fmt.Fprintln(os.Stderr, "!", err)
			return false
		}
		if err := composer.Attach(att); err != nil {
			fmt.Fprintln(os.Stderr, "!", err)
			return false
		}
	default:
		composer.SetText(line)
	}
	// 发送成功后等待实时回显，不在这里打印
	if _, err := composer.Submit(ctx); err != nil {
		log.Debug("发送失败", zap.Error(err))
	}
	return false
}

func init() {
	openCmd.Flags().BoolVar(&flagReadOnly, "tail", false, "只接收不发送")
	openCmd.Flags().BoolVar(&flagBell, "bell", false, "收到他人消息时响铃")
}
