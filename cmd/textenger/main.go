package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"textenger/config"
	"textenger/pkg/client"
	"textenger/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagServer  string
	flagSession string
	flagVerbose bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "textenger",
	Short:         "Textenger 终端客户端",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		if flagServer != "" {
			cfg.Client.BaseURL = flagServer
		}

		// 终端客户端的日志写到文件，不干扰交互输出
		logCfg := cfg.Log
		if dir, err := os.UserCacheDir(); err == nil {
			logCfg.Filename = filepath.Join(dir, "textenger", "client.log")
		}
		if flagVerbose {
			logCfg.Level = "debug"
		}
		var err error
		if log, err = logger.InitLogger(logCfg); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "服务端地址（默认读取配置 client.baseURL）")
	rootCmd.PersistentFlags().StringVar(&flagSession, "session", "", "登录态文件路径")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "输出调试日志")

	rootCmd.AddCommand(
		registerCmd,
		loginCmd,
		logoutCmd,
		whoamiCmd,
		profileCmd,
		usersCmd,
		roomsCmd,
		conversationsCmd,
		openCmd,
		sendCmd,
		settingsCmd,
	)
}

// newClient 创建客户端；requireLogin 时恢复保存的登录态
func newClient(ctx context.Context, requireLogin bool) (*client.Client, error) {
	sess, err := loadSession()
	if err != nil {
		return nil, err
	}
	base := cfg.Client.BaseURL
	if flagServer == "" && sess.Server != "" {
		base = sess.Server
	}
	cfg.Client.BaseURL = base
	c, err := client.NewFromConfig(cfg.Client, client.WithLogger(log.Named("client")))
	if err != nil {
		return nil, err
	}
	if !requireLogin {
		return c, nil
	}
	if sess.Token == "" {
		return nil, fmt.Errorf("尚未登录，请先执行 textenger login")
	}
	c.SetToken(sess.Token)
	if _, err := c.Me(ctx); err != nil {
		if client.IsCode(err, 401) {
			return nil, fmt.Errorf("登录已过期，请重新登录")
		}
		return nil, err
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}
