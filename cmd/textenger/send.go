package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"textenger/internal/chatsync"
	"textenger/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagFile   string
	flagSound  string
	flagVolume float64
)

var sendCmd = &cobra.Command{
	Use:   "send <channel:ID|room:ID|dm:USERID> [text...]",
	Short: "发送一条消息（可带附件）",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newClient(ctx, true)
		if err != nil {
			return err
		}
		self, _ := c.CurrentUserID()
		scope, err := model.ParseScope(args[0], self)
		if err != nil {
			return err
		}

		composer := chatsync.NewComposer(c, scope, composerOptions(chatsync.ToastFunc(func(msg string, err error) {
			log.Warn(msg, zap.Error(err))
		})))
		composer.SetText(strings.Join(args[1:], " "))
		if flagFile != "" {
			att, err := readAttachment(flagFile)
			if err != nil {
				return err
			}
			if err := composer.Attach(att); err != nil {
				return err
			}
		}
		msg, err := composer.Submit(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("已发送 %d\n", msg.ID)
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "查看或修改通知设置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newClient(ctx, true)
		if err != nil {
			return err
		}
		n := chatsync.NewNotifications(c, chatsync.TerminalBell{W: os.Stdout}, log)
		if err := n.Load(ctx); err != nil {
			return err
		}

		s := n.Settings()
		soundChanged := cmd.Flags().Changed("sound")
		volumeChanged := cmd.Flags().Changed("volume")
		if soundChanged || volumeChanged {
			var enabled bool
			if soundChanged {
				if enabled, err = parseSwitch(flagSound); err != nil {
					return err
				}
			}
			s, err = n.Save(ctx, func(s *model.UserSettings) {
				if soundChanged {
					s.NotificationSoundEnabled = enabled
				}
				if volumeChanged {
					s.NotificationSoundVolume = flagVolume
				}
			})
			if err != nil {
				return err
			}
			// 试听一次
			n.Cue(ctx, model.KindDirect)
		}

		state := "off"
		if s.NotificationSoundEnabled {
			state = "on"
		}
		fmt.Printf("notification sound: %s\nvolume: %.2f\n", state, s.NotificationSoundVolume)
		return nil
	},
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("无法识别的开关值 %q", v)
	}
	return b, nil
}

func init() {
	sendCmd.Flags().StringVarP(&flagFile, "file", "f", "", "附件路径")
	settingsCmd.Flags().StringVar(&flagSound, "sound", "", "提示音开关 on|off")
	settingsCmd.Flags().Float64Var(&flagVolume, "volume", 0, "提示音音量 0-1")
}
