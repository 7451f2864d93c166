package main

import (
	"fmt"
	"strconv"
	"time"

	"textenger/internal/chatsync"
	"textenger/internal/model"

	"github.com/spf13/cobra"
)

var (
	flagMembers     []int64
	flagDescription string
	flagVoice       bool
	flagWatch       bool
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("非法ID %q", raw)
	}
	return id, nil
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "列出已加入的房间",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context(), true)
		if err != nil {
			return err
		}
		rooms, err := c.Rooms(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range rooms {
			fmt.Printf("%-20d %s\n", r.ID, r.Name)
		}
		return nil
	},
}

var roomCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "创建房间",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context(), true)
		if err != nil {
			return err
		}
		room, err := c.CreateRoom(cmd.Context(), args[0], flagDescription, "", flagMembers)
		if err != nil {
			return err
		}
		fmt.Printf("房间已创建: %s (%d)\n", room.Name, room.ID)
		return nil
	},
}

var channelsCmd = &cobra.Command{
	Use:   "channels <roomID>",
	Short: "列出房间频道",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd.Context(), true)
		if err != nil {
			return err
		}
		channels, err := c.Channels(cmd.Context(), roomID)
		if err != nil {
			return err
		}
		for _, ch := range channels {
			fmt.Printf("%-20d #%-20s %s\n", ch.ID, ch.Name, ch.Type)
		}
		return nil
	},
}

var channelCreateCmd = &cobra.Command{
	Use:   "create <roomID> <name>",
	Short: "新建频道（需要房主或管理员）",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd.Context(), true)
		if err != nil {
			return err
		}
		typ := model.ChannelText
		if flagVoice {
			typ = model.ChannelVoice
		}
		ch, err := c.CreateChannel(cmd.Context(), roomID, args[1], typ)
		if err != nil {
			return err
		}
		fmt.Printf("频道已创建: #%s (%d)\n", ch.Name, ch.ID)
		return nil
	},
}

var membersCmd = &cobra.Command{
	Use:   "members <roomID>",
	Short: "列出房间成员",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd.Context(), true)
		if err != nil {
			return err
		}
		members, err := c.Members(cmd.Context(), roomID)
		if err != nil {
			return err
		}
		for _, m := range members {
			fmt.Printf("%-8s %s\n", m.Role, m.Profile.Name())
		}
		return nil
	},
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "私聊会话列表，--watch 持续接收新私信",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newClient(ctx, true)
		if err != nil {
			return err
		}
		list, err := c.Conversations(ctx)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, conv := range list {
			fmt.Printf("@%-16s %-20s %s\n", conv.Partner.Username, chatsync.FormatTimestamp(conv.LastMessageTime, now), conv.LastMessage)
		}
		if !flagWatch {
			return nil
		}

		sub, err := c.SubscribeInbox(ctx)
		if err != nil {
			return err
		}
		defer sub.Close()
		self, _ := c.CurrentUserID()
		names := map[int64]string{}
		fmt.Println("-- 等待新私信，Ctrl+C 退出 --")
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-sub.Events():
				if !ok {
					return sub.Err()
				}
				m := ev.Message
				if m.AuthorID == self {
					continue
				}
				name, ok := names[m.AuthorID]
				if !ok {
					name = model.UnknownUser
					if p, err := c.Profile(ctx, m.AuthorID); err == nil {
						name = p.Username
					}
					names[m.AuthorID] = name
				}
				fmt.Printf("\a@%s: %s\n", name, chatsync.Body(model.KindDirect, m))
			}
		}
	},
}

func init() {
	roomCreateCmd.Flags().Int64SliceVarP(&flagMembers, "member", "m", nil, "成员用户ID，可重复")
	roomCreateCmd.Flags().StringVar(&flagDescription, "description", "", "房间描述")
	channelCreateCmd.Flags().BoolVar(&flagVoice, "voice", false, "语音频道")
	conversationsCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "持续接收新私信")

	roomsCmd.AddCommand(roomCreateCmd)
	channelsCmd.AddCommand(channelCreateCmd)
	roomsCmd.AddCommand(channelsCmd, membersCmd)
}
