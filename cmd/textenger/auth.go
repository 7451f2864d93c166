package main

import (
	"bufio"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"textenger/internal/model"
	"textenger/pkg/client"

	"github.com/spf13/cobra"
)

var (
	flagPassword    string
	flagEmail       string
	flagDisplayName string
	flagUsername    string
	flagBio         string
	flagAvatar      string
)

// readPassword 未通过参数给出密码时从标准输入读取一行
func readPassword() (string, error) {
	if flagPassword != "" {
		return flagPassword, nil
	}
	fmt.Fprint(os.Stderr, "密码: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func remember(c *client.Client, p *model.Profile) error {
	return saveSession(&session{
		Server:   cfg.Client.BaseURL,
		Token:    c.Token(),
		UserID:   p.ID,
		Username: p.Username,
	})
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "注册新账号并登录",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context(), false)
		if err != nil {
			return err
		}
		pw, err := readPassword()
		if err != nil {
			return err
		}
		p, err := c.Register(cmd.Context(), args[0], flagEmail, flagDisplayName, pw)
		if err != nil {
			return err
		}
		if err := remember(c, p); err != nil {
			return err
		}
		fmt.Printf("注册成功，已登录为 %s (%d)\n", p.Name(), p.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username|email>",
	Short: "登录",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context(), false)
		if err != nil {
			return err
		}
		pw, err := readPassword()
		if err != nil {
			return err
		}
		p, err := c.Login(cmd.Context(), args[0], pw)
		if err != nil {
			return err
		}
		if err := remember(c, p); err != nil {
			return err
		}
		fmt.Printf("已登录为 %s (%d)\n", p.Name(), p.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "清除本地登录态",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return clearSession()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "显示当前用户",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context(), true)
		if err != nil {
			return err
		}
		p := c.Self()
		fmt.Printf("%s @%s (%d)\n", p.Name(), p.Username, p.ID)
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "列出其他用户",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context(), true)
		if err != nil {
			return err
		}
		list, err := c.Profiles(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range list {
			fmt.Printf("%-20d @%-16s %s\n", p.ID, p.Username, p.Name())
		}
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "修改自己的资料或上传头像",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context(), true)
		if err != nil {
			return err
		}
		var u model.ProfileUpdate
		if cmd.Flags().Changed("username") {
			u.Username = &flagUsername
		}
		if cmd.Flags().Changed("name") {
			u.DisplayName = &flagDisplayName
		}
		if cmd.Flags().Changed("bio") {
			u.Bio = &flagBio
		}
		p := c.Self()
		if u != (model.ProfileUpdate{}) {
			if p, err = c.UpdateProfile(cmd.Context(), u); err != nil {
				return err
			}
		}
		if flagAvatar != "" {
			f, err := os.Open(flagAvatar)
			if err != nil {
				return err
			}
			defer f.Close()
			if p, err = c.UploadAvatar(cmd.Context(), filepath.Base(flagAvatar), f, mime.TypeByExtension(filepath.Ext(flagAvatar))); err != nil {
				return err
			}
		}
		// 用户名可能变了
		if err := remember(c, p); err != nil {
			return err
		}
		fmt.Printf("%s @%s (%d)\n", p.Name(), p.Username, p.ID)
		if p.Bio != "" {
			fmt.Println(p.Bio)
		}
		if p.AvatarURL != "" {
			fmt.Println("头像:", p.AvatarURL)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{registerCmd, loginCmd} {
		cmd.Flags().StringVarP(&flagPassword, "password", "p", "", "密码（留空则从标准输入读取）")
	}
	registerCmd.Flags().StringVar(&flagEmail, "email", "", "邮箱")
	registerCmd.Flags().StringVar(&flagDisplayName, "name", "", "显示名称")
	_ = registerCmd.MarkFlagRequired("email")

	profileCmd.Flags().StringVar(&flagUsername, "username", "", "新用户名")
	profileCmd.Flags().StringVar(&flagDisplayName, "name", "", "显示名称")
	profileCmd.Flags().StringVar(&flagBio, "bio", "", "简介")
	profileCmd.Flags().StringVar(&flagAvatar, "avatar", "", "头像图片路径")
}
