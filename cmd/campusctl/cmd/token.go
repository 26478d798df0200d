package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/nao1215/campus/pkg/middleware"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		userID        string
		role          string
		ttl           time.Duration
		allowInsecure bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "ローカル検証用のセッショントークンを発行する",
		Long: `JWT_SECRET で署名したセッショントークンを標準出力に書き出します。
ブラウザの token Cookie に設定してダッシュボードの動作を確認するために使います。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := middleware.ParseRole(role)
			if err != nil {
				return err
			}
			secret, err := middleware.ResolveSecret(os.Getenv("JWT_SECRET"), allowInsecure)
			if err != nil {
				return err
			}

			token, err := middleware.GenerateToken(secret, userID, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "トークンに埋め込むユーザーID")
	cmd.Flags().StringVar(&role, "role", "", "ロール (admin, teacher, clerk, student)")
	cmd.Flags().DurationVar(&ttl, "ttl", middleware.DefaultTokenTTL, "有効期間")
	cmd.Flags().BoolVar(&allowInsecure, "allow-insecure-secret", false, "JWT_SECRET未設定時に開発用シークレットを使う")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
