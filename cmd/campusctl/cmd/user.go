package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/nao1215/campus/internal/portal"
	"github.com/nao1215/campus/pkg/middleware"
	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "ポータルのユーザーを管理する",
	}
	userCmd.AddCommand(newUserAddCmd(a))
	userCmd.AddCommand(newUserListCmd(a))
	return userCmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var (
		email    string
		name     string
		role     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "ユーザーを登録する",
		Long: `ユーザーを登録します。

パスワードは --password か環境変数 CAMPUS_PASSWORD で指定します。

Examples:
  campusctl user add --email admin@example.edu --role admin --name 管理者
  CAMPUS_PASSWORD=secret123 campusctl user add --email t@example.edu --role teacher`,
		Annotations: map[string]string{storeAnnotation: ""},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := middleware.ParseRole(role)
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("CAMPUS_PASSWORD")
			}
			if password == "" {
				return errors.New("--password または CAMPUS_PASSWORD を指定してください")
			}

			u, err := a.store.CreateUser(cmd.Context(), portal.NewUser{
				Email:       email,
				Password:    password,
				DisplayName: name,
				Role:        r,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ユーザーを登録しました: id=%s email=%s role=%s\n", u.ID, u.Email, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "メールアドレス")
	cmd.Flags().StringVar(&name, "name", "", "表示名（省略時はメールアドレス）")
	cmd.Flags().StringVar(&role, "role", "", "ロール (admin, teacher, clerk, student)")
	cmd.Flags().StringVar(&password, "password", "", "パスワード")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "list",
		Short:       "登録済みユーザーを一覧表示する",
		Annotations: map[string]string{storeAnnotation: ""},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tROLE\tNAME")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.DisplayName)
			}
			return w.Flush()
		},
	}
}
