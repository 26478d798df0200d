// Package cmd はcampusctlのサブコマンドを実装する。
package cmd

import (
	"fmt"
	"os"

	"github.com/nao1215/campus/internal/portal"
	"github.com/spf13/cobra"
)

// app はサブコマンド間で共有する状態。
type app struct {
	dbPath string
	store  *portal.Store
}

// NewRootCmd はcampusctlのルートコマンドを生成する。
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "campusctl",
		Short: "カレッジ管理ポータルの運用CLI",
		Long: `campusctl はポータルのユーザーデータベースを操作するCLIです。

ユーザーの登録と一覧表示、ローカル検証用のセッショントークン発行を行います。`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsStore(cmd) {
				return nil
			}
			store, err := portal.OpenStore(cmd.Context(), a.dbPath)
			if err != nil {
				return fmt.Errorf("データベースを開けません: %w", err)
			}
			a.store = store
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.store != nil {
				a.store.Close()
				a.store = nil
			}
		},
	}

	defaultDB := os.Getenv("DATABASE_PATH")
	if defaultDB == "" {
		defaultDB = "/data/portal.db"
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", defaultDB, "SQLiteデータベースのパス")

	root.AddCommand(newUserCmd(a))
	root.AddCommand(newTokenCmd())
	return root
}

// storeAnnotation が付いたコマンドのみデータベースを開く。
const storeAnnotation = "campusctl/store"

func needsStore(cmd *cobra.Command) bool {
	_, ok := cmd.Annotations[storeAnnotation]
	return ok
}
