// ポータルサービスのエントリポイント。
// ログイン、セッショントークンの発行、ロール別ダッシュボードへのアクセス制御を担当する。
package main

import (
	"context"
	"log"

	"github.com/nao1215/campus/internal/portal"
)

func main() {
	cfg, err := portal.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	store, err := portal.OpenStore(context.Background(), cfg.DatabasePath)
	if err != nil {
		log.Fatalf("データベースの初期化に失敗: %v", err)
	}
	defer store.Close()

	server, err := portal.NewServer(cfg, store)
	if err != nil {
		log.Fatalf("ポータルサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ポータルサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("ポータルサービスの起動に失敗: %v", err)
	}
}
