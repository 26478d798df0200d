// campusctl はポータルの運用者向けCLI。
// ユーザーの登録・一覧表示と、ローカル検証用のセッショントークン発行を行う。
package main

import (
	"os"

	"github.com/nao1215/campus/cmd/campusctl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
