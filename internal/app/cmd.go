package app

import (
	"fmt"
	"sort"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーと画面配信を起動する。引数なしの場合の既定。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションのクリーンアップを定期実行する。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中サーバーの /health を確認して終了する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[Command]struct{}{
	CommandServe:       {},
	CommandWorker:      {},
	CommandMigrate:     {},
	CommandHealthcheck: {},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}

	cmd := Command(args[0])
	if _, ok := knownCommands[cmd]; !ok {
		return "", fmt.Errorf("unknown command %q (available: %s)", args[0], availableCommands())
	}
	return cmd, nil
}

func availableCommands() string {
	names := make([]string, 0, len(knownCommands))
	for c := range knownCommands {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
