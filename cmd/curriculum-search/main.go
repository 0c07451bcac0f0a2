package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	appcli "github.com/jinford/curriculum-search/internal/app/cli"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "curriculum-search",
		Usage: "カリキュラム教材のセマンティック検索システム",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "ベクトルインデックスのスキーマを作成",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: appcli.MigrateAction,
			},
			{
				Name:  "index",
				Usage: "インデックス管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "topic",
						Usage: "トピックを1件インデックス化",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "トピックID (UUID)",
								Required: true,
							},
						},
						Action: appcli.IndexTopicAction,
					},
					{
						Name:  "item",
						Usage: "コンテンツアイテムを1件インデックス化",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "コンテンツアイテムID (UUID)",
								Required: true,
							},
						},
						Action: appcli.IndexItemAction,
					},
					{
						Name:  "all",
						Usage: "全エンティティを一括インデックス化",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "tenant",
								Usage: "テナントID（省略時は全テナント）",
							},
						},
						Action: appcli.IndexAllAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "自然言語クエリでカリキュラムを検索",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "検索クエリ",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "tenant",
						Usage: "テナントIDで絞り込み",
					},
					&cli.StringFlag{
						Name:  "subject",
						Usage: "教科で絞り込み",
					},
					&cli.IntFlag{
						Name:  "grade",
						Usage: "学年で絞り込み",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "エンティティ種別で絞り込み (topic/content_item)",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "返却する最大件数",
						Value: 10,
					},
					&cli.FloatFlag{
						Name:  "min-score",
						Usage: "類似度スコアの下限",
					},
				},
				Action: appcli.SearchAction,
			},
			{
				Name:  "delete",
				Usage: "エンティティをインデックスから削除",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "type",
						Usage:    "エンティティ種別 (topic/content_item)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "エンティティID (UUID)",
						Required: true,
					},
				},
				Action: appcli.DeleteAction,
			},
			{
				Name:  "stats",
				Usage: "インデックスの統計情報を表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: appcli.StatsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
