// Command seed creates administrators and bulk-loads users.
//
//	seed create-admin --email ops@example.com --password '...'
//	seed users --file users.yaml
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/myloveankyy/xkey-auction-sub000/internal/cli"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/db"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
)

func openUsers(ctx context.Context) (services.IUserService, func(), error) {
	cfg, err := config.Load(config.RunModeSeed)
	if err != nil {
		return nil, nil, err
	}
	client, database, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = db.DisconnectDB(client) }
	if err := db.EnsureIndexes(ctx, database); err != nil {
		closeFn()
		return nil, nil, err
	}
	return services.NewUserService(database, cfg), closeFn, nil
}

func main() {
	if err := cli.NewRootCommand(openUsers).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
