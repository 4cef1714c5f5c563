package cmd

import (
	"context"

	"civicsync/config"
	"civicsync/controllers"
	"civicsync/mentor"
	"civicsync/store/mongostore"

	"github.com/spf13/cobra"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the MongoDB indexes the server relies on",
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(settings)

		ctx := cmd.Context()
		client, db, err := config.ConnectDB(ctx, settings)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		if err := mongostore.New(db).EnsureIndexes(ctx); err != nil {
			return err
		}
		if err := mentor.EnsureMentorIndex(ctx, db); err != nil {
			return err
		}
		if err := controllers.EnsureUserIndex(ctx, db); err != nil {
			return err
		}

		logger.Info("indexes ensured", "database", settings.MongoDatabase)
		return nil
	},
}
