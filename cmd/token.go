package cmd

import (
	"fmt"

	"civicsync/utils"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a user id",
	Long: `Mint a bearer token signed with JWT_SECRET.

Useful in memory mode, where the registration and login routes are off.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		admin, _ := cmd.Flags().GetBool("admin")

		var id primitive.ObjectID
		if user == "" {
			id = primitive.NewObjectID()
		} else if id, err = primitive.ObjectIDFromHex(user); err != nil {
			return fmt.Errorf("invalid user id %q: %w", user, err)
		}

		token, err := utils.GenerateAndSetToken(id.Hex(), admin, settings.JWTSecret)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user:  %s\ntoken: %s\n", id.Hex(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("user", "", "User id (hex); a new id is generated when empty")
	tokenCmd.Flags().Bool("admin", false, "Mint an admin token")
}
