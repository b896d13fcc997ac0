package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/paygw-chargebee/internal/auth"
)

var (
	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Access token helpers",
	}
	authTokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token with the configured private key",
		RunE:  runAuthToken,
	}
	tokenUser auth.User
)

func init() {
	f := authTokenCmd.Flags()
	f.Int64Var(&tokenUser.ID, "user-id", 0, "user id carried in the token")
	f.StringVar(&tokenUser.Email, "email", "", "email carried in the token")
	f.StringVar(&tokenUser.FirstName, "first-name", "", "first name carried in the token")
	f.StringVar(&tokenUser.LastName, "last-name", "", "last name carried in the token")
	_ = authTokenCmd.MarkFlagRequired("user-id")

	authCmd.AddCommand(authTokenCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthToken(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	priv, err := cfg.Security.GetPrivateKey()
	if err != nil {
		return fmt.Errorf("failed to load jwt private key: %w", err)
	}
	pub, err := cfg.Security.GetPublicKey()
	if err != nil {
		return fmt.Errorf("failed to load jwt public key: %w", err)
	}

	token, err := auth.NewJWTTokenGenerator(priv, pub, cfg.Security.AccessTokenDuration).GenerateAccessToken(tokenUser)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
