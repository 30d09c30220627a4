package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/fivetwenty-io/farmos/pkg/farmclient"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/fivetwenty-io/farmos/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		username     string
		password     string
		grantType    string
		clientID     string
		clientSecret string
		scope        string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a farmOS server",
		Long: `Authenticate with a farmOS server and save the connection as a profile.

farmOS 2.x servers use OAuth2 (password grant by default, or
--grant authorization_code to log in through the browser). farmOS 1.x
servers need --api-style legacy. Passwords are never saved; OAuth tokens are.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := profileStore()
			if err != nil {
				return err
			}

			prof, envPassword, err := resolveProfile(store)
			if errors.Is(err, constants.ErrNoHostname) {
				hostname, readErr := readLine(cmd, "farmOS hostname: ")
				if readErr != nil {
					return readErr
				}

				viper.Set("hostname", hostname)
				prof, envPassword, err = resolveProfile(store)
			}

			if err != nil {
				return err
			}

			overlay := &profile.Profile{
				Username:     username,
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Scope:        scope,
				GrantType:    farmos.GrantType(grantType),
			}
			prof.Overlay(overlay)
			prof.Token = nil

			if password == "" {
				password = envPassword
			}

			config := prof.Config()
			config.Logger = newLogger(cmd.ErrOrStderr())

			config.TokenUpdater, err = tokenUpdater(context.Background(), store, prof, config)
			if err != nil {
				return err
			}

			config.Token = nil

			if config.GrantType != farmos.GrantAuthorizationCode {
				if config.Username == "" {
					config.Username, err = readLine(cmd, "Username: ")
					if err != nil {
						return err
					}
				}

				if password == "" {
					password, err = readPassword(cmd)
					if err != nil {
						return err
					}
				}

				config.Password = password
				prof.Username = config.Username
			}

			client, err := farmclient.New(context.Background(), config)
			if err != nil {
				return fmt.Errorf("failed to log in: %w", err)
			}

			prof.APIStyle = client.APIStyle()
			prof.Token = client.Token()

			err = store.Put(prof)
			if err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s (profile %s)\n", client.Hostname(), prof.Name)

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&grantType, "grant", "", "OAuth2 grant: password or authorization_code")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client id (default farm)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVar(&scope, "scope", "", "OAuth2 scope (default farm_manager)")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token of a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := profileStore()
			if err != nil {
				return err
			}

			prof, err := store.Get(viper.GetString("profile"))
			if err != nil {
				return err //nolint:wrapcheck // profile errors name the profile
			}

			prof.Token = nil

			err = store.Put(prof)
			if err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s (profile %s)\n", prof.Hostname, prof.Name)

			return nil
		},
	}
}
