package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fieme-one/Teleserver/internal/telegram"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// signFlags maps optional widget fields to their command flags.
var signFlags = []struct {
	flag  string
	field string
	usage string
}{
	{flag: "first-name", field: telegram.FieldFirstName, usage: "first_name claim"},
	{flag: "last-name", field: telegram.FieldLastName, usage: "last_name claim"},
	{flag: "username", field: telegram.FieldUsername, usage: "username claim"},
	{flag: "photo-url", field: telegram.FieldPhotoURL, usage: "photo_url claim"},
}

func newSignCommand() *cobra.Command {
	var (
		telegramID string
		authDate   int64
		extra      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print a signed login payload for manual testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			verifier, err := telegram.NewVerifier(viper.GetString("telegram.bot_token"))
			if err != nil {
				return err
			}
			if telegramID == "" {
				return errors.New("--id is required")
			}

			var claims telegram.ClaimSet
			for key, value := range extra {
				claims.Set(key, value)
			}
			claims.Set(telegram.FieldID, telegramID)
			for _, option := range signFlags {
				if !cmd.Flags().Changed(option.flag) {
					continue
				}
				value, err := cmd.Flags().GetString(option.flag)
				if err != nil {
					return err
				}
				claims.Set(option.field, value)
			}
			if authDate <= 0 {
				authDate = time.Now().Unix()
			}
			claims.Set(telegram.FieldAuthDate, strconv.FormatInt(authDate, 10))
			claims.Set(telegram.FieldHash, verifier.Sign(claims))

			payload, err := json.MarshalIndent(claims, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	}

	cmd.Flags().StringVar(&telegramID, "id", "", "Telegram user id")
	cmd.Flags().Int64Var(&authDate, "auth-date", 0, "auth_date unix seconds (defaults to now)")
	cmd.Flags().StringToStringVar(&extra, "field", nil, "Additional signed field as key=value")
	for _, option := range signFlags {
		cmd.Flags().String(option.flag, "", option.usage)
	}
	return cmd
}
