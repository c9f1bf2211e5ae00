package main

import (
	"fmt"

	"github.com/sandevgo/mnemo/internal/crypto"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a master key for memory encryption",
	Long:  `Generates a random 32-byte master key. Export it as MNEMO_MASTER_KEY to enable encryption of the record store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateMasterKey()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "MNEMO_MASTER_KEY=%s\n", key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
