package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Action-Gate/actiongate/internal/service"
	"github.com/Action-Gate/actiongate/internal/wire"
)

var encodeRulesFile string

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Serialize rules to their on-chain byte form",
	Long: `Serialize every rule in a rule set to its compact on-chain encoding and
print one hex line per rule: [code][config].

Configuration faults (missing limits, empty whitelists, inverted time
windows) are rejected here rather than silently producing a rule that would
deny everything.`,
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().StringVar(&encodeRulesFile, "rules", "", "rule set YAML file (required)")
	_ = encodeCmd.MarkFlagRequired("rules")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	rules, err := service.LoadRuleSet(encodeRulesFile)
	if err != nil {
		return err
	}
	for i, r := range rules {
		data, err := wire.Marshal(r)
		if err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, r.Kind, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
	}
	return nil
}
