package cmd

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Action-Gate/actiongate/internal/observe"
	"github.com/Action-Gate/actiongate/internal/wire"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Deserialize on-chain rule bytes back to rules",
	Long: `Decode hex-encoded on-chain rules ([code][config]) back to their JSON
form, one object per line. Reads arguments, or stdin when none are given.

Decoding is lenient: malformed config bytes degrade to the kind's empty
config (reported in the output) instead of erroring, so historical and
foreign-origin encodings always decode.`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

// decodedRule is the JSON shape printed per decoded rule.
type decodedRule struct {
	Kind     string `json:"kind"`
	Config   any    `json:"config"`
	Degraded bool   `json:"degraded,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)
	metrics := observe.NewMetrics(prometheus.NewRegistry())

	inputs := args
	if len(inputs) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for i, input := range inputs {
		data, err := hex.DecodeString(strings.TrimPrefix(input, "0x"))
		if err != nil {
			return fmt.Errorf("input %d: not hex: %w", i, err)
		}
		if len(data) == 0 {
			return fmt.Errorf("input %d: empty rule bytes", i)
		}
		r, degraded := wire.DecodeVerbose(wire.OnChainRule{Code: data[0], Config: data[1:]})
		if degraded {
			metrics.DecodeFallbacks.Inc()
			logger.Warn("rule config degraded to empty during decode",
				"input", i, "kind", string(r.Kind))
		}
		if err := enc.Encode(decodedRule{Kind: string(r.Kind), Config: r.Config, Degraded: degraded}); err != nil {
			return err
		}
	}
	return nil
}
