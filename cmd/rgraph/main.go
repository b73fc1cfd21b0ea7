// Command rgraph plans and runs render graphs described in YAML files.
//
//	rgraph plan graph.yaml
//	rgraph run --backend noop --frames 10 graph.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gogpu/rendergraph"
	_ "github.com/gogpu/rendergraph/backend/wgpu" // register HAL backends
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOptions struct {
	logLevel string
}

func (o *globalOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.logLevel, "log-level", "", "log to stderr at this level (debug, info, warn, error); silent when empty")
}

func (o *globalOptions) apply(cmd *cobra.Command) error {
	if o.logLevel == "" {
		rendergraph.SetLogger(nil)
		return nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(o.logLevel))); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	rendergraph.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "rgraph",
		Short: "Plan and run render graphs",
		Long: `rgraph loads a render graph from a YAML file, builds its depth levels and
resource lifetimes, and optionally executes frames on a backend.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.apply(cmd)
		},
	}
	opts.addFlags(root.PersistentFlags())
	root.AddCommand(newPlanCmd(), newRunCmd())
	return root
}
