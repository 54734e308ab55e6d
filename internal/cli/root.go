// Package cli implements the recall command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/recall-mcp/internal/storage"
)

// BuildInfo is stamped into the binary by the linker.
type BuildInfo struct {
	Version   string
	BuildTime string
}

type rootOptions struct {
	configFile string
	dataDir    string
	logLevel   string
	pretty     bool
}

// NewRootCmd builds the command tree.
func NewRootCmd(info BuildInfo) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "recall",
		Short: "Persistent memory for AI coding assistants",
		Long: `recall stores notes, decisions and conventions for AI coding assistants
and finds them again with keyword and semantic search. Memories are kept per
project or globally in SQLite files under the data directory.`,
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (default is $HOME/.recall)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty-log", false, "human-readable log output")

	root.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
build time: %s
build mode: %s (driver %s, vector extension %v)
`, info.BuildTime, storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable))

	root.AddCommand(
		newServeCmd(opts, info),
		newStoreCmd(opts),
		newSearchCmd(opts),
		newProjectsCmd(opts),
		newTagsCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

// Execute runs the command tree.
func Execute(info BuildInfo) error {
	return NewRootCmd(info).Execute()
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
