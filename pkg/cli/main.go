// Package cli provides the command surface: version info, configuration
// validation and compiled-schema inspection.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/declarion/declarion/pkg/config"
	"github.com/declarion/declarion/pkg/engine"
	"github.com/declarion/declarion/pkg/schema"
	"github.com/declarion/declarion/pkg/version"
)

// Options configures the root command.
type Options struct {
	ServiceName string
	// Engine, when set, enables the schema command against its compiled
	// validation set. The engine must be started.
	Engine *engine.Engine
}

// NewRootCommand builds the root cobra command.
func NewRootCommand(opts Options) *cobra.Command {
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "declarion"
	}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         serviceName + " declarative CRUD engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to configuration file")

	root.AddCommand(newVersionCommand(serviceName))
	root.AddCommand(newConfigCommand(root.PersistentFlags()))
	if opts.Engine != nil {
		root.AddCommand(newSchemaCommand(opts.Engine))
	}
	return root
}

func newVersionCommand(serviceName string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(version.Current(serviceName).String())
			return nil
		},
	}
}

func newConfigCommand(persistent *pflag.FlagSet) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := persistent.GetString("config")
			cfg, err := config.NewProvider(configFile).Load()
			if err != nil {
				return err
			}
			cmd.Printf("configuration valid (store %s, database %s)\n",
				cfg.Store.URL, cfg.Store.Database)
			return nil
		},
	})
	return configCmd
}

func newSchemaCommand(eng *engine.Engine) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [model]",
		Short: "Print compiled JSON schemas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := eng.Validations()
			if set == nil {
				return fmt.Errorf("engine is not started")
			}

			models := set.Models()
			if len(args) == 1 {
				models = args[:1]
			}

			out := map[string]interface{}{}
			for _, name := range models {
				c, ok := set.Find(name)
				if !ok {
					return fmt.Errorf("model %s not found", name)
				}
				entry := map[string]interface{}{
					"read": schema.JSONSchema(c.Read),
				}
				if c.Create != nil {
					entry["create"] = schema.JSONSchema(c.Create)
				}
				if c.Update != nil {
					entry["update"] = schema.JSONSchema(c.Update)
				}
				if c.Delete != nil {
					entry["delete"] = schema.JSONSchema(c.Delete)
				}
				out[name] = entry
			}

			encoded, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(encoded))
			return nil
		},
	}
}
