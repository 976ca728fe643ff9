package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/iudanet/entitysync/internal/client/config"
)

// annotationNoSession помечает команды, которым не нужна локальная база
const annotationNoSession = "no-session"

// flagKeys связывает глобальные флаги с ключами конфигурации
var flagKeys = map[string]string{
	"server":    config.KeyServer,
	"db":        config.KeyDB,
	"engine":    config.KeyEngine,
	"types":     config.KeyTypes,
	"offline":   config.KeyOffline,
	"token":     config.KeyToken,
	"timeout":   config.KeyTimeout,
	"log-level": config.KeyLogLevel,
	"log-file":  config.KeyLogFile,
}

// NewRootCommand builds the command tree.
func (c *Cli) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "entitysync",
		Short: "Offline-first entity synchronization client",
		Long: `entitysync keeps a local copy of typed entities in sync with a server.

Changes made while offline are stored locally and pushed on the next sync.
Settings come from flags, ENTITYSYNC_* environment variables and an
optional YAML config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoSession] != "" {
				return nil
			}
			if err := bindFlags(c, cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			return c.open(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "path to a YAML config file")
	pf.String("server", "http://localhost:8080", "server URL")
	pf.String("db", "entitysync.db", "path to the local database")
	pf.String("engine", config.EngineBolt, "local storage engine: bolt, sqlite or memory")
	pf.StringSlice("types", nil, "entity types, e.g. --types Parent,Child")
	pf.Bool("offline", false, "work without contacting the server")
	pf.String("token", "", "bearer token for the server")
	pf.Duration("timeout", 0, "request timeout")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-file", "", "write logs to a rotating file instead of stderr")

	root.AddCommand(
		c.newInitCommand(),
		c.newSyncCommand(),
		c.newSaveCommand(),
		c.newSaveBatchCommand(),
		c.newDeleteCommand(),
		c.newListCommand(),
		c.newGetCommand(),
		c.newStatusCommand(),
		c.newResetCommand(),
		c.newVersionCommand(),
	)
	return root
}

// bindFlags подключает только явно заданные флаги, чтобы они не
// перекрывали файл конфигурации и окружение значениями по умолчанию
func bindFlags(c *Cli, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := c.viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Execute runs the command line and releases the session.
func (c *Cli) Execute(ctx context.Context, args []string) error {
	root := c.NewRootCommand()
	root.SetArgs(args)
	root.SetOut(c.io)
	root.SetErr(c.stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := c.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (c *Cli) newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local database and download all data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(cmd.Context())
		},
	}
}

func (c *Cli) newSyncCommand() *cobra.Command {
	var initial bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push local changes and pull server changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSync(cmd.Context(), initial)
		},
	}
	cmd.Flags().BoolVar(&initial, "initial", false, "rebuild the in-memory cache from the local store after pulling")
	return cmd
}

func (c *Cli) newSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "save <type> <json>",
		Short:   "Save one entity",
		Example: `  entitysync save Note '{"Title":"groceries"}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSave(cmd.Context(), args[0], args[1])
		},
	}
}

func (c *Cli) newSaveBatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "save-batch <json>",
		Short:   "Save entities of several types in one transaction",
		Example: `  entitysync save-batch '{"Parent":[{"ID":-1,"Name":"p"}],"Child":[{"ParentID":-1}]}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSaveBatch(cmd.Context(), args[0])
		},
	}
}

func (c *Cli) newDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <type> <id>...",
		Short: "Delete entities of one type",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDelete(cmd.Context(), args[0], args[1:], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (c *Cli) newListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List cached entities of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList(args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *Cli) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGet(args[0], args[1])
		},
	}
}

func (c *Cli) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending changes and the last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context())
		},
	}
}

func (c *Cli) newResetCommand() *cobra.Command {
	var all, yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard pending local changes",
		Long: `Discard pending local changes. Entities created offline are removed.

With --all the whole local database is wiped and the next sync downloads
everything again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReset(cmd.Context(), all, yes)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "wipe the whole local database")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (c *Cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoSession: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			c.io.Printf("entitysync client\n")
			c.io.Printf("Version:    %s\n", c.build.Version)
			c.io.Printf("Build Date: %s\n", c.build.BuildDate)
			c.io.Printf("Git Commit: %s\n", c.build.GitCommit)
		},
	}
}
