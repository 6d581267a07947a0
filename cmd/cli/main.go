package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"grantwatch/internal/config"
	"grantwatch/internal/store"
	"grantwatch/pkg/logger"
)

var errBadRange = errors.New("start_id must not be greater than end_id")

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var dbPath, configPath string

	cmd := &cobra.Command{
		Use:   "grantwatch-delete <start_id> <end_id>",
		Short: "Delete grants with ids in [start_id, end_id] and resync the id counter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(args[0], args[1])
			if err != nil {
				return err
			}
			return runDelete(cmd.Context(), stdout, configPath, dbPath, start, end)
		},
		SilenceUsage: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the grants database (overrides config)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	return cmd
}

func parseRange(a, b string) (int64, int64, error) {
	start, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("start_id %q is not an integer", a)
	}
	end, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("end_id %q is not an integer", b)
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: %d > %d", errBadRange, start, end)
	}
	return start, end, nil
}

func runDelete(ctx context.Context, out io.Writer, configPath, dbPath string, start, end int64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(ctx, cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.DeleteRange(ctx, start, end); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted grants with IDs between %d and %d and reset the auto-increment counter.\n", start, end)
	return nil
}
