// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

// xfiles is the command-line surface of the versioned filesystem:
// create, write, read, history, list, exists, and delete against the
// substrate gateway and local catalog named in the config file.
//
// Content flows through stdin/stdout so the tool composes with shell
// pipelines:
//
//	echo "v1" | xfiles write notes/memory.txt
//	xfiles read notes/memory.txt
//	xfiles history notes/memory.txt
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/cryptopatrick/xfiles/lib/config"
	"github.com/cryptopatrick/xfiles/lib/index"
	"github.com/cryptopatrick/xfiles/lib/substrate"
	"github.com/cryptopatrick/xfiles/lib/xfs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var mimeType string
	var atCommit string
	var verbose bool

	flagSet := pflag.NewFlagSet("xfiles", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $XFILES_CONFIG)")
	flagSet.StringVar(&mimeType, "mime", "", "content type recorded on write (default: "+xfs.DefaultMIME+")")
	flagSet.StringVar(&atCommit, "at", "", "read the content of a specific commit id")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log substrate and catalog activity")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printUsage(flagSet)
		return fmt.Errorf("missing command")
	}
	command, args := args[0], args[1:]

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	catalog, err := index.Open(index.Config{
		Path:     cfg.Index.Path,
		PoolSize: cfg.Index.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer catalog.Close()

	filesystem, err := buildFS(cfg, catalog, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch command {
	case "create":
		return cmdCreate(ctx, filesystem, args)
	case "write":
		return cmdWrite(ctx, filesystem, args, mimeType)
	case "read":
		return cmdRead(ctx, filesystem, args, atCommit)
	case "history":
		return cmdHistory(ctx, filesystem, args)
	case "list":
		return cmdList(ctx, filesystem, args)
	case "exists":
		return cmdExists(ctx, filesystem, args)
	case "delete":
		return cmdDelete(ctx, filesystem, args)
	default:
		printUsage(flagSet)
		return fmt.Errorf("unknown command %q", command)
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func buildFS(cfg *config.Config, catalog *index.Catalog, logger *slog.Logger) (*xfs.FS, error) {
	remote, err := substrate.NewRemote(substrate.RemoteConfig{
		BaseURL:     cfg.Substrate.BaseURL,
		AccessToken: cfg.Substrate.AccessToken,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return xfs.New(xfs.Config{
		Catalog:        catalog,
		Adapter:        remote,
		Author:         cfg.Author,
		MaxPayloadSize: cfg.Engine.MaxPayloadSize,
		Compress:       cfg.Engine.Compress,
		Retry:          cfg.Retry.ToSubstrate(),
		BudgetCalls:    cfg.Budget.Calls,
		BudgetWindow:   cfg.Budget.Window.Std(),
		Logger:         logger,
	})
}

func cmdCreate(ctx context.Context, filesystem *xfs.FS, args []string) error {
	path, err := singlePath(args)
	if err != nil {
		return err
	}
	file, err := filesystem.Open(ctx, path, xfs.ModeCreate)
	if err != nil {
		return err
	}
	head, err := file.Head(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (root %s)\n", path, head)
	return nil
}

func cmdWrite(ctx context.Context, filesystem *xfs.FS, args []string, mimeType string) error {
	path, err := singlePath(args)
	if err != nil {
		return err
	}
	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	file, err := filesystem.Open(ctx, path, xfs.ModeOpen)
	if err != nil {
		return err
	}

	var commit *xfs.Commit
	if mimeType != "" {
		commit, err = file.WriteMIME(ctx, content, mimeType)
	} else {
		commit, err = file.Write(ctx, content)
	}
	if err != nil {
		return err
	}
	fmt.Printf("committed %s (%d bytes, commit %s)\n", path, commit.Size, commit.ID)
	return nil
}

func cmdRead(ctx context.Context, filesystem *xfs.FS, args []string, atCommit string) error {
	path, err := singlePath(args)
	if err != nil {
		return err
	}
	file, err := filesystem.Open(ctx, path, xfs.ModeOpen)
	if err != nil {
		return err
	}

	var content []byte
	if atCommit != "" {
		content, err = file.ReadAt(ctx, substrate.PostID(atCommit))
	} else {
		content, err = file.Read(ctx)
	}
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(content)
	return err
}

func cmdHistory(ctx context.Context, filesystem *xfs.FS, args []string) error {
	path, err := singlePath(args)
	if err != nil {
		return err
	}
	file, err := filesystem.Open(ctx, path, xfs.ModeOpen)
	if err != nil {
		return err
	}
	history, err := file.History(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "COMMIT\tTIME\tAUTHOR\tSIZE\tMIME")
	for _, commit := range history {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\n",
			commit.ID,
			commit.Timestamp.Format("2006-01-02 15:04:05"),
			commit.Author,
			commit.Size,
			commit.MIME,
		)
	}
	return writer.Flush()
}

func cmdList(ctx context.Context, filesystem *xfs.FS, args []string) error {
	dir := ""
	switch len(args) {
	case 0:
	case 1:
		dir = args[0]
	default:
		return fmt.Errorf("list takes at most one directory")
	}

	paths, err := filesystem.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Println(path)
	}
	return nil
}

func cmdExists(ctx context.Context, filesystem *xfs.FS, args []string) error {
	path, err := singlePath(args)
	if err != nil {
		return err
	}
	exists, err := filesystem.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Println("absent")
		os.Exit(2)
	}
	fmt.Println("present")
	return nil
}

func cmdDelete(ctx context.Context, filesystem *xfs.FS, args []string) error {
	path, err := singlePath(args)
	if err != nil {
		return err
	}
	if err := filesystem.Delete(ctx, path); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", path)
	return nil
}

func singlePath(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one path argument")
	}
	return args[0], nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `xfiles - versioned filesystem over an append-only post substrate

Usage:
  xfiles [flags] <command> [args]

Commands:
  create <path>     register a new file (publishes its root post)
  write <path>      publish stdin as a new commit
  read <path>       print the head content (--at for a past commit)
  history <path>    show the file's commits, oldest first
  list [dir]        list immediate children of a directory
  exists <path>     exit 0 if the file exists, 2 if not
  delete <path>     tombstone the file locally

Flags:
%s`, flagSet.FlagUsages())
}
