package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lmzr/pipedrive-cli/audit"
	"github.com/lmzr/pipedrive-cli/backup"
	"github.com/lmzr/pipedrive-cli/pkg/schema"
)

const backupUsage = `Usage: pipedrive backup [entity...] [options]

Snapshot entities from the API into the local datapackage store. With
no entity arguments every entity is fetched. The store is what
--local commands, export and restore run against.

Options:
  --archive     Also pack the store into a timestamped .tar.zst in
                the backup directory (config: backup.dir)
  --push        Upload the archive to the configured sftp:// target
                (config: backup.push, backup.key_file); implies
                --archive
  -c PATH       Config file

Examples:
  pipedrive backup
  pipedrive backup persons org deals --archive
`

func backupCommand(ctx context.Context, app *App, args []string, getenv func(string) string) error {
	fs, configPath := newFlagSet(app, "backup")
	archive := fs.Bool("archive", false, "pack the store into an archive")
	push := fs.Bool("push", false, "upload the archive")
	fs.Usage = func() { fmt.Fprint(app.Stderr, backupUsage) }

	pos, rest := takePositionals(args, -1)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if err := app.loadConfig(*configPath, getenv); err != nil {
		return err
	}

	entities, err := schema.MatchEntities(pos)
	if err != nil {
		return err
	}

	client, err := app.client()
	if err != nil {
		return err
	}

	counts, err := backup.Run(ctx, client, app.Config.Store.Dir, entities)
	for _, c := range counts {
		fmt.Fprintf(app.Stdout, "%-15s %4d fields %6d records\n", c.Entity, c.Fields, c.Records)
	}
	if err != nil {
		return err
	}

	total := 0
	for _, c := range counts {
		total += c.Records
	}
	app.appendHistory(audit.Run{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   "backup",
		Updated:   total,
	})

	if !*archive && !*push {
		return nil
	}

	archivePath := filepath.Join(app.Config.Backup.Dir, backup.ArchiveName(time.Now()))
	if err := backup.Archive(app.Config.Store.Dir, archivePath); err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "archived to %s\n", archivePath)

	if *push {
		if app.Config.Backup.Push == "" {
			return fmt.Errorf("no push target configured (config: backup.push)")
		}
		if err := backup.Push(archivePath, app.Config.Backup.Push, app.Config.Backup.KeyFile); err != nil {
			return err
		}
		fmt.Fprintf(app.Stdout, "pushed to %s\n", app.Config.Backup.Push)
	}
	return nil
}
