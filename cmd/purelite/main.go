// Command purelite runs ad-hoc queries, statements and online backups
// against SQLite databases through the purelite library, without cgo.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pterm/pterm"
	"github.com/zeebo/blake3"

	"github.com/purelite/purelite"
)

const version = "0.1.0"

// CLI defines the command-line interface for purelite.
var CLI struct {
	BusyTimeout time.Duration `help:"Busy timeout applied to every connection." default:"5s"`

	Query   QueryCmd   `cmd:"" help:"Run a query and print its rows"`
	Exec    ExecCmd    `cmd:"" help:"Run a statement and print the change count"`
	Backup  BackupCmd  `cmd:"" help:"Stream an online backup to another file"`
	Digest  DigestCmd  `cmd:"" help:"Print the BLAKE3 fingerprint of a file"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// QueryCmd runs a query and renders its rows.
type QueryCmd struct {
	Database string   `arg:"" help:"Database path"`
	SQL      string   `arg:"" help:"SQL text"`
	Params   []string `arg:"" optional:"" help:"Positional query parameters"`
	Format   string   `enum:"table,json" default:"table" help:"Output format (table or json)"`
}

func (c *QueryCmd) Run() error {
	db, err := purelite.Open(c.Database, purelite.WithBusyTimeout(CLI.BusyTimeout))
	if err != nil {
		return err
	}
	defer db.Close()

	stmt, err := db.Prepare(c.SQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	params := coerceParams(c.Params)
	switch c.Format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		var encErr error
		err := stmt.QueryEach(func(row purelite.Row) {
			if encErr == nil {
				encErr = enc.Encode(row)
			}
		}, params...)
		if err != nil {
			return err
		}
		return encErr
	default:
		cols, err := stmt.Columns()
		if err != nil {
			return err
		}
		data := pterm.TableData{cols}
		err = stmt.QueryArraysEach(func(values []any) {
			row := make([]string, len(values))
			for i, v := range values {
				row[i] = formatValue(v)
			}
			data = append(data, row)
		}, params...)
		if err != nil {
			return err
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
}

// ExecCmd runs a statement and prints how many rows it changed.
type ExecCmd struct {
	Database string   `arg:"" help:"Database path"`
	SQL      string   `arg:"" help:"SQL text"`
	Params   []string `arg:"" optional:"" help:"Positional query parameters"`
}

func (c *ExecCmd) Run() error {
	db, err := purelite.Open(c.Database, purelite.WithBusyTimeout(CLI.BusyTimeout))
	if err != nil {
		return err
	}
	defer db.Close()

	changes, err := db.Execute(c.SQL, coerceParams(c.Params)...)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("%d rows changed", changes)
	return nil
}

// BackupCmd streams an online backup with a progress bar.
type BackupCmd struct {
	Src string `arg:"" help:"Source database path"`
	Dst string `arg:"" help:"Destination database path"`
}

func (c *BackupCmd) Run() error {
	db, err := purelite.Open(c.Src, purelite.WithBusyTimeout(CLI.BusyTimeout))
	if err != nil {
		return err
	}
	defer db.Close()

	var bar *pterm.ProgressbarPrinter
	err = db.Backup(c.Dst, purelite.WithProgress(func(remaining, total int) {
		if bar == nil {
			bar, _ = pterm.DefaultProgressbar.WithTotal(total).WithTitle("backing up").Start()
		}
		copied := total - remaining
		if remaining == total {
			copied = total
		}
		if copied > bar.Current {
			bar.Add(copied - bar.Current)
		}
	}))
	if bar != nil {
		_, _ = bar.Stop()
	}
	if err != nil {
		return err
	}
	pterm.Success.Printfln("backed up %s to %s", c.Src, c.Dst)
	return nil
}

// DigestCmd fingerprints a file so copies can be verified out of band.
type DigestCmd struct {
	File string `arg:"" help:"File to fingerprint" type:"existingfile"`
}

func (c *DigestCmd) Run() error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	fmt.Printf("%x  %s\n", h.Sum(nil), c.File)
	return nil
}

// VersionCmd prints the CLI and engine versions.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("purelite %s\n", version)
	v, err := purelite.SQLiteVersion()
	if err != nil {
		return err
	}
	n, err := purelite.SQLiteVersionNumber()
	if err != nil {
		return err
	}
	fmt.Printf("sqlite %s (%d)\n", v, n)
	return nil
}

// coerceParams maps command line strings to the narrowest matching SQL
// type: null, integer, float, or text.
func coerceParams(raw []string) []any {
	params := make([]any, len(raw))
	for i, s := range raw {
		params[i] = coerceParam(s)
	}
	return params
}

func coerceParam(s string) any {
	if s == "null" || s == "NULL" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", x)
	default:
		return fmt.Sprint(x)
	}
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("purelite"),
		kong.Description("SQLite queries, backups and fingerprints without cgo"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
