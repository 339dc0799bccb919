// Command trajectory-planner serves and converts drone trajectory plans.
//
// Usage:
//
//	trajectory-planner <command> [options]
//
// Commands:
//
//	serve        Run the HTTP API on a planning session
//	export-csv   Write one X,Y,Z file per visible drone of a snapshot
//	convert      Convert a snapshot between JSON and the binary .trj form
//	render-pdf   Draw a top-down plan of a snapshot
//	inspect      Dump a snapshot and its path edges
//	save         Store a snapshot as a named mission
//	load         Write a stored mission to a snapshot file
//	missions     List stored missions
//	archive      Append a snapshot's exported rows to ClickHouse
//
// Snapshot files ending in .trj are read and written in the binary form,
// anything else as JSON.
//
// Environment:
//
//	STORE_BACKEND, SQLITE_PATH, POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DATABASE,
//	POSTGRES_USER, POSTGRES_PASSWORD, CLICKHOUSE_HOST, CLICKHOUSE_PORT,
//	CLICKHOUSE_DATABASE, CLICKHOUSE_USER, CLICKHOUSE_PASSWORD, NATS_URL,
//	LOG_LEVEL, LOG_DIR
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"trajectory_planner/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "trajectory-planner - commands:")
	fmt.Fprintln(w, "  serve       - run the HTTP API")
	fmt.Fprintln(w, "  export-csv  - snapshot to per-drone CSV files")
	fmt.Fprintln(w, "  convert     - snapshot JSON <-> .trj")
	fmt.Fprintln(w, "  render-pdf  - snapshot to a PDF plan")
	fmt.Fprintln(w, "  inspect     - dump a snapshot")
	fmt.Fprintln(w, "  save        - store a snapshot as a mission")
	fmt.Fprintln(w, "  load        - write a mission to a snapshot file")
	fmt.Fprintln(w, "  missions    - list stored missions")
	fmt.Fprintln(w, "  archive     - append exported rows to ClickHouse")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'trajectory-planner <command> -h' for the options of a command.")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cmd := strings.ToLower(os.Args[1])
	args := os.Args[2:]
	switch cmd {
	case "serve":
		runServe(args)
	case "export-csv":
		runExportCSV(args)
	case "convert":
		runConvert(args)
	case "render-pdf":
		runRenderPDF(args)
	case "inspect":
		runInspect(args)
	case "save":
		runSave(args)
	case "load":
		runLoad(args)
	case "missions":
		runMissions(args)
	case "archive":
		runArchive(args)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// storeFlags registers the mission store options on fs.
func storeFlags(fs *flag.FlagSet) *storage.Config {
	cfg := storage.DefaultConfig()
	fs.StringVar(&cfg.Backend, "store", envOrDefault("STORE_BACKEND", cfg.Backend), "Mission store: sqlite or postgres")
	fs.StringVar(&cfg.SQLitePath, "sqlite", envOrDefault("SQLITE_PATH", cfg.SQLitePath), "SQLite mission database")
	fs.StringVar(&cfg.Postgres.Host, "pg-host", envOrDefault("POSTGRES_HOST", cfg.Postgres.Host), "PostgreSQL host")
	fs.IntVar(&cfg.Postgres.Port, "pg-port", envOrDefaultInt("POSTGRES_PORT", cfg.Postgres.Port), "PostgreSQL port")
	fs.StringVar(&cfg.Postgres.Database, "pg-database", envOrDefault("POSTGRES_DATABASE", cfg.Postgres.Database), "PostgreSQL database")
	fs.StringVar(&cfg.Postgres.User, "pg-user", envOrDefault("POSTGRES_USER", cfg.Postgres.User), "PostgreSQL user")
	fs.StringVar(&cfg.Postgres.Password, "pg-password", envOrDefault("POSTGRES_PASSWORD", cfg.Postgres.Password), "PostgreSQL password")
	return &cfg
}

// clickHouseFlags registers the ClickHouse options on fs.
func clickHouseFlags(fs *flag.FlagSet) *storage.ClickHouseConfig {
	cfg := storage.DefaultConfig().ClickHouse
	fs.StringVar(&cfg.Host, "ch-host", envOrDefault("CLICKHOUSE_HOST", cfg.Host), "ClickHouse host")
	fs.IntVar(&cfg.Port, "ch-port", envOrDefaultInt("CLICKHOUSE_PORT", cfg.Port), "ClickHouse native port")
	fs.StringVar(&cfg.Database, "ch-database", envOrDefault("CLICKHOUSE_DATABASE", cfg.Database), "ClickHouse database")
	fs.StringVar(&cfg.User, "ch-user", envOrDefault("CLICKHOUSE_USER", cfg.User), "ClickHouse user")
	fs.StringVar(&cfg.Password, "ch-password", envOrDefault("CLICKHOUSE_PASSWORD", cfg.Password), "ClickHouse password")
	return &cfg
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
