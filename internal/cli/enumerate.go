package cli

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xwb1989/sqlparser"
	"gopkg.in/yaml.v3"

	"github.com/canonica-labs/canonica/internal/enumeration"
	"github.com/canonica-labs/canonica/internal/measure"
	"github.com/canonica-labs/canonica/internal/measure/bigquery"
	"github.com/canonica-labs/canonica/internal/measure/duckdb"
	"github.com/canonica-labs/canonica/internal/measure/postgres"
	"github.com/canonica-labs/canonica/internal/measure/snowflake"
	"github.com/canonica-labs/canonica/internal/measure/sqlite"
	"github.com/canonica-labs/canonica/internal/measure/trino"
	"github.com/canonica-labs/canonica/internal/observability"
	"github.com/canonica-labs/canonica/internal/sqlgate"
)

func (c *CLI) newEnumerateCmd() *cobra.Command {
	var (
		outputFlag         string
		formatFlag         string
		semicolonInputFlag bool
		maxLevelFlag       int
		verboseFlag        bool
		stopOnErrorFlag    bool
		measureFlag        bool
		engineFlag         string
	)

	cmd := &cobra.Command{
		Use:   "enumerate <input-file>",
		Short: "Enumerate connected join subsets of each SQL query in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("output") {
				c.cfg.OutputPath = outputFlag
			}
			if cmd.Flags().Changed("format") {
				c.cfg.OutputFormat = formatFlag
			}
			if c.cfg.OutputFormat != "csv" && c.cfg.OutputFormat != "yaml" {
				return fmt.Errorf("canonic enumerate: --format must be csv or yaml, got %q", c.cfg.OutputFormat)
			}
			if cmd.Flags().Changed("semicolon-input") {
				c.cfg.SemicolonInput = semicolonInputFlag
			}
			if cmd.Flags().Changed("max-level") {
				c.cfg.MaxLevel = maxLevelFlag
			}
			if cmd.Flags().Changed("verbose") {
				c.cfg.Verbose = verboseFlag
			}
			if cmd.Flags().Changed("stop-on-error") {
				c.cfg.StopOnError = stopOnErrorFlag
			}
			if cmd.Flags().Changed("measure") {
				c.cfg.Measure = measureFlag
			}
			if cmd.Flags().Changed("engine") {
				c.cfg.Engine = engineFlag
			}
			return c.runEnumerate(args[0])
		},
	}

	cmd.Flags().StringVar(&outputFlag, "output", "-", "output path (- for stdout)")
	cmd.Flags().StringVar(&formatFlag, "format", "csv", "output format: csv or yaml")
	cmd.Flags().BoolVar(&semicolonInputFlag, "semicolon-input", false, "split input on ';' instead of newlines")
	cmd.Flags().IntVar(&maxLevelFlag, "max-level", 0, "cap enumeration at subsets of at most this many relations (0 = unbounded)")
	cmd.Flags().BoolVar(&verboseFlag, "verbose", false, "log every diagnostic and per-query summary as JSON on stderr, then print per-code diagnostic counts")
	cmd.Flags().BoolVar(&stopOnErrorFlag, "stop-on-error", false, "abort the run on the first InputShape failure")
	cmd.Flags().BoolVar(&measureFlag, "measure", false, "measure each sub-query's row count with --engine")
	cmd.Flags().StringVar(&engineFlag, "engine", "", "measurement backend: duckdb, sqlite, postgres, snowflake, trino, bigquery")

	return cmd
}

func (c *CLI) runEnumerate(inputPath string) error {
	queries, err := readQueries(inputPath, c.cfg.SemicolonInput)
	if err != nil {
		return fmt.Errorf("canonic enumerate: %w", err)
	}

	out, closeOut, err := c.openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	var counter measure.RowCounter
	if c.cfg.Measure {
		counter, err = c.openCounter()
		if err != nil {
			return fmt.Errorf("canonic enumerate: %w", err)
		}
		defer counter.Close()
	}

	sink, err := c.newRowSink(out)
	if err != nil {
		return fmt.Errorf("canonic enumerate: %w", err)
	}
	defer sink.close()

	var logger observability.DiagnosticLogger
	if c.cfg.Verbose {
		logger = observability.NewJSONLogger(os.Stderr)
	} else {
		logger = observability.NewNoopLogger()
	}

	gate := sqlgate.NewGate()
	for i, raw := range queries {
		queryID := fmt.Sprintf("q%d", i+1)
		start := time.Now()

		if d := gate.Check(raw); d != nil {
			logger.LogDiagnostic(queryID, d)
			c.errorf("canonic enumerate: %s: %s\n", queryID, d.Error())
			if c.cfg.StopOnError {
				return fmt.Errorf("canonic enumerate: stopped at %s: %s", queryID, d.Message)
			}
			continue
		}

		if c.cfg.AliasCeiling > 0 {
			if front, ok := enumeration.AnalyzeFrom(raw); ok && len(front.Relations) > c.cfg.AliasCeiling {
				c.errorf("canonic enumerate: %s: %d relations exceed the alias ceiling of %d\n", queryID, len(front.Relations), c.cfg.AliasCeiling)
				logger.LogSummary(observability.QuerySummary{QueryID: queryID, Outcome: "skipped", Elapsed: time.Since(start)})
				continue
			}
		}

		p := enumeration.NewPipeline(c.cfg.MaxLevel)
		result, diagSink, err := p.Run(queryID, raw)
		for _, d := range diagSink.All() {
			logger.LogDiagnostic(queryID, d)
		}
		if err != nil {
			c.errorf("canonic enumerate: %s: %s\n", queryID, err.Error())
			if c.cfg.StopOnError {
				return fmt.Errorf("canonic enumerate: stopped at %s: %w", queryID, err)
			}
			logger.LogSummary(observability.QuerySummary{QueryID: queryID, Outcome: "skipped", Elapsed: time.Since(start)})
			continue
		}

		for _, sp := range result.Subplans {
			sqlText := result.SQL[sp.Subset]
			if _, perr := sqlparser.Parse(strings.TrimRight(sqlText, ";")); perr != nil {
				return fmt.Errorf("canonic enumerate: %s: reconstructed SQL for subset %q failed validation: %w", queryID, sp.Subset, perr)
			}

			row := enumerateRow{QueryID: queryID, Subset: sp.Subset, Query: sqlText}
			if counter != nil {
				var count int64
				ctx := context.Background()
				retryResult := measure.ExecuteWithRetry(ctx, measure.DefaultRetryConfig(), func() error {
					var cerr error
					count, cerr = counter.CountRows(ctx, strings.TrimRight(sqlText, ";"))
					return cerr
				})
				if !retryResult.Success {
					return fmt.Errorf("canonic enumerate: %s: measuring subset %q: %w", queryID, sp.Subset, &measure.RetryableError{Result: retryResult})
				}
				row.RowCount = &count
			}
			if werr := sink.writeRow(row); werr != nil {
				return fmt.Errorf("canonic enumerate: writing output row: %w", werr)
			}
		}

		logger.LogSummary(observability.QuerySummary{
			QueryID:       queryID,
			RelationCount: len(result.Aliases),
			SubplanCount:  len(result.Subplans),
			Elapsed:       time.Since(start),
			Outcome:       "ok",
		})
	}

	if j, ok := logger.(*observability.JSONLogger); ok {
		for _, cc := range observability.SortedCodeCounts(j.CodeCounts()) {
			c.printf("%s: %d\n", cc.Code, cc.Count)
		}
	}

	return nil
}

func (c *CLI) openOutput() (io.Writer, func(), error) {
	if c.cfg.OutputPath == "" || c.cfg.OutputPath == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(c.cfg.OutputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// enumerateRow is one emitted subset/sub-query pair, shared by every
// output format. RowCount is nil unless --measure was requested.
type enumerateRow struct {
	QueryID  string `yaml:"query_id"`
	Subset   string `yaml:"subset"`
	Query    string `yaml:"query"`
	RowCount *int64 `yaml:"row_count,omitempty"`
}

// rowSink writes enumerateRows to the configured output in the
// configured format. CSV streams a row at a time; YAML has no
// streaming row-append of its own, so it buffers and emits one
// document on close.
type rowSink interface {
	writeRow(enumerateRow) error
	close() error
}

func (c *CLI) newRowSink(out io.Writer) (rowSink, error) {
	switch c.cfg.OutputFormat {
	case "yaml":
		return &yamlRowSink{out: out}, nil
	default:
		return newCSVRowSink(out, c.cfg.Measure)
	}
}

type csvRowSink struct {
	w        *csv.Writer
	measured bool
}

func newCSVRowSink(out io.Writer, measured bool) (*csvRowSink, error) {
	w := csv.NewWriter(out)
	header := []string{"query_id", "subset", "query"}
	if measured {
		header = append(header, "row_count")
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	return &csvRowSink{w: w, measured: measured}, nil
}

func (s *csvRowSink) writeRow(row enumerateRow) error {
	record := []string{row.QueryID, row.Subset, row.Query}
	if s.measured {
		count := int64(0)
		if row.RowCount != nil {
			count = *row.RowCount
		}
		record = append(record, strconv.FormatInt(count, 10))
	}
	return s.w.Write(record)
}

func (s *csvRowSink) close() error {
	s.w.Flush()
	return s.w.Error()
}

// yamlRowSink buffers every row and emits one YAML sequence on close,
// since gopkg.in/yaml.v3's Encoder has no notion of appending to an
// in-progress top-level sequence.
type yamlRowSink struct {
	out  io.Writer
	rows []enumerateRow
}

func (s *yamlRowSink) writeRow(row enumerateRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *yamlRowSink) close() error {
	enc := yaml.NewEncoder(s.out)
	defer enc.Close()
	return enc.Encode(s.rows)
}

// openCounter builds the counter selected by --engine, registers it in
// a registry, and returns it from there. Only that one engine's counter
// is built; the per-engine Enabled settings are not consulted.
func (c *CLI) openCounter() (measure.RowCounter, error) {
	engine := c.cfg.Engine
	if engine == "" {
		return nil, fmt.Errorf("--measure requires --engine")
	}

	registry := measure.NewRegistry()
	built, err := c.buildCounter(engine)
	if err != nil {
		return nil, err
	}
	registry.Register(built)

	counter, ok := registry.Get(engine)
	if !ok {
		return nil, fmt.Errorf("engine %q did not register a counter", engine)
	}
	return counter, nil
}

func (c *CLI) buildCounter(engine string) (measure.RowCounter, error) {
	ctx := context.Background()
	switch engine {
	case "duckdb":
		return duckdb.New(duckdb.Config{DatabasePath: c.cfg.Engines.DuckDB.Database})
	case "sqlite":
		return sqlite.New(sqlite.Config{DatabasePath: c.cfg.Engines.SQLite.Database})
	case "postgres":
		pc := c.cfg.Engines.Postgres
		cfg := postgres.DefaultConfig()
		cfg.Host, cfg.Database, cfg.User, cfg.Password = pc.Host, pc.Database, pc.User, pc.Password
		if pc.Port != 0 {
			cfg.Port = pc.Port
		}
		if pc.SSLMode != "" {
			cfg.SSLMode = pc.SSLMode
		}
		return postgres.New(ctx, cfg)
	case "snowflake":
		sc := c.cfg.Engines.Snowflake
		cfg := snowflake.DefaultConfig()
		cfg.Account, cfg.User, cfg.Password = sc.Account, sc.User, sc.Password
		cfg.Database, cfg.Schema, cfg.Warehouse, cfg.Role = sc.Database, sc.Schema, sc.Warehouse, sc.Role
		return snowflake.New(ctx, cfg)
	case "trino":
		cfg := trino.DefaultConfig()
		cfg.Host = c.cfg.Engines.Trino.Host
		cfg.Port = c.cfg.Engines.Trino.Port
		cfg.Catalog = c.cfg.Engines.Trino.Catalog
		cfg.Schema = c.cfg.Engines.Trino.Schema
		return trino.New(cfg)
	case "bigquery":
		cfg := bigquery.DefaultConfig()
		cfg.ProjectID = c.cfg.Engines.BigQuery.ProjectID
		return bigquery.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}

// readQueries splits input into individual query strings, either one
// per line (default) or one per semicolon-terminated statement.
func readQueries(path string, semicolonInput bool) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	var raw []string
	if semicolonInput {
		raw = strings.Split(string(data), ";")
	} else {
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			raw = append(raw, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scanning input: %w", err)
		}
	}

	var queries []string
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		queries = append(queries, q)
	}
	return queries, nil
}
