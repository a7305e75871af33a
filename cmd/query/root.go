package query

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
	"text/tabwriter"
	"time"

	cmdUtil "github.com/feaforge/lrdb/cmd/util"
	"github.com/feaforge/lrdb/lib/database"
	"github.com/feaforge/lrdb/lib/query"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// QueryCommands groups the query operations
	QueryCommands = &cobra.Command{
		Use:   "query",
		Short: "Run query templates against a database",
		Long:  `Run declarative query templates (pick or group) against a local database directory or a remote lrdb server. Use --path for local execution or --db together with the connection flags for remote execution.`,
	}

	runCmd = &cobra.Command{
		Use:   "run <template.json>",
		Short: "Execute a query template and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}

	benchCmd = &cobra.Command{
		Use:   "bench <template.json>",
		Short: "Benchmark a query template",
		Long:  `Benchmark a query template by executing it repeatedly and reporting the time per execution and executions per second.`,
		Args:  cobra.ExactArgs(1),
		RunE:  benchQuery,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "path"
	QueryCommands.PersistentFlags().StringP(key, "p", "", cmdUtil.WrapString("Path of a local database directory to query"))

	key = "db"
	QueryCommands.PersistentFlags().String(key, "", cmdUtil.WrapString("Name of the remote database to query (requires the connection flags)"))

	key = "json"
	QueryCommands.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Print the result as JSON instead of a table"))

	cmdUtil.SetupRPCClientFlags(QueryCommands)

	QueryCommands.AddCommand(runCmd)
	QueryCommands.AddCommand(benchCmd)
}

// loadTemplate reads and parses the query template file
func loadTemplate(path string) (query.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	return query.Parse(data)
}

// execFunc executes the parsed query once. Both the local and the remote
// path are wrapped into this shape so run and bench share the same logic.
type execFunc func() (*query.Result, error)

// getExecutor builds the executor for the configured target and returns
// a cleanup function that must be deferred by the caller.
func getExecutor(q query.Query) (execFunc, func(), error) {
	path := viper.GetString("path")
	dbName := viper.GetString("db")

	switch {
	case path != "" && dbName != "":
		return nil, nil, fmt.Errorf("--path and --db are mutually exclusive")

	case path != "":
		db, err := database.Open(path, nil)
		if err != nil {
			return nil, nil, err
		}
		exec := func() (*query.Result, error) {
			return query.Execute(context.Background(), db, q)
		}
		return exec, func() { _ = db.Close() }, nil

	case dbName != "":
		c, err := cmdUtil.GetClient()
		if err != nil {
			return nil, nil, err
		}
		exec := func() (*query.Result, error) {
			return c.Query(dbName, q)
		}
		return exec, func() { _ = c.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("either --path or --db must be set")
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	q, err := loadTemplate(args[0])
	if err != nil {
		return err
	}

	exec, cleanup, err := getExecutor(q)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := exec()
	if err != nil {
		return err
	}

	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printTable(result)
	return nil
}

func benchQuery(cmd *cobra.Command, args []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	q, err := loadTemplate(args[0])
	if err != nil {
		return err
	}

	exec, cleanup, err := getExecutor(q)
	if err != nil {
		return err
	}
	defer cleanup()

	// run once up front so errors surface before the benchmark loop
	if _, err := exec(); err != nil {
		return err
	}

	fmt.Printf("benchmarking %s query (%s)...\n", q.Mode(), args[0])

	result := testing.Benchmark(func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := exec(); err != nil {
				b.Fatalf("query failed: %v", err)
			}
		}
	})

	printResult(q.Mode(), result)
	return nil
}

// printResult prints a single benchmark result
func printResult(test string, result testing.BenchmarkResult) {
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// printTable prints the query result as an aligned text table
func printTable(result *query.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))

	fields := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i, v := range row {
			fields[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintln(w, strings.Join(fields, "\t"))
	}
	_ = w.Flush()

	fmt.Printf("(%d rows)\n", len(result.Rows))
}
