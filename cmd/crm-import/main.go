/*
main.go - CRM import tool entry point

PURPOSE:
  Command-line front end for the lead reconciliation engine. Imports
  external lead exports (CSV or XLSX) into the CRM SQLite database,
  prints store inventory reports, and runs phone verification sweeps.

COMMANDS:
  import [file]    Reconcile an export file into the database
  report           Print row counts per table
  verify-phones    Check stored numbers against the phone-intel API

GLOBAL FLAGS:
  --db     SQLite database path (default: $DATABASE_PATH or crm.db)
           Use ":memory:" for an in-memory database

IMPORT FLAGS:
  --sheet            XLSX sheet name (default: first sheet)
  --create-missing   Create a property for unmatched rows instead of
                     sending them to the unmatched sink
  --single-tx        Run the whole batch in one transaction
  --unmatched-out    Unmatched export path (default: unmatched_import_data.json)

ENVIRONMENT:
  DATABASE_PATH     default for --db
  TRESTLE_API_KEY   phone-intel API key (verify-phones)
  A .env file in the working directory is loaded when present.

EXAMPLES:
  # Import a CSV export
  ./crm-import import leads.csv --db=./data/crm.db

  # Import one sheet of a spreadsheet, creating missing properties
  ./crm-import import leads.xlsx --sheet="Palm Beach" --create-missing

  # Verify every stored phone, writing results to a file
  ./crm-import verify-phones --out=phone_results.json

SEE ALSO:
  - reconcile/batch.go: Batch driver
  - leadsource/csv.go, leadsource/xlsx.go: Row sources
  - store/sqlite/sqlite.go: Database implementation
  - phonecheck/client.go: Phone-intel client
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/123Soldcash/crm-123drive-v2/leadsource"
	"github.com/123Soldcash/crm-123drive-v2/phonecheck"
	"github.com/123Soldcash/crm-123drive-v2/reconcile"
	"github.com/123Soldcash/crm-123drive-v2/store/sqlite"
)

func main() {
	// Optional .env for local runs; absence is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crm-import",
		Short:         "Import and reconcile lead exports into the CRM database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultDB := os.Getenv("DATABASE_PATH")
	if defaultDB == "" {
		defaultDB = "crm.db"
	}
	root.PersistentFlags().String("db", defaultDB, "SQLite database path")

	root.AddCommand(newImportCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newVerifyPhonesCmd())
	return root
}

// =============================================================================
// IMPORT COMMAND
// =============================================================================

func newImportCmd() *cobra.Command {
	var (
		sheet         string
		createMissing bool
		singleTx      bool
		unmatchedOut  string
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Reconcile a CSV or XLSX lead export into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			return runImport(cmd.Context(), dbPath, args[0], sheet, createMissing, singleTx, unmatchedOut)
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().BoolVar(&createMissing, "create-missing", false, "create properties for unmatched rows")
	cmd.Flags().BoolVar(&singleTx, "single-tx", false, "run the whole batch in one transaction")
	cmd.Flags().StringVar(&unmatchedOut, "unmatched-out", "unmatched_import_data.json", "unmatched record export path")
	return cmd
}

func runImport(ctx context.Context, dbPath, file, sheet string, createMissing, singleTx bool, unmatchedOut string) error {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer store.Close()

	src, closeSrc, err := openSource(file, sheet)
	if err != nil {
		return err
	}
	defer closeSrc()

	sink := reconcile.NewSink()
	driver := &reconcile.Driver{
		Store:         store,
		Sink:          sink,
		CreateMissing: createMissing,
		Logf:          log.Printf,
	}

	log.Printf("Importing %s into %s", file, dbPath)
	var report *reconcile.Report
	if singleTx {
		err = store.WithTx(ctx, func(tx reconcile.Store) error {
			driver.Store = tx
			var runErr error
			report, runErr = driver.Run(ctx, src)
			return runErr
		})
	} else {
		report, err = driver.Run(ctx, src)
	}
	if report != nil {
		printSummary(report)
	}
	if err != nil {
		return err
	}

	if sink.Len() > 0 {
		f, err := os.Create(unmatchedOut)
		if err != nil {
			return fmt.Errorf("create unmatched export: %w", err)
		}
		defer f.Close()
		if err := sink.Export(f); err != nil {
			return fmt.Errorf("write unmatched export: %w", err)
		}
		log.Printf("Wrote %d unmatched records to %s", sink.Len(), unmatchedOut)
	}
	return nil
}

// openSource picks the row source by file extension.
func openSource(file, sheet string) (reconcile.RowSource, func(), error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".xlsx":
		src, err := leadsource.NewXLSX(file, sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("open spreadsheet %s: %w", file, err)
		}
		return src, func() {}, nil
	default:
		f, err := os.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", file, err)
		}
		src, err := leadsource.NewCSV(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("read %s: %w", file, err)
		}
		return src, func() { f.Close() }, nil
	}
}

func printSummary(report *reconcile.Report) {
	fmt.Println()
	fmt.Println("==================================================")
	fmt.Println("IMPORT SUMMARY")
	fmt.Println("==================================================")
	fmt.Printf("Run ID:              %s\n", report.RunID)
	fmt.Printf("Rows processed:      %d\n", report.Rows)
	fmt.Printf("Matched by APN:      %d\n", report.MatchedByAPN)
	fmt.Printf("Matched by prop ID:  %d\n", report.MatchedByPropertyID)
	fmt.Printf("Matched by address:  %d\n", report.MatchedByAddress)
	fmt.Printf("Unmatched:           %d\n", report.Unmatched)
	fmt.Printf("Properties created:  %d\n", report.PropertiesCreated)
	fmt.Printf("Properties updated:  %d\n", report.PropertiesUpdated)
	fmt.Printf("Contacts added:      %d\n", report.ContactsAdded)
	fmt.Printf("Phones added:        %d\n", report.PhonesAdded)
	fmt.Printf("Emails added:        %d\n", report.EmailsAdded)
	fmt.Printf("Values dropped:      %d phones, %d emails\n", report.PhonesDropped, report.EmailsDropped)
	fmt.Printf("Failures:            %d\n", len(report.Failures))
	fmt.Printf("Duration:            %s\n", report.Finished.Sub(report.Started).Round(time.Millisecond))
	fmt.Println("==================================================")

	for _, f := range report.Failures {
		log.Printf("row %d (%s %s): %s", f.RowNum, f.APN, f.Address, f.Err)
	}
}

// =============================================================================
// REPORT COMMAND
// =============================================================================

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print row counts for the CRM database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("open database %s: %w", dbPath, err)
			}
			defer store.Close()

			counts, err := store.CountSummary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Database:   %s\n", dbPath)
			fmt.Printf("Properties: %d\n", counts.Properties)
			fmt.Printf("Contacts:   %d\n", counts.Contacts)
			fmt.Printf("Phones:     %d\n", counts.Phones)
			fmt.Printf("Emails:     %d\n", counts.Emails)
			return nil
		},
	}
}

// =============================================================================
// VERIFY-PHONES COMMAND
// =============================================================================

func newVerifyPhonesCmd() *cobra.Command {
	var (
		out   string
		pause time.Duration
		limit int
	)

	cmd := &cobra.Command{
		Use:   "verify-phones",
		Short: "Verify stored phone numbers against the phone-intel API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := os.Getenv("TRESTLE_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("TRESTLE_API_KEY is not set")
			}
			dbPath, _ := cmd.Flags().GetString("db")
			return runVerifyPhones(cmd.Context(), dbPath, apiKey, out, pause, limit)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write per-number results as JSON to this path")
	cmd.Flags().DurationVar(&pause, "pause", 500*time.Millisecond, "delay between API calls")
	cmd.Flags().IntVar(&limit, "limit", 0, "verify at most N numbers (0 = all)")
	return cmd
}

func runVerifyPhones(ctx context.Context, dbPath, apiKey, out string, pause time.Duration, limit int) error {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer store.Close()

	listings, err := store.ListPhones(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(listings) > limit {
		listings = listings[:limit]
	}
	if len(listings) == 0 {
		log.Printf("No phone numbers stored in %s", dbPath)
		return nil
	}

	entries := make([]phonecheck.Entry, 0, len(listings))
	for _, l := range listings {
		entries = append(entries, phonecheck.Entry{Name: l.ContactName, Phone: l.Number})
	}

	log.Printf("Verifying %d phone numbers", len(entries))
	client := phonecheck.New(apiKey, phonecheck.WithPause(pause))
	results, err := client.VerifyAll(ctx, entries)
	if err != nil {
		return err
	}

	summary := phonecheck.Summarize(results)
	fmt.Printf("Total:        %d\n", summary.Total)
	fmt.Printf("Active:       %d\n", summary.Active)
	fmt.Printf("Disconnected: %d\n", summary.Disconnected)
	fmt.Printf("Litigators:   %d\n", summary.Litigators)
	fmt.Printf("Errors:       %d\n", summary.Errors)

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create results file: %w", err)
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("write results file: %w", err)
		}
		log.Printf("Wrote results to %s", out)
	}
	return nil
}
