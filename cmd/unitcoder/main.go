package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"unitcoder/internal/annotation"
	"unitcoder/internal/codebook"
	"unitcoder/internal/config"
	"unitcoder/internal/database"
	"unitcoder/internal/job"
	"unitcoder/internal/pipeline"
	"unitcoder/internal/server"
	"unitcoder/internal/token"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "unitcoder",
	Short:   "Local text annotation jobs",
	Long:    "Unitcoder collects text units, pairs them with a codebook, and runs annotation sessions locally.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for commands that don't touch the database
		if cmd.Name() == "init" || cmd.Name() == "version" || cmd.Name() == "validate" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("unitcoder", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/unitcoder/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds and API keys.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Printf("Jobs: %d\n", stats.Jobs)
		fmt.Println("Units:")
		fmt.Printf("  Total: %d\n", stats.Units)
		fmt.Printf("  With fetched body: %d\n", stats.FetchedUnits)
		fmt.Printf("Sessions: %d\n", stats.Sessions)
		fmt.Printf("Annotations: %d\n", stats.Annotations)
		return nil
	},
}

// --- validate command ---

var validateCmd = &cobra.Command{
	Use:   "validate [codebook.yaml]",
	Short: "Validate a codebook file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := codebook.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Codebook %q is valid.\n\n", cb.Name)
		for i, phase := range cb.Phases() {
			fmt.Printf("Phase %d: %s (%s)\n", i, phase.Name, phase.Data.Type)
			for _, leaf := range cb.PhaseLeaves(phase.ID) {
				v := leaf.Data.Variable
				fmt.Printf("  %s (%s), %d codes\n", v.Name, v.Type, len(v.Codes))
			}
		}
		return nil
	},
}

// --- create command ---

var createCodebookPath string

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an annotation job from a codebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		data, err := os.ReadFile(createCodebookPath)
		if err != nil {
			return fmt.Errorf("reading codebook: %w", err)
		}
		if _, err := codebook.Parse(data); err != nil {
			return fmt.Errorf("invalid codebook: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.InsertJob(name, string(data))
		if err != nil {
			return fmt.Errorf("creating job: %w", err)
		}
		if id == 0 {
			return fmt.Errorf("job %q already exists", name)
		}

		fmt.Printf("Created job %q [%d].\n", name, id)
		fmt.Printf("Add units with 'unitcoder import %s units.json' or 'unitcoder collect %s'.\n", name, name)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createCodebookPath, "codebook", "codebook.yaml", "Path to the codebook YAML file")
}

// --- edit command ---

var editCodebookPath string

var editCmd = &cobra.Command{
	Use:   "edit [job]",
	Short: "Replace a job's codebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(editCodebookPath)
		if err != nil {
			return fmt.Errorf("reading codebook: %w", err)
		}
		if _, err := codebook.Parse(data); err != nil {
			return fmt.Errorf("invalid codebook: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		j, err := getJob(db, args[0])
		if err != nil {
			return err
		}
		if err := db.UpdateJobCodebook(j.ID, string(data)); err != nil {
			return fmt.Errorf("updating codebook: %w", err)
		}

		fmt.Printf("Updated codebook of job %q.\n", j.Name)
		fmt.Println("Existing sessions resume with the new codebook; progress is kept where phases still match.")
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&editCodebookPath, "codebook", "codebook.yaml", "Path to the codebook YAML file")
}

// --- delete command ---

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete [job]",
	Short: "Delete a job with its units, sessions and annotations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		j, err := getJob(db, args[0])
		if err != nil {
			return err
		}
		nUnits, _ := db.CountUnits(j.ID)

		if !deleteForce {
			fmt.Printf("Delete job %q with %d unit(s) and all annotations? [y/N]: ", j.Name, nUnits)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			answer = strings.TrimSpace(strings.ToLower(answer))
			if answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := db.DeleteJob(j.ID); err != nil {
			return fmt.Errorf("deleting job: %w", err)
		}
		fmt.Printf("Deleted job %q.\n", j.Name)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Delete without confirmation")
}

// --- import command ---

// importUnit is one entry of an import file: an id, an optional source
// URL, and the text fields to annotate.
type importUnit struct {
	ID     string        `json:"id"`
	URL    *string       `json:"url,omitempty"`
	Fields []token.Field `json:"fields"`
}

var importCmd = &cobra.Command{
	Use:   "import [job] [units.json]",
	Short: "Import units from a JSON file into a job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		j, err := getJob(db, args[0])
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading units file: %w", err)
		}
		var units []importUnit
		if err := json.Unmarshal(data, &units); err != nil {
			return fmt.Errorf("parsing units file: %w", err)
		}

		added, skipped := 0, 0
		for i, u := range units {
			if u.ID == "" {
				return fmt.Errorf("unit %d has no id", i)
			}
			if len(u.Fields) == 0 {
				return fmt.Errorf("unit %q has no fields", u.ID)
			}
			fields, err := json.Marshal(u.Fields)
			if err != nil {
				return fmt.Errorf("encoding fields of unit %q: %w", u.ID, err)
			}
			id, err := db.InsertUnit(j.ID, u.ID, u.URL, string(fields))
			if err != nil {
				return fmt.Errorf("inserting unit %q: %w", u.ID, err)
			}
			if id == 0 {
				skipped++
			} else {
				added++
			}
		}

		fmt.Printf("Imported %d unit(s), skipped %d duplicate(s).\n", added, skipped)
		if added > 0 {
			fmt.Printf("Run 'unitcoder collect %s' to tokenize them.\n", j.Name)
		}
		return nil
	},
}

// --- collect command ---

var collectDryRun bool

var collectCmd = &cobra.Command{
	Use:   "collect [job]",
	Short: "Run the import pipeline: collect -> fetch -> tokenize",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		j, err := getJob(db, args[0])
		if err != nil {
			return err
		}

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if collectDryRun {
			result = pipe.DryRun(j)
		} else {
			result = pipe.Run(j)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !collectDryRun {
			fmt.Printf("\nDone. Run 'unitcoder run %s' to start annotating.\n", j.Name)
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "Show what would be done without executing")
}

// --- run command ---

var (
	runSession string
	runCoder   string
	runPreview bool
)

var runCmd = &cobra.Command{
	Use:   "run [job]",
	Short: "Run an annotation session in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		srv, err := buildJobServer(db, args[0])
		if err != nil {
			return err
		}
		return annotateLoop(cmd.Context(), srv)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session token (default: <job>-<coder>)")
	runCmd.Flags().StringVar(&runCoder, "coder", "", "Coder name recorded with the session")
	runCmd.Flags().BoolVar(&runPreview, "preview", false, "Sandbox mode: nothing is saved")
}

func buildJobServer(db *database.DB, jobName string) (job.JobServer, error) {
	if runPreview {
		j, err := getJob(db, jobName)
		if err != nil {
			return nil, err
		}
		cb, err := codebook.Parse([]byte(j.CodebookYAML))
		if err != nil {
			return nil, fmt.Errorf("parsing codebook of job %q: %w", jobName, err)
		}
		rows, err := db.GetUnitsForJob(j.ID)
		if err != nil {
			return nil, err
		}
		var units []job.Unit
		for _, row := range rows {
			var fields []token.Field
			if err := json.Unmarshal([]byte(row.FieldsJSON), &fields); err != nil {
				return nil, fmt.Errorf("decoding fields of unit %q: %w", row.ExternalID, err)
			}
			units = append(units, job.Unit{ID: row.ExternalID, Fields: fields})
		}
		return job.NewPreviewServer(cb, units), nil
	}

	coder := runCoder
	if coder == "" {
		coder = os.Getenv("USER")
	}
	sessionToken := runSession
	if sessionToken == "" {
		sessionToken = jobName + "-" + coder
	}
	return job.NewLocalServer(db, jobName, sessionToken, coder)
}

func annotateLoop(ctx context.Context, srv job.JobServer) error {
	m, err := job.NewManager(ctx, srv, nil)
	if err != nil {
		return err
	}

	if srv.Preview() {
		fmt.Println("Preview session: answers are not saved.")
	}
	fmt.Println("Commands: 1..n select code, span <code> <from> <to>, rel <code> <from-id> <to-id>,")
	fmt.Println("          rm <id>, t show tokens, enter finish, s skip, b back, q quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		st := m.State()
		if st.Progress.Finished {
			deb, err := m.Debriefing(ctx)
			if err == nil && deb != nil && deb.Message != "" {
				fmt.Println("\n" + deb.Message)
			} else {
				fmt.Println("\nAll phases finished.")
			}
			return nil
		}

		printState(st)
		fmt.Print("> ")
		if !scanner.Scan() {
			if m.HasPending() {
				fmt.Println("\nWarning: unsaved annotations were discarded.")
			}
			return scanner.Err()
		}
		if err := handleInput(ctx, m, strings.TrimSpace(scanner.Text())); err != nil {
			if err == errQuit {
				if m.HasPending() {
					fmt.Println("Warning: unsaved annotations were discarded.")
				}
				return nil
			}
			fmt.Printf("Error: %v\n", err)
		}
	}
}

var errQuit = fmt.Errorf("quit")

func handleInput(ctx context.Context, m *job.Manager, line string) error {
	st := m.State()
	args := strings.Fields(line)

	if len(args) == 0 {
		if err := m.FinishVariable(ctx); err == job.ErrPreview {
			fmt.Println("(preview: not saved, use 'b'/'goto' to move around)")
			return nil
		} else if err != nil {
			return err
		}
		return nil
	}

	switch args[0] {
	case "q", "quit":
		return errQuit
	case "s", "skip":
		return m.SkipVariable(ctx)
	case "b", "back":
		p := st.Progress
		switch {
		case p.Unit > 0:
			return m.Navigate(ctx, p.Phase, p.Unit-1, 0)
		case p.Phase > 0:
			return m.Navigate(ctx, p.Phase-1, 0, 0)
		default:
			fmt.Println("Already at the first unit.")
			return nil
		}
	case "goto":
		if len(args) != 2 {
			return fmt.Errorf("usage: goto <unit>")
		}
		u, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid unit index: %s", args[1])
		}
		return m.Navigate(ctx, st.Progress.Phase, u, 0)
	case "t", "tokens":
		printTokens(st.Unit)
		return nil
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: rm <annotation-id>")
		}
		return removeByPrefix(m, st, args[1])
	case "span":
		if len(args) != 4 {
			return fmt.Errorf("usage: span <code> <from> <to>")
		}
		return createSpan(m, st, args[1], args[2], args[3])
	case "rel":
		if len(args) != 4 {
			return fmt.Errorf("usage: rel <code> <from-id> <to-id>")
		}
		v := currentVariable(st)
		if v == nil {
			return fmt.Errorf("no variable selected")
		}
		return m.CreateRelationAnnotation(v.Name, args[1], args[2], args[3])
	}

	// A bare number selects a code of the current variable.
	if n, err := strconv.Atoi(args[0]); err == nil {
		v := currentVariable(st)
		if v == nil {
			return fmt.Errorf("no variable selected")
		}
		if n < 1 || n > len(v.Codes) {
			return fmt.Errorf("code %d out of range 1..%d", n, len(v.Codes))
		}
		return m.CreateQuestionAnnotation(v.Name, v.Codes[n-1], v.Multiple, nil)
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

func currentVariable(st job.State) *codebook.Variable {
	i := st.Progress.Variable
	if i < 0 || i >= len(st.Variables) {
		return nil
	}
	return &st.Variables[i]
}

func createSpan(m *job.Manager, st job.State, code, fromArg, toArg string) error {
	v := currentVariable(st)
	if v == nil {
		return fmt.Errorf("no variable selected")
	}
	from, err := strconv.Atoi(fromArg)
	if err != nil {
		return fmt.Errorf("invalid token index: %s", fromArg)
	}
	to, err := strconv.Atoi(toArg)
	if err != nil {
		return fmt.Errorf("invalid token index: %s", toArg)
	}
	if st.Unit == nil || from < 0 || to < from || to >= len(st.Unit.Tokens) {
		return fmt.Errorf("span [%d, %d] out of range", from, to)
	}
	field := st.Unit.Tokens[from].Field
	return m.CreateSpanAnnotation(v.Name, code, field, annotation.Span{from, to})
}

func removeByPrefix(m *job.Manager, st job.State, prefix string) error {
	var match string
	for _, a := range st.Library.List() {
		if strings.HasPrefix(a.ID, prefix) {
			if match != "" {
				return fmt.Errorf("ambiguous id prefix %q", prefix)
			}
			match = a.ID
		}
	}
	if match == "" {
		return fmt.Errorf("no annotation with id %q", prefix)
	}
	return m.RemoveAnnotation(match, false)
}

func printState(st job.State) {
	p := st.Progress
	phase := p.Phases[p.Phase]
	fmt.Printf("\n[%s] unit %d/%d\n", phase.Label, p.Unit+1, phase.NUnits)

	if st.Unit != nil && phase.Type == codebook.PhaseAnnotation {
		for _, f := range st.Unit.Fields {
			fmt.Printf("--- %s ---\n%s\n", f.Name, f.Value)
		}
	}

	v := currentVariable(st)
	if v == nil {
		return
	}
	fmt.Printf("\n%s", v.Name)
	if v.Question != "" {
		fmt.Printf(": %s", v.Question)
	}
	fmt.Println()
	for i, c := range v.Codes {
		fmt.Printf("  %d) %s\n", i+1, c.Val())
	}

	current := st.Library.List()
	var own []annotation.Annotation
	for _, a := range current {
		if a.Variable == v.Name && a.Code != "" {
			own = append(own, a)
		}
	}
	if len(own) > 0 {
		fmt.Println("Current:")
		for _, a := range own {
			desc := a.Code
			if a.Kind == annotation.KindSpan && a.Client.Text != "" {
				desc = fmt.Sprintf("%s %q [%d, %d]", a.Code, a.Client.Text, a.Span[0], a.Span[1])
			}
			fmt.Printf("  %s  %s\n", shortID(a.ID), desc)
		}
	}
}

func printTokens(u *job.Unit) {
	if u == nil || len(u.Tokens) == 0 {
		fmt.Println("No tokens.")
		return
	}
	var b strings.Builder
	field := ""
	for _, t := range u.Tokens {
		if t.Field != field {
			field = t.Field
			fmt.Fprintf(&b, "\n--- %s ---\n", field)
		}
		fmt.Fprintf(&b, "%d:%s ", t.Index, t.Text)
	}
	fmt.Println(strings.TrimSpace(b.String()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port != 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- export command ---

var (
	exportFormat string
	exportOut    string
)

// exportRecord is one flattened annotation for export output.
type exportRecord struct {
	Session    string                `json:"session"`
	UnitID     string                `json:"unit_id"`
	Annotation annotation.Annotation `json:"annotation"`
}

var exportCmd = &cobra.Command{
	Use:   "export [job]",
	Short: "Export a job's annotations to JSON or CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		j, err := getJob(db, args[0])
		if err != nil {
			return err
		}

		rows, err := db.GetAnnotationsForJob(j.ID)
		if err != nil {
			return err
		}

		records := make([]exportRecord, 0, len(rows))
		for _, row := range rows {
			var a annotation.Annotation
			if err := json.Unmarshal([]byte(row.BodyJSON), &a); err != nil {
				return fmt.Errorf("decoding annotation %s: %w", row.ID, err)
			}
			records = append(records, exportRecord{
				Session:    row.SessionToken,
				UnitID:     row.UnitID,
				Annotation: a,
			})
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		switch exportFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(records); err != nil {
				return err
			}
		case "csv":
			if err := writeCSV(out, records); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q (want json or csv)", exportFormat)
		}

		if exportOut != "" {
			fmt.Fprintf(os.Stderr, "Exported %d annotation(s) to %s.\n", len(records), exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json or csv")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: stdout)")
}

func writeCSV(out *os.File, records []exportRecord) error {
	w := csv.NewWriter(out)
	header := []string{
		"session", "unit_id", "id", "kind", "variable", "code", "value",
		"field", "offset", "length", "span_from", "span_to",
		"from_id", "to_id", "text", "created", "status",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		a := r.Annotation
		spanFrom, spanTo := "", ""
		if a.Kind == annotation.KindSpan {
			spanFrom = strconv.Itoa(a.Span[0])
			spanTo = strconv.Itoa(a.Span[1])
		}
		row := []string{
			r.Session, r.UnitID, a.ID, string(a.Kind), a.Variable, a.Code, a.Value,
			a.Field, strconv.Itoa(a.Offset), strconv.Itoa(a.Length), spanFrom, spanTo,
			a.FromID, a.ToID, a.Client.Text, a.Created.Format("2006-01-02T15:04:05Z07:00"), string(a.Status),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// --- shared helpers ---

func getJob(db *database.DB, name string) (*database.Job, error) {
	j, err := db.GetJob(name)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fmt.Errorf("job %q not found (create it with 'unitcoder create %s --codebook codebook.yaml')", name, name)
	}
	return j, nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DatabasePath())
}
