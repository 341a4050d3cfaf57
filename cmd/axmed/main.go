package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"axmed/internal"
	"axmed/internal/assistant"
	"axmed/internal/catalog"
	"axmed/internal/config"
	"axmed/internal/connectors"
	"axmed/internal/listener"
	"axmed/internal/logger"
	"axmed/internal/pipeline"
	"axmed/internal/reader"
	"axmed/internal/storage"
	"axmed/internal/util"
)

// stringList collects a repeated flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ", ") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	must(logger.Setup(cfg, "axmed"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// template needs no database
	if cmd == "template" {
		runTemplate(cmd, os.Args[2:])
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	imports := pipeline.NewImportService(db, cfg)

	switch cmd {
	case "upload:inspect":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		schemaName := fs.String("schema", "order", "order|portfolio")
		file := fs.String("file", "", "csv, xlsx, html, eml or pdf file")
		asJSON := fs.Bool("json", false, "print the proposed mapping as JSON")
		_ = fs.Parse(os.Args[2:])
		requireFlag("--file", *file)
		schema, err := pipeline.SchemaByName(*schemaName)
		must(err)

		insp, err := imports.Inspect(ctx, schema, *file)
		must(err)
		if *asJSON {
			out, err := json.MarshalIndent(insp.Mapping, "", "  ")
			must(err)
			fmt.Println(string(out))
			return
		}
		fmt.Printf("%s (%s, %s) rows=%d\n", insp.Table.Name, insp.Table.Format, describeSource(insp), len(insp.Table.Rows))
		printMapping(os.Stdout, insp.Table.Headers, insp.Mapping)
		printWarnings(insp.Table.Warnings)
	case "upload:apply":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		owner := fs.String("owner", cfg.DefaultOwner, "account the upload belongs to")
		schemaName := fs.String("schema", "order", "order|portfolio")
		file := fs.String("file", "", "csv, xlsx, html, eml or pdf file")
		saveDraft := fs.Bool("save-draft", false, "keep valid rows as the owner's draft")
		var overrides stringList
		fs.Var(&overrides, "map", `override one column, "Header=field" or "Header=" to unmap (repeatable)`)
		_ = fs.Parse(os.Args[2:])
		requireFlag("--file", *file)
		schema, err := pipeline.SchemaByName(*schemaName)
		must(err)

		res, err := imports.Apply(ctx, pipeline.ApplyRequest{
			Owner:     *owner,
			Schema:    schema,
			Path:      *file,
			Overrides: overrides,
			SaveDraft: *saveDraft,
		})
		must(err)
		fmt.Printf("upload %s rows=%d valid=%d ok=%d review=%d notFound=%d status=%s\n",
			res.Upload.ID, res.Counts["rows"], res.Counts["valid"], res.Counts["ok"], res.Counts["review"], res.Counts["notFound"], res.Upload.Status)
		printRows(os.Stdout, schema, res.Rows)
		printWarnings(res.Warnings)
		if *saveDraft && res.Draft == nil {
			fmt.Println("no valid rows, draft not saved")
		}
	case "draft:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		owner := fs.String("owner", cfg.DefaultOwner, "account")
		schemaName := fs.String("schema", "order", "order|portfolio")
		_ = fs.Parse(os.Args[2:])
		schema, err := pipeline.SchemaByName(*schemaName)
		must(err)

		draft, err := imports.Draft(*owner, schema)
		must(err)
		if draft == nil {
			fmt.Printf("no %s draft for %s\n", schema.Name, *owner)
		} else {
			fmt.Printf("%s draft for %s saved %s (%d rows)\n", schema.Name, *owner, draft.SavedAt, len(draft.Rows))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(schema.Labels(), "\t"))
			for _, r := range draft.Rows {
				fmt.Fprintln(w, strings.Join(displayValues(schema, r), "\t"))
			}
			_ = w.Flush()
		}
		if pending, err := imports.Pending(*owner); err == nil && pending != nil {
			fmt.Printf("pending bulk upload: %d items submitted %s\n", pending.ItemCount, pending.SubmittedAt)
		}
	case "draft:submit":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		owner := fs.String("owner", cfg.DefaultOwner, "account")
		schemaName := fs.String("schema", "order", "order|portfolio")
		_ = fs.Parse(os.Args[2:])
		schema, err := pipeline.SchemaByName(*schemaName)
		must(err)

		if schema.Name == pipeline.PortfolioSchema.Name {
			sub, err := imports.SubmitPortfolioDraft(*owner)
			must(err)
			fmt.Printf("portfolio published: %d items\n", len(sub.Items))
			for _, issue := range sub.Issues {
				fmt.Printf("  row %d: %s\n", issue.Line, issue.Message)
			}
			return
		}
		sub, err := imports.SubmitOrderDraft(*owner)
		must(err)
		fmt.Printf("order submitted: %d items, bulk upload pending review\n", len(sub.Items))
	case "pending:complete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		owner := fs.String("owner", cfg.DefaultOwner, "account")
		_ = fs.Parse(os.Args[2:])
		done, err := imports.CompletePending(*owner)
		must(err)
		if done {
			fmt.Printf("pending bulk upload for %s completed\n", *owner)
		} else {
			fmt.Printf("no pending bulk upload for %s\n", *owner)
		}
	case "catalog:load":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "medicine list (csv or xlsx)")
		_ = fs.Parse(os.Args[2:])
		requireFlag("--file", *file)
		res, err := catalog.NewLoadService(db, cfg).LoadFile(ctx, *file)
		must(err)
		fmt.Printf("catalog loaded: %d medicines, %d rows skipped\n", res.Loaded, res.Skipped)
		printWarnings(res.Warnings)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		uploadID := fs.String("upload", "", "upload id (default: the owner's latest)")
		owner := fs.String("owner", cfg.DefaultOwner, "account used when --upload is empty")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])

		upload, err := findUpload(db, *uploadID, *owner)
		must(err)
		schema, err := pipeline.SchemaByName(upload.Schema)
		must(err)
		rows, err := db.GetExportRows(upload.ID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no rows for upload %s", upload.ID))
		}
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.OutputDir, upload.ID+".xlsx")
		}
		must(pipeline.ExportRowsToXLSX(schema, rows, path))
		fmt.Printf("exported %d rows to %s\n", len(rows), path)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := listener.MakeConnector(ctx, cfg, *provider)
		must(err)
		res, err := connectors.NewFetchService(db, cfg.RawMailDir, conn).FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d\n", conn.Provider(), res.Fetched, res.Stored, res.Known)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("email %d %s upload=%s rows=%d\n", res.EmailID, res.Status, res.UploadID, res.Rows)
			return
		}
		results, err := processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		for _, res := range results {
			fmt.Printf("email %d %s upload=%s rows=%d\n", res.EmailID, res.Status, res.UploadID, res.Rows)
		}
		fmt.Printf("processed %d emails\n", len(results))
	case "mail:listen":
		must(listener.NewService(db, cfg).Run(ctx))
	case "chat":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		message := fs.String("message", "", "send one message and exit")
		_ = fs.Parse(os.Args[2:])
		runChat(ctx, assistant.NewClient(cfg), *message)
	default:
		usage()
		os.Exit(1)
	}
}

func runTemplate(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	schemaName := fs.String("schema", "order", "order|portfolio")
	format := fs.String("format", "csv", "csv|xlsx")
	out := fs.String("out", "", "output path (csv defaults to stdout)")
	_ = fs.Parse(args)
	schema, err := pipeline.SchemaByName(*schemaName)
	must(err)

	switch strings.ToLower(*format) {
	case "csv":
		blob, err := pipeline.TemplateCSV(schema)
		must(err)
		if *out == "" {
			_, _ = os.Stdout.Write(blob)
			return
		}
		must(os.WriteFile(*out, blob, 0o644))
	case "xlsx":
		path := *out
		if path == "" {
			path = strings.TrimSuffix(schema.Template.FileName, filepath.Ext(schema.Template.FileName)) + ".xlsx"
		}
		f, err := os.Create(path)
		must(err)
		defer f.Close()
		must(pipeline.WriteTemplateXLSX(schema, f))
		*out = path
	default:
		must(fmt.Errorf("unsupported template format: %s", *format))
	}
	fmt.Printf("template written to %s\n", *out)
}

func runChat(ctx context.Context, client *assistant.Client, message string) {
	session := assistant.NewSessionID()
	if strings.TrimSpace(message) != "" {
		reply, err := client.Send(ctx, session, message)
		must(err)
		fmt.Println(reply)
		return
	}

	in := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for in.Scan() {
		text := strings.TrimSpace(in.Text())
		if text == "" {
			fmt.Print("> ")
			continue
		}
		if text == "exit" || text == "quit" {
			return
		}
		reply, err := client.Send(ctx, session, text)
		if errors.Is(err, assistant.ErrNotConfigured) || ctx.Err() != nil {
			must(err)
		}
		if err != nil {
			logger.Warnf("chat: %v", err)
			reply = assistant.FallbackReply
		}
		fmt.Printf("%s\n> ", reply)
	}
}

func findUpload(db *storage.DB, id, owner string) (*internal.UploadRecord, error) {
	if strings.TrimSpace(id) != "" {
		upload, err := db.GetUpload(id)
		if err == nil && upload == nil {
			err = fmt.Errorf("upload %s not found", id)
		}
		return upload, err
	}
	upload, err := db.LatestUpload(owner)
	if err == nil && upload == nil {
		err = fmt.Errorf("no uploads for %s", owner)
	}
	return upload, err
}

func describeSource(insp pipeline.Inspection) string {
	parts := []string{}
	if insp.Table.Encoding != "" {
		parts = append(parts, insp.Table.Encoding)
	}
	if insp.Table.Sheet != "" {
		parts = append(parts, "sheet "+insp.Table.Sheet)
	}
	if insp.Table.Attachment != "" {
		parts = append(parts, "attachment "+insp.Table.Attachment)
	}
	if len(parts) == 0 {
		return insp.Schema.Name
	}
	return insp.Schema.Name + ", " + strings.Join(parts, ", ")
}

func printMapping(out io.Writer, headers []string, mapping *pipeline.ColumnMapping) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tFIELD")
	for _, h := range headers {
		field, ok := mapping.Field(h)
		label := "(unmapped)"
		if ok {
			label = string(field)
		}
		fmt.Fprintf(w, "%s\t%s\n", h, label)
	}
	_ = w.Flush()
}

func printRows(out io.Writer, schema pipeline.Schema, rows []internal.UploadRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\t%s\tMATCH\n", strings.Join(schema.Labels(), "\t"))
	for _, r := range rows {
		match := string(r.Match.Status)
		if r.Match.Medicine != nil {
			match += " " + r.Match.Medicine.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.LineNo, strings.Join(displayValues(schema, r.Row), "\t"), match)
	}
	_ = w.Flush()
}

func displayValues(schema pipeline.Schema, row internal.NormalizedRow) []string {
	values := schema.Values(row)
	for i, f := range schema.Fields {
		if f.Key == internal.FieldSIP {
			values[i] = util.SIPLabel(values[i])
		}
	}
	return values
}

func printWarnings(warnings []reader.Warning) {
	for _, w := range warnings {
		if w.Row > 0 {
			fmt.Printf("warning: row %d: %s\n", w.Row, w.Message)
		} else {
			fmt.Printf("warning: %s\n", w.Message)
		}
	}
}

func requireFlag(name, value string) {
	if strings.TrimSpace(value) == "" {
		must(fmt.Errorf("%s is required", name))
	}
}

func usage() {
	fmt.Println("usage: axmed <command>")
	fmt.Println("commands:")
	fmt.Println("  template --schema=order|portfolio --format=csv|xlsx [--out=...]")
	fmt.Println("  upload:inspect --schema=order --file=order.xlsx [--json]")
	fmt.Println(`  upload:apply --owner=buyer --schema=order --file=order.xlsx [--map="Form=presentation"]... [--save-draft]`)
	fmt.Println("  draft:show --owner=buyer --schema=order")
	fmt.Println("  draft:submit --owner=buyer --schema=order|portfolio")
	fmt.Println("  pending:complete --owner=buyer")
	fmt.Println("  catalog:load --file=medicines.csv")
	fmt.Println("  export:xlsx [--upload=<id>|--owner=buyer] [--out=./out/upload.xlsx]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println(`  chat [--message="..."]`)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
