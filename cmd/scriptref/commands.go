package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/scriptref/internal/config"
	"github.com/standardbeagle/scriptref/internal/debug"
	scerrors "github.com/standardbeagle/scriptref/internal/errors"
	"github.com/standardbeagle/scriptref/internal/indexing"
	"github.com/standardbeagle/scriptref/internal/mcp"
	"github.com/standardbeagle/scriptref/internal/types"
)

// Exit codes
const (
	exitNotFound = 1
	exitUsage    = 2
	exitIndex    = 3
)

const noDocumentsMessage = "no documents found"

// openSession loads config and builds the index, returning once it is ready
func openSession(ctx context.Context, c *cli.Context, mutate func(*config.Config)) (*indexing.Session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	if mutate != nil {
		mutate(cfg)
	}

	session := indexing.NewSession(cfg)
	if err := session.Init(ctx); err != nil {
		_ = session.Close()
		if ctx.Err() != nil {
			return nil, cli.Exit("interrupted before the index was ready", exitIndex)
		}
		return nil, cli.Exit(fmt.Sprintf("failed to index %s: %v", cfg.Project.Root, err), exitIndex)
	}
	return session, nil
}

// findCommand lists the documents that use the script at the given path
func findCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: scriptref find <file.cs>", exitUsage)
	}
	source, err := filepath.Abs(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	session, err := openSession(c.Context, c, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	_, docs, err := session.Query().ReferencesOf(c.Context, source)
	if err != nil {
		return queryError(err)
	}
	return printReferences(c, session.Query(), docs)
}

// guidCommand lists the documents that reference a guid
func guidCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: scriptref guid <guid>", exitUsage)
	}
	id, err := types.ParseIdentifier(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	session, err := openSession(c.Context, c, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	docs, err := session.Query().DocumentsFor(id)
	if err != nil {
		return queryError(err)
	}
	return printReferences(c, session.Query(), docs)
}

// refsCommand lists the guids one document references
func refsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: scriptref refs <document>", exitUsage)
	}
	path, err := filepath.Abs(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	session, err := openSession(c.Context, c, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	ids, err := session.Query().IdentifiersFor(types.NewDocumentKey(path))
	if err != nil {
		return queryError(err)
	}

	w := c.App.Writer
	if c.Bool("json") {
		return writeJSON(w, map[string]interface{}{"path": types.NewDocumentKey(path), "guids": ids})
	}
	if len(ids) == 0 {
		return cli.Exit("no script references in "+path, exitNotFound)
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

// statusCommand indexes the project and prints statistics
func statusCommand(c *cli.Context) error {
	session, err := openSession(c.Context, c, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	st := session.Status()
	var verifyErr error
	if c.Bool("verify") {
		verifyErr = session.Verify()
	}

	w := c.App.Writer
	if c.Bool("json") {
		report := map[string]interface{}{"status": st}
		if c.Bool("verify") {
			report["consistent"] = verifyErr == nil
		}
		if err := writeJSON(w, report); err != nil {
			return err
		}
	} else {
		printStatus(w, st)
		if c.Bool("verify") && verifyErr == nil {
			fmt.Fprintln(w, "Consistency: ok")
		}
	}

	if verifyErr != nil {
		return cli.Exit(verifyErr.Error(), exitIndex)
	}
	return nil
}

// watchCommand keeps the index current until interrupted, logging each rebuild
func watchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := openSession(ctx, c, func(cfg *config.Config) {
		cfg.Index.WatchMode = true
		cfg.Index.WatchDebounceMs = c.Int("debounce")
	})
	if err != nil {
		return err
	}
	defer session.Close()

	w := c.App.Writer
	st := session.Status()
	fmt.Fprintf(w, "Watching %s: %d documents, %d scripts referenced. Press Ctrl+C to stop.\n",
		st.Root, st.Index.Store.Documents, st.Index.Store.Identifiers)

	<-ctx.Done()

	st = session.Status()
	fmt.Fprintf(w, "Stopped after %d events (%d documents indexed)\n", st.EventsForwarded, st.Index.Store.Documents)
	return nil
}

// mcpCommand serves MCP over stdio. stdout belongs to the protocol.
func mcpCommand(c *cli.Context) error {
	debug.SetMCPMode(true)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.Index.WatchMode = true

	server, err := mcp.NewServer(nil, cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := server.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// queryError turns a lookup failure into the message a user acts on
func queryError(err error) error {
	var cerr *scerrors.CompanionError
	switch {
	case errors.Is(err, scerrors.ErrUnsupportedSource):
		return cli.Exit("Only support C# file", exitUsage)
	case errors.Is(err, scerrors.ErrNotReady):
		return cli.Exit("Index is not ready yet, try again when the build completes", exitIndex)
	case errors.As(err, &cerr) && errors.Is(err, scerrors.ErrCompanionMissing):
		return cli.Exit("Cannot find meta file "+cerr.MetaPath, exitNotFound)
	case errors.As(err, &cerr) && errors.Is(err, scerrors.ErrCompanionMalformed):
		return cli.Exit(fmt.Sprintf("No valid guid in meta file %s", cerr.MetaPath), exitNotFound)
	default:
		return cli.Exit(err.Error(), exitIndex)
	}
}

func printReferences(c *cli.Context, q *indexing.Query, docs []types.DocumentKey) error {
	w := c.App.Writer
	refs := q.Present(docs)

	if c.Bool("json") {
		return writeJSON(w, refs)
	}
	if len(refs) == 0 {
		return cli.Exit(noDocumentsMessage, exitNotFound)
	}
	for _, ref := range refs {
		switch {
		case c.Bool("name-only"):
			fmt.Fprintln(w, ref.Name)
		case ref.Description == "":
			fmt.Fprintln(w, ref.Label)
		default:
			fmt.Fprintf(w, "%s\t%s\n", ref.Label, ref.Description)
		}
	}
	return nil
}

func printStatus(w io.Writer, st indexing.Status) {
	fmt.Fprintf(w, "Root:        %s\n", st.Root)
	fmt.Fprintf(w, "State:       %s\n", st.Index.State)
	fmt.Fprintf(w, "Documents:   %d (enumerated %d)\n", st.Index.Store.Documents, st.Index.DocumentsEnumerated)
	fmt.Fprintf(w, "Scripts:     %d\n", st.Index.Store.Identifiers)
	fmt.Fprintf(w, "References:  %d\n", st.Index.Store.Pairs)
	fmt.Fprintf(w, "Read errors: %d\n", st.Index.ReadFailures)
	if st.Scanner.TruncatedLines > 0 {
		fmt.Fprintf(w, "Truncated:   %d lines\n", st.Scanner.TruncatedLines)
	}
	fmt.Fprintf(w, "Build time:  %v\n", st.Index.LastRebuildDuration.Round(time.Millisecond))
	if st.Index.LastError != "" {
		fmt.Fprintf(w, "Last error:  %s\n", st.Index.LastError)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
